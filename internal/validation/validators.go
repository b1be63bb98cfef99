package validation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"

	"github.com/conneroisu/popcode/internal/project"
)

// Validator checks one language's source.
type Validator interface {
	Validate(ctx context.Context, source string) []ErrorItem
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, source string) []ErrorItem

// Validate implements Validator.
func (f ValidatorFunc) Validate(ctx context.Context, source string) []ErrorItem {
	return f(ctx, source)
}

// Set maps languages to their validators.
type Set map[project.Language]Validator

// DefaultSet returns the built-in validators.
func DefaultSet() Set {
	return Set{
		project.HTML:       HTMLValidator{},
		project.CSS:        StylesheetValidator{},
		project.JavaScript: ScriptValidator{},
	}
}

// ValidateProject runs every validator over p. Languages without a validator
// pass.
func (s Set) ValidateProject(ctx context.Context, p project.Project) map[project.Language]Result {
	results := make(map[project.Language]Result, len(project.Languages))
	for _, lang := range project.Languages {
		results[lang] = s.ValidateSource(ctx, lang, p.Source(lang))
	}
	return results
}

// ValidateSource runs the validator for one language.
func (s Set) ValidateSource(ctx context.Context, lang project.Language, source string) Result {
	v, ok := s[lang]
	if !ok {
		return ResultFor(nil)
	}
	return ResultFor(v.Validate(ctx, source))
}

// voidElements never take a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// optionalEnd elements may legally omit their end tag.
var optionalEnd = map[string]bool{
	"html": true, "head": true, "body": true, "p": true, "li": true,
	"dt": true, "dd": true, "option": true, "tr": true, "td": true,
	"th": true, "thead": true, "tbody": true, "tfoot": true,
}

// HTMLValidator reports mismatched and unclosed tags.
type HTMLValidator struct{}

type openTag struct {
	name   string
	line   int
	column int
}

// Validate implements Validator.
func (HTMLValidator) Validate(_ context.Context, source string) []ErrorItem {
	tokenizer := html.NewTokenizer(strings.NewReader(source))
	var items []ErrorItem
	var stack []openTag
	line, column := 1, 1

	for {
		tokenType := tokenizer.Next()
		startLine, startColumn := line, column
		raw := tokenizer.Raw()
		line, column = advance(line, column, raw)

		switch tokenType {
		case html.ErrorToken:
			if tokenizer.Err() != io.EOF {
				items = append(items, ErrorItem{Line: startLine, Column: startColumn,
					Message: tokenizer.Err().Error()})
			}
			for i := len(stack) - 1; i >= 0; i-- {
				if optionalEnd[stack[i].name] {
					continue
				}
				items = append(items, ErrorItem{
					Line:    stack[i].line,
					Column:  stack[i].column,
					Message: fmt.Sprintf("<%s> is never closed", stack[i].name),
				})
			}
			return items

		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if !voidElements[tag] {
				stack = append(stack, openTag{name: tag, line: startLine, column: startColumn})
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if voidElements[tag] {
				items = append(items, ErrorItem{Line: startLine, Column: startColumn,
					Message: fmt.Sprintf("<%s> must not have a closing tag", tag)})
				continue
			}
			idx := lastIndex(stack, tag)
			if idx < 0 {
				items = append(items, ErrorItem{Line: startLine, Column: startColumn,
					Message: fmt.Sprintf("closing </%s> has no matching opening tag", tag)})
				continue
			}
			for i := len(stack) - 1; i > idx; i-- {
				if optionalEnd[stack[i].name] {
					continue
				}
				items = append(items, ErrorItem{Line: stack[i].line, Column: stack[i].column,
					Message: fmt.Sprintf("<%s> is closed by </%s>", stack[i].name, tag)})
			}
			stack = stack[:idx]
		}
	}
}

func lastIndex(stack []openTag, name string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].name == name {
			return i
		}
	}
	return -1
}

func advance(line, column int, raw []byte) (int, int) {
	for {
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			return line, column + len(raw)
		}
		line++
		column = 1
		raw = raw[idx+1:]
	}
}

// ScriptValidator parses JavaScript with esbuild and reports its syntax
// errors. Lint warnings are ignored.
type ScriptValidator struct{}

// Validate implements Validator.
func (ScriptValidator) Validate(_ context.Context, source string) []ErrorItem {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: "script.js",
		LogLevel:   api.LogLevelSilent,
	})
	return errorItems(result.Errors)
}

// StylesheetValidator parses CSS with esbuild. The CSS parser recovers from
// malformed input and reports it as warnings, so warnings count as errors.
type StylesheetValidator struct{}

// Validate implements Validator.
func (StylesheetValidator) Validate(_ context.Context, source string) []ErrorItem {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderCSS,
		Sourcefile: "style.css",
		LogLevel:   api.LogLevelSilent,
	})
	return errorItems(append(result.Errors, result.Warnings...))
}

// errorItems converts esbuild messages. esbuild columns are 0-based.
func errorItems(messages []api.Message) []ErrorItem {
	var items []ErrorItem
	for _, msg := range messages {
		item := ErrorItem{Line: 1, Column: 1, Message: msg.Text}
		if msg.Location != nil {
			item.Line = msg.Location.Line
			item.Column = msg.Location.Column + 1
		}
		items = append(items, item)
	}
	return items
}
