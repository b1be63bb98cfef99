package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	perrors "github.com/conneroisu/popcode/internal/errors"
)

// Raw is the loosely typed persisted form of a Project. Every field is
// optional; FromJS fills in defaults.
type Raw struct {
	ProjectKey         string            `json:"projectKey,omitempty" yaml:"projectKey,omitempty"`
	Sources            map[string]string `json:"sources,omitempty" yaml:"sources,omitempty"`
	EnabledLibraries   []string          `json:"enabledLibraries,omitempty" yaml:"enabledLibraries,omitempty"`
	HiddenUIComponents []string          `json:"hiddenUIComponents,omitempty" yaml:"hiddenUIComponents,omitempty"`
	// UpdatedAt is milliseconds since the Unix epoch.
	UpdatedAt    *int64          `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Instructions RawInstructions `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

// RawInstructions accepts either a bare markdown string or an object.
type RawInstructions struct {
	Markdown                         string `json:"markdown" yaml:"markdown"`
	IsKnownToBreakSyntaxHighlighting bool   `json:"isKnownToBreakSyntaxHighlighting" yaml:"isKnownToBreakSyntaxHighlighting"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawInstructions) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var markdown string
		if err := json.Unmarshal(trimmed, &markdown); err != nil {
			return err
		}
		*r = RawInstructions{Markdown: markdown}
		return nil
	}

	type plain RawInstructions
	var decoded plain
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*r = RawInstructions(decoded)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *RawInstructions) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*r = RawInstructions{Markdown: value.Value}
		return nil
	}

	type plain RawInstructions
	var decoded plain
	if err := value.Decode(&decoded); err != nil {
		return err
	}
	*r = RawInstructions(decoded)
	return nil
}

// FromJS builds a Project from its persisted form.
func FromJS(raw Raw) Project {
	sources := make(map[Language]string, len(raw.Sources))
	for name, text := range raw.Sources {
		if lang, err := ParseLanguage(name); err == nil {
			sources[lang] = text
		}
	}

	p := Project{
		key:                raw.ProjectKey,
		sources:            NewSources(sources),
		enabledLibraries:   normalizeSet(raw.EnabledLibraries),
		hiddenUIComponents: normalizeSet(raw.HiddenUIComponents),
		instructions: Instructions{
			Markdown:                         raw.Instructions.Markdown,
			IsKnownToBreakSyntaxHighlighting: raw.Instructions.IsKnownToBreakSyntaxHighlighting,
		},
	}
	if raw.UpdatedAt != nil {
		p.updatedAt = time.UnixMilli(*raw.UpdatedAt)
		p.hasUpdatedAt = true
	}
	return p
}

// ToJS returns the persisted form of p.
func (p Project) ToJS() Raw {
	sources := make(map[string]string, len(Languages))
	for _, lang := range Languages {
		sources[string(lang)] = p.sources.Get(lang)
	}

	raw := Raw{
		ProjectKey:         p.key,
		Sources:            sources,
		EnabledLibraries:   p.EnabledLibraries(),
		HiddenUIComponents: p.HiddenUIComponents(),
		Instructions: RawInstructions{
			Markdown:                         p.instructions.Markdown,
			IsKnownToBreakSyntaxHighlighting: p.instructions.IsKnownToBreakSyntaxHighlighting,
		},
	}
	if p.hasUpdatedAt {
		ms := p.updatedAt.UnixMilli()
		raw.UpdatedAt = &ms
	}
	return raw
}

// Format is a project document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks a format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes a project document.
func Parse(data []byte, format Format) (Project, error) {
	var raw Raw
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return Project{}, perrors.NewValidationError(perrors.CodeProjectInvalid,
			fmt.Sprintf("cannot decode %s project: %v", format, err))
	}
	return FromJS(raw), nil
}

// Encode serializes p in the given format.
func Encode(p Project, format Format) ([]byte, error) {
	raw := p.ToJS()
	if format == FormatYAML {
		return yaml.Marshal(raw)
	}
	return json.MarshalIndent(raw, "", "  ")
}

// LoadFile reads and decodes a project file. A project without a key is
// given one so it can be tracked by the store.
func LoadFile(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, perrors.NewIOError(perrors.CodeFileNotFound,
			"cannot read project file "+path, err)
	}
	p, err := Parse(data, FormatForPath(path))
	if err != nil {
		return Project{}, err
	}
	if p.Key() == "" {
		p = p.WithKey(NewKey())
	}
	return p, nil
}
