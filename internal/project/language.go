package project

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Language identifies one editable source pane.
type Language string

const (
	HTML       Language = "html"
	CSS        Language = "css"
	JavaScript Language = "javascript"
)

// Languages is the fixed pane order.
var Languages = []Language{HTML, CSS, JavaScript}

var titleCaser = cases.Title(language.English)

// Label returns the human-facing pane title.
func (l Language) Label() string {
	switch l {
	case HTML, CSS:
		return cases.Upper(language.English).String(string(l))
	case JavaScript:
		return "JavaScript"
	default:
		return titleCaser.String(string(l))
	}
}

// EditorComponent returns the UI component name used when the pane is
// minimized, e.g. "editor.css".
func (l Language) EditorComponent() string {
	return "editor." + string(l)
}

// ParseLanguage validates a language name.
func ParseLanguage(name string) (Language, error) {
	for _, l := range Languages {
		if string(l) == name {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", name)
}
