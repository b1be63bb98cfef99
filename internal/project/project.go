// Package project defines the immutable Project value edited in the
// workspace: the three language sources, enabled libraries, hidden UI
// components and the optional instructions shown beside the editors.
//
// A Project is never mutated in place. Every builder method returns a new
// snapshot with UpdatedAt refreshed, so snapshots can be shared freely
// between the state store, the read model and in-flight exports.
//
// A project is pristine until it is edited. Creating, loading or re-keying a
// project leaves it pristine; every edit marks it modified.
package project

import (
	_ "embed"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

//go:embed templates/new.html
var newProjectHTML string

// DefaultHTML returns the markup a new project starts with.
func DefaultHTML() string {
	return newProjectHTML
}

// Sources holds the text of every supported language. The zero value is not
// useful; use DefaultSources or NewSources.
type Sources struct {
	html       string
	css        string
	javascript string
}

// DefaultSources returns the sources of a freshly created project.
func DefaultSources() Sources {
	return Sources{html: newProjectHTML}
}

// NewSources builds Sources from a partial mapping. Languages missing from m
// keep their defaults; unknown keys are ignored.
func NewSources(m map[Language]string) Sources {
	s := DefaultSources()
	for lang, text := range m {
		s = s.With(lang, text)
	}
	return s
}

// Get returns the source for lang.
func (s Sources) Get(lang Language) string {
	switch lang {
	case HTML:
		return s.html
	case CSS:
		return s.css
	case JavaScript:
		return s.javascript
	default:
		return ""
	}
}

// With returns a copy of s with lang replaced.
func (s Sources) With(lang Language, text string) Sources {
	switch lang {
	case HTML:
		s.html = text
	case CSS:
		s.css = text
	case JavaScript:
		s.javascript = text
	}
	return s
}

// Map returns the sources keyed by language.
func (s Sources) Map() map[Language]string {
	return map[Language]string{
		HTML:       s.html,
		CSS:        s.css,
		JavaScript: s.javascript,
	}
}

// IsBlank reports whether every source is empty or whitespace.
func (s Sources) IsBlank() bool {
	for _, lang := range Languages {
		if strings.TrimSpace(s.Get(lang)) != "" {
			return false
		}
	}
	return true
}

// Instructions is markdown shown alongside the editors.
type Instructions struct {
	Markdown                         string
	IsKnownToBreakSyntaxHighlighting bool
}

// IsEmpty reports whether there is nothing to show.
func (i Instructions) IsEmpty() bool {
	return strings.TrimSpace(i.Markdown) == ""
}

// Project is an immutable snapshot of one playground project.
type Project struct {
	key                string
	sources            Sources
	enabledLibraries   []string
	hiddenUIComponents []string
	updatedAt          time.Time
	hasUpdatedAt       bool
	instructions       Instructions
	// modified is session state and is not persisted.
	modified bool
}

// NewKey returns a fresh opaque project key.
func NewKey() string {
	return uuid.NewString()
}

// New creates a project with default sources and the given key.
func New(key string) Project {
	return Project{
		key:     key,
		sources: DefaultSources(),
	}
}

// Key returns the project key.
func (p Project) Key() string { return p.key }

// Sources returns the project sources.
func (p Project) Sources() Sources { return p.sources }

// Source returns the text for one language.
func (p Project) Source(lang Language) string { return p.sources.Get(lang) }

// Instructions returns the project instructions.
func (p Project) Instructions() Instructions { return p.instructions }

// EnabledLibraries returns the sorted library keys.
func (p Project) EnabledLibraries() []string { return slices.Clone(p.enabledLibraries) }

// HasLibrary reports whether key is enabled.
func (p Project) HasLibrary(key string) bool {
	_, found := slices.BinarySearch(p.enabledLibraries, key)
	return found
}

// HiddenUIComponents returns the sorted hidden component names.
func (p Project) HiddenUIComponents() []string { return slices.Clone(p.hiddenUIComponents) }

// IsHidden reports whether a UI component is hidden.
func (p Project) IsHidden(component string) bool {
	_, found := slices.BinarySearch(p.hiddenUIComponents, component)
	return found
}

// UpdatedAt returns the last modification time, if the project was ever
// modified or loaded with one.
func (p Project) UpdatedAt() (time.Time, bool) { return p.updatedAt, p.hasUpdatedAt }

// WithKey returns a copy carrying key. The timestamp is left alone since
// assigning a key is not an edit.
func (p Project) WithKey(key string) Project {
	p.key = key
	p.enabledLibraries = slices.Clone(p.enabledLibraries)
	p.hiddenUIComponents = slices.Clone(p.hiddenUIComponents)
	return p
}

// WithSource returns a snapshot with one language's source replaced.
func (p Project) WithSource(lang Language, text string, now time.Time) Project {
	next := p.touch(now)
	next.sources = p.sources.With(lang, text)
	return next
}

// ToggleLibrary enables key if disabled and disables it otherwise.
func (p Project) ToggleLibrary(key string, now time.Time) Project {
	next := p.touch(now)
	next.enabledLibraries = toggle(p.enabledLibraries, key)
	return next
}

// WithComponentHidden hides or shows a UI component. The snapshot is
// returned unchanged when the component is already in the requested state.
// Layout changes do not count as edits.
func (p Project) WithComponentHidden(component string, hidden bool, now time.Time) Project {
	if p.IsHidden(component) == hidden {
		return p
	}
	next := p.touch(now)
	next.modified = p.modified
	next.hiddenUIComponents = toggle(p.hiddenUIComponents, component)
	return next
}

// WithInstructions returns a snapshot with new instructions.
func (p Project) WithInstructions(instructions Instructions, now time.Time) Project {
	next := p.touch(now)
	next.instructions = instructions
	return next
}

// Equal reports structural equality of the persisted fields.
func (p Project) Equal(other Project) bool {
	return p.key == other.key &&
		p.sources == other.sources &&
		p.instructions == other.instructions &&
		p.hasUpdatedAt == other.hasUpdatedAt &&
		p.updatedAt.Equal(other.updatedAt) &&
		slices.Equal(p.enabledLibraries, other.enabledLibraries) &&
		slices.Equal(p.hiddenUIComponents, other.hiddenUIComponents)
}

// IsModified reports whether p was edited since it was created or loaded.
func (p Project) IsModified() bool { return p.modified }

// IsPristine reports whether p is unmodified since it was created or loaded.
// Editing a project back to its original text does not make it pristine
// again.
func IsPristine(p Project) bool {
	return !p.modified
}

// touch copies p, detaching the slices, and stamps it with now.
func (p Project) touch(now time.Time) Project {
	p.enabledLibraries = slices.Clone(p.enabledLibraries)
	p.hiddenUIComponents = slices.Clone(p.hiddenUIComponents)
	p.updatedAt = now
	p.hasUpdatedAt = true
	p.modified = true
	return p
}

func toggle(set []string, value string) []string {
	idx, found := slices.BinarySearch(set, value)
	out := slices.Clone(set)
	if found {
		return slices.Delete(out, idx, idx+1)
	}
	return slices.Insert(out, idx, value)
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
