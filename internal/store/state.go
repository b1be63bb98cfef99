package store

import (
	"maps"
	"slices"

	"github.com/conneroisu/popcode/internal/auth"
	"github.com/conneroisu/popcode/internal/layout"
	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/project"
	"github.com/conneroisu/popcode/internal/validation"
)

// ExportStatus is the lifecycle of one gist export.
type ExportStatus string

const (
	ExportStatusIdle      ExportStatus = "idle"
	ExportStatusInFlight  ExportStatus = "in-flight"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportRequest is the export state of one project.
type ExportRequest struct {
	Status    ExportStatus `json:"status"`
	ResultURL string       `json:"resultUrl,omitempty"`
}

// FocusedLine is an editor line the user asked to jump to.
type FocusedLine struct {
	Language project.Language `json:"language"`
	Line     int              `json:"line"`
	Column   int              `json:"column"`
}

// Dashboard is the state of the side dashboard.
type Dashboard struct {
	IsOpen        bool   `json:"isOpen"`
	ActiveSubmenu string `json:"activeSubmenu,omitempty"`
}

// State is one immutable snapshot of the whole workspace. Accessors return
// copies; reducers build new snapshots with copy-on-write.
type State struct {
	version          uint64
	loaded           bool
	initialGistID    string
	projects         map[string]project.Project
	currentKey       string
	user             auth.User
	validations      map[project.Language]validation.Result
	runtimeErrors    []validation.ErrorItem
	typing           bool
	geometry         layout.Geometry
	dashboard        Dashboard
	instructionsOpen bool
	focusedLine      *FocusedLine
	notifications    notifications.Queue
	exports          map[string]ExportRequest
}

// Initial returns the state before the application has loaded.
func Initial() State {
	validations := make(map[project.Language]validation.Result, len(project.Languages))
	for _, lang := range project.Languages {
		validations[lang] = validation.ResultFor(nil)
	}
	return State{
		projects:    map[string]project.Project{},
		validations: validations,
		geometry:    layout.Default(layout.MaxPanes),
		exports:     map[string]ExportRequest{},
	}
}

// Version increases with every applied intent.
func (s State) Version() uint64 { return s.version }

// Loaded reports whether ApplicationLoaded was applied.
func (s State) Loaded() bool { return s.loaded }

// InitialGistID is the gist requested at startup, if any.
func (s State) InitialGistID() string { return s.initialGistID }

// CurrentProject returns the selected project.
func (s State) CurrentProject() (project.Project, bool) {
	if s.currentKey == "" {
		return project.Project{}, false
	}
	p, ok := s.projects[s.currentKey]
	return p, ok
}

// CurrentKey returns the selected project key.
func (s State) CurrentKey() string { return s.currentKey }

// Project looks up a project by key.
func (s State) Project(key string) (project.Project, bool) {
	p, ok := s.projects[key]
	return p, ok
}

// Projects returns all projects, most recently updated first.
func (s State) Projects() []project.Project {
	out := slices.Collect(maps.Values(s.projects))
	slices.SortStableFunc(out, func(a, b project.Project) int {
		ta, _ := a.UpdatedAt()
		tb, _ := b.UpdatedAt()
		if c := tb.Compare(ta); c != 0 {
			return c
		}
		if a.Key() < b.Key() {
			return -1
		}
		if a.Key() > b.Key() {
			return 1
		}
		return 0
	})
	return out
}

// User returns the current user.
func (s State) User() auth.User { return s.user }

// Validation returns the validator result for one language.
func (s State) Validation(lang project.Language) validation.Result {
	return s.validations[lang]
}

// Validations returns every validator result.
func (s State) Validations() map[project.Language]validation.Result {
	return maps.Clone(s.validations)
}

// RuntimeErrors returns errors raised by the running preview.
func (s State) RuntimeErrors() []validation.ErrorItem { return slices.Clone(s.runtimeErrors) }

// IsUserTyping reports whether the user is mid-edit.
func (s State) IsUserTyping() bool { return s.typing }

// Geometry returns the full three-slot editor geometry.
func (s State) Geometry() layout.Geometry { return slices.Clone(s.geometry) }

// Dashboard returns the dashboard state.
func (s State) Dashboard() Dashboard { return s.dashboard }

// InstructionsOpen reports whether the instructions pane is open.
func (s State) InstructionsOpen() bool { return s.instructionsOpen }

// FocusedLine returns the pending line-focus request, if any.
func (s State) FocusedLine() (FocusedLine, bool) {
	if s.focusedLine == nil {
		return FocusedLine{}, false
	}
	return *s.focusedLine, true
}

// Notifications returns the notification queue.
func (s State) Notifications() notifications.Queue { return s.notifications }

// Export returns the export state of a project.
func (s State) Export(key string) ExportRequest {
	if req, ok := s.exports[key]; ok {
		return req
	}
	return ExportRequest{Status: ExportStatusIdle}
}

// ExportInFlight reports whether key has an outstanding export.
func (s State) ExportInFlight(key string) bool {
	return s.Export(key).Status == ExportStatusInFlight
}

// withProject stores p, copying the project map.
func (s State) withProject(p project.Project) State {
	projects := maps.Clone(s.projects)
	projects[p.Key()] = p
	s.projects = projects
	return s
}

func (s State) withExport(key string, req ExportRequest) State {
	exports := maps.Clone(s.exports)
	exports[key] = req
	s.exports = exports
	return s
}

func (s State) withValidation(lang project.Language, result validation.Result) State {
	validations := maps.Clone(s.validations)
	validations[lang] = result
	s.validations = validations
	return s
}
