package workspace

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/conneroisu/popcode/internal/project"
	"github.com/conneroisu/popcode/internal/validation"
)

// Event is a discrete UI event sent by the view layer.
type Event interface {
	EventType() string
}

// Event type names as they appear on the wire.
const (
	EventComponentMinimized      = "component-minimized"
	EventComponentMaximized      = "component-maximized"
	EventSourceEdited            = "source-edited"
	EventLibraryToggled          = "library-toggled"
	EventDividerDragged          = "divider-dragged"
	EventExportRequested         = "export-requested"
	EventNotificationDismissed   = "notification-dismissed"
	EventProjectSelected         = "project-selected"
	EventNewProject              = "new-project"
	EventLogInRequested          = "log-in-requested"
	EventLogOutRequested         = "log-out-requested"
	EventErrorClicked            = "error-clicked"
	EventRuntimeError            = "runtime-error"
	EventRuntimeErrorsCleared    = "runtime-errors-cleared"
	EventTypingChanged           = "typing-changed"
	EventValidationReported      = "validation-reported"
	EventDashboardToggled        = "dashboard-toggled"
	EventDashboardSubmenuToggled = "dashboard-submenu-toggled"
	EventInstructionsToggled     = "instructions-toggled"
	EventRequestedLineFocused    = "requested-line-focused"
)

type ComponentMinimized struct {
	Component string `json:"component"`
}

type ComponentMaximized struct {
	Component string `json:"component"`
}

type SourceEdited struct {
	Language project.Language `json:"language"`
	Source   string           `json:"source"`
}

type LibraryToggled struct {
	Library string `json:"library"`
}

// DividerDragged carries the drag offset and the measured heights of the
// rendered panes, top to bottom.
type DividerDragged struct {
	Index   int       `json:"index"`
	DeltaY  float64   `json:"deltaY"`
	Heights []float64 `json:"heights"`
}

type ExportRequested struct{}

type NotificationDismissed struct {
	Type string `json:"notificationType"`
}

type ProjectSelected struct {
	Key string `json:"projectKey"`
}

type NewProject struct{}

type LogInRequested struct{}

type LogOutRequested struct{}

type ErrorClicked struct {
	Language project.Language `json:"language"`
	Line     int              `json:"line"`
	Column   int              `json:"column"`
}

type RuntimeError struct {
	Error validation.ErrorItem `json:"error"`
}

type RuntimeErrorsCleared struct{}

type TypingChanged struct {
	Typing bool `json:"typing"`
}

type ValidationReported struct {
	Language project.Language  `json:"language"`
	Result   validation.Result `json:"result"`
}

type DashboardToggled struct{}

type DashboardSubmenuToggled struct {
	Submenu string `json:"submenu"`
}

type InstructionsToggled struct{}

type RequestedLineFocused struct{}

func (ComponentMinimized) EventType() string      { return EventComponentMinimized }
func (ComponentMaximized) EventType() string      { return EventComponentMaximized }
func (SourceEdited) EventType() string            { return EventSourceEdited }
func (LibraryToggled) EventType() string          { return EventLibraryToggled }
func (DividerDragged) EventType() string          { return EventDividerDragged }
func (ExportRequested) EventType() string         { return EventExportRequested }
func (NotificationDismissed) EventType() string   { return EventNotificationDismissed }
func (ProjectSelected) EventType() string         { return EventProjectSelected }
func (NewProject) EventType() string              { return EventNewProject }
func (LogInRequested) EventType() string          { return EventLogInRequested }
func (LogOutRequested) EventType() string         { return EventLogOutRequested }
func (ErrorClicked) EventType() string            { return EventErrorClicked }
func (RuntimeError) EventType() string            { return EventRuntimeError }
func (RuntimeErrorsCleared) EventType() string    { return EventRuntimeErrorsCleared }
func (TypingChanged) EventType() string           { return EventTypingChanged }
func (ValidationReported) EventType() string      { return EventValidationReported }
func (DashboardToggled) EventType() string        { return EventDashboardToggled }
func (DashboardSubmenuToggled) EventType() string { return EventDashboardSubmenuToggled }
func (InstructionsToggled) EventType() string     { return EventInstructionsToggled }
func (RequestedLineFocused) EventType() string    { return EventRequestedLineFocused }

var eventFactories = map[string]func() Event{
	EventComponentMinimized:      func() Event { return &ComponentMinimized{} },
	EventComponentMaximized:      func() Event { return &ComponentMaximized{} },
	EventSourceEdited:            func() Event { return &SourceEdited{} },
	EventLibraryToggled:          func() Event { return &LibraryToggled{} },
	EventDividerDragged:          func() Event { return &DividerDragged{} },
	EventExportRequested:         func() Event { return &ExportRequested{} },
	EventNotificationDismissed:   func() Event { return &NotificationDismissed{} },
	EventProjectSelected:         func() Event { return &ProjectSelected{} },
	EventNewProject:              func() Event { return &NewProject{} },
	EventLogInRequested:          func() Event { return &LogInRequested{} },
	EventLogOutRequested:         func() Event { return &LogOutRequested{} },
	EventErrorClicked:            func() Event { return &ErrorClicked{} },
	EventRuntimeError:            func() Event { return &RuntimeError{} },
	EventRuntimeErrorsCleared:    func() Event { return &RuntimeErrorsCleared{} },
	EventTypingChanged:           func() Event { return &TypingChanged{} },
	EventValidationReported:      func() Event { return &ValidationReported{} },
	EventDashboardToggled:        func() Event { return &DashboardToggled{} },
	EventDashboardSubmenuToggled: func() Event { return &DashboardSubmenuToggled{} },
	EventInstructionsToggled:     func() Event { return &InstructionsToggled{} },
	EventRequestedLineFocused:    func() Event { return &RequestedLineFocused{} },
}

// DecodeEvent decodes a JSON event of the form {"type": "...", ...}.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	factory, ok := eventFactories[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", envelope.Type)
	}
	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", envelope.Type, err)
	}
	return reflect.ValueOf(event).Elem().Interface().(Event), nil
}
