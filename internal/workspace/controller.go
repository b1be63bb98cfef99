// Package workspace is the composition root of the editor workspace. The
// Controller turns UI events into store intents, running the pure layout,
// validation and session computations on the way and driving the export
// pipeline and the auth provider.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conneroisu/popcode/internal/auth"
	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/export"
	"github.com/conneroisu/popcode/internal/instructions"
	"github.com/conneroisu/popcode/internal/layout"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/project"
	"github.com/conneroisu/popcode/internal/session"
	"github.com/conneroisu/popcode/internal/store"
	"github.com/conneroisu/popcode/internal/validation"
)

// GistService creates gists and loads projects back from them.
type GistService interface {
	export.Creator
	LoadProject(ctx context.Context, gistID string) (project.Project, error)
}

// Dependencies are the collaborators of a Controller. Store, Auth and Gists
// are required. Context bounds background validation and auth listeners and
// defaults to context.Background. Confirmer defaults to declining every
// anonymous export.
type Dependencies struct {
	Context      context.Context
	Store        *store.Store
	Auth         auth.Provider
	Gists        GistService
	Opener       export.Opener
	Confirmer    export.Confirmer
	Validators   validation.Set
	Reporter     perrors.Reporter
	Instructions *instructions.Renderer
	Catalog      *notifications.Catalog
	Logger       logging.Logger
	ExportOpts   []export.Option
}

// Controller handles workspace events.
type Controller struct {
	store        *store.Store
	auth         auth.Provider
	gists        GistService
	pipeline     *export.Pipeline
	validators   validation.Set
	reporter     perrors.Reporter
	instructions *instructions.Renderer
	catalog      *notifications.Catalog
	logger       logging.Logger

	// background outlives individual requests; validators run on it. It is
	// fixed at construction.
	background context.Context
	started    sync.Once
	pending    sync.WaitGroup
}

// New creates a Controller.
func New(deps Dependencies) (*Controller, error) {
	if deps.Store == nil || deps.Auth == nil || deps.Gists == nil {
		return nil, perrors.NewConfigError(perrors.CodeConfigInvalid,
			"workspace needs a store, an auth provider and a gist service")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if deps.Validators == nil {
		deps.Validators = validation.DefaultSet()
	}
	if deps.Reporter == nil {
		deps.Reporter = perrors.NewCollector(logger)
	}
	if deps.Instructions == nil {
		deps.Instructions = instructions.NewRenderer(instructions.StylePlain, 0)
	}
	if deps.Opener == nil {
		deps.Opener = NoWindows{}
	}
	if deps.Confirmer == nil {
		deps.Confirmer = AlwaysConfirm(false)
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Catalog == nil {
		catalog, err := notifications.NewCatalog(defaultLanguage)
		if err != nil {
			return nil, perrors.NewInternalError(perrors.CodeInternalError, "cannot build message catalog", err)
		}
		deps.Catalog = catalog
	}

	c := &Controller{
		store:        deps.Store,
		auth:         deps.Auth,
		gists:        deps.Gists,
		validators:   deps.Validators,
		reporter:     deps.Reporter,
		instructions: deps.Instructions,
		catalog:      deps.Catalog,
		logger:       logger.WithComponent("workspace"),
		background:   deps.Context,
	}
	c.pipeline = export.NewPipeline(deps.Gists, deps.Opener, deps.Confirmer,
		&storeRecorder{store: deps.Store}, logger, deps.ExportOpts...)
	return c, nil
}

// Start marks the application loaded, wires the auth listeners, starts the
// session heartbeat and loads the initial project: the gist named by
// initialGistID when set, otherwise a new project. Only the first call has
// any effect. ctx bounds the session heartbeat and the initial load.
func (c *Controller) Start(ctx context.Context, initialGistID string) {
	c.started.Do(func() {
		c.store.Apply(ctx, store.ApplicationLoaded{GistID: initialGistID})

		c.auth.OnSignedIn(func(credential auth.Credential) {
			c.store.Apply(c.background, store.UserAuthenticated{User: credential.AuthenticatedUser()})
		})
		c.auth.OnSignedOut(func() {
			c.store.Apply(c.background, store.UserLoggedOut{})
		})
		c.auth.StartSessionHeartbeat(ctx)

		if initialGistID != "" {
			c.loadGist(ctx, initialGistID)
		}
		if _, ok := c.store.State().CurrentProject(); !ok {
			c.NewProject(ctx)
		}
		c.logger.Info(ctx, "Workspace started", "gist", initialGistID)
	})
}

// Wait blocks until background validation has finished.
func (c *Controller) Wait() {
	c.pending.Wait()
}

// State returns the current store snapshot.
func (c *Controller) State() store.State {
	return c.store.State()
}

// OpenProject adds p to the workspace and selects it.
func (c *Controller) OpenProject(ctx context.Context, p project.Project) {
	if p.Key() == "" {
		p = p.WithKey(project.NewKey())
	}
	c.store.Apply(ctx, store.ProjectLoaded{Project: p})
	c.validateProject(p)
}

func (c *Controller) loadGist(ctx context.Context, gistID string) {
	p, err := c.gists.LoadProject(ctx, gistID)
	if err != nil {
		c.logger.Warn(ctx, err, "Could not load gist", "gist", gistID)
		c.store.Apply(ctx, store.NotificationTriggered{Notification: notifications.New(
			notifications.TypeProjectLoadFailed, notifications.LevelError,
			map[string]string{"gistId": gistID})})
		if !perrors.IsType(err, perrors.ErrorTypeIO) && !perrors.IsType(err, perrors.ErrorTypeNetwork) {
			c.reporter.Report(ctx, err, map[string]string{"gistId": gistID})
		}
		return
	}
	c.OpenProject(ctx, p)
}

// ComponentMinimized hides a UI component and resets the editor layout.
func (c *Controller) ComponentMinimized(ctx context.Context, component string) {
	c.setComponentHidden(ctx, component, true)
}

// ComponentMaximized shows a UI component and resets the editor layout.
func (c *Controller) ComponentMaximized(ctx context.Context, component string) {
	c.setComponentHidden(ctx, component, false)
}

func (c *Controller) setComponentHidden(ctx context.Context, component string, hidden bool) {
	p, ok := c.currentProject(ctx)
	if !ok {
		return
	}
	c.store.Apply(ctx, store.ComponentVisibilityChanged{
		Key:       p.Key(),
		Component: component,
		Hidden:    hidden,
		Geometry:  defaultGeometry(p, component, hidden),
	})
}

// SourceEdited replaces the source of one language and validates it in the
// background.
func (c *Controller) SourceEdited(ctx context.Context, lang project.Language, source string) {
	p, ok := c.currentProject(ctx)
	if !ok {
		return
	}
	c.store.Apply(ctx, store.SourceUpdated{Key: p.Key(), Language: lang, Text: source})
	c.validate(p.Key(), lang, source)
}

// LibraryToggled flips a library on the current project.
func (c *Controller) LibraryToggled(ctx context.Context, library string) {
	p, ok := c.currentProject(ctx)
	if !ok {
		return
	}
	c.store.Apply(ctx, store.LibraryToggled{Key: p.Key(), Library: library})
}

// DividerDragged recomputes the editor geometry for a divider drag.
func (c *Controller) DividerDragged(ctx context.Context, index int, deltaY float64, heights []float64) {
	c.store.Apply(ctx, store.LayoutChanged{Geometry: layout.Drag(index, deltaY, heights)})
}

// ExportRequested exports the current project as a gist. Unexpected
// failures are reported to diagnostics and returned.
func (c *Controller) ExportRequested(ctx context.Context) (export.Result, error) {
	state := c.store.State()
	p, ok := state.CurrentProject()
	if !ok {
		return export.Skipped{Reason: "no-project"}, nil
	}

	result, err := c.pipeline.Run(ctx, export.Request{Project: p, User: state.User()})
	if err != nil {
		c.reporter.Report(ctx, err, map[string]string{"projectKey": p.Key(), "operation": "export"})
		return result, err
	}
	return result, nil
}

// NotificationDismissed removes notifications of one type.
func (c *Controller) NotificationDismissed(ctx context.Context, notificationType string) {
	c.store.Apply(ctx, store.NotificationDismissed{Type: notificationType})
}

// ProjectSelected switches to an existing project.
func (c *Controller) ProjectSelected(ctx context.Context, key string) {
	state := c.store.Apply(ctx, store.CurrentProjectChanged{Key: key})
	if p, ok := state.CurrentProject(); ok && p.Key() == key {
		c.validateProject(p)
	}
}

// NewProject creates a pristine project and selects it.
func (c *Controller) NewProject(ctx context.Context) {
	p := project.New(project.NewKey())
	c.store.Apply(ctx, store.ProjectCreated{Project: p})
	c.validateProject(p)
}

// LogInRequested signs the user in. The signed-in listener records the user;
// failures become notifications.
func (c *Controller) LogInRequested(ctx context.Context) {
	if _, err := c.auth.SignIn(ctx); err != nil {
		c.handleAuthError(ctx, err)
	}
}

func (c *Controller) handleAuthError(ctx context.Context, err error) {
	outcome := auth.Classify(err)
	if outcome.NotificationType == "" {
		c.logger.Debug(ctx, "Sign-in superseded", "code", perrors.Code(err))
		return
	}
	c.store.Apply(ctx, store.NotificationTriggered{
		Notification: notifications.New(outcome.NotificationType, notifications.LevelError, nil),
	})
	if outcome.Report {
		c.reporter.Report(ctx, err, map[string]string{"operation": "sign-in", "code": perrors.Code(err)})
	}
}

// LogOutRequested signs the user out.
func (c *Controller) LogOutRequested(ctx context.Context) {
	if err := c.auth.SignOut(ctx); err != nil {
		c.logger.Warn(ctx, err, "Sign-out failed")
	}
}

// ErrorClicked shows the editor for lang and asks it to focus a line.
func (c *Controller) ErrorClicked(ctx context.Context, lang project.Language, line, column int) {
	p, ok := c.currentProject(ctx)
	if !ok {
		return
	}
	c.store.Apply(ctx, store.FocusedLineRequested{
		Key:      p.Key(),
		Line:     store.FocusedLine{Language: lang, Line: line, Column: column},
		Geometry: defaultGeometry(p, lang.EditorComponent(), false),
	})
}

// RuntimeError records an error raised by the running preview.
func (c *Controller) RuntimeError(ctx context.Context, item validation.ErrorItem) {
	c.store.Apply(ctx, store.RuntimeErrorAdded{Item: item})
}

// RuntimeErrorsCleared drops the preview's runtime errors.
func (c *Controller) RuntimeErrorsCleared(ctx context.Context) {
	c.store.Apply(ctx, store.RuntimeErrorsCleared{})
}

// TypingChanged records whether the user is mid-edit.
func (c *Controller) TypingChanged(ctx context.Context, typing bool) {
	c.store.Apply(ctx, store.TypingChanged{Typing: typing})
}

// ValidationReported stores a result from an external validator.
func (c *Controller) ValidationReported(ctx context.Context, lang project.Language, result validation.Result) {
	c.store.Apply(ctx, store.ValidationReported{Language: lang, Result: result})
}

// DashboardToggled opens or closes the dashboard.
func (c *Controller) DashboardToggled(ctx context.Context) {
	c.store.Apply(ctx, store.DashboardToggled{})
}

// DashboardSubmenuToggled switches the dashboard submenu.
func (c *Controller) DashboardSubmenuToggled(ctx context.Context, submenu string) {
	c.store.Apply(ctx, store.DashboardSubmenuToggled{Submenu: submenu})
}

// InstructionsToggled opens or closes the instructions pane.
func (c *Controller) InstructionsToggled(ctx context.Context) {
	c.store.Apply(ctx, store.InstructionsToggled{})
}

// RequestedLineFocused acknowledges that the editor focused the line.
func (c *Controller) RequestedLineFocused(ctx context.Context) {
	c.store.Apply(ctx, store.FocusedLineAcknowledged{})
}

// UnloadRequested reports whether leaving the page should be confirmed.
func (c *Controller) UnloadRequested(_ context.Context) bool {
	state := c.store.State()
	var current *project.Project
	if p, ok := state.CurrentProject(); ok {
		current = &p
	}
	return session.ShouldConfirmUnload(state.User(), current)
}

// Dispatch routes a decoded event to its handler. Only a failed export
// returns an error.
func (c *Controller) Dispatch(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case ComponentMinimized:
		c.ComponentMinimized(ctx, e.Component)
	case ComponentMaximized:
		c.ComponentMaximized(ctx, e.Component)
	case SourceEdited:
		if _, err := project.ParseLanguage(string(e.Language)); err != nil {
			return perrors.NewValidationError(perrors.CodeProjectInvalid, err.Error())
		}
		c.SourceEdited(ctx, e.Language, e.Source)
	case LibraryToggled:
		c.LibraryToggled(ctx, e.Library)
	case DividerDragged:
		c.DividerDragged(ctx, e.Index, e.DeltaY, e.Heights)
	case ExportRequested:
		_, err := c.ExportRequested(ctx)
		return err
	case NotificationDismissed:
		c.NotificationDismissed(ctx, e.Type)
	case ProjectSelected:
		c.ProjectSelected(ctx, e.Key)
	case NewProject:
		c.NewProject(ctx)
	case LogInRequested:
		c.LogInRequested(ctx)
	case LogOutRequested:
		c.LogOutRequested(ctx)
	case ErrorClicked:
		c.ErrorClicked(ctx, e.Language, e.Line, e.Column)
	case RuntimeError:
		c.RuntimeError(ctx, e.Error)
	case RuntimeErrorsCleared:
		c.RuntimeErrorsCleared(ctx)
	case TypingChanged:
		c.TypingChanged(ctx, e.Typing)
	case ValidationReported:
		c.ValidationReported(ctx, e.Language, e.Result)
	case DashboardToggled:
		c.DashboardToggled(ctx)
	case DashboardSubmenuToggled:
		c.DashboardSubmenuToggled(ctx, e.Submenu)
	case InstructionsToggled:
		c.InstructionsToggled(ctx)
	case RequestedLineFocused:
		c.RequestedLineFocused(ctx)
	default:
		return perrors.NewValidationError(perrors.CodeInternalError,
			fmt.Sprintf("unhandled event %T", event))
	}
	return nil
}

func (c *Controller) currentProject(ctx context.Context) (project.Project, bool) {
	p, ok := c.store.State().CurrentProject()
	if !ok {
		c.logger.Debug(ctx, "Event ignored without a current project")
	}
	return p, ok
}

// validate runs one validator in the background. The result is dropped when
// the source changed or another project was selected in the meantime.
func (c *Controller) validate(key string, lang project.Language, source string) {
	ctx := c.background
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		result := c.validators.ValidateSource(ctx, lang, source)
		_, applied := c.store.ApplyIf(ctx, func(s store.State) bool {
			p, ok := s.CurrentProject()
			return ok && p.Key() == key && p.Source(lang) == source
		}, store.ValidationReported{Language: lang, Result: result})
		if !applied {
			c.logger.Debug(ctx, "Stale validation dropped", "language", lang)
		}
	}()
}

func (c *Controller) validateProject(p project.Project) {
	for _, lang := range project.Languages {
		c.validate(p.Key(), lang, p.Source(lang))
	}
}

// defaultGeometry is the uniform layout for the panes left visible once
// component is hidden or shown.
func defaultGeometry(p project.Project, component string, hidden bool) layout.Geometry {
	next := p.WithComponentHidden(component, hidden, time.Time{})
	return layout.Default(len(layout.Visible(next.HiddenUIComponents())))
}
