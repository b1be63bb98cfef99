// Package export creates a gist from the current project.
//
// The placeholder window is opened before any network call, because a window
// opened after an asynchronous gap is treated as an unsolicited popup. The
// user may close that window at any moment, so its state is checked at every
// decision point instead of being assumed.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conneroisu/popcode/internal/auth"
	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/gists"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/project"
)

// AnonymousPrompt is shown before an anonymous export.
const AnonymousPrompt = "You are not logged in. Exporting anonymously creates a gist you will not be able to edit or delete. Continue?"

// Skip reasons.
const (
	ReasonInFlight = "in-flight"
	ReasonDeclined = "declined"
)

// Window is the secondary window that ends up showing the gist.
type Window interface {
	Closed() bool
	Navigate(url string) error
	Close() error
}

// Opener opens secondary windows.
type Opener interface {
	Open(ctx context.Context, url string) (Window, error)
}

// Creator creates gists.
type Creator interface {
	CreateFromProject(ctx context.Context, p project.Project, user auth.User) (gists.Response, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Recorder records export progress in the state store.
type Recorder interface {
	// InFlight reports whether key has an outstanding export.
	InFlight(key string) bool
	// Begin marks key in flight. It returns false when another export for
	// key won the race.
	Begin(ctx context.Context, key string) bool
	// Finish records the outcome and queues n when it is non-nil.
	Finish(ctx context.Context, key string, result Result, n *notifications.Notification)
}

// Result is the outcome of one export.
type Result interface {
	isResult()
}

// Succeeded carries the URL of the created gist. Notified is set when the
// window had been closed and the URL went to a notification instead.
type Succeeded struct {
	URL      string
	Notified bool
}

// FailedEmpty means the project had nothing to export.
type FailedEmpty struct{}

// FailedGeneric is any other creation failure.
type FailedGeneric struct {
	Cause error
}

// Skipped means no export was attempted.
type Skipped struct {
	Reason string
}

func (Succeeded) isResult()     {}
func (FailedEmpty) isResult()   {}
func (FailedGeneric) isResult() {}
func (Skipped) isResult()       {}

// Request is one export trigger.
type Request struct {
	Project project.Project
	User    auth.User
}

// Pipeline runs exports.
type Pipeline struct {
	creator   Creator
	opener    Opener
	confirmer Confirmer
	recorder  Recorder
	timeout   time.Duration
	logger    logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout bounds the creation call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// NewPipeline creates a Pipeline.
func NewPipeline(creator Creator, opener Opener, confirmer Confirmer, recorder Recorder, logger logging.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Pipeline{
		creator:   creator,
		opener:    opener,
		confirmer: confirmer,
		recorder:  recorder,
		logger:    logger.WithComponent("export"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run exports req.Project. Only FailedGeneric returns a non-nil error, which
// the caller reports to diagnostics.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	key := req.Project.Key()
	if p.recorder.InFlight(key) {
		p.logger.Debug(ctx, "Export already in flight", "project", key)
		return Skipped{Reason: ReasonInFlight}, nil
	}

	if !req.User.Authenticated && !p.confirmer.Confirm(ctx, AnonymousPrompt) {
		p.logger.Debug(ctx, "Anonymous export declined", "project", key)
		return Skipped{Reason: ReasonDeclined}, nil
	}

	window := p.open(ctx)
	if !p.recorder.Begin(ctx, key) {
		closeWindow(window)
		return Skipped{Reason: ReasonInFlight}, nil
	}

	perf := logging.StartOperation(p.logger, "export")
	createCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		createCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	resp, err := p.creator.CreateFromProject(createCtx, req.Project, req.User)
	if err != nil {
		perf.EndWithError(ctx, err)
		return p.fail(ctx, key, window, err)
	}
	perf.End(ctx)
	return p.succeed(ctx, key, window, resp.HTMLURL), nil
}

func (p *Pipeline) open(ctx context.Context) Window {
	window, err := p.opener.Open(ctx, PlaceholderURL)
	if err != nil || window == nil {
		p.logger.Warn(ctx, err, "Could not open export window")
		return closedWindow{}
	}
	return window
}

func (p *Pipeline) succeed(ctx context.Context, key string, window Window, url string) Result {
	if !window.Closed() {
		err := window.Navigate(url)
		if err == nil {
			result := Succeeded{URL: url}
			p.recorder.Finish(ctx, key, result, nil)
			return result
		}
		p.logger.Warn(ctx, err, "Export window went away before navigation", "project", key)
	}

	result := Succeeded{URL: url, Notified: true}
	n := notifications.New(notifications.TypeGistExportComplete, notifications.LevelNotice,
		map[string]string{"url": url})
	p.recorder.Finish(ctx, key, result, &n)
	return result
}

func (p *Pipeline) fail(ctx context.Context, key string, window Window, err error) (Result, error) {
	closeWindow(window)

	if perrors.IsEmptyGist(err) {
		n := notifications.New(notifications.TypeEmptyGist, notifications.LevelError, nil)
		p.recorder.Finish(ctx, key, FailedEmpty{}, &n)
		return FailedEmpty{}, nil
	}

	result := FailedGeneric{Cause: err}
	n := notifications.New(notifications.TypeGistExportError, notifications.LevelError, nil)
	p.recorder.Finish(ctx, key, result, &n)

	var pe *perrors.PopcodeError
	if !errors.As(err, &pe) {
		err = perrors.NewExportError(perrors.CodeExportFailed, "gist export failed", err)
	}
	return result, fmt.Errorf("exporting project %s: %w", key, err)
}

func closeWindow(window Window) {
	if !window.Closed() {
		_ = window.Close()
	}
}

// closedWindow stands in when no window could be opened.
type closedWindow struct{}

func (closedWindow) Closed() bool          { return true }
func (closedWindow) Navigate(string) error { return errors.New("window is closed") }
func (closedWindow) Close() error          { return nil }
