package export

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/popcode/internal/auth"
	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/gists"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/project"
)

type fakeWindow struct {
	mu        sync.Mutex
	closed    bool
	navigated string
	closes    int
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWindow) Navigate(url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("closed")
	}
	w.navigated = url
	return nil
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.closes++
	return nil
}

type fakeOpener struct {
	window *fakeWindow
	urls   []string
	err    error
}

func (o *fakeOpener) Open(_ context.Context, url string) (Window, error) {
	o.urls = append(o.urls, url)
	if o.err != nil {
		return nil, o.err
	}
	return o.window, nil
}

type creatorFunc func(ctx context.Context, p project.Project, user auth.User) (gists.Response, error)

func (f creatorFunc) CreateFromProject(ctx context.Context, p project.Project, user auth.User) (gists.Response, error) {
	return f(ctx, p, user)
}

type fakeConfirmer struct {
	answer  bool
	prompts []string
}

func (c *fakeConfirmer) Confirm(_ context.Context, prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}

type fakeRecorder struct {
	mu            sync.Mutex
	inFlight      map[string]bool
	results       []Result
	notifications []notifications.Notification
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{inFlight: map[string]bool{}}
}

func (r *fakeRecorder) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[key]
}

func (r *fakeRecorder) Begin(_ context.Context, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[key] {
		return false
	}
	r.inFlight[key] = true
	return true
}

func (r *fakeRecorder) Finish(_ context.Context, key string, result Result, n *notifications.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[key] = false
	r.results = append(r.results, result)
	if n != nil {
		r.notifications = append(r.notifications, *n)
	}
}

type harness struct {
	window    *fakeWindow
	opener    *fakeOpener
	confirmer *fakeConfirmer
	recorder  *fakeRecorder
	calls     int
}

func newHarness(create creatorFunc) (*harness, *Pipeline) {
	h := &harness{
		window:    &fakeWindow{},
		confirmer: &fakeConfirmer{answer: true},
		recorder:  newFakeRecorder(),
	}
	h.opener = &fakeOpener{window: h.window}
	counted := creatorFunc(func(ctx context.Context, p project.Project, user auth.User) (gists.Response, error) {
		h.calls++
		return create(ctx, p, user)
	})
	return h, NewPipeline(counted, h.opener, h.confirmer, h.recorder, logging.NewNopLogger())
}

func succeedWith(url string) creatorFunc {
	return func(context.Context, project.Project, auth.User) (gists.Response, error) {
		return gists.Response{HTMLURL: url}, nil
	}
}

func signedIn() auth.User {
	return auth.Credential{User: auth.User{Login: "octo"}, AccessToken: "t"}.AuthenticatedUser()
}

func TestPlaceholderURLIsRenderedPage(t *testing.T) {
	require.True(t, strings.HasPrefix(PlaceholderURL, "data:text/html;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(PlaceholderURL, "data:text/html;base64,"))
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "Exporting…")
	assert.Equal(t, PlaceholderURL, renderPlaceholder())
}

func TestRunNavigatesOpenWindow(t *testing.T) {
	h, pipeline := newHarness(succeedWith("https://gist.github.com/abc"))

	result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.NoError(t, err)

	assert.Equal(t, Succeeded{URL: "https://gist.github.com/abc"}, result)
	assert.Equal(t, []string{PlaceholderURL}, h.opener.urls)
	assert.Equal(t, "https://gist.github.com/abc", h.window.navigated)
	assert.Empty(t, h.recorder.notifications)
	assert.Empty(t, h.confirmer.prompts)
	assert.False(t, h.recorder.InFlight("p1"))
}

func TestRunNotifiesWhenWindowClosedDuringCreation(t *testing.T) {
	var h *harness
	h, pipeline := newHarness(func(context.Context, project.Project, auth.User) (gists.Response, error) {
		_ = h.window.Close()
		return gists.Response{HTMLURL: "https://gist.github.com/abc"}, nil
	})

	result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.NoError(t, err)

	assert.Equal(t, Succeeded{URL: "https://gist.github.com/abc", Notified: true}, result)
	require.Len(t, h.recorder.notifications, 1)
	n := h.recorder.notifications[0]
	assert.Equal(t, notifications.TypeGistExportComplete, n.Type)
	assert.Equal(t, notifications.LevelNotice, n.Level)
	assert.Equal(t, "https://gist.github.com/abc", n.Payload["url"])
	assert.Empty(t, h.window.navigated)
}

func TestRunWithoutWindowNotifies(t *testing.T) {
	h, pipeline := newHarness(succeedWith("https://gist.github.com/abc"))
	h.opener.err = errors.New("popup blocked")

	result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.NoError(t, err)
	assert.Equal(t, Succeeded{URL: "https://gist.github.com/abc", Notified: true}, result)
	assert.Len(t, h.recorder.notifications, 1)
}

func TestRunEmptyGistIsNotPropagated(t *testing.T) {
	h, pipeline := newHarness(func(context.Context, project.Project, auth.User) (gists.Response, error) {
		return gists.Response{}, perrors.ErrEmptyGist
	})

	result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.NoError(t, err)

	assert.Equal(t, FailedEmpty{}, result)
	assert.True(t, h.window.Closed())
	assert.Equal(t, 1, h.window.closes)
	require.Len(t, h.recorder.notifications, 1)
	assert.Equal(t, notifications.TypeEmptyGist, h.recorder.notifications[0].Type)
}

func TestRunGenericFailureIsReRaised(t *testing.T) {
	cause := errors.New("boom")
	h, pipeline := newHarness(func(context.Context, project.Project, auth.User) (gists.Response, error) {
		return gists.Response{}, cause
	})

	result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.Error(t, err)

	assert.ErrorIs(t, err, cause)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeExport))
	assert.Equal(t, FailedGeneric{Cause: cause}, result)
	assert.True(t, h.window.Closed())
	require.Len(t, h.recorder.notifications, 1)
	assert.Equal(t, notifications.TypeGistExportError, h.recorder.notifications[0].Type)
}

func TestRunFailureDoesNotCloseAlreadyClosedWindow(t *testing.T) {
	var h *harness
	h, pipeline := newHarness(func(context.Context, project.Project, auth.User) (gists.Response, error) {
		_ = h.window.Close()
		return gists.Response{}, errors.New("boom")
	})

	_, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.Error(t, err)
	assert.Equal(t, 1, h.window.closes)
}

func TestRunSkipsWhileInFlight(t *testing.T) {
	h, pipeline := newHarness(succeedWith("u"))
	h.recorder.inFlight["p1"] = true

	result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.NoError(t, err)

	assert.Equal(t, Skipped{Reason: ReasonInFlight}, result)
	assert.Zero(t, h.calls)
	assert.Empty(t, h.opener.urls)
}

func TestRunIsIdempotentUnderConcurrentTriggers(t *testing.T) {
	release := make(chan struct{})
	h, pipeline := newHarness(func(context.Context, project.Project, auth.User) (gists.Response, error) {
		<-release
		return gists.Response{HTMLURL: "u"}, nil
	})

	done := make(chan Result, 1)
	go func() {
		result, _ := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
		done <- result
	}()
	require.Eventually(t, func() bool { return h.recorder.InFlight("p1") }, time.Second, time.Millisecond)

	second, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.NoError(t, err)
	assert.Equal(t, Skipped{Reason: ReasonInFlight}, second)

	close(release)
	assert.Equal(t, Succeeded{URL: "u"}, <-done)
	assert.Equal(t, 1, h.calls, "only the first trigger reaches the gist service")
}

func TestRunClosesWindowWhenBeginLosesRace(t *testing.T) {
	h, pipeline := newHarness(succeedWith("u"))
	h.opener.window = &fakeWindow{}
	racing := &racingRecorder{fakeRecorder: h.recorder}
	pipeline.recorder = racing

	result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.NoError(t, err)
	assert.Equal(t, Skipped{Reason: ReasonInFlight}, result)
	assert.True(t, h.opener.window.Closed())
}

// racingRecorder reports idle on the first check but loses Begin.
type racingRecorder struct {
	*fakeRecorder
}

func (r *racingRecorder) Begin(context.Context, string) bool { return false }

func TestRunAnonymousRequiresConfirmation(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		h, pipeline := newHarness(succeedWith("u"))
		h.confirmer.answer = false

		result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: auth.Anonymous()})
		require.NoError(t, err)

		assert.Equal(t, Skipped{Reason: ReasonDeclined}, result)
		assert.Equal(t, []string{AnonymousPrompt}, h.confirmer.prompts)
		assert.Empty(t, h.opener.urls)
		assert.Zero(t, h.calls)
		assert.Empty(t, h.recorder.results)
	})

	t.Run("accepted", func(t *testing.T) {
		h, pipeline := newHarness(succeedWith("u"))

		result, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: auth.Anonymous()})
		require.NoError(t, err)
		assert.Equal(t, Succeeded{URL: "u"}, result)
		assert.Len(t, h.confirmer.prompts, 1)
	})
}

func TestRunAppliesTimeout(t *testing.T) {
	h, _ := newHarness(nil)
	var deadline bool
	create := creatorFunc(func(ctx context.Context, _ project.Project, _ auth.User) (gists.Response, error) {
		_, deadline = ctx.Deadline()
		return gists.Response{HTMLURL: "u"}, nil
	})
	pipeline := NewPipeline(create, h.opener, h.confirmer, h.recorder, nil, WithTimeout(time.Minute))

	_, err := pipeline.Run(context.Background(), Request{Project: project.New("p1"), User: signedIn()})
	require.NoError(t, err)
	assert.True(t, deadline)
}
