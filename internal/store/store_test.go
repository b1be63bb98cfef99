package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/popcode/internal/auth"
	"github.com/conneroisu/popcode/internal/layout"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/project"
	"github.com/conneroisu/popcode/internal/validation"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(logging.NewNopLogger(), WithClock(func() time.Time { return fixedNow }))
}

func seeded(t *testing.T, key string) *Store {
	t.Helper()
	s := newTestStore(t)
	s.Apply(context.Background(), ProjectCreated{Project: project.New(key)})
	return s
}

func TestInitialState(t *testing.T) {
	s := Initial()
	assert.False(t, s.Loaded())
	assert.Zero(t, s.Version())
	_, ok := s.CurrentProject()
	assert.False(t, ok)
	for _, lang := range project.Languages {
		assert.Equal(t, validation.Passed, s.Validation(lang).State)
	}
	assert.Equal(t, []string{"1", "1", "1"}, s.Geometry().Strings())
	assert.Equal(t, ExportStatusIdle, s.Export("missing").Status)
}

func TestApplyIncrementsVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := s.Apply(ctx, ApplicationLoaded{GistID: "abc"})
	second := s.Apply(ctx, TypingChanged{Typing: true})

	assert.Equal(t, uint64(1), first.Version())
	assert.Equal(t, uint64(2), second.Version())
	assert.True(t, second.Loaded())
	assert.Equal(t, "abc", second.InitialGistID())
	assert.True(t, s.State().IsUserTyping())
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s := seeded(t, "p1")
	before := s.State()

	s.Apply(context.Background(), SourceUpdated{Key: "p1", Language: project.CSS, Text: "p {}"})

	p, ok := before.Project("p1")
	require.True(t, ok)
	assert.Empty(t, p.Source(project.CSS))
	assert.Equal(t, validation.Passed, before.Validation(project.CSS).State)

	after, _ := s.State().Project("p1")
	assert.Equal(t, "p {}", after.Source(project.CSS))
}

func TestSourceUpdatedMarksValidating(t *testing.T) {
	s := seeded(t, "p1")
	state := s.Apply(context.Background(), SourceUpdated{Key: "p1", Language: project.JavaScript, Text: "x"})

	assert.Equal(t, validation.Validating, state.Validation(project.JavaScript).State)
	p, _ := state.CurrentProject()
	updated, ok := p.UpdatedAt()
	require.True(t, ok)
	assert.Equal(t, fixedNow, updated)
}

func TestIntentsForUnknownProjectAreNoOps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Apply(ctx, SourceUpdated{Key: "ghost", Language: project.HTML, Text: "x"})
	s.Apply(ctx, LibraryToggled{Key: "ghost", Library: "jquery"})
	state := s.Apply(ctx, CurrentProjectChanged{Key: "ghost"})

	assert.Empty(t, state.Projects())
	assert.Empty(t, state.CurrentKey())
}

func TestComponentVisibilityChanged(t *testing.T) {
	s := seeded(t, "p1")
	ctx := context.Background()
	component := project.CSS.EditorComponent()

	minimized := ComponentVisibilityChanged{Key: "p1", Component: component, Hidden: true, Geometry: layout.Default(2)}
	assert.Equal(t, "component-minimized", minimized.Name())
	state := s.Apply(ctx, minimized)

	p, _ := state.CurrentProject()
	assert.True(t, p.IsHidden(component))
	assert.Len(t, state.Geometry(), 2)

	state = s.Apply(ctx, ComponentVisibilityChanged{Key: "p1", Component: component, Geometry: layout.Default(3)})
	p, _ = state.CurrentProject()
	assert.False(t, p.IsHidden(component))
}

func TestFocusedLineUnhidesEditor(t *testing.T) {
	s := seeded(t, "p1")
	ctx := context.Background()
	component := project.JavaScript.EditorComponent()
	s.Apply(ctx, ComponentVisibilityChanged{Key: "p1", Component: component, Hidden: true, Geometry: layout.Default(2)})

	state := s.Apply(ctx, FocusedLineRequested{
		Key:      "p1",
		Line:     FocusedLine{Language: project.JavaScript, Line: 4, Column: 2},
		Geometry: layout.Default(3),
	})

	p, _ := state.CurrentProject()
	assert.False(t, p.IsHidden(component))
	focused, ok := state.FocusedLine()
	require.True(t, ok)
	assert.Equal(t, 4, focused.Line)

	state = s.Apply(ctx, FocusedLineAcknowledged{})
	_, ok = state.FocusedLine()
	assert.False(t, ok)
}

func TestRuntimeErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	before := s.Apply(ctx, RuntimeErrorAdded{Item: validation.ErrorItem{Line: 1, Message: "boom"}})
	after := s.Apply(ctx, RuntimeErrorAdded{Item: validation.ErrorItem{Line: 2, Message: "bang"}})

	assert.Len(t, before.RuntimeErrors(), 1)
	assert.Len(t, after.RuntimeErrors(), 2)
	assert.Empty(t, s.Apply(ctx, RuntimeErrorsCleared{}).RuntimeErrors())
}

func TestProjectSwitchResetsEditorDiagnostics(t *testing.T) {
	for _, intent := range []Intent{
		ProjectCreated{Project: project.New("second")},
		ProjectLoaded{Project: project.New("second")},
	} {
		t.Run(intent.Name(), func(t *testing.T) {
			s := seeded(t, "first")
			ctx := context.Background()
			s.Apply(ctx, RuntimeErrorAdded{Item: validation.ErrorItem{Line: 1, Message: "boom"}})
			s.Apply(ctx, ValidationReported{
				Language: project.CSS,
				Result:   validation.ResultFor([]validation.ErrorItem{{Line: 3, Message: "bad"}}),
			})

			state := s.Apply(ctx, intent)

			assert.Empty(t, state.RuntimeErrors())
			assert.Equal(t, Initial().Validations(), state.Validations())
		})
	}
}

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := notifications.New(notifications.TypeEmptyGist, "", nil)

	state := s.Apply(ctx, NotificationTriggered{Notification: n})
	assert.True(t, state.Notifications().Has(notifications.TypeEmptyGist))

	state = s.Apply(ctx, NotificationDismissed{Type: notifications.TypeEmptyGist})
	assert.Zero(t, state.Notifications().Len())
}

func TestDashboardToggles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.True(t, s.Apply(ctx, DashboardToggled{}).Dashboard().IsOpen)
	assert.Equal(t, "libraries", s.Apply(ctx, DashboardSubmenuToggled{Submenu: "libraries"}).Dashboard().ActiveSubmenu)
	assert.Empty(t, s.Apply(ctx, DashboardSubmenuToggled{Submenu: "libraries"}).Dashboard().ActiveSubmenu)
	assert.True(t, s.Apply(ctx, InstructionsToggled{}).InstructionsOpen())
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := auth.Credential{User: auth.User{ID: "1", Login: "octo"}, AccessToken: "t"}.AuthenticatedUser()

	assert.True(t, s.Apply(ctx, UserAuthenticated{User: user}).User().Authenticated)
	assert.False(t, s.Apply(ctx, UserLoggedOut{}).User().Authenticated)
}

func TestExportLifecycle(t *testing.T) {
	s := seeded(t, "p1")
	ctx := context.Background()
	notInFlight := func(st State) bool { return !st.ExportInFlight("p1") }

	_, ok := s.ApplyIf(ctx, notInFlight, ExportStarted{Key: "p1"})
	require.True(t, ok)
	_, ok = s.ApplyIf(ctx, notInFlight, ExportStarted{Key: "p1"})
	assert.False(t, ok)

	state := s.Apply(ctx, ExportSucceeded{Key: "p1", URL: "https://gist.github.com/1"})
	assert.Equal(t, ExportRequest{Status: ExportStatusSucceeded, ResultURL: "https://gist.github.com/1"}, state.Export("p1"))

	_, ok = s.ApplyIf(ctx, notInFlight, ExportStarted{Key: "p1"})
	require.True(t, ok)
	assert.Equal(t, ExportStatusFailed, s.Apply(ctx, ExportFailed{Key: "p1"}).Export("p1").Status)
}

func TestApplyIfIsAtomic(t *testing.T) {
	s := seeded(t, "p1")
	ctx := context.Background()
	notInFlight := func(st State) bool { return !st.ExportInFlight("p1") }

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.ApplyIf(ctx, notInFlight, ExportStarted{Key: "p1"}); ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}

func TestBatchAppliesInOrder(t *testing.T) {
	s := seeded(t, "p1")
	state := s.Apply(context.Background(), Batch{
		Label: "export-failed",
		Intents: []Intent{
			ExportFailed{Key: "p1"},
			NotificationTriggered{Notification: notifications.New(notifications.TypeGistExportError, "", nil)},
		},
	})

	assert.Equal(t, uint64(2), state.Version())
	assert.Equal(t, ExportStatusFailed, state.Export("p1").Status)
	assert.True(t, state.Notifications().Has(notifications.TypeGistExportError))
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var versions []uint64
	unsubscribe := s.Subscribe(func(st State) { versions = append(versions, st.Version()) })

	s.Apply(ctx, TypingChanged{Typing: true})
	s.Apply(ctx, TypingChanged{Typing: false})
	unsubscribe()
	unsubscribe()
	s.Apply(ctx, TypingChanged{Typing: true})

	assert.Equal(t, []uint64{1, 2}, versions)
}

func TestProjectsOrderedByRecency(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	s := New(logging.NewNopLogger(), WithClock(func() time.Time { return now }))

	s.Apply(ctx, ProjectCreated{Project: project.New("old")})
	s.Apply(ctx, SourceUpdated{Key: "old", Language: project.CSS, Text: "a"})
	now = now.Add(time.Minute)
	s.Apply(ctx, ProjectCreated{Project: project.New("new")})
	s.Apply(ctx, SourceUpdated{Key: "new", Language: project.CSS, Text: "b"})
	s.Apply(ctx, ProjectCreated{Project: project.New("untouched")})

	keys := make([]string, 0, 3)
	for _, p := range s.State().Projects() {
		keys = append(keys, p.Key())
	}
	assert.Equal(t, []string{"new", "old", "untouched"}, keys)
	assert.Equal(t, "untouched", s.State().CurrentKey())
}
