package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportPrompt = "Export without signing in?"

// ask runs Confirm in the background and delivers the question to m.
func ask(t *testing.T, ctx context.Context, m *Model, c *Confirmer) <-chan bool {
	t.Helper()
	answers := make(chan bool, 1)
	go func() { answers <- c.Confirm(ctx, exportPrompt) }()

	wait := m.waitForConfirm()
	require.NotNil(t, wait)
	m.Update(wait())
	require.NotNil(t, m.pending)
	return answers
}

func newConfirmingModel(t *testing.T) (*Model, *Confirmer) {
	t.Helper()
	c := NewConfirmer()
	m := New(context.Background(), &fakeWorkspace{model: loadedModel()}, WithConfirmer(c))
	t.Cleanup(m.Close)
	return m, c
}

func TestConfirmerRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		key  tea.KeyMsg
		want bool
	}{
		{"y confirms", runes("y"), true},
		{"Y confirms", runes("Y"), true},
		{"n declines", runes("n"), false},
		{"enter declines", tea.KeyMsg{Type: tea.KeyEnter}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, c := newConfirmingModel(t)
			answers := ask(t, context.Background(), m, c)
			assert.Equal(t, exportPrompt+" [y/N]", m.status)
			assert.Contains(t, m.View(), exportPrompt)

			_, cmd := m.Update(tc.key)

			assert.Equal(t, tc.want, <-answers)
			assert.Nil(t, m.pending)
			assert.NotNil(t, cmd, "listens for the next question")
		})
	}
}

func TestConfirmKeysDoNotDispatch(t *testing.T) {
	c := NewConfirmer()
	ws := &fakeWorkspace{model: loadedModel()}
	m := New(context.Background(), ws, WithConfirmer(c))
	t.Cleanup(m.Close)
	answers := ask(t, context.Background(), m, c)

	press(t, m, runes("n"))

	assert.False(t, <-answers)
	assert.Empty(t, ws.dispatched)
}

func TestConfirmerCtrlCDeclinesAndQuits(t *testing.T) {
	m, c := newConfirmingModel(t)
	answers := ask(t, context.Background(), m, c)

	cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.False(t, <-answers)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestCloseDeclinesOpenQuestion(t *testing.T) {
	m, c := newConfirmingModel(t)
	answers := ask(t, context.Background(), m, c)

	m.Close()

	assert.False(t, <-answers)
}

func TestConfirmerGivesUpWithContext(t *testing.T) {
	c := NewConfirmer()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.False(t, c.Confirm(ctx, exportPrompt), "nobody is listening")
}

func TestModelWithoutConfirmer(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Nil(t, m.waitForConfirm())
}
