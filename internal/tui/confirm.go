package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Confirmer asks yes/no questions through a running Model. It implements
// export.Confirmer. A question nobody answers before ctx ends is a no.
type Confirmer struct {
	requests chan confirmRequest
}

type confirmRequest struct {
	prompt string
	reply  chan bool
}

// confirmMsg hands a pending question to the UI loop.
type confirmMsg struct {
	request confirmRequest
}

// NewConfirmer creates a Confirmer. Attach it to a Model with WithConfirmer.
func NewConfirmer() *Confirmer {
	return &Confirmer{requests: make(chan confirmRequest)}
}

// Confirm blocks until the user answers in the terminal.
func (c *Confirmer) Confirm(ctx context.Context, prompt string) bool {
	request := confirmRequest{prompt: prompt, reply: make(chan bool, 1)}
	select {
	case c.requests <- request:
	case <-ctx.Done():
		return false
	}
	select {
	case answer := <-request.reply:
		return answer
	case <-ctx.Done():
		return false
	}
}

// Option configures a Model.
type Option func(*Model)

// WithConfirmer lets the model answer questions asked through c.
func WithConfirmer(c *Confirmer) Option {
	return func(m *Model) { m.confirmer = c }
}

func (m *Model) waitForConfirm() tea.Cmd {
	if m.confirmer == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case request := <-m.confirmer.requests:
			return confirmMsg{request: request}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// answer resolves the pending question and starts listening for the next.
func (m *Model) answer(yes bool) tea.Cmd {
	if m.pending == nil {
		return nil
	}
	m.pending.reply <- yes
	m.pending = nil
	return m.waitForConfirm()
}

func confirmPrompt(prompt string) string {
	return prompt + " [y/N]"
}
