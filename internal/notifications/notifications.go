// Package notifications models the user-facing notification queue. The
// queue is an immutable value owned by the state store; adding or dismissing
// returns a new queue.
package notifications

// Level is how prominently a notification is shown.
type Level string

const (
	LevelNotice Level = "notice"
	LevelError  Level = "error"
)

// Notification types raised by the workspace.
const (
	TypeUserCancelledAuth   = "user-cancelled-auth"
	TypeAuthNetworkError    = "auth-network-error"
	TypeAuthCookiesDisabled = "auth-third-party-cookies-disabled"
	TypeAuthError           = "auth-error"
	TypeGistExportComplete  = "gist-export-complete"
	TypeGistExportError     = "gist-export-error"
	TypeEmptyGist           = "empty-gist"
	TypeProjectLoadFailed   = "project-load-failed"
)

// Notification is one queued message.
type Notification struct {
	Type    string            `json:"type"`
	Level   Level             `json:"severity"`
	Payload map[string]string `json:"payload"`
}

// New builds a notification. An empty level defaults to LevelError, which is
// what every failure notification uses.
func New(notificationType string, level Level, payload map[string]string) Notification {
	if level == "" {
		level = LevelError
	}
	copied := make(map[string]string, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	return Notification{Type: notificationType, Level: level, Payload: copied}
}

// Queue is an ordered list of notifications, at most one per type.
type Queue struct {
	items []Notification
}

// Add returns a queue with n appended. A notification of the same type
// already queued is replaced in place so the user never sees duplicates.
func (q Queue) Add(n Notification) Queue {
	items := make([]Notification, 0, len(q.items)+1)
	replaced := false
	for _, existing := range q.items {
		if existing.Type == n.Type {
			items = append(items, n)
			replaced = true
			continue
		}
		items = append(items, existing)
	}
	if !replaced {
		items = append(items, n)
	}
	return Queue{items: items}
}

// Dismiss returns a queue without notifications of the given type.
func (q Queue) Dismiss(notificationType string) Queue {
	items := make([]Notification, 0, len(q.items))
	for _, existing := range q.items {
		if existing.Type != notificationType {
			items = append(items, existing)
		}
	}
	return Queue{items: items}
}

// Items returns the queued notifications in order.
func (q Queue) Items() []Notification {
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued notifications.
func (q Queue) Len() int { return len(q.items) }

// Has reports whether a notification of the given type is queued.
func (q Queue) Has(notificationType string) bool {
	for _, existing := range q.items {
		if existing.Type == notificationType {
			return true
		}
	}
	return false
}
