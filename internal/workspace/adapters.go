package workspace

import (
	"context"
	"errors"

	"golang.org/x/text/language"

	"github.com/conneroisu/popcode/internal/export"
	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/store"
)

var defaultLanguage = language.English

// storeRecorder records export progress as store intents.
type storeRecorder struct {
	store *store.Store
}

func (r *storeRecorder) InFlight(key string) bool {
	return r.store.State().ExportInFlight(key)
}

func (r *storeRecorder) Begin(ctx context.Context, key string) bool {
	_, ok := r.store.ApplyIf(ctx, func(s store.State) bool {
		return !s.ExportInFlight(key)
	}, store.ExportStarted{Key: key})
	return ok
}

func (r *storeRecorder) Finish(ctx context.Context, key string, result export.Result, n *notifications.Notification) {
	var status store.Intent
	switch res := result.(type) {
	case export.Succeeded:
		status = store.ExportSucceeded{Key: key, URL: res.URL}
	default:
		status = store.ExportFailed{Key: key}
	}
	if n == nil {
		r.store.Apply(ctx, status)
		return
	}
	r.store.Apply(ctx, store.Batch{
		Label:   status.Name(),
		Intents: []store.Intent{status, store.NotificationTriggered{Notification: *n}},
	})
}

// NoWindows is an export.Opener for headless use. Every export result is
// delivered as a notification.
type NoWindows struct{}

// Open implements export.Opener.
func (NoWindows) Open(context.Context, string) (export.Window, error) {
	return nil, errors.New("no window available")
}

// AlwaysConfirm answers every confirmation with its own value.
type AlwaysConfirm bool

// Confirm implements export.Confirmer.
func (a AlwaysConfirm) Confirm(context.Context, string) bool {
	return bool(a)
}
