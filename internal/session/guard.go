// Package session decides whether leaving the workspace needs confirmation.
package session

import (
	"github.com/conneroisu/popcode/internal/auth"
	"github.com/conneroisu/popcode/internal/project"
)

// UnloadPrompt is shown when ShouldConfirmUnload is true.
const UnloadPrompt = "You have unsaved changes. Log in to save your work, or leave and lose it?"

// ShouldConfirmUnload reports whether leaving should be confirmed: only for a
// signed-out user with a current project that has been modified. Signed-in
// users have their work persisted remotely.
func ShouldConfirmUnload(user auth.User, current *project.Project) bool {
	if user.Authenticated || current == nil {
		return false
	}
	return !project.IsPristine(*current)
}
