// Package auth defines the identity seen by the workspace and the provider
// that signs users in and out.
//
// Providers report failures as PopcodeErrors of type auth whose code is one
// of the provider codes in internal/errors. Classify maps those codes onto
// the closed set of user-facing notifications.
package auth

import (
	"context"
	"errors"

	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/notifications"
)

// User is the current identity. The zero value is an anonymous user.
type User struct {
	ID            string `json:"id,omitempty"`
	Login         string `json:"login,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	Authenticated bool   `json:"authenticated"`
	AccessToken   string `json:"-"`
}

// Anonymous returns the signed-out user.
func Anonymous() User {
	return User{}
}

// Credential is what a successful sign-in yields.
type Credential struct {
	User        User
	AccessToken string
}

// AuthenticatedUser returns the credential's user marked as signed in.
func (c Credential) AuthenticatedUser() User {
	u := c.User
	u.Authenticated = true
	u.AccessToken = c.AccessToken
	return u
}

// Provider is the authentication service.
type Provider interface {
	SignIn(ctx context.Context) (Credential, error)
	SignOut(ctx context.Context) error
	OnSignedIn(func(Credential))
	OnSignedOut(func())
	StartSessionHeartbeat(ctx context.Context)
}

// Outcome is how the workspace reacts to a sign-in failure.
type Outcome struct {
	// NotificationType is empty when the failure is silently ignored.
	NotificationType string
	// Report is set for unexpected failures that go to diagnostics.
	Report bool
}

// Classify maps a sign-in error to its outcome.
func Classify(err error) Outcome {
	var pe *perrors.PopcodeError
	code := ""
	if errors.As(err, &pe) && pe.Type == perrors.ErrorTypeAuth {
		code = pe.Code
	}

	switch code {
	case perrors.CodeAuthPopupClosed:
		return Outcome{NotificationType: notifications.TypeUserCancelledAuth}
	case perrors.CodeAuthNetwork:
		return Outcome{NotificationType: notifications.TypeAuthNetworkError}
	case perrors.CodeAuthPopupCancelled:
		return Outcome{}
	case perrors.CodeAuthStorageUnsupported:
		return Outcome{NotificationType: notifications.TypeAuthCookiesDisabled}
	default:
		return Outcome{NotificationType: notifications.TypeAuthError, Report: true}
	}
}
