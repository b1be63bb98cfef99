package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/notifications"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		notification string
		report       bool
	}{
		{"popup closed", perrors.NewAuthError(perrors.CodeAuthPopupClosed, "", nil), notifications.TypeUserCancelledAuth, false},
		{"network", perrors.NewAuthError(perrors.CodeAuthNetwork, "", nil), notifications.TypeAuthNetworkError, false},
		{"cancelled popup", perrors.NewAuthError(perrors.CodeAuthPopupCancelled, "", nil), "", false},
		{"storage", perrors.NewAuthError(perrors.CodeAuthStorageUnsupported, "", nil), notifications.TypeAuthCookiesDisabled, false},
		{"other code", perrors.NewAuthError("auth/user-disabled", "", nil), notifications.TypeAuthError, true},
		{"plain error", errors.New("weird"), notifications.TypeAuthError, true},
		{"wrapped", fmt.Errorf("ctx: %w", perrors.NewAuthError(perrors.CodeAuthNetwork, "", nil)), notifications.TypeAuthNetworkError, false},
		{"non-auth type with auth code", perrors.NewExportError(perrors.CodeAuthNetwork, "", nil), notifications.TypeAuthError, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := Classify(tc.err)
			assert.Equal(t, tc.notification, outcome.NotificationType)
			assert.Equal(t, tc.report, outcome.Report)
		})
	}
}

func TestCredentialAuthenticatedUser(t *testing.T) {
	u := Credential{User: User{Login: "octo"}, AccessToken: "tok"}.AuthenticatedUser()
	assert.True(t, u.Authenticated)
	assert.Equal(t, "tok", u.AccessToken)
	assert.False(t, Anonymous().Authenticated)
}

type fakeFetcher struct {
	mutex sync.Mutex
	user  User
	err   error
	calls int
}

func (f *fakeFetcher) CurrentUser(_ context.Context, token string) (User, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls++
	if f.err != nil {
		return User{}, f.err
	}
	return f.user, nil
}

func (f *fakeFetcher) setErr(err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.err = err
}

func TestTokenProviderSignInAndOut(t *testing.T) {
	fetcher := &fakeFetcher{user: User{ID: "1", Login: "octo"}}
	provider := NewTokenProvider(fetcher, StaticToken("ghp_abc"), 0, nil)

	var signedIn []Credential
	signedOut := 0
	provider.OnSignedIn(func(c Credential) { signedIn = append(signedIn, c) })
	provider.OnSignedOut(func() { signedOut++ })

	credential, err := provider.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octo", credential.User.Login)
	require.Len(t, signedIn, 1)

	require.NoError(t, provider.SignOut(context.Background()))
	require.NoError(t, provider.SignOut(context.Background()))
	assert.Equal(t, 1, signedOut)
}

func TestTokenProviderErrors(t *testing.T) {
	t.Run("empty token means the user closed the prompt", func(t *testing.T) {
		provider := NewTokenProvider(&fakeFetcher{}, StaticToken(""), 0, nil)
		_, err := provider.SignIn(context.Background())
		assert.Equal(t, perrors.CodeAuthPopupClosed, perrors.Code(err))
	})

	t.Run("network failure", func(t *testing.T) {
		fetcher := &fakeFetcher{err: perrors.NewNetworkError("ERR_NET", "dial", nil)}
		provider := NewTokenProvider(fetcher, StaticToken("t"), 0, nil)
		_, err := provider.SignIn(context.Background())
		assert.Equal(t, perrors.CodeAuthNetwork, perrors.Code(err))
	})

	t.Run("rejected token", func(t *testing.T) {
		fetcher := &fakeFetcher{err: errors.New("401 Unauthorized")}
		provider := NewTokenProvider(fetcher, StaticToken("t"), 0, nil)
		_, err := provider.SignIn(context.Background())
		assert.Equal(t, perrors.CodeAuthOther, perrors.Code(err))
		assert.True(t, Classify(err).Report)
	})

	t.Run("source cancelled", func(t *testing.T) {
		source := func(context.Context) (string, error) { return "", context.Canceled }
		provider := NewTokenProvider(&fakeFetcher{}, source, 0, nil)
		_, err := provider.SignIn(context.Background())
		assert.Equal(t, perrors.CodeAuthPopupClosed, perrors.Code(err))
	})
}

func TestTokenProviderRejectsConcurrentSignIn(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	source := func(context.Context) (string, error) {
		close(entered)
		<-release
		return "t", nil
	}
	provider := NewTokenProvider(&fakeFetcher{}, source, 0, nil)

	done := make(chan error, 1)
	go func() {
		_, err := provider.SignIn(context.Background())
		done <- err
	}()
	<-entered

	_, err := provider.SignIn(context.Background())
	assert.Equal(t, perrors.CodeAuthPopupCancelled, perrors.Code(err))
	assert.Empty(t, Classify(err).NotificationType)

	close(release)
	require.NoError(t, <-done)
}

func TestHeartbeatSignsOutExpiredSession(t *testing.T) {
	fetcher := &fakeFetcher{user: User{Login: "octo"}}
	provider := NewTokenProvider(fetcher, StaticToken("t"), 10*time.Millisecond, nil)

	signedOut := make(chan struct{}, 1)
	provider.OnSignedOut(func() { signedOut <- struct{}{} })

	_, err := provider.SignIn(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider.StartSessionHeartbeat(ctx)
	provider.StartSessionHeartbeat(ctx)

	fetcher.setErr(errors.New("401 Unauthorized"))

	select {
	case <-signedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not sign the user out")
	}
}
