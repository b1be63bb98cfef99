package auth

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/logging"
)

// UserFetcher resolves an access token to the user it belongs to.
type UserFetcher interface {
	CurrentUser(ctx context.Context, token string) (User, error)
}

// TokenSource supplies the access token at sign-in time. Returning an empty
// token means the user backed out.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// TokenProvider signs users in with a personal access token verified against
// the gist host.
type TokenProvider struct {
	fetcher   UserFetcher
	source    TokenSource
	interval  time.Duration
	logger    logging.Logger
	mutex     sync.Mutex
	current   *Credential
	signedIn  []func(Credential)
	signedOut []func()
	pending   bool
	heartbeat sync.Once
}

// NewTokenProvider creates a provider. A zero interval disables the heartbeat.
func NewTokenProvider(fetcher UserFetcher, source TokenSource, interval time.Duration, logger logging.Logger) *TokenProvider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TokenProvider{
		fetcher:  fetcher,
		source:   source,
		interval: interval,
		logger:   logger.WithComponent("auth"),
	}
}

// OnSignedIn registers a sign-in listener.
func (p *TokenProvider) OnSignedIn(fn func(Credential)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.signedIn = append(p.signedIn, fn)
}

// OnSignedOut registers a sign-out listener.
func (p *TokenProvider) OnSignedOut(fn func()) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.signedOut = append(p.signedOut, fn)
}

// SignIn obtains a token and verifies it. Only one sign-in may be pending;
// a second concurrent attempt fails with the cancelled-popup code.
func (p *TokenProvider) SignIn(ctx context.Context) (Credential, error) {
	p.mutex.Lock()
	if p.pending {
		p.mutex.Unlock()
		return Credential{}, perrors.NewAuthError(perrors.CodeAuthPopupCancelled,
			"another sign-in is already in progress", nil)
	}
	p.pending = true
	p.mutex.Unlock()

	defer func() {
		p.mutex.Lock()
		p.pending = false
		p.mutex.Unlock()
	}()

	token, err := p.source(ctx)
	if err != nil {
		return Credential{}, classifyTransport(err)
	}
	if token == "" {
		return Credential{}, perrors.NewAuthError(perrors.CodeAuthPopupClosed,
			"no access token was provided", nil)
	}

	user, err := p.fetcher.CurrentUser(ctx, token)
	if err != nil {
		return Credential{}, classifyTransport(err)
	}

	credential := Credential{User: user, AccessToken: token}
	p.mutex.Lock()
	p.current = &credential
	listeners := append([]func(Credential){}, p.signedIn...)
	p.mutex.Unlock()

	p.logger.Info(ctx, "Signed in", "login", user.Login, "token", logging.RedactToken(token))
	for _, fn := range listeners {
		fn(credential)
	}
	return credential, nil
}

// SignOut forgets the current credential and notifies listeners.
func (p *TokenProvider) SignOut(ctx context.Context) error {
	p.mutex.Lock()
	wasSignedIn := p.current != nil
	p.current = nil
	listeners := append([]func(){}, p.signedOut...)
	p.mutex.Unlock()

	if !wasSignedIn {
		return nil
	}
	p.logger.Info(ctx, "Signed out")
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// StartSessionHeartbeat periodically re-verifies the current token and signs
// the user out when it stops working. Only the first call starts a loop.
func (p *TokenProvider) StartSessionHeartbeat(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	p.heartbeat.Do(func() {
		go p.runHeartbeat(ctx)
	})
}

func (p *TokenProvider) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkSession(ctx)
		}
	}
}

func (p *TokenProvider) checkSession(ctx context.Context) {
	p.mutex.Lock()
	current := p.current
	p.mutex.Unlock()
	if current == nil {
		return
	}

	if _, err := p.fetcher.CurrentUser(ctx, current.AccessToken); err != nil {
		if perrors.IsType(err, perrors.ErrorTypeNetwork) || isNetError(err) {
			p.logger.Warn(ctx, err, "Session heartbeat could not reach the server")
			return
		}
		p.logger.Warn(ctx, err, "Session expired")
		_ = p.SignOut(ctx)
	}
}

// classifyTransport turns fetch failures into auth errors with provider codes.
func classifyTransport(err error) error {
	var pe *perrors.PopcodeError
	if errors.As(err, &pe) && pe.Type == perrors.ErrorTypeAuth {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return perrors.NewAuthError(perrors.CodeAuthPopupClosed, "sign-in was cancelled", err)
	}
	if perrors.IsType(err, perrors.ErrorTypeNetwork) || isNetError(err) {
		return perrors.NewAuthError(perrors.CodeAuthNetwork, "network request failed", err)
	}
	return perrors.NewAuthError(perrors.CodeAuthOther, "sign-in failed", err)
}

func isNetError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
