// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
)

const (
	SessionCookieName = "docfmt-session"
	StateCookieName   = "docfmt-oauth-state"

	// tokens expiring within this window are refreshed before use
	expiryBuffer = 30 * time.Second
	stateMaxAge  = 10 * time.Minute
)

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidState   = errors.New("invalid oauth state")
)

// ⚙️ Options configure a Manager
type Options struct {
	Google       GoogleConfig
	Secret       []byte
	TTL          time.Duration
	SecureCookie bool
}

// 🔐 Manager ties the OAuth flow, the session store and the session cookie
// together
type Manager struct {
	oauth  *oauth2.Config
	store  *Store
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager validates opts and creates a Manager
func NewManager(opts Options) (*Manager, error) {
	if len(opts.Secret) < MinSecretLen {
		return nil, errors.Errorf("session secret must be at least %d bytes", MinSecretLen)
	}
	if opts.TTL <= 0 {
		return nil, errors.Errorf("session ttl must be positive")
	}

	return &Manager{
		oauth:  NewGoogleProvider(opts.Google),
		store:  NewStore(opts.TTL),
		secret: opts.Secret,
		ttl:    opts.TTL,
		secure: opts.SecureCookie,
		now:    time.Now,
	}, nil
}

// OAuthConfig exposes the underlying client registration
func (m *Manager) OAuthConfig() *oauth2.Config {
	return m.oauth
}

// Store exposes the session store
func (m *Manager) Store() *Store {
	return m.store
}

// 🚪 BeginLogin stores a fresh state in a cookie and returns the consent url
func (m *Manager) BeginLogin(w http.ResponseWriter) string {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
	})
	return AuthCodeURL(m.oauth, state)
}

// VerifyState checks the callback state against the state cookie and clears
// the cookie
func (m *Manager) VerifyState(w http.ResponseWriter, r *http.Request) error {
	clearCookie(w, StateCookieName)

	c, err := r.Cookie(StateCookieName)
	if err != nil || c.Value == "" {
		return errors.Errorf("missing state cookie: %w", ErrInvalidState)
	}

	got := r.URL.Query().Get("state")
	if subtle.ConstantTimeCompare([]byte(got), []byte(c.Value)) != 1 {
		return errors.Errorf("state mismatch: %w", ErrInvalidState)
	}
	return nil
}

// Exchange trades an authorization code for a token
func (m *Manager) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

// 🎫 Login creates a session for user and sets the session cookie
func (m *Manager) Login(w http.ResponseWriter, user User, token *oauth2.Token) (Session, error) {
	sess := m.store.Create(user, token)

	signed, err := SignSessionID(m.secret, sess.ID, m.now(), m.ttl)
	if err != nil {
		m.store.Delete(sess.ID)
		return Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
	})

	return sess, nil
}

// Logout drops the session of r, if any, and clears the cookie
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := m.SessionFromRequest(r); ok {
		m.store.Delete(sess.ID)
	}
	clearCookie(w, SessionCookieName)
}

// SessionFromRequest resolves the session cookie of r
func (m *Manager) SessionFromRequest(r *http.Request) (Session, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return Session{}, false
	}

	id, err := ParseSessionID(m.secret, c.Value)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("rejecting session cookie")
		return Session{}, false
	}

	return m.store.Get(id)
}

// 🔄 ValidAccessToken returns a usable token for the session, refreshing it
// when it expires within 30s. A session that cannot be refreshed is removed
// and ErrSessionExpired is returned.
func (m *Manager) ValidAccessToken(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	logger := zerolog.Ctx(ctx)

	sess, ok := m.store.Get(sessionID)
	if !ok || sess.Token == nil || sess.Token.AccessToken == "" {
		return nil, errors.WithStack(ErrNotLoggedIn)
	}

	tok := sess.Token
	if tok.Expiry.IsZero() || tok.Expiry.After(m.now().Add(expiryBuffer)) {
		return tok, nil
	}

	if tok.RefreshToken == "" {
		logger.Warn().Msg("token expired and no refresh token available")
		m.store.Delete(sessionID)
		return nil, errors.WithStack(ErrSessionExpired)
	}

	logger.Info().Msg("access token expired, attempting to refresh")

	fresh, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		logger.Error().Err(err).Msg("failed to refresh token")
		m.store.Delete(sessionID)
		return nil, errors.WithStack(ErrSessionExpired)
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	m.store.UpdateToken(sessionID, fresh)

	logger.Info().Msg("successfully refreshed access token")

	return fresh, nil
}

// Expire removes a session whose Google credentials were rejected
func (m *Manager) Expire(w http.ResponseWriter, sessionID string) {
	m.store.Delete(sessionID)
	clearCookie(w, SessionCookieName)
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
