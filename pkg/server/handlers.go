package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/docfmt/pkg/auth"
	"github.com/walteh/docfmt/pkg/diff"
	"github.com/walteh/docfmt/pkg/document"
	"github.com/walteh/docfmt/pkg/gdocs"
	"github.com/walteh/docfmt/pkg/operation"
)

const maxBodyBytes = 1 << 20

// statusError is an error with the response it should produce
type statusError struct {
	status         int
	message        string
	sessionExpired bool
	err            error
}

func (e *statusError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *statusError) Unwrap() error {
	return e.err
}

type errorBody struct {
	Error          string `json:"error"`
	SessionExpired bool   `json:"sessionExpired,omitempty"`
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle turns a returned error into a JSON error response
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		var se *statusError
		if !errors.As(err, &se) {
			se = &statusError{status: http.StatusInternalServerError, message: "An unexpected error occurred", err: err}
		}

		logger := hlog.FromRequest(r)
		if se.status >= http.StatusInternalServerError {
			logger.Error().Err(err).Msg("request failed")
		} else {
			logger.Debug().Err(err).Int("status", se.status).Msg("request rejected")
		}

		writeJSON(w, se.status, errorBody{Error: se.message, SessionExpired: se.sessionExpired})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, s.baseURL+path, http.StatusFound)
}

func (s *Server) loginError(w http.ResponseWriter, r *http.Request, code string) {
	s.redirect(w, r, "/login?error="+url.QueryEscape(code))
}

// 🚪 GET /api/auth/google
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	http.Redirect(w, r, s.auth.BeginLogin(w), http.StatusFound)
	return nil
}

// 🔁 GET /api/auth/google/callback
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := hlog.FromRequest(r)

	if err := s.auth.VerifyState(w, r); err != nil {
		logger.Warn().Err(err).Msg("rejecting oauth callback")
		s.loginError(w, r, "invalid_state")
		return
	}

	if e := r.URL.Query().Get("error"); e != "" {
		logger.Warn().Str("error", e).Msg("google declined authorization")
		s.loginError(w, r, "auth_failed")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.loginError(w, r, "no_code")
		return
	}

	tok, err := s.auth.Exchange(ctx, code)
	if err != nil {
		logger.Error().Err(err).Msg("token exchange failed")
		s.loginError(w, r, "auth_failed")
		return
	}
	if tok.AccessToken == "" {
		s.loginError(w, r, "no_token")
		return
	}

	client, err := s.newClient(ctx, tok)
	if err != nil {
		logger.Error().Err(err).Msg("creating google client")
		s.loginError(w, r, "auth_failed")
		return
	}

	info, err := client.UserInfo(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("fetching user info")
		s.loginError(w, r, "auth_failed")
		return
	}

	user := auth.User{ID: info.ID, Email: info.Email, Name: info.Name, Picture: info.Picture}
	if _, err := s.auth.Login(w, user, tok); err != nil {
		logger.Error().Err(err).Msg("creating session")
		s.loginError(w, r, "auth_failed")
		return
	}

	logger.Info().Str("email", user.Email).Msg("user signed in")
	s.redirect(w, r, "/dashboard")
}

// 👋 POST /api/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) error {
	s.auth.Logout(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	return nil
}

type sessionResponse struct {
	IsLoggedIn bool   `json:"isLoggedIn"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
}

// 🎫 GET /api/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) error {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return nil
	}
	writeJSON(w, http.StatusOK, sessionResponse{IsLoggedIn: true, Email: sess.User.Email, Name: sess.User.Name})
	return nil
}

// client resolves a Google client for the request session. Credentials
// Google no longer accepts end the session.
func (s *Server) client(w http.ResponseWriter, r *http.Request) (gdocs.Client, string, error) {
	ctx := r.Context()

	sess, ok := auth.FromContext(ctx)
	if !ok {
		return nil, "", &statusError{status: http.StatusUnauthorized, message: "Unauthorized"}
	}

	tok, err := s.auth.ValidAccessToken(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			s.auth.Expire(w, sess.ID)
			return nil, "", expired(err)
		}
		return nil, "", &statusError{status: http.StatusUnauthorized, message: "No access token available", err: err}
	}

	client, err := s.newClient(ctx, tok)
	if err != nil {
		return nil, "", errors.Errorf("creating google client: %w", err)
	}
	return client, sess.ID, nil
}

func expired(err error) *statusError {
	return &statusError{
		status:         http.StatusUnauthorized,
		message:        "Session expired. Please log in again.",
		sessionExpired: true,
		err:            err,
	}
}

// googleFailure maps a Google API error to a response, ending the session
// on rejected credentials
func (s *Server) googleFailure(w http.ResponseWriter, sessionID, message string, err error) error {
	if gdocs.IsAuthError(err) {
		s.auth.Expire(w, sessionID)
		return expired(err)
	}
	return &statusError{status: http.StatusInternalServerError, message: message, err: err}
}

// 📋 GET /api/documents
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) error {
	client, sessionID, err := s.client(w, r)
	if err != nil {
		return err
	}

	pattern := r.URL.Query().Get("match")
	docs, err := s.ops.ListDocuments(r.Context(), client, pattern)
	if err != nil {
		if errors.Is(err, operation.ErrInvalidPattern) {
			return &statusError{status: http.StatusBadRequest, message: "Invalid match pattern", err: err}
		}
		return s.googleFailure(w, sessionID, "Failed to fetch documents", err)
	}
	if docs == nil {
		docs = []document.Summary{}
	}

	writeJSON(w, http.StatusOK, map[string][]document.Summary{"documents": docs})
	return nil
}

// 🔍 GET /api/documents/{id}/format
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) error {
	client, sessionID, err := s.client(w, r)
	if err != nil {
		return err
	}

	preview, err := s.ops.Preview(r.Context(), client, chi.URLParam(r, "id"))
	if err != nil {
		return s.googleFailure(w, sessionID, "Failed to generate preview", err)
	}

	writeJSON(w, http.StatusOK, preview)
	return nil
}

type applyRequest struct {
	Changes []diff.Change `json:"changes"`
}

type applyResponse struct {
	Success bool `json:"success"`
	*operation.Result
}

// ✍️ POST /api/documents/{id}/format
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) error {
	var req applyRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return &statusError{status: http.StatusBadRequest, message: "Invalid request body", err: err}
	}

	client, sessionID, err := s.client(w, r)
	if err != nil {
		return err
	}

	result, err := s.ops.Apply(r.Context(), client, chi.URLParam(r, "id"), req.Changes)
	if err != nil {
		return s.googleFailure(w, sessionID, "Failed to format document", err)
	}

	writeJSON(w, http.StatusOK, applyResponse{Success: true, Result: result})
	return nil
}

type refreshResponse struct {
	Success  bool `json:"success"`
	Patterns int  `json:"patterns"`
}

// 🔄 POST /api/rules/refresh
func (s *Server) handleRefreshRules(w http.ResponseWriter, r *http.Request) error {
	s.rules.Invalidate()

	t, err := s.rules.Trie(r.Context())
	if err != nil {
		return &statusError{status: http.StatusBadGateway, message: "Failed to load rules", err: err}
	}

	hlog.FromRequest(r).Info().Int("patterns", t.Len()).Msg("rules refreshed")

	writeJSON(w, http.StatusOK, refreshResponse{Success: true, Patterns: t.Len()})
	return nil
}
