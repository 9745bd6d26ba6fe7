package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/walteh/docfmt/pkg/auth"
	"github.com/walteh/docfmt/pkg/diff"
	"github.com/walteh/docfmt/pkg/document"
	"github.com/walteh/docfmt/pkg/gdocs"
	"github.com/walteh/docfmt/pkg/operation"
	"github.com/walteh/docfmt/pkg/rules"
	"github.com/walteh/docfmt/pkg/trie"
)

const (
	testSecret  = "0123456789abcdef0123456789abcdef"
	testBaseURL = "https://docfmt.example.com"
)

type fakeClient struct {
	mu       sync.Mutex
	docs     []document.Summary
	doc      *document.FullDocument
	info     *gdocs.UserInfo
	err      error
	replaced [][]diff.ReplaceRequest
}

var _ gdocs.Client = (*fakeClient)(nil)

func (f *fakeClient) ListDocuments(ctx context.Context) ([]document.Summary, error) {
	return f.docs, f.err
}

func (f *fakeClient) GetDocument(ctx context.Context, id string) (*document.FullDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *fakeClient) BatchReplace(ctx context.Context, id string, reqs []diff.ReplaceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, reqs)
	return f.err
}

func (f *fakeClient) UserInfo(ctx context.Context) (*gdocs.UserInfo, error) {
	return f.info, f.err
}

// countingRules counts how often the rule cache reaches its source
type countingRules struct {
	mu    sync.Mutex
	calls int
	rules []trie.Rule
	err   error
}

func (s *countingRules) Rules(ctx context.Context) ([]trie.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.rules, s.err
}

func (s *countingRules) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type harness struct {
	t       *testing.T
	client  *fakeClient
	rules   *countingRules
	manager *auth.Manager
	handler http.Handler
	tokens  *httptest.Server
	gotTok  *oauth2.Token
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{t: t, client: &fakeClient{}}

	h.tokens = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.Form.Get("code") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","refresh_token":"rt-1","expires_in":3600}`))
	}))
	t.Cleanup(h.tokens.Close)

	mgr, err := auth.NewManager(auth.Options{
		Google: auth.GoogleConfig{
			ClientID:     "client",
			ClientSecret: "secret",
			BaseURL:      testBaseURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  h.tokens.URL + "/auth",
				TokenURL: h.tokens.URL + "/token",
			},
		},
		Secret: []byte(testSecret),
		TTL:    time.Hour,
	})
	require.NoError(t, err)
	h.manager = mgr

	h.rules = &countingRules{rules: []trie.Rule{
		{From: []string{"hadith"}, To: "hadīth", Options: trie.Options{Match: trie.MatchWhole}},
	}}
	cache := rules.NewCache(h.rules, time.Hour)

	srv, err := New(Options{
		Auth:       mgr,
		Operations: operation.New(cache),
		Rules:      cache,
		NewClient: func(ctx context.Context, tok *oauth2.Token) (gdocs.Client, error) {
			h.gotTok = tok
			return h.client, nil
		},
		BaseURL: testBaseURL,
		Logger:  zerolog.New(zerolog.NewTestWriter(t)),
	})
	require.NoError(t, err)
	h.handler = srv.Handler()

	return h
}

// login creates a session directly and returns its cookie
func (h *harness) login(tok *oauth2.Token) (*http.Cookie, auth.Session) {
	h.t.Helper()
	rec := httptest.NewRecorder()
	sess, err := h.manager.Login(rec, auth.User{ID: "u1", Email: "a@example.com", Name: "Ann"}, tok)
	require.NoError(h.t, err)
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c, sess
		}
	}
	h.t.Fatal("no session cookie set")
	return nil, sess
}

func (h *harness) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func validToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "at-1", RefreshToken: "rt-1", Expiry: time.Now().Add(time.Hour)}
}

func hadithDoc() *document.FullDocument {
	return &document.FullDocument{
		DocumentID: "doc-1",
		Title:      "Notes",
		Body: &document.Body{Content: []document.ContentElement{
			{Paragraph: &document.Paragraph{Elements: []document.ParagraphElement{
				{TextRun: &document.TextRun{Content: "The hadith\n"}},
			}}},
		}},
	}
}

func TestSession(t *testing.T) {
	h := newHarness(t)

	t.Run("anonymous", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/session", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"isLoggedIn":false}`, rec.Body.String())
	})

	t.Run("logged_in", func(t *testing.T) {
		cookie, _ := h.login(validToken())
		rec := h.do(http.MethodGet, "/api/session", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"isLoggedIn":true,"email":"a@example.com","name":"Ann"}`, rec.Body.String())
	})

	t.Run("forged_cookie", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/session", "", &http.Cookie{Name: auth.SessionCookieName, Value: "not-a-jwt"})
		assert.JSONEq(t, `{"isLoggedIn":false}`, rec.Body.String())
	})
}

func TestUnauthorized(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		method string
		target string
	}{
		{name: "list", method: http.MethodGet, target: "/api/documents"},
		{name: "preview", method: http.MethodGet, target: "/api/documents/doc-1/format"},
		{name: "apply", method: http.MethodPost, target: "/api/documents/doc-1/format"},
		{name: "refresh_rules", method: http.MethodPost, target: "/api/rules/refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(tt.method, tt.target, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
		})
	}
}

func TestListDocuments(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		docs       []document.Summary
		err        error
		wantStatus int
		wantBody   string
		wantLogout bool
	}{
		{
			name:       "all",
			docs:       []document.Summary{{ID: "1", Name: "Notes"}, {ID: "2", Name: "Draft"}},
			wantStatus: http.StatusOK,
			wantBody:   `{"documents":[{"id":"1","name":"Notes"},{"id":"2","name":"Draft"}]}`,
		},
		{
			name:       "filtered",
			query:      "?match=Dra*",
			docs:       []document.Summary{{ID: "1", Name: "Notes"}, {ID: "2", Name: "Draft"}},
			wantStatus: http.StatusOK,
			wantBody:   `{"documents":[{"id":"2","name":"Draft"}]}`,
		},
		{
			name:       "none",
			wantStatus: http.StatusOK,
			wantBody:   `{"documents":[]}`,
		},
		{
			name:       "bad_pattern",
			query:      "?match=" + url.QueryEscape("Draft ["),
			docs:       []document.Summary{{ID: "1", Name: "Notes"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid match pattern"}`,
		},
		{
			name:       "credentials_rejected",
			err:        &googleapi.Error{Code: http.StatusUnauthorized, Message: "Invalid Credentials"},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"Session expired. Please log in again.","sessionExpired":true}`,
			wantLogout: true,
		},
		{
			name:       "google_down",
			err:        errors.New("backend error"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Failed to fetch documents"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.client.docs = tt.docs
			h.client.err = tt.err

			cookie, _ := h.login(validToken())
			rec := h.do(http.MethodGet, "/api/documents"+tt.query, "", cookie)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			if tt.wantLogout {
				assert.Equal(t, 0, h.manager.Store().Len(), "session should be removed")
			} else {
				assert.Equal(t, 1, h.manager.Store().Len())
			}
			assert.Equal(t, "at-1", h.gotTok.AccessToken)
		})
	}
}

func TestExpiredSessionWithoutRefreshToken(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.login(&oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)})

	rec := h.do(http.MethodGet, "/api/documents", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, true, decode(t, rec)["sessionExpired"])
	assert.Equal(t, 0, h.manager.Store().Len())
}

func TestPreview(t *testing.T) {
	h := newHarness(t)
	h.client.doc = hadithDoc()
	cookie, _ := h.login(validToken())

	rec := h.do(http.MethodGet, "/api/documents/doc-1/format", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"documentId": "doc-1",
		"title": "Notes",
		"changes": [{"from": "The hadith", "to": "The hadīth"}]
	}`, rec.Body.String())
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
		wantSent   []diff.ReplaceRequest
	}{
		{
			name:       "explicit_changes",
			body:       `{"changes":[{"from":"a","to":"b"},{"from":"a","to":"b"}]}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"documentId":"doc-1","applied":1,"retried":false}`,
			wantSent:   diff.ToReplaceRequests([]diff.Change{{From: "a", To: "b"}}),
		},
		{
			name:       "empty_body_applies_preview",
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"documentId":"doc-1","applied":1,"retried":false}`,
			wantSent:   diff.ToReplaceRequests([]diff.Change{{From: "The hadith", To: "The hadīth"}}),
		},
		{
			name:       "empty_list_applies_preview",
			body:       `{"changes":[]}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"documentId":"doc-1","applied":1,"retried":false}`,
			wantSent:   diff.ToReplaceRequests([]diff.Change{{From: "The hadith", To: "The hadīth"}}),
		},
		{
			name:       "invalid_body",
			body:       `{"changes":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.client.doc = hadithDoc()
			cookie, _ := h.login(validToken())

			rec := h.do(http.MethodPost, "/api/documents/doc-1/format", tt.body, cookie)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())

			if tt.wantSent == nil {
				assert.Empty(t, h.client.replaced)
				return
			}
			require.Len(t, h.client.replaced, 1)
			assert.Equal(t, tt.wantSent, h.client.replaced[0])
		})
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/auth/google", "")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth", loc.Path)
	assert.Equal(t, "offline", loc.Query().Get("access_type"))
	assert.Equal(t, "consent", loc.Query().Get("prompt"))
	assert.Equal(t, testBaseURL+auth.CallbackPath, loc.Query().Get("redirect_uri"))

	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.StateCookieName {
			state = c
		}
	}
	require.NotNil(t, state, "state cookie should be set")
	assert.Equal(t, state.Value, loc.Query().Get("state"))
}

func TestCallback(t *testing.T) {
	tests := []struct {
		name         string
		query        url.Values
		stateCookie  string
		userErr      error
		wantLocation string
		wantSession  bool
	}{
		{
			name:         "success",
			query:        url.Values{"state": {"s1"}, "code": {"good"}},
			stateCookie:  "s1",
			wantLocation: testBaseURL + "/dashboard",
			wantSession:  true,
		},
		{
			name:         "state_mismatch",
			query:        url.Values{"state": {"other"}, "code": {"good"}},
			stateCookie:  "s1",
			wantLocation: testBaseURL + "/login?error=invalid_state",
		},
		{
			name:         "missing_state_cookie",
			query:        url.Values{"state": {"s1"}, "code": {"good"}},
			wantLocation: testBaseURL + "/login?error=invalid_state",
		},
		{
			name:         "no_code",
			query:        url.Values{"state": {"s1"}},
			stateCookie:  "s1",
			wantLocation: testBaseURL + "/login?error=no_code",
		},
		{
			name:         "consent_denied",
			query:        url.Values{"state": {"s1"}, "error": {"access_denied"}},
			stateCookie:  "s1",
			wantLocation: testBaseURL + "/login?error=auth_failed",
		},
		{
			name:         "exchange_fails",
			query:        url.Values{"state": {"s1"}, "code": {"bad"}},
			stateCookie:  "s1",
			wantLocation: testBaseURL + "/login?error=auth_failed",
		},
		{
			name:         "userinfo_fails",
			query:        url.Values{"state": {"s1"}, "code": {"good"}},
			stateCookie:  "s1",
			userErr:      errors.New("userinfo down"),
			wantLocation: testBaseURL + "/login?error=auth_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.client.info = &gdocs.UserInfo{ID: "u1", Email: "a@example.com", Name: "Ann"}
			h.client.err = tt.userErr

			var cookies []*http.Cookie
			if tt.stateCookie != "" {
				cookies = append(cookies, &http.Cookie{Name: auth.StateCookieName, Value: tt.stateCookie})
			}

			rec := h.do(http.MethodGet, auth.CallbackPath+"?"+tt.query.Encode(), "", cookies...)
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))

			var session *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == auth.SessionCookieName {
					session = c
				}
			}

			if !tt.wantSession {
				assert.Nil(t, session)
				assert.Equal(t, 0, h.manager.Store().Len())
				return
			}

			require.NotNil(t, session)
			assert.Equal(t, 1, h.manager.Store().Len())
			assert.Equal(t, "at-1", h.gotTok.AccessToken)

			check := h.do(http.MethodGet, "/api/session", "", session)
			assert.JSONEq(t, `{"isLoggedIn":true,"email":"a@example.com","name":"Ann"}`, check.Body.String())
		})
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.login(validToken())

	rec := h.do(http.MethodPost, "/api/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, 0, h.manager.Store().Len())

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie should be cleared")
}

func TestRefreshRules(t *testing.T) {
	t.Run("refetches_within_ttl", func(t *testing.T) {
		h := newHarness(t)
		cookie, _ := h.login(validToken())

		rec := h.do(http.MethodPost, "/api/rules/refresh", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"patterns":1}`, rec.Body.String())

		rec = h.do(http.MethodPost, "/api/rules/refresh", "", cookie)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, 2, h.rules.calls, "every refresh should reach the source")
	})

	t.Run("first_load_fails", func(t *testing.T) {
		h := newHarness(t)
		h.rules.fail(errors.New("feed down"))
		cookie, _ := h.login(validToken())

		rec := h.do(http.MethodPost, "/api/rules/refresh", "", cookie)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"error":"Failed to load rules"}`, rec.Body.String())
	})

	t.Run("disabled_without_rules", func(t *testing.T) {
		h := newHarness(t)
		srv, err := New(Options{
			Auth:       h.manager,
			Operations: operation.New(nil),
			Logger:     zerolog.Nop(),
		})
		require.NoError(t, err)

		cookie, _ := h.login(validToken())
		req := httptest.NewRequest(http.MethodPost, "/api/rules/refresh", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestNew(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth manager is required")
}
