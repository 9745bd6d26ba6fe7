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

package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"

	"github.com/walteh/docfmt/pkg/auth"
	"github.com/walteh/docfmt/pkg/gdocs"
	"github.com/walteh/docfmt/pkg/operation"
	"github.com/walteh/docfmt/pkg/trie"
)

const shutdownTimeout = 10 * time.Second

// 🏭 ClientFactory builds a Google client for a signed-in user
type ClientFactory func(ctx context.Context, token *oauth2.Token) (gdocs.Client, error)

// DefaultClientFactory talks to the real Google APIs with a static token
func DefaultClientFactory(ctx context.Context, token *oauth2.Token) (gdocs.Client, error) {
	svc, err := gdocs.NewFromTokenSource(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// 🔄 RuleRefresher drops the cached rules and loads them again
type RuleRefresher interface {
	Invalidate()
	Trie(ctx context.Context) (*trie.Trie, error)
}

// 🌐 Server serves the docfmt HTTP API
type Server struct {
	auth      *auth.Manager
	ops       *operation.Service
	rules     RuleRefresher
	newClient ClientFactory
	baseURL   string
	logger    zerolog.Logger
}

// Options configure a Server
type Options struct {
	Auth       *auth.Manager
	Operations *operation.Service
	Rules      RuleRefresher // optional, enables POST /api/rules/refresh
	NewClient  ClientFactory
	BaseURL    string
	Logger     zerolog.Logger
}

// 🏭 New creates a Server
func New(opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, errors.Errorf("auth manager is required")
	}
	if opts.Operations == nil {
		return nil, errors.Errorf("operation service is required")
	}
	if opts.NewClient == nil {
		opts.NewClient = DefaultClientFactory
	}

	return &Server{
		auth:      opts.Auth,
		ops:       opts.Operations,
		rules:     opts.Rules,
		newClient: opts.NewClient,
		baseURL:   opts.BaseURL,
		logger:    opts.Logger,
	}, nil
}

// 🗺️ Handler returns the routed API
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(s.auth.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/google", s.handle(s.handleLogin))
		r.Get("/auth/google/callback", s.handleCallback)
		r.Post("/auth/logout", s.handle(s.handleLogout))
		r.Get("/session", s.handle(s.handleSession))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession)
			r.Get("/documents", s.handle(s.handleListDocuments))
			r.Get("/documents/{id}/format", s.handle(s.handlePreview))
			r.Post("/documents/{id}/format", s.handle(s.handleApply))
			if s.rules != nil {
				r.Post("/rules/refresh", s.handle(s.handleRefreshRules))
			}
		})
	})

	return r
}

// 🚀 ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Errorf("shutting down http server: %w", err)
	}
	return nil
}
