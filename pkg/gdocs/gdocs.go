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

package gdocs

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/walteh/docfmt/pkg/diff"
	"github.com/walteh/docfmt/pkg/document"
)

// DocumentMimeType is the Drive mime type of a Google Docs document
const DocumentMimeType = "application/vnd.google-apps.document"

// 👤 UserInfo is the profile of the signed-in user
type UserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// 📡 Client is everything the formatter needs from Google
type Client interface {
	ListDocuments(ctx context.Context) ([]document.Summary, error)
	GetDocument(ctx context.Context, id string) (*document.FullDocument, error)
	BatchReplace(ctx context.Context, id string, reqs []diff.ReplaceRequest) error
	UserInfo(ctx context.Context) (*UserInfo, error)
}

var _ Client = (*Service)(nil)

// 🔌 Service implements Client with the Docs, Drive and OAuth2 APIs
type Service struct {
	docs  *docs.Service
	drive *drive.Service
	users *oauth2api.Service
}

// New creates a Service. The options are shared by all three APIs.
func New(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	docsSvc, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Errorf("creating docs service: %w", err)
	}

	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Errorf("creating drive service: %w", err)
	}

	usersSvc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Errorf("creating userinfo service: %w", err)
	}

	return &Service{
		docs:  docsSvc,
		drive: driveSvc,
		users: usersSvc,
	}, nil
}

// NewFromTokenSource creates a Service authorised by ts
func NewFromTokenSource(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*Service, error) {
	return New(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
}

// 📋 ListDocuments lists every Docs document visible to the user
func (s *Service) ListDocuments(ctx context.Context) ([]document.Summary, error) {
	var out []document.Summary

	call := s.drive.Files.List().
		Q("mimeType='" + DocumentMimeType + "' and trashed=false").
		Fields("nextPageToken, files(id, name)").
		PageSize(100)

	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			out = append(out, document.Summary{ID: f.Id, Name: f.Name})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("listing documents: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Int("documents", len(out)).Msg("listed documents")

	return out, nil
}

// 📖 GetDocument fetches a document with its body and footnotes
func (s *Service) GetDocument(ctx context.Context, id string) (*document.FullDocument, error) {
	doc, err := s.docs.Documents.Get(id).Context(ctx).Do()
	if err != nil {
		return nil, errors.Errorf("getting document %s: %w", id, err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Errorf("encoding document %s: %w", id, err)
	}

	full, err := document.Decode(data)
	if err != nil {
		return nil, errors.Errorf("converting document %s: %w", id, err)
	}

	return full, nil
}

// ✍️ BatchReplace submits reqs as one batchUpdate
func (s *Service) BatchReplace(ctx context.Context, id string, reqs []diff.ReplaceRequest) error {
	if len(reqs) == 0 {
		return nil
	}

	body := &docs.BatchUpdateDocumentRequest{
		Requests: make([]*docs.Request, 0, len(reqs)),
	}
	for _, r := range reqs {
		body.Requests = append(body.Requests, toDocsRequest(r))
	}

	if _, err := s.docs.Documents.BatchUpdate(id, body).Context(ctx).Do(); err != nil {
		return errors.Errorf("updating document %s: %w", id, err)
	}

	zerolog.Ctx(ctx).Info().Str("document", id).Int("requests", len(reqs)).Msg("document updated")

	return nil
}

// matchCase false and an empty replacement must still be sent
func toDocsRequest(r diff.ReplaceRequest) *docs.Request {
	return &docs.Request{
		ReplaceAllText: &docs.ReplaceAllTextRequest{
			ContainsText: &docs.SubstringMatchCriteria{
				Text:            r.ReplaceAllText.ContainsText.Text,
				MatchCase:       r.ReplaceAllText.ContainsText.MatchCase,
				ForceSendFields: []string{"MatchCase"},
			},
			ReplaceText:     r.ReplaceAllText.ReplaceText,
			ForceSendFields: []string{"ReplaceText"},
		},
	}
}

// 👤 UserInfo fetches the profile of the token owner
func (s *Service) UserInfo(ctx context.Context) (*UserInfo, error) {
	info, err := s.users.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, errors.Errorf("getting user info: %w", err)
	}

	return &UserInfo{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

var authErrorMarkers = []string{
	"Invalid Credentials",
	"invalid_grant",
	"token expired",
	"invalid_token",
}

// 🔐 IsAuthError reports whether err means the user's Google credentials
// are no longer usable
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return true
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}

	msg := err.Error()
	for _, marker := range authErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
