package gdocs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/walteh/docfmt/pkg/diff"
	"github.com/walteh/docfmt/pkg/document"
)

type fakeGoogle struct {
	mu      sync.Mutex
	batches map[string][]diff.ReplaceRequest
	queries []string
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/documents/doc-1":
		fmt.Fprint(w, `{
			"documentId": "doc-1",
			"title": "Notes",
			"body": {"content": [
				{"sectionBreak": {}},
				{"paragraph": {"elements": [{"textRun": {"content": "The hadith\n", "textStyle": {}}}]}}
			]},
			"footnotes": {"kix.1": {"footnoteId": "kix.1", "content": [
				{"paragraph": {"elements": [{"textRun": {"content": "note\n"}}]}}
			]}}
		}`)

	case r.Method == http.MethodGet && r.URL.Path == "/v1/documents/expired":
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"code": 401, "message": "Request had invalid authentication credentials.", "status": "UNAUTHENTICATED"}}`)

	case r.Method == http.MethodPost && r.URL.Path == "/v1/documents/doc-1:batchUpdate":
		var body struct {
			Requests []diff.ReplaceRequest `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.batches["doc-1"] = append(f.batches["doc-1"], body.Requests...)
		f.mu.Unlock()
		fmt.Fprint(w, `{"documentId": "doc-1"}`)

	case r.Method == http.MethodGet && r.URL.Path == "/files":
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		f.mu.Unlock()
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"nextPageToken": "p2", "files": [{"id": "a", "name": "First"}]}`)
			return
		}
		fmt.Fprint(w, `{"files": [{"id": "b", "name": "Second"}]}`)

	case r.Method == http.MethodGet && r.URL.Path == "/oauth2/v2/userinfo":
		fmt.Fprint(w, `{"id": "42", "email": "user@example.com", "name": "User"}`)

	default:
		http.NotFound(w, r)
	}
}

func newTestService(t *testing.T) (*Service, *fakeGoogle) {
	t.Helper()

	fake := &fakeGoogle{batches: map[string][]diff.ReplaceRequest{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := New(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err, "creating service should succeed")

	return svc, fake
}

func TestGetDocument(t *testing.T) {
	svc, _ := newTestService(t)

	doc, err := svc.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", doc.DocumentID)
	assert.Equal(t, "Notes", doc.Title)
	require.NotNil(t, doc.Body)
	require.Len(t, doc.Body.Content, 2)
	assert.Equal(t, document.KindOther, doc.Body.Content[0].Kind())
	assert.Equal(t, "The hadith\n", doc.Body.Content[1].Paragraph.Elements[0].TextRun.Content)
	require.Contains(t, doc.Footnotes, "kix.1")
}

func TestGetDocumentUnauthorized(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetDocument(context.Background(), "expired")
	require.Error(t, err)
	assert.True(t, IsAuthError(err), "401 should be reported as an auth error")
}

func TestListDocuments(t *testing.T) {
	svc, fake := newTestService(t)

	docs, err := svc.ListDocuments(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []document.Summary{{ID: "a", Name: "First"}, {ID: "b", Name: "Second"}}, docs)
	require.Len(t, fake.queries, 2, "both pages should be fetched")
	assert.Contains(t, fake.queries[0], "mimeType='application/vnd.google-apps.document'")
}

func TestBatchReplace(t *testing.T) {
	svc, fake := newTestService(t)
	insensitive := true

	reqs := diff.ToReplaceRequests([]diff.Change{
		{From: "The hadith", To: "The hadīth"},
		{From: "x", To: "", CaseInsensitive: &insensitive},
	})

	require.NoError(t, svc.BatchReplace(context.Background(), "doc-1", reqs))
	assert.Equal(t, reqs, fake.batches["doc-1"], "requests should arrive unchanged")
}

func TestBatchReplaceEmpty(t *testing.T) {
	svc, fake := newTestService(t)

	require.NoError(t, svc.BatchReplace(context.Background(), "doc-1", nil))
	assert.Empty(t, fake.batches, "no request should be sent")
}

func TestUserInfo(t *testing.T) {
	svc, _ := newTestService(t)

	info, err := svc.UserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &UserInfo{ID: "42", Email: "user@example.com", Name: "User"}, info)
}

func TestToDocsRequest(t *testing.T) {
	req := toDocsRequest(diff.ToReplaceRequest(diff.Change{From: "a", To: ""}))

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"replaceAllText":{"containsText":{"text":"a","matchCase":true},"replaceText":""}}`, string(data))
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "api_401", err: errors.Errorf("getting document: %w", &googleapi.Error{Code: http.StatusUnauthorized}), want: true},
		{name: "api_500", err: errors.Errorf("getting document: %w", &googleapi.Error{Code: http.StatusInternalServerError, Message: "backend"}), want: false},
		{name: "token_refresh", err: errors.Errorf("refreshing: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}), want: true},
		{name: "message_invalid_credentials", err: errors.New("googleapi: Error 401: Invalid Credentials"), want: true},
		{name: "message_token_expired", err: errors.New("token expired"), want: true},
		{name: "other", err: errors.New("connection reset"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthError(tt.err))
		})
	}
}
