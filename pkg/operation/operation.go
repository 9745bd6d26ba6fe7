package operation

import (
	"context"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/docfmt/pkg/diff"
	"github.com/walteh/docfmt/pkg/document"
	"github.com/walteh/docfmt/pkg/format"
	"github.com/walteh/docfmt/pkg/gdocs"
	"github.com/walteh/docfmt/pkg/trie"
)

// ErrInvalidPattern is returned for a malformed document name glob
var ErrInvalidPattern = errors.New("invalid document pattern")

// 🌳 TrieSource hands out the current rule trie
type TrieSource interface {
	Trie(ctx context.Context) (*trie.Trie, error)
}

// 🔍 Preview is the set of changes the formatter proposes for a document
type Preview struct {
	DocumentID string        `json:"documentId"`
	Title      string        `json:"title"`
	Changes    []diff.Change `json:"changes"`
}

// ✅ Result describes a submitted batch
type Result struct {
	DocumentID string `json:"documentId"`
	Applied    int    `json:"applied"`
	Retried    bool   `json:"retried"`
}

// 🎮 Service previews and applies formatting
type Service struct {
	rules  TrieSource
	runner *Runner
}

// 🏭 New creates a Service using rules for every formatting pass
func New(rules TrieSource, opts ...Option) *Service {
	s := &Service{
		rules:  rules,
		runner: NewRunner(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option tunes a Service
type Option func(*Service)

// WithRunner sets the runner used to submit batches
func WithRunner(r *Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// 📋 ListDocuments lists documents whose name matches pattern. An empty
// pattern matches everything.
func (s *Service) ListDocuments(ctx context.Context, client gdocs.Client, pattern string) ([]document.Summary, error) {
	docs, err := client.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return FilterDocuments(docs, pattern)
}

// FilterDocuments keeps documents whose name matches the glob pattern
func FilterDocuments(docs []document.Summary, pattern string) ([]document.Summary, error) {
	if pattern == "" {
		return docs, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.Errorf("%w %q", ErrInvalidPattern, pattern)
	}

	out := make([]document.Summary, 0, len(docs))
	for _, d := range docs {
		ok, err := doublestar.Match(pattern, d.Name)
		if err != nil {
			return nil, errors.Errorf("matching %q: %w", d.Name, err)
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// 🔍 Preview fetches the document and the rules together and returns the
// deduplicated changes
func (s *Service) Preview(ctx context.Context, client gdocs.Client, docID string) (*Preview, error) {
	var (
		doc *document.FullDocument
		t   *trie.Trie
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = client.GetDocument(gctx, docID)
		return err
	})
	g.Go(func() error {
		var err error
		t, err = s.rules.Trie(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Errorf("preparing preview of %s: %w", docID, err)
	}

	zerolog.Ctx(ctx).Debug().Str("document", docID).Msg("document and rules fetched")

	changes := diff.Dedupe(format.CollectChanges(ctx, doc, t))
	if changes == nil {
		changes = []diff.Change{}
	}

	title := doc.Title
	if doc.DocumentID != "" {
		docID = doc.DocumentID
	}

	return &Preview{
		DocumentID: docID,
		Title:      title,
		Changes:    changes,
	}, nil
}

// ✍️ Apply submits changes to the document. Without changes it applies what
// Preview would propose. A rejected batch is resubmitted once in reverse
// order unless Google refused the credentials.
func (s *Service) Apply(ctx context.Context, client gdocs.Client, docID string, changes []diff.Change) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if len(changes) == 0 {
		preview, err := s.Preview(ctx, client, docID)
		if err != nil {
			return nil, err
		}
		changes = preview.Changes
	}

	changes = diff.Dedupe(changes)
	result := &Result{DocumentID: docID, Applied: len(changes)}
	if len(changes) == 0 {
		logger.Info().Str("document", docID).Msg("nothing to apply")
		return result, nil
	}

	submit := func(cs []diff.Change) Operation {
		return OperationFunc(func(ctx context.Context) error {
			return client.BatchReplace(ctx, docID, diff.ToReplaceRequests(cs))
		})
	}

	err := s.runner.Run(ctx, submit(changes))
	if err == nil {
		return result, nil
	}
	if gdocs.IsAuthError(err) || ctx.Err() != nil {
		return nil, errors.Errorf("applying changes to %s: %w", docID, err)
	}

	logger.Warn().Err(err).Str("document", docID).Msg("batch update failed, retrying in reverse order")

	if err := s.runner.Run(ctx, submit(diff.Reversed(changes))); err != nil {
		return nil, errors.Errorf("applying changes to %s after retry: %w", docID, err)
	}

	result.Retried = true
	return result, nil
}
