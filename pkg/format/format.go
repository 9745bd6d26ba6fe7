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

// Package format walks a document and turns every paragraph whose text the
// normalization pipeline rewrites into a diff.Change.
package format

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/docfmt/pkg/diff"
	"github.com/walteh/docfmt/pkg/document"
	"github.com/walteh/docfmt/pkg/normalize"
	"github.com/walteh/docfmt/pkg/trie"
)

// 📝 ExtractPlainText concatenates the text runs of a paragraph element in
// order. Runs carrying a link are left out. The boolean is false when the
// element is not a paragraph.
func ExtractPlainText(ctx context.Context, el document.ContentElement) (string, bool) {
	if el.Kind() != document.KindParagraph {
		return "", false
	}

	var b strings.Builder
	for _, pe := range el.Paragraph.Elements {
		run := pe.TextRun
		if run == nil {
			continue
		}

		if !run.TextStyle.Link.IsEmpty() {
			zerolog.Ctx(ctx).Warn().Str("content", run.Content).Msg("skipping link")
			continue
		}

		b.WriteString(run.Content)
	}

	return b.String(), true
}

// 🔍 Detect compares the trimmed texts and returns a change when they differ
func Detect(original, normalized string) (diff.Change, bool) {
	from := strings.TrimSpace(original)
	to := strings.TrimSpace(normalized)
	if from == to {
		return diff.Change{}, false
	}
	return diff.Change{From: from, To: to}, true
}

// ⚙️ FormatElement runs one element through extraction, the pipeline and
// detection. It returns at most one change.
func FormatElement(ctx context.Context, el document.ContentElement, t *trie.Trie) []diff.Change {
	text, ok := ExtractPlainText(ctx, el)
	if !ok {
		return nil
	}

	change, ok := Detect(text, normalize.Apply(text, t))
	if !ok {
		return nil
	}

	zerolog.Ctx(ctx).Trace().Str("from", change.From).Str("to", change.To).Msg("paragraph changed")

	return []diff.Change{change}
}

// 📚 CollectChanges formats the body and then every footnote of doc. Changes
// keep encounter order and are not deduplicated.
func CollectChanges(ctx context.Context, doc *document.FullDocument, t *trie.Trie) []diff.Change {
	var changes []diff.Change
	if doc == nil {
		return changes
	}

	if doc.Body != nil {
		for _, el := range doc.Body.Content {
			changes = append(changes, FormatElement(ctx, el, t)...)
		}
	}

	// footnotes in id order
	ids := make([]string, 0, len(doc.Footnotes))
	for id := range doc.Footnotes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, el := range doc.Footnotes[id].Content {
			changes = append(changes, FormatElement(ctx, el, t)...)
		}
	}

	zerolog.Ctx(ctx).Debug().
		Str("document", doc.DocumentID).
		Int("footnotes", len(ids)).
		Int("changes", len(changes)).
		Msg("collected changes")

	return changes
}
