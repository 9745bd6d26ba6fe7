// Package document models the parts of a Google Docs document tree that the
// formatter reads. Field names follow the Docs REST JSON so a fetched
// document decodes straight into these types.
package document

import (
	"encoding/json"

	"gitlab.com/tozd/go/errors"
)

// 📄 Summary identifies a document in a listing
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// 📚 FullDocument is a fetched document with its body and footnotes
type FullDocument struct {
	DocumentID string              `json:"documentId"`
	Title      string              `json:"title,omitempty"`
	Body       *Body               `json:"body,omitempty"`
	Footnotes  map[string]Footnote `json:"footnotes,omitempty"`
}

// Body holds the top level content of a document
type Body struct {
	Content []ContentElement `json:"content,omitempty"`
}

// Footnote holds the content of one footnote
type Footnote struct {
	FootnoteID string           `json:"footnoteId,omitempty"`
	Content    []ContentElement `json:"content,omitempty"`
}

// Kind names the variant a ContentElement carries
type Kind int

const (
	KindOther Kind = iota
	KindParagraph
)

func (k Kind) String() string {
	if k == KindParagraph {
		return "paragraph"
	}
	return "other"
}

// 🧱 ContentElement is one structural element. Only the paragraph variant
// carries text; the others are kept raw.
type ContentElement struct {
	StartIndex      int64           `json:"startIndex,omitempty"`
	EndIndex        int64           `json:"endIndex,omitempty"`
	Paragraph       *Paragraph      `json:"paragraph,omitempty"`
	Table           json.RawMessage `json:"table,omitempty"`
	SectionBreak    json.RawMessage `json:"sectionBreak,omitempty"`
	TableOfContents json.RawMessage `json:"tableOfContents,omitempty"`
}

// Kind reports which variant the element carries
func (e ContentElement) Kind() Kind {
	if e.Paragraph != nil {
		return KindParagraph
	}
	return KindOther
}

// Paragraph is an ordered list of inline elements
type Paragraph struct {
	Elements []ParagraphElement `json:"elements,omitempty"`
}

// ParagraphElement is an inline element; only text runs matter here
type ParagraphElement struct {
	TextRun *TextRun `json:"textRun,omitempty"`
}

// TextRun is a span of text sharing one style
type TextRun struct {
	Content   string    `json:"content,omitempty"`
	TextStyle TextStyle `json:"textStyle,omitempty"`
}

type TextStyle struct {
	Link *Link `json:"link,omitempty"`
}

// 🔗 Link is the target of a hyperlinked run
type Link struct {
	URL        string `json:"url,omitempty"`
	BookmarkID string `json:"bookmarkId,omitempty"`
	HeadingID  string `json:"headingId,omitempty"`
}

// IsEmpty reports whether the link points nowhere
func (l *Link) IsEmpty() bool {
	return l == nil || (l.URL == "" && l.BookmarkID == "" && l.HeadingID == "")
}

// Decode parses a Docs REST JSON document
func Decode(data []byte) (*FullDocument, error) {
	var doc FullDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Errorf("decoding document: %w", err)
	}
	return &doc, nil
}
