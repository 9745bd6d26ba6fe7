package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `{
	"documentId": "doc-1",
	"title": "Notes",
	"body": {
		"content": [
			{"endIndex": 1, "sectionBreak": {"sectionStyle": {}}},
			{"startIndex": 1, "endIndex": 30, "paragraph": {"elements": [
				{"textRun": {"content": "The hadith ", "textStyle": {}}},
				{"textRun": {"content": "source", "textStyle": {"link": {"url": "https://example.com"}}}},
				{"pageBreak": {}}
			]}},
			{"table": {"rows": 1, "columns": 1}}
		]
	},
	"footnotes": {
		"kix.fn1": {"footnoteId": "kix.fn1", "content": [
			{"paragraph": {"elements": [{"textRun": {"content": "See Al-Dhahabi\n"}}]}}
		]}
	}
}`

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(sampleDocument))
	require.NoError(t, err, "decoding should succeed")

	assert.Equal(t, "doc-1", doc.DocumentID)
	assert.Equal(t, "Notes", doc.Title)
	require.NotNil(t, doc.Body)
	require.Len(t, doc.Body.Content, 3)

	assert.Equal(t, KindOther, doc.Body.Content[0].Kind(), "section break is not a paragraph")
	assert.Equal(t, KindParagraph, doc.Body.Content[1].Kind())
	assert.Equal(t, KindOther, doc.Body.Content[2].Kind(), "table is not a paragraph")
	assert.NotEmpty(t, doc.Body.Content[2].Table, "table payload should be kept raw")

	elements := doc.Body.Content[1].Paragraph.Elements
	require.Len(t, elements, 3)
	assert.True(t, elements[0].TextRun.TextStyle.Link.IsEmpty())
	assert.False(t, elements[1].TextRun.TextStyle.Link.IsEmpty())
	assert.Nil(t, elements[2].TextRun, "non text elements have no run")

	require.Contains(t, doc.Footnotes, "kix.fn1")
	assert.Equal(t, "See Al-Dhahabi\n", doc.Footnotes["kix.fn1"].Content[0].Paragraph.Elements[0].TextRun.Content)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"body": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding document")
}

func TestLinkIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		link *Link
		want bool
	}{
		{name: "nil", link: nil, want: true},
		{name: "zero", link: &Link{}, want: true},
		{name: "url", link: &Link{URL: "https://example.com"}, want: false},
		{name: "bookmark", link: &Link{BookmarkID: "id.1"}, want: false},
		{name: "heading", link: &Link{HeadingID: "h.1"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.link.IsEmpty())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "paragraph", KindParagraph.String())
	assert.Equal(t, "other", KindOther.String())
}
