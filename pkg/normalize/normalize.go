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

// Package normalize rewrites paragraph text through a fixed chain of stages.
package normalize

import (
	"regexp"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/walteh/docfmt/pkg/trie"
)

// Stage is a pure text rewrite
type Stage func(string) string

// stages returns the pipeline in the only order it may run: punctuation is
// canonical before any matching, and prefixes are fixed after the rules ran.
func stages(t *trie.Trie) []Stage {
	return []Stage{
		Apostrophes,
		Salutations,
		t.SearchAndReplace,
		ArabicPrefixes,
		DoubleApostrophes,
	}
}

// 🔄 Apply runs text through every stage, using t for rule replacements
func Apply(text string, t *trie.Trie) string {
	for _, stage := range stages(t) {
		text = stage(text)
	}
	return text
}

func isTypographicApostrophe(r rune) bool {
	switch r {
	case '\u2018', // left single quotation mark
		'\u2019', // right single quotation mark
		'\u201B', // single high-reversed-9 quotation mark
		'\u02BC': // modifier letter apostrophe
		return true
	}
	return false
}

// runes outside the set, invalid bytes included, pass through untouched
func newApostropheTransformer() transform.Transformer {
	return runes.If(
		runes.Predicate(isTypographicApostrophe),
		runes.Map(func(rune) rune { return '\'' }),
		nil,
	)
}

// ✏️ Apostrophes maps typographic apostrophes and single quotes to '
func Apostrophes(text string) string {
	out, _, err := transform.String(newApostropheTransformer(), text)
	if err != nil {
		return text
	}
	return out
}

// SalutationSymbol is the ligature that stands for the honorific phrase
const SalutationSymbol = "ﷺ"

var salutationPattern = regexp.MustCompile(`(?i)\s*\(\s*(?:` +
	`peace\s+(?:and\s+blessings\s+)?(?:of\s+all[aā]h\s+)?be\s+upon\s+him` +
	`|may\s+all[aā]h\s+bless\s+him\s+and\s+grant\s+him\s+peace` +
	`|s[ae]ll?[aā]ll?[aā]hu?\s+'?ʿ?alayhi\s+wa\s*-?\s*sall?[aā]m` +
	`|p\.?\s*b\.?\s*u\.?\s*h\.?` +
	`|s\.?\s*a\.?\s*w\.?(?:\s*s\.?)?` +
	`)\s*\)`)

// ☪️ Salutations replaces a parenthesised honorific, and the space before
// it, with a single space and SalutationSymbol
func Salutations(text string) string {
	return salutationPattern.ReplaceAllLiteralString(text, " "+SalutationSymbol)
}

// group 1 is the character before the prefix, group 2 the first letter after it
var arabicPrefixPattern = regexp.MustCompile(
	`(^|[^\p{L}\p{M}\p{N}_])(?i:a(?:l|dh|d|n|r|sh|s|th|t|z|ḍ|ṣ|ṭ|ẓ))-(\p{Lu}|ʿ|ʾ)`,
)

// 🔤 ArabicPrefixes writes the definite article before a capitalised name
// as lowercase al-, undoing sun-letter assimilation (Ad-Din becomes al-Din)
func ArabicPrefixes(text string) string {
	return arabicPrefixPattern.ReplaceAllString(text, "${1}al-${2}")
}

var (
	repeatedApostrophes = regexp.MustCompile(`'{2,}`)
	// group 1 is the word rune before the ', group 2 the ʿ or ʾ after it
	apostropheBeforeAyn = regexp.MustCompile(`([\p{L}\p{M}\p{N}])'([ʿʾ])`)
)

// 🧹 DoubleApostrophes collapses runs of ' and drops a ' that sits inside a
// word directly before ʿ or ʾ (Qur'ʾan becomes Qurʾan). Quotes at the edge of
// a word and repeated ʿ or ʾ are left untouched.
func DoubleApostrophes(text string) string {
	text = repeatedApostrophes.ReplaceAllLiteralString(text, "'")
	return apostropheBeforeAyn.ReplaceAllString(text, "${1}${2}")
}
