// Package trie implements multi-pattern search and replace over a rune trie.
//
// A Trie is built once from a rule list and is never mutated afterwards, so a
// single instance can be shared by any number of goroutines.
package trie

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type terminal struct {
	replacement string
	match       MatchType
}

type node struct {
	children  map[rune]*node
	terminals []terminal
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// 🌳 Trie holds the compiled rule patterns
type Trie struct {
	exact  *node // case-sensitive patterns
	folded *node // case-insensitive patterns, keyed by folded runes
	size   int
}

// 🏭 Build compiles rules into a Trie
func Build(rules []Rule) *Trie {
	t := &Trie{
		exact:  newNode(),
		folded: newNode(),
	}

	for _, rule := range rules {
		term := terminal{
			replacement: norm.NFC.String(rule.To),
			match:       rule.Options.Match.orDefault(),
		}

		for _, from := range rule.From {
			if from == "" {
				continue
			}

			pattern := norm.NFC.String(from)
			if rule.Options.Casing == CaseInsensitive {
				t.insert(t.folded, strings.Map(foldRune, pattern), term)
				continue
			}
			t.insert(t.exact, pattern, term)
		}
	}

	return t
}

// a later pattern with the same mode replaces the earlier one
func (t *Trie) insert(root *node, pattern string, term terminal) {
	n := root
	for _, r := range pattern {
		child, ok := n.children[r]
		if !ok {
			child = newNode()
			n.children[r] = child
		}
		n = child
	}

	for i := range n.terminals {
		if n.terminals[i].match == term.match {
			n.terminals[i] = term
			return
		}
	}
	n.terminals = append(n.terminals, term)
	t.size++
}

// 📏 Len returns the number of distinct patterns in the trie
func (t *Trie) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// 🔍 SearchAndReplace scans text left to right and replaces the best rule
// match at each position. Text without matches is returned unchanged, byte
// for byte, even when it is not valid UTF-8.
func (t *Trie) SearchAndReplace(text string) string {
	if t.Len() == 0 || text == "" {
		return text
	}

	runes, offsets := decode(text)
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(runes); {
		m, ok := t.bestMatch(runes, i)
		if !ok {
			b.WriteString(text[offsets[i]:offsets[i+1]])
			i++
			continue
		}

		b.WriteString(m.output(runes[i:m.end]))
		i = m.end
	}

	return b.String()
}

// decode splits text into runes. offsets[i] is the byte index of runes[i]
// and offsets[len(runes)] is len(text). Invalid bytes decode to
// utf8.RuneError one byte at a time.
func decode(text string) ([]rune, []int) {
	runes := make([]rune, 0, len(text))
	offsets := make([]int, 0, len(text)+1)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		runes = append(runes, r)
		offsets = append(offsets, i)
		i += size
	}
	return runes, append(offsets, len(text))
}

type candidate struct {
	end    int
	term   terminal
	folded bool
}

func (t *Trie) bestMatch(runes []rune, start int) (candidate, bool) {
	var best candidate
	found := false

	consider := func(c candidate) {
		if !c.valid(runes, start) {
			return
		}
		if !found || c.beats(best, runes) {
			best = c
			found = true
		}
	}

	walk(t.exact, runes, start, false, consider)
	walk(t.folded, runes, start, true, consider)

	return best, found
}

func walk(root *node, runes []rune, start int, folded bool, visit func(candidate)) {
	n := root
	for i := start; i < len(runes); i++ {
		r := runes[i]
		if folded {
			r = foldRune(r)
		}

		n = n.children[r]
		if n == nil {
			return
		}

		for _, term := range n.terminals {
			visit(candidate{end: i + 1, term: term, folded: folded})
		}
	}
}

func (c candidate) valid(runes []rune, start int) bool {
	switch c.term.match {
	case MatchWhole:
		return startsWord(runes, start) && endsWord(runes, c.end)
	case MatchPrefix:
		return startsWord(runes, start)
	case MatchAlone:
		return (start == 0 || unicode.IsSpace(runes[start-1])) &&
			(c.end == len(runes) || unicode.IsSpace(runes[c.end]))
	default:
		return true
	}
}

// clean reports whether the match leaves no dangling part of a word behind
func (c candidate) clean(runes []rune) bool {
	return endsWord(runes, c.end) || !isWordRune(runes[c.end-1])
}

func (c candidate) beats(other candidate, runes []rune) bool {
	if cc, oc := c.clean(runes), other.clean(runes); cc != oc {
		return cc
	}
	if c.end != other.end {
		return c.end > other.end
	}
	if cs, ost := c.term.match.strictness(), other.term.match.strictness(); cs != ost {
		return cs > ost
	}
	return !c.folded && other.folded
}

func (c candidate) output(matched []rune) string {
	if !c.folded {
		return c.term.replacement
	}
	return carryCase(matched, c.term.replacement)
}

func startsWord(runes []rune, i int) bool {
	return i == 0 || !isWordRune(runes[i-1])
}

func endsWord(runes []rune, i int) bool {
	return i == len(runes) || !isWordRune(runes[i])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func foldRune(r rune) rune {
	return unicode.ToLower(r)
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r)
}

// carryCase applies the capitalisation of source to replacement: all caps
// stays all caps, a leading capital capitalises the first cased letter.
func carryCase(source []rune, replacement string) string {
	var cased []rune
	for _, r := range source {
		if isCased(r) {
			cased = append(cased, r)
		}
	}
	if len(cased) == 0 {
		return replacement
	}

	allUpper := true
	for _, r := range cased {
		if !unicode.IsUpper(r) {
			allUpper = false
			break
		}
	}
	if allUpper && len(cased) > 1 {
		return strings.ToUpper(replacement)
	}

	if !unicode.IsUpper(cased[0]) {
		return replacement
	}

	out := []rune(replacement)
	for i, r := range out {
		if isCased(r) {
			out[i] = unicode.ToUpper(r)
			break
		}
	}
	return string(out)
}
