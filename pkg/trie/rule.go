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

package trie

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🎯 MatchType controls where a rule pattern may match inside a text
type MatchType string

const (
	MatchAny    MatchType = "any"    // anywhere, including inside words
	MatchWhole  MatchType = "whole"  // word boundary on both sides
	MatchPrefix MatchType = "prefix" // word boundary at the start only
	MatchAlone  MatchType = "alone"  // whitespace or text edge on both sides
)

// strictness ranks modes when two rules match the same span
func (m MatchType) strictness() int {
	switch m {
	case MatchAlone:
		return 3
	case MatchWhole:
		return 2
	case MatchPrefix:
		return 1
	default:
		return 0
	}
}

func (m MatchType) orDefault() MatchType {
	if m == "" {
		return MatchAny
	}
	return m
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *MatchType) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "any":
		*m = MatchAny
	case "whole":
		*m = MatchWhole
	case "prefix":
		*m = MatchPrefix
	case "alone":
		*m = MatchAlone
	default:
		return errors.Errorf("unknown match type %q", string(text))
	}
	return nil
}

// 🔠 Casing controls whether a rule pattern matches regardless of letter case
type Casing string

const (
	CaseSensitive   Casing = "sensitive"
	CaseInsensitive Casing = "insensitive"
)

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Casing) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "sensitive":
		*c = CaseSensitive
	case "insensitive":
		*c = CaseInsensitive
	default:
		return errors.Errorf("unknown casing %q", string(text))
	}
	return nil
}

// 🔄 Options tune how the patterns of a Rule are matched
type Options struct {
	Match  MatchType `json:"match,omitempty" yaml:"match,omitempty"`
	Casing Casing    `json:"casing,omitempty" yaml:"casing,omitempty"`
}

// 📜 Rule maps one or more equivalent patterns to a single replacement
type Rule struct {
	From    []string `json:"from" yaml:"from"`
	To      string   `json:"to" yaml:"to"`
	Options Options  `json:"options,omitempty" yaml:"options,omitempty"`
}
