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

package diff

// 🔁 Change replaces the full text of one paragraph
type Change struct {
	From string `json:"from"`
	To   string `json:"to"`
	// CaseInsensitive is tri-state: nil and false are different changes
	CaseInsensitive *bool `json:"caseInsensitive,omitempty"`
}

// MatchCase reports whether the replacement must match letter case
func (c Change) MatchCase() bool {
	return c.CaseInsensitive == nil || !*c.CaseInsensitive
}

type caseKey int

const (
	caseUnset caseKey = iota
	caseSensitive
	caseInsensitive
)

type changeKey struct {
	from, to string
	casing   caseKey
}

func (c Change) key() changeKey {
	k := changeKey{from: c.From, to: c.To, casing: caseUnset}
	if c.CaseInsensitive != nil {
		if *c.CaseInsensitive {
			k.casing = caseInsensitive
		} else {
			k.casing = caseSensitive
		}
	}
	return k
}

// 🧹 Dedupe drops every change already seen earlier in the list. The first
// occurrence wins and order is kept.
func Dedupe(changes []Change) []Change {
	if changes == nil {
		return nil
	}

	seen := make(map[changeKey]struct{}, len(changes))
	unique := make([]Change, 0, len(changes))
	for _, c := range changes {
		k := c.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}

// 📦 ReplaceRequest is the replaceAllText request of a Docs batchUpdate
type ReplaceRequest struct {
	ReplaceAllText ReplaceAllText `json:"replaceAllText"`
}

type ReplaceAllText struct {
	ContainsText ContainsText `json:"containsText"`
	ReplaceText  string       `json:"replaceText"`
}

type ContainsText struct {
	Text      string `json:"text"`
	MatchCase bool   `json:"matchCase"`
}

// 🗺️ ToReplaceRequest maps a change onto the wire request
func ToReplaceRequest(c Change) ReplaceRequest {
	return ReplaceRequest{
		ReplaceAllText: ReplaceAllText{
			ContainsText: ContainsText{
				Text:      c.From,
				MatchCase: c.MatchCase(),
			},
			ReplaceText: c.To,
		},
	}
}

// ToReplaceRequests maps every change, keeping order
func ToReplaceRequests(changes []Change) []ReplaceRequest {
	reqs := make([]ReplaceRequest, 0, len(changes))
	for _, c := range changes {
		reqs = append(reqs, ToReplaceRequest(c))
	}
	return reqs
}

// Reversed returns a copy of changes in reverse order
func Reversed(changes []Change) []Change {
	out := make([]Change, len(changes))
	for i, c := range changes {
		out[len(changes)-1-i] = c
	}
	return out
}
