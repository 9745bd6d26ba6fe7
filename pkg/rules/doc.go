// Package rules loads the replacement rule list from a feed or a file and
// keeps the trie built from it.
package rules
