// Package diff holds the change records produced by the formatter.
//
// A Change says "replace this paragraph text with that text". Changes are
// deduplicated on their fields and mapped to Docs replaceAllText requests
// only right before submission.
package diff
