// Package batch holds the helpers for tools that act on several ids in
// one call: parsing an id parameter that may be a string or an array, and
// reporting per-id outcomes so that one failure does not hide the others.
package batch
