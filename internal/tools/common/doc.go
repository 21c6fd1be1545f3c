// Package common provides the pieces every tool handler shares: the
// instrumentation wrapper, argument extraction with validation, and the
// conversion of results and classified errors into tool results.
package common
