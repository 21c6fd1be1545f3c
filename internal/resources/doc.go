// Package resources exposes messages and threads as read-only MCP
// resources. Resources are rendered to markdown and returned inline; they
// are never written to the scratch directory.
package resources
