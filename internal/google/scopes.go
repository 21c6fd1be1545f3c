package google

import (
	gmail "google.golang.org/api/gmail/v1"
)

// DefaultOAuthScopes are requested when the server may change the mailbox:
// label edits need gmail.modify, drafts need gmail.compose and outgoing mail
// needs gmail.send.
var DefaultOAuthScopes = []string{
	gmail.GmailModifyScope,
	gmail.GmailComposeScope,
	gmail.GmailSendScope,
}

// ReadOnlyOAuthScopes are requested when the server runs in read-only mode.
var ReadOnlyOAuthScopes = []string{
	gmail.GmailReadonlyScope,
}

// Scopes returns the scope set for the given mode.
func Scopes(readOnly bool) []string {
	if readOnly {
		return ReadOnlyOAuthScopes
	}
	return DefaultOAuthScopes
}
