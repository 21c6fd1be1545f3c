// Package gmail is the remote mail client. It wraps the Gmail API users
// service and is the only package that talks to Gmail.
//
// Every call goes through the same path: a quota-weighted rate limiter,
// a bounded retry state machine for transient failures, and classification
// of whatever error remains into the kinds defined by package mailerr.
// Context cancellation is never retried and is returned as is.
//
// Message listing is lazy. ListMessages returns an iterator that fetches
// one page per round trip and stops at the requested limit:
//
//	for ref, err := range client.ListMessages(ctx, "from:alice", 20) {
//	    if err != nil {
//	        return err
//	    }
//	    msg, err := client.GetMessage(ctx, ref.ID)
//	    ...
//	}
//
// Outgoing mail is composed with enmime and sent either directly or through
// a draft.
package gmail
