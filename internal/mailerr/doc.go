// Package mailerr defines the error taxonomy shared by the mail client,
// the renderer, the scratch store and the tool surface.
//
// Every failure that crosses a package boundary is an *Error carrying a
// Kind, the operation that failed and the id it failed for. Callers
// inspect errors with KindOf or errors.As rather than by string matching.
package mailerr
