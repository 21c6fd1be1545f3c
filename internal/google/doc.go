// Package google provides OAuth2 authentication for the Gmail API.
//
// Client credentials come from a Google Cloud "installed app" credentials
// file (credentials.json). The user's token is persisted in a token file
// (token.json) that is compatible with the authorized_user format written
// by Google's Python client libraries, so existing tokens keep working.
//
// When no token exists, the first request runs the loopback authorization
// flow: a one-shot HTTP listener on 127.0.0.1 receives the authorization
// code, the code is exchanged with PKCE, and the token is saved. Refreshed
// tokens are written back to the token file.
package google
