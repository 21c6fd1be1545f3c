package google

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mailpipe/internal/logging"
)

const (
	defaultLoopbackAddr = "127.0.0.1:0"
	callbackPath        = "/"
	shutdownTimeout     = 2 * time.Second
)

// LoopbackAuthorizer runs the installed-app authorization flow. It listens
// on a loopback port, hands the consent URL to Prompt and waits for Google
// to redirect the browser back with an authorization code.
type LoopbackAuthorizer struct {
	// Addr is the listen address. Defaults to 127.0.0.1 on a random port.
	Addr string
	// Prompt shows the consent URL to the user.
	Prompt func(authURL string)
	Logger *slog.Logger
}

type callbackResult struct {
	code string
	err  error
}

// Authorize implements Authorizer.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := a.Addr
	if addr == "" {
		addr = defaultLoopbackAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start loopback listener: %w", err)
	}

	c := *conf
	c.RedirectURL = "http://" + ln.Addr().String() + callbackPath

	state := rand.Text()
	verifier := oauth2.GenerateVerifier()
	authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Loopback listener stopped", logging.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Waiting for OAuth authorization", slog.String("redirect_url", c.RedirectURL))
	if a.Prompt != nil {
		a.Prompt(authURL)
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := c.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// callbackHandler accepts the first redirect that carries the expected
// state. Later requests get a 404.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != callbackPath {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("authorization response carries no code")
		default:
			res.code = q.Get("code")
		}

		select {
		case results <- res:
		default:
			http.NotFound(w, r)
			return
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
	})
}
