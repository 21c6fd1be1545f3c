package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/mailpipe/internal/config"
	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/google"
	"github.com/teemow/mailpipe/internal/logging"
)

func newAuthCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and store the OAuth token",
		Long: `Run the browser authorization flow and write the OAuth token file.

The consent URL is printed to stderr. After you approve access, Google
redirects the browser to a temporary listener on 127.0.0.1 and the token is
saved to the token file (--token). The server then starts without prompting.

If a token already exists, auth only verifies it. Use --force to authorize
again, for example after changing --read-only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runAuth(cmd.Context(), cfg, force)
		},
	}

	addAuthFlags(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Authorize again even if a token exists")
	return cmd
}

func runAuth(ctx context.Context, cfg config.Config, force bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(os.Stderr, cfg.Debug)

	oauthConf, err := google.LoadConfig(cfg.CredentialsPath, google.Scopes(cfg.ReadOnly))
	if err != nil {
		return err
	}

	tokens := google.NewFileTokenStore(cfg.TokenPath, oauthConf)
	if force || !tokens.Exists() {
		if _, err := google.Authenticate(ctx, oauthConf, tokens, newAuthorizer(logger, os.Stderr), nil); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Token saved to %s\n", tokens.Path())
	}

	ts := google.NewTokenSource(ctx, oauthConf, tokens, google.WithLogger(logger))
	client, err := gmail.NewClient(ctx, google.NewHTTPClient(ts), gmail.WithUserID(cfg.UserID), gmail.WithLogger(logger))
	if err != nil {
		return err
	}
	email, err := client.Profile(ctx)
	if err != nil {
		return fmt.Errorf("token check failed: %w", err)
	}

	fmt.Printf("Authorized as %s\n", email)
	return nil
}
