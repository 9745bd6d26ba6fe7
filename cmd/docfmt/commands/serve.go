package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/docfmt/cmd/docfmt/opts"
	"github.com/walteh/docfmt/pkg/auth"
	"github.com/walteh/docfmt/pkg/operation"
	"github.com/walteh/docfmt/pkg/server"
)

// NewServeCmd creates the serve command
func NewServeCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the docfmt HTTP API",
		Long: `Serve starts the HTTP API used by the web dashboard.
It will:
1. Validate the Google client and session settings
2. Sign users in with Google OAuth
3. List, preview and format documents for signed-in users`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := o.Config

			if err := cfg.ValidateServer(); err != nil {
				return errors.Errorf("validating server config: %w", err)
			}

			mgr, err := auth.NewManager(auth.Options{
				Google: auth.GoogleConfig{
					ClientID:     cfg.Google.ClientID,
					ClientSecret: cfg.Google.ClientSecret,
					BaseURL:      cfg.Server.BaseURL,
				},
				Secret:       []byte(cfg.Session.Secret),
				TTL:          cfg.Session.TTL.Std(),
				SecureCookie: cfg.Server.SecureCookies,
			})
			if err != nil {
				return errors.Errorf("creating auth manager: %w", err)
			}

			// batch updates stop waiting once the client goes away
			ops, err := o.Operations(operation.WithRunner(operation.NewRunner(true)))
			if err != nil {
				return err
			}

			cache, err := o.Rules()
			if err != nil {
				return err
			}

			srv, err := server.New(server.Options{
				Auth:       mgr,
				Operations: ops,
				Rules:      cache,
				BaseURL:    cfg.Server.BaseURL,
				Logger:     *zerolog.Ctx(ctx),
			})
			if err != nil {
				return errors.Errorf("creating server: %w", err)
			}

			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	return cmd
}
