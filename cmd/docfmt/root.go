package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walteh/docfmt/cmd/docfmt/commands"
	"github.com/walteh/docfmt/cmd/docfmt/opts"
	"github.com/walteh/docfmt/pkg/log"
)

// newRootCmd builds the command tree around o
func newRootCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docfmt",
		Short: "Normalize the transliteration of Google Docs documents",
		Long: `docfmt applies a shared list of transliteration rules to Google Docs.
It previews every paragraph whose text would change and can write the
changes back with find-and-replace requests.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd, o)
			return o.LoadConfig(cmd.Context())
		},
	}

	addRootFlags(cmd, o)

	cmd.AddCommand(
		commands.NewServeCmd(o),
		commands.NewListCmd(o),
		commands.NewPreviewCmd(o),
		commands.NewApplyCmd(o),
		commands.NewNormalizeCmd(o),
	)

	return cmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, o *opts.RootOpts) {
	cmd.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", "", "config file path (.yaml, .hcl or .json); the environment is used when empty")
	cmd.PersistentFlags().BoolVarP(&o.Debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&o.Token, "token", "", "Google access token (defaults to $"+opts.TokenEnv+")")
	cmd.PersistentFlags().StringVar(&o.RulesURL, "rules-url", "", "rule feed url, overrides the config")
	cmd.PersistentFlags().StringVar(&o.RulesFile, "rules-file", "", "rule file, overrides the config")
}

// setupLogging configures zerolog and the console from flags
func setupLogging(cmd *cobra.Command, o *opts.RootOpts) {
	level := zerolog.InfoLevel
	if o.Debug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).Level(level).With().Timestamp().Logger()

	if o.Console == nil {
		consoleLevel := zerolog.Disabled
		if o.Debug {
			consoleLevel = zerolog.DebugLevel
		}
		o.Console = log.New(cmd.OutOrStdout(), consoleLevel)
	}

	ctx := logger.WithContext(cmd.Context())
	ctx = log.NewContext(ctx, o.Console)
	cmd.SetContext(ctx)
}
