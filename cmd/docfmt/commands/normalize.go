package commands

import (
	"bufio"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/docfmt/cmd/docfmt/opts"
	"github.com/walteh/docfmt/pkg/normalize"
	"github.com/walteh/docfmt/pkg/rules"
	"github.com/walteh/docfmt/pkg/trie"
)

// NewNormalizeCmd creates the normalize command
func NewNormalizeCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize text read from stdin",
		Long: `Normalize runs every line of stdin through the formatting pipeline
and writes the result to stdout. Without a rules source only the built-in
cleanup stages run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var t *trie.Trie
			if o.Config.HasRules() {
				src, err := o.Source()
				if err != nil {
					return err
				}
				if t, err = rules.Load(ctx, src); err != nil {
					return err
				}
			} else {
				zerolog.Ctx(ctx).Debug().Msg("no rules configured, running cleanup stages only")
			}

			out := bufio.NewWriter(cmd.OutOrStdout())
			defer out.Flush()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for scanner.Scan() {
				if _, err := fmt.Fprintln(out, normalize.Apply(scanner.Text(), t)); err != nil {
					return errors.Errorf("writing output: %w", err)
				}
			}
			if err := scanner.Err(); err != nil {
				return errors.Errorf("reading input: %w", err)
			}
			return nil
		},
	}

	return cmd
}
