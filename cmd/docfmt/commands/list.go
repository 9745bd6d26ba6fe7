package commands

import (
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/docfmt/cmd/docfmt/opts"
	"github.com/walteh/docfmt/pkg/operation"
)

// NewListCmd creates the list command
func NewListCmd(o *opts.RootOpts) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List Google Docs documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := o.Client(ctx)
			if err != nil {
				return err
			}

			// listing needs no rules
			docs, err := operation.New(nil).ListDocuments(ctx, client, match)
			if err != nil {
				return errors.Errorf("listing documents: %w", err)
			}

			return o.Console.DocumentTable(docs)
		},
	}

	cmd.Flags().StringVarP(&match, "match", "m", "", "glob the document name must match, e.g. 'Notes*'")

	return cmd
}
