package commands

import (
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/docfmt/cmd/docfmt/opts"
	"github.com/walteh/docfmt/pkg/log"
)

// NewApplyCmd creates the apply command
func NewApplyCmd(o *opts.RootOpts) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply <document-id>",
		Short: "Write docfmt's changes back to a document",
		Long: `Apply formats a document in place.
It will:
1. Fetch the document and the rules
2. Show every proposed change
3. Submit the changes as one batch, retrying once in reverse order`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := preview(ctx, o, args[0])
			if err != nil {
				return err
			}

			if dryRun {
				o.Console.Infof("dry run: %d changes not applied", len(p.Changes))
				return nil
			}
			if len(p.Changes) == 0 {
				o.Console.Success("document already formatted")
				return nil
			}

			client, err := o.Client(ctx)
			if err != nil {
				return err
			}
			ops, err := o.Operations()
			if err != nil {
				return err
			}

			result, err := ops.Apply(ctx, client, p.DocumentID, p.Changes)
			if err != nil {
				for _, c := range p.Changes {
					o.Console.LogChange(ctx, log.ChangeOperation{Change: c, Status: log.StatusFailed})
				}
				return errors.Errorf("applying changes: %w", err)
			}

			if result.Retried {
				o.Console.Warning("batch was retried in reverse order")
			}
			o.Console.Successf("applied %d changes to %s", result.Applied, p.Title)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only show the changes")

	return cmd
}
