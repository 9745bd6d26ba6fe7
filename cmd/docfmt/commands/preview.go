package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/walteh/docfmt/cmd/docfmt/opts"
	"github.com/walteh/docfmt/pkg/log"
	"github.com/walteh/docfmt/pkg/operation"
)

// NewPreviewCmd creates the preview command
func NewPreviewCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <document-id>",
		Short: "Show the changes docfmt would make to a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := preview(cmd.Context(), o, args[0])
			return err
		},
	}

	return cmd
}

// preview prints the proposed changes and returns them
func preview(ctx context.Context, o *opts.RootOpts, docID string) (*operation.Preview, error) {
	client, err := o.Client(ctx)
	if err != nil {
		return nil, err
	}

	ops, err := o.Operations()
	if err != nil {
		return nil, err
	}

	p, err := ops.Preview(ctx, client, docID)
	if err != nil {
		return nil, err
	}

	o.Console.StartDocument(ctx, log.DocumentOperation{ID: p.DocumentID, Title: p.Title})
	for _, c := range p.Changes {
		o.Console.LogChange(ctx, log.ChangeOperation{Change: c, Status: log.StatusProposed})
	}
	o.Console.EndDocument(ctx)

	return p, nil
}
