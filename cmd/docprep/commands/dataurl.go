package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// data-url <id>: print a presigned download link for the stored PDF.
func dataURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "data-url <document-id>",
		Short: "Print a short-lived download link for the document PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			link, err := client.DocumentDataURL(cmd.Context(), id, cfg.TeamIDPtr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link.URL)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", link.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}
