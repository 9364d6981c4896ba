package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// history <id>: list recorded changes, newest first.
func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <document-id>",
		Short: "List the recorded changes of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			commits, err := client.History(cmd.Context(), id, cfg.TeamIDPtr(), limit)
			if err != nil {
				return err
			}
			for _, c := range commits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", shortHash(c.Hash), c.CreatedAt.Format(time.DateTime), c.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (0 for all)")
	return cmd
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
