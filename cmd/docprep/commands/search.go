package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// search [query...]: full-text search over titles, subjects and recipients.
func searchCmd() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Search(cmd.Context(), strings.Join(args, " "), cfg.TeamIDPtr(), strings.ToUpper(status), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no documents")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, r := range resp.Results {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Title, r.Status, r.Snippet)
			}
			_ = tw.Flush()
			fmt.Fprintf(out, "%d of %d\n", len(resp.Results), resp.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "DRAFT, PENDING or COMPLETED")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}
