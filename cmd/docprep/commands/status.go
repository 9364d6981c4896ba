package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docprep/api/internal/docflow"
	"docprep/api/internal/domain"
)

// status <id>: print the document graph and its step indicator.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show a document and the step its workflow opens on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			graph, err := client.GetDocumentGraph(cmd.Context(), id, cfg.TeamIDPtr())
			if err != nil {
				return err
			}
			printGraph(cmd.OutOrStdout(), graph)
			return nil
		},
	}
}

func printGraph(w io.Writer, graph domain.Graph) {
	doc := graph.Document
	fmt.Fprintf(w, "%d  %s  [%s]\n", doc.ID, doc.Title, doc.Status)
	if doc.Meta.Subject != "" {
		fmt.Fprintf(w, "subject: %s\n", doc.Meta.Subject)
	}
	if doc.Meta.HasPassword {
		fmt.Fprintln(w, "password protected")
	}

	fieldsByRecipient := make(map[int64]int, len(graph.Recipients))
	for _, f := range graph.Fields {
		fieldsByRecipient[f.RecipientID]++
	}
	if len(graph.Recipients) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tORDER\tFIELDS\tSENT")
		for _, r := range graph.Recipients {
			order := "-"
			if r.SigningOrder != nil {
				order = strconv.Itoa(*r.SigningOrder)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.Email, r.Name, r.Role, order, fieldsByRecipient[r.ID], r.SendStatus)
		}
		_ = tw.Flush()
	}

	current := docflow.ResolveInitialStep(doc.Status, nil, len(graph.Recipients))
	for _, step := range docflow.Steps {
		marker := " "
		if step == current {
			marker = ">"
		}
		info := step.Info()
		fmt.Fprintf(w, "%s %d. %s\n", marker, info.Position, info.Title)
	}
}

func parseDocumentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", raw)
	}
	return id, nil
}
