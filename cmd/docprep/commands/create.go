package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// create: start a draft document.
func createCmd() *cobra.Command {
	var (
		title string
		file  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a draft, optionally uploading a PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data     io.Reader
				filename string
			)
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				data = f
				filename = filepath.Base(file)
			} else if title == "" {
				return fmt.Errorf("--title or --file is required")
			}
			doc, err := client.CreateDocument(cmd.Context(), title, cfg.TeamIDPtr(), filename, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d  %s  [%s]\n", doc.ID, doc.Title, doc.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title (defaults to the file name)")
	cmd.Flags().StringVar(&file, "file", "", "PDF to upload")
	return cmd
}
