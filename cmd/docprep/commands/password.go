package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set-password <id>: protect the document with an access password.
func setPasswordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "set-password <document-id>",
		Short: "Set the access password of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			if err := client.SetDocumentPassword(cmd.Context(), id, password); err != nil {
				printProblems(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password set")
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new access password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
