package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docprep/api/internal/docflow"
	"docprep/api/internal/domain"
	"docprep/api/internal/plan"
	"docprep/api/internal/remote"
	"docprep/api/internal/validate"
)

// prepare <plan.yaml>: replay a plan through the preparation workflow.
func prepareCmd() *cobra.Command {
	var (
		documentID int64
		stepFlag   string
		untilFlag  string
		policyFlag string
	)
	cmd := &cobra.Command{
		Use:   "prepare <plan.yaml|->",
		Short: "Drive a document through preparation from a YAML plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			p, err := loadPlan(cmd, args[0])
			if err != nil {
				return err
			}
			requested, err := optionalStep("step", stepFlag)
			if err != nil {
				return err
			}
			until, err := optionalStep("until", untilFlag)
			if err != nil {
				return err
			}
			policy := cfg.SyncPolicy()
			if policyFlag != "" {
				if policy, err = docflow.ParseSyncPolicy(policyFlag); err != nil {
					return err
				}
			}

			team := p.TeamID
			if team == nil {
				team = cfg.TeamIDPtr()
			}
			id := documentID
			if id == 0 {
				id = p.DocumentID
			}
			if id == 0 {
				doc, err := createFromPlan(cmd, p, team)
				if err != nil {
					return err
				}
				id = doc.ID
				fmt.Fprintf(out, "created document %d\n", id)
			}

			seed, err := client.GetDocumentGraph(ctx, id, team)
			if err != nil {
				return fmt.Errorf("load document %d: %w", id, err)
			}

			var navigatedTo string
			flow, err := docflow.New(docflow.Options{
				Seed:          seed,
				RequestedStep: requested,
				TeamID:        team,
				RootPath:      cfg.Documents.RootPath,
				Remote:        client,
				Validator:     validate.Schema{},
				Notifier: docflow.NotifierFunc(func(n docflow.Notification) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", n.Title, n.Description)
				}),
				Navigator:  docflow.NavigatorFunc(func(path string) { navigatedTo = path }),
				Logger:     logger.With(slog.Int64("document_id", id)),
				SyncPolicy: policy,
			})
			if err != nil {
				return err
			}
			defer flow.Close()

			fmt.Fprintf(out, "document %d opens on step %d/%d (%s)\n",
				id, flow.Controller.Current().Position(), len(docflow.Steps), flow.Controller.Current().Info().Title)

			res, applyErr := p.Apply(ctx, flow.Handlers, flow.Controller, until)
			flow.Sync.Wait()

			for _, step := range res.Applied {
				fmt.Fprintf(out, "  done  %s\n", step.Info().Title)
			}
			if res.PasswordSet {
				fmt.Fprintln(out, "  done  Set password")
			}
			if applyErr != nil {
				printProblems(cmd.ErrOrStderr(), applyErr)
				return applyErr
			}
			switch {
			case res.Sent:
				fmt.Fprintf(out, "document %d sent, back to %s\n", id, navigatedTo)
			default:
				fmt.Fprintf(out, "document %d waiting on step %d/%d (%s)\n",
					id, res.StoppedAt.Position(), len(docflow.Steps), res.StoppedAt.Info().Title)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&documentID, "document", 0, "existing document id (overrides document_id in the plan)")
	cmd.Flags().StringVar(&stepFlag, "step", "", "step to open on: title, signers, fields or subject")
	cmd.Flags().StringVar(&untilFlag, "until", "", "stop after submitting this step")
	cmd.Flags().StringVar(&policyFlag, "sync-policy", "", "sequenced or last-resolved-wins")
	return cmd
}

func loadPlan(cmd *cobra.Command, path string) (plan.Plan, error) {
	if path == "-" {
		return plan.LoadReader(cmd.InOrStdin())
	}
	return plan.LoadFile(path)
}

func optionalStep(flag, raw string) (*docflow.Step, error) {
	if raw == "" {
		return nil, nil
	}
	step, ok := docflow.ParseStep(raw)
	if !ok {
		return nil, fmt.Errorf("--%s: %w %q", flag, docflow.ErrUnknownStep, raw)
	}
	return &step, nil
}

func createFromPlan(cmd *cobra.Command, p plan.Plan, team *int64) (domain.Document, error) {
	ctx := docflow.WithAttempt(cmd.Context())
	if p.File == "" {
		return client.CreateDocument(ctx, p.Title, team, "", nil)
	}
	f, err := os.Open(p.File)
	if err != nil {
		return domain.Document{}, err
	}
	defer f.Close()
	return client.CreateDocument(ctx, p.Title, team, filepath.Base(p.File), f)
}

// printProblems lists per-attribute failures from either local validation or
// the server's VALIDATION_ERROR envelope.
func printProblems(w io.Writer, err error) {
	var problems []docflow.FieldProblem
	var local *docflow.ValidationError
	var apiErr *remote.APIError
	switch {
	case errors.As(err, &local):
		problems = local.Problems
	case errors.As(err, &apiErr):
		problems = apiErr.Problems()
	}
	for _, p := range problems {
		fmt.Fprintf(w, "  %s: %s\n", p.Path, p.Message)
	}
}
