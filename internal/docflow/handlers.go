package docflow

import (
	"context"
	"log/slog"

	"docprep/api/internal/domain"
)

// Handlers submits each step's input to the remote store and folds the
// result into the entity store. A failed step leaves both the store and the
// current step untouched.
type Handlers struct {
	documentID int64
	teamID     *int64
	rootPath   string

	entities   *EntityStore
	controller *Controller
	remote     Remote
	validator  Validator
	notifier   Notifier
	navigator  Navigator
	logger     *slog.Logger
}

// SubmitTitle renames the document and advances to Add Signers.
func (h *Handlers) SubmitTitle(ctx context.Context, title string) error {
	if err := h.validator.ValidateTitle(title); err != nil {
		return err
	}
	ctx = WithAttempt(ctx)
	updated, err := h.remote.SetTitle(ctx, h.documentID, h.teamID, title)
	if err != nil {
		return h.fail(ctx, "setTitle", "An error occurred while updating title.", err)
	}
	h.entities.MergeDocument(updated)
	h.controller.Advance()
	return nil
}

// SubmitSigners replaces the recipient list and advances to Add Fields.
func (h *Handlers) SubmitSigners(ctx context.Context, signers []domain.SignerInput) error {
	if err := h.validator.ValidateSigners(signers); err != nil {
		return err
	}
	ctx = WithAttempt(ctx)
	recipients, err := h.remote.AddSigners(ctx, h.documentID, h.teamID, signers)
	if err != nil {
		return h.fail(ctx, "addSigners", "An error occurred while adding signers.", err)
	}
	h.entities.ReplaceRecipients(recipients)
	h.controller.Advance()
	return nil
}

// SubmitFields replaces the placed fields and advances to Add Subject.
func (h *Handlers) SubmitFields(ctx context.Context, fields []domain.FieldInput) error {
	if err := h.validator.ValidateFields(fields, h.entities.Recipients()); err != nil {
		return err
	}
	ctx = WithAttempt(ctx)
	updated, err := h.remote.AddFields(ctx, h.documentID, fields)
	if err != nil {
		return h.fail(ctx, "addFields", "An error occurred while adding fields.", err)
	}
	h.entities.ReplaceFields(updated)
	h.controller.Advance()
	return nil
}

// SubmitSubject sends the document. Sending is terminal: the step does not
// advance, the host is navigated back to the documents root instead.
func (h *Handlers) SubmitSubject(ctx context.Context, meta domain.SendMeta) error {
	if err := h.validator.ValidateSubject(meta); err != nil {
		return err
	}
	ctx = WithAttempt(ctx)
	if err := h.remote.SendDocument(ctx, h.documentID, h.teamID, meta); err != nil {
		return h.fail(ctx, "sendDocument", "An error occurred while sending the document.", err)
	}
	h.logger.InfoContext(ctx, "document_sent", slog.Int64("document_id", h.documentID))
	h.notifier.Notify(Notification{
		Title:       "Document sent",
		Description: "Your document has been sent successfully.",
		Variant:     VariantDefault,
	})
	h.navigator.Navigate(h.rootPath)
	return nil
}

// SetPassword stores an access password for the document. It can be called
// at any point and never moves the workflow.
func (h *Handlers) SetPassword(ctx context.Context, password string) error {
	ctx = WithAttempt(ctx)
	if err := h.remote.SetDocumentPassword(ctx, h.documentID, password); err != nil {
		h.logger.ErrorContext(ctx, "set_password_failed",
			slog.Int64("document_id", h.documentID),
			slog.Any("error", err),
		)
		return &RemoteError{Op: "setDocumentPassword", Err: err}
	}
	return nil
}

func (h *Handlers) fail(ctx context.Context, op, description string, err error) error {
	h.logger.ErrorContext(ctx, "step_submit_failed",
		slog.Int64("document_id", h.documentID),
		slog.String("op", op),
		slog.String("step", h.controller.Current().String()),
		slog.Any("error", err),
	)
	h.notifier.Notify(Notification{
		Title:       "Error",
		Description: description,
		Variant:     VariantDestructive,
	})
	return &RemoteError{Op: op, Err: err}
}
