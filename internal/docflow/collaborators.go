package docflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docprep/api/internal/domain"
)

// Remote is the authoritative document store.
type Remote interface {
	SetTitle(ctx context.Context, documentID int64, teamID *int64, title string) (domain.Document, error)
	AddSigners(ctx context.Context, documentID int64, teamID *int64, signers []domain.SignerInput) ([]domain.Recipient, error)
	AddFields(ctx context.Context, documentID int64, fields []domain.FieldInput) ([]domain.Field, error)
	SendDocument(ctx context.Context, documentID int64, teamID *int64, meta domain.SendMeta) error
	SetDocumentPassword(ctx context.Context, documentID int64, password string) error
	GetDocumentGraph(ctx context.Context, documentID int64, teamID *int64) (domain.Graph, error)
}

// Validator checks step input before it is submitted. Each method returns
// nil or a *ValidationError.
type Validator interface {
	ValidateTitle(title string) error
	ValidateSigners(signers []domain.SignerInput) error
	ValidateFields(fields []domain.FieldInput, recipients []domain.Recipient) error
	ValidateSubject(meta domain.SendMeta) error
}

// NotificationVariant selects how a notification is styled.
type NotificationVariant string

const (
	VariantDefault     NotificationVariant = "default"
	VariantDestructive NotificationVariant = "destructive"
)

// Notification is a toast shown to the user.
type Notification struct {
	Title       string
	Description string
	Variant     NotificationVariant
}

// Notifier shows step outcomes to the user.
type Notifier interface {
	Notify(n Notification)
}

// Navigator is called once the document has been sent.
type Navigator interface {
	Navigate(path string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

var ErrValidation = errors.New("validation failed")

// FieldProblem is one rejected input attribute.
type FieldProblem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists the input problems that stopped a submission.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Path+": "+p.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RemoteError wraps a failed remote operation.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
