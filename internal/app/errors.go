package app

import (
	"errors"
	"fmt"
	"net/http"

	"docprep/api/internal/docflow"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func invalid(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

// fromValidation turns a schema failure into a 422 listing every problem.
func fromValidation(err error) error {
	var verr *docflow.ValidationError
	if errors.As(err, &verr) {
		return invalid("Invalid input", verr.Problems)
	}
	return err
}
