package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"docprep/api/internal/docflow"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Problems returns the per-attribute failures of a validation error.
func (e *APIError) Problems() []docflow.FieldProblem {
	if e.Code != "VALIDATION_ERROR" || len(e.Details) == 0 {
		return nil
	}
	var problems []docflow.FieldProblem
	if err := json.Unmarshal(e.Details, &problems); err != nil {
		return nil
	}
	return problems
}

// Is lets callers match server-side validation failures with
// errors.Is(err, docflow.ErrValidation).
func (e *APIError) Is(target error) bool {
	return target == docflow.ErrValidation && e.Status == http.StatusUnprocessableEntity
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

func decodeAPIError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope struct {
		Code    string          `json:"code"`
		Error   string          `json:"error"`
		Details json.RawMessage `json:"details"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Code != "" {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Error
		apiErr.Details = envelope.Details
	} else {
		apiErr.Message = fmt.Sprintf("%s %s: %s", method, path, resp.Status)
	}
	return apiErr
}
