package opd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// APIError is a failure reported by the backend through a non-2xx response.
type APIError struct {
	StatusCode int
	// Message is the backend's "message" or "error" field; empty when the body
	// carried neither.
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("opd: backend returned status %d", e.StatusCode)
	}
	return e.Message
}

// MessageOr returns the backend-supplied message for err, or fallback when err
// is not an APIError or the backend gave no message. Transport errors keep
// their own text.
func MessageOr(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	return err.Error()
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func decodeAPIError(status int, body io.Reader) *APIError {
	apiErr := &APIError{StatusCode: status}
	raw, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var parsed errorBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return apiErr
	}
	switch {
	case strings.TrimSpace(parsed.Message) != "":
		apiErr.Message = parsed.Message
	case strings.TrimSpace(parsed.Error) != "":
		apiErr.Message = parsed.Error
	}
	return apiErr
}
