package app

import (
	"fmt"
	"net/http"
)

// DomainError is an error that already knows its HTTP response.
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

// response unpacks e into the values mapError returns.
func (e *DomainError) response() (status int, code, message string, details any) {
	return e.Status, e.Code, e.Message, e.Details
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func badRequest(code, message string) *DomainError {
	return domainError(http.StatusBadRequest, code, message, nil)
}

func notFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func tooLarge(limit int64) *DomainError {
	return domainError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large", map[string]any{"maxBytes": limit})
}

func tooManyRequests(code, message string) *DomainError {
	return domainError(http.StatusTooManyRequests, code, message, nil)
}
