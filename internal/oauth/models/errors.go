package models

import "fmt"

// ErrorCode is the machine-readable reason returned to OAuth clients.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "invalid_request"
	ErrInvalidGrant         ErrorCode = "invalid_grant"
	ErrInvalidClient        ErrorCode = "invalid_client"
	ErrInvalidVerifier      ErrorCode = "invalid_verifier"
	ErrUnsupportedGrantType ErrorCode = "unsupported_grant_type"
	ErrInvalidToken         ErrorCode = "invalid_token"
	ErrServerError          ErrorCode = "server_error"
)

// FlowError is a client-caused OAuth protocol failure. Everything except
// ErrServerError surfaces as 4xx with the code in the response body; server
// errors are logged with detail and returned opaque.
type FlowError struct {
	Code        ErrorCode
	Description string
	cause       error
}

func (e *FlowError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *FlowError) Unwrap() error {
	return e.cause
}

// NewFlowError creates a protocol error with the given reason code.
func NewFlowError(code ErrorCode, description string) *FlowError {
	return &FlowError{Code: code, Description: description}
}

// WrapFlowError preserves an underlying cause for logging while the client
// only ever sees the code and description.
func WrapFlowError(err error, code ErrorCode, description string) *FlowError {
	return &FlowError{Code: code, Description: description, cause: err}
}
