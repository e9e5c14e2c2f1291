package x402

import "errors"

// Sentinel errors for payment operations.
var (
	// ErrNotConfigured indicates no usable payment backend is available.
	ErrNotConfigured = errors.New("x402: no payment backend configured")

	// ErrInvalidKey indicates malformed secret key material.
	ErrInvalidKey = errors.New("x402: invalid private key")

	// ErrMalformedRequirements indicates the 402 payload is unparsable or
	// missing required fields.
	ErrMalformedRequirements = errors.New("x402: malformed payment requirements")

	// ErrExpiredRequirements indicates the requirements' validBefore has
	// already passed.
	ErrExpiredRequirements = errors.New("x402: payment requirements expired")

	// ErrMismatch indicates the requirements' network or asset does not
	// match the configured identity.
	ErrMismatch = errors.New("x402: requirements do not match configured network/asset")

	// ErrSigningFailed indicates the underlying cryptographic signing failed.
	ErrSigningFailed = errors.New("x402: payment signing failed")

	// ErrDelegateFailed indicates the external delegate signer failed.
	ErrDelegateFailed = errors.New("x402: delegate signer failed")

	// ErrPaymentRejected indicates the server returned 402 again after a
	// payment was attached.
	ErrPaymentRejected = errors.New("x402: payment rejected by server")

	// ErrUpstreamFailed indicates a non-success response after a payment
	// was attempted.
	ErrUpstreamFailed = errors.New("x402: request failed after payment attempt")
)

// ErrorCode is the closed set of payment error categories. Callers can
// switch exhaustively on the code instead of matching error strings.
type ErrorCode string

const (
	// ErrCodeNotConfigured indicates no usable payment backend.
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED"

	// ErrCodeInvalidKey indicates malformed key material.
	ErrCodeInvalidKey ErrorCode = "INVALID_KEY"

	// ErrCodeMalformedRequirements indicates an unparsable 402 payload.
	ErrCodeMalformedRequirements ErrorCode = "MALFORMED_REQUIREMENTS"

	// ErrCodeExpiredRequirements indicates validBefore already passed.
	ErrCodeExpiredRequirements ErrorCode = "EXPIRED_REQUIREMENTS"

	// ErrCodeMismatch indicates a network/asset mismatch with the identity.
	ErrCodeMismatch ErrorCode = "MISMATCH"

	// ErrCodeSigningFailed indicates the signing operation failed.
	ErrCodeSigningFailed ErrorCode = "SIGNING_FAILED"

	// ErrCodeDelegateFailed indicates an external delegate program error.
	ErrCodeDelegateFailed ErrorCode = "DELEGATE_FAILED"

	// ErrCodeRejected indicates the server 402'd again after payment.
	ErrCodeRejected ErrorCode = "REJECTED"

	// ErrCodeUpstreamFailed indicates any other non-success after payment.
	ErrCodeUpstreamFailed ErrorCode = "UPSTREAM_FAILED"
)

// PaymentError provides structured error information. Messages and details
// never contain secret key material.
type PaymentError struct {
	// Code is the error category for programmatic handling.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Hint is an actionable suggestion, e.g. which environment variable
	// to set. May be empty.
	Hint string

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithHint attaches an actionable hint to the error.
func (e *PaymentError) WithHint(hint string) *PaymentError {
	e.Hint = hint
	return e
}

// WithDetails adds additional context to the error.
// Lazily initializes the Details map if nil.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
