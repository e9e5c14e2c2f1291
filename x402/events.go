package x402

import (
	"math/big"
	"time"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates a payment is being attempted.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess indicates a payment succeeded.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure indicates a payment failed.
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent represents a payment lifecycle event, used for logging and
// monitoring by embedding programs. The library itself never logs.
type PaymentEvent struct {
	// Type is the event type (attempt, success, failure).
	Type PaymentEventType

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Backend is the signing backend used (local or delegate).
	Backend BackendMethod

	// URL is the URL being accessed.
	URL string

	// Amount is the payment amount in atomic units.
	Amount *big.Int

	// Asset is the stablecoin contract address.
	Asset string

	// ChainID is the network identifier.
	ChainID int64

	// Recipient is the payment recipient address.
	Recipient string

	// Payer is the paying address, when known.
	Payer string

	// Transaction is the settlement transaction hash (available on
	// success when the server echoes settlement).
	Transaction string

	// Error contains error details (available on failure).
	Error error

	// Duration is the time taken for the payment flow.
	Duration time.Duration
}

// PaymentCallback is a function that handles payment events. Callbacks
// are invoked synchronously during payment processing and should be fast.
type PaymentCallback func(PaymentEvent)
