// Package x402 implements the client side of the x402 payment protocol:
// parsing server-issued payment requirements from 402 responses, selecting
// a payment backend, and shaping signed EIP-3009 transfer authorizations
// for the retry request.
//
// The package is transport-agnostic. HTTP orchestration lives in
// x402/http, local key signing in x402/wallet, and external delegate
// invocation in x402/delegate.
package x402

import "math/big"

// HTTP header names used by the payment flow.
const (
	// HeaderPaymentRequired carries the base64-encoded payment
	// requirements on a 402 response.
	HeaderPaymentRequired = "X-Payment-Required"

	// HeaderPaymentRequiredLegacy is the legacy requirements header name,
	// checked when HeaderPaymentRequired is absent.
	HeaderPaymentRequiredLegacy = "Payment-Required"

	// HeaderPayment carries the base64-encoded signed authorization on
	// the retried request.
	HeaderPayment = "X-Payment"

	// HeaderPaymentResponse carries base64-encoded settlement information
	// on a paid response.
	HeaderPaymentResponse = "X-Payment-Response"

	// HeaderPaymentMethod is set by the client on paid responses to
	// identify which backend produced the payment ("local" or "delegate").
	HeaderPaymentMethod = "X-Payment-Method"

	// HeaderPaymentFrom is set by the client on paid responses to expose
	// the paying address to callers.
	HeaderPaymentFrom = "X-Payment-From"
)

// PaymentRequirements is the validated, typed form of a server's payment
// demand. Constructed once per 402 response and consumed immediately by
// the signer; never persisted.
type PaymentRequirements struct {
	// Recipient is the payment recipient address.
	Recipient string

	// Amount is the payment amount in atomic units. Always arbitrary
	// precision; amounts are never represented as floats anywhere in
	// this package.
	Amount *big.Int

	// Asset is the stablecoin contract address.
	Asset string

	// ChainID is the EVM chain identifier.
	ChainID int64

	// ValidAfter is the unix time after which the authorization is valid.
	ValidAfter int64

	// ValidBefore is the unix time before which the authorization must be
	// redeemed. Strictly greater than the parse time, or the requirement
	// is rejected as expired.
	ValidBefore int64
}

// PaymentRequiredHeader is the wire form of payment requirements as
// encoded into the 402 response header. Servers may use the alternate
// field names recipient|payee, amount|maxAmountRequired, asset|usdcAddress
// and network|chainId; this struct carries the canonical names and is what
// the encoding package emits.
type PaymentRequiredHeader struct {
	// Recipient is the payment recipient address.
	Recipient string `json:"recipient"`

	// Amount is the payment amount in atomic units as a decimal string.
	Amount string `json:"amount"`

	// Asset is the stablecoin contract address. Optional; defaults to the
	// canonical USDC address for the chain.
	Asset string `json:"asset,omitempty"`

	// ChainID is the EVM chain identifier. Optional; defaults to Base
	// mainnet.
	ChainID int64 `json:"chainId,omitempty"`

	// ValidAfter is the unix time after which the authorization is valid.
	ValidAfter int64 `json:"validAfter,omitempty"`

	// ValidBefore is the unix time before which the authorization must be
	// redeemed.
	ValidBefore int64 `json:"validBefore,omitempty"`
}

// PaymentHeaderPayload is the flat wire object carried in the X-Payment
// header on the retried request. All integer fields are decimal strings;
// signature and nonce are 0x-prefixed hex.
type PaymentHeaderPayload struct {
	// Signature is the hex-encoded 65-byte ECDSA signature.
	Signature string `json:"signature"`

	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Value is the payment amount in atomic units as a decimal string.
	Value string `json:"value"`

	// ValidAfter is the validity window start as a decimal string.
	ValidAfter string `json:"validAfter"`

	// ValidBefore is the validity window end as a decimal string.
	ValidBefore string `json:"validBefore"`

	// Nonce is the unique 32-byte nonce as a 0x-prefixed hex string.
	Nonce string `json:"nonce"`
}

// SettleResponse is the settlement echo a server may attach to a paid
// response via the X-Payment-Response header.
type SettleResponse struct {
	// Success indicates whether the payment was settled.
	Success bool `json:"success"`

	// Transaction is the settlement transaction hash, if any.
	Transaction string `json:"transaction,omitempty"`

	// Payer is the address that made the payment.
	Payer string `json:"payer,omitempty"`
}

// PaymentAnnotation is attached to tool-call results for paid requests.
type PaymentAnnotation struct {
	// Status is "paid" for completed payments.
	Status string `json:"status"`

	// From is the paying address.
	From string `json:"from"`
}
