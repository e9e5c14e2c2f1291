package x402

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"time"
)

// DefaultValidityWindow is assumed when a server omits validBefore: the
// authorization is considered redeemable for this long from parse time.
const DefaultValidityWindow = 300 * time.Second

// paymentRequiredWire mirrors the JSON object carried in the requirements
// header. Servers in the wild use two generations of field names; both are
// accepted. Numeric fields may arrive as JSON numbers or decimal strings.
type paymentRequiredWire struct {
	Recipient         string      `json:"recipient"`
	Payee             string      `json:"payee"`
	Amount            interface{} `json:"amount"`
	MaxAmountRequired interface{} `json:"maxAmountRequired"`
	Asset             string      `json:"asset"`
	USDCAddress       string      `json:"usdcAddress"`
	Network           interface{} `json:"network"`
	ChainID           interface{} `json:"chainId"`
	ValidAfter        interface{} `json:"validAfter"`
	ValidBefore       interface{} `json:"validBefore"`
}

// ParsePaymentRequired extracts payment requirements from a 402 response.
// Returns (nil, nil) when the response status is not 402. The requirements
// header is read from HeaderPaymentRequired, falling back to the legacy
// HeaderPaymentRequiredLegacy name.
//
// Validation order: structural decode failures and missing recipient or
// amount report ErrCodeMalformedRequirements; a validBefore at or before
// the current time reports ErrCodeExpiredRequirements. Expiry is only
// checked once the payload is structurally valid.
func ParsePaymentRequired(resp *http.Response) (*PaymentRequirements, error) {
	return parsePaymentRequiredAt(resp, time.Now())
}

func parsePaymentRequiredAt(resp *http.Response, now time.Time) (*PaymentRequirements, error) {
	if resp == nil || resp.StatusCode != http.StatusPaymentRequired {
		return nil, nil
	}

	header := resp.Header.Get(HeaderPaymentRequired)
	if header == "" {
		header = resp.Header.Get(HeaderPaymentRequiredLegacy)
	}
	if header == "" {
		return nil, NewPaymentError(ErrCodeMalformedRequirements, "402 response carries no payment requirements header", ErrMalformedRequirements)
	}

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, NewPaymentError(ErrCodeMalformedRequirements, "payment requirements header is not valid base64", err)
	}

	var wire paymentRequiredWire
	dec := json.NewDecoder(bytes.NewReader(decoded))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return nil, NewPaymentError(ErrCodeMalformedRequirements, "payment requirements are not valid JSON", err)
	}

	recipient := wire.Recipient
	if recipient == "" {
		recipient = wire.Payee
	}
	if recipient == "" {
		return nil, NewPaymentError(ErrCodeMalformedRequirements, "payment requirements missing recipient", ErrMalformedRequirements)
	}

	amountRaw := wire.Amount
	if amountRaw == nil {
		amountRaw = wire.MaxAmountRequired
	}
	amount, ok := toBigInt(amountRaw)
	if !ok {
		return nil, NewPaymentError(ErrCodeMalformedRequirements, "payment requirements missing or invalid amount", ErrMalformedRequirements)
	}

	chainID, ok := toInt64(wire.Network)
	if !ok {
		chainID, ok = toInt64(wire.ChainID)
	}
	if !ok {
		chainID = DefaultChainID
	}

	asset := wire.Asset
	if asset == "" {
		asset = wire.USDCAddress
	}
	if asset == "" {
		if cfg, err := ChainByID(chainID); err == nil {
			asset = cfg.USDCAddress
		}
	}

	validAfter, ok := toInt64(wire.ValidAfter)
	if !ok {
		validAfter = 0
	}
	validBefore, ok := toInt64(wire.ValidBefore)
	if !ok {
		validBefore = now.Add(DefaultValidityWindow).Unix()
	}

	if validBefore <= now.Unix() {
		return nil, NewPaymentError(ErrCodeExpiredRequirements, "payment requirements already expired", ErrExpiredRequirements).
			WithDetails("validBefore", validBefore)
	}

	return &PaymentRequirements{
		Recipient:   recipient,
		Amount:      amount,
		Asset:       asset,
		ChainID:     chainID,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
	}, nil
}

// toBigInt converts a decoded JSON value (json.Number or decimal string)
// to an arbitrary-precision integer. json.Number preserves the literal
// digits, so values above 2^53 survive exactly.
func toBigInt(v interface{}) (*big.Int, bool) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = n
	default:
		return nil, false
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false
	}
	return amount, true
}

// toInt64 converts a decoded JSON value (json.Number or decimal string)
// to an int64.
func toInt64(v interface{}) (int64, bool) {
	n, ok := toBigInt(v)
	if !ok || !n.IsInt64() {
		return 0, false
	}
	return n.Int64(), true
}
