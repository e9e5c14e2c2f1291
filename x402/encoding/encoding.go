// Package encoding provides the base64+JSON codecs for x402 headers:
// payment requirements, signed payment payloads, and settlement echoes.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/nullpath-labs/mcp-client/x402"
)

// EncodePaymentHeader converts a payment header payload to base64-encoded
// JSON for the X-Payment header.
func EncodePaymentHeader(payload x402.PaymentHeaderPayload) (string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(payloadJSON), nil
}

// DecodePaymentHeader converts a base64-encoded X-Payment header value
// back to a payment header payload.
func DecodePaymentHeader(encoded string) (x402.PaymentHeaderPayload, error) {
	var payload x402.PaymentHeaderPayload

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return payload, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payment payload: %w", err)
	}

	return payload, nil
}

// EncodeRequirements converts payment requirements to base64-encoded JSON
// for the X-Payment-Required header.
func EncodeRequirements(header x402.PaymentRequiredHeader) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to marshal requirements: %w", err)
	}
	return base64.StdEncoding.EncodeToString(headerJSON), nil
}

// DecodeRequirements converts a base64-encoded X-Payment-Required header
// value back to the canonical wire form.
func DecodeRequirements(encoded string) (x402.PaymentRequiredHeader, error) {
	var header x402.PaymentRequiredHeader

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return header, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &header); err != nil {
		return header, fmt.Errorf("failed to unmarshal requirements: %w", err)
	}

	return header, nil
}

// EncodeSettlement converts a settlement echo to base64-encoded JSON for
// the X-Payment-Response header.
func EncodeSettlement(settlement x402.SettleResponse) (string, error) {
	settlementJSON, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(settlementJSON), nil
}

// DecodeSettlement converts a base64-encoded X-Payment-Response header
// value back to a settlement echo.
func DecodeSettlement(encoded string) (x402.SettleResponse, error) {
	var settlement x402.SettleResponse

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return settlement, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &settlement); err != nil {
		return settlement, fmt.Errorf("failed to unmarshal settlement: %w", err)
	}

	return settlement, nil
}
