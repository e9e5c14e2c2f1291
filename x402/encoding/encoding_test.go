package encoding

import (
	"encoding/base64"
	"testing"

	"github.com/nullpath-labs/mcp-client/x402"
)

func TestPaymentHeaderRoundTrip(t *testing.T) {
	payload := x402.PaymentHeaderPayload{
		Signature:   "0xabcd",
		From:        "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		To:          "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Value:       "1000",
		ValidAfter:  "0",
		ValidBefore: "2000000000",
		Nonce:       "0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20",
	}

	encoded, err := EncodePaymentHeader(payload)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		t.Fatalf("output is not standard base64: %v", err)
	}

	decoded, err := DecodePaymentHeader(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != payload {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", decoded, payload)
	}
}

func TestDecodePaymentHeaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "not-valid-base64!!!"},
		{"base64 of non-JSON", base64.StdEncoding.EncodeToString([]byte("plain text"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePaymentHeader(tt.encoded); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRequirementsRoundTrip(t *testing.T) {
	header := x402.PaymentRequiredHeader{
		Recipient:   "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Amount:      "1000",
		Asset:       x402.BaseMainnet.USDCAddress,
		ChainID:     x402.ChainBase,
		ValidBefore: 2000000000,
	}

	encoded, err := EncodeRequirements(header)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeRequirements(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != header {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", decoded, header)
	}

	// Encoding the decoded value must reproduce the input byte for byte;
	// the wire form has a single canonical rendering.
	reencoded, err := EncodeRequirements(decoded)
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if reencoded != encoded {
		t.Errorf("re-encoded form differs:\ngot  %s\nwant %s", reencoded, encoded)
	}
}

func TestSettlementRoundTrip(t *testing.T) {
	settlement := x402.SettleResponse{
		Success:     true,
		Transaction: "0xdeadbeef",
		Payer:       "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	}

	encoded, err := EncodeSettlement(settlement)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeSettlement(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != settlement {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", decoded, settlement)
	}
}

func TestDecodeSettlementErrors(t *testing.T) {
	if _, err := DecodeSettlement("%%%"); err == nil {
		t.Error("expected error for invalid base64")
	}
}
