package x402

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Environment variables consumed by the client.
const (
	// EnvPrivateKey holds the hex-encoded secret key for local signing
	// (with or without 0x prefix, exactly 32 bytes).
	EnvPrivateKey = "X402_PRIVATE_KEY"

	// EnvBaseURL overrides the base URL for relative request paths.
	EnvBaseURL = "X402_BASE_URL"

	// EnvUseDelegate forces the delegate backend when set to "true" or "1".
	EnvUseDelegate = "X402_USE_DELEGATE"
)

// DefaultDelegateCommand is the argv prefix for the external delegate
// signer program.
var DefaultDelegateCommand = []string{"x402-wallet"}

// Config holds resolved client configuration. Values come from the
// environment via FromEnv or are set directly by the embedding program.
type Config struct {
	// PrivateKey is the hex-encoded local secret key. Empty when no local
	// signing key is configured. Never logged and never included in error
	// messages.
	PrivateKey string

	// BaseURL is prepended to relative request paths.
	BaseURL string

	// ForceDelegate forces the delegate backend. When the delegate is
	// unavailable or unauthenticated, payment is reported as not
	// configured rather than falling back to a local key.
	ForceDelegate bool

	// DelegateCommand is the argv prefix for the delegate signer program.
	DelegateCommand []string

	// ChainID is the network the local identity signs for.
	ChainID int64
}

// Env abstracts environment lookup so configuration can be constructed
// deterministically in tests.
type Env func(key string) string

// FromEnv builds a Config from the process environment.
func FromEnv(getenv Env) *Config {
	force := getenv(EnvUseDelegate)
	return &Config{
		PrivateKey:      getenv(EnvPrivateKey),
		BaseURL:         getenv(EnvBaseURL),
		ForceDelegate:   force == "true" || force == "1",
		DelegateCommand: DefaultDelegateCommand,
		ChainID:         DefaultChainID,
	}
}

// HasLocalKey reports whether a local signing key is configured.
func (c *Config) HasLocalKey() bool {
	return c.PrivateKey != ""
}

// Chain returns the chain configuration for the configured network.
func (c *Config) Chain() (ChainConfig, error) {
	chainID := c.ChainID
	if chainID == 0 {
		chainID = DefaultChainID
	}
	return ChainByID(chainID)
}

// ValidatePrivateKey checks that the given hex string is a well-formed
// 32-byte secret key. The key material itself never appears in the
// returned error.
func ValidatePrivateKey(privateKeyHex string) error {
	trimmed := strings.TrimPrefix(privateKeyHex, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return NewPaymentError(ErrCodeInvalidKey, "private key is not valid hex", ErrInvalidKey).
			WithHint("set " + EnvPrivateKey + " to a 32-byte hex-encoded secret key")
	}
	if len(raw) != 32 {
		return NewPaymentError(ErrCodeInvalidKey, "private key must be exactly 32 bytes", ErrInvalidKey).
			WithHint("set " + EnvPrivateKey + " to a 32-byte hex-encoded secret key")
	}
	return nil
}

// DeriveAddress returns the checksummed address for a hex-encoded secret
// key. Used by the backend selector to report the paying address without
// constructing a full wallet identity.
func DeriveAddress(privateKeyHex string) (string, error) {
	if err := ValidatePrivateKey(privateKeyHex); err != nil {
		return "", err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", NewPaymentError(ErrCodeInvalidKey, "private key is not a valid secp256k1 scalar", ErrInvalidKey)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
