// Package wallet derives a short-lived signing identity from a local
// secret key and produces signed transfer authorizations with it.
package wallet

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nullpath-labs/mcp-client/x402"
	"github.com/nullpath-labs/mcp-client/x402/internal/eip3009"
)

// Identity is a local signing identity derived once from a secret key.
// It owns no mutable state and is meant to live for the duration of one
// payment attempt. The secret is never logged or surfaced in errors.
type Identity struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chain      x402.ChainConfig

	// signFn is the digest signer, replaceable in tests to count calls.
	signFn eip3009.SignerFunc
}

// NewIdentity derives an identity from a hex-encoded secret key (with or
// without 0x prefix, exactly 32 bytes) for the given chain.
func NewIdentity(privateKeyHex string, chain x402.ChainConfig) (*Identity, error) {
	if err := x402.ValidatePrivateKey(privateKeyHex); err != nil {
		return nil, err
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidKey, "private key is not a valid secp256k1 scalar", x402.ErrInvalidKey).
			WithHint("set " + x402.EnvPrivateKey + " to a 32-byte hex-encoded secret key")
	}

	id := &Identity{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chain:      chain,
	}
	id.signFn = func(digest []byte) ([]byte, error) {
		return crypto.Sign(digest, id.privateKey)
	}
	return id, nil
}

// Address returns the identity's address.
func (id *Identity) Address() common.Address {
	return id.address
}

// SignTransfer produces a signed transfer authorization satisfying the
// given requirements.
//
// The requirements' chain and asset must match the identity's configured
// pair exactly (asset compared case-insensitively); a mismatch is
// reported before any signing call is made, so the wrong chain or asset
// is never signed.
func (id *Identity) SignTransfer(req *x402.PaymentRequirements) (*eip3009.SignedAuthorization, error) {
	if req.ChainID != id.chain.ChainID {
		return nil, x402.NewPaymentError(x402.ErrCodeMismatch, "requirements network does not match configured chain", x402.ErrMismatch).
			WithDetails("required", req.ChainID).
			WithDetails("configured", id.chain.ChainID)
	}
	if !strings.EqualFold(req.Asset, id.chain.USDCAddress) {
		return nil, x402.NewPaymentError(x402.ErrCodeMismatch, "requirements asset does not match configured asset", x402.ErrMismatch).
			WithDetails("required", req.Asset).
			WithDetails("configured", id.chain.USDCAddress)
	}

	auth, err := eip3009.NewAuthorization(
		id.address,
		common.HexToAddress(req.Recipient),
		req.Amount,
		req.ValidAfter,
		req.ValidBefore,
	)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build authorization", err)
	}

	domain := eip3009.Domain{
		Name:              id.chain.EIP3009Name,
		Version:           id.chain.EIP3009Version,
		ChainID:           big.NewInt(id.chain.ChainID),
		VerifyingContract: common.HexToAddress(id.chain.USDCAddress),
	}

	signed, err := eip3009.SignAuthorization(id.signFn, domain, auth)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to sign authorization", err)
	}

	return signed, nil
}

// HeaderPayload flattens a signed authorization into the X-Payment wire
// object, all integer fields as decimal strings.
func HeaderPayload(signed *eip3009.SignedAuthorization) x402.PaymentHeaderPayload {
	return x402.PaymentHeaderPayload{
		Signature:   signed.SignatureHex(),
		From:        signed.From.Hex(),
		To:          signed.To.Hex(),
		Value:       signed.Value.String(),
		ValidAfter:  signed.ValidAfter.String(),
		ValidBefore: signed.ValidBefore.String(),
		Nonce:       signed.NonceHex(),
	}
}
