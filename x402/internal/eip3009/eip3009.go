// Package eip3009 builds and signs EIP-3009 TransferWithAuthorization
// messages under an EIP-712 typed-data domain.
package eip3009

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignatureLength is the only acceptable encoded signature size
// (r: 32, s: 32, v: 1). Signatures of any other length are rejected
// outright rather than truncated or padded.
const SignatureLength = 65

// Authorization holds the TransferWithAuthorization message fields.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// Domain is the EIP-712 domain the authorization is bound to. The
// verifying contract is the token contract being transferred.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// SignerFunc signs a 32-byte digest and returns a 65-byte r||s||v
// signature. Satisfied by wallet identities; tests substitute counting
// fakes.
type SignerFunc func(digest []byte) ([]byte, error)

// SignedAuthorization is an authorization plus its signature and the
// signature's decomposed components.
type SignedAuthorization struct {
	Authorization

	// Signature is the raw 65-byte r||s||v signature with v in
	// {27, 28}.
	Signature []byte

	// R and S are the signature's curve points.
	R *big.Int
	S *big.Int

	// V is the recovery identifier, 27 or 28.
	V byte
}

// SignatureHex returns the signature as a 0x-prefixed hex string.
func (sa *SignedAuthorization) SignatureHex() string {
	return "0x" + hex.EncodeToString(sa.Signature)
}

// NonceHex returns the nonce as a 0x-prefixed 32-byte hex string.
func (sa *SignedAuthorization) NonceHex() string {
	return common.BytesToHash(sa.Nonce[:]).Hex()
}

// NewAuthorization builds an authorization with a freshly generated
// random nonce for the given validity window.
func NewAuthorization(from, to common.Address, value *big.Int, validAfter, validBefore int64) (*Authorization, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(validAfter),
		ValidBefore: big.NewInt(validBefore),
		Nonce:       nonce,
	}, nil
}

// GenerateNonce returns 32 bytes from crypto/rand. Nonce uniqueness is
// probabilistic over the 256-bit space; nonces are never sequential and
// never reused across signings.
func GenerateNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, err
	}
	return nonce, nil
}

// Digest computes the EIP-712 signing digest for the authorization under
// the given domain.
func Digest(domain Domain, auth *Authorization) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       common.BytesToHash(auth.Nonce[:]).Hex(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct("TransferWithAuthorization", typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(rawData), nil
}

// SignAuthorization signs the authorization digest with the given signer
// and decomposes the signature. A signature of any length other than
// SignatureLength is a hard error.
func SignAuthorization(sign SignerFunc, domain Domain, auth *Authorization) (*SignedAuthorization, error) {
	digest, err := Digest(domain, auth)
	if err != nil {
		return nil, err
	}

	signature, err := sign(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}

	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("unexpected signature length %d, want %d", len(signature), SignatureLength)
	}

	// Normalize the recovery id to the on-chain convention.
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] < 27 {
		sig[64] += 27
	}

	return &SignedAuthorization{
		Authorization: *auth,
		Signature:     sig,
		R:             new(big.Int).SetBytes(sig[:32]),
		S:             new(big.Int).SetBytes(sig[32:64]),
		V:             sig[64],
	}, nil
}
