package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
)

// ErrSignatureInvalid indicates the signature does not match the public key,
// or either value is malformed.
var ErrSignatureInvalid = errors.New("signature invalid")

// SignatureVerifier proves that a signature over a message was produced by
// the holder of the private key matching the given public key.
type SignatureVerifier interface {
	Verify(publicKey, message, signature string) error
}

// Ed25519Verifier verifies detached ed25519 signatures. Keys and signatures
// arrive base64url-encoded, matching what clients produce when signing
// challenge codes with their mnemonic-derived keypair.
type Ed25519Verifier struct{}

// Verify implements SignatureVerifier. Malformed encodings are reported the
// same as a bad signature so callers leak nothing about the failure mode.
func (Ed25519Verifier) Verify(publicKey, message, signature string) error {
	key, err := decodeBase64URL(publicKey)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return ErrSignatureInvalid
	}

	sig, err := decodeBase64URL(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrSignatureInvalid
	}

	if !ed25519.Verify(ed25519.PublicKey(key), []byte(message), sig) {
		return ErrSignatureInvalid
	}
	return nil
}

// decodeBase64URL accepts both padded and unpadded base64url input; clients
// are inconsistent about padding.
func decodeBase64URL(value string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(value)
}
