package auth

import (
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/sign"
)

const (
	publicKeySize = 32
	signatureSize = 64
)

// SignatureVerifier checks a detached signature over message for publicKey.
type SignatureVerifier func(publicKey, signature string, message []byte) bool

// VerifySignature checks a base58 detached ed25519 signature over message
// against a base58 wallet public key. Malformed input verifies as false.
func VerifySignature(publicKey, signature string, message []byte) bool {
	pk, err := base58.Decode(publicKey)
	if err != nil || len(pk) != publicKeySize {
		return false
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != signatureSize {
		return false
	}

	var key [publicKeySize]byte
	copy(key[:], pk)

	signed := make([]byte, 0, signatureSize+len(message))
	signed = append(signed, sig...)
	signed = append(signed, message...)
	_, ok := sign.Open(nil, signed, &key)
	return ok
}
