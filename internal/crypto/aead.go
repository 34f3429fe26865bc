package crypto

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/sha3"
)

const (
	KeySize   = chacha20poly1305.KeySize   // 32 bytes
	NonceSize = chacha20poly1305.NonceSize // 12 bytes
)

var (
	ErrInvalidKeyLength     = errors.New("crypto: invalid key length")
	ErrInvalidNonceLength   = errors.New("crypto: invalid nonce length")
	ErrAuthenticationFailed = errors.New("crypto: message authentication failed")
)

// Seal encrypts plaintext with ChaCha20-Poly1305 under the given key and
// explicit nonce. Nonce management is the caller's problem: the vault derives
// a fresh key/nonce pair per rotation and never reuses one across keys.
func Seal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceLength
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts and authenticates a ciphertext produced by Seal. A wrong key,
// wrong nonce, mismatched AAD, or any bit flip in the ciphertext fails with
// ErrAuthenticationFailed.
func Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceLength
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return pt, nil
}

// DeriveFromSeed deterministically expands a seed into a key/nonce pair by
// splitting a SHA3-512 digest: bytes 0..32 become the key, 32..44 the nonce.
func DeriveFromSeed(seed []byte) (key, nonce []byte) {
	sum := sha3.Sum512(seed)
	key = make([]byte, KeySize)
	nonce = make([]byte, NonceSize)
	copy(key, sum[:KeySize])
	copy(nonce, sum[KeySize:KeySize+NonceSize])
	return key, nonce
}
