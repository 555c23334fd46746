package cryptox

import (
	"encoding/base64"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the ChaCha20-Poly1305 nonce length.
const NonceSize = chacha20poly1305.NonceSize

// Seal encrypts plaintext under key with a fresh random nonce and no
// associated data.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, common.ErrInvalidKeyLength
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, common.ErrInvalidKeyLength
	}
	nonce = common.GenerateRandByteArray(NonceSize)
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal. Any tag, nonce or key mismatch is reported as
// common.ErrAuthenticationFailure without further detail.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, common.ErrInvalidKeyLength
	}
	if len(nonce) != NonceSize {
		return nil, common.ErrAuthenticationFailure
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, common.ErrInvalidKeyLength
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	return plaintext, nil
}

// Encrypt is Seal with both outputs base64 encoded for text storage.
func Encrypt(plaintext, key []byte) (ciphertextB64, nonceB64 string, err error) {
	ct, nonce, err := Seal(plaintext, key)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(ct), base64.StdEncoding.EncodeToString(nonce), nil
}

// Decrypt reverses Encrypt. Malformed base64 counts as an authentication
// failure.
func Decrypt(ciphertextB64, nonceB64 string, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, common.ErrInvalidKeyLength
	}
	ct, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	return Open(ct, nonce, key)
}

// SecureRandomID returns n random bytes hex encoded.
func SecureRandomID(n int) (string, error) {
	return common.MakeRandHexString(n)
}
