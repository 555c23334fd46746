package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of every symmetric key handled by the vault.
	KeySize = 32
	// DefaultIterations is the PBKDF2 round count used when none is given.
	DefaultIterations = 100_000
)

// DeriveKey stretches secret into a KeySize key with PBKDF2-HMAC-SHA256.
// A nil salt is replaced by SaltSize random bytes and iterations <= 0 falls
// back to DefaultIterations. The salt actually used is returned.
func DeriveKey(secret, salt []byte, iterations int) (key, usedSalt []byte) {
	if salt == nil {
		salt = common.GenerateRandByteArray(SaltSize)
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key(secret, salt, iterations, KeySize, sha256.New), salt
}

// LabeledKey derives a KeySize key as HMAC-SHA256 keyed by label over data.
func LabeledKey(label string, data []byte) []byte {
	mac := hmac.New(sha256.New, []byte(label))
	mac.Write(data)
	return mac.Sum(nil)
}

// MakeVerifier returns SHA-256(secret), used to recognise a secret without
// storing it.
func MakeVerifier(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:]
}
