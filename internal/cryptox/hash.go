package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the byte length of generated credential and key salts.
const SaltSize = 16

var (
	ErrInvalidHashFormat   = errors.New("invalid encoded hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
	ErrInvalidSalt         = errors.New("invalid salt")
)

// PasswordHasher produces Argon2id credential hashes. The zero value is not
// usable; start from DefaultPasswordHasher.
type PasswordHasher struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLength uint32
}

// DefaultPasswordHasher returns the parameters used for stored credentials.
func DefaultPasswordHasher() PasswordHasher {
	return PasswordHasher{Time: 3, MemoryKiB: 64 * 1024, Threads: 2, KeyLength: 32}
}

// Hash hashes password with the hex encoded salt. An empty saltHex gets a
// fresh random salt of SaltSize bytes. The result is deterministic for a given
// (password, salt) pair and is returned in PHC form together with the salt.
func (h PasswordHasher) Hash(password []byte, saltHex string) (encoded, usedSalt string, err error) {
	if saltHex == "" {
		saltHex, err = common.MakeRandHexString(SaltSize)
		if err != nil {
			return "", "", fmt.Errorf("generating salt: %w", err)
		}
	}
	salt, err := decodeSalt(saltHex)
	if err != nil {
		return "", "", err
	}

	sum := argon2.IDKey(password, salt, h.Time, h.MemoryKiB, h.Threads, h.KeyLength)
	encoded = fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.MemoryKiB,
		h.Time,
		h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	)
	return encoded, saltHex, nil
}

// Verify reports whether password hashed with saltHex matches encoded. The
// Argon2 parameters are read back from encoded, so hashes made with older
// parameters keep verifying. Comparison is constant time.
func Verify(password []byte, saltHex, encoded string) (bool, error) {
	params, storedSalt, sum, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	salt, err := decodeSalt(saltHex)
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare(salt, storedSalt) != 1 {
		return false, nil
	}

	candidate := argon2.IDKey(password, salt, params.Time, params.MemoryKiB, params.Threads, params.KeyLength)
	return subtle.ConstantTimeCompare(sum, candidate) == 1, nil
}

func decodeSalt(saltHex string) ([]byte, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) < SaltSize {
		return nil, ErrInvalidSalt
	}
	return salt, nil
}

func decodeHash(encoded string) (PasswordHasher, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return PasswordHasher{}, nil, nil, ErrInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return PasswordHasher{}, nil, nil, ErrInvalidHashFormat
	}
	if version != argon2.Version {
		return PasswordHasher{}, nil, nil, ErrIncompatibleVersion
	}

	var p PasswordHasher
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return PasswordHasher{}, nil, nil, ErrInvalidHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return PasswordHasher{}, nil, nil, ErrInvalidHashFormat
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return PasswordHasher{}, nil, nil, ErrInvalidHashFormat
	}
	p.KeyLength = uint32(len(sum))

	return p, salt, sum, nil
}
