package auth

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/compartments"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/mnemonic"
	"github.com/dmitrijs2005/heirvault/internal/models"
)

// RecoveryLabel is the HMAC label that turns the recovery seed into the key
// wrapping the principal compartment key.
const RecoveryLabel = "recovery"

var ErrEmptyPassword = errors.New("password must not be empty")

// Material is a freshly built set of credential secrets. The credential is
// complete apart from ID, DisplayName and CreatedAt.
type Material struct {
	Credential     models.UserCredential
	MasterKey      []byte
	RecoveryPhrase string
}

// BuildMaterial hashes both passwords under fresh salts, derives the master
// and inheritance keys, issues a new recovery phrase and wraps principalKey
// under all three.
func BuildMaterial(h cryptox.PasswordHasher, iterations int, primary, inheritance, principalKey []byte) (*Material, error) {
	if len(primary) == 0 || len(inheritance) == 0 {
		return nil, ErrEmptyPassword
	}
	if bytes.Equal(primary, inheritance) {
		return nil, common.ErrPasswordsMustDiffer
	}
	if iterations <= 0 {
		iterations = cryptox.DefaultIterations
	}

	primaryHash, primarySalt, err := h.Hash(primary, "")
	if err != nil {
		return nil, err
	}
	inheritanceHash, inheritanceSalt, err := h.Hash(inheritance, "")
	if err != nil {
		return nil, err
	}

	masterKey, err := deriveFromHexSalt(primary, primarySalt, iterations)
	if err != nil {
		return nil, err
	}
	inheritanceKey, err := deriveFromHexSalt(inheritance, inheritanceSalt, iterations)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(inheritanceKey)

	phrase, err := mnemonic.Generate(12)
	if err != nil {
		return nil, err
	}
	seed := mnemonic.Seed(phrase, "")
	defer common.WipeByteArray(seed)
	recoveryKey := cryptox.LabeledKey(RecoveryLabel, seed)
	defer common.WipeByteArray(recoveryKey)

	m := &Material{
		MasterKey:      masterKey,
		RecoveryPhrase: phrase,
		Credential: models.UserCredential{
			PrimaryHash:     primaryHash,
			PrimarySalt:     primarySalt,
			InheritanceHash: inheritanceHash,
			InheritanceSalt: inheritanceSalt,
			RecoverySeedHex: hex.EncodeToString(cryptox.MakeVerifier(seed)),
			KDFIterations:   iterations,
		},
	}
	c := &m.Credential
	if c.PrincipalKeyWrapped, c.PrincipalKeyNonce, err = compartments.WrapKey(principalKey, masterKey); err != nil {
		return nil, err
	}
	if c.InheritanceKeyWrapped, c.InheritanceKeyNonce, err = compartments.WrapKey(principalKey, inheritanceKey); err != nil {
		return nil, err
	}
	if c.RecoveryKeyWrapped, c.RecoveryKeyNonce, err = compartments.WrapKey(principalKey, recoveryKey); err != nil {
		return nil, err
	}
	return m, nil
}

// Apply copies the secret fields of m onto u, keeping u's identity.
func (m *Material) Apply(u *models.UserCredential) {
	id, name, created := u.ID, u.DisplayName, u.CreatedAt
	*u = m.Credential
	u.ID, u.DisplayName, u.CreatedAt = id, name, created
}

// MasterKeyFor derives the master key of a verified primary password.
func MasterKeyFor(u *models.UserCredential, primary []byte) ([]byte, error) {
	return deriveFromHexSalt(primary, u.PrimarySalt, u.KDFIterations)
}

// InheritanceKeyFor derives the key of a verified inheritance password.
func InheritanceKeyFor(u *models.UserCredential, inheritance []byte) ([]byte, error) {
	return deriveFromHexSalt(inheritance, u.InheritanceSalt, u.KDFIterations)
}

// RecoveryKeyFor checks phrase against the stored recovery verifier and
// returns the recovery key on a match.
func RecoveryKeyFor(u *models.UserCredential, phrase string) ([]byte, error) {
	phrase = mnemonic.Normalize(phrase)
	if !mnemonic.Validate(phrase) {
		return nil, common.ErrInvalidMnemonic
	}
	seed := mnemonic.Seed(phrase, "")
	defer common.WipeByteArray(seed)

	want, err := hex.DecodeString(u.RecoverySeedHex)
	if err != nil || subtle.ConstantTimeCompare(want, cryptox.MakeVerifier(seed)) != 1 {
		return nil, common.ErrInvalidCredential
	}
	return cryptox.LabeledKey(RecoveryLabel, seed), nil
}

func deriveFromHexSalt(secret []byte, saltHex string, iterations int) ([]byte, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, cryptox.ErrInvalidSalt
	}
	key, _ := cryptox.DeriveKey(secret, salt, iterations)
	return key, nil
}
