package compartments

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/mnemonic"
)

// KeyLabel is the HMAC label that turns a compartment seed into its key.
const KeyLabel = "compartimento"

// entropyBits gives 12-word phrases.
const entropyBits = 128

// FromPhrase derives the lookup id and key of the compartment a phrase
// belongs to. The phrase is normalised first; an invalid phrase yields
// common.ErrInvalidMnemonic.
func FromPhrase(phrase string) (id string, key []byte, err error) {
	phrase = mnemonic.Normalize(phrase)
	if !mnemonic.Validate(phrase) {
		return "", nil, common.ErrInvalidMnemonic
	}
	seed := mnemonic.Seed(phrase, "")
	defer common.WipeByteArray(seed)
	return hex.EncodeToString(seed[:16]), cryptox.LabeledKey(KeyLabel, seed), nil
}

// WrapKey seals the hex form of key under wrappingKey.
func WrapKey(key, wrappingKey []byte) (wrapped, nonce string, err error) {
	return cryptox.Encrypt([]byte(hex.EncodeToString(key)), wrappingKey)
}

// UnwrapKey reverses WrapKey. A tag mismatch means the wrapping key is wrong
// and is reported as common.ErrWrongMasterKey.
func UnwrapKey(wrapped, nonce string, wrappingKey []byte) ([]byte, error) {
	pt, err := cryptox.Decrypt(wrapped, nonce, wrappingKey)
	if errors.Is(err, common.ErrAuthenticationFailure) {
		return nil, common.ErrWrongMasterKey
	}
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pt)

	key := make([]byte, hex.DecodedLen(len(pt)))
	if _, err := hex.Decode(key, pt); err != nil {
		return nil, fmt.Errorf("malformed wrapped key: %w", err)
	}
	if len(key) != cryptox.KeySize {
		return nil, common.ErrInvalidKeyLength
	}
	return key, nil
}
