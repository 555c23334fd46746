// Package vaultcipher seals and opens secret records under a compartment key.
// Every record is tagged with the compartment it was written in and that tag
// is checked before any decryption is attempted.
package vaultcipher

import (
	"fmt"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/timex"
	"github.com/google/uuid"
)

// Cipher is stateless apart from its clock.
type Cipher struct {
	clock timex.Clock
}

func New(clock timex.Clock) *Cipher {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &Cipher{clock: clock}
}

// StoreSecret encrypts plaintext into a new record owned by compartment.
func (c *Cipher) StoreSecret(plaintext []byte, compartment string, key []byte) (*models.SecretRecord, error) {
	ct, nonce, err := cryptox.Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now().UTC()
	return &models.SecretRecord{
		ID:              uuid.NewString(),
		Ciphertext:      ct,
		Nonce:           nonce,
		CreatedAt:       now,
		ModifiedAt:      now,
		CompartmentName: compartment,
	}, nil
}

// Reseal replaces the payload of an existing record, keeping its identity and
// creation time. The record must belong to compartment.
func (c *Cipher) Reseal(rec *models.SecretRecord, plaintext []byte, compartment string, key []byte) error {
	if rec.CompartmentName != compartment {
		return common.ErrCrossCompartmentAccessDenied
	}
	ct, nonce, err := cryptox.Encrypt(plaintext, key)
	if err != nil {
		return err
	}
	rec.Ciphertext, rec.Nonce = ct, nonce
	rec.ModifiedAt = c.clock.Now().UTC()
	return nil
}

// ReadSecret decrypts rec, refusing records from another compartment even
// when key would open them.
func (c *Cipher) ReadSecret(rec *models.SecretRecord, activeCompartment string, key []byte) ([]byte, error) {
	if rec.CompartmentName != activeCompartment {
		return nil, fmt.Errorf("%w: record %s belongs to %q", common.ErrCrossCompartmentAccessDenied, rec.ID, rec.CompartmentName)
	}
	return cryptox.Decrypt(rec.Ciphertext, rec.Nonce, key)
}

// ReencryptResult lists what ReencryptAll changed and what it skipped.
type ReencryptResult struct {
	Updated []models.SecretRecord
	Failed  map[string]error
}

// ReencryptAll re-seals every record from oldKey to newKey. A record that
// does not open under oldKey is skipped and reported in Failed; the rest of
// the batch still proceeds. Input records are not modified.
func (c *Cipher) ReencryptAll(oldKey, newKey []byte, records []models.SecretRecord) (ReencryptResult, error) {
	if len(oldKey) != cryptox.KeySize || len(newKey) != cryptox.KeySize {
		return ReencryptResult{}, common.ErrInvalidKeyLength
	}

	res := ReencryptResult{
		Updated: make([]models.SecretRecord, 0, len(records)),
		Failed:  make(map[string]error),
	}
	for _, rec := range records {
		pt, err := cryptox.Decrypt(rec.Ciphertext, rec.Nonce, oldKey)
		if err != nil {
			res.Failed[rec.ID] = err
			continue
		}
		ct, nonce, err := cryptox.Encrypt(pt, newKey)
		common.WipeByteArray(pt)
		if err != nil {
			res.Failed[rec.ID] = err
			continue
		}
		rec.Ciphertext, rec.Nonce = ct, nonce
		res.Updated = append(res.Updated, rec)
	}
	return res, nil
}
