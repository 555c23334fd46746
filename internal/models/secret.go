package models

import "time"

// SecretRecord is the stored form of a secret: title and kind in clear for
// listing, payload sealed under the compartment key.
type SecretRecord struct {
	ID              string
	Kind            EntryType
	Title           string
	Ciphertext      string
	Nonce           string
	CreatedAt       time.Time
	ModifiedAt      time.Time
	CategoryID      *string
	CompartmentName string
	// BlobName is set for file secrets and names the sealed blob.
	BlobName string
}

// SecretFilter narrows a listing. Empty fields match everything.
type SecretFilter struct {
	Kind        EntryType
	TitleSubstr string
	CategoryID  string
}

// KindCount is one row of the per-kind statistics.
type KindCount struct {
	Kind  EntryType
	Count int
}
