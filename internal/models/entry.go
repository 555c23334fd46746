package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EntryType classifies a secret.
type EntryType string

const (
	EntryTypeLogin  EntryType = "login"
	EntryTypeNote   EntryType = "note"
	EntryTypeFile   EntryType = "file"
	EntryTypeWallet EntryType = "wallet"
)

var (
	ErrIncorrectMetadata = errors.New("metadata item must be name=value")
	ErrUnknownEntryType  = errors.New("unknown entry type")
)

// Metadata is a free-form name/value pair attached to a secret.
type Metadata struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MetadataFromString parses "name=value" lines.
func MetadataFromString(s []string) ([]Metadata, error) {
	data := make([]Metadata, len(s))
	for n, item := range s {
		name, value, ok := strings.Cut(item, "=")
		if !ok || name == "" {
			return nil, ErrIncorrectMetadata
		}
		data[n] = Metadata{Name: name, Value: value}
	}
	return data, nil
}

// Envelope is the plaintext that gets sealed into a SecretRecord.
type Envelope struct {
	Type     EntryType       `json:"type"`
	Title    string          `json:"title"`
	Metadata []Metadata      `json:"metadata,omitempty"`
	Details  json.RawMessage `json:"details"`
}

// Wrap marshals v as the details of a new envelope.
func Wrap[T TypedEntry](title string, md []Metadata, v T) (Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: v.GetType(), Title: title, Metadata: md, Details: b}, nil
}

// Unwrap decodes Details into the concrete type for Type.
func (e Envelope) Unwrap() (TypedEntry, error) {
	var v TypedEntry
	switch e.Type {
	case EntryTypeLogin:
		v = &Login{}
	case EntryTypeNote:
		v = &Note{}
	case EntryTypeFile:
		v = &File{}
	case EntryTypeWallet:
		v = &Wallet{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntryType, e.Type)
	}
	if err := json.Unmarshal(e.Details, v); err != nil {
		return nil, err
	}
	return v, nil
}

type TypedEntry interface {
	GetType() EntryType
}

// Login stores site credentials.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
	URL      string `json:"url"`
}

func (Login) GetType() EntryType { return EntryTypeLogin }

// Note stores free-form text.
type Note struct {
	Text string `json:"text"`
}

func (Note) GetType() EntryType { return EntryTypeNote }

// File describes a sealed blob. Each blob has its own random key, kept only
// inside this payload.
type File struct {
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	Key          []byte `json:"key"`
	Nonce        []byte `json:"nonce"`
}

func (File) GetType() EntryType { return EntryTypeFile }

// Wallet stores a cryptocurrency wallet recovery phrase.
type Wallet struct {
	Network    string `json:"network"`
	Phrase     string `json:"phrase"`
	Passphrase string `json:"passphrase,omitempty"`
	Address    string `json:"address,omitempty"`
}

func (Wallet) GetType() EntryType { return EntryTypeWallet }

// ParseEntryType accepts the names used on the command line.
func ParseEntryType(s string) (EntryType, error) {
	switch t := EntryType(strings.ToLower(s)); t {
	case EntryTypeLogin, EntryTypeNote, EntryTypeFile, EntryTypeWallet:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntryType, s)
	}
}
