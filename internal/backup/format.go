// Package backup defines the encrypted backup file.
//
// A backup file is one JSON header line followed by the base64 ciphertext of
// a zip archive:
//
//	{"version":1,"timestamp":"2026-01-02T03:04:05Z","nonce":"...","salt":"...","iterations":100000}
//	<base64 ChaCha20-Poly1305 ciphertext>
//
// The key is PBKDF2 of the primary password with the salt and iteration
// count from the header. The version gates future format changes; readers
// reject versions they do not know.
package backup

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
)

// Version is the format written by this package.
const Version = 1

// maxHeader bounds the header line.
const maxHeader = 4096

// Header is the clear-text first line of a backup.
type Header struct {
	Version    int       `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	Nonce      string    `json:"nonce"`
	Salt       string    `json:"salt"`
	Iterations int       `json:"iterations"`
}

// Write seals archive under key and writes the backup to w.
func Write(w io.Writer, archive, key []byte, salt string, iterations int, now time.Time) error {
	ct, nonce, err := cryptox.Encrypt(archive, key)
	if err != nil {
		return err
	}
	h := Header{
		Version:    Version,
		Timestamp:  now.UTC(),
		Nonce:      nonce,
		Salt:       salt,
		Iterations: iterations,
	}
	line, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	bw := bufio.NewWriter(w)
	bw.Write(line)
	bw.WriteByte('\n')
	bw.WriteString(ct)
	return bw.Flush()
}

// File is a parsed but still encrypted backup.
type File struct {
	Header Header
	Body   string
}

// Read parses a backup without decrypting it.
func Read(r io.Reader) (*File, error) {
	br := bufio.NewReaderSize(r, maxHeader)
	line, err := br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, fmt.Errorf("backup header longer than %d bytes", maxHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("read backup header: %w", err)
	}

	var h Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return nil, fmt.Errorf("decode backup header: %w", err)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", common.ErrUnsupportedBackupVersion, h.Version)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read backup body: %w", err)
	}
	return &File{Header: h, Body: strings.TrimSpace(string(body))}, nil
}

// Open decrypts the archive with key.
func (f *File) Open(key []byte) ([]byte, error) {
	return cryptox.Decrypt(f.Body, f.Header.Nonce, key)
}

// Key derives the backup key from the primary password and the header.
func (f *File) Key(password []byte) ([]byte, error) {
	salt, err := hex.DecodeString(f.Header.Salt)
	if err != nil || len(salt) == 0 {
		return nil, cryptox.ErrInvalidSalt
	}
	key, _ := cryptox.DeriveKey(password, salt, f.Header.Iterations)
	return key, nil
}
