package backup

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/models"
)

const (
	snapshotName = "vault.json"
	blobDir      = "blobs/"
)

// Snapshot is the full vault state captured in a backup.
type Snapshot struct {
	CreatedAt    time.Time             `json:"created_at"`
	Credential   models.UserCredential `json:"credential"`
	Compartments []models.Compartment  `json:"compartments"`
	Secrets      []models.SecretRecord `json:"secrets"`
	Settings     map[string][]byte     `json:"settings"`
}

// Archive is a snapshot plus the sealed blobs it refers to.
type Archive struct {
	Snapshot Snapshot
	Blobs    map[string][]byte
}

// Pack zips a.
func Pack(a *Archive) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	f, err := zw.Create(snapshotName)
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(f).Encode(a.Snapshot); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	names := make([]string, 0, len(a.Blobs))
	for n := range a.Blobs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		w, err := zw.Create(blobDir + n)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(a.Blobs[n]); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unpack reads an archive produced by Pack.
func Unpack(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a := &Archive{Blobs: make(map[string][]byte)}
	seenSnapshot := false
	for _, zf := range zr.File {
		switch {
		case zf.Name == snapshotName:
			raw, err := readEntry(zf)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, &a.Snapshot); err != nil {
				return nil, fmt.Errorf("decode snapshot: %w", err)
			}
			seenSnapshot = true
		case strings.HasPrefix(zf.Name, blobDir):
			name := path.Base(zf.Name)
			if name == "" || name == "." || blobDir+name != zf.Name {
				return nil, fmt.Errorf("unexpected archive entry %q", zf.Name)
			}
			raw, err := readEntry(zf)
			if err != nil {
				return nil, err
			}
			a.Blobs[name] = raw
		}
	}
	if !seenSnapshot {
		return nil, fmt.Errorf("archive has no %s", snapshotName)
	}
	return a, nil
}

func readEntry(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", zf.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", zf.Name, err)
	}
	return b, nil
}
