package services

import (
	"context"

	"github.com/dmitrijs2005/heirvault/internal/blobstore"
	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/store"
)

// Wiper is the autodestruct. It removes every secret record in every
// compartment together with the file blobs they reference. The user
// credential, compartments and settings are kept so the owner can still log
// in or recover.
type Wiper struct {
	store *store.Store
	blobs blobstore.Store
	log   logging.Logger
}

func NewWiper(st *store.Store, blobs blobstore.Store, log logging.Logger) *Wiper {
	if log == nil {
		log = logging.Nop{}
	}
	return &Wiper{store: st, blobs: blobs, log: log}
}

// Wipe is idempotent. Blob deletion failures are logged but do not fail the
// wipe: the per-file keys went with the records, so leftover blobs are
// unreadable.
func (w *Wiper) Wipe(ctx context.Context) error {
	r := w.store.Repos()
	records, err := r.Secrets.ListAll(ctx)
	if err != nil {
		return common.Storage("list secrets", err)
	}

	n, err := r.Secrets.DeleteAll(ctx)
	if err != nil {
		return common.Storage("delete secrets", err)
	}

	blobFailures := 0
	for _, rec := range records {
		if rec.BlobName == "" || w.blobs == nil {
			continue
		}
		if err := w.blobs.Delete(ctx, rec.BlobName); err != nil {
			blobFailures++
			w.log.Warn(ctx, "blob delete failed during wipe", "blob", rec.BlobName, "error", err)
		}
	}

	w.log.Warn(ctx, "vault wiped", "records", n, "blob_failures", blobFailures)
	return nil
}
