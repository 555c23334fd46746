package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/blobstore"
	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/cryptox"
	"github.com/dmitrijs2005/heirvault/internal/logging"
	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/session"
	"github.com/dmitrijs2005/heirvault/internal/store"
	"github.com/dmitrijs2005/heirvault/internal/vaultcipher"
)

var (
	ErrKindMismatch = errors.New("entry kind cannot change")
	ErrNotAFile     = errors.New("entry is not a file")
	ErrUseAddFile   = errors.New("file entries are added with AddFile")
)

// readModes may read secrets; only normal sessions may write.
var readModes = []session.AccessMode{session.ModeNormal, session.ModeInheritance, session.ModeRestrictedCompartment}

// EntrySummary is the clear-text view of a record used for listings.
type EntrySummary struct {
	ID         string
	Kind       models.EntryType
	Title      string
	CategoryID *string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// VaultService manages secrets in the session's active compartment.
type VaultService interface {
	Add(ctx context.Context, env models.Envelope, categoryID *string) (string, error)
	AddFile(ctx context.Context, title string, md []models.Metadata, categoryID *string, originalName string, content io.Reader) (string, error)
	Update(ctx context.Context, id string, env models.Envelope) error
	List(ctx context.Context, f models.SecretFilter) ([]EntrySummary, error)
	Get(ctx context.Context, id string) (*models.Envelope, error)
	Delete(ctx context.Context, id string) error
	ExtractFile(ctx context.Context, id string, w io.Writer) (*models.File, error)
	Stats(ctx context.Context) ([]models.KindCount, error)
}

type vaultService struct {
	store  *store.Store
	blobs  blobstore.Store
	sess   *session.Session
	cipher *vaultcipher.Cipher
	log    logging.Logger
}

func NewVaultService(st *store.Store, blobs blobstore.Store, sess *session.Session, cipher *vaultcipher.Cipher, log logging.Logger) VaultService {
	if log == nil {
		log = logging.Nop{}
	}
	return &vaultService{store: st, blobs: blobs, sess: sess, cipher: cipher, log: log}
}

func (s *vaultService) Add(ctx context.Context, env models.Envelope, categoryID *string) (string, error) {
	if env.Type == models.EntryTypeFile {
		return "", ErrUseAddFile
	}
	if _, err := env.Unwrap(); err != nil {
		return "", err
	}
	rec, err := s.seal(env, "")
	if err != nil {
		return "", err
	}
	rec.CategoryID = categoryID
	if err := s.store.Repos().Secrets.CreateOrUpdate(ctx, rec); err != nil {
		return "", common.Storage("save secret", err)
	}
	s.log.Debug(ctx, "secret added", "id", rec.ID, "kind", string(rec.Kind))
	return rec.ID, nil
}

func (s *vaultService) AddFile(ctx context.Context, title string, md []models.Metadata, categoryID *string, originalName string, content io.Reader) (string, error) {
	if err := s.sess.Require(session.ModeNormal); err != nil {
		return "", err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	fileKey := common.GenerateRandByteArray(cryptox.KeySize)
	defer common.WipeByteArray(fileKey)
	sealed, nonce, err := cryptox.Seal(data, fileKey)
	common.WipeByteArray(data)
	if err != nil {
		return "", err
	}

	blobName, err := cryptox.SecureRandomID(16)
	if err != nil {
		return "", err
	}
	if err := s.blobs.Write(ctx, blobName, sealed); err != nil {
		return "", err
	}

	env, err := models.Wrap(title, md, models.File{
		OriginalName: originalName,
		Size:         int64(len(data)),
		Key:          fileKey,
		Nonce:        nonce,
	})
	if err != nil {
		_ = s.blobs.Delete(ctx, blobName)
		return "", err
	}
	rec, err := s.seal(env, blobName)
	if err == nil {
		rec.CategoryID = categoryID
		err = s.store.Repos().Secrets.CreateOrUpdate(ctx, rec)
		if err != nil {
			err = common.Storage("save secret", err)
		}
	}
	if err != nil {
		if derr := s.blobs.Delete(ctx, blobName); derr != nil {
			s.log.Warn(ctx, "orphan blob left behind", "blob", blobName, "error", derr)
		}
		return "", err
	}
	s.log.Debug(ctx, "file added", "id", rec.ID, "size", len(sealed))
	return rec.ID, nil
}

// seal encrypts env into a new record in the active compartment.
func (s *vaultService) seal(env models.Envelope, blobName string) (*models.SecretRecord, error) {
	if err := s.sess.Require(session.ModeNormal); err != nil {
		return nil, err
	}
	name, key, err := s.sess.ActiveCompartment()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(payload)

	rec, err := s.cipher.StoreSecret(payload, name, key)
	if err != nil {
		return nil, err
	}
	rec.Kind = env.Type
	rec.Title = env.Title
	rec.BlobName = blobName
	return rec, nil
}

func (s *vaultService) Update(ctx context.Context, id string, env models.Envelope) error {
	if err := s.sess.Require(session.ModeNormal); err != nil {
		return err
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if env.Type != rec.Kind {
		return ErrKindMismatch
	}
	if rec.Kind == models.EntryTypeFile {
		// the blob key lives in the payload and must survive
		old, err := s.open(rec)
		if err != nil {
			return err
		}
		env.Details = old.Details
	}
	if _, err := env.Unwrap(); err != nil {
		return err
	}

	name, key, err := s.sess.ActiveCompartment()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(payload)

	if err := s.cipher.Reseal(rec, payload, name, key); err != nil {
		return err
	}
	rec.Title = env.Title
	if err := s.store.Repos().Secrets.CreateOrUpdate(ctx, rec); err != nil {
		return common.Storage("save secret", err)
	}
	return nil
}

func (s *vaultService) List(ctx context.Context, f models.SecretFilter) ([]EntrySummary, error) {
	if err := s.sess.Require(readModes...); err != nil {
		return nil, err
	}
	name, key, err := s.sess.ActiveCompartment()
	common.WipeByteArray(key)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.Repos().Secrets.ListByCompartment(ctx, name, f)
	if err != nil {
		return nil, common.Storage("list secrets", err)
	}
	out := make([]EntrySummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, EntrySummary{
			ID:         r.ID,
			Kind:       r.Kind,
			Title:      r.Title,
			CategoryID: r.CategoryID,
			CreatedAt:  r.CreatedAt,
			ModifiedAt: r.ModifiedAt,
		})
	}
	return out, nil
}

func (s *vaultService) Get(ctx context.Context, id string) (*models.Envelope, error) {
	if err := s.sess.Require(readModes...); err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.open(rec)
}

func (s *vaultService) Delete(ctx context.Context, id string) error {
	if err := s.sess.Require(session.ModeNormal); err != nil {
		return err
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	active, key, err := s.sess.ActiveCompartment()
	common.WipeByteArray(key)
	if err != nil {
		return err
	}
	if rec.CompartmentName != active {
		return common.ErrCrossCompartmentAccessDenied
	}

	if err := s.store.Repos().Secrets.DeleteByID(ctx, id); err != nil {
		return common.Storage("delete secret", err)
	}
	if rec.BlobName != "" {
		if err := s.blobs.Delete(ctx, rec.BlobName); err != nil {
			s.log.Warn(ctx, "blob delete failed", "blob", rec.BlobName, "error", err)
		}
	}
	return nil
}

func (s *vaultService) ExtractFile(ctx context.Context, id string, w io.Writer) (*models.File, error) {
	if err := s.sess.Require(readModes...); err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Kind != models.EntryTypeFile || rec.BlobName == "" {
		return nil, ErrNotAFile
	}
	env, err := s.open(rec)
	if err != nil {
		return nil, err
	}
	v, err := env.Unwrap()
	if err != nil {
		return nil, err
	}
	f, ok := v.(*models.File)
	if !ok {
		return nil, ErrNotAFile
	}

	sealed, err := s.blobs.Read(ctx, rec.BlobName)
	if err != nil {
		return nil, err
	}
	data, err := cryptox.Open(sealed, f.Nonce, f.Key)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(data)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	return f, nil
}

func (s *vaultService) Stats(ctx context.Context) ([]models.KindCount, error) {
	if err := s.sess.Require(readModes...); err != nil {
		return nil, err
	}
	name, key, err := s.sess.ActiveCompartment()
	common.WipeByteArray(key)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Repos().Secrets.CountByKind(ctx, name)
	if err != nil {
		return nil, common.Storage("count secrets", err)
	}
	return counts, nil
}

func (s *vaultService) load(ctx context.Context, id string) (*models.SecretRecord, error) {
	rec, err := s.store.Repos().Secrets.GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, common.Storage("get secret", err)
	}
	return rec, nil
}

// open decrypts rec with the active compartment key.
func (s *vaultService) open(rec *models.SecretRecord) (*models.Envelope, error) {
	name, key, err := s.sess.ActiveCompartment()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	pt, err := s.cipher.ReadSecret(rec, name, key)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pt)

	var env models.Envelope
	if err := json.Unmarshal(pt, &env); err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	return &env, nil
}
