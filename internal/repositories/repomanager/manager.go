// Package repomanager vends repositories bound to a DB handle or a
// transaction for the configured SQL dialect.
package repomanager

import (
	"github.com/dmitrijs2005/heirvault/internal/dbx"
	"github.com/dmitrijs2005/heirvault/internal/repositories/auditlog"
	"github.com/dmitrijs2005/heirvault/internal/repositories/compartments"
	"github.com/dmitrijs2005/heirvault/internal/repositories/metadata"
	"github.com/dmitrijs2005/heirvault/internal/repositories/secrets"
	"github.com/dmitrijs2005/heirvault/internal/repositories/users"
)

type RepositoryManager interface {
	Dialect() dbx.Dialect
	Users(db dbx.DBTX) users.Repository
	Compartments(db dbx.DBTX) compartments.Repository
	Secrets(db dbx.DBTX) secrets.Repository
	AuditLog(db dbx.DBTX) auditlog.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

// SQLRepositoryManager builds the SQL implementations for one dialect.
type SQLRepositoryManager struct {
	d dbx.Dialect
}

func NewSQLRepositoryManager(d dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{d: d}
}

func (m *SQLRepositoryManager) Dialect() dbx.Dialect { return m.d }

func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.d)
}

func (m *SQLRepositoryManager) Compartments(db dbx.DBTX) compartments.Repository {
	return compartments.NewSQLRepository(db, m.d)
}

func (m *SQLRepositoryManager) Secrets(db dbx.DBTX) secrets.Repository {
	return secrets.NewSQLRepository(db, m.d)
}

func (m *SQLRepositoryManager) AuditLog(db dbx.DBTX) auditlog.Repository {
	return auditlog.NewSQLRepository(db, m.d)
}

func (m *SQLRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLRepository(db, m.d)
}
