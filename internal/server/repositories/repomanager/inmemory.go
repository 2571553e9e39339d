package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/identities"
)

// InMemoryRepositoryManager serves tests and local runs without Postgres.
// It always vends the same store instance, so the DBTX argument is ignored
// and migrations are a no-op.
type InMemoryRepositoryManager struct {
	identities *identities.InMemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{identities: identities.NewInMemoryRepository()}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Identities(db dbx.DBTX) identities.Repository {
	return m.identities
}

var _ RepositoryManager = (*InMemoryRepositoryManager)(nil)
