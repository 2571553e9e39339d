package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE code raised when the email unique
// constraint rejects an insert.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {

	query :=
		`INSERT INTO identities (id, email, display_name, secret_hash)
         VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		identity.ID, identity.Email, identity.DisplayName, identity.SecretHash).Scan(&identity.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorEmailTaken
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}

	return identity, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query :=
		`SELECT id, email, display_name, secret_hash, created_at FROM identities
		 WHERE email = $1
		 `

	identity := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&identity.ID, &identity.Email, &identity.DisplayName, &identity.SecretHash, &identity.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}

	return identity, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	query :=
		`SELECT id, email, display_name, secret_hash, created_at FROM identities
		 WHERE id = $1
		 `

	identity := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&identity.ID, &identity.Email, &identity.DisplayName, &identity.SecretHash, &identity.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}

	return identity, nil
}

// List never selects the secret_hash column.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Identity, error) {
	query :=
		`SELECT id, email, display_name, created_at FROM identities
		 ORDER BY created_at
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}
	defer rows.Close()

	var result []*models.Identity
	for rows.Next() {
		identity := &models.Identity{}
		if err := rows.Scan(&identity.ID, &identity.Email, &identity.DisplayName, &identity.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
		}
		result = append(result, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}

	return result, nil
}

func (r *PostgresRepository) UpdateByID(ctx context.Context, id string, displayName string) (*models.Identity, error) {
	query :=
		`UPDATE identities SET display_name = $2
		 WHERE id = $1
		 RETURNING id, email, display_name, created_at
		 `

	identity := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, id, displayName).
		Scan(&identity.ID, &identity.Email, &identity.DisplayName, &identity.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}

	return identity, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) (*models.Identity, error) {
	query :=
		`DELETE FROM identities
		 WHERE id = $1
		 RETURNING id, email, display_name, created_at
		 `

	identity := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&identity.ID, &identity.Email, &identity.DisplayName, &identity.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}

	return identity, nil
}

var _ Repository = (*PostgresRepository)(nil)
