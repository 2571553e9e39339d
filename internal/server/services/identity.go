// Package services contains server-side business logic. This file implements
// IdentityService, which handles registration, login, token issuance, and
// per-request token validation on top of the credential store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// IdentityService provides the authentication operations:
//   - Register: validate input, hash the secret, create the identity
//   - Login: verify credentials and mint a token
//   - ValidateToken: gate protected requests, yielding the subject id
//
// plus the administrative List/Get/UpdateDisplayName/Delete operations.
type IdentityService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	jwtSecret             []byte
	tokenValidityDuration time.Duration
	bcryptCost            int

	// dummyHash is compared against on the unknown-email login path so that
	// "no such email" and "wrong secret" take about the same time.
	dummyHash []byte
}

// NewIdentityService constructs an IdentityService using repositories and
// server config.
func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) (*IdentityService, error) {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("invalid bcrypt cost %d", cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("authkeeper-dummy"), cost)
	if err != nil {
		return nil, fmt.Errorf("error preparing dummy hash: %w", err)
	}

	return &IdentityService{
		db:                    db,
		repomanager:           m,
		jwtSecret:             []byte(cfg.SecretKey),
		tokenValidityDuration: cfg.TokenValidityDuration,
		bcryptCost:            cost,
		dummyHash:             dummy,
	}, nil
}

func validateRegistration(email, secret string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: malformed email", common.ErrorValidation)
	}
	if secret == "" {
		return fmt.Errorf("%w: empty secret", common.ErrorValidation)
	}
	return nil
}

// Register hashes the secret and persists a new identity. A duplicate email
// surfaces as common.ErrorEmailTaken. The returned record never carries the
// hash.
func (s *IdentityService) Register(ctx context.Context, email, displayName, secret string) (*models.Identity, error) {

	if err := validateRegistration(email, secret); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing secret: %w", err)
	}

	identity := &models.Identity{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		SecretHash:  hash,
	}

	created, err := s.repomanager.Identities(s.db).Create(ctx, identity)
	if err != nil {
		return nil, err
	}

	created.SecretHash = nil
	return created, nil
}

// Login verifies the (email, secret) pair and returns a signed token. An
// unknown email and a wrong secret both fail with
// common.ErrorInvalidCredentials; the unknown-email path still burns a
// bcrypt comparison so the two are indistinguishable by latency as well.
func (s *IdentityService) Login(ctx context.Context, email, secret string) (string, error) {

	identity, err := s.repomanager.Identities(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
			return "", common.ErrorInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(identity.SecretHash, []byte(secret)); err != nil {
		return "", common.ErrorInvalidCredentials
	}

	token, err := auth.GenerateToken(identity.ID, s.jwtSecret, s.tokenValidityDuration)
	if err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}

	return token, nil
}

// ValidateToken verifies the token string and returns the subject identity
// id. Failures are common.ErrTokenExpired or common.ErrInvalidToken.
func (s *IdentityService) ValidateToken(tokenString string) (string, error) {
	return auth.GetUserIDFromToken(tokenString, s.jwtSecret)
}

// Get returns one identity without its secret hash.
func (s *IdentityService) Get(ctx context.Context, id string) (*models.Identity, error) {
	identity, err := s.repomanager.Identities(s.db).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	identity.SecretHash = nil
	return identity, nil
}

// List returns all identities; the store projects the secret hash out.
func (s *IdentityService) List(ctx context.Context) ([]*models.Identity, error) {
	return s.repomanager.Identities(s.db).List(ctx)
}

// UpdateDisplayName changes the display name of an existing identity.
func (s *IdentityService) UpdateDisplayName(ctx context.Context, id, displayName string) (*models.Identity, error) {
	return s.repomanager.Identities(s.db).UpdateByID(ctx, id, displayName)
}

// Delete removes an identity and returns the deleted record.
func (s *IdentityService) Delete(ctx context.Context, id string) (*models.Identity, error) {
	return s.repomanager.Identities(s.db).DeleteByID(ctx, id)
}
