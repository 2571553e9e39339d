package identities

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// InMemoryRepository is a mutex-guarded credential store used in tests and
// local development. It honors the same contract as the Postgres store,
// including the atomic uniqueness check on email.
type InMemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]*models.Identity
	byEmail map[string]string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:    make(map[string]*models.Identity),
		byEmail: make(map[string]string),
	}
}

// clone keeps callers from mutating stored records through returned pointers.
func clone(identity *models.Identity) *models.Identity {
	c := *identity
	c.SecretHash = append([]byte(nil), identity.SecretHash...)
	return &c
}

func (r *InMemoryRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[identity.Email]; ok {
		return nil, common.ErrorEmailTaken
	}

	stored := clone(identity)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID

	return clone(stored), nil
}

func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(identity), nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*models.Identity, 0, len(r.byID))
	for _, identity := range r.byID {
		c := clone(identity)
		c.SecretHash = nil // same projection as the SQL store
		result = append(result, c)
	}
	return result, nil
}

func (r *InMemoryRepository) UpdateByID(ctx context.Context, id string, displayName string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	identity.DisplayName = displayName

	c := clone(identity)
	c.SecretHash = nil
	return c, nil
}

func (r *InMemoryRepository) DeleteByID(ctx context.Context, id string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, identity.Email)

	c := clone(identity)
	c.SecretHash = nil
	return c, nil
}

var _ Repository = (*InMemoryRepository)(nil)
