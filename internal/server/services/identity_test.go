package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/identities"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:             "test-secret",
		TokenValidityDuration: time.Hour,
		BcryptCost:            bcrypt.MinCost, // keep tests fast
	}
}

func newService(t *testing.T, cfg *config.Config) *IdentityService {
	t.Helper()
	s, err := NewIdentityService(nil, repomanager.NewInMemoryRepositoryManager(), cfg)
	if err != nil {
		t.Fatalf("NewIdentityService error: %v", err)
	}
	return s
}

// failingRepo simulates an unreachable store.
type failingRepo struct{ err error }

func (f *failingRepo) Create(context.Context, *models.Identity) (*models.Identity, error) {
	return nil, f.err
}
func (f *failingRepo) FindByEmail(context.Context, string) (*models.Identity, error) {
	return nil, f.err
}
func (f *failingRepo) FindByID(context.Context, string) (*models.Identity, error) {
	return nil, f.err
}
func (f *failingRepo) List(context.Context) ([]*models.Identity, error) { return nil, f.err }
func (f *failingRepo) UpdateByID(context.Context, string, string) (*models.Identity, error) {
	return nil, f.err
}
func (f *failingRepo) DeleteByID(context.Context, string) (*models.Identity, error) {
	return nil, f.err
}

type failingManager struct{ repo identities.Repository }

func (m *failingManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *failingManager) Identities(dbx.DBTX) identities.Repository    { return m.repo }

// --- tests ---

func TestRegisterLoginValidate_RoundTrip(t *testing.T) {
	s := newService(t, testConfig())
	ctx := context.Background()

	created, err := s.Register(ctx, "alice@example.com", "Alice", "hunter2")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if created.ID == "" || created.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", created)
	}
	if created.SecretHash != nil {
		t.Fatal("secret hash returned from Register")
	}

	token, err := s.Login(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	subject, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	if subject != created.ID {
		t.Fatalf("subject mismatch: got %q want %q", subject, created.ID)
	}
}

func TestRegister_Validation(t *testing.T) {
	s := newService(t, testConfig())
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "", ""); !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("empty secret: want common.ErrorValidation, got %v", err)
	}
	if _, err := s.Register(ctx, "", "", "pw"); !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("empty email: want common.ErrorValidation, got %v", err)
	}
	if _, err := s.Register(ctx, "not-an-email", "", "pw"); !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("malformed email: want common.ErrorValidation, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newService(t, testConfig())
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "", "pw1"); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	_, err := s.Register(ctx, "alice@example.com", "", "pw2")
	if !errors.Is(err, common.ErrorEmailTaken) {
		t.Fatalf("want common.ErrorEmailTaken, got %v", err)
	}
}

func TestRegister_ConcurrentDuplicate(t *testing.T) {
	s := newService(t, testConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Register(ctx, "race@example.com", "", "pw")
		}(i)
	}
	wg.Wait()

	var ok, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, common.ErrorEmailTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || taken != 1 {
		t.Fatalf("want one success and one duplicate failure, got ok=%d taken=%d", ok, taken)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	s := newService(t, testConfig())
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "", "hunter2"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	_, errWrongSecret := s.Login(ctx, "alice@example.com", "wrongpass")
	_, errUnknownEmail := s.Login(ctx, "ghost@example.com", "whatever")

	if !errors.Is(errWrongSecret, common.ErrorInvalidCredentials) {
		t.Fatalf("wrong secret: want common.ErrorInvalidCredentials, got %v", errWrongSecret)
	}
	if !errors.Is(errUnknownEmail, common.ErrorInvalidCredentials) {
		t.Fatalf("unknown email: want common.ErrorInvalidCredentials, got %v", errUnknownEmail)
	}
	// identical in kind: the same sentinel, nothing extra wrapped around it
	if errWrongSecret.Error() != errUnknownEmail.Error() {
		t.Fatalf("error texts differ: %q vs %q", errWrongSecret, errUnknownEmail)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.TokenValidityDuration = -1 * time.Second
	s := newService(t, cfg)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice@example.com", "", "hunter2"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	token, err := s.Login(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	_, err = s.ValidateToken(token)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("want common.ErrTokenExpired, got %v", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	s := newService(t, testConfig())

	_, err := s.ValidateToken("definitely-not-a-token")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want common.ErrInvalidToken, got %v", err)
	}
}

func TestList_NeverIncludesSecretHash(t *testing.T) {
	s := newService(t, testConfig())
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := s.Register(ctx, email, "", "pw"); err != nil {
			t.Fatalf("Register error: %v", err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("want 2 identities, got %d", len(all))
	}
	for _, identity := range all {
		if identity.SecretHash != nil {
			t.Fatalf("secret hash leaked for %s", identity.ID)
		}
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newService(t, testConfig())
	ctx := context.Background()

	created, err := s.Register(ctx, "alice@example.com", "Alice", "pw")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	updated, err := s.UpdateDisplayName(ctx, created.ID, "Alice A.")
	if err != nil {
		t.Fatalf("UpdateDisplayName error: %v", err)
	}
	if updated.DisplayName != "Alice A." {
		t.Fatalf("unexpected identity: %+v", updated)
	}

	if _, err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, created.ID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound after delete, got %v", err)
	}
}

func TestLogin_StoreUnavailable(t *testing.T) {
	m := &failingManager{repo: &failingRepo{err: common.ErrorStoreUnavailable}}
	s, err := NewIdentityService(nil, m, testConfig())
	if err != nil {
		t.Fatalf("NewIdentityService error: %v", err)
	}

	_, err = s.Login(context.Background(), "alice@example.com", "pw")
	if !errors.Is(err, common.ErrorStoreUnavailable) {
		t.Fatalf("want common.ErrorStoreUnavailable, got %v", err)
	}
	// an unreachable store must not look like bad credentials
	if errors.Is(err, common.ErrorInvalidCredentials) {
		t.Fatal("store failure reported as invalid credentials")
	}
}

func TestNewIdentityService_RejectsInvalidCost(t *testing.T) {
	cfg := testConfig()
	cfg.BcryptCost = 99
	if _, err := NewIdentityService(nil, repomanager.NewInMemoryRepositoryManager(), cfg); err == nil {
		t.Fatal("expected error for out-of-range bcrypt cost")
	}
}
