package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/olushako/vaulty/internal/store"
)

var testKeyMaterial = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	store    *store.BoltStore
	auth     *AuthService
	tokens   *TokenService
	projects *ProjectService
	secrets  *SecretService
	devices  *DeviceService
	activity *ActivityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "vaulty.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &testEnv{
		store:    s,
		auth:     NewAuthService(s),
		tokens:   NewTokenService(s),
		projects: NewProjectService(s),
		secrets:  NewSecretService(s, testKeyMaterial),
		devices:  NewDeviceService(s, testKeyMaterial),
		activity: NewActivityService(s, 7*24*time.Hour),
	}
}

// masterAuth bootstraps the init token and resolves it.
func (e *testEnv) masterAuth(t *testing.T) *AuthContext {
	t.Helper()
	ctx := context.Background()
	if err := e.tokens.Bootstrap(ctx, "bootstrap-master-token-value-0001"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	auth, err := e.auth.Resolve(ctx, "bootstrap-master-token-value-0001")
	if err != nil {
		t.Fatalf("Resolve master: %v", err)
	}
	return auth
}

// makeProject creates a project as master and returns it.
func (e *testEnv) makeProject(t *testing.T, master *AuthContext, name string, patterns ...string) *store.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), master, name, "", patterns)
	if err != nil {
		t.Fatalf("Create project %s: %v", name, err)
	}
	return p
}

// projectAuth issues a project token for the named project and resolves it.
func (e *testEnv) projectAuth(t *testing.T, master *AuthContext, projectName string) *AuthContext {
	t.Helper()
	ctx := context.Background()
	created, err := e.tokens.CreateProjectToken(ctx, master, projectName)
	if err != nil {
		t.Fatalf("CreateProjectToken: %v", err)
	}
	auth, err := e.auth.Resolve(ctx, created.Token)
	if err != nil {
		t.Fatalf("Resolve project token: %v", err)
	}
	return auth
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %d, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected kind %d, got %d (%v)", kind, got, err)
	}
}
