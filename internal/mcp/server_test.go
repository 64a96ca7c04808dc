package mcp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/olushako/vaulty/internal/services"
	"github.com/olushako/vaulty/internal/store"
)

const testMasterToken = "mcp-test-master-token-0000000001"

func newTestServer(t *testing.T) (*Server, Services) {
	t.Helper()

	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "vaulty.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	keyMaterial := []byte("0123456789abcdef0123456789abcdef")
	deps := Services{
		Auth:     services.NewAuthService(s),
		Projects: services.NewProjectService(s),
		Secrets:  services.NewSecretService(s, keyMaterial),
		Devices:  services.NewDeviceService(s, keyMaterial),
		Activity: services.NewActivityService(s, 7*24*time.Hour),
	}

	tokens := services.NewTokenService(s)
	if err := tokens.Bootstrap(context.Background(), testMasterToken); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	server, err := NewServer(context.Background(), deps, testMasterToken)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server, deps
}

func TestNewServer_RejectsUnknownToken(t *testing.T) {
	_, deps := newTestServer(t)

	_, err := NewServer(context.Background(), deps, "not-a-valid-token-aaaaaaaaaaaaaa")
	if err == nil {
		t.Fatal("expected error for unknown token")
	}
}

func TestSecretTools_RoundTrip(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()

	if _, err := server.deps.Projects.Create(ctx, server.auth, "backend", "", nil); err != nil {
		t.Fatalf("Create project: %v", err)
	}

	_, setOut, err := server.handleSetSecret(ctx, nil, setSecretInput{Project: "backend", Key: "API_KEY", Value: "v1"})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if setOut.Key != "API_KEY" {
		t.Fatalf("set key = %q", setOut.Key)
	}

	_, getOut, err := server.handleGetSecret(ctx, nil, getSecretInput{Project: "backend", Key: "API_KEY"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if getOut.Value != "v1" {
		t.Fatalf("value = %q", getOut.Value)
	}
	if getOut.Warning == "" {
		t.Fatal("expected exposure warning on reads")
	}

	_, listOut, err := server.handleListSecrets(ctx, nil, listSecretsInput{Project: "backend"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listOut.Secrets) != 1 || listOut.Secrets[0].Key != "API_KEY" {
		t.Fatalf("unexpected listing: %+v", listOut.Secrets)
	}

	_, delOut, err := server.handleDeleteSecret(ctx, nil, deleteSecretInput{Project: "backend", Key: "API_KEY"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !delOut.Deleted {
		t.Fatal("expected deleted flag")
	}
}

func TestGetSecret_RecordsExposure(t *testing.T) {
	server, deps := newTestServer(t)
	ctx := context.Background()

	deps.Projects.Create(ctx, server.auth, "backend", "", nil)
	server.handleSetSecret(ctx, nil, setSecretInput{Project: "backend", Key: "API_KEY", Value: "live-value-123"})

	if _, _, err := server.handleGetSecret(ctx, nil, getSecretInput{Project: "backend", Key: "API_KEY"}); err != nil {
		t.Fatalf("get: %v", err)
	}

	page, err := deps.Activity.List(ctx, server.auth, services.Filter{Source: "mcp", Breakdown: "mcp_tool", BreakdownValue: "vault_get_secret"})
	if err != nil {
		t.Fatalf("List activities: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 recorded tool call, got %d", page.Total)
	}
	if !page.Activities[0].Exposed {
		t.Fatal("expected the read to be flagged as an exposure")
	}
}

func TestListProjects_ScopedByCredential(t *testing.T) {
	server, deps := newTestServer(t)
	ctx := context.Background()

	deps.Projects.Create(ctx, server.auth, "backend", "api services", nil)
	deps.Projects.Create(ctx, server.auth, "frontend", "", nil)

	_, out, err := server.handleListProjects(ctx, nil, listProjectsInput{})
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(out.Projects) != 2 {
		t.Fatalf("expected 2 projects for master credential, got %d", len(out.Projects))
	}
}

func TestDeviceTools_AuthorizeFlow(t *testing.T) {
	server, deps := newTestServer(t)
	ctx := context.Background()

	deps.Projects.Create(ctx, server.auth, "backend", "", nil)
	registered, err := deps.Devices.Register(ctx, server.auth, "backend", services.RegisterRequest{
		DeviceID:   "machine-1",
		WorkingDir: "/srv/app",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, listOut, err := server.handleListDevices(ctx, nil, listDevicesInput{Project: "backend"})
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(listOut.Devices) != 1 || listOut.Devices[0].Status != "pending" {
		t.Fatalf("unexpected devices: %+v", listOut.Devices)
	}

	_, authOut, err := server.handleAuthorizeDevice(ctx, nil, authorizeDeviceInput{Project: "backend", ID: registered.Device.ID})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authOut.Status != "authorized" {
		t.Fatalf("status = %q", authOut.Status)
	}
}
