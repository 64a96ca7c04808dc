package services

import (
	"context"
	"testing"
)

func TestSecrets_SetGetRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	ctx := context.Background()

	if _, err := e.secrets.Set(ctx, master, "backend", "API_KEY", "secret-value-123"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := e.secrets.Get(ctx, master, "backend", "API_KEY")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Value != "secret-value-123" {
		t.Fatalf("expected 'secret-value-123', got %q", got.Value)
	}
}

func TestSecrets_GetRegistersWithTracker(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")

	tracker := NewConfidentialTracker()
	ctx := WithTracker(context.Background(), tracker)

	if _, err := e.secrets.Set(ctx, master, "backend", "API_KEY", "secret-value-123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := e.secrets.Get(ctx, master, "backend", "API_KEY"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if !tracker.Contains("secret-value-123") {
		t.Fatal("decrypted value should be tracked as confidential")
	}
}

func TestSecrets_UpsertOverwrites(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	ctx := context.Background()

	first, err := e.secrets.Set(ctx, master, "backend", "DB_URL", "v1")
	if err != nil {
		t.Fatalf("Set v1: %v", err)
	}
	if _, err := e.secrets.Set(ctx, master, "backend", "DB_URL", "v2"); err != nil {
		t.Fatalf("Set v2: %v", err)
	}

	got, err := e.secrets.Get(ctx, master, "backend", "DB_URL")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Value != "v2" {
		t.Fatalf("expected 'v2', got %q", got.Value)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("update must preserve the original creation time")
	}
}

func TestSecrets_ListIsMetadataOnly(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	ctx := context.Background()

	e.secrets.Set(ctx, master, "backend", "KEY_A", "value-a")
	e.secrets.Set(ctx, master, "backend", "KEY_B", "value-b")

	metas, err := e.secrets.List(ctx, master, "backend")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(metas))
	}
	if metas[0].Key != "KEY_A" || metas[1].Key != "KEY_B" {
		t.Fatalf("expected sorted keys, got %v", metas)
	}
}

func TestSecrets_GetAll(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	ctx := context.Background()

	e.secrets.Set(ctx, master, "backend", "A", "1")
	e.secrets.Set(ctx, master, "backend", "B", "2")

	all, err := e.secrets.GetAll(ctx, master, "backend")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if all["A"] != "1" || all["B"] != "2" {
		t.Fatalf("unexpected map: %v", all)
	}
}

func TestSecrets_MissingKey(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	ctx := context.Background()

	_, err := e.secrets.Get(ctx, master, "backend", "MISSING")
	wantKind(t, err, KindNotFound)

	err = e.secrets.Delete(ctx, master, "backend", "MISSING")
	wantKind(t, err, KindNotFound)
}

func TestSecrets_MissingProject(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	ctx := context.Background()

	_, err := e.secrets.Set(ctx, master, "nope", "KEY", "v")
	wantKind(t, err, KindNotFound)
}

func TestSecrets_InvalidKey(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	ctx := context.Background()

	_, err := e.secrets.Set(ctx, master, "backend", "BAD-KEY", "v")
	wantKind(t, err, KindValidation)
}

func TestSecrets_ProjectScope(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	e.makeProject(t, master, "frontend")
	backendAuth := e.projectAuth(t, master, "backend")
	ctx := context.Background()

	if _, err := e.secrets.Set(ctx, backendAuth, "backend", "OWN", "v"); err != nil {
		t.Fatalf("Set in own project: %v", err)
	}

	_, err := e.secrets.Set(ctx, backendAuth, "frontend", "OTHER", "v")
	wantKind(t, err, KindForbidden)

	_, err = e.secrets.List(ctx, backendAuth, "frontend")
	wantKind(t, err, KindForbidden)
}

func TestSecrets_DeviceReadOnly(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	ctx := context.Background()

	e.secrets.Set(ctx, master, "backend", "API_KEY", "v")

	reg, err := e.devices.Register(ctx, master, "backend", RegisterRequest{DeviceID: "machine-1", WorkingDir: "/srv/app"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := e.devices.Authorize(ctx, master, "backend", reg.Device.ID, "admin"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	devAuth, err := e.auth.Resolve(ctx, reg.Token)
	if err != nil {
		t.Fatalf("Resolve device: %v", err)
	}

	// Reads are allowed.
	if _, err := e.secrets.Get(ctx, devAuth, "backend", "API_KEY"); err != nil {
		t.Fatalf("device Get: %v", err)
	}
	if _, err := e.secrets.List(ctx, devAuth, "backend"); err != nil {
		t.Fatalf("device List: %v", err)
	}

	// Writes are not.
	_, err = e.secrets.Set(ctx, devAuth, "backend", "NEW", "v")
	wantKind(t, err, KindForbidden)
	err = e.secrets.Delete(ctx, devAuth, "backend", "API_KEY")
	wantKind(t, err, KindForbidden)
}
