package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func createTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "vaulty.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProject(id, name string) *Project {
	now := time.Now().UTC()
	return &Project{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
}

func TestCreateAndGetProject(t *testing.T) {
	s := createTestStore(t)

	p := testProject("aaaa000011112222", "backend")
	if err := s.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	got, err := s.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Name != "backend" {
		t.Fatalf("expected name 'backend', got %q", got.Name)
	}

	byName, err := s.GetProjectByName("backend")
	if err != nil {
		t.Fatalf("GetProjectByName: %v", err)
	}
	if byName.ID != p.ID {
		t.Fatalf("expected id %q, got %q", p.ID, byName.ID)
	}
}

func TestCreateProject_DuplicateName(t *testing.T) {
	s := createTestStore(t)

	if err := s.CreateProject(testProject("aaaa000011112222", "backend")); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	err := s.CreateProject(testProject("bbbb000011112222", "backend"))
	if !errors.Is(err, ErrDuplicateProjectName) {
		t.Fatalf("expected ErrDuplicateProjectName, got %v", err)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetProject("missing")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected error to wrap ErrNotFound, got %v", err)
	}
}

func TestUpdateProject_RenameUpdatesIndex(t *testing.T) {
	s := createTestStore(t)

	p := testProject("aaaa000011112222", "backend")
	if err := s.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	p.Name = "platform"
	if err := s.UpdateProject(p); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	if _, err := s.GetProjectByName("backend"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("old name should be gone, got %v", err)
	}
	got, err := s.GetProjectByName("platform")
	if err != nil {
		t.Fatalf("GetProjectByName: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("expected id %q, got %q", p.ID, got.ID)
	}
}

func TestDeleteProject_Cascades(t *testing.T) {
	s := createTestStore(t)

	p := testProject("aaaa000011112222", "backend")
	if err := s.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	now := time.Now().UTC()
	if err := s.SetSecret(p.ID, &SecretEntry{Key: "API_KEY", EncryptedValue: []byte("x"), CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	if err := s.CreateProjectToken(&ProjectToken{ID: "tok1", ProjectID: p.ID, TokenHash: "hash1", CreatedAt: now}); err != nil {
		t.Fatalf("CreateProjectToken: %v", err)
	}
	if err := s.CreateDevice(&Device{ID: "dev1", ProjectID: p.ID, DeviceID: "machine-1", TokenHash: "dhash1", Status: DevicePending, CreatedAt: now, LastSeenAt: now}); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if err := s.AppendActivity(&Activity{ID: "act1", Method: "GET", Path: "/api/secrets", ProjectName: "backend", TokenType: "project", StatusCode: 200, Source: "api", CreatedAt: now}); err != nil {
		t.Fatalf("AppendActivity: %v", err)
	}

	if err := s.DeleteProject(p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	if _, err := s.GetSecret(p.ID, "API_KEY"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("secret should be gone, got %v", err)
	}
	if _, err := s.GetProjectTokenByHash("hash1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("project token should be gone, got %v", err)
	}
	if _, err := s.GetDeviceByDeviceID("machine-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("device should be gone, got %v", err)
	}
	acts, err := s.ListActivitiesSince(time.Time{})
	if err != nil {
		t.Fatalf("ListActivitiesSince: %v", err)
	}
	if len(acts) != 0 {
		t.Fatalf("expected 0 activities, got %d", len(acts))
	}
}

func TestCreateMasterToken_FirstIsInit(t *testing.T) {
	s := createTestStore(t)

	first := &MasterToken{ID: "m1", TokenHash: "h1", Name: "abcd••••wxyz", CreatedAt: time.Now().UTC()}
	if err := s.CreateMasterToken(first, true); err != nil {
		t.Fatalf("CreateMasterToken: %v", err)
	}
	if !first.IsInit {
		t.Fatal("first master token should be marked init")
	}

	second := &MasterToken{ID: "m2", TokenHash: "h2", CreatedAt: time.Now().UTC()}
	if err := s.CreateMasterToken(second, true); err != nil {
		t.Fatalf("CreateMasterToken: %v", err)
	}
	if second.IsInit {
		t.Fatal("second master token should not be init")
	}
}

func TestDeleteMasterToken_SelfRevocation(t *testing.T) {
	s := createTestStore(t)

	tok := &MasterToken{ID: "m1", TokenHash: "h1", CreatedAt: time.Now().UTC()}
	if err := s.CreateMasterToken(tok, false); err != nil {
		t.Fatalf("CreateMasterToken: %v", err)
	}

	err := s.DeleteMasterToken("m1", "h1")
	if !errors.Is(err, ErrSelfRevocation) {
		t.Fatalf("expected ErrSelfRevocation, got %v", err)
	}

	// A different caller may revoke it.
	if err := s.DeleteMasterToken("m1", "other-hash"); err != nil {
		t.Fatalf("DeleteMasterToken: %v", err)
	}
	if _, err := s.GetMasterTokenByHash("h1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("hash index should be gone, got %v", err)
	}
}

func TestRotateMasterToken(t *testing.T) {
	s := createTestStore(t)

	old := &MasterToken{ID: "m1", TokenHash: "h1", CreatedAt: time.Now().UTC()}
	if err := s.CreateMasterToken(old, true); err != nil {
		t.Fatalf("CreateMasterToken: %v", err)
	}

	replacement := &MasterToken{ID: "m2", TokenHash: "h2", IsInit: true, CreatedAt: time.Now().UTC()}
	if err := s.RotateMasterToken("m1", replacement); err != nil {
		t.Fatalf("RotateMasterToken: %v", err)
	}

	if _, err := s.GetMasterToken("m1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("old token should be gone, got %v", err)
	}
	got, err := s.GetMasterTokenByHash("h2")
	if err != nil {
		t.Fatalf("GetMasterTokenByHash: %v", err)
	}
	if got.IsInit {
		t.Fatal("rotated token must never be an init token")
	}

	n, err := s.CountMasterTokens()
	if err != nil {
		t.Fatalf("CountMasterTokens: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 token after rotation, got %d", n)
	}
}

func TestSetSecret_UpsertPreservesCreatedAt(t *testing.T) {
	s := createTestStore(t)

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SetSecret("p1", &SecretEntry{Key: "DB_URL", EncryptedValue: []byte("v1"), CreatedAt: created, UpdatedAt: created}); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}

	later := created.Add(time.Hour)
	if err := s.SetSecret("p1", &SecretEntry{Key: "DB_URL", EncryptedValue: []byte("v2"), CreatedAt: later, UpdatedAt: later}); err != nil {
		t.Fatalf("SetSecret update: %v", err)
	}

	got, err := s.GetSecret("p1", "DB_URL")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %v, got %v", created, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, got.UpdatedAt)
	}
	if string(got.EncryptedValue) != "v2" {
		t.Fatalf("expected updated value, got %q", got.EncryptedValue)
	}
}

func TestListSecrets_ScopedToProject(t *testing.T) {
	s := createTestStore(t)
	now := time.Now().UTC()

	s.SetSecret("p1", &SecretEntry{Key: "A", EncryptedValue: []byte("1"), CreatedAt: now, UpdatedAt: now})
	s.SetSecret("p1", &SecretEntry{Key: "B", EncryptedValue: []byte("2"), CreatedAt: now, UpdatedAt: now})
	s.SetSecret("p2", &SecretEntry{Key: "C", EncryptedValue: []byte("3"), CreatedAt: now, UpdatedAt: now})

	entries, err := s.ListSecrets("p1")
	if err != nil {
		t.Fatalf("ListSecrets: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 secrets, got %d", len(entries))
	}
	if entries[0].Key != "A" || entries[1].Key != "B" {
		t.Fatalf("expected sorted keys [A B], got [%s %s]", entries[0].Key, entries[1].Key)
	}
}

func TestCreateDevice_DuplicateDeviceID(t *testing.T) {
	s := createTestStore(t)
	now := time.Now().UTC()

	d := &Device{ID: "dev1", ProjectID: "p1", DeviceID: "machine-1", TokenHash: "h1", Status: DevicePending, CreatedAt: now, LastSeenAt: now}
	if err := s.CreateDevice(d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	dup := &Device{ID: "dev2", ProjectID: "p2", DeviceID: "machine-1", TokenHash: "h2", Status: DevicePending, CreatedAt: now, LastSeenAt: now}
	if err := s.CreateDevice(dup); !errors.Is(err, ErrDuplicateDeviceID) {
		t.Fatalf("expected ErrDuplicateDeviceID, got %v", err)
	}
}

func TestUpdateDevice_ReindexesTokenHash(t *testing.T) {
	s := createTestStore(t)
	now := time.Now().UTC()

	d := &Device{ID: "dev1", ProjectID: "p1", DeviceID: "machine-1", TokenHash: "h1", Status: DevicePending, CreatedAt: now, LastSeenAt: now}
	if err := s.CreateDevice(d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	d.TokenHash = "h2"
	d.Status = DeviceAuthorized
	if err := s.UpdateDevice(d); err != nil {
		t.Fatalf("UpdateDevice: %v", err)
	}

	if _, err := s.GetDeviceByTokenHash("h1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("old hash should be unindexed, got %v", err)
	}
	got, err := s.GetDeviceByTokenHash("h2")
	if err != nil {
		t.Fatalf("GetDeviceByTokenHash: %v", err)
	}
	if got.Status != DeviceAuthorized {
		t.Fatalf("expected authorized, got %s", got.Status)
	}
}

func TestDeleteDevice_RemovesIndexes(t *testing.T) {
	s := createTestStore(t)
	now := time.Now().UTC()

	d := &Device{ID: "dev1", ProjectID: "p1", DeviceID: "machine-1", TokenHash: "h1", Status: DevicePending, CreatedAt: now, LastSeenAt: now}
	if err := s.CreateDevice(d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if err := s.DeleteDevice("dev1"); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}

	if _, err := s.GetDeviceByDeviceID("machine-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("device id index should be gone, got %v", err)
	}
	if _, err := s.GetDeviceByTokenHash("h1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("token hash index should be gone, got %v", err)
	}

	// Identity can be registered again after deletion.
	if err := s.CreateDevice(&Device{ID: "dev2", ProjectID: "p2", DeviceID: "machine-1", TokenHash: "h2", Status: DevicePending, CreatedAt: now, LastSeenAt: now}); err != nil {
		t.Fatalf("CreateDevice after delete: %v", err)
	}
}

func TestActivities_OrderAndSince(t *testing.T) {
	s := createTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		a := &Activity{
			ID:        "a" + string(rune('0'+i)),
			Method:    "GET",
			Path:      "/api/projects",
			TokenType: "master",
			Source:    "api",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendActivity(a); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	all, err := s.ListActivitiesSince(time.Time{})
	if err != nil {
		t.Fatalf("ListActivitiesSince: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 activities, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatal("activities are not newest first")
		}
	}

	recent, err := s.ListActivitiesSince(base.Add(3 * time.Minute))
	if err != nil {
		t.Fatalf("ListActivitiesSince: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent activities, got %d", len(recent))
	}
}

func TestActivities_SubSecondOrdering(t *testing.T) {
	s := createTestStore(t)

	// Fractions chosen so a trimmed encoding would sort ".2" after ".25".
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	older := &Activity{ID: "older", Method: "GET", Path: "/x", Source: "api", CreatedAt: base.Add(200 * time.Millisecond)}
	newer := &Activity{ID: "newer", Method: "GET", Path: "/x", Source: "api", CreatedAt: base.Add(250 * time.Millisecond)}
	if err := s.AppendActivity(older); err != nil {
		t.Fatalf("AppendActivity: %v", err)
	}
	if err := s.AppendActivity(newer); err != nil {
		t.Fatalf("AppendActivity: %v", err)
	}

	recent, err := s.ListActivitiesSince(base.Add(220 * time.Millisecond))
	if err != nil {
		t.Fatalf("ListActivitiesSince: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "newer" {
		t.Fatalf("expected only the newer record, got %+v", recent)
	}

	all, err := s.ListActivitiesSince(base)
	if err != nil {
		t.Fatalf("ListActivitiesSince: %v", err)
	}
	if len(all) != 2 || all[0].ID != "newer" || all[1].ID != "older" {
		t.Fatalf("expected newest first, got %+v", all)
	}
}

func TestPurgeActivitiesBefore(t *testing.T) {
	s := createTestStore(t)

	now := time.Now().UTC()
	old := &Activity{ID: "old", Method: "GET", Path: "/x", Source: "api", CreatedAt: now.Add(-8 * 24 * time.Hour)}
	fresh := &Activity{ID: "fresh", Method: "GET", Path: "/x", Source: "api", CreatedAt: now}
	s.AppendActivity(old)
	s.AppendActivity(fresh)

	deleted, err := s.PurgeActivitiesBefore(now.Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeActivitiesBefore: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	remaining, _ := s.ListActivitiesSince(time.Time{})
	if len(remaining) != 1 || remaining[0].ID != "fresh" {
		t.Fatalf("expected only the fresh activity to remain")
	}
}

func TestDeleteActivitiesByProject(t *testing.T) {
	s := createTestStore(t)
	now := time.Now().UTC()

	s.AppendActivity(&Activity{ID: "a1", ProjectName: "backend", Source: "api", CreatedAt: now})
	s.AppendActivity(&Activity{ID: "a2", ProjectName: "frontend", Source: "api", CreatedAt: now})
	s.AppendActivity(&Activity{ID: "a3", ProjectName: "backend", Source: "ui", CreatedAt: now})

	deleted, err := s.DeleteActivitiesByProject("backend")
	if err != nil {
		t.Fatalf("DeleteActivitiesByProject: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	remaining, _ := s.ListActivitiesSince(time.Time{})
	if len(remaining) != 1 || remaining[0].ProjectName != "frontend" {
		t.Fatal("expected only the frontend activity to remain")
	}
}
