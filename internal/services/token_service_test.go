package services

import (
	"context"
	"testing"
)

func TestBootstrap_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	if err := e.tokens.Bootstrap(ctx, "bootstrap-master-token-value-0001"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	// A second bootstrap with a different value must not mint another token.
	if err := e.tokens.Bootstrap(ctx, "different-value"); err != nil {
		t.Fatalf("Bootstrap again: %v", err)
	}

	auth, err := e.auth.Resolve(ctx, "bootstrap-master-token-value-0001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tokens, err := e.tokens.ListMasterTokens(ctx, auth)
	if err != nil {
		t.Fatalf("ListMasterTokens: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if !tokens[0].IsInit {
		t.Fatal("bootstrap token should be the init token")
	}
}

func TestCreateMasterToken_RequiresMaster(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	projAuth := e.projectAuth(t, master, "backend")

	_, err := e.tokens.CreateMasterToken(context.Background(), projAuth)
	wantKind(t, err, KindForbidden)
}

func TestCreateMasterToken_MaskedName(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	ctx := context.Background()

	created, err := e.tokens.CreateMasterToken(ctx, master)
	if err != nil {
		t.Fatalf("CreateMasterToken: %v", err)
	}
	if len(created.Token) != 32 {
		t.Fatalf("expected 32-char token, got %d", len(created.Token))
	}
	if created.IsInit {
		t.Fatal("non-first token should not be init")
	}
	want := created.Token[:4]
	if created.Name[:4] != want {
		t.Fatalf("masked name should start with token prefix: %q", created.Name)
	}
	if created.Name == created.Token {
		t.Fatal("display name must not be the raw token")
	}
}

func TestRevokeMasterToken_SelfRejected(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	ctx := context.Background()

	tokens, err := e.tokens.ListMasterTokens(ctx, master)
	if err != nil {
		t.Fatalf("ListMasterTokens: %v", err)
	}

	err = e.tokens.RevokeMasterToken(ctx, master, tokens[0].ID)
	wantKind(t, err, KindConflict)
}

func TestListMasterTokens_MarksCurrent(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	ctx := context.Background()

	other, err := e.tokens.CreateMasterToken(ctx, master)
	if err != nil {
		t.Fatalf("CreateMasterToken: %v", err)
	}

	tokens, err := e.tokens.ListMasterTokens(ctx, master)
	if err != nil {
		t.Fatalf("ListMasterTokens: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	for _, tok := range tokens {
		if want := tok.ID == master.TokenID; tok.IsCurrent != want {
			t.Fatalf("token %s: is_current = %v, want %v", tok.ID, tok.IsCurrent, want)
		}
	}

	// The flag follows the caller, not the token.
	otherAuth, err := e.auth.Resolve(ctx, other.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tokens, err = e.tokens.ListMasterTokens(ctx, otherAuth)
	if err != nil {
		t.Fatalf("ListMasterTokens as other: %v", err)
	}
	for _, tok := range tokens {
		if want := tok.ID == other.ID; tok.IsCurrent != want {
			t.Fatalf("token %s: is_current = %v, want %v", tok.ID, tok.IsCurrent, want)
		}
	}
}

func TestListProjectTokens_MarksCurrent(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	projAuth := e.projectAuth(t, master, "backend")
	ctx := context.Background()

	tokens, err := e.tokens.ListProjectTokens(ctx, projAuth, "backend")
	if err != nil {
		t.Fatalf("ListProjectTokens: %v", err)
	}
	if len(tokens) != 1 || !tokens[0].IsCurrent {
		t.Fatalf("expected the caller's own token marked current: %+v", tokens)
	}

	// A master token listing the same project holds no project token.
	tokens, err = e.tokens.ListProjectTokens(ctx, master, "backend")
	if err != nil {
		t.Fatalf("ListProjectTokens as master: %v", err)
	}
	if tokens[0].IsCurrent {
		t.Fatal("master caller must not see any project token as current")
	}
}

func TestRotateMasterToken_OwnTokenAllowed(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	ctx := context.Background()

	rotated, err := e.tokens.RotateMasterToken(ctx, master, master.TokenID)
	if err != nil {
		t.Fatalf("RotateMasterToken: %v", err)
	}

	// The old credential is dead.
	_, err = e.auth.Resolve(ctx, "bootstrap-master-token-value-0001")
	wantKind(t, err, KindUnauthorized)

	// The replacement works and is not an init token.
	auth, err := e.auth.Resolve(ctx, rotated.Token)
	if err != nil {
		t.Fatalf("Resolve rotated: %v", err)
	}
	got, err := e.store.GetMasterToken(auth.TokenID)
	if err != nil {
		t.Fatalf("GetMasterToken: %v", err)
	}
	if got.IsInit {
		t.Fatal("rotated token must never be init")
	}
}

func TestProjectTokens_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	ctx := context.Background()

	created, err := e.tokens.CreateProjectToken(ctx, master, "backend")
	if err != nil {
		t.Fatalf("CreateProjectToken: %v", err)
	}

	list, err := e.tokens.ListProjectTokens(ctx, master, "backend")
	if err != nil {
		t.Fatalf("ListProjectTokens: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 token, got %d", len(list))
	}

	if err := e.tokens.RevokeProjectToken(ctx, master, created.ID); err != nil {
		t.Fatalf("RevokeProjectToken: %v", err)
	}
	_, err = e.auth.Resolve(ctx, created.Token)
	wantKind(t, err, KindUnauthorized)
}

func TestProjectToken_CannotTouchOtherProject(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	e.makeProject(t, master, "frontend")
	backendAuth := e.projectAuth(t, master, "backend")
	ctx := context.Background()

	_, err := e.tokens.CreateProjectToken(ctx, backendAuth, "frontend")
	wantKind(t, err, KindForbidden)

	_, err = e.tokens.ListProjectTokens(ctx, backendAuth, "frontend")
	wantKind(t, err, KindForbidden)
}

func TestRevokeProjectToken_SelfRejected(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	e.makeProject(t, master, "backend")
	projAuth := e.projectAuth(t, master, "backend")
	ctx := context.Background()

	err := e.tokens.RevokeProjectToken(ctx, projAuth, projAuth.TokenID)
	wantKind(t, err, KindConflict)
}

func TestRotateProjectToken_KeepsProjectScope(t *testing.T) {
	e := newTestEnv(t)
	master := e.masterAuth(t)
	p := e.makeProject(t, master, "backend")
	projAuth := e.projectAuth(t, master, "backend")
	ctx := context.Background()

	rotated, err := e.tokens.RotateProjectToken(ctx, projAuth, projAuth.TokenID)
	if err != nil {
		t.Fatalf("RotateProjectToken: %v", err)
	}

	auth, err := e.auth.Resolve(ctx, rotated.Token)
	if err != nil {
		t.Fatalf("Resolve rotated: %v", err)
	}
	if auth.Type != TokenProject || auth.ProjectID != p.ID {
		t.Fatalf("rotated token lost its scope: %+v", auth)
	}
}
