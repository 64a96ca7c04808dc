package services

import (
	"context"
	"fmt"
	"time"

	"github.com/olushako/vaulty/internal/crypto"
	"github.com/olushako/vaulty/internal/store"
)

// TokenService manages master and project tokens.
type TokenService struct {
	store store.Store
}

// NewTokenService creates a new TokenService.
func NewTokenService(s store.Store) *TokenService {
	return &TokenService{store: s}
}

// CreatedToken is the one-time response for a freshly issued token. Token
// holds the raw value; it is never persisted and never shown again.
type CreatedToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	ProjectID string    `json:"project_id,omitempty"`
	IsInit    bool      `json:"is_init_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Bootstrap ensures the configured master token exists as the init token.
// It only acts when no master tokens are stored, so restarting with a new
// MASTER_TOKEN value does not mint extra credentials.
func (s *TokenService) Bootstrap(ctx context.Context, rawToken string) error {
	n, err := s.store.CountMasterTokens()
	if err != nil {
		return fmt.Errorf("count master tokens: %w", err)
	}
	if n > 0 {
		return nil
	}

	id, err := crypto.NewID()
	if err != nil {
		return err
	}
	token := &store.MasterToken{
		ID:        id,
		TokenHash: crypto.HashToken(rawToken),
		Name:      crypto.MaskToken(rawToken),
		CreatedAt: time.Now().UTC(),
	}
	return s.store.CreateMasterToken(token, true)
}

// CreateMasterToken issues a new master token. Only master credentials may
// mint master tokens. If the store is empty the new token becomes the init
// token, matching bootstrap semantics.
func (s *TokenService) CreateMasterToken(ctx context.Context, auth *AuthContext) (*CreatedToken, error) {
	if err := requireMaster(auth); err != nil {
		return nil, err
	}

	raw, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}
	id, err := crypto.NewID()
	if err != nil {
		return nil, err
	}

	token := &store.MasterToken{
		ID:        id,
		TokenHash: crypto.HashToken(raw),
		Name:      crypto.MaskToken(raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateMasterToken(token, true); err != nil {
		return nil, mapStoreError(err)
	}

	track(ctx, raw)
	return &CreatedToken{
		ID:        token.ID,
		Token:     raw,
		Name:      token.Name,
		IsInit:    token.IsInit,
		CreatedAt: token.CreatedAt,
	}, nil
}

// MasterTokenInfo is the listing form of a master token. IsCurrent is
// computed per request: true only for the token authenticating this call.
type MasterTokenInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	IsInit     bool       `json:"is_init_token"`
	IsCurrent  bool       `json:"is_current_token"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// ProjectTokenInfo is the listing form of a project token.
type ProjectTokenInfo struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Name       string     `json:"name"`
	IsCurrent  bool       `json:"is_current_token"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// ListMasterTokens returns all master tokens. Master only.
func (s *TokenService) ListMasterTokens(ctx context.Context, auth *AuthContext) ([]*MasterTokenInfo, error) {
	if err := requireMaster(auth); err != nil {
		return nil, err
	}
	tokens, err := s.store.ListMasterTokens()
	if err != nil {
		return nil, mapStoreError(err)
	}
	infos := make([]*MasterTokenInfo, len(tokens))
	for i, t := range tokens {
		infos[i] = &MasterTokenInfo{
			ID:         t.ID,
			Name:       t.Name,
			IsInit:     t.IsInit,
			IsCurrent:  t.ID == auth.TokenID,
			CreatedAt:  t.CreatedAt,
			LastUsedAt: t.LastUsedAt,
		}
	}
	return infos, nil
}

// RevokeMasterToken hard-deletes a master token. The caller's digest is
// passed down so the store can reject self-revocation atomically.
func (s *TokenService) RevokeMasterToken(ctx context.Context, auth *AuthContext, id string) error {
	if err := requireMaster(auth); err != nil {
		return err
	}
	return mapStoreError(s.store.DeleteMasterToken(id, auth.TokenHash))
}

// RotateMasterToken replaces a master token with a fresh one in a single
// transaction. Rotating the caller's own token is allowed; the response is
// the only chance to capture the replacement value.
func (s *TokenService) RotateMasterToken(ctx context.Context, auth *AuthContext, id string) (*CreatedToken, error) {
	if err := requireMaster(auth); err != nil {
		return nil, err
	}

	raw, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}
	newID, err := crypto.NewID()
	if err != nil {
		return nil, err
	}

	replacement := &store.MasterToken{
		ID:        newID,
		TokenHash: crypto.HashToken(raw),
		Name:      crypto.MaskToken(raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.RotateMasterToken(id, replacement); err != nil {
		return nil, mapStoreError(err)
	}

	track(ctx, raw)
	return &CreatedToken{
		ID:        replacement.ID,
		Token:     raw,
		Name:      replacement.Name,
		CreatedAt: replacement.CreatedAt,
	}, nil
}

// CreateProjectToken issues a new token scoped to the named project.
func (s *TokenService) CreateProjectToken(ctx context.Context, auth *AuthContext, projectName string) (*CreatedToken, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}
	if err := requireWrite(auth); err != nil {
		return nil, err
	}

	raw, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}
	id, err := crypto.NewID()
	if err != nil {
		return nil, err
	}

	token := &store.ProjectToken{
		ID:        id,
		ProjectID: project.ID,
		TokenHash: crypto.HashToken(raw),
		Name:      crypto.MaskToken(raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateProjectToken(token); err != nil {
		return nil, mapStoreError(err)
	}

	track(ctx, raw)
	return &CreatedToken{
		ID:        token.ID,
		Token:     raw,
		Name:      token.Name,
		ProjectID: token.ProjectID,
		CreatedAt: token.CreatedAt,
	}, nil
}

// ListProjectTokens returns the tokens of the named project.
func (s *TokenService) ListProjectTokens(ctx context.Context, auth *AuthContext, projectName string) ([]*ProjectTokenInfo, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}
	tokens, err := s.store.ListProjectTokens(project.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	infos := make([]*ProjectTokenInfo, len(tokens))
	for i, t := range tokens {
		infos[i] = &ProjectTokenInfo{
			ID:         t.ID,
			ProjectID:  t.ProjectID,
			Name:       t.Name,
			IsCurrent:  auth.Type == TokenProject && t.ID == auth.TokenID,
			CreatedAt:  t.CreatedAt,
			LastUsedAt: t.LastUsedAt,
		}
	}
	return infos, nil
}

// RevokeProjectToken hard-deletes a project token with the same atomic
// self-revocation guard as master tokens.
func (s *TokenService) RevokeProjectToken(ctx context.Context, auth *AuthContext, id string) error {
	token, err := s.store.GetProjectToken(id)
	if err != nil {
		return mapStoreError(err)
	}
	if err := requireProjectAccess(auth, token.ProjectID); err != nil {
		return err
	}
	if err := requireWrite(auth); err != nil {
		return err
	}
	return mapStoreError(s.store.DeleteProjectToken(id, auth.TokenHash))
}

// RotateProjectToken replaces a project token with a fresh one scoped to the
// same project.
func (s *TokenService) RotateProjectToken(ctx context.Context, auth *AuthContext, id string) (*CreatedToken, error) {
	token, err := s.store.GetProjectToken(id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, token.ProjectID); err != nil {
		return nil, err
	}
	if err := requireWrite(auth); err != nil {
		return nil, err
	}

	raw, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}
	newID, err := crypto.NewID()
	if err != nil {
		return nil, err
	}

	replacement := &store.ProjectToken{
		ID:        newID,
		ProjectID: token.ProjectID,
		TokenHash: crypto.HashToken(raw),
		Name:      crypto.MaskToken(raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.RotateProjectToken(id, replacement); err != nil {
		return nil, mapStoreError(err)
	}

	track(ctx, raw)
	return &CreatedToken{
		ID:        replacement.ID,
		Token:     raw,
		Name:      replacement.Name,
		ProjectID: replacement.ProjectID,
		CreatedAt: replacement.CreatedAt,
	}, nil
}
