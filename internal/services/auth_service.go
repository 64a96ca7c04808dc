package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/olushako/vaulty/internal/crypto"
	"github.com/olushako/vaulty/internal/store"
)

// TokenType identifies the tier of an authenticated credential.
type TokenType string

const (
	// TokenMaster grants access to every project.
	TokenMaster TokenType = "master"
	// TokenProject grants access to a single project.
	TokenProject TokenType = "project"
	// TokenDevice grants read-only access to a single project.
	TokenDevice TokenType = "device"
)

// AuthContext is the resolved identity of a request. It is constructed once
// by Resolve and passed explicitly through the service layer.
type AuthContext struct {
	Type      TokenType
	TokenID   string
	TokenHash string
	// ProjectID is set for project and device credentials.
	ProjectID string
	// DeviceID is the device row ID for device credentials.
	DeviceID string
}

// IsMaster reports whether the credential has cross-project scope.
func (a *AuthContext) IsMaster() bool {
	return a != nil && a.Type == TokenMaster
}

// ReadOnly reports whether the credential may only read secrets.
func (a *AuthContext) ReadOnly() bool {
	return a != nil && a.Type == TokenDevice
}

// CanAccessProject reports whether the credential covers the given project.
func (a *AuthContext) CanAccessProject(projectID string) bool {
	if a == nil {
		return false
	}
	if a.Type == TokenMaster {
		return true
	}
	return a.ProjectID == projectID
}

// AuthService resolves raw bearer tokens into auth contexts.
type AuthService struct {
	store store.Store
}

// NewAuthService creates a new AuthService.
func NewAuthService(s store.Store) *AuthService {
	return &AuthService{store: s}
}

// Resolve checks a raw bearer token against the three credential tiers in
// precedence order: master, project, device. Device credentials only resolve
// while the device row exists and is authorized; a pending or deleted device
// is indistinguishable from an unknown token.
func (s *AuthService) Resolve(ctx context.Context, rawToken string) (*AuthContext, error) {
	if rawToken == "" {
		return nil, Unauthorized("missing bearer token")
	}

	hash := crypto.HashToken(rawToken)

	if mt, err := s.store.GetMasterTokenByHash(hash); err == nil {
		s.touchMasterAsync(mt.ID)
		return &AuthContext{Type: TokenMaster, TokenID: mt.ID, TokenHash: hash}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if pt, err := s.store.GetProjectTokenByHash(hash); err == nil {
		s.touchProjectAsync(pt.ID)
		return &AuthContext{Type: TokenProject, TokenID: pt.ID, TokenHash: hash, ProjectID: pt.ProjectID}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if d, err := s.store.GetDeviceByTokenHash(hash); err == nil {
		if d.Status != store.DeviceAuthorized {
			return nil, Unauthorized("invalid token")
		}
		s.touchDeviceAsync(d.ID)
		return &AuthContext{Type: TokenDevice, TokenID: d.ID, TokenHash: hash, ProjectID: d.ProjectID, DeviceID: d.ID}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return nil, Unauthorized("invalid token")
}

func (s *AuthService) touchMasterAsync(id string) {
	go func() {
		if err := s.store.TouchMasterToken(id, time.Now().UTC()); err != nil {
			slog.Error("failed to update master token last used", "token_id", id, "error", err)
		}
	}()
}

func (s *AuthService) touchProjectAsync(id string) {
	go func() {
		if err := s.store.TouchProjectToken(id, time.Now().UTC()); err != nil {
			slog.Error("failed to update project token last used", "token_id", id, "error", err)
		}
	}()
}

func (s *AuthService) touchDeviceAsync(id string) {
	go func() {
		d, err := s.store.GetDevice(id)
		if err != nil {
			return
		}
		d.LastSeenAt = time.Now().UTC()
		if err := s.store.UpdateDevice(d); err != nil {
			slog.Error("failed to update device last seen", "device_id", id, "error", err)
		}
	}()
}

// requireMaster rejects non-master credentials.
func requireMaster(auth *AuthContext) error {
	if auth == nil {
		return Unauthorized("missing bearer token")
	}
	if auth.Type != TokenMaster {
		return Forbidden("master token required")
	}
	return nil
}

// requireProjectAccess rejects credentials that do not cover the project.
// Device credentials pass; callers that mutate must also check ReadOnly.
func requireProjectAccess(auth *AuthContext, projectID string) error {
	if auth == nil {
		return Unauthorized("missing bearer token")
	}
	if !auth.CanAccessProject(projectID) {
		return Forbidden("token does not grant access to this project")
	}
	return nil
}

// requireWrite rejects read-only credentials.
func requireWrite(auth *AuthContext) error {
	if auth == nil {
		return Unauthorized("missing bearer token")
	}
	if auth.ReadOnly() {
		return Forbidden("device tokens are read-only")
	}
	return nil
}
