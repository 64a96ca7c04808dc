package services

import (
	"context"
	"fmt"
	"time"

	"github.com/olushako/vaulty/internal/crypto"
	"github.com/olushako/vaulty/internal/metrics"
	"github.com/olushako/vaulty/internal/store"
	"github.com/olushako/vaulty/internal/validation"
)

// SecretService encrypts, stores and serves project secrets.
type SecretService struct {
	store store.Store
	key   []byte
}

// NewSecretService creates a new SecretService. The storage key is derived
// once from the configured key material.
func NewSecretService(s store.Store, keyMaterial []byte) *SecretService {
	return &SecretService{store: s, key: crypto.DeriveKey(keyMaterial)}
}

// SecretMeta is the listing form of a secret: metadata only, never the value.
type SecretMeta struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Secret is a decrypted secret value with its metadata.
type Secret struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Set encrypts and stores a secret under the named project. Existing keys
// are overwritten; creation time survives updates.
func (s *SecretService) Set(ctx context.Context, auth *AuthContext, projectName, key, value string) (*SecretMeta, error) {
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
	if err := validation.SecretKey(key); err != nil {
		return nil, ValidationErr(err)
	}

	encrypted, err := crypto.Encrypt(s.key, []byte(value))
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}
	metrics.EncryptionOperations.WithLabelValues("encrypt").Inc()

	now := time.Now().UTC()
	entry := &store.SecretEntry{
		Key:            key,
		EncryptedValue: encrypted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SetSecret(project.ID, entry); err != nil {
		return nil, mapStoreError(err)
	}
	return &SecretMeta{Key: entry.Key, CreatedAt: entry.CreatedAt, UpdatedAt: entry.UpdatedAt}, nil
}

// Get decrypts and returns a secret value. The plaintext is registered with
// the request's confidential tracker so the activity recorder can detect
// responses that expose it.
func (s *SecretService) Get(ctx context.Context, auth *AuthContext, projectName, key string) (*Secret, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}

	entry, err := s.store.GetSecret(project.ID, key)
	if err != nil {
		return nil, mapStoreError(err)
	}

	plaintext, err := crypto.Decrypt(s.key, entry.EncryptedValue)
	if err != nil {
		return nil, fmt.Errorf("decrypt secret: %w", err)
	}
	metrics.EncryptionOperations.WithLabelValues("decrypt").Inc()

	value := string(plaintext)
	track(ctx, value)
	return &Secret{Key: entry.Key, Value: value, CreatedAt: entry.CreatedAt, UpdatedAt: entry.UpdatedAt}, nil
}

// List returns secret metadata for the named project. Values are never
// included in listings.
func (s *SecretService) List(ctx context.Context, auth *AuthContext, projectName string) ([]*SecretMeta, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}

	entries, err := s.store.ListSecrets(project.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	metas := make([]*SecretMeta, len(entries))
	for i, e := range entries {
		metas[i] = &SecretMeta{Key: e.Key, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
	}
	return metas, nil
}

// GetAll decrypts every secret of a project, for bulk export into process
// environments. Each plaintext is registered with the tracker.
func (s *SecretService) GetAll(ctx context.Context, auth *AuthContext, projectName string) (map[string]string, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}

	entries, err := s.store.ListSecrets(project.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	result := make(map[string]string, len(entries))
	for _, e := range entries {
		plaintext, err := crypto.Decrypt(s.key, e.EncryptedValue)
		if err != nil {
			return nil, fmt.Errorf("decrypt secret %s: %w", e.Key, err)
		}
		metrics.EncryptionOperations.WithLabelValues("decrypt").Inc()
		value := string(plaintext)
		track(ctx, value)
		result[e.Key] = value
	}
	return result, nil
}

// Delete removes a secret. Missing keys are NotFound, not a silent no-op.
func (s *SecretService) Delete(ctx context.Context, auth *AuthContext, projectName, key string) error {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return err
	}
	if err := requireWrite(auth); err != nil {
		return err
	}
	return mapStoreError(s.store.DeleteSecret(project.ID, key))
}
