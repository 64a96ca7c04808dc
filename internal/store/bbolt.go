package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names used in the bbolt database.
var (
	bucketProjects           = []byte("projects")
	bucketProjectNames       = []byte("project_names")
	bucketMasterTokens       = []byte("master_tokens")
	bucketMasterTokenHashes  = []byte("master_token_hashes")
	bucketProjectTokens      = []byte("project_tokens")
	bucketProjectTokenHashes = []byte("project_token_hashes")
	bucketSecrets            = []byte("secrets")
	bucketDevices            = []byte("devices")
	bucketDeviceIDs          = []byte("device_ids")
	bucketDeviceTokenHashes  = []byte("device_token_hashes")
	bucketActivities         = []byte("activities")
)

// Sentinel errors returned by store operations.
var (
	ErrNotFound             = errors.New("not found")
	ErrProjectNotFound      = fmt.Errorf("project %w", ErrNotFound)
	ErrSecretNotFound       = fmt.Errorf("secret %w", ErrNotFound)
	ErrTokenNotFound        = fmt.Errorf("token %w", ErrNotFound)
	ErrDeviceNotFound       = fmt.Errorf("device %w", ErrNotFound)
	ErrDuplicateProjectName = errors.New("project name already exists")
	ErrDuplicateDeviceID    = errors.New("device id already registered")
	ErrSelfRevocation       = errors.New("token cannot revoke itself")
)

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a bbolt database at the given path and
// ensures all required buckets exist. The file is created with 0600 permissions.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{
			bucketProjects,
			bucketProjectNames,
			bucketMasterTokens,
			bucketMasterTokenHashes,
			bucketProjectTokens,
			bucketProjectTokenHashes,
			bucketSecrets,
			bucketDevices,
			bucketDeviceIDs,
			bucketDeviceTokenHashes,
			bucketActivities,
		} {
			if _, bErr := tx.CreateBucketIfNotExists(b); bErr != nil {
				return fmt.Errorf("create bucket %s: %w", b, bErr)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database file is still readable.
func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketProjects) == nil {
			return fmt.Errorf("projects bucket missing")
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// CreateProject stores a new project. It returns ErrDuplicateProjectName if a
// project with the same name already exists.
func (s *BoltStore) CreateProject(project *Project) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketProjectNames)
		if existing := names.Get([]byte(project.Name)); existing != nil {
			return ErrDuplicateProjectName
		}

		data, err := json.Marshal(project)
		if err != nil {
			return fmt.Errorf("marshal project: %w", err)
		}

		idKey := []byte(project.ID)
		if err := tx.Bucket(bucketProjects).Put(idKey, data); err != nil {
			return err
		}
		return names.Put([]byte(project.Name), idKey)
	})
}

// GetProject retrieves a project by ID.
func (s *BoltStore) GetProject(id string) (*Project, error) {
	var project Project
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketProjects).Get([]byte(id))
		if v == nil {
			return ErrProjectNotFound
		}
		return json.Unmarshal(v, &project)
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProjectByName retrieves a project by name using the name index.
func (s *BoltStore) GetProjectByName(name string) (*Project, error) {
	var project Project
	err := s.db.View(func(tx *bolt.Tx) error {
		idBytes := tx.Bucket(bucketProjectNames).Get([]byte(name))
		if idBytes == nil {
			return ErrProjectNotFound
		}
		v := tx.Bucket(bucketProjects).Get(idBytes)
		if v == nil {
			return ErrProjectNotFound
		}
		return json.Unmarshal(v, &project)
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns all projects sorted by name.
func (s *BoltStore) ListProjects() ([]*Project, error) {
	var projects []*Project
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProjects).ForEach(func(_, v []byte) error {
			var p Project
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			projects = append(projects, &p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// UpdateProject updates an existing project in-place. It also updates the
// name index if the name has changed.
func (s *BoltStore) UpdateProject(project *Project) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketProjects)
		idKey := []byte(project.ID)

		existing := bucket.Get(idKey)
		if existing == nil {
			return ErrProjectNotFound
		}

		var old Project
		if err := json.Unmarshal(existing, &old); err != nil {
			return fmt.Errorf("unmarshal old project: %w", err)
		}

		names := tx.Bucket(bucketProjectNames)
		if old.Name != project.Name {
			if dup := names.Get([]byte(project.Name)); dup != nil {
				return ErrDuplicateProjectName
			}
			if err := names.Delete([]byte(old.Name)); err != nil {
				return err
			}
			if err := names.Put([]byte(project.Name), idKey); err != nil {
				return err
			}
		}

		data, err := json.Marshal(project)
		if err != nil {
			return fmt.Errorf("marshal project: %w", err)
		}
		return bucket.Put(idKey, data)
	})
}

// DeleteProject removes a project and cascades to its secrets, project
// tokens, devices and activities in the same transaction.
func (s *BoltStore) DeleteProject(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketProjects)
		idKey := []byte(id)

		v := bucket.Get(idKey)
		if v == nil {
			return ErrProjectNotFound
		}

		var project Project
		if err := json.Unmarshal(v, &project); err != nil {
			return fmt.Errorf("unmarshal project: %w", err)
		}

		if err := bucket.Delete(idKey); err != nil {
			return err
		}
		if err := tx.Bucket(bucketProjectNames).Delete([]byte(project.Name)); err != nil {
			return err
		}

		// Secrets under the project's key prefix.
		if err := deletePrefix(tx.Bucket(bucketSecrets), secretPrefix(id)); err != nil {
			return err
		}

		// Project tokens and their hash index.
		tokens := tx.Bucket(bucketProjectTokens)
		tokenHashes := tx.Bucket(bucketProjectTokenHashes)
		var tokenKeys [][]byte
		if err := tokens.ForEach(func(k, v []byte) error {
			var t ProjectToken
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if t.ProjectID == id {
				tokenKeys = append(tokenKeys, append([]byte(nil), k...))
				if err := tokenHashes.Delete([]byte(t.TokenHash)); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range tokenKeys {
			if err := tokens.Delete(k); err != nil {
				return err
			}
		}

		// Devices and their indexes.
		devices := tx.Bucket(bucketDevices)
		deviceIDs := tx.Bucket(bucketDeviceIDs)
		deviceHashes := tx.Bucket(bucketDeviceTokenHashes)
		var deviceKeys [][]byte
		if err := devices.ForEach(func(k, v []byte) error {
			var d Device
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.ProjectID == id {
				deviceKeys = append(deviceKeys, append([]byte(nil), k...))
				if err := deviceIDs.Delete([]byte(d.DeviceID)); err != nil {
					return err
				}
				if err := deviceHashes.Delete([]byte(d.TokenHash)); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range deviceKeys {
			if err := devices.Delete(k); err != nil {
				return err
			}
		}

		// Activities recorded under the project's name.
		activities := tx.Bucket(bucketActivities)
		var activityKeys [][]byte
		if err := activities.ForEach(func(k, v []byte) error {
			var a Activity
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.ProjectName == project.Name {
				activityKeys = append(activityKeys, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range activityKeys {
			if err := activities.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

func deletePrefix(b *bolt.Bucket, prefix string) error {
	c := b.Cursor()
	prefixBytes := []byte(prefix)
	var keys [][]byte
	for k, _ := c.Seek(prefixBytes); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Master tokens
// ---------------------------------------------------------------------------

// CreateMasterToken stores a new master token. When markInitWhenFirst is set
// and no master tokens exist yet, the token is flagged as the init token.
func (s *BoltStore) CreateMasterToken(token *MasterToken, markInitWhenFirst bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketMasterTokens)
		if markInitWhenFirst && bucket.Stats().KeyN == 0 {
			token.IsInit = true
		}

		data, err := json.Marshal(token)
		if err != nil {
			return fmt.Errorf("marshal master token: %w", err)
		}
		if err := bucket.Put([]byte(token.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketMasterTokenHashes).Put([]byte(token.TokenHash), []byte(token.ID))
	})
}

// GetMasterToken retrieves a master token by ID.
func (s *BoltStore) GetMasterToken(id string) (*MasterToken, error) {
	var token MasterToken
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMasterTokens).Get([]byte(id))
		if v == nil {
			return ErrTokenNotFound
		}
		return json.Unmarshal(v, &token)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetMasterTokenByHash resolves a master token from its digest.
func (s *BoltStore) GetMasterTokenByHash(hash string) (*MasterToken, error) {
	var token MasterToken
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketMasterTokenHashes).Get([]byte(hash))
		if id == nil {
			return ErrTokenNotFound
		}
		v := tx.Bucket(bucketMasterTokens).Get(id)
		if v == nil {
			return ErrTokenNotFound
		}
		return json.Unmarshal(v, &token)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ListMasterTokens returns all master tokens sorted by creation time.
func (s *BoltStore) ListMasterTokens() ([]*MasterToken, error) {
	var tokens []*MasterToken
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMasterTokens).ForEach(func(_, v []byte) error {
			var t MasterToken
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			tokens = append(tokens, &t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.Before(tokens[j].CreatedAt) })
	return tokens, nil
}

// CountMasterTokens returns the number of stored master tokens.
func (s *BoltStore) CountMasterTokens() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketMasterTokens).Stats().KeyN
		return nil
	})
	return n, err
}

// DeleteMasterToken removes a master token. The caller's own digest is
// re-checked inside the transaction so a token can never revoke itself, even
// under concurrent requests.
func (s *BoltStore) DeleteMasterToken(id, callerHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketMasterTokens)
		v := bucket.Get([]byte(id))
		if v == nil {
			return ErrTokenNotFound
		}
		var token MasterToken
		if err := json.Unmarshal(v, &token); err != nil {
			return fmt.Errorf("unmarshal master token: %w", err)
		}
		if callerHash != "" && token.TokenHash == callerHash {
			return ErrSelfRevocation
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketMasterTokenHashes).Delete([]byte(token.TokenHash))
	})
}

// RotateMasterToken atomically replaces an existing master token with a new
// one. The replacement inherits nothing; rotated tokens are never init tokens.
func (s *BoltStore) RotateMasterToken(oldID string, replacement *MasterToken) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketMasterTokens)
		v := bucket.Get([]byte(oldID))
		if v == nil {
			return ErrTokenNotFound
		}
		var old MasterToken
		if err := json.Unmarshal(v, &old); err != nil {
			return fmt.Errorf("unmarshal master token: %w", err)
		}

		hashes := tx.Bucket(bucketMasterTokenHashes)
		if err := bucket.Delete([]byte(oldID)); err != nil {
			return err
		}
		if err := hashes.Delete([]byte(old.TokenHash)); err != nil {
			return err
		}

		replacement.IsInit = false
		data, err := json.Marshal(replacement)
		if err != nil {
			return fmt.Errorf("marshal master token: %w", err)
		}
		if err := bucket.Put([]byte(replacement.ID), data); err != nil {
			return err
		}
		return hashes.Put([]byte(replacement.TokenHash), []byte(replacement.ID))
	})
}

// TouchMasterToken updates the last-used timestamp.
func (s *BoltStore) TouchMasterToken(id string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketMasterTokens)
		v := bucket.Get([]byte(id))
		if v == nil {
			return ErrTokenNotFound
		}
		var token MasterToken
		if err := json.Unmarshal(v, &token); err != nil {
			return err
		}
		token.LastUsedAt = &at
		data, err := json.Marshal(&token)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), data)
	})
}

// ---------------------------------------------------------------------------
// Project tokens
// ---------------------------------------------------------------------------

// CreateProjectToken stores a new project token.
func (s *BoltStore) CreateProjectToken(token *ProjectToken) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(token)
		if err != nil {
			return fmt.Errorf("marshal project token: %w", err)
		}
		if err := tx.Bucket(bucketProjectTokens).Put([]byte(token.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketProjectTokenHashes).Put([]byte(token.TokenHash), []byte(token.ID))
	})
}

// GetProjectToken retrieves a project token by ID.
func (s *BoltStore) GetProjectToken(id string) (*ProjectToken, error) {
	var token ProjectToken
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketProjectTokens).Get([]byte(id))
		if v == nil {
			return ErrTokenNotFound
		}
		return json.Unmarshal(v, &token)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetProjectTokenByHash resolves a project token from its digest.
func (s *BoltStore) GetProjectTokenByHash(hash string) (*ProjectToken, error) {
	var token ProjectToken
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketProjectTokenHashes).Get([]byte(hash))
		if id == nil {
			return ErrTokenNotFound
		}
		v := tx.Bucket(bucketProjectTokens).Get(id)
		if v == nil {
			return ErrTokenNotFound
		}
		return json.Unmarshal(v, &token)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ListProjectTokens returns the tokens of one project sorted by creation time.
func (s *BoltStore) ListProjectTokens(projectID string) ([]*ProjectToken, error) {
	var tokens []*ProjectToken
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProjectTokens).ForEach(func(_, v []byte) error {
			var t ProjectToken
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if t.ProjectID == projectID {
				tokens = append(tokens, &t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.Before(tokens[j].CreatedAt) })
	return tokens, nil
}

// DeleteProjectToken removes a project token with the same in-transaction
// self-revocation guard as master tokens.
func (s *BoltStore) DeleteProjectToken(id, callerHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketProjectTokens)
		v := bucket.Get([]byte(id))
		if v == nil {
			return ErrTokenNotFound
		}
		var token ProjectToken
		if err := json.Unmarshal(v, &token); err != nil {
			return fmt.Errorf("unmarshal project token: %w", err)
		}
		if callerHash != "" && token.TokenHash == callerHash {
			return ErrSelfRevocation
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketProjectTokenHashes).Delete([]byte(token.TokenHash))
	})
}

// RotateProjectToken atomically replaces an existing project token.
func (s *BoltStore) RotateProjectToken(oldID string, replacement *ProjectToken) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketProjectTokens)
		v := bucket.Get([]byte(oldID))
		if v == nil {
			return ErrTokenNotFound
		}
		var old ProjectToken
		if err := json.Unmarshal(v, &old); err != nil {
			return fmt.Errorf("unmarshal project token: %w", err)
		}

		hashes := tx.Bucket(bucketProjectTokenHashes)
		if err := bucket.Delete([]byte(oldID)); err != nil {
			return err
		}
		if err := hashes.Delete([]byte(old.TokenHash)); err != nil {
			return err
		}

		data, err := json.Marshal(replacement)
		if err != nil {
			return fmt.Errorf("marshal project token: %w", err)
		}
		if err := bucket.Put([]byte(replacement.ID), data); err != nil {
			return err
		}
		return hashes.Put([]byte(replacement.TokenHash), []byte(replacement.ID))
	})
}

// TouchProjectToken updates the last-used timestamp.
func (s *BoltStore) TouchProjectToken(id string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketProjectTokens)
		v := bucket.Get([]byte(id))
		if v == nil {
			return ErrTokenNotFound
		}
		var token ProjectToken
		if err := json.Unmarshal(v, &token); err != nil {
			return err
		}
		token.LastUsedAt = &at
		data, err := json.Marshal(&token)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), data)
	})
}

// ---------------------------------------------------------------------------
// Secrets
// ---------------------------------------------------------------------------

// secretKey builds the composite key: "projectID/secretKey".
func secretKey(projectID, key string) []byte {
	return []byte(projectID + "/" + key)
}

// secretPrefix returns the prefix for all secrets of a project.
func secretPrefix(projectID string) string {
	return projectID + "/"
}

// SetSecret stores or updates a secret. On update the original creation time
// is preserved (upsert semantics).
func (s *BoltStore) SetSecret(projectID string, entry *SecretEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSecrets)
		compositeKey := secretKey(projectID, entry.Key)

		if existing := bucket.Get(compositeKey); existing != nil {
			var old SecretEntry
			if err := json.Unmarshal(existing, &old); err != nil {
				return fmt.Errorf("unmarshal existing secret: %w", err)
			}
			entry.CreatedAt = old.CreatedAt
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal secret: %w", err)
		}
		return bucket.Put(compositeKey, data)
	})
}

// GetSecret retrieves a single secret by project ID and key.
func (s *BoltStore) GetSecret(projectID, key string) (*SecretEntry, error) {
	var entry SecretEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSecrets).Get(secretKey(projectID, key))
		if v == nil {
			return ErrSecretNotFound
		}
		return json.Unmarshal(v, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListSecrets returns all secrets of a project sorted by key.
func (s *BoltStore) ListSecrets(projectID string) ([]*SecretEntry, error) {
	prefix := secretPrefix(projectID)
	var entries []*SecretEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSecrets).Cursor()
		prefixBytes := []byte(prefix)
		for k, v := c.Seek(prefixBytes); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var entry SecretEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// DeleteSecret removes a secret by project ID and key.
func (s *BoltStore) DeleteSecret(projectID, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		compositeKey := secretKey(projectID, key)
		bucket := tx.Bucket(bucketSecrets)
		if bucket.Get(compositeKey) == nil {
			return ErrSecretNotFound
		}
		return bucket.Delete(compositeKey)
	})
}

// CountSecrets returns the total number of secrets across all projects.
func (s *BoltStore) CountSecrets() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketSecrets).Stats().KeyN
		return nil
	})
	return n, err
}

// ---------------------------------------------------------------------------
// Devices
// ---------------------------------------------------------------------------

// CreateDevice stores a new device. The client-supplied device identity is
// unique across all projects.
func (s *BoltStore) CreateDevice(device *Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		ids := tx.Bucket(bucketDeviceIDs)
		if existing := ids.Get([]byte(device.DeviceID)); existing != nil {
			return ErrDuplicateDeviceID
		}

		data, err := json.Marshal(device)
		if err != nil {
			return fmt.Errorf("marshal device: %w", err)
		}
		if err := tx.Bucket(bucketDevices).Put([]byte(device.ID), data); err != nil {
			return err
		}
		if err := ids.Put([]byte(device.DeviceID), []byte(device.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketDeviceTokenHashes).Put([]byte(device.TokenHash), []byte(device.ID))
	})
}

// GetDevice retrieves a device by row ID.
func (s *BoltStore) GetDevice(id string) (*Device, error) {
	var device Device
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDevices).Get([]byte(id))
		if v == nil {
			return ErrDeviceNotFound
		}
		return json.Unmarshal(v, &device)
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// GetDeviceByDeviceID retrieves a device by its client-supplied identity.
func (s *BoltStore) GetDeviceByDeviceID(deviceID string) (*Device, error) {
	var device Device
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketDeviceIDs).Get([]byte(deviceID))
		if id == nil {
			return ErrDeviceNotFound
		}
		v := tx.Bucket(bucketDevices).Get(id)
		if v == nil {
			return ErrDeviceNotFound
		}
		return json.Unmarshal(v, &device)
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// GetDeviceByTokenHash resolves a device from its derived token digest.
func (s *BoltStore) GetDeviceByTokenHash(hash string) (*Device, error) {
	var device Device
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketDeviceTokenHashes).Get([]byte(hash))
		if id == nil {
			return ErrDeviceNotFound
		}
		v := tx.Bucket(bucketDevices).Get(id)
		if v == nil {
			return ErrDeviceNotFound
		}
		return json.Unmarshal(v, &device)
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// ListDevices returns the devices of one project sorted by creation time.
func (s *BoltStore) ListDevices(projectID string) ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).ForEach(func(_, v []byte) error {
			var d Device
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.ProjectID == projectID {
				devices = append(devices, &d)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].CreatedAt.Before(devices[j].CreatedAt) })
	return devices, nil
}

// ListAllDevices returns every device sorted by creation time.
func (s *BoltStore) ListAllDevices() ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).ForEach(func(_, v []byte) error {
			var d Device
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			devices = append(devices, &d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].CreatedAt.Before(devices[j].CreatedAt) })
	return devices, nil
}

// UpdateDevice updates an existing device, keeping the token-hash index in
// sync when the derived token changes.
func (s *BoltStore) UpdateDevice(device *Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketDevices)
		v := bucket.Get([]byte(device.ID))
		if v == nil {
			return ErrDeviceNotFound
		}
		var old Device
		if err := json.Unmarshal(v, &old); err != nil {
			return fmt.Errorf("unmarshal device: %w", err)
		}

		if old.TokenHash != device.TokenHash {
			hashes := tx.Bucket(bucketDeviceTokenHashes)
			if err := hashes.Delete([]byte(old.TokenHash)); err != nil {
				return err
			}
			if err := hashes.Put([]byte(device.TokenHash), []byte(device.ID)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(device)
		if err != nil {
			return fmt.Errorf("marshal device: %w", err)
		}
		return bucket.Put([]byte(device.ID), data)
	})
}

// DeleteDevice removes a device and its index entries.
func (s *BoltStore) DeleteDevice(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketDevices)
		v := bucket.Get([]byte(id))
		if v == nil {
			return ErrDeviceNotFound
		}
		var device Device
		if err := json.Unmarshal(v, &device); err != nil {
			return fmt.Errorf("unmarshal device: %w", err)
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDeviceIDs).Delete([]byte(device.DeviceID)); err != nil {
			return err
		}
		return tx.Bucket(bucketDeviceTokenHashes).Delete([]byte(device.TokenHash))
	})
}

// ---------------------------------------------------------------------------
// Activities
// ---------------------------------------------------------------------------

// activityKeyFormat is fixed width. RFC3339Nano trims trailing fractional
// zeros, which would break the lexical ordering cursor scans rely on.
const activityKeyFormat = "2006-01-02T15:04:05.000000000Z"

// activityKey builds a time-ordered unique key so cursor scans return
// entries in chronological order.
func activityKey(at time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%s", at.UTC().Format(activityKeyFormat), uuid.New().String()))
}

// AppendActivity appends an activity record.
func (s *BoltStore) AppendActivity(activity *Activity) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(activity)
		if err != nil {
			return fmt.Errorf("marshal activity: %w", err)
		}
		return tx.Bucket(bucketActivities).Put(activityKey(activity.CreatedAt), data)
	})
}

// ListActivitiesSince returns activities recorded at or after since, newest
// first.
func (s *BoltStore) ListActivitiesSince(since time.Time) ([]*Activity, error) {
	var activities []*Activity
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketActivities).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var a Activity
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.CreatedAt.Before(since) {
				break
			}
			activities = append(activities, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// DeleteActivitiesByProject removes all activities recorded for the given
// project name and returns the number deleted.
func (s *BoltStore) DeleteActivitiesByProject(projectName string) (int, error) {
	return s.deleteActivities(func(a *Activity) bool { return a.ProjectName == projectName })
}

// DeleteAllActivities removes every activity record.
func (s *BoltStore) DeleteAllActivities() (int, error) {
	return s.deleteActivities(func(*Activity) bool { return true })
}

// PurgeActivitiesBefore removes activities older than cutoff.
func (s *BoltStore) PurgeActivitiesBefore(cutoff time.Time) (int, error) {
	return s.deleteActivities(func(a *Activity) bool { return a.CreatedAt.Before(cutoff) })
}

func (s *BoltStore) deleteActivities(match func(*Activity) bool) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketActivities)
		var keys [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var a Activity
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if match(&a) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
