// Package store provides persistent storage for Vaulty backed by bbolt.
package store

import "time"

// Store is the persistence interface used by the service layer.
type Store interface {
	Close() error
	Ping() error

	// Projects
	CreateProject(project *Project) error
	GetProject(id string) (*Project, error)
	GetProjectByName(name string) (*Project, error)
	ListProjects() ([]*Project, error)
	UpdateProject(project *Project) error
	DeleteProject(id string) error

	// Master tokens
	CreateMasterToken(token *MasterToken, markInitWhenFirst bool) error
	GetMasterToken(id string) (*MasterToken, error)
	GetMasterTokenByHash(hash string) (*MasterToken, error)
	ListMasterTokens() ([]*MasterToken, error)
	CountMasterTokens() (int, error)
	DeleteMasterToken(id, callerHash string) error
	RotateMasterToken(oldID string, replacement *MasterToken) error
	TouchMasterToken(id string, at time.Time) error

	// Project tokens
	CreateProjectToken(token *ProjectToken) error
	GetProjectToken(id string) (*ProjectToken, error)
	GetProjectTokenByHash(hash string) (*ProjectToken, error)
	ListProjectTokens(projectID string) ([]*ProjectToken, error)
	DeleteProjectToken(id, callerHash string) error
	RotateProjectToken(oldID string, replacement *ProjectToken) error
	TouchProjectToken(id string, at time.Time) error

	// Secrets
	SetSecret(projectID string, entry *SecretEntry) error
	GetSecret(projectID, key string) (*SecretEntry, error)
	ListSecrets(projectID string) ([]*SecretEntry, error)
	DeleteSecret(projectID, key string) error
	CountSecrets() (int, error)

	// Devices
	CreateDevice(device *Device) error
	GetDevice(id string) (*Device, error)
	GetDeviceByDeviceID(deviceID string) (*Device, error)
	GetDeviceByTokenHash(hash string) (*Device, error)
	ListDevices(projectID string) ([]*Device, error)
	ListAllDevices() ([]*Device, error)
	UpdateDevice(device *Device) error
	DeleteDevice(id string) error

	// Activities
	AppendActivity(activity *Activity) error
	ListActivitiesSince(since time.Time) ([]*Activity, error)
	DeleteActivitiesByProject(projectName string) (int, error)
	DeleteAllActivities() (int, error)
	PurgeActivitiesBefore(cutoff time.Time) (int, error)
}
