package store

import (
	"time"

	"github.com/olushako/vaulty/internal/payload"
)

// Project is a named scope for secrets, tokens and devices.
type Project struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	AutoApprovalPatterns []string  `json:"auto_approval_patterns,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// MasterToken grants cross-project access. Only the SHA-256 digest of the
// raw token is persisted.
type MasterToken struct {
	ID         string     `json:"id"`
	TokenHash  string     `json:"token_hash"`
	Name       string     `json:"name"`
	IsInit     bool       `json:"is_init_token"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// ProjectToken grants access to a single project.
type ProjectToken struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	TokenHash  string     `json:"token_hash"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// SecretEntry is an encrypted secret value with its metadata.
type SecretEntry struct {
	Key            string    `json:"key"`
	EncryptedValue []byte    `json:"encrypted_value"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DeviceStatus is the approval state of a registered device.
type DeviceStatus string

const (
	// DevicePending means the device is registered but not yet approved.
	DevicePending DeviceStatus = "pending"
	// DeviceAuthorized means the device may authenticate.
	DeviceAuthorized DeviceStatus = "authorized"
)

// Device is a client machine registered against a project. Rejected devices
// are deleted, not retained, so there is no rejected status.
type Device struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	DeviceID     string       `json:"device_id"`
	Name         string       `json:"name,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Status       DeviceStatus `json:"status"`
	TokenHash    string       `json:"token_hash"`
	WorkingDir   string       `json:"working_dir,omitempty"`
	AuthorizedBy string       `json:"authorized_by,omitempty"`
	AuthorizedAt *time.Time   `json:"authorized_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	LastSeenAt   time.Time    `json:"last_seen_at"`
}

// Activity is one recorded API call.
type Activity struct {
	ID              string            `json:"id"`
	Method          string            `json:"method"`
	Path            string            `json:"path"`
	Action          string            `json:"action"`
	ProjectName     string            `json:"project_name,omitempty"`
	TokenType       string            `json:"token_type"`
	StatusCode      int               `json:"status_code"`
	ExecutionMS     int64             `json:"execution_ms"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestPayload  *payload.Value    `json:"request_payload,omitempty"`
	ResponsePayload *payload.Value    `json:"response_payload,omitempty"`
	Exposed         bool              `json:"exposed_confidential_data"`
	Source          string            `json:"source"`
	ClientIP        string            `json:"client_ip,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
