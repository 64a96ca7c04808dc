package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/olushako/vaulty/internal/crypto"
	"github.com/olushako/vaulty/internal/store"
	"github.com/olushako/vaulty/internal/validation"
)

// AutoApprovedBy is recorded as the authorizer when a device is approved by
// a project pattern instead of an operator.
const AutoApprovedBy = "auto-approval"

// DeviceService manages device registration and approval.
type DeviceService struct {
	store store.Store
	// derivationKey keys the HMAC that turns a device identity into its
	// bearer token.
	derivationKey []byte
}

// NewDeviceService creates a new DeviceService.
func NewDeviceService(s store.Store, keyMaterial []byte) *DeviceService {
	return &DeviceService{store: s, derivationKey: keyMaterial}
}

// RegisterRequest is the input for device registration.
type RegisterRequest struct {
	DeviceID   string
	Name       string
	Tags       []string
	WorkingDir string
}

// RegisteredDevice is the registration response: the device row plus the
// derived token the device will authenticate with once authorized.
type RegisteredDevice struct {
	Device *store.Device `json:"device"`
	Token  string        `json:"token"`
}

// Register registers a device against the named project. Registration is
// idempotent per device identity: re-registering refreshes metadata and
// returns the existing row. The same identity under a different project is a
// conflict. Pending devices are auto-approved when one of their tags
// contains one of the project's auto-approval patterns.
func (s *DeviceService) Register(ctx context.Context, auth *AuthContext, projectName string, req RegisterRequest) (*RegisteredDevice, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}
	if err := validation.DeviceName(req.Name); err != nil {
		return nil, ValidationErr(err)
	}
	if err := validation.Tags(req.Tags); err != nil {
		return nil, ValidationErr(err)
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID, err = crypto.NewID()
		if err != nil {
			return nil, err
		}
	}

	existing, err := s.store.GetDeviceByDeviceID(deviceID)
	switch {
	case err == nil:
		if existing.ProjectID != project.ID {
			return nil, Conflict("device is already registered to another project")
		}
		// A device credential may only refresh its own registration.
		if auth.ReadOnly() && auth.DeviceID != existing.ID {
			return nil, Forbidden("device tokens may only re-register themselves")
		}
		return s.refresh(ctx, project, existing, req)
	case errors.Is(err, store.ErrNotFound):
		// fall through to create
	default:
		return nil, err
	}

	if err := requireWrite(auth); err != nil {
		return nil, err
	}

	id, err := crypto.NewID()
	if err != nil {
		return nil, err
	}
	token := crypto.DeriveDeviceToken(s.derivationKey, deviceID, req.WorkingDir)

	now := time.Now().UTC()
	device := &store.Device{
		ID:         id,
		ProjectID:  project.ID,
		DeviceID:   deviceID,
		Name:       req.Name,
		Tags:       req.Tags,
		Status:     store.DevicePending,
		TokenHash:  crypto.HashToken(token),
		WorkingDir: req.WorkingDir,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	s.applyAutoApproval(project, device, now)

	if err := s.store.CreateDevice(device); err != nil {
		return nil, mapStoreError(err)
	}

	track(ctx, token)
	return &RegisteredDevice{Device: device, Token: token}, nil
}

// refresh updates an existing registration in place.
func (s *DeviceService) refresh(ctx context.Context, project *store.Project, device *store.Device, req RegisterRequest) (*RegisteredDevice, error) {
	now := time.Now().UTC()
	if req.Name != "" {
		device.Name = req.Name
	}
	if req.Tags != nil {
		device.Tags = req.Tags
	}
	if req.WorkingDir != "" && req.WorkingDir != device.WorkingDir {
		device.WorkingDir = req.WorkingDir
		token := crypto.DeriveDeviceToken(s.derivationKey, device.DeviceID, req.WorkingDir)
		device.TokenHash = crypto.HashToken(token)
	}
	device.LastSeenAt = now

	if device.Status == store.DevicePending {
		s.applyAutoApproval(project, device, now)
	}

	if err := s.store.UpdateDevice(device); err != nil {
		return nil, mapStoreError(err)
	}

	token := crypto.DeriveDeviceToken(s.derivationKey, device.DeviceID, device.WorkingDir)
	track(ctx, token)
	return &RegisteredDevice{Device: device, Token: token}, nil
}

// applyAutoApproval authorizes the device when one of its tags contains one
// of the project's patterns. Matching is a case-sensitive substring test.
func (s *DeviceService) applyAutoApproval(project *store.Project, device *store.Device, now time.Time) {
	for _, tag := range device.Tags {
		for _, pattern := range project.AutoApprovalPatterns {
			if pattern != "" && strings.Contains(tag, pattern) {
				device.Status = store.DeviceAuthorized
				device.AuthorizedBy = AutoApprovedBy
				device.AuthorizedAt = &now
				return
			}
		}
	}
}

// List returns the devices of the named project, optionally narrowed to one
// approval status.
func (s *DeviceService) List(ctx context.Context, auth *AuthContext, projectName, status string) ([]*store.Device, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}
	if status != "" && status != string(store.DevicePending) && status != string(store.DeviceAuthorized) {
		return nil, Validation("unknown device status filter")
	}
	devices, err := s.store.ListDevices(project.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if status == "" {
		return devices, nil
	}
	filtered := devices[:0]
	for _, d := range devices {
		if string(d.Status) == status {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// ListAll returns every device across projects. Master only.
func (s *DeviceService) ListAll(ctx context.Context, auth *AuthContext) ([]*store.Device, error) {
	if err := requireMaster(auth); err != nil {
		return nil, err
	}
	devices, err := s.store.ListAllDevices()
	if err != nil {
		return nil, mapStoreError(err)
	}
	return devices, nil
}

// Get returns one device of the named project.
func (s *DeviceService) Get(ctx context.Context, auth *AuthContext, projectName, id string) (*store.Device, error) {
	project, err := s.store.GetProjectByName(projectName)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}
	device, err := s.store.GetDevice(id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if device.ProjectID != project.ID {
		return nil, NotFound("device not found")
	}
	return device, nil
}

// Status returns the approval state for a device presenting its derived
// token. Unlike Resolve, this works for pending devices so they can poll
// while waiting for approval.
func (s *DeviceService) Status(ctx context.Context, deviceID, rawToken string) (*store.Device, error) {
	device, err := s.store.GetDeviceByDeviceID(deviceID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !crypto.CompareHashes(device.TokenHash, crypto.HashToken(rawToken)) {
		return nil, Unauthorized("invalid token")
	}
	return device, nil
}

// Authorize approves a pending device. Approving an already authorized
// device is a no-op that keeps the original authorizer.
func (s *DeviceService) Authorize(ctx context.Context, auth *AuthContext, projectName, id, authorizedBy string) (*store.Device, error) {
	device, err := s.Get(ctx, auth, projectName, id)
	if err != nil {
		return nil, err
	}
	if err := requireWrite(auth); err != nil {
		return nil, err
	}

	if device.Status == store.DeviceAuthorized {
		return device, nil
	}

	now := time.Now().UTC()
	device.Status = store.DeviceAuthorized
	device.AuthorizedBy = authorizedBy
	device.AuthorizedAt = &now
	if err := s.store.UpdateDevice(device); err != nil {
		return nil, mapStoreError(err)
	}
	return device, nil
}

// Delete removes a device record outright, freeing its identity to register
// again.
func (s *DeviceService) Delete(ctx context.Context, auth *AuthContext, projectName, id string) error {
	device, err := s.Get(ctx, auth, projectName, id)
	if err != nil {
		return err
	}
	if err := requireWrite(auth); err != nil {
		return err
	}
	return mapStoreError(s.store.DeleteDevice(device.ID))
}

// Reject declines a device. Rejected devices are not retained: rejection
// deletes the record, so the identity may register again later.
func (s *DeviceService) Reject(ctx context.Context, auth *AuthContext, projectName, id string) error {
	return s.Delete(ctx, auth, projectName, id)
}
