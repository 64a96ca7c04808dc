package mcp

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// --- vault_list_devices ---

type listDevicesInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name. If omitted uses the credential's own project."`
	Status  string `json:"status,omitempty" jsonschema:"Filter by approval status: pending or authorized."`
}

type deviceInfo struct {
	ID       string   `json:"id"`
	DeviceID string   `json:"device_id"`
	Name     string   `json:"name,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Status   string   `json:"status"`
}

type listDevicesOutput struct {
	Devices []deviceInfo `json:"devices"`
}

// --- vault_authorize_device ---

type authorizeDeviceInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name. If omitted uses the credential's own project."`
	ID      string `json:"id" jsonschema:"The device record ID to authorize."`
}

type authorizeDeviceOutput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) registerDeviceTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "vault_list_devices",
		Description: "List devices registered against a project, including pending approval requests.",
	}, s.handleListDevices)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "vault_authorize_device",
		Description: "Authorize a pending device so its derived token becomes usable.",
	}, s.handleAuthorizeDevice)
}

func (s *Server) handleListDevices(ctx context.Context, _ *sdkmcp.CallToolRequest, input listDevicesInput) (*sdkmcp.CallToolResult, listDevicesOutput, error) {
	start := time.Now()

	project, err := s.resolveProject(ctx, input.Project)
	if err != nil {
		return nil, listDevicesOutput{}, err
	}

	devices, err := s.deps.Devices.List(ctx, s.auth, project, input.Status)
	if err != nil {
		s.record(ctx, "vault_list_devices", start, nil, err)
		return nil, listDevicesOutput{}, fmt.Errorf("list devices: %w", err)
	}

	out := listDevicesOutput{Devices: make([]deviceInfo, 0, len(devices))}
	for _, d := range devices {
		out.Devices = append(out.Devices, deviceInfo{
			ID:       d.ID,
			DeviceID: d.DeviceID,
			Name:     d.Name,
			Tags:     d.Tags,
			Status:   string(d.Status),
		})
	}

	s.record(ctx, "vault_list_devices", start, out, nil)
	return nil, out, nil
}

func (s *Server) handleAuthorizeDevice(ctx context.Context, _ *sdkmcp.CallToolRequest, input authorizeDeviceInput) (*sdkmcp.CallToolResult, authorizeDeviceOutput, error) {
	start := time.Now()

	project, err := s.resolveProject(ctx, input.Project)
	if err != nil {
		return nil, authorizeDeviceOutput{}, err
	}

	device, err := s.deps.Devices.Authorize(ctx, s.auth, project, input.ID, "mcp")
	if err != nil {
		s.record(ctx, "vault_authorize_device", start, nil, err)
		return nil, authorizeDeviceOutput{}, fmt.Errorf("authorize device: %w", err)
	}

	out := authorizeDeviceOutput{ID: device.ID, Status: string(device.Status)}
	s.record(ctx, "vault_authorize_device", start, out, nil)
	return nil, out, nil
}
