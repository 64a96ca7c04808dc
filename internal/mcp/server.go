// Package mcp exposes the vault to AI assistants over the Model Context
// Protocol. The server authenticates once with a vault token and runs every
// tool call through the same service layer the REST API uses, so scoping and
// activity recording behave identically.
package mcp

import (
	"context"
	"encoding/json"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/olushako/vaulty/internal/services"
)

// Services bundles the service-layer dependencies the MCP server needs.
type Services struct {
	Auth     *services.AuthService
	Projects *services.ProjectService
	Secrets  *services.SecretService
	Devices  *services.DeviceService
	Activity *services.ActivityService
}

// Server wraps the vault services and exposes them as an MCP server.
type Server struct {
	server *sdkmcp.Server
	auth   *services.AuthContext
	deps   Services
}

// NewServer creates an MCP server authenticated with the given raw token.
// The credential's tier decides what the tools can reach, exactly as it
// would over HTTP.
func NewServer(ctx context.Context, deps Services, rawToken string) (*Server, error) {
	auth, err := deps.Auth.Resolve(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	s := &Server{
		auth: auth,
		deps: deps,
	}

	s.server = sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    "vaulty",
			Version: "1.0.0",
		},
		&sdkmcp.ServerOptions{
			Instructions: "Vaulty provides project-scoped secret management. " +
				"vault_get_secret places the decrypted value into the conversation " +
				"context and is recorded as a confidential exposure.",
		},
	)

	s.registerProjectTools()
	s.registerSecretTools()
	s.registerDeviceTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

// record logs one tool call to the activity log. The output is re-marshaled
// so the exposure scan sees exactly what went back to the model.
func (s *Server) record(ctx context.Context, tool string, start time.Time, output any, callErr error) {
	status := 200
	if callErr != nil {
		status = 500
	}

	var responseBody []byte
	if output != nil {
		responseBody, _ = json.Marshal(output)
	}

	s.deps.Activity.Log(ctx, services.Record{
		Method:       "MCP",
		Path:         "mcp/" + tool,
		Action:       tool,
		ProjectID:    s.auth.ProjectID,
		TokenType:    string(s.auth.Type),
		StatusCode:   status,
		Duration:     time.Since(start),
		ResponseBody: responseBody,
		Source:       "mcp",
		Tracker:      services.TrackerFrom(ctx),
	})
}

// resolveProject returns the project to operate on: the explicit name when
// given, otherwise the project the credential is bound to.
func (s *Server) resolveProject(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	project, err := s.deps.Projects.Resolve(ctx, s.auth)
	if err != nil {
		return "", err
	}
	return project.Name, nil
}
