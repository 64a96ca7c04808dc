package mcp

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/olushako/vaulty/internal/services"
)

// --- vault_list_secrets ---

type listSecretsInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name. If omitted uses the credential's own project."`
}

type secretMeta struct {
	Key       string `json:"key"`
	UpdatedAt string `json:"updated_at"`
}

type listSecretsOutput struct {
	Secrets []secretMeta `json:"secrets"`
}

// --- vault_get_secret ---

type getSecretInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name. If omitted uses the credential's own project."`
	Key     string `json:"key" jsonschema:"The secret key to retrieve."`
}

type getSecretOutput struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Warning string `json:"warning"`
}

// --- vault_set_secret ---

type setSecretInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name. If omitted uses the credential's own project."`
	Key     string `json:"key" jsonschema:"The secret key name."`
	Value   string `json:"value" jsonschema:"The secret value to store."`
}

type setSecretOutput struct {
	Key string `json:"key"`
}

// --- vault_delete_secret ---

type deleteSecretInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name. If omitted uses the credential's own project."`
	Key     string `json:"key" jsonschema:"The secret key to delete."`
}

type deleteSecretOutput struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

// --- vault_export_secrets ---

type exportSecretsInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project name. If omitted uses the credential's own project."`
}

type exportSecretsOutput struct {
	Secrets map[string]string `json:"secrets"`
	Warning string            `json:"warning"`
}

func (s *Server) registerSecretTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "vault_list_secrets",
		Description: "List secret keys in a project. Returns only key names and timestamps, NEVER secret values.",
	}, s.handleListSecrets)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "vault_get_secret",
		Description: "Get the decrypted value of a specific secret. " +
			"WARNING: The value enters the conversation context and the call is " +
			"recorded as a confidential exposure in the activity log.",
	}, s.handleGetSecret)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "vault_set_secret",
		Description: "Create or update a secret. The value is encrypted at rest using AES-256-GCM.",
	}, s.handleSetSecret)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "vault_delete_secret",
		Description: "Delete a secret. This action is irreversible.",
	}, s.handleDeleteSecret)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "vault_export_secrets",
		Description: "Export every secret of a project as a key/value map. " +
			"WARNING: All values enter the conversation context.",
	}, s.handleExportSecrets)
}

func (s *Server) handleListSecrets(ctx context.Context, _ *sdkmcp.CallToolRequest, input listSecretsInput) (*sdkmcp.CallToolResult, listSecretsOutput, error) {
	start := time.Now()

	project, err := s.resolveProject(ctx, input.Project)
	if err != nil {
		return nil, listSecretsOutput{}, err
	}

	metas, err := s.deps.Secrets.List(ctx, s.auth, project)
	if err != nil {
		s.record(ctx, "vault_list_secrets", start, nil, err)
		return nil, listSecretsOutput{}, fmt.Errorf("list secrets: %w", err)
	}

	out := listSecretsOutput{Secrets: make([]secretMeta, 0, len(metas))}
	for _, m := range metas {
		out.Secrets = append(out.Secrets, secretMeta{
			Key:       m.Key,
			UpdatedAt: m.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	s.record(ctx, "vault_list_secrets", start, out, nil)
	return nil, out, nil
}

func (s *Server) handleGetSecret(ctx context.Context, _ *sdkmcp.CallToolRequest, input getSecretInput) (*sdkmcp.CallToolResult, getSecretOutput, error) {
	start := time.Now()
	ctx = services.WithTracker(ctx, services.NewConfidentialTracker())

	project, err := s.resolveProject(ctx, input.Project)
	if err != nil {
		return nil, getSecretOutput{}, err
	}

	secret, err := s.deps.Secrets.Get(ctx, s.auth, project, input.Key)
	if err != nil {
		s.record(ctx, "vault_get_secret", start, nil, err)
		return nil, getSecretOutput{}, fmt.Errorf("get secret: %w", err)
	}

	out := getSecretOutput{
		Key:     secret.Key,
		Value:   secret.Value,
		Warning: "This value is now part of the conversation context.",
	}
	s.record(ctx, "vault_get_secret", start, out, nil)
	return nil, out, nil
}

func (s *Server) handleSetSecret(ctx context.Context, _ *sdkmcp.CallToolRequest, input setSecretInput) (*sdkmcp.CallToolResult, setSecretOutput, error) {
	start := time.Now()

	project, err := s.resolveProject(ctx, input.Project)
	if err != nil {
		return nil, setSecretOutput{}, err
	}

	if _, err := s.deps.Secrets.Set(ctx, s.auth, project, input.Key, input.Value); err != nil {
		s.record(ctx, "vault_set_secret", start, nil, err)
		return nil, setSecretOutput{}, fmt.Errorf("set secret: %w", err)
	}

	out := setSecretOutput{Key: input.Key}
	s.record(ctx, "vault_set_secret", start, out, nil)
	return nil, out, nil
}

func (s *Server) handleDeleteSecret(ctx context.Context, _ *sdkmcp.CallToolRequest, input deleteSecretInput) (*sdkmcp.CallToolResult, deleteSecretOutput, error) {
	start := time.Now()

	project, err := s.resolveProject(ctx, input.Project)
	if err != nil {
		return nil, deleteSecretOutput{}, err
	}

	if err := s.deps.Secrets.Delete(ctx, s.auth, project, input.Key); err != nil {
		s.record(ctx, "vault_delete_secret", start, nil, err)
		return nil, deleteSecretOutput{}, fmt.Errorf("delete secret: %w", err)
	}

	out := deleteSecretOutput{Key: input.Key, Deleted: true}
	s.record(ctx, "vault_delete_secret", start, out, nil)
	return nil, out, nil
}

func (s *Server) handleExportSecrets(ctx context.Context, _ *sdkmcp.CallToolRequest, input exportSecretsInput) (*sdkmcp.CallToolResult, exportSecretsOutput, error) {
	start := time.Now()
	ctx = services.WithTracker(ctx, services.NewConfidentialTracker())

	project, err := s.resolveProject(ctx, input.Project)
	if err != nil {
		return nil, exportSecretsOutput{}, err
	}

	values, err := s.deps.Secrets.GetAll(ctx, s.auth, project)
	if err != nil {
		s.record(ctx, "vault_export_secrets", start, nil, err)
		return nil, exportSecretsOutput{}, fmt.Errorf("export secrets: %w", err)
	}

	out := exportSecretsOutput{
		Secrets: values,
		Warning: "All values are now part of the conversation context.",
	}
	s.record(ctx, "vault_export_secrets", start, out, nil)
	return nil, out, nil
}
