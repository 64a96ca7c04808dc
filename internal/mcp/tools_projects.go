package mcp

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type listProjectsInput struct{}

type projectInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SecretCount int    `json:"secret_count"`
}

type listProjectsOutput struct {
	Projects []projectInfo `json:"projects"`
}

func (s *Server) registerProjectTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "vault_list_projects",
		Description: "List the projects visible to this credential. Returns names, descriptions, and secret counts.",
	}, s.handleListProjects)
}

func (s *Server) handleListProjects(ctx context.Context, _ *sdkmcp.CallToolRequest, _ listProjectsInput) (*sdkmcp.CallToolResult, listProjectsOutput, error) {
	start := time.Now()

	projects, err := s.deps.Projects.List(ctx, s.auth)
	if err != nil {
		s.record(ctx, "vault_list_projects", start, nil, err)
		return nil, listProjectsOutput{}, fmt.Errorf("list projects: %w", err)
	}

	out := listProjectsOutput{Projects: make([]projectInfo, 0, len(projects))}
	for _, p := range projects {
		metas, _ := s.deps.Secrets.List(ctx, s.auth, p.Name)
		out.Projects = append(out.Projects, projectInfo{
			Name:        p.Name,
			Description: p.Description,
			SecretCount: len(metas),
		})
	}

	s.record(ctx, "vault_list_projects", start, out, nil)
	return nil, out, nil
}
