package services

import (
	"context"
	"time"

	"github.com/olushako/vaulty/internal/crypto"
	"github.com/olushako/vaulty/internal/store"
	"github.com/olushako/vaulty/internal/validation"
)

// ProjectService manages project lifecycle.
type ProjectService struct {
	store store.Store
}

// NewProjectService creates a new ProjectService.
func NewProjectService(s store.Store) *ProjectService {
	return &ProjectService{store: s}
}

// ProjectUpdate carries the mutable fields of a project. Nil fields are left
// unchanged.
type ProjectUpdate struct {
	Description          *string
	AutoApprovalPatterns *[]string
}

// Create creates a new project. Master only.
func (s *ProjectService) Create(ctx context.Context, auth *AuthContext, name, description string, patterns []string) (*store.Project, error) {
	if err := requireMaster(auth); err != nil {
		return nil, err
	}
	if err := validation.ProjectName(name); err != nil {
		return nil, ValidationErr(err)
	}
	if err := validation.ProjectDescription(description); err != nil {
		return nil, ValidationErr(err)
	}

	id, err := crypto.NewID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	project := &store.Project{
		ID:                   id,
		Name:                 name,
		Description:          description,
		AutoApprovalPatterns: patterns,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.CreateProject(project); err != nil {
		return nil, mapStoreError(err)
	}
	return project, nil
}

// Get returns the named project if the credential covers it.
func (s *ProjectService) Get(ctx context.Context, auth *AuthContext, name string) (*store.Project, error) {
	project, err := s.store.GetProjectByName(name)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}
	return project, nil
}

// List returns the projects visible to the credential: all of them for a
// master token, only the credential's own project otherwise.
func (s *ProjectService) List(ctx context.Context, auth *AuthContext) ([]*store.Project, error) {
	if auth == nil {
		return nil, Unauthorized("missing bearer token")
	}
	projects, err := s.store.ListProjects()
	if err != nil {
		return nil, mapStoreError(err)
	}
	if auth.IsMaster() {
		return projects, nil
	}
	scoped := projects[:0]
	for _, p := range projects {
		if p.ID == auth.ProjectID {
			scoped = append(scoped, p)
		}
	}
	return scoped, nil
}

// Resolve returns the project a project or device credential is bound to.
// Master tokens have no implicit project.
func (s *ProjectService) Resolve(ctx context.Context, auth *AuthContext) (*store.Project, error) {
	if auth == nil {
		return nil, Unauthorized("missing bearer token")
	}
	if auth.ProjectID == "" {
		return nil, Validation("credential is not bound to a project")
	}
	project, err := s.store.GetProject(auth.ProjectID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return project, nil
}

// Update applies partial changes to the named project, including its
// auto-approval patterns. Device tokens cannot update projects.
func (s *ProjectService) Update(ctx context.Context, auth *AuthContext, name string, update ProjectUpdate) (*store.Project, error) {
	project, err := s.store.GetProjectByName(name)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := requireProjectAccess(auth, project.ID); err != nil {
		return nil, err
	}
	if err := requireWrite(auth); err != nil {
		return nil, err
	}

	if update.Description != nil {
		if err := validation.ProjectDescription(*update.Description); err != nil {
			return nil, ValidationErr(err)
		}
		project.Description = *update.Description
	}
	if update.AutoApprovalPatterns != nil {
		project.AutoApprovalPatterns = *update.AutoApprovalPatterns
	}
	project.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateProject(project); err != nil {
		return nil, mapStoreError(err)
	}
	return project, nil
}

// Delete removes a project and everything scoped to it. Master only.
func (s *ProjectService) Delete(ctx context.Context, auth *AuthContext, name string) error {
	if err := requireMaster(auth); err != nil {
		return err
	}
	project, err := s.store.GetProjectByName(name)
	if err != nil {
		return mapStoreError(err)
	}
	return mapStoreError(s.store.DeleteProject(project.ID))
}
