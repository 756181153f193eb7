package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"processing-requests/internal/domain"
)

// ProjectClient queries the project service.
type ProjectClient struct {
	c *client
}

type projectResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	UsersIDs  []string `json:"users_ids"`
	AssetsIDs []string `json:"assets_ids"`
}

func NewProjectClient(opts Options) (*ProjectClient, error) {
	c, err := newClient("project", opts)
	if err != nil {
		return nil, err
	}
	return &ProjectClient{c: c}, nil
}

func (p *ProjectClient) Exists(ctx context.Context, projectID uuid.UUID, token string) (bool, error) {
	return p.c.get(ctx, "projects", projectID, token, nil)
}

// Get returns the project with its member and asset ids. A project the
// service does not know yields domain.ErrProjectNotFound.
func (p *ProjectClient) Get(ctx context.Context, projectID uuid.UUID, token string) (*domain.Project, error) {
	var body projectResponse
	found, err := p.c.get(ctx, "projects", projectID, token, &body)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrProjectNotFound
	}
	project := &domain.Project{ID: projectID, Name: body.Name}
	if project.UsersIDs, err = domain.ParseIDs(body.UsersIDs); err != nil {
		return nil, p.c.unavailable("decode users_ids", err)
	}
	if project.AssetsIDs, err = domain.ParseIDs(body.AssetsIDs); err != nil {
		return nil, p.c.unavailable("decode assets_ids", err)
	}
	return project, nil
}

// HasAccess reports whether userID is listed among the project's users.
// An unknown project grants no access.
func (p *ProjectClient) HasAccess(ctx context.Context, userID, projectID uuid.UUID, token string) (bool, error) {
	project, err := p.Get(ctx, projectID, token)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("project access: %w", err)
	}
	return project.HasUser(userID), nil
}

var _ domain.ProjectGateway = (*ProjectClient)(nil)
