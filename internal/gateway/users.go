package gateway

import (
	"context"

	"github.com/google/uuid"

	"processing-requests/internal/domain"
)

// UserClient queries the user service.
type UserClient struct {
	c *client
}

func NewUserClient(opts Options) (*UserClient, error) {
	c, err := newClient("user", opts)
	if err != nil {
		return nil, err
	}
	return &UserClient{c: c}, nil
}

// Exists reports whether the user service knows userID.
func (u *UserClient) Exists(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	return u.c.get(ctx, "users", userID, token, nil)
}

var _ domain.UserGateway = (*UserClient)(nil)
