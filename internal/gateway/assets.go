package gateway

import (
	"context"

	"github.com/google/uuid"

	"processing-requests/internal/domain"
)

// AssetClient queries the asset service.
type AssetClient struct {
	c *client
}

func NewAssetClient(opts Options) (*AssetClient, error) {
	c, err := newClient("asset", opts)
	if err != nil {
		return nil, err
	}
	return &AssetClient{c: c}, nil
}

func (a *AssetClient) Exists(ctx context.Context, assetID uuid.UUID, token string) (bool, error) {
	return a.c.get(ctx, "assets", assetID, token, nil)
}

var _ domain.AssetGateway = (*AssetClient)(nil)
