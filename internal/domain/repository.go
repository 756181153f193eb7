package domain

import (
	"context"

	"github.com/google/uuid"
)

// ProcessingRequestRepository persists processing requests and their asset
// sets. It owns no cross-entity validation.
type ProcessingRequestRepository interface {
	Create(ctx context.Context, pr *ProcessingRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*ProcessingRequest, error)
	List(ctx context.Context) ([]ProcessingRequest, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]ProcessingRequest, error)
	ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]ProcessingRequest, error)
	ListByAssetID(ctx context.Context, assetID uuid.UUID) ([]ProcessingRequest, error)
	ListByInputAssetID(ctx context.Context, assetID uuid.UUID) ([]ProcessingRequest, error)
	ListByOutputAssetID(ctx context.Context, assetID uuid.UUID) ([]ProcessingRequest, error)
	ListByStatus(ctx context.Context, status ProcessingRequestStatus) ([]ProcessingRequest, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*ProcessingRequest, error)

	// AddInputAsset and AddOutputAsset append atomically: the write only
	// happens if the asset is in neither set at the time of the update.
	AddInputAsset(ctx context.Context, id, assetID uuid.UUID) (*ProcessingRequest, error)
	AddOutputAsset(ctx context.Context, id, assetID uuid.UUID) (*ProcessingRequest, error)
}

// UserGateway answers existence queries against the user service.
type UserGateway interface {
	Exists(ctx context.Context, userID uuid.UUID, token string) (bool, error)
}

// ProjectGateway answers existence and access queries against the project service.
type ProjectGateway interface {
	Exists(ctx context.Context, projectID uuid.UUID, token string) (bool, error)
	HasAccess(ctx context.Context, userID, projectID uuid.UUID, token string) (bool, error)
	Get(ctx context.Context, projectID uuid.UUID, token string) (*Project, error)
}

// AssetGateway answers existence queries against the asset service.
type AssetGateway interface {
	Exists(ctx context.Context, assetID uuid.UUID, token string) (bool, error)
}

// Publisher hands work messages to the broker. A nil error means the broker
// accepted the message, not that a worker consumed it.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg WorkMessage) error
	Close() error
}
