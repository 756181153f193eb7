package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"processing-requests/internal/domain"
)

// MemoryProcessingRequestRepository is an in-process implementation of
// domain.ProcessingRequestRepository for local runs and tests. All access is
// serialized by a single mutex, so the add-asset guards are atomic.
type MemoryProcessingRequestRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.ProcessingRequest
	now   func() time.Time
}

// NewMemoryProcessingRequestRepository returns an empty repository.
func NewMemoryProcessingRequestRepository() *MemoryProcessingRequestRepository {
	return &MemoryProcessingRequestRepository{
		items: make(map[uuid.UUID]domain.ProcessingRequest),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryProcessingRequestRepository) Create(_ context.Context, pr *domain.ProcessingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[pr.ID]; exists {
		return domain.ErrConflict
	}
	now := m.now()
	pr.CreatedAt, pr.UpdatedAt = now, now
	m.items[pr.ID] = clone(*pr)
	return nil
}

func (m *MemoryProcessingRequestRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.ProcessingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pr, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clone(pr)
	return &out, nil
}

func (m *MemoryProcessingRequestRepository) List(_ context.Context) ([]domain.ProcessingRequest, error) {
	return m.filter(func(domain.ProcessingRequest) bool { return true }), nil
}

func (m *MemoryProcessingRequestRepository) ListByUserID(_ context.Context, userID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return m.filter(func(pr domain.ProcessingRequest) bool { return pr.UserID == userID }), nil
}

func (m *MemoryProcessingRequestRepository) ListByProjectID(_ context.Context, projectID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return m.filter(func(pr domain.ProcessingRequest) bool { return pr.ProjectID == projectID }), nil
}

func (m *MemoryProcessingRequestRepository) ListByAssetID(_ context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return m.filter(func(pr domain.ProcessingRequest) bool { return pr.HasAsset(assetID) }), nil
}

func (m *MemoryProcessingRequestRepository) ListByInputAssetID(_ context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return m.filter(func(pr domain.ProcessingRequest) bool { return pr.HasInputAsset(assetID) }), nil
}

func (m *MemoryProcessingRequestRepository) ListByOutputAssetID(_ context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return m.filter(func(pr domain.ProcessingRequest) bool { return pr.HasOutputAsset(assetID) }), nil
}

func (m *MemoryProcessingRequestRepository) ListByStatus(_ context.Context, status domain.ProcessingRequestStatus) ([]domain.ProcessingRequest, error) {
	return m.filter(func(pr domain.ProcessingRequest) bool { return pr.Status == status }), nil
}

func (m *MemoryProcessingRequestRepository) Update(_ context.Context, id uuid.UUID, params domain.UpdateParams) (*domain.ProcessingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if params.Status != nil {
		pr.Status = *params.Status
	}
	if params.Message != nil {
		msg := *params.Message
		pr.Message = &msg
	}
	pr.UpdatedAt = m.now()
	m.items[id] = pr
	out := clone(pr)
	return &out, nil
}

func (m *MemoryProcessingRequestRepository) AddInputAsset(_ context.Context, id, assetID uuid.UUID) (*domain.ProcessingRequest, error) {
	return m.addAsset(id, assetID, true)
}

func (m *MemoryProcessingRequestRepository) AddOutputAsset(_ context.Context, id, assetID uuid.UUID) (*domain.ProcessingRequest, error) {
	return m.addAsset(id, assetID, false)
}

func (m *MemoryProcessingRequestRepository) addAsset(id, assetID uuid.UUID, input bool) (*domain.ProcessingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if pr.HasAsset(assetID) {
		return nil, classifyAddConflict(&pr, assetID, input)
	}
	pr = clone(pr)
	if input {
		pr.InputAssetsIDs = append(pr.InputAssetsIDs, assetID)
	} else {
		pr.OutputAssetsIDs = append(pr.OutputAssetsIDs, assetID)
	}
	pr.UpdatedAt = m.now()
	m.items[id] = pr
	out := clone(pr)
	return &out, nil
}

func (m *MemoryProcessingRequestRepository) filter(keep func(domain.ProcessingRequest) bool) []domain.ProcessingRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := []domain.ProcessingRequest{}
	for _, pr := range m.items {
		if keep(pr) {
			items = append(items, clone(pr))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

func clone(pr domain.ProcessingRequest) domain.ProcessingRequest {
	pr.InputAssetsIDs = append([]uuid.UUID{}, pr.InputAssetsIDs...)
	pr.OutputAssetsIDs = append([]uuid.UUID{}, pr.OutputAssetsIDs...)
	if pr.Message != nil {
		msg := *pr.Message
		pr.Message = &msg
	}
	return pr
}

var (
	_ domain.ProcessingRequestRepository = (*MemoryProcessingRequestRepository)(nil)
	_ domain.ProcessingRequestRepository = (*ProcessingRequestRepositoryPG)(nil)
)
