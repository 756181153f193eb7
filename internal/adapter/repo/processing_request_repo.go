package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"processing-requests/internal/domain"
	"processing-requests/internal/infra"
	"processing-requests/internal/sqlinline"
)

// ProcessingRequestRepositoryPG implements domain.ProcessingRequestRepository
// on PostgreSQL. Asset sets are stored as uuid[] columns.
type ProcessingRequestRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewProcessingRequestRepository creates a repository over the given executor.
func NewProcessingRequestRepository(sql infra.SQLExecutor) *ProcessingRequestRepositoryPG {
	return &ProcessingRequestRepositoryPG{sql: sql}
}

// Create inserts pr and fills in its timestamps.
func (r *ProcessingRequestRepositoryPG) Create(ctx context.Context, pr *domain.ProcessingRequest) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertProcessingRequest,
		pr.ID,
		string(pr.Type),
		string(pr.Status),
		pr.UserID,
		pr.ProjectID,
		nonNilIDs(pr.InputAssetsIDs),
		nonNilIDs(pr.OutputAssetsIDs),
		pr.Message,
	)
	if err := row.Scan(&pr.CreatedAt, &pr.UpdatedAt); err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("%w: processing request %s already exists", domain.ErrConflict, pr.ID)
		}
		return fmt.Errorf("insert processing request: %w", err)
	}
	return nil
}

// GetByID fetches a processing request by its identifier.
func (r *ProcessingRequestRepositoryPG) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingRequest, error) {
	pr, err := scanProcessingRequest(r.sql.QueryRow(ctx, sqlinline.QSelectProcessingRequestByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return pr, nil
}

func (r *ProcessingRequestRepositoryPG) List(ctx context.Context) ([]domain.ProcessingRequest, error) {
	return r.list(ctx, sqlinline.QListProcessingRequests)
}

func (r *ProcessingRequestRepositoryPG) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return r.list(ctx, sqlinline.QListProcessingRequestsByUser, userID)
}

func (r *ProcessingRequestRepositoryPG) ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return r.list(ctx, sqlinline.QListProcessingRequestsByProject, projectID)
}

func (r *ProcessingRequestRepositoryPG) ListByAssetID(ctx context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return r.list(ctx, sqlinline.QListProcessingRequestsByAsset, assetID)
}

func (r *ProcessingRequestRepositoryPG) ListByInputAssetID(ctx context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return r.list(ctx, sqlinline.QListProcessingRequestsByInputAsset, assetID)
}

func (r *ProcessingRequestRepositoryPG) ListByOutputAssetID(ctx context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return r.list(ctx, sqlinline.QListProcessingRequestsByOutputAsset, assetID)
}

func (r *ProcessingRequestRepositoryPG) ListByStatus(ctx context.Context, status domain.ProcessingRequestStatus) ([]domain.ProcessingRequest, error) {
	return r.list(ctx, sqlinline.QListProcessingRequestsByStatus, string(status))
}

// Update applies a partial update; nil fields keep their stored value.
func (r *ProcessingRequestRepositoryPG) Update(ctx context.Context, id uuid.UUID, params domain.UpdateParams) (*domain.ProcessingRequest, error) {
	var status *string
	if params.Status != nil {
		s := string(*params.Status)
		status = &s
	}
	pr, err := scanProcessingRequest(r.sql.QueryRow(ctx, sqlinline.QUpdateProcessingRequest, id, status, params.Message))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return pr, nil
}

// AddInputAsset appends assetID to the input set if it is in neither set.
func (r *ProcessingRequestRepositoryPG) AddInputAsset(ctx context.Context, id, assetID uuid.UUID) (*domain.ProcessingRequest, error) {
	return r.addAsset(ctx, sqlinline.QAddInputAsset, id, assetID, true)
}

// AddOutputAsset appends assetID to the output set if it is in neither set.
func (r *ProcessingRequestRepositoryPG) AddOutputAsset(ctx context.Context, id, assetID uuid.UUID) (*domain.ProcessingRequest, error) {
	return r.addAsset(ctx, sqlinline.QAddOutputAsset, id, assetID, false)
}

func (r *ProcessingRequestRepositoryPG) addAsset(ctx context.Context, query string, id, assetID uuid.UUID, input bool) (*domain.ProcessingRequest, error) {
	pr, err := scanProcessingRequest(r.sql.QueryRow(ctx, query, id, assetID))
	if err == nil {
		return pr, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	// The guarded update matched nothing: either the row is gone or the asset
	// is already in one of the sets. Re-read to report which.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, classifyAddConflict(current, assetID, input)
}

func (r *ProcessingRequestRepositoryPG) list(ctx context.Context, query string, args ...any) ([]domain.ProcessingRequest, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.ProcessingRequest{}
	for rows.Next() {
		pr, err := scanProcessingRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanProcessingRequest(row pgx.Row) (*domain.ProcessingRequest, error) {
	var (
		id, typ, status, userID, projectID string
		inputIDs, outputIDs                []string
		message                            *string
		createdAt, updatedAt               time.Time
	)
	if err := row.Scan(&id, &typ, &status, &userID, &projectID, &inputIDs, &outputIDs, &message, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	pr := &domain.ProcessingRequest{
		Type:      domain.ProcessingRequestType(typ),
		Status:    domain.ProcessingRequestStatus(status),
		Message:   message,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	var err error
	if pr.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("scan processing request id: %w", err)
	}
	if pr.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("scan processing request user_id: %w", err)
	}
	if pr.ProjectID, err = uuid.Parse(projectID); err != nil {
		return nil, fmt.Errorf("scan processing request project_id: %w", err)
	}
	if pr.InputAssetsIDs, err = domain.ParseIDs(inputIDs); err != nil {
		return nil, fmt.Errorf("scan processing request input_assets_ids: %w", err)
	}
	if pr.OutputAssetsIDs, err = domain.ParseIDs(outputIDs); err != nil {
		return nil, fmt.Errorf("scan processing request output_assets_ids: %w", err)
	}
	return pr, nil
}

// classifyAddConflict explains why adding assetID to pr was refused.
func classifyAddConflict(pr *domain.ProcessingRequest, assetID uuid.UUID, input bool) error {
	switch {
	case input && pr.HasInputAsset(assetID), !input && pr.HasOutputAsset(assetID):
		return domain.ErrAssetAlreadyExists
	case input && pr.HasOutputAsset(assetID):
		return domain.ErrAssetAlreadyInOutputAssets
	case !input && pr.HasInputAsset(assetID):
		return domain.ErrAssetAlreadyInInputAssets
	}
	return domain.ErrConflict
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
