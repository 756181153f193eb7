package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"processing-requests/internal/domain"
	"processing-requests/internal/infra"
	"processing-requests/internal/lock"
)

// Options wires the orchestrator's collaborators. Repository, Users,
// Projects, Assets and Publisher are required.
type Options struct {
	Repository domain.ProcessingRequestRepository
	Users      domain.UserGateway
	Projects   domain.ProjectGateway
	Assets     domain.AssetGateway
	Publisher  domain.Publisher
	Locker     lock.Locker
	Logger     *infra.Logger
	Now        func() time.Time
}

// ProcessingRequestService validates processing requests against the
// user, project and asset services, persists them and hands them to the
// work queue.
type ProcessingRequestService struct {
	repo      domain.ProcessingRequestRepository
	users     domain.UserGateway
	projects  domain.ProjectGateway
	assets    domain.AssetGateway
	publisher domain.Publisher
	locker    lock.Locker
	logger    *infra.Logger
	now       func() time.Time
}

// CreateParams carries the fields supplied when creating a processing request.
type CreateParams struct {
	Type            domain.ProcessingRequestType
	UserID          uuid.UUID
	ProjectID       uuid.UUID
	InputAssetsIDs  []uuid.UUID
	OutputAssetsIDs []uuid.UUID
}

func NewProcessingRequestService(opts Options) (*ProcessingRequestService, error) {
	switch {
	case opts.Repository == nil:
		return nil, errors.New("processing request service: repository is required")
	case opts.Users == nil, opts.Projects == nil, opts.Assets == nil:
		return nil, errors.New("processing request service: gateways are required")
	case opts.Publisher == nil:
		return nil, errors.New("processing request service: publisher is required")
	}
	locker := opts.Locker
	if locker == nil {
		locker = lock.NewLocal()
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ProcessingRequestService{
		repo:      opts.Repository,
		users:     opts.Users,
		projects:  opts.Projects,
		assets:    opts.Assets,
		publisher: opts.Publisher,
		locker:    locker,
		logger:    logger,
		now:       now,
	}, nil
}

// Create validates params, stores a pending processing request and publishes
// its work message. When the publish fails the stored request is kept and
// the returned error wraps domain.ErrQueueNotAvailable; the request is
// returned alongside the error so callers can report its id.
func (s *ProcessingRequestService) Create(ctx context.Context, params CreateParams, token string, caller domain.Caller) (*domain.ProcessingRequest, error) {
	typ, err := domain.ParseProcessingRequestType(string(params.Type))
	if err != nil {
		return nil, err
	}
	inputs := domain.UniqueIDs(params.InputAssetsIDs)
	outputs := domain.UniqueIDs(params.OutputAssetsIDs)

	if ok, err := s.users.Exists(ctx, params.UserID, token); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrUserNotFound
	}
	if ok, err := s.projects.Exists(ctx, params.ProjectID, token); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrProjectNotFound
	}
	if err := s.requireAssets(ctx, inputs, token); err != nil {
		return nil, err
	}
	if err := s.requireAssets(ctx, outputs, token); err != nil {
		return nil, err
	}
	if ok, err := s.HasProjectAccess(ctx, caller, params.ProjectID, token); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrNotEnoughPermissions
	}
	if len(inputs)+len(outputs) > 0 {
		project, err := s.projects.Get(ctx, params.ProjectID, token)
		if err != nil {
			return nil, err
		}
		for _, ids := range [][]uuid.UUID{inputs, outputs} {
			for _, id := range ids {
				if !project.HasAsset(id) {
					return nil, fmt.Errorf("%w: %s", domain.ErrAssetDoesNotBelongToProject, id)
				}
			}
		}
	}
	for _, id := range outputs {
		if domain.ContainsID(inputs, id) {
			return nil, domain.ErrAssetAlreadyInOutputAssets
		}
	}

	pr := &domain.ProcessingRequest{
		ID:              uuid.New(),
		Type:            typ,
		Status:          domain.ProcessingRequestStatusPending,
		UserID:          params.UserID,
		ProjectID:       params.ProjectID,
		InputAssetsIDs:  inputs,
		OutputAssetsIDs: outputs,
	}
	if err := s.repo.Create(ctx, pr); err != nil {
		return nil, fmt.Errorf("store processing request: %w", err)
	}
	s.logger.Info().
		Str("processing_request_id", pr.ID.String()).
		Str("type", string(pr.Type)).
		Str("project_id", pr.ProjectID.String()).
		Msg("processing request created")

	if err := s.publish(ctx, pr, token); err != nil {
		return pr, err
	}
	return pr, nil
}

func (s *ProcessingRequestService) requireAssets(ctx context.Context, ids []uuid.UUID, token string) error {
	for _, id := range ids {
		ok, err := s.assets.Exists(ctx, id, token)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAssetNotFound, id)
		}
	}
	return nil
}

func (s *ProcessingRequestService) publish(ctx context.Context, pr *domain.ProcessingRequest, token string) error {
	msg := domain.NewWorkMessage(pr, token)
	if err := s.publisher.Publish(ctx, string(pr.Type), msg); err != nil {
		s.logger.Error().
			Err(err).
			Str("processing_request_id", msg.ProcessingRequestID).
			Str("type", string(pr.Type)).
			Str("user_id", msg.UserID).
			Str("project_id", msg.ProjectID).
			Strs("input_assets_ids", msg.InputAssetsIDs).
			Strs("output_assets_ids", msg.OutputAssetsIDs).
			Msg("publish work message failed; request left pending")
		return fmt.Errorf("%w: %w", domain.ErrQueueNotAvailable, err)
	}
	return nil
}

func (s *ProcessingRequestService) Get(ctx context.Context, id uuid.UUID) (*domain.ProcessingRequest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProcessingRequestService) List(ctx context.Context) ([]domain.ProcessingRequest, error) {
	return s.repo.List(ctx)
}

func (s *ProcessingRequestService) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return s.repo.ListByUserID(ctx, userID)
}

func (s *ProcessingRequestService) ListByAssetID(ctx context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return s.repo.ListByAssetID(ctx, assetID)
}

func (s *ProcessingRequestService) ListByInputAssetID(ctx context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return s.repo.ListByInputAssetID(ctx, assetID)
}

func (s *ProcessingRequestService) ListByOutputAssetID(ctx context.Context, assetID uuid.UUID) ([]domain.ProcessingRequest, error) {
	return s.repo.ListByOutputAssetID(ctx, assetID)
}

// ListByProjectID lists a project's requests if caller may access the project.
func (s *ProcessingRequestService) ListByProjectID(ctx context.Context, projectID uuid.UUID, caller domain.Caller, token string) ([]domain.ProcessingRequest, error) {
	ok, err := s.HasProjectAccess(ctx, caller, projectID, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotEnoughPermissions
	}
	return s.repo.ListByProjectID(ctx, projectID)
}

// Update applies the non-nil fields of params.
func (s *ProcessingRequestService) Update(ctx context.Context, id uuid.UUID, params domain.UpdateParams) (*domain.ProcessingRequest, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, *params.Status)
	}
	pr, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("processing_request_id", pr.ID.String()).
		Str("status", string(pr.Status)).
		Msg("processing request updated")
	return pr, nil
}

func (s *ProcessingRequestService) AddInputAsset(ctx context.Context, id, assetID uuid.UUID, token string) (*domain.ProcessingRequest, error) {
	return s.addAsset(ctx, id, assetID, token, true)
}

func (s *ProcessingRequestService) AddOutputAsset(ctx context.Context, id, assetID uuid.UUID, token string) (*domain.ProcessingRequest, error) {
	return s.addAsset(ctx, id, assetID, token, false)
}

func (s *ProcessingRequestService) addAsset(ctx context.Context, id, assetID uuid.UUID, token string, input bool) (*domain.ProcessingRequest, error) {
	unlock, err := s.locker.Lock(ctx, id.String())
	if err != nil {
		return nil, fmt.Errorf("lock processing request: %w", err)
	}
	defer unlock()

	if ok, err := s.assets.Exists(ctx, assetID, token); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrAssetNotFound
	}

	pr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	belongs, err := s.assetInProject(ctx, pr.ProjectID, assetID, token)
	if err != nil {
		return nil, err
	}
	if !belongs {
		return nil, domain.ErrAssetDoesNotBelongToProject
	}

	if input {
		switch {
		case pr.HasInputAsset(assetID):
			return nil, domain.ErrAssetAlreadyExists
		case pr.HasOutputAsset(assetID):
			return nil, domain.ErrAssetAlreadyInOutputAssets
		}
		return s.repo.AddInputAsset(ctx, id, assetID)
	}
	switch {
	case pr.HasOutputAsset(assetID):
		return nil, domain.ErrAssetAlreadyExists
	case pr.HasInputAsset(assetID):
		return nil, domain.ErrAssetAlreadyInInputAssets
	}
	return s.repo.AddOutputAsset(ctx, id, assetID)
}

// HasProjectAccess grants superusers every project; anyone else is checked
// against the project service.
func (s *ProcessingRequestService) HasProjectAccess(ctx context.Context, caller domain.Caller, projectID uuid.UUID, token string) (bool, error) {
	if caller.IsSuperuser {
		return true, nil
	}
	return s.projects.HasAccess(ctx, caller.ID, projectID, token)
}

// AssetBelongsToProject reports whether assetID is listed among the assets
// of the project owning the processing request.
func (s *ProcessingRequestService) AssetBelongsToProject(ctx context.Context, requestID, assetID uuid.UUID, token string) (bool, error) {
	pr, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return false, err
	}
	return s.assetInProject(ctx, pr.ProjectID, assetID, token)
}

func (s *ProcessingRequestService) assetInProject(ctx context.Context, projectID, assetID uuid.UUID, token string) (bool, error) {
	project, err := s.projects.Get(ctx, projectID, token)
	if err != nil {
		return false, err
	}
	return project.HasAsset(assetID), nil
}

// ListPending returns every request still waiting for dispatch.
func (s *ProcessingRequestService) ListPending(ctx context.Context) ([]domain.ProcessingRequest, error) {
	return s.repo.ListByStatus(ctx, domain.ProcessingRequestStatusPending)
}

// ListStalePending returns pending requests created more than olderThan ago.
func (s *ProcessingRequestService) ListStalePending(ctx context.Context, olderThan time.Duration) ([]domain.ProcessingRequest, error) {
	pending, err := s.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-olderThan)
	stale := make([]domain.ProcessingRequest, 0, len(pending))
	for _, pr := range pending {
		if pr.CreatedAt.Before(cutoff) {
			stale = append(stale, pr)
		}
	}
	return stale, nil
}

// Redispatch publishes the work message of a pending request again, with
// token as the forwarded credential. caller must have access to the
// request's project. Consumers may see the same processing_request_id more
// than once.
func (s *ProcessingRequestService) Redispatch(ctx context.Context, id uuid.UUID, token string, caller domain.Caller) (*domain.ProcessingRequest, error) {
	pr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok, err := s.HasProjectAccess(ctx, caller, pr.ProjectID, token); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrNotEnoughPermissions
	}
	if pr.Status != domain.ProcessingRequestStatusPending {
		return nil, domain.ErrNotPending
	}
	if err := s.publish(ctx, pr, token); err != nil {
		return pr, err
	}
	s.logger.Info().
		Str("processing_request_id", pr.ID.String()).
		Str("type", string(pr.Type)).
		Msg("processing request redispatched")
	return pr, nil
}
