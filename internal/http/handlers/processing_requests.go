package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"processing-requests/internal/domain"
	"processing-requests/internal/middleware"
	"processing-requests/internal/service"
)

type processingRequestResponse struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	UserID          string    `json:"user_id"`
	ProjectID       string    `json:"project_id"`
	InputAssetsIDs  []string  `json:"input_assets_ids"`
	OutputAssetsIDs []string  `json:"output_assets_ids"`
	Message         *string   `json:"message"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toResponse(pr *domain.ProcessingRequest) processingRequestResponse {
	return processingRequestResponse{
		ID:              pr.ID.String(),
		Type:            string(pr.Type),
		Status:          string(pr.Status),
		UserID:          pr.UserID.String(),
		ProjectID:       pr.ProjectID.String(),
		InputAssetsIDs:  domain.IDStrings(pr.InputAssetsIDs),
		OutputAssetsIDs: domain.IDStrings(pr.OutputAssetsIDs),
		Message:         pr.Message,
		CreatedAt:       pr.CreatedAt,
		UpdatedAt:       pr.UpdatedAt,
	}
}

func toResponses(items []domain.ProcessingRequest) []processingRequestResponse {
	out := make([]processingRequestResponse, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	return out
}

type createRequest struct {
	Type            string   `json:"type"`
	UserID          string   `json:"user_id"`
	ProjectID       string   `json:"project_id"`
	InputAssetsIDs  []string `json:"input_assets_ids"`
	OutputAssetsIDs []string `json:"output_assets_ids"`
}

type updateRequest struct {
	Status  *string `json:"status"`
	Message *string `json:"message"`
}

type assetRequest struct {
	AssetID string `json:"asset_id"`
}

func (a *App) CreateProcessingRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, domain.CodeInvalidArgument, "invalid payload")
		return
	}
	params, err := req.params()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	caller, _ := middleware.CallerFromContext(r.Context())
	pr, err := a.Service.Create(r.Context(), params, middleware.TokenFromContext(r.Context()), caller)
	if err != nil {
		if errors.Is(err, domain.ErrQueueNotAvailable) && pr != nil {
			a.error(w, http.StatusServiceUnavailable, domain.CodeQueueNotAvailable,
				fmt.Sprintf("processing request %s stored but not dispatched", pr.ID))
			return
		}
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toResponse(pr))
}

func (req createRequest) params() (service.CreateParams, error) {
	typ, err := domain.ParseProcessingRequestType(req.Type)
	if err != nil {
		return service.CreateParams{}, err
	}
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		return service.CreateParams{}, err
	}
	projectID, err := parseID("project_id", req.ProjectID)
	if err != nil {
		return service.CreateParams{}, err
	}
	inputs, err := domain.ParseIDs(req.InputAssetsIDs)
	if err != nil {
		return service.CreateParams{}, err
	}
	outputs, err := domain.ParseIDs(req.OutputAssetsIDs)
	if err != nil {
		return service.CreateParams{}, err
	}
	return service.CreateParams{
		Type:            typ,
		UserID:          userID,
		ProjectID:       projectID,
		InputAssetsIDs:  inputs,
		OutputAssetsIDs: outputs,
	}, nil
}

func (a *App) GetProcessingRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	pr, err := a.Service.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toResponse(pr))
}

// listFilters are mutually exclusive query parameters of the list endpoint.
var listFilters = []string{"user_id", "project_id", "asset_id", "input_asset_id", "output_asset_id", "status"}

func (a *App) ListProcessingRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, value := "", ""
	for _, name := range listFilters {
		if v := query.Get(name); v != "" {
			if filter != "" {
				a.error(w, http.StatusBadRequest, domain.CodeInvalidArgument, "only one filter may be given")
				return
			}
			filter, value = name, v
		}
	}

	ctx := r.Context()
	var (
		items []domain.ProcessingRequest
		err   error
	)
	switch filter {
	case "":
		items, err = a.Service.List(ctx)
	case "status":
		var status domain.ProcessingRequestStatus
		status, err = domain.ParseProcessingRequestStatus(value)
		if err == nil && status != domain.ProcessingRequestStatusPending {
			err = fmt.Errorf("%w: only status=pending can be listed", domain.ErrInvalidArgument)
		}
		if err == nil {
			items, err = a.Service.ListPending(ctx)
		}
	default:
		var id uuid.UUID
		if id, err = parseID(filter, value); err != nil {
			break
		}
		switch filter {
		case "user_id":
			items, err = a.Service.ListByUserID(ctx, id)
		case "project_id":
			caller, _ := middleware.CallerFromContext(ctx)
			items, err = a.Service.ListByProjectID(ctx, id, caller, middleware.TokenFromContext(ctx))
		case "asset_id":
			items, err = a.Service.ListByAssetID(ctx, id)
		case "input_asset_id":
			items, err = a.Service.ListByInputAssetID(ctx, id)
		case "output_asset_id":
			items, err = a.Service.ListByOutputAssetID(ctx, id)
		}
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toResponses(items)})
}

func (a *App) UpdateProcessingRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req updateRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, domain.CodeInvalidArgument, "invalid payload")
		return
	}
	var params domain.UpdateParams
	if req.Status != nil {
		status, err := domain.ParseProcessingRequestStatus(*req.Status)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		params.Status = &status
	}
	params.Message = req.Message

	pr, err := a.Service.Update(r.Context(), id, params)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toResponse(pr))
}

func (a *App) AddInputAsset(w http.ResponseWriter, r *http.Request) {
	a.addAsset(w, r, a.Service.AddInputAsset)
}

func (a *App) AddOutputAsset(w http.ResponseWriter, r *http.Request) {
	a.addAsset(w, r, a.Service.AddOutputAsset)
}

type addAssetFunc func(ctx context.Context, id, assetID uuid.UUID, token string) (*domain.ProcessingRequest, error)

func (a *App) addAsset(w http.ResponseWriter, r *http.Request, add addAssetFunc) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req assetRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, domain.CodeInvalidArgument, "invalid payload")
		return
	}
	assetID, err := parseID("asset_id", req.AssetID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	pr, err := add(r.Context(), id, assetID, middleware.TokenFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toResponse(pr))
}

func (a *App) DispatchProcessingRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	caller, _ := middleware.CallerFromContext(r.Context())
	pr, err := a.Service.Redispatch(r.Context(), id, middleware.TokenFromContext(r.Context()), caller)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, toResponse(pr))
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", domain.ErrInvalidArgument, field)
	}
	return id, nil
}
