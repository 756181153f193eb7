package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"processing-requests/internal/domain"
	"processing-requests/internal/infra"
	"processing-requests/internal/service"
)

type App struct {
	Service *service.ProcessingRequestService
	Logger  *infra.Logger
}

func NewApp(svc *service.ProcessingRequestService, logger *infra.Logger) *App {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &App{Service: svc, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}

// fail reports err with its stable code and matching HTTP status.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := statusForCode(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger(r).Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	a.error(w, status, code, msg)
}

// logger prefers the request-scoped logger set up by the access log middleware.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return a.Logger
}

func statusForCode(code string) int {
	switch code {
	case domain.CodeNotFound, domain.CodeUserNotFound, domain.CodeProjectNotFound, domain.CodeAssetNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidArgument, domain.CodeAssetDoesNotBelongToProject:
		return http.StatusBadRequest
	case domain.CodeAssetAlreadyExists, domain.CodeAssetAlreadyInInputAssets, domain.CodeAssetAlreadyInOutputAssets,
		domain.CodeNotPending, domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeNotEnoughPermissions:
		return http.StatusForbidden
	case domain.CodeQueueNotAvailable:
		return http.StatusServiceUnavailable
	case domain.CodeDependencyUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (a *App) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidArgument, err)
	}
	return nil
}
