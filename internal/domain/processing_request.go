package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// ProcessingRequestType names the kind of work a request asks for. The set is
// open: any identifier accepted by ParseProcessingRequestType is valid and is
// also used as the broker topic.
type ProcessingRequestType string

const (
	ProcessingRequestTypeSimod     ProcessingRequestType = "simulation_model_optimization_simod"
	ProcessingRequestTypeProsimos  ProcessingRequestType = "simulation_prosimos"
	ProcessingRequestTypeKronos    ProcessingRequestType = "waiting_time_analysis_kronos"
	ProcessingRequestTypeTranscode ProcessingRequestType = "transcode"
)

const maxProcessingRequestTypeLength = 128

// ProcessingRequestStatus enumerates request lifecycle states.
type ProcessingRequestStatus string

const (
	ProcessingRequestStatusPending    ProcessingRequestStatus = "pending"
	ProcessingRequestStatusInProgress ProcessingRequestStatus = "in_progress"
	ProcessingRequestStatusCompleted  ProcessingRequestStatus = "completed"
	ProcessingRequestStatusFailed     ProcessingRequestStatus = "failed"
)

var typePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// fold returns the case-folded form of s. Casers are stateful, so one is
// built per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ParseProcessingRequestType normalizes raw into a request type.
func ParseProcessingRequestType(raw string) (ProcessingRequestType, error) {
	v := fold(raw)
	if v == "" || len(v) > maxProcessingRequestTypeLength || !typePattern.MatchString(v) {
		return "", fmt.Errorf("%w: processing request type %q", ErrInvalidArgument, raw)
	}
	return ProcessingRequestType(v), nil
}

// ParseProcessingRequestStatus validates raw against the known statuses.
func ParseProcessingRequestStatus(raw string) (ProcessingRequestStatus, error) {
	status := ProcessingRequestStatus(fold(raw))
	if !status.Valid() {
		return "", fmt.Errorf("%w: processing request status %q", ErrInvalidArgument, raw)
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses.
func (s ProcessingRequestStatus) Valid() bool {
	switch s {
	case ProcessingRequestStatusPending,
		ProcessingRequestStatusInProgress,
		ProcessingRequestStatusCompleted,
		ProcessingRequestStatusFailed:
		return true
	}
	return false
}

// ProcessingRequest is a unit of declared work referencing a project, the
// requesting user and disjoint sets of input and output assets.
type ProcessingRequest struct {
	ID              uuid.UUID
	Type            ProcessingRequestType
	Status          ProcessingRequestStatus
	UserID          uuid.UUID
	ProjectID       uuid.UUID
	InputAssetsIDs  []uuid.UUID
	OutputAssetsIDs []uuid.UUID
	Message         *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasInputAsset reports whether assetID is among the input assets.
func (p ProcessingRequest) HasInputAsset(assetID uuid.UUID) bool {
	return ContainsID(p.InputAssetsIDs, assetID)
}

// HasOutputAsset reports whether assetID is among the output assets.
func (p ProcessingRequest) HasOutputAsset(assetID uuid.UUID) bool {
	return ContainsID(p.OutputAssetsIDs, assetID)
}

// HasAsset reports whether assetID appears in either set.
func (p ProcessingRequest) HasAsset(assetID uuid.UUID) bool {
	return p.HasInputAsset(assetID) || p.HasOutputAsset(assetID)
}

// UpdateParams carries a partial update. Nil fields are left unchanged.
type UpdateParams struct {
	Status  *ProcessingRequestStatus
	Message *string
}

// ContainsID tests membership by the canonical string form of the identifiers.
func ContainsID(ids []uuid.UUID, id uuid.UUID) bool {
	want := id.String()
	for _, candidate := range ids {
		if candidate.String() == want {
			return true
		}
	}
	return false
}

// UniqueIDs returns ids with duplicates removed, keeping first occurrence order.
func UniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		key := id.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}

// IDStrings renders ids in canonical string form.
func IDStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// ParseIDs parses canonical uuid strings, failing on the first malformed one.
func ParseIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", ErrInvalidArgument, s)
		}
		out = append(out, id)
	}
	return out, nil
}
