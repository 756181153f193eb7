package domain

import "errors"

var (
	ErrNotFound                    = errors.New("processing request not found")
	ErrUserNotFound                = errors.New("user not found")
	ErrProjectNotFound             = errors.New("project not found")
	ErrAssetNotFound               = errors.New("asset not found")
	ErrAssetDoesNotBelongToProject = errors.New("asset does not belong to project")
	ErrAssetAlreadyExists          = errors.New("asset already exists")
	ErrAssetAlreadyInInputAssets   = errors.New("asset already in input assets")
	ErrAssetAlreadyInOutputAssets  = errors.New("asset already in output assets")
	ErrNotEnoughPermissions        = errors.New("not enough permissions")
	ErrQueueNotAvailable           = errors.New("queue not available")
	ErrDependencyUnavailable       = errors.New("dependency unavailable")
	ErrInvalidArgument             = errors.New("invalid argument")
	ErrNotPending                  = errors.New("processing request is not pending")
	ErrConflict                    = errors.New("concurrent modification")
)

// Stable machine-readable codes reported at the system boundary.
const (
	CodeNotFound                    = "processing_request_not_found"
	CodeUserNotFound                = "user_not_found"
	CodeProjectNotFound             = "project_not_found"
	CodeAssetNotFound               = "asset_not_found"
	CodeAssetDoesNotBelongToProject = "asset_does_not_belong_to_project"
	CodeAssetAlreadyExists          = "asset_already_exists"
	CodeAssetAlreadyInInputAssets   = "asset_already_in_input_assets"
	CodeAssetAlreadyInOutputAssets  = "asset_already_in_output_assets"
	CodeNotEnoughPermissions        = "not_enough_permissions"
	CodeQueueNotAvailable           = "queue_not_available"
	CodeDependencyUnavailable       = "dependency_unavailable"
	CodeInvalidArgument             = "invalid_argument"
	CodeNotPending                  = "not_pending"
	CodeConflict                    = "conflict"
	CodeInternal                    = "internal"
)

// errorCodes is ordered: the first matching sentinel wins, so the publish
// failure is reported as queue_not_available even though it wraps the broker
// cause as well.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrQueueNotAvailable, CodeQueueNotAvailable},
	{ErrNotFound, CodeNotFound},
	{ErrUserNotFound, CodeUserNotFound},
	{ErrProjectNotFound, CodeProjectNotFound},
	{ErrAssetNotFound, CodeAssetNotFound},
	{ErrAssetDoesNotBelongToProject, CodeAssetDoesNotBelongToProject},
	{ErrAssetAlreadyExists, CodeAssetAlreadyExists},
	{ErrAssetAlreadyInInputAssets, CodeAssetAlreadyInInputAssets},
	{ErrAssetAlreadyInOutputAssets, CodeAssetAlreadyInOutputAssets},
	{ErrNotEnoughPermissions, CodeNotEnoughPermissions},
	{ErrDependencyUnavailable, CodeDependencyUnavailable},
	{ErrInvalidArgument, CodeInvalidArgument},
	{ErrNotPending, CodeNotPending},
	{ErrConflict, CodeConflict},
}

// ErrorCode classifies err into one of the stable codes above. Unknown errors
// map to CodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
