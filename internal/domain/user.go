package domain

import "github.com/google/uuid"

// Caller is the authenticated identity issuing an operation.
type Caller struct {
	ID          uuid.UUID
	IsSuperuser bool
}

// Project is the subset of the externally-owned project entity this service
// reads through the project gateway.
type Project struct {
	ID        uuid.UUID
	Name      string
	UsersIDs  []uuid.UUID
	AssetsIDs []uuid.UUID
}

// HasUser reports whether userID is a member of the project.
func (p Project) HasUser(userID uuid.UUID) bool {
	return ContainsID(p.UsersIDs, userID)
}

// HasAsset reports whether assetID is listed among the project's assets.
func (p Project) HasAsset(assetID uuid.UUID) bool {
	return ContainsID(p.AssetsIDs, assetID)
}
