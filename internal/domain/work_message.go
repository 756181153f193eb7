package domain

// WorkMessage is the payload handed to the execution pipeline. All
// identifiers are in canonical string form.
type WorkMessage struct {
	ProcessingRequestID string   `json:"processing_request_id"`
	UserID              string   `json:"user_id"`
	ProjectID           string   `json:"project_id"`
	InputAssetsIDs      []string `json:"input_assets_ids"`
	OutputAssetsIDs     []string `json:"output_assets_ids"`
	Credential          string   `json:"credential"`
}

// NewWorkMessage builds the message announcing pr, forwarding credential verbatim.
func NewWorkMessage(pr *ProcessingRequest, credential string) WorkMessage {
	return WorkMessage{
		ProcessingRequestID: pr.ID.String(),
		UserID:              pr.UserID.String(),
		ProjectID:           pr.ProjectID.String(),
		InputAssetsIDs:      IDStrings(pr.InputAssetsIDs),
		OutputAssetsIDs:     IDStrings(pr.OutputAssetsIDs),
		Credential:          credential,
	}
}
