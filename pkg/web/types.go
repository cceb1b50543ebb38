package web

// CreateCaseRequest represents the request body for opening a new case.
type CreateCaseRequest struct {
	Owner       string `json:"owner"       validate:"required"`
	Title       string `json:"title"       validate:"required,min=3"`
	Description string `json:"description"`
}

// TransitionRequest represents the optional body of every transition endpoint.
type TransitionRequest struct {
	Actor          string `json:"actor"`
	ExpectedStatus string `json:"expected_status"`
	Reason         string `json:"reason"          validate:"max=2000"`
}

// ReviseDraftRequest represents a human edit of a stage draft.
type ReviseDraftRequest struct {
	Actor          string         `json:"actor"`
	ExpectedStatus string         `json:"expected_status"`
	Content        string         `json:"content"         validate:"required"`
	Data           map[string]any `json:"data,omitempty"`
}
