package models

import "time"

// ReviewState is the review outcome attached to one artifact version.
type ReviewState string

const (
	ReviewPending  ReviewState = "pending"
	ReviewApproved ReviewState = "approved"
	ReviewRejected ReviewState = "rejected"
)

// EventType names the kind of an audit entry.
type EventType string

const (
	EventCaseCreated           EventType = "case.created"
	EventCaseAbandoned         EventType = "case.abandoned"
	EventStageGenerated        EventType = "stage.generated"
	EventStageGenerationFailed EventType = "stage.generation_failed"
	EventStageRevised          EventType = "stage.revised"
	EventStageSubmitted        EventType = "stage.submitted"
	EventStageApproved         EventType = "stage.approved"
	EventStageRejected         EventType = "stage.rejected"
	EventJoinWaiting           EventType = "join.waiting"
	EventJoinStarted           EventType = "join.started"
	EventJoinCompleted         EventType = "join.completed"
	EventJoinFailed            EventType = "join.failed"
)

// SystemActor is recorded on entries produced without a human request.
const SystemActor = "system"

// HistoryEntry is one immutable audit record.
type HistoryEntry struct {
	Timestamp  time.Time  `json:"timestamp"`
	Actor      string     `json:"actor"`
	EventType  EventType  `json:"event_type"`
	Stage      Stage      `json:"stage,omitempty"`
	FromStatus CaseStatus `json:"from_status,omitempty"`
	ToStatus   CaseStatus `json:"to_status,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// GenerationMetadata describes who produced an artifact version.
type GenerationMetadata struct {
	Generator string         `json:"generator"`
	Model     string         `json:"model,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// ArtifactVersion is one generated or revised draft of a stage document.
type ArtifactVersion struct {
	Version   int                `json:"version"`
	Content   string             `json:"content"`
	Data      map[string]any     `json:"data,omitempty"`
	Metadata  GenerationMetadata `json:"metadata"`
	Review    ReviewState        `json:"review"`
	CreatedAt time.Time          `json:"created_at"`
}

// Artifact keeps every version produced for a stage; the last one is current.
type Artifact struct {
	Stage    Stage             `json:"stage"`
	Versions []ArtifactVersion `json:"versions"`
}

// Current returns the latest version or nil when none exists.
func (a *Artifact) Current() *ArtifactVersion {
	if a == nil || len(a.Versions) == 0 {
		return nil
	}

	return &a.Versions[len(a.Versions)-1]
}

// Approved returns the latest approved version or nil.
func (a *Artifact) Approved() *ArtifactVersion {
	if a == nil {
		return nil
	}

	for i := len(a.Versions) - 1; i >= 0; i-- {
		if a.Versions[i].Review == ReviewApproved {
			return &a.Versions[i]
		}
	}

	return nil
}

// Case is the aggregate every orchestrator operation mutates.
type Case struct {
	ID          string               `json:"id"`
	Title       string               `json:"title" validate:"required,min=3"`
	Description string               `json:"description"`
	Owner       string               `json:"owner" validate:"required"`
	Status      CaseStatus           `json:"status" validate:"required"`
	Stages      map[Stage]CaseStatus `json:"stages"`
	Artifacts   map[Stage]*Artifact  `json:"artifacts"`
	History     []HistoryEntry       `json:"history"`
	Version     int64                `json:"version"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewCase returns a case in intake with its creation entry recorded.
func NewCase(id, owner, title, description string, now time.Time) *Case {
	return &Case{
		ID:          id,
		Title:       title,
		Description: description,
		Owner:       owner,
		Status:      StatusIntake,
		Stages:      make(map[Stage]CaseStatus),
		Artifacts:   make(map[Stage]*Artifact),
		History: []HistoryEntry{{
			Timestamp: now,
			Actor:     owner,
			EventType: EventCaseCreated,
			ToStatus:  StatusIntake,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StageStatus returns the lane status of stage, or "" when the stage has not started.
func (c *Case) StageStatus(stage Stage) CaseStatus {
	if c.Stages == nil {
		return ""
	}

	return c.Stages[stage]
}

// Artifact returns the artifact for stage or nil.
func (c *Case) Artifact(stage Stage) *Artifact {
	if c.Artifacts == nil {
		return nil
	}

	return c.Artifacts[stage]
}

// HasEvent reports whether history contains eventType for stage.
func (c *Case) HasEvent(eventType EventType, stage Stage) bool {
	for _, entry := range c.History {
		if entry.EventType == eventType && entry.Stage == stage {
			return true
		}
	}

	return false
}

// LastEvent returns the most recent entry of eventType, or nil.
func (c *Case) LastEvent(eventType EventType) *HistoryEntry {
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].EventType == eventType {
			return &c.History[i]
		}
	}

	return nil
}
