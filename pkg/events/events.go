// Package events defines the lifecycle notifications published for business cases.
package events

import (
	"time"

	"github.com/dukex/casegate/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every lifecycle event; messages are keyed by case id.
const Topic = "casegate.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CaseCreatedEvent       EventType = "case.created"
	CaseStatusChangedEvent EventType = "case.status_changed"

	StageApprovedEvent         EventType = "stage.approved"
	StageRejectedEvent         EventType = "stage.rejected"
	StageGenerationFailedEvent EventType = "stage.generation_failed"

	JoinCompletedEvent EventType = "join.completed"
	JoinFailedEvent    EventType = "join.failed"
)

// AllEventTypes lists every event type published on Topic.
var AllEventTypes = []EventType{
	CaseCreatedEvent,
	CaseStatusChangedEvent,
	StageApprovedEvent,
	StageRejectedEvent,
	StageGenerationFailedEvent,
	JoinCompletedEvent,
	JoinFailedEvent,
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	CaseID    string         `json:"case_id"`
	Actor     string         `json:"actor,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CaseCreated struct {
	BaseEvent

	Owner string `json:"owner"`
	Title string `json:"title"`
}

func (e CaseCreated) GetType() EventType {
	return CaseCreatedEvent
}

type CaseStatusChanged struct {
	BaseEvent

	Stage      models.Stage      `json:"stage,omitempty"`
	FromStatus models.CaseStatus `json:"from_status"`
	ToStatus   models.CaseStatus `json:"to_status"`
}

func (e CaseStatusChanged) GetType() EventType {
	return CaseStatusChangedEvent
}

type StageApproved struct {
	BaseEvent

	Stage   models.Stage `json:"stage"`
	Version int          `json:"version"`
}

func (e StageApproved) GetType() EventType {
	return StageApprovedEvent
}

type StageRejected struct {
	BaseEvent

	Stage   models.Stage `json:"stage"`
	Version int          `json:"version"`
	Reason  string       `json:"reason,omitempty"`
}

func (e StageRejected) GetType() EventType {
	return StageRejectedEvent
}

type StageGenerationFailed struct {
	BaseEvent

	Stage  models.Stage `json:"stage"`
	Reason string       `json:"reason"`
}

func (e StageGenerationFailed) GetType() EventType {
	return StageGenerationFailedEvent
}

type JoinCompleted struct {
	BaseEvent

	Primary    string `json:"primary"`
	Currency   string `json:"currency"`
	ROIPercent string `json:"roi_percent"`
}

func (e JoinCompleted) GetType() EventType {
	return JoinCompletedEvent
}

type JoinFailed struct {
	BaseEvent

	RevertedTo models.CaseStatus `json:"reverted_to"`
	Reason     string            `json:"reason"`
}

func (e JoinFailed) GetType() EventType {
	return JoinFailedEvent
}

// NewBaseEvent creates a new base event with common fields.
func NewBaseEvent(eventType EventType, caseID, actor string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		CaseID:    caseID,
		Actor:     actor,
		Metadata:  make(map[string]any),
	}
}
