package events

// Event type constants for reconciliation events.
const (
	TypeCheckUpdated      = "check_updated"
	TypeTrainingUpdated   = "training_updated"
	TypeWorkflowCompleted = "workflow_completed"
	TypeStaleUpdateSkip   = "stale_update_skipped"
)

// CheckUpdatedEvent is emitted after a background check observation commits.
type CheckUpdatedEvent struct {
	BaseEvent
	RequestID      string `json:"request_id"`
	Status         string `json:"status"`
	Recommendation string `json:"recommendation"`
	Created        bool   `json:"created"`
}

// NewCheckUpdatedEvent creates a check updated event.
func NewCheckUpdatedEvent(workflowID int64, requestID, status, recommendation string, created bool) CheckUpdatedEvent {
	return CheckUpdatedEvent{
		BaseEvent:      NewBaseEvent(TypeCheckUpdated, workflowID),
		RequestID:      requestID,
		Status:         status,
		Recommendation: recommendation,
		Created:        created,
	}
}

// TrainingUpdatedEvent is emitted after a training completion commits.
type TrainingUpdatedEvent struct {
	BaseEvent
	ExternalRef string `json:"external_ref"`
	SurveyCode  string `json:"survey_code"`
	Score       *int   `json:"score,omitempty"`
}

// NewTrainingUpdatedEvent creates a training updated event.
func NewTrainingUpdatedEvent(workflowID int64, externalRef, surveyCode string, score *int) TrainingUpdatedEvent {
	return TrainingUpdatedEvent{
		BaseEvent:   NewBaseEvent(TypeTrainingUpdated, workflowID),
		ExternalRef: externalRef,
		SurveyCode:  surveyCode,
		Score:       score,
	}
}

// WorkflowCompletedEvent is emitted when a reconciliation closes a workflow.
type WorkflowCompletedEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// NewWorkflowCompletedEvent creates a workflow completed event.
func NewWorkflowCompletedEvent(workflowID int64, reason string) WorkflowCompletedEvent {
	return WorkflowCompletedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowCompleted, workflowID),
		Reason:    reason,
	}
}

// StaleUpdateSkippedEvent is emitted when an observation arrives out of
// order and is deliberately dropped.
type StaleUpdateSkippedEvent struct {
	BaseEvent
	Kind   string `json:"kind"` // check or training
	Detail string `json:"detail"`
}

// NewStaleUpdateSkippedEvent creates a stale update skipped event.
func NewStaleUpdateSkippedEvent(workflowID int64, kind, detail string) StaleUpdateSkippedEvent {
	return StaleUpdateSkippedEvent{
		BaseEvent: NewBaseEvent(TypeStaleUpdateSkip, workflowID),
		Kind:      kind,
		Detail:    detail,
	}
}
