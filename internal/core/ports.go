// Package core defines the domain model and the ports the reconciliation
// engine depends on. Adapters (sqlite store, vendor client, host workflow
// engine) live elsewhere and implement these interfaces.
package core

import (
	"context"
	"time"
)

// CheckQuery selects the most relevant existing CheckRecord for an incoming
// observation. Matching is by RequestID when known, otherwise by PersonRef,
// always restricted to the current partition. Candidates are ordered
// open-record-first, then most recently responded, then most recently
// requested.
type CheckQuery struct {
	RequestID string
	PersonRef int64
	SourceTag int
}

// TrainingQuery selects candidate TrainingRecords for an incoming completion
// event. NumericID is the numeric part of the external reference; IsAliasRef
// tells whether it came from a "pa<id>" person alias token (current
// partitions) or a bare workflow id (legacy partition).
type TrainingQuery struct {
	NumericID  int64
	IsAliasRef bool
}

// RecordStore abstracts persistence of check and training records.
type RecordStore interface {
	FindCheck(ctx context.Context, q CheckQuery) (*CheckRecord, error)
	ChecksByWorkflow(ctx context.Context, workflowID int64) ([]*CheckRecord, error)
	CreateCheck(ctx context.Context, rec *CheckRecord) error
	UpdateCheck(ctx context.Context, rec *CheckRecord) error

	// FindTrainings returns all candidates ordered open-first, then most
	// recently completed, then most recently responded.
	FindTrainings(ctx context.Context, q TrainingQuery) ([]*TrainingRecord, error)
	TrainingByWorkflow(ctx context.Context, workflowID int64) (*TrainingRecord, error)
	CreateTraining(ctx context.Context, rec *TrainingRecord) error
	UpdateTraining(ctx context.Context, rec *TrainingRecord) error
}

// WorkflowStore is the read/write contract with the host workflow system.
// Fields must be re-read from durable storage inside the per-workflow lock;
// SaveFields persists all writes of one reconciliation transactionally and
// creates field definitions on first use.
type WorkflowStore interface {
	Workflow(ctx context.Context, id int64) (*Workflow, error)
	ActivateWorkflow(ctx context.Context, typeID int64, name string) (*Workflow, error)
	Fields(ctx context.Context, workflowID int64) (FieldSet, error)
	SaveFields(ctx context.Context, workflowID int64, writes []FieldWrite) error
	CompleteWorkflow(ctx context.Context, workflowID int64, reason string, at time.Time) error
}

// WorkflowProcessor re-runs the host engine's normal processing step after a
// reconciliation commits. Treated as an opaque external call.
type WorkflowProcessor interface {
	Process(ctx context.Context, workflowID int64) []error
}

// ProcessorFunc adapts a function to the WorkflowProcessor interface.
type ProcessorFunc func(ctx context.Context, workflowID int64) []error

// Process implements WorkflowProcessor.
func (f ProcessorFunc) Process(ctx context.Context, workflowID int64) []error {
	return f(ctx, workflowID)
}

// PersonDirectory finds and creates local person records.
type PersonDirectory interface {
	PersonByAlias(ctx context.Context, aliasID int64) (*Person, error)
	// CandidatesByLastName returns possible matches for fuzzy ranking.
	CandidatesByLastName(ctx context.Context, lastName string) ([]*Person, error)
	CreatePerson(ctx context.Context, p *Person) (*Person, error)
}

// FileStore downloads a remote result document and stores it, returning a
// stable handle for the binary-attachment workflow field.
type FileStore interface {
	SaveFromURL(ctx context.Context, url, filename string) (string, error)
}

// Clock abstracts time for tests.
type Clock func() time.Time
