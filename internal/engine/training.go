package engine

import (
	"context"
	"strings"
	"time"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/events"
)

// ApplyTrainingUpdate reconciles one training completion observation. All
// open records for the person are updated, each driving its own workflow
// independently; when none are open, a completion no newer than the latest
// recorded one is a stale duplicate and is dropped.
func (e *Engine) ApplyTrainingUpdate(ctx context.Context, u TrainingUpdate) error {
	ref := u.ExternalRef
	if strings.TrimSpace(ref) == "" {
		var err error
		ref, err = e.resolver.Resolve(ctx, u.VendorUserID)
		if err != nil {
			return err
		}
	}
	query, aliasID, err := parseTrainingRef(ref)
	if err != nil {
		return err
	}

	recs, err := e.records.FindTrainings(ctx, query)
	if err != nil {
		return err
	}

	var open []*core.TrainingRecord
	var latestCompleted *core.TrainingRecord
	for _, rec := range recs {
		if rec.Open() {
			open = append(open, rec)
		} else if latestCompleted == nil {
			// Candidates come ordered most-recently-completed first.
			latestCompleted = rec
		}
	}

	now := e.clock()
	created := false
	if len(open) == 0 {
		if latestCompleted != nil && !strictlyNewer(u.CompletedAt, latestCompleted.CompletedAt) {
			e.bus.Publish(events.NewStaleUpdateSkippedEvent(workflowIDOf(latestCompleted), "training",
				"completion not newer than latest recorded"))
			e.logger.Debug("stale training update skipped",
				"external_ref", ref, "survey_code", u.SurveyCode)
			return nil
		}

		requestDate := now
		if u.CreatedAt != nil {
			requestDate = *u.CreatedAt
		}
		personRef := aliasID
		if personRef == 0 && latestCompleted != nil {
			personRef = latestCompleted.PersonRef
		}
		open = append(open, &core.TrainingRecord{
			PersonRef:   personRef,
			RequestDate: requestDate,
			SourceTag:   core.PartitionCurrent,
		})
		created = true
	}

	for _, rec := range open {
		// Every record drives its own workflow; an open record that never
		// got one is bound here.
		if rec.WorkflowID == nil && u.AutoCreateTypeID != 0 {
			wf, err := e.workflows.ActivateWorkflow(ctx, u.AutoCreateTypeID, "Safety Training")
			if err != nil {
				return err
			}
			rec.WorkflowID = &wf.ID
		}

		rec.VendorUserID = u.VendorUserID
		rec.CompletedAt = u.CompletedAt
		if u.Score != nil {
			rec.Score = u.Score
		}
		if u.SurveyCode != "" {
			rec.SurveyCode = u.SurveyCode
		}
		responseDate := now
		if u.CompletedAt != nil {
			responseDate = *u.CompletedAt
		}
		rec.ResponseDate = &responseDate

		if created {
			err = e.records.CreateTraining(ctx, rec)
		} else {
			err = e.records.UpdateTraining(ctx, rec)
		}
		if err != nil {
			return err
		}

		if rec.WorkflowID != nil {
			if err := e.updateTrainingWorkflow(ctx, *rec.WorkflowID, rec.PersonRef, u); err != nil {
				e.markRequestFailure(ctx, *rec.WorkflowID, err)
				return err
			}
			e.bus.Publish(events.NewTrainingUpdatedEvent(*rec.WorkflowID, ref, rec.SurveyCode, rec.Score))
		}
	}

	e.logger.Info("training reconciled",
		"external_ref", ref,
		"survey_code", u.SurveyCode,
		"records", len(open),
		"created", created)
	return nil
}

// updateTrainingWorkflow is the workflow-update subroutine for trainings.
// The person reference is filled in first; a tripped staleness guard then
// aborts the whole subroutine, so a score-less re-delivery can never
// regress an already recorded date.
func (e *Engine) updateTrainingWorkflow(ctx context.Context, workflowID, aliasID int64, u TrainingUpdate) error {
	release := e.locks.Acquire(workflowID)
	defer release()

	fields, err := e.workflows.Fields(ctx, workflowID)
	if err != nil {
		return err
	}

	var writes []core.FieldWrite

	if fields.Blank(core.FieldPerson) && aliasID != 0 {
		writes = append(writes, core.FieldWrite{
			Key:   core.FieldPerson,
			Value: core.PersonValue(aliasID),
		})
	}

	// Staleness guards. An observation carrying strictly less information
	// than what is recorded is an out-of-order delivery; only the person
	// fill-in above survives it.
	if u.Score == nil && !fields.Blank(core.FieldTrainingScore) {
		e.bus.Publish(events.NewStaleUpdateSkippedEvent(workflowID, "training",
			"score already recorded, incoming blank"))
		e.logger.Debug("stale training update skipped", "workflow_id", workflowID)
		return e.workflows.SaveFields(ctx, workflowID, writes)
	}
	if u.CompletedAt == nil && !fields.Blank(core.FieldTrainingDate) {
		e.bus.Publish(events.NewStaleUpdateSkippedEvent(workflowID, "training",
			"completion date already recorded, incoming blank"))
		e.logger.Debug("stale training update skipped", "workflow_id", workflowID)
		return e.workflows.SaveFields(ctx, workflowID, writes)
	}

	if u.Score != nil {
		writes = append(writes, core.FieldWrite{
			Key:   core.FieldTrainingScore,
			Value: core.IntValue(int64(*u.Score)),
		})
	}

	if u.CompletedAt != nil {
		writes = append(writes, core.FieldWrite{
			Key:   core.FieldTrainingDate,
			Value: core.DateValue(*u.CompletedAt),
		})
	}

	if fields.Blank(core.FieldSurveyType) && u.SurveyCode != "" {
		writes = append(writes, core.FieldWrite{
			Key:   core.FieldSurveyType,
			Value: core.EnumValue(u.SurveyCode),
		})
	}

	if err := e.workflows.SaveFields(ctx, workflowID, writes); err != nil {
		return err
	}

	for _, perr := range e.processor.Process(ctx, workflowID) {
		e.logger.Warn("workflow processing error", "workflow_id", workflowID, "error", perr)
	}
	return nil
}

// parseTrainingRef classifies an external reference. A "pa<id>" token
// matches by person across the current partitions; a bare numeric id is a
// legacy reference, matched by workflow id and by person.
func parseTrainingRef(ref string) (core.TrainingQuery, int64, error) {
	trimmed := strings.TrimSpace(ref)
	if strings.HasPrefix(trimmed, "pa") {
		aliasID, err := parseAliasRef(trimmed)
		if err != nil {
			return core.TrainingQuery{}, 0, err
		}
		return core.TrainingQuery{NumericID: aliasID, IsAliasRef: true}, aliasID, nil
	}
	id, err := parseAliasRef("pa" + trimmed)
	if err != nil {
		return core.TrainingQuery{}, 0, err
	}
	return core.TrainingQuery{NumericID: id, IsAliasRef: false}, 0, nil
}

// strictlyNewer compares completion times at second granularity. Vendor
// re-deliveries jitter in the sub-second digits; equal-to-the-second means
// the same completion.
func strictlyNewer(incoming, recorded *time.Time) bool {
	if incoming == nil {
		return false
	}
	if recorded == nil {
		return true
	}
	return incoming.Truncate(time.Second).After(recorded.Truncate(time.Second))
}

func workflowIDOf(rec *core.TrainingRecord) int64 {
	if rec != nil && rec.WorkflowID != nil {
		return *rec.WorkflowID
	}
	return 0
}
