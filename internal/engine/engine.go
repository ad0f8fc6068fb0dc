// Package engine implements the reconciliation of vendor status
// observations into local records and workflow fields. Observations may be
// duplicated, stale or out of order; the engine applies per-field staleness
// guards under a per-workflow lock so state never regresses.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/events"
	"github.com/flockops/safeguard/internal/locks"
	"github.com/flockops/safeguard/internal/logging"
)

// The host platform stores document references as "<entityTypeId>,<handle>".
const fileEntityTypeID = 62

// reportStatusValues is the value list declared on the ReportStatus field
// the first time it is written.
const reportStatusValues = "Pass,Fail,Review"

// Deps are the collaborators an Engine needs.
type Deps struct {
	Records   core.RecordStore
	Workflows core.WorkflowStore
	Persons   core.PersonDirectory
	Files     core.FileStore
	Processor core.WorkflowProcessor
	Vendor    VendorClient
	Locks     *locks.Registry
	Bus       *events.EventBus
	Logger    *logging.Logger
	Clock     core.Clock
}

// Engine applies vendor observations to local state.
type Engine struct {
	records   core.RecordStore
	workflows core.WorkflowStore
	persons   core.PersonDirectory
	files     core.FileStore
	processor core.WorkflowProcessor
	vendor    VendorClient
	locks     *locks.Registry
	bus       *events.EventBus
	logger    *logging.Logger
	clock     core.Clock
	resolver  *PersonResolver
}

// New creates an engine.
func New(d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	if d.Bus == nil {
		d.Bus = events.New(64)
	}
	if d.Locks == nil {
		d.Locks = locks.NewRegistry()
	}
	e := &Engine{
		records:   d.Records,
		workflows: d.Workflows,
		persons:   d.Persons,
		files:     d.Files,
		processor: d.Processor,
		vendor:    d.Vendor,
		locks:     d.Locks,
		bus:       d.Bus,
		logger:    d.Logger.WithComponent("engine"),
		clock:     d.Clock,
	}
	e.resolver = NewPersonResolver(d.Vendor, d.Persons, e.logger)
	return e
}

// ApplyCheckUpdate reconciles one background check observation. The record
// match and upsert run outside the workflow lock; only the workflow field
// mutation is serialized. Duplicate record creation under a race is
// tolerated because later observations match by request id.
func (e *Engine) ApplyCheckUpdate(ctx context.Context, u CheckUpdate) error {
	ref := u.ExternalRef
	if strings.TrimSpace(ref) == "" {
		var err error
		ref, err = e.resolver.Resolve(ctx, u.VendorUserID)
		if err != nil {
			return err
		}
	}
	aliasID, err := parseAliasRef(ref)
	if err != nil {
		return err
	}

	rec, err := e.records.FindCheck(ctx, core.CheckQuery{
		RequestID: u.RequestID,
		PersonRef: aliasID,
		SourceTag: core.PartitionCurrent,
	})
	if err != nil {
		return err
	}

	now := e.clock()
	created := false
	if rec == nil {
		requestDate := now
		if u.OrderedAt != nil {
			requestDate = *u.OrderedAt
		}
		rec = &core.CheckRecord{
			PersonRef:   aliasID,
			RequestID:   u.RequestID,
			PackageName: u.PackageCode,
			RequestDate: requestDate,
			SourceTag:   core.PartitionCurrent,
		}
		created = true
	}

	status := core.CheckStatus(strings.TrimSpace(u.Status))
	if status == "" {
		status = core.StatusConsider
	}
	// Secondary verification override. Asymmetric on purpose: an explicit
	// not-flagged means the vendor cleared the candidate even when the raw
	// status lags behind; flagged true carries no extra information.
	if u.Flagged != nil && !*u.Flagged {
		status = core.StatusClear
	}

	rec.Status = status
	if rec.RequestID == "" {
		rec.RequestID = u.RequestID
	}
	rec.ResponseID = u.RequestID
	if rec.PersonRef == 0 {
		rec.PersonRef = aliasID
	}
	if u.PackageCode != "" && rec.PackageName == "" {
		rec.PackageName = u.PackageCode
	}
	responseDate := now
	switch {
	case u.CompletedAt != nil:
		responseDate = *u.CompletedAt
	case u.OrderedAt != nil:
		responseDate = *u.OrderedAt
	}
	rec.ResponseDate = &responseDate
	// Never blank out a previously recorded results location.
	if strings.TrimSpace(u.ResultsURL) != "" {
		rec.ResponseData = u.ResultsURL
	}

	if rec.WorkflowID == nil && u.AutoCreateTypeID != 0 {
		wf, err := e.workflows.ActivateWorkflow(ctx, u.AutoCreateTypeID,
			fmt.Sprintf("Background Check %s", u.RequestID))
		if err != nil {
			return err
		}
		rec.WorkflowID = &wf.ID
	}

	if created {
		err = e.records.CreateCheck(ctx, rec)
	} else {
		err = e.records.UpdateCheck(ctx, rec)
	}
	if err != nil {
		return err
	}

	outcome := status.Outcome()
	if rec.WorkflowID != nil {
		if err := e.updateCheckWorkflow(ctx, *rec.WorkflowID, aliasID, outcome, rec.ResponseData); err != nil {
			e.markRequestFailure(ctx, *rec.WorkflowID, err)
			return err
		}
		e.bus.Publish(events.NewCheckUpdatedEvent(*rec.WorkflowID, rec.RequestID,
			string(status), outcome.Recommendation, created))
	}

	e.logger.Info("check reconciled",
		"request_id", rec.RequestID,
		"status", string(status),
		"created", created)
	return nil
}

// updateCheckWorkflow is the workflow-update subroutine for checks. It holds
// the per-workflow lock across the field read-modify-write and the
// re-processing trigger.
func (e *Engine) updateCheckWorkflow(ctx context.Context, workflowID, aliasID int64, outcome core.Outcome, resultsURL string) error {
	release := e.locks.Acquire(workflowID)
	defer release()

	wf, err := e.workflows.Workflow(ctx, workflowID)
	if err != nil {
		return err
	}

	// A workflow that already ran to completion no longer accepts field
	// mutation; re-processing still runs so the host sees the observation.
	if !wf.Active {
		e.logger.Debug("workflow inactive, fields left untouched", "workflow_id", workflowID)
		for _, perr := range e.processor.Process(ctx, workflowID) {
			e.logger.Warn("workflow processing error", "workflow_id", workflowID, "error", perr)
		}
		return nil
	}

	// Fields must be re-read under the lock; a concurrent request-send path
	// may have mutated them since the caller's match phase.
	fields, err := e.workflows.Fields(ctx, workflowID)
	if err != nil {
		return err
	}

	// Staleness guards. An observation carrying strictly less information
	// than what is recorded is an out-of-order delivery, not a regression.
	if !fields.Blank(core.FieldReportStatus) && outcome.ReportStatus == "" {
		e.bus.Publish(events.NewStaleUpdateSkippedEvent(workflowID, "check",
			"report status already recorded, incoming blank"))
		e.logger.Debug("stale check update skipped", "workflow_id", workflowID)
		return nil
	}
	if !fields.Blank(core.FieldReport) && strings.TrimSpace(resultsURL) == "" {
		e.bus.Publish(events.NewStaleUpdateSkippedEvent(workflowID, "check",
			"report document already recorded, incoming blank"))
		e.logger.Debug("stale check update skipped", "workflow_id", workflowID)
		return nil
	}

	var writes []core.FieldWrite

	if fields.Blank(core.FieldPerson) && aliasID != 0 {
		writes = append(writes, core.FieldWrite{
			Key:   core.FieldPerson,
			Value: core.PersonValue(aliasID),
		})
	}

	closeReason := ""
	if outcome.Recommendation != "" {
		writes = append(writes, core.FieldWrite{
			Key:   core.FieldReportRecommendation,
			Value: core.TextValue(outcome.Recommendation),
		})
		// The external process gave up or was cancelled; no definitive
		// pass/fail will ever arrive, so stop waiting.
		if outcome.ReportStatus == "" && core.TerminalRecommendation(outcome.Recommendation) {
			closeReason = outcome.Recommendation
		}
	}

	if strings.TrimSpace(resultsURL) != "" {
		handle, err := e.files.SaveFromURL(ctx, resultsURL, "BackgroundCheckReport.pdf")
		if err != nil {
			// The composite document reference needs the stored handle, so
			// neither field is written on a failed download. A later
			// delivery retries.
			e.logger.Warn("result document download failed",
				"workflow_id", workflowID, "error", err)
		} else {
			writes = append(writes,
				core.FieldWrite{
					Key:   core.FieldReport,
					Value: core.TextValue(fmt.Sprintf("%d,%s", fileEntityTypeID, handle)),
				},
				core.FieldWrite{
					Key:   core.FieldReportFile,
					Value: core.FileValue(handle),
				})
		}
	}

	if outcome.ReportStatus != "" {
		writes = append(writes, core.FieldWrite{
			Key:        core.FieldReportStatus,
			Value:      core.EnumValue(outcome.ReportStatus),
			Qualifiers: map[string]string{"values": reportStatusValues},
		})
	}

	if err := e.workflows.SaveFields(ctx, workflowID, writes); err != nil {
		return err
	}

	if closeReason != "" {
		if err := e.workflows.CompleteWorkflow(ctx, workflowID, closeReason, e.clock()); err != nil {
			return err
		}
		e.bus.Publish(events.NewWorkflowCompletedEvent(workflowID, closeReason))
	}

	for _, perr := range e.processor.Process(ctx, workflowID) {
		e.logger.Warn("workflow processing error", "workflow_id", workflowID, "error", perr)
	}
	return nil
}

// markRequestFailure surfaces a reconciliation failure on the workflow so a
// human sees it. Best effort; the original error is what propagates.
func (e *Engine) markRequestFailure(ctx context.Context, workflowID int64, cause error) {
	release := e.locks.Acquire(workflowID)
	defer release()

	writes := []core.FieldWrite{
		{Key: core.FieldRequestStatus, Value: core.TextValue("FAIL")},
		{Key: core.FieldRequestMessage, Value: core.TextValue(cause.Error())},
	}
	if err := e.workflows.SaveFields(ctx, workflowID, writes); err != nil {
		e.logger.Error("recording request failure", "workflow_id", workflowID, "error", err)
	}
}

// parseAliasRef extracts the numeric alias from a "pa<id>" person token.
func parseAliasRef(ref string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(ref), "pa")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ErrValidation("BAD_PERSON_REF",
			fmt.Sprintf("person reference %q is not a valid alias token", ref))
	}
	return id, nil
}
