package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/ministrysafe"
)

// CheckRequest asks the vendor to start a background check for a person and
// binds the resulting record to a workflow.
type CheckRequest struct {
	WorkflowID    int64
	PersonAliasID int64
	PackageCode   string
	Level         *int
}

// TrainingRequest assigns a vendor training to a person.
type TrainingRequest struct {
	WorkflowID    int64
	PersonAliasID int64
	SurveyCode    string
	UserType      string
}

// SendCheckRequest orders a background check. On success the applicant
// interface link and a SUCCESS request status land on the workflow; on
// failure the workflow shows FAIL with the error message.
func (e *Engine) SendCheckRequest(ctx context.Context, req CheckRequest) error {
	if err := e.sendCheckRequest(ctx, req); err != nil {
		e.markRequestFailure(ctx, req.WorkflowID, err)
		return err
	}
	return nil
}

func (e *Engine) sendCheckRequest(ctx context.Context, req CheckRequest) error {
	if req.PersonAliasID == 0 {
		return core.ErrValidation("NO_PERSON", "check request has no person bound")
	}
	if req.PackageCode == "" && req.Level == nil {
		return core.ErrValidation("NO_PACKAGE", "check request names neither a package nor a level")
	}

	user, err := e.ensureVendorUser(ctx, req.PersonAliasID, "employee")
	if err != nil {
		return err
	}

	bc, err := e.vendor.CreateBackgroundCheck(ctx, ministrysafe.CheckParams{
		UserID:      user.ID.Int64(),
		Level:       req.Level,
		PackageCode: req.PackageCode,
	})
	if err != nil {
		return err
	}

	now := e.clock()
	wfID := req.WorkflowID
	rec := &core.CheckRecord{
		PersonRef:   req.PersonAliasID,
		RequestID:   strconv.FormatInt(bc.ID.Int64(), 10),
		PackageName: req.PackageCode,
		Status:      core.StatusPending,
		RequestDate: now,
		WorkflowID:  &wfID,
		SourceTag:   core.PartitionCurrent,
	}
	if err := e.records.CreateCheck(ctx, rec); err != nil {
		return err
	}

	release := e.locks.Acquire(req.WorkflowID)
	defer release()

	writes := []core.FieldWrite{
		{Key: core.FieldRequestStatus, Value: core.TextValue("SUCCESS")},
		{Key: core.FieldReportRecommendation, Value: core.TextValue(core.RecommendationPending)},
	}
	if strings.TrimSpace(bc.ApplicantInterfaceURL) != "" {
		writes = append(writes, core.FieldWrite{
			Key:   core.FieldApplicantInterfaceURL,
			Value: core.TextValue(bc.ApplicantInterfaceURL),
		})
	}
	if err := e.workflows.SaveFields(ctx, req.WorkflowID, writes); err != nil {
		return err
	}

	e.logger.Info("check request sent",
		"workflow_id", req.WorkflowID,
		"request_id", rec.RequestID,
		"package", req.PackageCode)
	return nil
}

// SendTrainingRequest assigns a training. The person's direct login link is
// written to the workflow so the invitation can be re-surfaced.
func (e *Engine) SendTrainingRequest(ctx context.Context, req TrainingRequest) error {
	if err := e.sendTrainingRequest(ctx, req); err != nil {
		e.markRequestFailure(ctx, req.WorkflowID, err)
		return err
	}
	return nil
}

func (e *Engine) sendTrainingRequest(ctx context.Context, req TrainingRequest) error {
	if req.PersonAliasID == 0 {
		return core.ErrValidation("NO_PERSON", "training request has no person bound")
	}

	userType := req.UserType
	if userType == "" {
		userType = "volunteer"
	}
	user, err := e.ensureVendorUser(ctx, req.PersonAliasID, userType)
	if err != nil {
		return err
	}

	if err := e.vendor.AssignTraining(ctx, user.ID.Int64(), req.SurveyCode); err != nil {
		return err
	}

	// Re-fetch: the login link is minted during assignment.
	fresh, err := e.vendor.GetUser(ctx, user.ID.Int64())
	if err != nil {
		return err
	}

	wfID := req.WorkflowID
	rec := &core.TrainingRecord{
		PersonRef:      req.PersonAliasID,
		VendorUserID:   user.ID.Int64(),
		SurveyCode:     req.SurveyCode,
		UserType:       userType,
		RequestDate:    e.clock(),
		DirectLoginURL: fresh.DirectLoginURL,
		WorkflowID:     &wfID,
		SourceTag:      core.PartitionCurrent,
	}
	if err := e.records.CreateTraining(ctx, rec); err != nil {
		return err
	}

	release := e.locks.Acquire(req.WorkflowID)
	defer release()

	writes := []core.FieldWrite{
		{Key: core.FieldRequestStatus, Value: core.TextValue("SUCCESS")},
	}
	if strings.TrimSpace(fresh.DirectLoginURL) != "" {
		writes = append(writes, core.FieldWrite{
			Key:   core.FieldDirectLoginURL,
			Value: core.TextValue(fresh.DirectLoginURL),
		})
	}
	if err := e.workflows.SaveFields(ctx, req.WorkflowID, writes); err != nil {
		return err
	}

	e.logger.Info("training request sent",
		"workflow_id", req.WorkflowID,
		"survey_code", req.SurveyCode)
	return nil
}

// ResendTrainingInvite re-sends the invitation email for a person's open
// training.
func (e *Engine) ResendTrainingInvite(ctx context.Context, personAliasID int64) error {
	user, err := e.vendor.GetUserByExternalRef(ctx, fmt.Sprintf("pa%d", personAliasID))
	if err != nil {
		return err
	}
	if user == nil {
		return core.ErrNotFound("VENDOR_USER_NOT_FOUND",
			fmt.Sprintf("no vendor user carries reference pa%d", personAliasID))
	}
	return e.vendor.ResendTraining(ctx, user.ID.Int64())
}

// ArchiveLinkedChecks archives every vendor check bound to a workflow and
// marks the local records archived. Used when a request is withdrawn.
func (e *Engine) ArchiveLinkedChecks(ctx context.Context, workflowID int64) error {
	recs, err := e.records.ChecksByWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		id, err := strconv.ParseInt(rec.RequestID, 10, 64)
		if err != nil || rec.Status == core.StatusArchived {
			continue
		}
		if err := e.vendor.ArchiveBackgroundCheck(ctx, id); err != nil {
			return err
		}
		rec.Status = core.StatusArchived
		if err := e.records.UpdateCheck(ctx, rec); err != nil {
			return err
		}
		e.logger.Info("check archived", "workflow_id", workflowID, "request_id", rec.RequestID)
	}
	return nil
}

// AttachUserTags copies the vendor-side tags of a person onto the workflow.
func (e *Engine) AttachUserTags(ctx context.Context, workflowID, vendorUserID int64) error {
	tags, err := e.vendor.GetUserTags(ctx, vendorUserID)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}

	release := e.locks.Acquire(workflowID)
	defer release()

	return e.workflows.SaveFields(ctx, workflowID, []core.FieldWrite{
		{Key: core.FieldUserTags, Value: core.TextValue(strings.Join(names, ", "))},
	})
}

// ensureVendorUser finds the vendor user carrying the person's reference or
// creates one from the local person record.
func (e *Engine) ensureVendorUser(ctx context.Context, personAliasID int64, userType string) (*ministrysafe.User, error) {
	ref := fmt.Sprintf("pa%d", personAliasID)
	user, err := e.vendor.GetUserByExternalRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	person, err := e.persons.PersonByAlias(ctx, personAliasID)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, core.ErrNotFound("PERSON_NOT_FOUND",
			fmt.Sprintf("person alias %d does not exist", personAliasID))
	}

	return e.vendor.CreateUser(ctx, ministrysafe.UserParams{
		FirstName:  person.FirstName,
		LastName:   person.LastName,
		Email:      person.Email,
		ExternalID: ref,
		UserType:   userType,
	})
}
