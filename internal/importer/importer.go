// Package importer backfills local records from the vendor's list endpoints.
// Webhooks can be missed; a periodic date-window import replays whatever the
// vendor still reports, relying on the engine's idempotent reconciliation to
// make redelivery harmless.
package importer

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/engine"
	"github.com/flockops/safeguard/internal/logging"
	"github.com/flockops/safeguard/internal/ministrysafe"
)

// maxPages bounds a runaway pagination loop against a misbehaving endpoint.
const maxPages = 1000

// VendorLister is the slice of the vendor API the importer consumes.
type VendorLister interface {
	ListBackgroundChecks(ctx context.Context, page int, start, end time.Time) ([]ministrysafe.BackgroundCheck, error)
	ListTrainings(ctx context.Context, page int, start, end time.Time) ([]ministrysafe.Training, error)
}

// Applier reconciles one observation at a time.
type Applier interface {
	ApplyCheckUpdate(ctx context.Context, u engine.CheckUpdate) error
	ApplyTrainingUpdate(ctx context.Context, u engine.TrainingUpdate) error
}

// Summary counts what one import run did.
type Summary struct {
	Pages   int
	Applied int
	Skipped int
	Failed  int
}

// Importer replays vendor state into the reconciliation engine.
type Importer struct {
	vendor  VendorLister
	applier Applier
	logger  *logging.Logger
}

// New creates an importer.
func New(vendor VendorLister, applier Applier, logger *logging.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{
		vendor:  vendor,
		applier: applier,
		logger:  logger.WithComponent("importer"),
	}
}

// ImportChecks replays background checks ordered in the window. Only checks
// that reached a response or a terminal state are applied; in-flight orders
// carry nothing the request path has not already recorded. Imports never
// spawn workflows; records without one stay record-only until a request
// binds them.
func (im *Importer) ImportChecks(ctx context.Context, start, end time.Time) (Summary, error) {
	var sum Summary
	for page := 1; page <= maxPages; page++ {
		checks, err := im.vendor.ListBackgroundChecks(ctx, page, start, end)
		if err != nil {
			return sum, err
		}
		if len(checks) == 0 {
			break
		}
		sum.Pages++

		for i := range checks {
			bc := &checks[i]
			completedAt := ministrysafe.ParseTime(bc.CompleteDate)
			if completedAt == nil && !core.CheckStatus(bc.Status).Terminal() {
				sum.Skipped++
				continue
			}
			err := im.applier.ApplyCheckUpdate(ctx, engine.CheckUpdate{
				RequestID:    strconv.FormatInt(bc.ID.Int64(), 10),
				ExternalRef:  bc.UserExternalID,
				ResultsURL:   bc.ResultsURL,
				VendorUserID: bc.UserID.Int64(),
				Level:        bc.Level,
				PackageCode:  bc.PackageCode,
				Status:       bc.Status,
				CompletedAt:  completedAt,
				OrderedAt:    ministrysafe.ParseTime(bc.OrderDate),
				Flagged:      bc.Flagged,
			})
			if err != nil {
				sum.Failed++
				im.logger.Warn("check import failed",
					"vendor_id", bc.ID.Int64(), "error", err)
				continue
			}
			sum.Applied++
		}
	}

	im.logger.Info("check import finished",
		"pages", sum.Pages, "applied", sum.Applied,
		"skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// ImportTrainings replays completed trainings in the window. Open assignments
// are skipped; the stale-drop rule in the engine handles redelivered
// completions.
func (im *Importer) ImportTrainings(ctx context.Context, start, end time.Time) (Summary, error) {
	var sum Summary
	for page := 1; page <= maxPages; page++ {
		trainings, err := im.vendor.ListTrainings(ctx, page, start, end)
		if err != nil {
			return sum, err
		}
		if len(trainings) == 0 {
			break
		}
		sum.Pages++

		for i := range trainings {
			tr := &trainings[i]
			completedAt := ministrysafe.ParseTime(tr.CompleteDate)
			if completedAt == nil {
				sum.Skipped++
				continue
			}
			externalRef := ""
			vendorUserID := tr.UserID.Int64()
			if tr.Participant != nil {
				externalRef = tr.Participant.ExternalID
				if vendorUserID == 0 {
					vendorUserID = tr.Participant.ID.Int64()
				}
			}
			err := im.applier.ApplyTrainingUpdate(ctx, engine.TrainingUpdate{
				ExternalRef:  externalRef,
				VendorUserID: vendorUserID,
				Score:        tr.Score,
				SurveyCode:   tr.SurveyCode,
				CompletedAt:  completedAt,
				CreatedAt:    ministrysafe.ParseTime(tr.CreatedAt),
			})
			if err != nil {
				sum.Failed++
				im.logger.Warn("training import failed",
					"vendor_id", tr.ID.Int64(), "error", err)
				continue
			}
			sum.Applied++
		}
	}

	im.logger.Info("training import finished",
		"pages", sum.Pages, "applied", sum.Applied,
		"skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// RunBoth imports checks and trainings concurrently. The vendor rate limiter
// in the client serializes the actual API pressure.
func (im *Importer) RunBoth(ctx context.Context, start, end time.Time) (checks, trainings Summary, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var cerr error
		checks, cerr = im.ImportChecks(gctx, start, end)
		return cerr
	})
	g.Go(func() error {
		var terr error
		trainings, terr = im.ImportTrainings(gctx, start, end)
		return terr
	})
	err = g.Wait()
	return checks, trainings, err
}
