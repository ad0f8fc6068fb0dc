package engine

import (
	"context"
	"time"

	"github.com/flockops/safeguard/internal/ministrysafe"
)

// CheckUpdate is one vendor-reported background check observation, arriving
// from a webhook delivery or a poll import page.
type CheckUpdate struct {
	RequestID    string
	ExternalRef  string // "pa<aliasId>" person token, resolved when empty
	ResultsURL   string
	VendorUserID int64
	Level        *int
	PackageCode  string
	Status       string
	CompletedAt  *time.Time
	OrderedAt    *time.Time
	// Flagged is the vendor's secondary verification signal. Only an
	// explicit false forces the status to clear; true and absent are both
	// treated as no signal.
	Flagged *bool
	// AutoCreateTypeID, when non-zero, lets the engine activate a new
	// workflow of that type if the record has none bound.
	AutoCreateTypeID int64
}

// TrainingUpdate is one vendor-reported training completion observation.
type TrainingUpdate struct {
	ExternalRef      string
	VendorUserID     int64
	Score            *int
	SurveyCode       string
	CompletedAt      *time.Time
	CreatedAt        *time.Time
	AutoCreateTypeID int64
}

// VendorClient is the slice of the vendor API the engine consumes.
type VendorClient interface {
	GetUser(ctx context.Context, id int64) (*ministrysafe.User, error)
	GetUserByExternalRef(ctx context.Context, ref string) (*ministrysafe.User, error)
	CreateUser(ctx context.Context, params ministrysafe.UserParams) (*ministrysafe.User, error)
	UpdateUser(ctx context.Context, id int64, params ministrysafe.UserParams) (*ministrysafe.User, error)
	AssignTraining(ctx context.Context, userID int64, surveyCode string) error
	ResendTraining(ctx context.Context, userID int64) error
	CreateBackgroundCheck(ctx context.Context, params ministrysafe.CheckParams) (*ministrysafe.BackgroundCheck, error)
	GetBackgroundCheck(ctx context.Context, id int64) (*ministrysafe.BackgroundCheck, error)
	ArchiveBackgroundCheck(ctx context.Context, id int64) error
	GetUserTags(ctx context.Context, userID int64) ([]ministrysafe.Tag, error)
}
