package core

// CheckStatus is the vendor-reported lifecycle status of a background check.
// The vendor sends these as raw strings; parsing keeps unknown values intact
// so future statuses fail safe (no workflow field mutation) instead of
// silently mismatching.
type CheckStatus string

const (
	StatusPending             CheckStatus = "pending"
	StatusClear               CheckStatus = "clear"
	StatusConsider            CheckStatus = "consider"
	StatusReady               CheckStatus = "ready"
	StatusSuspended           CheckStatus = "suspended"
	StatusDispute             CheckStatus = "dispute"
	StatusInvitationCreated   CheckStatus = "InvitationCreated"
	StatusInvitationCompleted CheckStatus = "InvitationCompleted"
	StatusInvitationExpired   CheckStatus = "InvitationExpired"
	StatusAwaitingApplicant   CheckStatus = "awaiting_applicant"
	StatusComplete            CheckStatus = "complete"
	StatusCancelled           CheckStatus = "cancelled"
	StatusArchived            CheckStatus = "archived"
)

// Recommendation texts surfaced on the workflow. The two terminal ones force
// the workflow closed when no report status accompanies them.
const (
	RecommendationPending             = "Report Pending"
	RecommendationPass                = "Candidate Pass"
	RecommendationReview              = "Candidate Review"
	RecommendationSuspended           = "Report Suspended"
	RecommendationDisputed            = "Report Disputed"
	RecommendationInvitationSent      = "Invitation Sent"
	RecommendationInvitationCompleted = "Invitation Completed"
	RecommendationInvitationExpired   = "Invitation Expired"
	RecommendationAwaitingApplicant   = "Awaiting Applicant"
	RecommendationCancelled           = "Cancelled"
)

// Report status values written to the ReportStatus single-select field.
const (
	ReportStatusPass   = "Pass"
	ReportStatusFail   = "Fail"
	ReportStatusReview = "Review"
)

// Outcome is the pair of workflow values derived from a vendor status.
// A blank member means the corresponding field is left untouched.
type Outcome struct {
	Recommendation string
	ReportStatus   string
}

var statusOutcomes = map[CheckStatus]Outcome{
	StatusPending:             {Recommendation: RecommendationPending},
	StatusClear:               {Recommendation: RecommendationPass, ReportStatus: ReportStatusPass},
	StatusConsider:            {Recommendation: RecommendationReview, ReportStatus: ReportStatusReview},
	StatusReady:               {Recommendation: RecommendationReview, ReportStatus: ReportStatusReview},
	StatusSuspended:           {Recommendation: RecommendationSuspended},
	StatusDispute:             {Recommendation: RecommendationDisputed},
	StatusInvitationCreated:   {Recommendation: RecommendationInvitationSent},
	StatusInvitationCompleted: {Recommendation: RecommendationInvitationCompleted},
	StatusInvitationExpired:   {Recommendation: RecommendationInvitationExpired},
	StatusAwaitingApplicant:   {Recommendation: RecommendationAwaitingApplicant},
	StatusComplete:            {Recommendation: RecommendationReview, ReportStatus: ReportStatusReview},
	StatusCancelled:           {Recommendation: RecommendationCancelled},
}

// Outcome maps the status to its derived workflow values. Unknown statuses
// yield a zero Outcome, meaning no recommendation or report status is written.
func (s CheckStatus) Outcome() Outcome {
	return statusOutcomes[s]
}

// Known reports whether the status is one the connector recognizes.
func (s CheckStatus) Known() bool {
	if s == StatusArchived {
		return true
	}
	_, ok := statusOutcomes[s]
	return ok
}

// Terminal reports whether no further vendor updates are expected.
func (s CheckStatus) Terminal() bool {
	switch s {
	case StatusClear, StatusComplete, StatusInvitationExpired, StatusCancelled, StatusArchived:
		return true
	}
	return false
}

// TerminalRecommendation reports whether a recommendation force-closes the
// workflow when it arrives without a report status.
func TerminalRecommendation(recommendation string) bool {
	return recommendation == RecommendationInvitationExpired ||
		recommendation == RecommendationCancelled
}
