package core

import "time"

// Partition tags separate records created by different generations of this
// integration sharing the same tables. The connector writes PartitionCurrent;
// the older generations are still matched when reconciling trainings.
const (
	PartitionImported = 2 // records created by the first import generation
	PartitionLegacy   = 3 // legacy generation, trainings keyed by workflow id
	PartitionCurrent  = 4 // this generation
)

// CheckRecord represents one background-check lifecycle. Records are created
// when a request is first sent or first observed, mutated on every subsequent
// status observation, and never hard-deleted (terminal statuses only).
type CheckRecord struct {
	ID           int64
	PersonRef    int64  // local person alias id
	RequestID    string // vendor check id, empty until known
	ResponseID   string
	PackageName  string
	Status       CheckStatus
	RequestDate  time.Time
	ResponseDate *time.Time
	ResponseData string // results URL
	WorkflowID   *int64
	SourceTag    int
}

// Open reports whether the check has not yet received a response.
func (c *CheckRecord) Open() bool {
	return c.ResponseDate == nil
}

// TrainingRecord represents one training assignment lifecycle.
type TrainingRecord struct {
	ID             int64
	PersonRef      int64
	VendorUserID   int64
	SurveyCode     string
	UserType       string
	Score          *int
	CompletedAt    *time.Time
	RequestDate    time.Time
	ResponseDate   *time.Time
	DirectLoginURL string
	WorkflowID     *int64
	SourceTag      int
}

// Open reports whether the training has not been completed yet. Open records
// are preferred as upsert targets over creating duplicates.
func (t *TrainingRecord) Open() bool {
	return t.CompletedAt == nil
}

// Person is a local person record, resolved or lazily created from vendor
// user data.
type Person struct {
	ID               int64
	AliasID          int64
	FirstName        string
	LastName         string
	Email            string
	RecordStatus     string
	ConnectionStatus string
}

// Workflow is the host platform's long-lived process instance for one
// in-flight request. The connector only reads identity and liveness; field
// values travel separately through the FieldSet contract.
type Workflow struct {
	ID              int64
	TypeID          int64
	Name            string
	Active          bool
	CompletedAt     *time.Time
	CompletedReason string
}
