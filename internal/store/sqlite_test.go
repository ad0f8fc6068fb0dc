package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s1, err := Open(path, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// Reopening must not re-apply the migration.
	s2, err := Open(path, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestFindCheckPrefersRequestIDMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	byPerson := &core.CheckRecord{PersonRef: 10, RequestID: "other", Status: core.StatusPending,
		RequestDate: time.Now().Add(-time.Hour), SourceTag: core.PartitionCurrent}
	byRequest := &core.CheckRecord{PersonRef: 99, RequestID: "req-1", Status: core.StatusPending,
		RequestDate: time.Now().Add(-2 * time.Hour), SourceTag: core.PartitionCurrent}
	require.NoError(t, s.CreateCheck(ctx, byPerson))
	require.NoError(t, s.CreateCheck(ctx, byRequest))

	got, err := s.FindCheck(ctx, core.CheckQuery{RequestID: "req-1", PersonRef: 10, SourceTag: core.PartitionCurrent})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, byRequest.ID, got.ID)
}

func TestFindCheckFallsBackToPersonRef(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &core.CheckRecord{PersonRef: 10, Status: core.StatusPending,
		RequestDate: time.Now(), SourceTag: core.PartitionCurrent}
	require.NoError(t, s.CreateCheck(ctx, rec))

	got, err := s.FindCheck(ctx, core.CheckQuery{PersonRef: 10, SourceTag: core.PartitionCurrent})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)

	none, err := s.FindCheck(ctx, core.CheckQuery{PersonRef: 11, SourceTag: core.PartitionCurrent})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFindCheckPrefersOpenRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	responded := &core.CheckRecord{PersonRef: 10, RequestID: "req-2", Status: core.StatusClear,
		RequestDate: now, ResponseDate: ptrTime(now), SourceTag: core.PartitionCurrent}
	open := &core.CheckRecord{PersonRef: 10, RequestID: "req-2", Status: core.StatusPending,
		RequestDate: now.Add(-time.Hour), SourceTag: core.PartitionCurrent}
	require.NoError(t, s.CreateCheck(ctx, responded))
	require.NoError(t, s.CreateCheck(ctx, open))

	got, err := s.FindCheck(ctx, core.CheckQuery{RequestID: "req-2", SourceTag: core.PartitionCurrent})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, open.ID, got.ID, "open record must win over responded one")
}

func TestFindCheckIgnoresOtherPartitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	legacy := &core.CheckRecord{PersonRef: 10, RequestID: "req-3", Status: core.StatusPending,
		RequestDate: time.Now(), SourceTag: core.PartitionLegacy}
	require.NoError(t, s.CreateCheck(ctx, legacy))

	got, err := s.FindCheck(ctx, core.CheckQuery{RequestID: "req-3", SourceTag: core.PartitionCurrent})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateCheckRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rec := &core.CheckRecord{PersonRef: 10, RequestID: "req-4", Status: core.StatusPending,
		RequestDate: now, SourceTag: core.PartitionCurrent}
	require.NoError(t, s.CreateCheck(ctx, rec))

	wfID := int64(77)
	rec.Status = core.StatusClear
	rec.ResponseDate = ptrTime(now.Add(time.Hour))
	rec.ResponseData = "https://vendor.example.com/results/1"
	rec.WorkflowID = &wfID
	require.NoError(t, s.UpdateCheck(ctx, rec))

	got, err := s.CheckByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusClear, got.Status)
	require.NotNil(t, got.ResponseDate)
	assert.True(t, got.ResponseDate.Equal(now.Add(time.Hour)))
	assert.Equal(t, "https://vendor.example.com/results/1", got.ResponseData)
	require.NotNil(t, got.WorkflowID)
	assert.Equal(t, int64(77), *got.WorkflowID)
}

func TestUpdateCheckMissingRecord(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateCheck(context.Background(), &core.CheckRecord{ID: 999, RequestDate: time.Now()})
	assert.Equal(t, core.ErrCatNotFound, core.CategoryOf(err))
}

func TestFindTrainingsAliasRef(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	imported := &core.TrainingRecord{PersonRef: 55, RequestDate: now, SourceTag: core.PartitionImported}
	current := &core.TrainingRecord{PersonRef: 55, RequestDate: now, SourceTag: core.PartitionCurrent}
	legacy := &core.TrainingRecord{PersonRef: 55, RequestDate: now, SourceTag: core.PartitionLegacy}
	require.NoError(t, s.CreateTraining(ctx, imported))
	require.NoError(t, s.CreateTraining(ctx, current))
	require.NoError(t, s.CreateTraining(ctx, legacy))

	got, err := s.FindTrainings(ctx, core.TrainingQuery{NumericID: 55, IsAliasRef: true})
	require.NoError(t, err)
	require.Len(t, got, 2, "legacy partition must not match alias references")
}

func TestFindTrainingsLegacyWorkflowRef(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	wfID := int64(300)

	legacy := &core.TrainingRecord{PersonRef: 1, WorkflowID: &wfID, RequestDate: now, SourceTag: core.PartitionLegacy}
	current := &core.TrainingRecord{PersonRef: 1, WorkflowID: &wfID, RequestDate: now, SourceTag: core.PartitionCurrent}
	require.NoError(t, s.CreateTraining(ctx, legacy))
	require.NoError(t, s.CreateTraining(ctx, current))

	got, err := s.FindTrainings(ctx, core.TrainingQuery{NumericID: 300, IsAliasRef: false})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, legacy.ID, got[0].ID)
}

func TestFindTrainingsNumericRefAlsoMatchesByPerson(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	wfID := int64(400)

	legacy := &core.TrainingRecord{PersonRef: 1, WorkflowID: &wfID, RequestDate: now, SourceTag: core.PartitionLegacy}
	current := &core.TrainingRecord{PersonRef: 400, RequestDate: now, SourceTag: core.PartitionCurrent}
	imported := &core.TrainingRecord{PersonRef: 400, RequestDate: now, SourceTag: core.PartitionImported}
	other := &core.TrainingRecord{PersonRef: 401, RequestDate: now, SourceTag: core.PartitionCurrent}
	require.NoError(t, s.CreateTraining(ctx, legacy))
	require.NoError(t, s.CreateTraining(ctx, current))
	require.NoError(t, s.CreateTraining(ctx, imported))
	require.NoError(t, s.CreateTraining(ctx, other))

	got, err := s.FindTrainings(ctx, core.TrainingQuery{NumericID: 400, IsAliasRef: false})
	require.NoError(t, err)
	require.Len(t, got, 3, "numeric refs match by workflow id and by person")
	for _, rec := range got {
		assert.NotEqual(t, other.ID, rec.ID)
	}
}

func TestFindTrainingsOrdersOpenFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	completed := &core.TrainingRecord{PersonRef: 55, CompletedAt: ptrTime(now),
		RequestDate: now.Add(-2 * time.Hour), SourceTag: core.PartitionCurrent}
	open := &core.TrainingRecord{PersonRef: 55,
		RequestDate: now.Add(-time.Hour), SourceTag: core.PartitionCurrent}
	require.NoError(t, s.CreateTraining(ctx, completed))
	require.NoError(t, s.CreateTraining(ctx, open))

	got, err := s.FindTrainings(ctx, core.TrainingQuery{NumericID: 55, IsAliasRef: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, open.ID, got[0].ID)
}

func TestWorkflowLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wf, err := s.ActivateWorkflow(ctx, 12, "Background Check - Ada Byrne")
	require.NoError(t, err)
	assert.True(t, wf.Active)

	got, err := s.Workflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.TypeID)
	assert.True(t, got.Active)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.CompleteWorkflow(ctx, wf.ID, "Invitation Expired", at))

	got, err = s.Workflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, "Invitation Expired", got.CompletedReason)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(at))

	_, err = s.Workflow(ctx, 9999)
	assert.Equal(t, core.ErrCatNotFound, core.CategoryOf(err))
}

func TestSaveFieldsUpsertsAndParses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wf, err := s.ActivateWorkflow(ctx, 12, "wf")
	require.NoError(t, err)

	writes := []core.FieldWrite{
		{Key: core.FieldReportStatus, Value: core.EnumValue("Pass"),
			Qualifiers: map[string]string{"values": "Pass,Fail,Review"}},
		{Key: core.FieldPerson, Value: core.PersonValue(901)},
		{Key: core.FieldTrainingScore, Value: core.IntValue(95)},
	}
	require.NoError(t, s.SaveFields(ctx, wf.ID, writes))

	fields, err := s.Fields(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pass", fields[core.FieldReportStatus].Text)
	assert.Equal(t, int64(901), fields[core.FieldPerson].PersonRef)
	assert.Equal(t, int64(95), fields[core.FieldTrainingScore].Int)

	// Second write updates in place.
	require.NoError(t, s.SaveFields(ctx, wf.ID, []core.FieldWrite{
		{Key: core.FieldReportStatus, Value: core.EnumValue("Fail")},
	}))
	fields, err = s.Fields(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fail", fields[core.FieldReportStatus].Text)
}

func TestPersonDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePerson(ctx, &core.Person{FirstName: "Ada", LastName: "Byrne", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, p.AliasID)

	got, err := s.PersonByAlias(ctx, p.AliasID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada", got.FirstName)

	none, err := s.PersonByAlias(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, none)

	candidates, err := s.CandidatesByLastName(ctx, "byrne")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestSaveFromURLAndFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake report"))
	}))
	defer srv.Close()

	s := newTestStore(t)
	ctx := context.Background()

	handle, err := s.SaveFromURL(ctx, srv.URL, "report.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, handle)

	filename, content, err := s.FileByHandle(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", filename)
	assert.Equal(t, "%PDF-1.4 fake report", string(content))

	_, _, err = s.FileByHandle(ctx, "missing")
	assert.Equal(t, core.ErrCatNotFound, core.CategoryOf(err))
}

func TestCatalogReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplacePackages(ctx, []CatalogPackage{
		{VendorID: 1, Name: "Basic", Code: "basic"},
		{VendorID: 2, Name: "Plus", Code: "plus"},
	}))
	require.NoError(t, s.ReplacePackages(ctx, []CatalogPackage{
		{VendorID: 3, Name: "Premium", Code: "premium"},
	}))

	packages, err := s.Packages(ctx)
	require.NoError(t, err)
	require.Len(t, packages, 1)
	assert.Equal(t, "premium", packages[0].Code)

	require.NoError(t, s.ReplaceTags(ctx, []CatalogTag{{VendorID: 9, Name: "Volunteers"}}))
	tags, err := s.Tags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)

	require.NoError(t, s.ReplaceSurveyTypes(ctx, []CatalogSurveyType{{Code: "sa", Name: "Safety Awareness"}}))
	types, err := s.SurveyTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "sa", types[0].Code)
}
