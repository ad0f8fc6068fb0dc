package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportWindowDefaults(t *testing.T) {
	importStart, importEnd, importDays = "", "", 30
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	start, end, err := importWindow(now)
	require.NoError(t, err)
	assert.Equal(t, now, end)
	assert.Equal(t, now.AddDate(0, 0, -30), start)
}

func TestImportWindowExplicit(t *testing.T) {
	importStart, importEnd = "2026-08-01", "2026-08-31"
	t.Cleanup(func() { importStart, importEnd = "", "" })

	start, end, err := importWindow(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01", start.Format("2006-01-02"))
	assert.Equal(t, "2026-08-31", end.Format("2006-01-02"))
}

func TestImportWindowRejectsInverted(t *testing.T) {
	importStart, importEnd = "2026-08-31", "2026-08-01"
	t.Cleanup(func() { importStart, importEnd = "", "" })

	_, _, err := importWindow(time.Now())
	require.Error(t, err)
}

func TestImportWindowRejectsBadDate(t *testing.T) {
	importStart, importEnd = "not-a-date", ""
	t.Cleanup(func() { importStart, importEnd = "", "" })

	_, _, err := importWindow(time.Now())
	require.Error(t, err)
}
