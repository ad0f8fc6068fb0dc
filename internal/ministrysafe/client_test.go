package ministrysafe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:     srv.URL,
		AccessToken: "test-token",
		Timeout:     5 * time.Second,
	}, logging.NewNop())
}

func TestGetUserSendsTokenAuth(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/users/42", r.URL.Path)
		json.NewEncoder(w).Encode(User{ID: 42, FirstName: "Ada", LastName: "Byrne"})
	})

	u, err := c.GetUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Token token=test-token", gotAuth)
	assert.Equal(t, int64(42), u.ID.Int64())
	assert.Equal(t, "Ada", u.FirstName)
}

func TestGetUserByExternalRef(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pa901", r.URL.Query().Get("external_id"))
		json.NewEncoder(w).Encode([]User{{ID: 7, ExternalID: "pa901"}})
	})

	u, err := c.GetUserByExternalRef(context.Background(), "pa901")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "pa901", u.ExternalID)
}

func TestGetUserByExternalRefNoMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]User{})
	})

	u, err := c.GetUserByExternalRef(context.Background(), "pa1")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestAuthFailureIsAuthError(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		_, err := c.GetUser(context.Background(), 1)
		require.Error(t, err)
		assert.Equal(t, core.ErrCatAuth, core.CategoryOf(err), "status %d", status)
	}
}

func TestServerErrorIsVendorError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	_, err := c.GetBackgroundCheck(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, core.ErrCatVendor, core.CategoryOf(err))
	assert.Contains(t, err.Error(), "502")
}

func TestCreateBackgroundCheckBody(t *testing.T) {
	level := 2
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/background_checks", r.URL.Path)

		var body map[string]CheckParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(31), body["background_check"].UserID)
		assert.Equal(t, 2, *body["background_check"].Level)

		json.NewEncoder(w).Encode(BackgroundCheck{ID: 100, UserID: 31, Status: "pending"})
	})

	bc, err := c.CreateBackgroundCheck(context.Background(), CheckParams{UserID: 31, Level: &level})
	require.NoError(t, err)
	assert.Equal(t, int64(100), bc.ID.Int64())
	assert.Equal(t, "pending", bc.Status)
}

func TestListBackgroundChecksDateWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "2026-08-01", q.Get("start_date"))
		assert.Equal(t, "2026-08-31", q.Get("end_date"))
		json.NewEncoder(w).Encode([]BackgroundCheck{})
	})

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	checks, err := c.ListBackgroundChecks(context.Background(), 3, start, end)
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestAssignTrainingQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/5/assign_training", r.URL.Path)
		assert.Equal(t, "skillsafe", r.URL.Query().Get("survey_code"))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.AssignTraining(context.Background(), 5, "skillsafe"))
}

func TestFlexIDAcceptsStringAndNumber(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"123"}`), &u))
	assert.Equal(t, int64(123), u.ID.Int64())

	require.NoError(t, json.Unmarshal([]byte(`{"id":456}`), &u))
	assert.Equal(t, int64(456), u.ID.Int64())

	require.NoError(t, json.Unmarshal([]byte(`{"id":null}`), &u))
	assert.Equal(t, int64(0), u.ID.Int64())
}

func TestParseTime(t *testing.T) {
	assert.Nil(t, ParseTime(""))
	assert.Nil(t, ParseTime("not a date"))

	got := ParseTime("2026-04-09T10:30:00Z")
	require.NotNil(t, got)
	assert.Equal(t, 2026, got.Year())

	got = ParseTime("2026-04-09")
	require.NotNil(t, got)
	assert.Equal(t, time.April, got.Month())
}

func TestRateLimiterBlocksAndRefills(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxTokens: 1, RefillRate: 50})

	require.True(t, rl.TryAcquire())
	// The bucket is empty now; a blocking acquire must wait for refill.
	start := time.Now()
	require.NoError(t, rl.Acquire(context.Background()))
	assert.Greater(t, time.Since(start), time.Duration(0))
}

func TestRateLimiterHonorsCancel(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxTokens: 1, RefillRate: 0.001})
	require.True(t, rl.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
