// Package ministrysafe is the HTTP client for the vendor API. It owns
// authentication, rate limiting and error classification; callers get typed
// DTOs and domain errors.
package ministrysafe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/logging"
)

// Config configures the vendor client.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	RateLimit   RateLimiterConfig
}

// Client talks to the vendor API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *logging.Logger
}

// New creates a vendor client.
func New(cfg Config, logger *logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit.MaxTokens <= 0 {
		cfg.RateLimit = DefaultRateLimiterConfig()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    NewRateLimiter(cfg.RateLimit),
		logger:     logger.WithComponent("vendor"),
	}
}

// GetUser fetches a user by vendor id.
func (c *Client) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/%d", id), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByExternalRef fetches the user carrying the given external
// reference, or nil when none exists.
func (c *Client) GetUserByExternalRef(ctx context.Context, ref string) (*User, error) {
	q := url.Values{"external_id": {ref}}
	var users []User
	if err := c.do(ctx, http.MethodGet, "users", q, nil, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// GetUsers fetches one page of users. Pages start at 1; an empty slice marks
// the end.
func (c *Client) GetUsers(ctx context.Context, page int) ([]User, error) {
	q := url.Values{"page": {strconv.Itoa(page)}}
	var users []User
	if err := c.do(ctx, http.MethodGet, "users", q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates a vendor user.
func (c *Client) CreateUser(ctx context.Context, params UserParams) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPost, "users", nil, map[string]any{"user": params}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser updates a vendor user.
func (c *Client) UpdateUser(ctx context.Context, id int64, params UserParams) (*User, error) {
	var u User
	path := fmt.Sprintf("users/%d", id)
	if err := c.do(ctx, http.MethodPut, path, nil, map[string]any{"user": params}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AssignTraining assigns a survey to a user. An empty surveyCode assigns the
// vendor's default curriculum.
func (c *Client) AssignTraining(ctx context.Context, userID int64, surveyCode string) error {
	q := url.Values{}
	if surveyCode != "" {
		q.Set("survey_code", surveyCode)
	}
	path := fmt.Sprintf("users/%d/assign_training", userID)
	return c.do(ctx, http.MethodPost, path, q, nil, nil)
}

// ResendTraining re-sends the invitation email for a user's open training.
func (c *Client) ResendTraining(ctx context.Context, userID int64) error {
	path := fmt.Sprintf("users/%d/resend_training", userID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

// GetTrainingsForUser fetches all trainings assigned to a user.
func (c *Client) GetTrainingsForUser(ctx context.Context, userID int64) ([]Training, error) {
	var trainings []Training
	path := fmt.Sprintf("users/%d/trainings", userID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &trainings); err != nil {
		return nil, err
	}
	return trainings, nil
}

// CreateBackgroundCheck orders a background check.
func (c *Client) CreateBackgroundCheck(ctx context.Context, params CheckParams) (*BackgroundCheck, error) {
	var bc BackgroundCheck
	body := map[string]any{"background_check": params}
	if err := c.do(ctx, http.MethodPost, "background_checks", nil, body, &bc); err != nil {
		return nil, err
	}
	return &bc, nil
}

// GetBackgroundCheck fetches one background check by vendor id.
func (c *Client) GetBackgroundCheck(ctx context.Context, id int64) (*BackgroundCheck, error) {
	var bc BackgroundCheck
	path := fmt.Sprintf("background_checks/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &bc); err != nil {
		return nil, err
	}
	return &bc, nil
}

// ArchiveBackgroundCheck archives a check on the vendor side.
func (c *Client) ArchiveBackgroundCheck(ctx context.Context, id int64) error {
	path := fmt.Sprintf("background_checks/%d/archive", id)
	return c.do(ctx, http.MethodPut, path, nil, nil, nil)
}

// ListBackgroundChecks fetches one page of checks in a date window. Pages
// start at 1; an empty slice marks the end.
func (c *Client) ListBackgroundChecks(ctx context.Context, page int, start, end time.Time) ([]BackgroundCheck, error) {
	q := dateWindowQuery(page, start, end)
	var checks []BackgroundCheck
	if err := c.do(ctx, http.MethodGet, "background_checks", q, nil, &checks); err != nil {
		return nil, err
	}
	return checks, nil
}

// ListTrainings fetches one page of trainings in a date window.
func (c *Client) ListTrainings(ctx context.Context, page int, start, end time.Time) ([]Training, error) {
	q := dateWindowQuery(page, start, end)
	var trainings []Training
	if err := c.do(ctx, http.MethodGet, "trainings", q, nil, &trainings); err != nil {
		return nil, err
	}
	return trainings, nil
}

// GetPackages fetches the custom background check packages for the account.
func (c *Client) GetPackages(ctx context.Context) ([]Package, error) {
	var packages []Package
	if err := c.do(ctx, http.MethodGet, "custom_background_check_packages", nil, nil, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

// GetTags fetches the account's tags.
func (c *Client) GetTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.do(ctx, http.MethodGet, "tags", nil, nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// GetUserTags fetches the tags attached to one user.
func (c *Client) GetUserTags(ctx context.Context, userID int64) ([]Tag, error) {
	var tags []Tag
	path := fmt.Sprintf("users/%d/tags", userID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// GetSurveyTypes fetches the assignable training curricula.
func (c *Client) GetSurveyTypes(ctx context.Context) ([]SurveyType, error) {
	var types []SurveyType
	if err := c.do(ctx, http.MethodGet, "survey_types", nil, nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

func dateWindowQuery(page int, start, end time.Time) url.Values {
	q := url.Values{"page": {strconv.Itoa(page)}}
	if !start.IsZero() {
		q.Set("start_date", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		q.Set("end_date", end.Format("2006-01-02"))
	}
	return q
}

// do performs one API call. Responses outside 2xx become domain errors:
// 401/403 is an auth error so callers can surface a credential problem
// distinctly from transient vendor failures.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return core.ErrTimeout("cancelled while waiting for vendor rate limiter").WithCause(err)
	}

	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return core.ErrInternal("encoding request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return core.ErrInternal("building vendor request", err)
	}
	req.Header.Set("Authorization", "Token token="+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.ErrVendor("VENDOR_UNREACHABLE", "vendor request failed").WithCause(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("vendor call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.ErrAuth("vendor rejected the access token").
			WithDetail("status", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.ErrVendor("VENDOR_STATUS", fmt.Sprintf("vendor returned %d", resp.StatusCode)).
			WithDetail("body", string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.ErrVendor("VENDOR_DECODE", "decoding vendor response").WithCause(err)
	}
	return nil
}
