package ministrysafe

import (
	"bytes"
	"strconv"
	"time"
)

// FlexID is a numeric id that the vendor serializes sometimes as a JSON
// number and sometimes as a string, depending on the endpoint.
type FlexID int64

// UnmarshalJSON accepts both forms.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*f = FlexID(n)
	return nil
}

// Int64 returns the id as an int64.
func (f FlexID) Int64() int64 { return int64(f) }

// User is a vendor-side participant.
type User struct {
	ID             FlexID `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	ExternalID     string `json:"external_id"`
	UserType       string `json:"user_type"`
	Score          *int   `json:"score"`
	CompleteDate   string `json:"complete_date"`
	DirectLoginURL string `json:"direct_login_url"`
}

// Training is one training assignment with its completion state. The
// participant is embedded on list endpoints and webhook payloads.
type Training struct {
	ID             FlexID `json:"id"`
	UserID         FlexID `json:"user_id"`
	SurveyCode     string `json:"survey_code"`
	SurveyName     string `json:"survey_name"`
	Score          *int   `json:"score"`
	CompleteDate   string `json:"complete_date"`
	CertificateURL string `json:"certificate_url"`
	CreatedAt      string `json:"created_at"`
	Participant    *User  `json:"participant"`
}

// BackgroundCheck is one vendor background check order.
type BackgroundCheck struct {
	ID                    FlexID `json:"id"`
	UserID                FlexID `json:"user_id"`
	UserExternalID        string `json:"user_external_id"`
	OrderDate             string `json:"order_date"`
	CompleteDate          string `json:"complete_date"`
	Status                string `json:"status"`
	ResultsURL            string `json:"results_url"`
	ApplicantInterfaceURL string `json:"applicant_interface_url"`
	Flagged               *bool  `json:"tazwork_flagged"`
	Level                 *int   `json:"level"`
	PackageCode           string `json:"custom_background_check_package_code"`
}

// Package is a purchasable custom background check package.
type Package struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Tag is a vendor-side label attached to users.
type Tag struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
}

// SurveyType is one assignable training curriculum.
type SurveyType struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// UserParams carries the writable fields for user create and update calls.
type UserParams struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	UserType   string `json:"user_type,omitempty"`
	TagList    string `json:"tag_list,omitempty"`
}

// CheckParams carries the fields for ordering a background check.
type CheckParams struct {
	UserID      int64  `json:"user_id"`
	Level       *int   `json:"level,omitempty"`
	PackageCode string `json:"custom_background_check_package_code,omitempty"`
}

// dateLayouts are the formats observed in vendor responses.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05 MST",
	"2006-01-02",
}

// ParseTime parses a vendor timestamp string. Returns nil for blank or
// unparseable input rather than an error; callers treat unknown dates as
// absent.
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
