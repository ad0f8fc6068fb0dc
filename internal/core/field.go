package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldKind declares the primitive type of a workflow field. Fields are
// created lazily on first write with a declared kind.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindInteger   FieldKind = "integer"
	KindDate      FieldKind = "date"
	KindEnum      FieldKind = "enum"
	KindPersonRef FieldKind = "person"
	KindFile      FieldKind = "file"
)

// Workflow field keys written by this subsystem. These are contract names:
// the host workflow definitions reference them by key.
const (
	FieldPerson                = "Person"
	FieldReportStatus          = "ReportStatus"
	FieldReport                = "Report"
	FieldReportRecommendation  = "ReportRecommendation"
	FieldReportFile            = "ReportFile"
	FieldApplicantInterfaceURL = "ApplicantInterfaceUrl"
	FieldDirectLoginURL        = "DirectLoginUrl"
	FieldRequestStatus         = "RequestStatus"
	FieldRequestMessage        = "RequestMessage"
	FieldTrainingScore         = "TrainingScore"
	FieldTrainingDate          = "TrainingDate"
	FieldSurveyType            = "SurveyType"
	FieldUserTags              = "UserTags"
)

// FieldValue is a tagged variant covering the declared kinds the connector
// writes. The zero value is a blank text field.
type FieldValue struct {
	Kind      FieldKind
	Text      string
	Int       int64
	Date      time.Time
	PersonRef int64
}

// TextValue returns a text field value.
func TextValue(s string) FieldValue { return FieldValue{Kind: KindText, Text: s} }

// IntValue returns an integer field value.
func IntValue(n int64) FieldValue { return FieldValue{Kind: KindInteger, Int: n} }

// DateValue returns a date field value.
func DateValue(t time.Time) FieldValue { return FieldValue{Kind: KindDate, Date: t} }

// EnumValue returns a single-select field value.
func EnumValue(s string) FieldValue { return FieldValue{Kind: KindEnum, Text: s} }

// PersonValue returns a person-reference field value.
func PersonValue(aliasID int64) FieldValue {
	return FieldValue{Kind: KindPersonRef, PersonRef: aliasID}
}

// FileValue returns a binary-attachment field value holding a stored-file
// handle.
func FileValue(handle string) FieldValue { return FieldValue{Kind: KindFile, Text: handle} }

// Blank reports whether the value carries no information. The staleness rules
// in the reconciliation engine hinge on this: a blank incoming value must
// never overwrite a non-blank stored one.
func (v FieldValue) Blank() bool {
	switch v.Kind {
	case KindInteger:
		return false
	case KindDate:
		return v.Date.IsZero()
	case KindPersonRef:
		return v.PersonRef == 0
	default:
		return strings.TrimSpace(v.Text) == ""
	}
}

// String renders the value in its stored text form.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDate:
		if v.Date.IsZero() {
			return ""
		}
		return v.Date.Format(time.RFC3339)
	case KindPersonRef:
		if v.PersonRef == 0 {
			return ""
		}
		return fmt.Sprintf("pa%d", v.PersonRef)
	default:
		return v.Text
	}
}

// ParseFieldValue reconstructs a FieldValue from its stored text form.
func ParseFieldValue(kind FieldKind, raw string) FieldValue {
	switch kind {
	case KindInteger:
		n, _ := strconv.ParseInt(raw, 10, 64)
		return IntValue(n)
	case KindDate:
		if raw == "" {
			return FieldValue{Kind: KindDate}
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return FieldValue{Kind: KindDate}
		}
		return DateValue(t)
	case KindPersonRef:
		n, _ := strconv.ParseInt(strings.TrimPrefix(raw, "pa"), 10, 64)
		return PersonValue(n)
	case KindEnum:
		return EnumValue(raw)
	case KindFile:
		return FileValue(raw)
	default:
		return TextValue(raw)
	}
}

// FieldSet is the sparse field map attached to a workflow instance, as
// re-read from durable storage.
type FieldSet map[string]FieldValue

// Get returns the value for key and whether the field exists at all.
func (fs FieldSet) Get(key string) (FieldValue, bool) {
	v, ok := fs[key]
	return v, ok
}

// Blank reports whether the field is absent or holds no information.
func (fs FieldSet) Blank(key string) bool {
	v, ok := fs[key]
	return !ok || v.Blank()
}

// Declared reports whether the field exists on the workflow, regardless of
// whether it holds a value.
func (fs FieldSet) Declared(key string) bool {
	_, ok := fs[key]
	return ok
}

// FieldWrite is one pending field mutation. Qualifiers configure the field
// definition on first use (e.g. the enum value list).
type FieldWrite struct {
	Key        string
	Value      FieldValue
	Qualifiers map[string]string
}
