package models

import (
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Inquiry sources
const (
	SourceWebsite = "website"
	SourceLanding = "landing"
	SourcePhone   = "phone"
	SourceWalkIn  = "walk_in"
	SourceSocial  = "social"
	SourceOther   = "other"
)

// Inquiry statuses
const (
	InquiryStatusNew       = "new"
	InquiryStatusContacted = "contacted"
	InquiryStatusQualified = "qualified"
	InquiryStatusClosed    = "closed"
	InquiryStatusLost      = "lost"
)

// Inquiry priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Inquiry is a lead captured by the public site.
type Inquiry struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      *string    `json:"email,omitempty"`
	Message    *string    `json:"message,omitempty"`
	Source     string     `json:"source"`
	Platform   *string    `json:"platform,omitempty"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	Notes      string     `json:"notes"`
	FollowUps  FollowUps  `json:"followUps"`
	AssignedTo *string    `json:"assignedTo,omitempty"`
	CreatedBy  *string    `json:"createdBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// FollowUp is one entry in an inquiry's contact log.
type FollowUp struct {
	Note      string    `json:"note"`
	AdminID   string    `json:"adminId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FollowUps is stored as JSONB
type FollowUps []FollowUp

// Scan implements sql.Scanner for JSONB
func (f *FollowUps) Scan(value interface{}) error {
	if value == nil {
		*f = FollowUps{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return ErrBadRequest
	}

	var out []FollowUp
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if out == nil {
		out = []FollowUp{}
	}
	*f = out
	return nil
}

// Value implements driver.Valuer for JSONB
func (f FollowUps) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]FollowUp(f))
}

// InquiryFilter narrows List results. Empty fields are ignored.
type InquiryFilter struct {
	Status     string
	Priority   string
	Source     string
	AssignedTo string
	Limit      int
	Offset     int
}

var mobilePattern = regexp.MustCompile(`^09\d{9}$`)

// NormalizePhone strips separators and folds +98/0098 into the local 0 prefix.
func NormalizePhone(phone string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	p := r.Replace(strings.TrimSpace(phone))
	switch {
	case strings.HasPrefix(p, "+98"):
		p = "0" + p[3:]
	case strings.HasPrefix(p, "0098"):
		p = "0" + p[4:]
	}
	return p
}

// IsValidMobile checks a phone number against the national mobile pattern.
func IsValidMobile(phone string) bool {
	return mobilePattern.MatchString(NormalizePhone(phone))
}

// IsValidInquiryStatus checks a status against the known set
func IsValidInquiryStatus(s string) bool {
	switch s {
	case InquiryStatusNew, InquiryStatusContacted, InquiryStatusQualified, InquiryStatusClosed, InquiryStatusLost:
		return true
	}
	return false
}

// IsValidSource checks a lead source against the known set
func IsValidSource(s string) bool {
	switch s {
	case SourceWebsite, SourceLanding, SourcePhone, SourceWalkIn, SourceSocial, SourceOther:
		return true
	}
	return false
}

// IsValidPriority checks a priority against the known set
func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}
