// Package grants handles grant applications and the committee review flow.
package grants

import (
	"errors"

	"github.com/pdp-edu/unimonitor/internal/eligibility"
)

var (
	// ErrInvalidState is returned when reviewing an application that was already decided.
	ErrInvalidState = errors.New("application already decided")
	// ErrNotEligible is returned when the student is not evaluated for the grant type.
	ErrNotEligible = errors.New("not eligible for grant type")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Application struct {
	ID                    string                `json:"id"`
	StudentID             string                `json:"studentId"`
	GrantType             eligibility.GrantType `json:"grantType"`
	AcademicYear          string                `json:"academicYear"`
	Status                Status                `json:"status"`
	EligibilityPercentage float64               `json:"eligibilityPercentage"`
	MotivationalLetter    string                `json:"motivationalLetter,omitempty"`
	InternshipDocument    string                `json:"internshipDocument,omitempty"`
	ReviewedBy            string                `json:"reviewedBy,omitempty"`
	ReviewNotes           string                `json:"reviewNotes,omitempty"`
	CreatedAt             int64                 `json:"createdAt"`
	UpdatedAt             int64                 `json:"updatedAt"`
}

// Stats feeds the committee dashboard. Per-type counts cover pending applications.
type Stats struct {
	PendingReviews   int `json:"pendingReviews"`
	GoldenMindsApps  int `json:"goldenMindsApps"`
	UnicornApps      int `json:"unicornApps"`
	ApprovedThisYear int `json:"approvedThisYear"`
}
