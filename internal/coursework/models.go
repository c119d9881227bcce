// Package coursework tracks programming assignments, coding sessions and code submissions.
package coursework

import (
	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/records"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusReviewed   Status = "reviewed"
)

type Assignment struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Direction   records.Direction `json:"direction"`
	Year        int               `json:"year"`
	OrderIndex  int               `json:"orderIndex"`
	DueDate     *int64            `json:"dueDate"`
	CreatedBy   string            `json:"createdBy"`
	CreatedAt   int64             `json:"createdAt"`
}

type Submission struct {
	ID           string            `json:"id"`
	AssignmentID string            `json:"assignmentId"`
	StudentID    string            `json:"studentId"`
	CodeKey      string            `json:"-"`
	Code         string            `json:"code,omitempty"`
	Status       Status            `json:"status"`
	SubmittedAt  int64             `json:"submittedAt"`
	ReviewedBy   string            `json:"reviewedBy,omitempty"`
	Feedback     string            `json:"feedback,omitempty"`
	Grade        eligibility.Grade `json:"grade,omitempty"`
}

type Session struct {
	ID              string   `json:"id"`
	StudentID       string   `json:"studentId"`
	AssignmentID    string   `json:"assignmentId,omitempty"`
	StartTime       int64    `json:"startTime"`
	EndTime         *int64   `json:"endTime"`
	DurationMinutes *float64 `json:"durationMinutes"`
}
