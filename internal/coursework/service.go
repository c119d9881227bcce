package coursework

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/records"
	"github.com/pdp-edu/unimonitor/internal/storage"
	syncx "github.com/pdp-edu/unimonitor/internal/sync"
)

const (
	upcomingLimit = 5
	recentLimit   = 20
	maxCodeBytes  = 1 << 20
)

type Repository interface {
	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListAssignments(ctx context.Context, dir records.Direction, year int) ([]Assignment, error)
	StartSession(ctx context.Context, se Session) (Session, error)
	EndSession(ctx context.Context, studentID, sessionID string, at int64) (Session, error)
	ListSessions(ctx context.Context, studentID string) ([]Session, error)
	CreateSubmission(ctx context.Context, sub Submission, sessionID string) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListSubmissionsByStudent(ctx context.Context, studentID string) ([]Submission, error)
	RecentSubmissions(ctx context.Context, limit int) ([]Submission, error)
	ReviewSubmission(ctx context.Context, id, reviewer string, grade eligibility.Grade, feedback string) (Submission, error)
	SubmittedAssignments(ctx context.Context, studentID string) (map[string]bool, error)
	CountByStatus(ctx context.Context, st Status) (int, error)
}

type EventRecorder interface {
	Record(ctx context.Context, typ, key string, payload any) error
}

type Service struct {
	repo   Repository
	blobs  storage.BlobStore
	events EventRecorder
	now    func() time.Time
}

func NewService(repo Repository, blobs storage.BlobStore, events EventRecorder) *Service {
	return &Service{repo: repo, blobs: blobs, events: events, now: time.Now}
}

func (s *Service) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	a.CreatedAt = s.now().Unix()
	return s.repo.CreateAssignment(ctx, a)
}

// Assignments lists the student's track.
func (s *Service) Assignments(ctx context.Context, st records.Student) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx, st.Direction, st.Year)
}

// Upcoming is the head of the student's track.
func (s *Service) Upcoming(ctx context.Context, st records.Student) ([]Assignment, error) {
	all, err := s.repo.ListAssignments(ctx, st.Direction, st.Year)
	if err != nil {
		return nil, err
	}
	if len(all) > upcomingLimit {
		all = all[:upcomingLimit]
	}
	return all, nil
}

// Current returns the first assignment of the track the student has not
// submitted yet, or nil when the track is complete or empty.
func (s *Service) Current(ctx context.Context, st records.Student) (*Assignment, error) {
	all, err := s.repo.ListAssignments(ctx, st.Direction, st.Year)
	if err != nil {
		return nil, err
	}
	done, err := s.repo.SubmittedAssignments(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if !done[all[i].ID] {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (s *Service) StartSession(ctx context.Context, studentID, assignmentID string) (Session, error) {
	if assignmentID != "" {
		if _, err := s.repo.GetAssignment(ctx, assignmentID); err != nil {
			return Session{}, err
		}
	}
	return s.repo.StartSession(ctx, Session{StudentID: studentID, AssignmentID: assignmentID, StartTime: s.now().Unix()})
}

func (s *Service) EndSession(ctx context.Context, studentID, sessionID string) (Session, error) {
	return s.repo.EndSession(ctx, studentID, sessionID, s.now().Unix())
}

func (s *Service) Sessions(ctx context.Context, studentID string) ([]Session, error) {
	return s.repo.ListSessions(ctx, studentID)
}

type SubmitInput struct {
	Student      records.Student
	AssignmentID string
	Code         string
	SessionID    string // optional; an open session is closed with the submission
}

// Submit stores the code in the blob store and records the submission. The
// assignment must belong to the student's track. Nothing is kept when a step
// fails: the code blob is removed and the session stays open.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Submission, error) {
	if strings.TrimSpace(in.Code) == "" {
		return Submission{}, fmt.Errorf("%w: code required", records.ErrInvalidInput)
	}
	if len(in.Code) > maxCodeBytes {
		return Submission{}, fmt.Errorf("%w: code exceeds %d bytes", records.ErrInvalidInput, maxCodeBytes)
	}
	a, err := s.repo.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if a.Direction != in.Student.Direction || a.Year != in.Student.Year {
		return Submission{}, fmt.Errorf("%w: assignment %s is not in the %s year %d track",
			records.ErrInvalidInput, a.ID, in.Student.Direction, in.Student.Year)
	}

	sub := Submission{
		ID:           uuid.NewString(),
		AssignmentID: a.ID,
		StudentID:    in.Student.ID,
		SubmittedAt:  s.now().Unix(),
	}
	key, err := s.blobs.Put(path.Join("submissions", sub.StudentID, sub.ID+".txt"), strings.NewReader(in.Code))
	if err != nil {
		return Submission{}, fmt.Errorf("store code: %w", err)
	}
	sub.CodeKey = key

	created, err := s.repo.CreateSubmission(ctx, sub, in.SessionID)
	if err != nil {
		if derr := s.blobs.Delete(key); derr != nil {
			log.Printf("coursework: drop code %s: %v", key, derr)
		}
		return Submission{}, err
	}
	sub = created
	s.record(ctx, syncx.TypeSubmissionCreated, sub.ID, map[string]string{
		"studentId": sub.StudentID, "assignmentId": sub.AssignmentID,
	})
	return sub, nil
}

func (s *Service) History(ctx context.Context, studentID string) ([]Submission, error) {
	return s.repo.ListSubmissionsByStudent(ctx, studentID)
}

// PendingReviews counts submissions waiting for a teacher.
func (s *Service) PendingReviews(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, StatusSubmitted)
}

func (s *Service) Recent(ctx context.Context) ([]Submission, error) {
	return s.repo.RecentSubmissions(ctx, recentLimit)
}

// Get loads a submission together with its code.
func (s *Service) Get(ctx context.Context, id string) (Submission, error) {
	sub, err := s.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	rc, err := s.blobs.Get(sub.CodeKey)
	if err != nil {
		return Submission{}, fmt.Errorf("load code: %w", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxCodeBytes))
	if err != nil {
		return Submission{}, fmt.Errorf("load code: %w", err)
	}
	sub.Code = string(b)
	return sub, nil
}

func (s *Service) Review(ctx context.Context, id, reviewerID string, grade eligibility.Grade, feedback string) (Submission, error) {
	if !records.ValidGrade(grade) {
		return Submission{}, fmt.Errorf("%w: grade %q", records.ErrInvalidInput, grade)
	}
	sub, err := s.repo.ReviewSubmission(ctx, id, reviewerID, grade, strings.TrimSpace(feedback))
	if err != nil {
		return Submission{}, err
	}
	s.record(ctx, syncx.TypeSubmissionReviewed, sub.ID, map[string]string{
		"grade": string(grade), "reviewedBy": reviewerID,
	})
	return sub, nil
}

func (s *Service) record(ctx context.Context, typ, key string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, typ, key, payload); err != nil {
		log.Printf("coursework: event %s %s: %v", typ, key, err)
	}
}
