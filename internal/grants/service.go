package grants

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

// RecordSource provides the consistent academic snapshot the evaluator needs.
type RecordSource interface {
	Snapshot(ctx context.Context, studentID string) (eligibility.AcademicRecord, error)
}

type Repository interface {
	Create(ctx context.Context, a Application) (Application, error)
	Get(ctx context.Context, id string) (Application, error)
	ListPending(ctx context.Context) ([]Application, error)
	ListByStudent(ctx context.Context, studentID string) ([]Application, error)
	Decide(ctx context.Context, id string, status Status, reviewer, notes string, at int64) (Application, error)
	Stats(ctx context.Context, academicYear string) (Stats, error)
}

type EventRecorder interface {
	Record(ctx context.Context, typ, key string, payload any) error
}

type Service struct {
	records RecordSource
	repo    Repository
	blobs   storage.BlobStore
	events  EventRecorder
	eval    *eligibility.Evaluator
	now     func() time.Time
}

func NewService(rs RecordSource, repo Repository, blobs storage.BlobStore, events EventRecorder) *Service {
	return &Service{
		records: rs,
		repo:    repo,
		blobs:   blobs,
		events:  events,
		eval:    eligibility.Default(),
		now:     time.Now,
	}
}

// Eligibility evaluates both programs against a single snapshot of the student's record.
func (s *Service) Eligibility(ctx context.Context, studentID string) (eligibility.Result, error) {
	rec, err := s.records.Snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.eval.EvaluateRecord(rec)
}

type ApplyInput struct {
	StudentID          string
	GrantType          string
	AcademicYear       string // defaults to the current academic year
	MotivationalLetter string
	Document           io.Reader // optional internship document
	DocumentName       string
}

// Apply files a pending application carrying the student's current score for
// the grant type. Students outside the program's years get ErrNotEligible.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (Application, error) {
	gt, err := s.eval.ParseGrantType(in.GrantType)
	if err != nil {
		return Application{}, fmt.Errorf("%w: %v", records.ErrInvalidInput, err)
	}
	res, err := s.Eligibility(ctx, in.StudentID)
	if err != nil {
		return Application{}, err
	}
	rep := res.ByGrant(gt)
	if rep == nil {
		return Application{}, fmt.Errorf("%s: %w", gt, ErrNotEligible)
	}

	now := s.now()
	app := Application{
		ID:                    uuid.NewString(),
		StudentID:             in.StudentID,
		GrantType:             gt,
		AcademicYear:          in.AcademicYear,
		EligibilityPercentage: float64(rep.Percentage),
		MotivationalLetter:    strings.TrimSpace(in.MotivationalLetter),
		CreatedAt:             now.Unix(),
	}
	if app.AcademicYear == "" {
		app.AcademicYear = records.CurrentAcademicYear(now)
	}
	if in.Document != nil {
		key, err := s.blobs.Put(documentKey(app, in.DocumentName), in.Document)
		if err != nil {
			return Application{}, fmt.Errorf("store internship document: %w", err)
		}
		app.InternshipDocument = key
	}

	created, err := s.repo.Create(ctx, app)
	if err != nil {
		if app.InternshipDocument != "" {
			if derr := s.blobs.Delete(app.InternshipDocument); derr != nil {
				log.Printf("grants: drop document %s: %v", app.InternshipDocument, derr)
			}
		}
		return Application{}, err
	}
	app = created
	s.record(ctx, syncx.TypeGrantApplied, app.ID, map[string]any{
		"studentId": app.StudentID, "grantType": app.GrantType, "percentage": app.EligibilityPercentage,
	})
	return app, nil
}

func documentKey(a Application, name string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 6 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return path.Join("internships", a.StudentID, a.ID+ext)
}

func (s *Service) Pending(ctx context.Context) ([]Application, error) {
	return s.repo.ListPending(ctx)
}

func (s *Service) ListForStudent(ctx context.Context, studentID string) ([]Application, error) {
	return s.repo.ListByStudent(ctx, studentID)
}

func (s *Service) Get(ctx context.Context, id string) (Application, error) {
	return s.repo.Get(ctx, id)
}

// Review approves or rejects a pending application.
func (s *Service) Review(ctx context.Context, id, reviewerID string, approve bool, notes string) (Application, error) {
	st := StatusRejected
	if approve {
		st = StatusApproved
	}
	app, err := s.repo.Decide(ctx, id, st, reviewerID, strings.TrimSpace(notes), s.now().Unix())
	if err != nil {
		return Application{}, err
	}
	s.record(ctx, syncx.TypeGrantReviewed, app.ID, map[string]any{
		"status": app.Status, "reviewedBy": reviewerID,
	})
	return app, nil
}

func (s *Service) CommitteeStats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx, records.CurrentAcademicYear(s.now()))
}

// Document opens the stored internship document of an application.
func (s *Service) Document(ctx context.Context, id string) (io.ReadCloser, error) {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.InternshipDocument == "" {
		return nil, fmt.Errorf("application %s has no document: %w", id, records.ErrNotFound)
	}
	return s.blobs.Get(app.InternshipDocument)
}

// record appends to the event log; failures are logged, not returned.
func (s *Service) record(ctx context.Context, typ, key string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, typ, key, payload); err != nil {
		log.Printf("grants: event %s %s: %v", typ, key, err)
	}
}
