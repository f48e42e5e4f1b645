package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mbolis/quick-apply/catalog"
	"github.com/mbolis/quick-apply/integration"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/metrics"
	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/notify"
	"github.com/mbolis/quick-apply/scoring"
	"github.com/mbolis/quick-apply/store"
	"github.com/mbolis/quick-apply/upload"
)

var (
	ErrInFlight    = errors.New("an application for this role is already being processed")
	ErrNotVerified = errors.New("contact not verified")
)

type Resume struct {
	Name string
	Body io.Reader
}

type Request struct {
	Form   Form
	Resume *Resume
}

// Verifier is consulted when verified contacts are required. Verified
// checks before any work is done; Consume spends the marker once the
// application is stored.
type Verifier interface {
	Verified(ctx context.Context, email, phone string) (bool, error)
	Consume(ctx context.Context, email, phone string) (bool, error)
}

type Options struct {
	RequireResume bool
	// Verifier is nil when submissions need no prior verification.
	Verifier      Verifier
	NotifyTimeout time.Duration
}

type Service struct {
	catalog *catalog.Catalog
	scorer  scoring.Scorer
	store   store.Store
	uploads *upload.Dir
	email   notify.EmailSender
	guard   *Guard
	opts    Options
}

func NewService(c *catalog.Catalog, scorer scoring.Scorer, st store.Store, uploads *upload.Dir, email notify.EmailSender, opts Options) *Service {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &Service{
		catalog: c,
		scorer:  scorer,
		store:   st,
		uploads: uploads,
		email:   email,
		guard:   NewGuard(),
		opts:    opts,
	}
}

func (s *Service) Close() {
	s.guard.Close()
}

// Submit validates, scores and stores one application, then sends the
// confirmation email. Only validation, verification, duplicate and storage
// failures are returned; optional integrations degrade silently.
func (s *Service) Submit(ctx context.Context, req Request) (model.Application, error) {
	a, role, err := Validate(req.Form, s.catalog)
	if err != nil {
		metrics.ApplicationsRejected.WithLabelValues("invalid").Inc()
		return a, err
	}
	if req.Resume == nil && s.opts.RequireResume {
		metrics.ApplicationsRejected.WithLabelValues("invalid").Inc()
		return a, &ValidationError{Fields: []FieldError{{"resume", "is required"}}}
	}

	key := strings.ToLower(a.Email) + "|" + a.JobRole
	if !s.guard.Acquire(key) {
		metrics.ApplicationsRejected.WithLabelValues("in_flight").Inc()
		return a, ErrInFlight
	}
	defer s.guard.Release(key)

	metrics.SubmissionsInFlight.Inc()
	defer metrics.SubmissionsInFlight.Dec()

	if s.opts.Verifier != nil {
		// one marker per contact, even across roles
		contact := "verify|" + strings.ToLower(a.Email)
		if !s.guard.Acquire(contact) {
			metrics.ApplicationsRejected.WithLabelValues("in_flight").Inc()
			return a, ErrInFlight
		}
		defer s.guard.Release(contact)

		ok, err := s.opts.Verifier.Verified(ctx, a.Email, a.Phone)
		if err != nil {
			return a, fmt.Errorf("check verification: %w", err)
		}
		if !ok {
			metrics.ApplicationsRejected.WithLabelValues("not_verified").Inc()
			return a, ErrNotVerified
		}
	}

	var resumeText string
	if req.Resume != nil {
		saved, err := s.uploads.Save(req.Resume.Name, req.Resume.Body)
		if err != nil {
			if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrTooLarge) || errors.Is(err, upload.ErrEmpty) {
				metrics.ApplicationsRejected.WithLabelValues("invalid").Inc()
				return a, &ValidationError{Fields: []FieldError{{"resume", err.Error()}}}
			}
			return a, fmt.Errorf("save resume: %w", err)
		}
		a.Resume = saved.Name
		resumeText = saved.Text
	}

	start := time.Now()
	score, err := s.scorer.Score(ctx, scoring.Input{
		Role:          role,
		Experience:    a.Experience,
		Qualification: a.Qualification,
		Answers:       a.Answers,
		ResumeText:    resumeText,
	})
	metrics.ScoringDuration.WithLabelValues(score.Scorer).Observe(time.Since(start).Seconds())
	if err != nil {
		reportIntegration("scoring", err)
	}
	a.Score, a.Result, a.Scorer = score.Value, score.Result, score.Scorer

	if err := s.store.Append(ctx, &a); err != nil {
		return a, fmt.Errorf("store application: %w", err)
	}
	metrics.ApplicationsSubmitted.WithLabelValues(a.JobRole, a.Result).Inc()
	if s.opts.Verifier != nil {
		if _, err := s.opts.Verifier.Consume(context.WithoutCancel(ctx), a.Email, a.Phone); err != nil {
			log.WithFields(log.Fields{"id": a.ID}).WithError(err).Warn("submission.verify.consume")
		}
	}
	log.WithFields(log.Fields{
		"id":     a.ID,
		"role":   a.JobRole,
		"score":  a.Score,
		"result": a.Result,
		"scorer": a.Scorer,
	}).Info("submission.stored")

	s.confirm(ctx, a)
	return a, nil
}

func (s *Service) confirm(ctx context.Context, a model.Application) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()

	subject, body := notify.Confirmation(a)
	if err := s.email.SendEmail(ctx, a.Email, subject, body); err != nil {
		reportIntegration("email", err)
	}
}

func reportIntegration(service string, err error) {
	var ie *integration.Error
	if !errors.As(err, &ie) {
		ie = integration.Classify(service, err).(*integration.Error)
	}

	metrics.IntegrationFailures.WithLabelValues(ie.Service, ie.Kind.String()).Inc()
	entry := log.WithFields(log.Fields{"service": ie.Service, "kind": ie.Kind.String()}).WithError(ie.Err)
	if ie.Kind == integration.KindUnconfigured {
		entry.Debug("integration.skipped")
		return
	}
	entry.Warn("integration.failed")
}
