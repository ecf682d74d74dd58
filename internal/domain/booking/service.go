package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/catalog"
	"github.com/clinic/clinic/internal/platform/events"
)

// Options configures the booking service.
type Options struct {
	Granularity int
	Location    *time.Location
}

// Service is the reservation lifecycle: admission, the day grid, listing,
// status transitions and statistics.
type Service struct {
	repo      Repository
	dir       Directory
	guard     *Guard
	grid      *GridBuilder
	publisher events.Publisher
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(repo Repository, dir Directory, sched Scheduler, pub events.Publisher, logger zerolog.Logger, opts Options) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if opts.Granularity <= 0 {
		opts.Granularity = DefaultGranularity
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		repo:      repo,
		dir:       dir,
		guard:     NewGuard(repo, dir, pub, logger, opts.Granularity),
		grid:      NewGridBuilder(sched, dir, repo, opts.Granularity),
		publisher: pub,
		logger:    logger.With().Str("component", "booking").Logger(),
		loc:       opts.Location,
		now:       time.Now,
	}
}

// Today is the current date in the clinic time zone.
func (s *Service) Today() calendar.Date {
	return calendar.DateOf(s.now().In(s.loc))
}

func (s *Service) Book(ctx context.Context, req CreateRequest) (*Appointment, error) {
	return s.guard.CreateReservation(ctx, req)
}

func (s *Service) DaySchedule(ctx context.Context, q GridQuery) (*Grid, error) {
	if q.Date.IsZero() {
		q.Date = s.Today()
	}
	return s.grid.BuildGrid(ctx, q)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, fmt.Errorf("%w: date_to is before date_from", ErrInvalid)
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalid, st)
		}
	}
	f.Query = strings.TrimSpace(f.Query)
	return s.repo.List(ctx, f)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, Filter{PatientID: &patientID, Limit: limit, Offset: offset})
}

// ChangeStatus applies a transition. Setting the current status again is a
// no-op; leaving a terminal status is refused.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, to)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == to {
		return a, nil
	}
	if !a.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrTransition, a.Status, to)
	}
	from := a.Status
	if err := s.repo.SetStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			s.logger.Warn().Str("appointment_id", id.String()).Msg("status changed concurrently")
		}
		return nil, err
	}
	a.Status = to
	s.logger.Info().Str("appointment_id", id.String()).Str("from", string(from)).
		Str("to", string(to)).Msg("appointment status changed")
	publish(ctx, s.publisher, s.logger, events.TypeAppointmentStatusChanged, a, map[string]string{"from": string(from)})
	return a, nil
}

// UpdateDetails replaces the note and service. A missing or unknown service
// leaves the appointment without one. A nil internal comment is kept as is.
func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, note string, serviceID *uuid.UUID, internalComment *string) (*Appointment, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	var svcID *uuid.UUID
	if serviceID != nil {
		svc, err := s.dir.GetService(ctx, *serviceID)
		switch {
		case err == nil:
			svcID = &svc.ID
		case !errors.Is(err, catalog.ErrNotFound):
			return nil, fmt.Errorf("load service: %w", err)
		}
	}
	if err := s.repo.UpdateDetails(ctx, id, strings.TrimSpace(note), svcID, internalComment); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Summary computes dashboard statistics within scope. Weeks start on Monday.
func (s *Service) Summary(ctx context.Context, scope SummaryScope) (*Summary, error) {
	today := s.Today()
	weekStart := today.AddDays(-int(today.Weekday()))
	sum, err := s.repo.Summary(ctx, scope, today, weekStart)
	if err != nil {
		return nil, err
	}
	if sum.ByService == nil {
		sum.ByService = []ServiceStat{}
	}
	var completed int
	for _, st := range sum.ByService {
		completed += st.Count
	}
	for i := range sum.ByService {
		if completed > 0 {
			sum.ByService[i].Percent = math.Round(float64(sum.ByService[i].Count)*1000/float64(completed)) / 10
		}
	}
	return sum, nil
}
