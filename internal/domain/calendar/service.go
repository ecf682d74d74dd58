package calendar

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	templates TemplateRepository
	overrides OverrideRepository
	resolver  *Resolver
	logger    zerolog.Logger
}

func NewService(templates TemplateRepository, overrides OverrideRepository, logger zerolog.Logger) *Service {
	return &Service{
		templates: templates,
		overrides: overrides,
		resolver:  NewResolver(NewRuleStore(templates, overrides)),
		logger:    logger.With().Str("component", "calendar").Logger(),
	}
}

// Resolver exposes the resolver backed by this service's repositories.
func (s *Service) Resolver() *Resolver { return s.resolver }

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRule, fmt.Sprintf(format, args...))
}

func validateWindow(start, end ClockTime, bs, be *ClockTime) error {
	if !start.Valid() || !end.Valid() {
		return invalid("times must be within the day")
	}
	if start >= end {
		return invalid("start_time must be before end_time")
	}
	if (bs == nil) != (be == nil) {
		return invalid("break_start and break_end must be set together")
	}
	if bs != nil {
		if *bs >= *be {
			return invalid("break_start must be before break_end")
		}
		if *bs < start || *be > end {
			return invalid("break must lie inside the working window")
		}
	}
	return nil
}

// -- Weekly templates --

func validateTemplate(t *WeeklyTemplate) error {
	if t.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if t.BranchID == uuid.Nil {
		return invalid("branch_id is required")
	}
	if !t.Weekday.Valid() {
		return invalid("weekday must be between 0 (Monday) and 6 (Sunday)")
	}
	return validateWindow(t.StartTime, t.EndTime, t.BreakStart, t.BreakEnd)
}

func (s *Service) CreateTemplate(ctx context.Context, t *WeeklyTemplate) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	if t.Active == nil {
		active := true
		t.Active = &active
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", t.DoctorID.String()).Str("weekday", t.Weekday.String()).
		Str("window", t.StartTime.String()+"-"+t.EndTime.String()).Msg("weekly template created")
	return nil
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*WeeklyTemplate, error) {
	return s.templates.GetByID(ctx, id)
}

// UpdateTemplate replaces the rule's window. The doctor cannot be changed.
func (s *Service) UpdateTemplate(ctx context.Context, t *WeeklyTemplate) error {
	existing, err := s.templates.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	t.DoctorID = existing.DoctorID
	if t.BranchID == uuid.Nil {
		t.BranchID = existing.BranchID
	}
	if t.Active == nil {
		t.Active = existing.Active
	}
	if err := validateTemplate(t); err != nil {
		return err
	}
	return s.templates.Update(ctx, t)
}

func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return s.templates.Delete(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyTemplate, error) {
	return s.templates.ListByDoctor(ctx, doctorID)
}

// -- Date overrides --

// validateOverride checks o and clears the window of a day off.
func validateOverride(o *DateOverride) error {
	if o.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if o.BranchID == uuid.Nil {
		return invalid("branch_id is required")
	}
	if o.Date.IsZero() {
		return invalid("date is required")
	}
	if !o.Working {
		o.StartTime, o.EndTime, o.BreakStart, o.BreakEnd = nil, nil, nil, nil
		return nil
	}
	if o.StartTime == nil || o.EndTime == nil {
		return invalid("start_time and end_time are required for a working day")
	}
	return validateWindow(*o.StartTime, *o.EndTime, o.BreakStart, o.BreakEnd)
}

func (s *Service) CreateOverride(ctx context.Context, o *DateOverride) error {
	if err := validateOverride(o); err != nil {
		return err
	}
	if err := s.overrides.Create(ctx, o); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", o.DoctorID.String()).Str("date", o.Date.String()).
		Bool("working", o.Working).Msg("date override created")
	return nil
}

func (s *Service) GetOverride(ctx context.Context, id uuid.UUID) (*DateOverride, error) {
	return s.overrides.GetByID(ctx, id)
}

func (s *Service) UpdateOverride(ctx context.Context, o *DateOverride) error {
	existing, err := s.overrides.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	o.DoctorID = existing.DoctorID
	if o.BranchID == uuid.Nil {
		o.BranchID = existing.BranchID
	}
	if o.Date.IsZero() {
		o.Date = existing.Date
	}
	if err := validateOverride(o); err != nil {
		return err
	}
	return s.overrides.Update(ctx, o)
}

func (s *Service) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	return s.overrides.Delete(ctx, id)
}

func (s *Service) ListOverrides(ctx context.Context, doctorID uuid.UUID, from, to Date) ([]*DateOverride, error) {
	return s.overrides.ListByDoctor(ctx, doctorID, from, to)
}

// Availability resolves one doctor on one date.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date Date) (EffectiveSchedule, error) {
	return s.resolver.Resolve(ctx, doctorID, branchID, date)
}
