package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/calendar"
)

// DefaultServiceDuration is used when a service is created without a duration.
const DefaultServiceDuration = 30

var codePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Catalog is the business layer over branches, services, doctors and patients.
type Catalog struct {
	branches BranchRepository
	services ServiceRepository
	doctors  DoctorRepository
	patients PatientRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCatalog(b BranchRepository, s ServiceRepository, d DoctorRepository, p PatientRepository, logger zerolog.Logger, loc *time.Location) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	return &Catalog{
		branches: b, services: s, doctors: d, patients: p,
		logger: logger.With().Str("component", "catalog").Logger(),
		now:    func() time.Time { return time.Now().In(loc) },
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func defaultActive(b **bool) {
	if *b == nil {
		v := true
		*b = &v
	}
}

// -- Branches --

func validateBranch(b *Branch) error {
	b.Name = strings.TrimSpace(b.Name)
	b.Code = strings.ToLower(strings.TrimSpace(b.Code))
	if b.Name == "" {
		return invalid("name is required")
	}
	if !codePattern.MatchString(b.Code) {
		return invalid("code must be a lowercase slug")
	}
	if (b.Latitude == nil) != (b.Longitude == nil) {
		return invalid("latitude and longitude must be set together")
	}
	return nil
}

func (s *Catalog) CreateBranch(ctx context.Context, b *Branch) error {
	if err := validateBranch(b); err != nil {
		return err
	}
	defaultActive(&b.Active)
	return s.branches.Create(ctx, b)
}

// GetBranch returns the branch together with its work hours.
func (s *Catalog) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	b, err := s.branches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	hours, err := s.branches.WorkHours(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load work hours: %w", err)
	}
	b.WorkHours = hours
	return b, nil
}

func (s *Catalog) UpdateBranch(ctx context.Context, b *Branch) error {
	if err := validateBranch(b); err != nil {
		return err
	}
	defaultActive(&b.Active)
	return s.branches.Update(ctx, b)
}

func (s *Catalog) ListBranches(ctx context.Context, activeOnly bool) ([]*Branch, error) {
	return s.branches.List(ctx, activeOnly)
}

// SetWorkHours replaces the published opening hours of a branch.
func (s *Catalog) SetWorkHours(ctx context.Context, branchID uuid.UUID, hours []BranchWorkHour) error {
	if _, err := s.branches.GetByID(ctx, branchID); err != nil {
		return err
	}
	seen := make(map[calendar.Weekday]bool, len(hours))
	for _, h := range hours {
		if !h.Weekday.Valid() {
			return invalid("weekday must be between 0 and 6")
		}
		if seen[h.Weekday] {
			return invalid("%s listed twice", h.Weekday)
		}
		seen[h.Weekday] = true
		if h.Closed {
			continue
		}
		if h.OpensAt == nil || h.ClosesAt == nil || *h.OpensAt >= *h.ClosesAt {
			return invalid("%s needs opens_at before closes_at", h.Weekday)
		}
	}
	return s.branches.SetWorkHours(ctx, branchID, hours)
}

// -- Services --

func validateService(svc *Service) error {
	svc.Name = strings.TrimSpace(svc.Name)
	if svc.Name == "" {
		return invalid("name is required")
	}
	if svc.DurationMin == 0 {
		svc.DurationMin = DefaultServiceDuration
	}
	if svc.DurationMin < 0 {
		return invalid("duration_min must be positive")
	}
	if svc.PriceFrom != nil && *svc.PriceFrom < 0 {
		return invalid("price_from must not be negative")
	}
	return nil
}

func (s *Catalog) CreateService(ctx context.Context, svc *Service) error {
	if err := validateService(svc); err != nil {
		return err
	}
	defaultActive(&svc.Active)
	return s.services.Create(ctx, svc)
}

func (s *Catalog) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	return s.services.GetByID(ctx, id)
}

func (s *Catalog) UpdateService(ctx context.Context, svc *Service) error {
	if err := validateService(svc); err != nil {
		return err
	}
	defaultActive(&svc.Active)
	return s.services.Update(ctx, svc)
}

func (s *Catalog) ListServices(ctx context.Context, activeOnly bool) ([]*Service, error) {
	return s.services.List(ctx, activeOnly)
}

// -- Doctors --

func (s *Catalog) validateDoctor(ctx context.Context, d *Doctor) error {
	d.FullName = strings.TrimSpace(d.FullName)
	if d.FullName == "" {
		return invalid("full_name is required")
	}
	if d.UserID != nil && strings.TrimSpace(*d.UserID) == "" {
		d.UserID = nil
	}
	if d.BranchID != nil {
		if _, err := s.branches.GetByID(ctx, *d.BranchID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalid("branch %s does not exist", *d.BranchID)
			}
			return err
		}
	}
	return nil
}

func (s *Catalog) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.validateDoctor(ctx, d); err != nil {
		return err
	}
	defaultActive(&d.Active)
	if err := s.doctors.Create(ctx, d); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Msg("doctor created")
	return nil
}

func (s *Catalog) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Catalog) GetDoctorByUserID(ctx context.Context, userID string) (*Doctor, error) {
	return s.doctors.GetByUserID(ctx, userID)
}

func (s *Catalog) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.validateDoctor(ctx, d); err != nil {
		return err
	}
	defaultActive(&d.Active)
	return s.doctors.Update(ctx, d)
}

func (s *Catalog) ListDoctors(ctx context.Context, branchID *uuid.UUID, activeOnly bool) ([]*Doctor, error) {
	return s.doctors.List(ctx, branchID, activeOnly)
}

// -- Patients --

func (s *Catalog) today() calendar.Date { return calendar.DateOf(s.now()) }

func (s *Catalog) validatePatient(p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.FullName == "" {
		return invalid("full_name is required")
	}
	if p.Phone == "" {
		return invalid("phone is required")
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(s.today()) {
		return invalid("date_of_birth is in the future")
	}
	return nil
}

func (s *Catalog) withAge(p *Patient) *Patient {
	p.Age = p.AgeOn(s.today())
	return p
}

func (s *Catalog) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.validatePatient(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	s.withAge(p)
	return nil
}

func (s *Catalog) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withAge(p), nil
}

// GetPatientByUserID finds the profile linked to an authenticated user.
func (s *Catalog) GetPatientByUserID(ctx context.Context, userID string) (*Patient, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	p, err := s.patients.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withAge(p), nil
}

func (s *Catalog) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.validatePatient(p); err != nil {
		return err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return err
	}
	s.withAge(p)
	return nil
}

func (s *Catalog) SearchPatients(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	items, total, err := s.patients.Search(ctx, strings.TrimSpace(query), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		s.withAge(p)
	}
	return items, total, nil
}
