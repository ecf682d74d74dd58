package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/catalog"
	"github.com/clinic/clinic/internal/platform/events"
)

// Guard admits new reservations. The storage constraint on active slots is
// the only cross-request coordination; the pre-check merely rejects the
// common case early.
type Guard struct {
	repo        Repository
	dir         Directory
	publisher   events.Publisher
	logger      zerolog.Logger
	granularity int
}

// NewGuard builds a guard. A positive granularity additionally requires the
// booked time to fall on a grid label.
func NewGuard(repo Repository, dir Directory, pub events.Publisher, logger zerolog.Logger, granularity int) *Guard {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Guard{
		repo:        repo,
		dir:         dir,
		publisher:   pub,
		logger:      logger.With().Str("component", "reservation_guard").Logger(),
		granularity: granularity,
	}
}

// parse checks the request shape. Nothing here touches storage.
func (g *Guard) parse(req CreateRequest) (calendar.Date, calendar.ClockTime, error) {
	fields := map[string]string{}
	var date calendar.Date
	var t calendar.ClockTime
	var err error

	if strings.TrimSpace(req.Date) == "" {
		fields["date"] = "date is required"
	} else if date, err = calendar.ParseDate(strings.TrimSpace(req.Date)); err != nil {
		fields["date"] = "invalid date, expected YYYY-MM-DD"
	}
	if strings.TrimSpace(req.Time) == "" {
		fields["time"] = "time is required"
	} else if t, err = calendar.ParseClockTime(strings.TrimSpace(req.Time)); err != nil {
		fields["time"] = "invalid time, expected HH:MM"
	} else if g.granularity > 0 && !t.Aligned(g.granularity) {
		fields["time"] = fmt.Sprintf("time must fall on a %d-minute boundary", g.granularity)
	}
	if req.DoctorID == nil || *req.DoctorID == uuid.Nil {
		fields["doctor_id"] = "doctor is required"
	}
	if req.Source != "" && !req.Source.Valid() {
		fields["source"] = "unknown source"
	}
	if len(fields) > 0 {
		return date, t, &Rejection{Fields: fields, cause: ErrValidation}
	}
	return date, t, nil
}

// CreateReservation runs the admission checks in order and inserts the
// appointment with status new. Every refusal is a *Rejection; any other
// error is a storage failure.
func (g *Guard) CreateReservation(ctx context.Context, req CreateRequest) (*Appointment, error) {
	date, t, err := g.parse(req)
	if err != nil {
		return nil, err
	}

	doctor, err := g.dir.GetDoctor(ctx, *req.DoctorID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, reject(ErrDoctorNotFound, "doctor_id", "doctor not found")
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.IsActive() {
		return nil, reject(ErrDoctorNotFound, "doctor_id", "doctor is not accepting appointments")
	}

	var branchID uuid.UUID
	switch {
	case req.BranchID != nil:
		if _, err := g.dir.GetBranch(ctx, *req.BranchID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, reject(ErrBranchNotFound, "branch_id", "branch not found")
			}
			return nil, fmt.Errorf("load branch: %w", err)
		}
		branchID = *req.BranchID
	case doctor.BranchID != nil:
		branchID = *doctor.BranchID
	default:
		return nil, reject(ErrBranchUnresolvable, "branch_id", "doctor has no branch, cannot infer")
	}

	// An unknown service is informational only and is dropped.
	var serviceID *uuid.UUID
	if req.ServiceID != nil {
		svc, err := g.dir.GetService(ctx, *req.ServiceID)
		switch {
		case err == nil:
			serviceID = &svc.ID
		case !errors.Is(err, catalog.ErrNotFound):
			return nil, fmt.Errorf("load service: %w", err)
		}
	}

	fullName, phone := strings.TrimSpace(req.FullName), strings.TrimSpace(req.Phone)
	if req.PatientID != nil {
		p, err := g.dir.GetPatient(ctx, *req.PatientID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, reject(ErrPatientNotFound, "patient_id", "patient not found")
			}
			return nil, fmt.Errorf("load patient: %w", err)
		}
		fullName, phone = p.FullName, p.Phone
	} else if fullName == "" {
		return nil, reject(ErrValidation, "full_name", "full name is required without a patient profile")
	}

	taken, err := g.repo.HasActive(ctx, doctor.ID, date, t)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		g.logger.Info().Str("doctor_id", doctor.ID.String()).Str("date", date.String()).
			Str("time", t.String()).Msg("booking rejected: slot taken")
		return nil, reject(ErrSlotTaken, "slot", "slot already taken")
	}

	source := req.Source
	if source == "" {
		source = SourceWebsite
	}
	doctorID := doctor.ID
	a := &Appointment{
		BranchID:     branchID,
		DoctorID:     &doctorID,
		ServiceID:    serviceID,
		PatientID:    req.PatientID,
		FullName:     fullName,
		Phone:        phone,
		IsFirstVisit: req.IsFirstVisit,
		Date:         date,
		Time:         t,
		Status:       StatusNew,
		Source:       source,
		Note:         strings.TrimSpace(req.Note),
	}
	if err := g.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			g.logger.Warn().Str("doctor_id", doctor.ID.String()).Str("date", date.String()).
				Str("time", t.String()).Msg("booking lost race for slot")
			return nil, reject(ErrSlotTaken, "slot", "slot already taken")
		}
		g.logger.Error().Err(err).Str("doctor_id", doctor.ID.String()).Msg("failed to store appointment")
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	g.logger.Info().Str("appointment_id", a.ID.String()).Str("doctor_id", doctor.ID.String()).
		Str("date", date.String()).Str("time", t.String()).Msg("appointment booked")
	publish(ctx, g.publisher, g.logger, events.TypeAppointmentCreated, a, nil)
	return a, nil
}

// publish sends an appointment event. Delivery failures never undo the
// state change and are only logged.
func publish(ctx context.Context, pub events.Publisher, logger zerolog.Logger, typ string, a *Appointment, attrs map[string]string) {
	evt := events.Event{
		Type:          typ,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		BranchID:      a.BranchID,
		Date:          a.Date.String(),
		Time:          a.Time.String(),
		Status:        string(a.Status),
		Attributes:    attrs,
	}
	if err := pub.Publish(ctx, evt); err != nil {
		logger.Error().Err(err).Str("event", typ).Str("appointment_id", a.ID.String()).Msg("failed to publish event")
	}
}
