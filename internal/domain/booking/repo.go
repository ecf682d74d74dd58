package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/catalog"
)

type Repository interface {
	// Create inserts a with status new. A second active appointment in the
	// same slot fails with ErrSlotTaken.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// HasActive reports whether the doctor already holds an active
	// appointment at date and time.
	HasActive(ctx context.Context, doctorID uuid.UUID, date calendar.Date, t calendar.ClockTime) (bool, error)
	// ActiveOn returns active appointments of the given doctors on date.
	ActiveOn(ctx context.Context, date calendar.Date, doctorIDs []uuid.UUID) ([]*Appointment, error)
	List(ctx context.Context, f Filter) ([]*Appointment, int, error)
	// SetStatus moves the appointment from one status to another only if it
	// still holds from.
	SetStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	UpdateDetails(ctx context.Context, id uuid.UUID, note string, serviceID *uuid.UUID, internalComment *string) error
	Summary(ctx context.Context, scope SummaryScope, today, weekStart calendar.Date) (*Summary, error)
	// DueReminders returns confirmed appointments starting in [from, to)
	// that have not been reminded yet.
	DueReminders(ctx context.Context, from, to time.Time) ([]*Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Directory is the catalog lookups booking depends on. *catalog.Catalog
// satisfies it.
type Directory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*catalog.Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID string) (*catalog.Doctor, error)
	ListDoctors(ctx context.Context, branchID *uuid.UUID, activeOnly bool) ([]*catalog.Doctor, error)
	GetBranch(ctx context.Context, id uuid.UUID) (*catalog.Branch, error)
	GetService(ctx context.Context, id uuid.UUID) (*catalog.Service, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*catalog.Patient, error)
	GetPatientByUserID(ctx context.Context, userID string) (*catalog.Patient, error)
}

// Scheduler resolves effective schedules. *calendar.Resolver satisfies it.
type Scheduler interface {
	Resolve(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date calendar.Date) (calendar.EffectiveSchedule, error)
	ResolveMany(ctx context.Context, doctorIDs []uuid.UUID, branchID *uuid.UUID, date calendar.Date) (map[uuid.UUID]calendar.EffectiveSchedule, error)
}
