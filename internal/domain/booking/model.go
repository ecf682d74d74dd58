package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// ActiveStatuses occupy a slot. Only one appointment per slot may hold one.
var ActiveStatuses = []Status{StatusNew, StatusConfirmed}

var transitions = map[Status][]Status{
	StatusNew:       {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s Status) Active() bool   { return s == StatusNew || s == StatusConfirmed }
func (s Status) Terminal() bool { return s.Valid() && !s.Active() }

// CanTransitionTo reports whether next is a legal successor of s.
// Terminal statuses have no successors.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Source is the channel a booking came through.
type Source string

const (
	SourceWebsite   Source = "website"
	SourcePhone     Source = "phone"
	SourceInstagram Source = "instagram"
	SourceFacebook  Source = "facebook"
	SourceViber     Source = "viber"
	SourceTelegram  Source = "telegram"
	SourceOther     Source = "other"
)

func (s Source) Valid() bool {
	switch s {
	case SourceWebsite, SourcePhone, SourceInstagram, SourceFacebook, SourceViber, SourceTelegram, SourceOther:
		return true
	}
	return false
}

// Appointment is a reservation of one slot. FullName and Phone are a
// snapshot taken at booking time and are not refreshed when the patient
// profile changes.
type Appointment struct {
	ID              uuid.UUID          `db:"id" json:"id"`
	BranchID        uuid.UUID          `db:"branch_id" json:"branch_id"`
	DoctorID        *uuid.UUID         `db:"doctor_id" json:"doctor_id,omitempty"`
	ServiceID       *uuid.UUID         `db:"service_id" json:"service_id,omitempty"`
	PatientID       *uuid.UUID         `db:"patient_id" json:"patient_id,omitempty"`
	FullName        string             `db:"full_name" json:"full_name"`
	Phone           string             `db:"phone" json:"phone"`
	IsFirstVisit    bool               `db:"is_first_visit" json:"is_first_visit"`
	Date            calendar.Date      `db:"date" json:"date"`
	Time            calendar.ClockTime `db:"time" json:"time"`
	Status          Status             `db:"status" json:"status"`
	Source          Source             `db:"source" json:"source"`
	Note            string             `db:"note" json:"note,omitempty"`
	InternalComment string             `db:"internal_comment" json:"internal_comment,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`

	// Read-side joins.
	PatientName string `json:"patient_name,omitempty"`
	DoctorName  string `json:"doctor_name,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}

// DisplayName is the linked profile name, falling back to the snapshot.
func (a *Appointment) DisplayName() string {
	if a.PatientName != "" {
		return a.PatientName
	}
	return a.FullName
}

// CreateRequest is the raw booking input. Date and Time are strings so that
// parse failures are reported as rejections.
type CreateRequest struct {
	Date         string     `json:"date"`
	Time         string     `json:"time"`
	BranchID     *uuid.UUID `json:"branch_id,omitempty"`
	DoctorID     *uuid.UUID `json:"doctor_id,omitempty"`
	ServiceID    *uuid.UUID `json:"service_id,omitempty"`
	PatientID    *uuid.UUID `json:"patient_id,omitempty"`
	FullName     string     `json:"full_name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	IsFirstVisit bool       `json:"is_first_visit,omitempty"`
	Note         string     `json:"note,omitempty"`
	Source       Source     `json:"source,omitempty"`
}

// -- Grid --

// BusySlot summarises the active appointment holding a grid label.
type BusySlot struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Status        Status    `json:"status"`
	ServiceName   string    `json:"service_name"`
	PatientName   string    `json:"patient_name"`
}

// DoctorDay is one doctor's column in the day grid.
type DoctorDay struct {
	ID         uuid.UUID           `json:"id"`
	Name       string              `json:"name"`
	Branch     string              `json:"branch"`
	BranchID   uuid.UUID           `json:"branch_id"`
	Start      calendar.ClockTime  `json:"start"`
	End        calendar.ClockTime  `json:"end"`
	BreakStart *calendar.ClockTime `json:"break_start,omitempty"`
	BreakEnd   *calendar.ClockTime `json:"break_end,omitempty"`
	BusySlots  map[string]BusySlot `json:"busy_slots"`
}

// Grid is the day schedule: a shared label axis plus one column per
// working doctor. Labels outside a doctor's own window are not bookable
// for that doctor.
type Grid struct {
	Date    calendar.Date `json:"date"`
	Hours   []string      `json:"hours"`
	Doctors []DoctorDay   `json:"doctors"`
}

// GridQuery selects the grid. An empty DoctorIDs means every active doctor
// (of the branch, when one is given).
type GridQuery struct {
	Date        calendar.Date
	BranchID    *uuid.UUID
	DoctorIDs   []uuid.UUID
	Granularity int
}

// -- Listing --

// Filter narrows appointment listings. Zero values mean "any".
type Filter struct {
	From      calendar.Date
	To        calendar.Date
	Statuses  []Status
	BranchID  *uuid.UUID
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Query     string
	Limit     int
	Offset    int
}

// Summary is the dashboard statistics block.
type Summary struct {
	Total          int           `json:"total"`
	Today          int           `json:"today"`
	ThisWeek       int           `json:"this_week"`
	Upcoming       int           `json:"upcoming"`
	Completed      int           `json:"completed"`
	Cancelled      int           `json:"cancelled"`
	UniquePatients int           `json:"unique_patients"`
	SpentTotal     float64       `json:"spent_total"`
	ByService      []ServiceStat `json:"by_service"`
}

// ServiceStat counts completed visits of one service.
type ServiceStat struct {
	ServiceID uuid.UUID `json:"service_id"`
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	Percent   float64   `json:"percent"`
}

// SummaryScope restricts statistics to one doctor or one patient.
type SummaryScope struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
}
