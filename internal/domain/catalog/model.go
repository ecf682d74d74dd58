package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
)

// Branch is one clinic location.
type Branch struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	City      string    `db:"city" json:"city"`
	Address   string    `db:"address" json:"address"`
	Phone     string    `db:"phone" json:"phone"`
	PhoneAlt  string    `db:"phone_alt" json:"phone_alt,omitempty"`
	Email     string    `db:"email" json:"email,omitempty"`
	Latitude  *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64  `db:"longitude" json:"longitude,omitempty"`
	MapURL    string    `db:"map_url" json:"map_url,omitempty"`
	Active    *bool     `db:"active" json:"active,omitempty"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	WorkHours []BranchWorkHour `json:"work_hours,omitempty"`
}

// BranchWorkHour is the published opening time of a branch on one weekday.
type BranchWorkHour struct {
	ID       uuid.UUID           `db:"id" json:"id"`
	BranchID uuid.UUID           `db:"branch_id" json:"branch_id"`
	Weekday  calendar.Weekday    `db:"weekday" json:"weekday"`
	OpensAt  *calendar.ClockTime `db:"opens_at" json:"opens_at,omitempty"`
	ClosesAt *calendar.ClockTime `db:"closes_at" json:"closes_at,omitempty"`
	Closed   bool                `db:"closed" json:"closed"`
}

// Service is a bookable medical service.
type Service struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	DurationMin int       `db:"duration_min" json:"duration_min"`
	PriceFrom   *float64  `db:"price_from" json:"price_from,omitempty"`
	Active      *bool     `db:"active" json:"active,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor is a practitioner. BranchID is the home branch used when a booking
// does not name one.
type Doctor struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         *string    `db:"user_id" json:"user_id,omitempty"`
	FullName       string     `db:"full_name" json:"full_name"`
	Specialization string     `db:"specialization" json:"specialization"`
	BranchID       *uuid.UUID `db:"branch_id" json:"branch_id,omitempty"`
	Room           string     `db:"room" json:"room,omitempty"`
	Phone          string     `db:"phone" json:"phone,omitempty"`
	Active         *bool      `db:"active" json:"active,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Patient is a patient profile, optionally linked to a login.
type Patient struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	UserID      *string        `db:"user_id" json:"user_id,omitempty"`
	FullName    string         `db:"full_name" json:"full_name"`
	DateOfBirth *calendar.Date `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone       string         `db:"phone" json:"phone"`
	Email       string         `db:"email" json:"email,omitempty"`
	BranchID    *uuid.UUID     `db:"branch_id" json:"branch_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`

	Age *int `json:"age,omitempty"`
}

// AgeOn returns the patient's age in full years on the given day, or nil
// when the date of birth is unknown.
func (p *Patient) AgeOn(today calendar.Date) *int {
	if p.DateOfBirth == nil || p.DateOfBirth.IsZero() {
		return nil
	}
	dob := *p.DateOfBirth
	age := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return &age
}

func isActive(b *bool) bool { return b == nil || *b }

func (b *Branch) IsActive() bool  { return isActive(b.Active) }
func (s *Service) IsActive() bool { return isActive(s.Active) }
func (d *Doctor) IsActive() bool  { return isActive(d.Active) }
