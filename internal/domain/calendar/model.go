package calendar

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ClockTime is a wall-clock time of day in minutes since midnight.
type ClockTime int

const minutesPerDay = 24 * 60

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// Slot step bounds in minutes.
const (
	MinStep = 5
	MaxStep = 240
)

// ValidStep reports whether step is within [MinStep, MaxStep] and tiles a
// day evenly.
func ValidStep(step int) bool {
	return step >= MinStep && step <= MaxStep && minutesPerDay%step == 0
}

// ParseClockTime accepts "HH:MM" and "HH:MM:SS", with a one-digit hour
// allowed ("9:00"). Seconds must be zero.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 && (i != 0 || len(p) != 1) {
			return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
		}
		if strings.TrimLeft(p, "0123456789") != "" {
			return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
		}
		nums[i] = n
	}
	if nums[0] > 23 || nums[1] > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	if len(nums) == 3 && nums[2] != 0 {
		return 0, fmt.Errorf("invalid time %q: seconds are not supported", s)
	}
	return NewClockTime(nums[0], nums[1]), nil
}

func (t ClockTime) Hour() int   { return int(t) / 60 }
func (t ClockTime) Minute() int { return int(t) % 60 }

func (t ClockTime) Valid() bool { return t >= 0 && t < minutesPerDay }

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Floor rounds t down to a multiple of step minutes.
func (t ClockTime) Floor(step int) ClockTime {
	if step <= 0 {
		return t
	}
	return t - t%ClockTime(step)
}

// Aligned reports whether t falls exactly on a step boundary.
func (t ClockTime) Aligned(step int) bool {
	return step > 0 && int(t)%step == 0
}

// On combines t with a calendar date in loc.
func (t ClockTime) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	v, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ScanTime implements pgtype.TimeScanner for TIME columns.
func (t *ClockTime) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into ClockTime")
	}
	*t = ClockTime(v.Microseconds / int64(time.Minute/time.Microsecond))
	return nil
}

// TimeValue implements pgtype.TimeValuer.
func (t ClockTime) TimeValue() (pgtype.Time, error) {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}, nil
}

// Date is a calendar day without a time zone.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) Year() int          { return d.t.Year() }
func (d Date) Month() time.Month  { return d.t.Month() }
func (d Date) Day() int           { return d.t.Day() }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Weekday() Weekday   { return WeekdayOf(d.t) }
func (d Date) Time() time.Time    { return d.t }
func (d Date) String() string     { return d.t.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ScanDate implements pgtype.DateScanner for DATE columns.
func (d *Date) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into Date")
	}
	*d = DateOf(v.Time)
	return nil
}

// DateValue implements pgtype.DateValuer.
func (d Date) DateValue() (pgtype.Date, error) {
	return pgtype.Date{Time: d.t, Valid: !d.t.IsZero()}, nil
}

// Weekday numbers days Monday = 0 through Sunday = 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// WeeklyTemplate is a doctor's recurring availability at one branch on one weekday.
type WeeklyTemplate struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	DoctorID   uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	BranchID   uuid.UUID  `db:"branch_id" json:"branch_id"`
	Weekday    Weekday    `db:"weekday" json:"weekday"`
	StartTime  ClockTime  `db:"start_time" json:"start_time"`
	EndTime    ClockTime  `db:"end_time" json:"end_time"`
	BreakStart *ClockTime `db:"break_start" json:"break_start,omitempty"`
	BreakEnd   *ClockTime `db:"break_end" json:"break_end,omitempty"`
	Active     *bool      `db:"active" json:"active,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func (t *WeeklyTemplate) IsActive() bool {
	return t.Active == nil || *t.Active
}

// DateOverride replaces every template of the doctor at the branch for one date.
type DateOverride struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	DoctorID   uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	BranchID   uuid.UUID  `db:"branch_id" json:"branch_id"`
	Date       Date       `db:"date" json:"date"`
	Working    bool       `db:"working" json:"working"`
	StartTime  *ClockTime `db:"start_time" json:"start_time,omitempty"`
	EndTime    *ClockTime `db:"end_time" json:"end_time,omitempty"`
	BreakStart *ClockTime `db:"break_start" json:"break_start,omitempty"`
	BreakEnd   *ClockTime `db:"break_end" json:"break_end,omitempty"`
	Note       string     `db:"note" json:"note"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	SourceOverride = "override"
	SourceTemplate = "template"
)

// EffectiveSchedule is the resolved availability of one doctor on one date.
// When Working is false every other field is zero.
type EffectiveSchedule struct {
	Working    bool
	Start      ClockTime
	End        ClockTime
	BreakStart *ClockTime
	BreakEnd   *ClockTime
	BranchID   uuid.UUID
	Source     string
}

// NotWorking is the schedule of a doctor with no availability.
var NotWorking = EffectiveSchedule{}

// HasBreak reports whether the window carries a complete break.
func (s EffectiveSchedule) HasBreak() bool {
	return s.BreakStart != nil && s.BreakEnd != nil
}

type effectiveJSON struct {
	Working    bool       `json:"working"`
	Start      *ClockTime `json:"start,omitempty"`
	End        *ClockTime `json:"end,omitempty"`
	BreakStart *ClockTime `json:"break_start,omitempty"`
	BreakEnd   *ClockTime `json:"break_end,omitempty"`
	BranchID   *uuid.UUID `json:"branch_id,omitempty"`
	Source     string     `json:"source,omitempty"`
}

func (s EffectiveSchedule) MarshalJSON() ([]byte, error) {
	if !s.Working {
		return json.Marshal(effectiveJSON{})
	}
	return json.Marshal(effectiveJSON{
		Working:    true,
		Start:      &s.Start,
		End:        &s.End,
		BreakStart: s.BreakStart,
		BreakEnd:   s.BreakEnd,
		BranchID:   &s.BranchID,
		Source:     s.Source,
	})
}
