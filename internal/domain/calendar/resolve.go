package calendar

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Effective applies override-over-template precedence. The two sources are
// never blended: an override for the date decides alone.
func Effective(tpl *WeeklyTemplate, ov *DateOverride) EffectiveSchedule {
	if ov != nil {
		if !ov.Working || ov.StartTime == nil || ov.EndTime == nil {
			return NotWorking
		}
		return window(*ov.StartTime, *ov.EndTime, ov.BreakStart, ov.BreakEnd, ov.BranchID, SourceOverride)
	}
	if tpl == nil || !tpl.IsActive() {
		return NotWorking
	}
	return window(tpl.StartTime, tpl.EndTime, tpl.BreakStart, tpl.BreakEnd, tpl.BranchID, SourceTemplate)
}

// window builds a working schedule. An empty or inverted window is malformed
// data and yields NotWorking; a break that does not fit inside it is dropped.
func window(start, end ClockTime, bs, be *ClockTime, branchID uuid.UUID, source string) EffectiveSchedule {
	if !start.Valid() || !end.Valid() || start >= end {
		return NotWorking
	}
	s := EffectiveSchedule{Working: true, Start: start, End: end, BranchID: branchID, Source: source}
	if bs != nil && be != nil && start <= *bs && *bs < *be && *be <= end {
		b1, b2 := *bs, *be
		s.BreakStart, s.BreakEnd = &b1, &b2
	}
	return s
}

// RuleStore is read access to the calendar rules. Both finders return
// (nil, nil) when no rule matches. With a nil branch filter and several
// matching rows the one with the earliest start wins.
type RuleStore interface {
	FindOverride(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date Date) (*DateOverride, error)
	FindTemplate(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, weekday Weekday) (*WeeklyTemplate, error)
}

// Resolver computes effective schedules from stored rules.
type Resolver struct {
	rules RuleStore
}

func NewResolver(rules RuleStore) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve returns the doctor's effective schedule on date. Missing rules
// resolve to NotWorking; only storage failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date Date) (EffectiveSchedule, error) {
	ov, err := r.rules.FindOverride(ctx, doctorID, branchID, date)
	if err != nil {
		return NotWorking, fmt.Errorf("find override: %w", err)
	}
	if ov != nil {
		return Effective(nil, ov), nil
	}
	tpl, err := r.rules.FindTemplate(ctx, doctorID, branchID, date.Weekday())
	if err != nil {
		return NotWorking, fmt.Errorf("find template: %w", err)
	}
	return Effective(tpl, nil), nil
}

// ResolveMany resolves several doctors on the same date, keyed by doctor id.
func (r *Resolver) ResolveMany(ctx context.Context, doctorIDs []uuid.UUID, branchID *uuid.UUID, date Date) (map[uuid.UUID]EffectiveSchedule, error) {
	out := make(map[uuid.UUID]EffectiveSchedule, len(doctorIDs))
	for _, id := range doctorIDs {
		s, err := r.Resolve(ctx, id, branchID, date)
		if err != nil {
			return nil, fmt.Errorf("resolve doctor %s: %w", id, err)
		}
		out[id] = s
	}
	return out, nil
}
