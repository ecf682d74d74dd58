package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// -- Mock Weekly Template Repository --

type mockTemplateRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*WeeklyTemplate
	err   error
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{store: make(map[uuid.UUID]*WeeklyTemplate)}
}

func (m *mockTemplateRepo) Create(_ context.Context, t *WeeklyTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.store {
		if ex.DoctorID == t.DoctorID && ex.Weekday == t.Weekday && ex.BranchID == t.BranchID {
			return ErrDuplicateRule
		}
	}
	t.ID = uuid.New()
	t.CreatedAt, t.UpdatedAt = time.Now(), time.Now()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *mockTemplateRepo) GetByID(_ context.Context, id uuid.UUID) (*WeeklyTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTemplateRepo) Update(_ context.Context, t *WeeklyTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *mockTemplateRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockTemplateRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*WeeklyTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*WeeklyTemplate
	for _, t := range m.store {
		if t.DoctorID == doctorID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (m *mockTemplateRepo) Find(_ context.Context, doctorID uuid.UUID, branchID *uuid.UUID, weekday Weekday) (*WeeklyTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var best *WeeklyTemplate
	for _, t := range m.store {
		if t.DoctorID != doctorID || t.Weekday != weekday || (branchID != nil && t.BranchID != *branchID) {
			continue
		}
		if best == nil || (t.IsActive() && !best.IsActive()) ||
			(t.IsActive() == best.IsActive() && t.StartTime < best.StartTime) {
			best = t
		}
	}
	return best, nil
}

// -- Mock Date Override Repository --

type mockOverrideRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*DateOverride
	err   error
}

func newMockOverrideRepo() *mockOverrideRepo {
	return &mockOverrideRepo{store: make(map[uuid.UUID]*DateOverride)}
}

func (m *mockOverrideRepo) Create(_ context.Context, o *DateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.store {
		if ex.DoctorID == o.DoctorID && ex.BranchID == o.BranchID && ex.Date == o.Date {
			return ErrDuplicateRule
		}
	}
	o.ID = uuid.New()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *mockOverrideRepo) GetByID(_ context.Context, id uuid.UUID) (*DateOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOverrideRepo) Update(_ context.Context, o *DateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[o.ID]; !ok {
		return ErrNotFound
	}
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *mockOverrideRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockOverrideRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, from, to Date) ([]*DateOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*DateOverride
	for _, o := range m.store {
		if o.DoctorID != doctorID {
			continue
		}
		if !from.IsZero() && o.Date.Before(from) {
			continue
		}
		if !to.IsZero() && o.Date.After(to) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *mockOverrideRepo) Find(_ context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date Date) (*DateOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var best *DateOverride
	for _, o := range m.store {
		if o.DoctorID != doctorID || o.Date != date || (branchID != nil && o.BranchID != *branchID) {
			continue
		}
		if best == nil || (o.Working && !best.Working) ||
			(o.Working == best.Working && startOf(o) < startOf(best)) {
			best = o
		}
	}
	return best, nil
}

func startOf(o *DateOverride) ClockTime {
	if o.StartTime == nil {
		return minutesPerDay
	}
	return *o.StartTime
}

func clock(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func clockPtr(s string) *ClockTime {
	c := clock(s)
	return &c
}

func date(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
