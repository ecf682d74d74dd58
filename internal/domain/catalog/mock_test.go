package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/calendar"
)

// -- Mock Branch Repository --

type mockBranchRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Branch
	hours map[uuid.UUID][]BranchWorkHour
}

func newMockBranchRepo() *mockBranchRepo {
	return &mockBranchRepo{store: make(map[uuid.UUID]*Branch), hours: make(map[uuid.UUID][]BranchWorkHour)}
}

func (m *mockBranchRepo) Create(_ context.Context, b *Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.store {
		if ex.Code == b.Code {
			return ErrDuplicate
		}
	}
	b.ID = uuid.New()
	b.CreatedAt, b.UpdatedAt = time.Now(), time.Now()
	cp := *b
	m.store[b.ID] = &cp
	return nil
}

func (m *mockBranchRepo) GetByID(_ context.Context, id uuid.UUID) (*Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBranchRepo) Update(_ context.Context, b *Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[b.ID]; !ok {
		return ErrNotFound
	}
	cp := *b
	m.store[b.ID] = &cp
	return nil
}

func (m *mockBranchRepo) List(_ context.Context, activeOnly bool) ([]*Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Branch
	for _, b := range m.store {
		if activeOnly && !b.IsActive() {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockBranchRepo) WorkHours(_ context.Context, branchID uuid.UUID) ([]BranchWorkHour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BranchWorkHour(nil), m.hours[branchID]...), nil
}

func (m *mockBranchRepo) SetWorkHours(_ context.Context, branchID uuid.UUID, hours []BranchWorkHour) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BranchWorkHour, len(hours))
	for i, h := range hours {
		h.ID, h.BranchID = uuid.New(), branchID
		out[i] = h
	}
	m.hours[branchID] = out
	return nil
}

// -- Mock Service Repository --

type mockServiceRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Service
}

func newMockServiceRepo() *mockServiceRepo {
	return &mockServiceRepo{store: make(map[uuid.UUID]*Service)}
}

func (m *mockServiceRepo) Create(_ context.Context, s *Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *mockServiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockServiceRepo) Update(_ context.Context, s *Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *mockServiceRepo) List(_ context.Context, activeOnly bool) ([]*Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Service
	for _, s := range m.store {
		if activeOnly && !s.IsActive() {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

// -- Mock Doctor Repository --

type mockDoctorRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{store: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.UserID != nil {
		for _, ex := range m.store {
			if ex.UserID != nil && *ex.UserID == *d.UserID {
				return ErrDuplicate
			}
		}
	}
	d.ID = uuid.New()
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) GetByUserID(_ context.Context, userID string) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.store {
		if d.UserID != nil && *d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[d.ID]; !ok {
		return ErrNotFound
	}
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, branchID *uuid.UUID, activeOnly bool) ([]*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Doctor
	for _, d := range m.store {
		if activeOnly && !d.IsActive() {
			continue
		}
		if branchID != nil && (d.BranchID == nil || *d.BranchID != *branchID) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

// -- Mock Patient Repository --

type mockPatientRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{store: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.UserID != nil {
		for _, ex := range m.store {
			if ex.UserID != nil && *ex.UserID == *p.UserID {
				return ErrDuplicate
			}
		}
	}
	p.ID = uuid.New()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetByUserID(_ context.Context, userID string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.UserID != nil && *p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.store[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.UserID = ex.UserID
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Search(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Patient
	q := strings.ToLower(query)
	for _, p := range m.store {
		if q == "" || strings.Contains(strings.ToLower(p.FullName), q) || strings.Contains(p.Phone, q) {
			cp := *p
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FullName < all[j].FullName })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// -- helpers --

type testCatalog struct {
	*Catalog
	branches *mockBranchRepo
	services *mockServiceRepo
	doctors  *mockDoctorRepo
	patients *mockPatientRepo
}

func newTestCatalog() *testCatalog {
	tc := &testCatalog{
		branches: newMockBranchRepo(),
		services: newMockServiceRepo(),
		doctors:  newMockDoctorRepo(),
		patients: newMockPatientRepo(),
	}
	tc.Catalog = NewCatalog(tc.branches, tc.services, tc.doctors, tc.patients, zerolog.Nop(), time.UTC)
	tc.Catalog.now = func() time.Time { return time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC) }
	return tc
}

func clock(s string) *calendar.ClockTime {
	t, err := calendar.ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func date(s string) *calendar.Date {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func strPtr(s string) *string { return &s }
