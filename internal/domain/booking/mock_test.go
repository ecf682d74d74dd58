package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/catalog"
	"github.com/clinic/clinic/internal/platform/events"
)

// -- Mock Appointment Repository --

// mockRepo enforces the active-slot uniqueness under its mutex, the way the
// partial unique index does in Postgres.
type mockRepo struct {
	mu       sync.Mutex
	store    map[uuid.UUID]*Appointment
	reminded map[uuid.UUID]time.Time
	dir      *mockDirectory

	// skipPrecheck makes HasActive always report a free slot so that every
	// caller reaches the insert.
	skipPrecheck bool
	err          error
}

func newMockRepo(dir *mockDirectory) *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Appointment), reminded: make(map[uuid.UUID]time.Time), dir: dir}
}

func (m *mockRepo) decorate(a *Appointment) *Appointment {
	cp := *a
	if m.dir == nil {
		return &cp
	}
	if a.PatientID != nil {
		if p, ok := m.dir.patients[*a.PatientID]; ok {
			cp.PatientName = p.FullName
		}
	}
	if a.DoctorID != nil {
		if d, ok := m.dir.doctors[*a.DoctorID]; ok {
			cp.DoctorName = d.FullName
		}
	}
	if a.ServiceID != nil {
		if s, ok := m.dir.services[*a.ServiceID]; ok {
			cp.ServiceName = s.Name
		}
	}
	return &cp
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, ex := range m.store {
		if ex.Status.Active() && ex.BranchID == a.BranchID && sameID(ex.DoctorID, a.DoctorID) &&
			ex.Date == a.Date && ex.Time == a.Time {
			return ErrSlotTaken
		}
	}
	a.ID = uuid.New()
	a.CreatedAt, a.UpdatedAt = time.Now(), time.Now()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.decorate(a), nil
}

func (m *mockRepo) HasActive(_ context.Context, doctorID uuid.UUID, date calendar.Date, t calendar.ClockTime) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.skipPrecheck {
		return false, nil
	}
	for _, a := range m.store {
		if a.Status.Active() && a.DoctorID != nil && *a.DoctorID == doctorID && a.Date == date && a.Time == t {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ActiveOn(_ context.Context, date calendar.Date, doctorIDs []uuid.UUID) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(doctorIDs))
	for _, id := range doctorIDs {
		want[id] = true
	}
	var out []*Appointment
	for _, a := range m.store {
		if a.Status.Active() && a.Date == date && a.DoctorID != nil && want[*a.DoctorID] {
			out = append(out, m.decorate(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Appointment
	for _, a := range m.store {
		if !f.From.IsZero() && a.Date.Before(f.From) || !f.To.IsZero() && a.Date.After(f.To) {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, st := range f.Statuses {
				match = match || a.Status == st
			}
			if !match {
				continue
			}
		}
		if f.BranchID != nil && a.BranchID != *f.BranchID {
			continue
		}
		if f.DoctorID != nil && !sameID(a.DoctorID, f.DoctorID) {
			continue
		}
		if f.PatientID != nil && !sameID(a.PatientID, f.PatientID) {
			continue
		}
		d := m.decorate(a)
		if f.Query != "" && !strings.Contains(strings.ToLower(d.DisplayName()+" "+d.Phone), strings.ToLower(f.Query)) {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].Time > all[j].Time
	})
	total := len(all)
	if f.Offset > total {
		f.Offset = total
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return all[f.Offset:end], total, nil
}

func (m *mockRepo) SetStatus(_ context.Context, id uuid.UUID, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != from {
		return ErrStatusConflict
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepo) UpdateDetails(_ context.Context, id uuid.UUID, note string, serviceID *uuid.UUID, internalComment *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	a.Note, a.ServiceID = note, serviceID
	if internalComment != nil {
		a.InternalComment = *internalComment
	}
	return nil
}

func (m *mockRepo) Summary(_ context.Context, scope SummaryScope, today, weekStart calendar.Date) (*Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Summary
	patients := map[string]bool{}
	byService := map[uuid.UUID]*ServiceStat{}
	weekEnd := weekStart.AddDays(7)
	for _, a := range m.store {
		if scope.DoctorID != nil && !sameID(a.DoctorID, scope.DoctorID) {
			continue
		}
		if scope.PatientID != nil && !sameID(a.PatientID, scope.PatientID) {
			continue
		}
		s.Total++
		if a.Date == today {
			s.Today++
		}
		if !a.Date.Before(weekStart) && a.Date.Before(weekEnd) {
			s.ThisWeek++
		}
		if !a.Date.Before(today) && a.Status.Active() {
			s.Upcoming++
		}
		switch a.Status {
		case StatusCompleted:
			s.Completed++
			if a.ServiceID != nil {
				svc := m.dir.services[*a.ServiceID]
				st, ok := byService[svc.ID]
				if !ok {
					st = &ServiceStat{ServiceID: svc.ID, Name: svc.Name}
					byService[svc.ID] = st
				}
				st.Count++
				if svc.PriceFrom != nil {
					s.SpentTotal += *svc.PriceFrom
				}
			}
		case StatusCancelled, StatusNoShow:
			s.Cancelled++
		}
		if a.PatientID != nil {
			patients[a.PatientID.String()] = true
		} else if a.Phone != "" {
			patients[a.Phone] = true
		}
	}
	s.UniquePatients = len(patients)
	for _, st := range byService {
		s.ByService = append(s.ByService, *st)
	}
	sort.Slice(s.ByService, func(i, j int) bool { return s.ByService[i].Count > s.ByService[j].Count })
	return &s, nil
}

func (m *mockRepo) DueReminders(_ context.Context, from, to time.Time) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.store {
		if a.Status != StatusConfirmed {
			continue
		}
		if _, done := m.reminded[a.ID]; done {
			continue
		}
		at := a.Time.On(a.Date, from.Location())
		if !at.Before(from) && at.Before(to) {
			out = append(out, m.decorate(a))
		}
	}
	return out, nil
}

func (m *mockRepo) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminded[id] = at
	return nil
}

// -- Mock Directory --

type mockDirectory struct {
	branches map[uuid.UUID]*catalog.Branch
	services map[uuid.UUID]*catalog.Service
	doctors  map[uuid.UUID]*catalog.Doctor
	patients map[uuid.UUID]*catalog.Patient
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		branches: make(map[uuid.UUID]*catalog.Branch),
		services: make(map[uuid.UUID]*catalog.Service),
		doctors:  make(map[uuid.UUID]*catalog.Doctor),
		patients: make(map[uuid.UUID]*catalog.Patient),
	}
}

func (d *mockDirectory) addBranch(name string) *catalog.Branch {
	b := &catalog.Branch{ID: uuid.New(), Name: name, Code: strings.ToLower(name)}
	d.branches[b.ID] = b
	return b
}

func (d *mockDirectory) addDoctor(name string, branch *catalog.Branch) *catalog.Doctor {
	doc := &catalog.Doctor{ID: uuid.New(), FullName: name}
	if branch != nil {
		doc.BranchID = &branch.ID
	}
	d.doctors[doc.ID] = doc
	return doc
}

func (d *mockDirectory) addService(name string, price float64) *catalog.Service {
	s := &catalog.Service{ID: uuid.New(), Name: name, DurationMin: 30, PriceFrom: &price}
	d.services[s.ID] = s
	return s
}

func (d *mockDirectory) addPatient(name, phone string) *catalog.Patient {
	p := &catalog.Patient{ID: uuid.New(), FullName: name, Phone: phone}
	d.patients[p.ID] = p
	return p
}

func (d *mockDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*catalog.Doctor, error) {
	if doc, ok := d.doctors[id]; ok {
		return doc, nil
	}
	return nil, catalog.ErrNotFound
}

func (d *mockDirectory) GetDoctorByUserID(_ context.Context, userID string) (*catalog.Doctor, error) {
	for _, doc := range d.doctors {
		if doc.UserID != nil && *doc.UserID == userID {
			return doc, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (d *mockDirectory) ListDoctors(_ context.Context, branchID *uuid.UUID, activeOnly bool) ([]*catalog.Doctor, error) {
	var out []*catalog.Doctor
	for _, doc := range d.doctors {
		if activeOnly && !doc.IsActive() {
			continue
		}
		if branchID != nil && !sameID(doc.BranchID, branchID) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (d *mockDirectory) GetBranch(_ context.Context, id uuid.UUID) (*catalog.Branch, error) {
	if b, ok := d.branches[id]; ok {
		return b, nil
	}
	return nil, catalog.ErrNotFound
}

func (d *mockDirectory) GetService(_ context.Context, id uuid.UUID) (*catalog.Service, error) {
	if s, ok := d.services[id]; ok {
		return s, nil
	}
	return nil, catalog.ErrNotFound
}

func (d *mockDirectory) GetPatient(_ context.Context, id uuid.UUID) (*catalog.Patient, error) {
	if p, ok := d.patients[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

func (d *mockDirectory) GetPatientByUserID(_ context.Context, userID string) (*catalog.Patient, error) {
	for _, p := range d.patients {
		if p.UserID != nil && *p.UserID == userID {
			return p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// -- Mock Scheduler --

type mockScheduler struct {
	byDoctor  map[uuid.UUID]calendar.EffectiveSchedule
	err       error
	manyCalls int
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{byDoctor: make(map[uuid.UUID]calendar.EffectiveSchedule)}
}

func (s *mockScheduler) works(doctor *catalog.Doctor, start, end string) {
	branch := uuid.Nil
	if doctor.BranchID != nil {
		branch = *doctor.BranchID
	}
	s.byDoctor[doctor.ID] = calendar.EffectiveSchedule{
		Working: true, Start: clock(start), End: clock(end), BranchID: branch, Source: calendar.SourceTemplate,
	}
}

func (s *mockScheduler) Resolve(_ context.Context, doctorID uuid.UUID, _ *uuid.UUID, _ calendar.Date) (calendar.EffectiveSchedule, error) {
	if s.err != nil {
		return calendar.NotWorking, s.err
	}
	return s.byDoctor[doctorID], nil
}

func (s *mockScheduler) ResolveMany(ctx context.Context, doctorIDs []uuid.UUID, branchID *uuid.UUID, date calendar.Date) (map[uuid.UUID]calendar.EffectiveSchedule, error) {
	s.manyCalls++
	out := make(map[uuid.UUID]calendar.EffectiveSchedule, len(doctorIDs))
	for _, id := range doctorIDs {
		eff, err := s.Resolve(ctx, id, branchID, date)
		if err != nil {
			return nil, err
		}
		out[id] = eff
	}
	return out, nil
}

// -- Recording Publisher --

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// -- fixture --

type fixture struct {
	dir   *mockDirectory
	repo  *mockRepo
	sched *mockScheduler
	pub   *recordingPublisher
	svc   *Service

	branch  *catalog.Branch
	doctor  *catalog.Doctor
	patient *catalog.Patient
}

func newFixture() *fixture {
	f := &fixture{dir: newMockDirectory(), sched: newMockScheduler(), pub: &recordingPublisher{}}
	f.repo = newMockRepo(f.dir)
	f.svc = NewService(f.repo, f.dir, f.sched, f.pub, zerolog.Nop(), Options{Granularity: 30, Location: time.UTC})
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	f.branch = f.dir.addBranch("Central")
	f.doctor = f.dir.addDoctor("Dr. Kovalenko", f.branch)
	f.patient = f.dir.addPatient("Olena Petrenko", "+380501112233")
	return f
}

func (f *fixture) request(t string) CreateRequest {
	return CreateRequest{Date: "2024-05-01", Time: t, DoctorID: &f.doctor.ID, PatientID: &f.patient.ID}
}

func clock(s string) calendar.ClockTime {
	t, err := calendar.ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func date(s string) calendar.Date {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
