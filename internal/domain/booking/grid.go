package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/catalog"
)

// DefaultGranularity is the slot step in minutes.
const DefaultGranularity = 30

// ValidGranularity reports whether step minutes tile a day evenly. The
// bounds are shared with configuration validation.
func ValidGranularity(step int) bool {
	return calendar.ValidStep(step)
}

// GridBuilder turns effective schedules and active appointments into the
// day grid.
type GridBuilder struct {
	sched       Scheduler
	dir         Directory
	repo        Repository
	granularity int
}

func NewGridBuilder(sched Scheduler, dir Directory, repo Repository, granularity int) *GridBuilder {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return &GridBuilder{sched: sched, dir: dir, repo: repo, granularity: granularity}
}

type workingDoctor struct {
	doctor *catalog.Doctor
	sched  calendar.EffectiveSchedule
}

func (b *GridBuilder) doctors(ctx context.Context, q GridQuery) ([]*catalog.Doctor, error) {
	if len(q.DoctorIDs) == 0 {
		return b.dir.ListDoctors(ctx, q.BranchID, true)
	}
	seen := make(map[uuid.UUID]bool, len(q.DoctorIDs))
	var out []*catalog.Doctor
	for _, id := range q.DoctorIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		d, err := b.dir.GetDoctor(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load doctor %s: %w", id, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// BuildGrid resolves every requested doctor on q.Date. Doctors that do not
// work are left out; when nobody works the grid is empty, which is not an
// error. The label axis spans the earliest start (floored to the step) to
// the latest end, exclusive.
func (b *GridBuilder) BuildGrid(ctx context.Context, q GridQuery) (*Grid, error) {
	step := q.Granularity
	if step == 0 {
		step = b.granularity
	}
	if !ValidGranularity(step) {
		return nil, fmt.Errorf("%w: step must divide a day into whole slots", ErrInvalid)
	}

	grid := &Grid{Date: q.Date, Hours: []string{}, Doctors: []DoctorDay{}}

	docs, err := b.doctors(ctx, q)
	if err != nil {
		return nil, err
	}
	docIDs := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		docIDs[i] = d.ID
	}
	schedules, err := b.sched.ResolveMany(ctx, docIDs, q.BranchID, q.Date)
	if err != nil {
		return nil, err
	}
	var working []workingDoctor
	for _, d := range docs {
		if s := schedules[d.ID]; s.Working {
			working = append(working, workingDoctor{doctor: d, sched: s})
		}
	}
	if len(working) == 0 {
		return grid, nil
	}

	start, end := working[0].sched.Start, working[0].sched.End
	ids := make([]uuid.UUID, len(working))
	for i, w := range working {
		ids[i] = w.doctor.ID
		if w.sched.Start < start {
			start = w.sched.Start
		}
		if w.sched.End > end {
			end = w.sched.End
		}
	}
	labels := make(map[string]bool)
	for t := start.Floor(step); t < end; t += calendar.ClockTime(step) {
		grid.Hours = append(grid.Hours, t.String())
		labels[t.String()] = true
	}

	appts, err := b.repo.ActiveOn(ctx, q.Date, ids)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	busy := make(map[uuid.UUID]map[string]BusySlot, len(working))
	for _, a := range appts {
		label := a.Time.String()
		if a.DoctorID == nil || !a.Status.Active() || !labels[label] {
			continue
		}
		slots := busy[*a.DoctorID]
		if slots == nil {
			slots = make(map[string]BusySlot)
			busy[*a.DoctorID] = slots
		}
		if _, dup := slots[label]; dup {
			continue
		}
		slots[label] = BusySlot{
			AppointmentID: a.ID,
			Status:        a.Status,
			ServiceName:   a.ServiceName,
			PatientName:   a.DisplayName(),
		}
	}

	branchNames := make(map[uuid.UUID]string)
	for _, w := range working {
		name, ok := branchNames[w.sched.BranchID]
		if !ok {
			br, err := b.dir.GetBranch(ctx, w.sched.BranchID)
			switch {
			case err == nil:
				name = br.Name
			case !errors.Is(err, catalog.ErrNotFound):
				return nil, fmt.Errorf("load branch: %w", err)
			}
			branchNames[w.sched.BranchID] = name
		}
		slots := busy[w.doctor.ID]
		if slots == nil {
			slots = map[string]BusySlot{}
		}
		grid.Doctors = append(grid.Doctors, DoctorDay{
			ID:         w.doctor.ID,
			Name:       w.doctor.FullName,
			Branch:     name,
			BranchID:   w.sched.BranchID,
			Start:      w.sched.Start,
			End:        w.sched.End,
			BreakStart: w.sched.BreakStart,
			BreakEnd:   w.sched.BreakEnd,
			BusySlots:  slots,
		})
	}
	return grid, nil
}
