package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/platform/db"
)

// activeSlotIndex is the partial unique index guarding double booking.
const activeSlotIndex = "uniq_active_appointment_slot"

var dialect = goqu.Dialect("postgres")

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

var appointmentCols = []interface{}{
	"a.id", "a.branch_id", "a.doctor_id", "a.service_id", "a.patient_id",
	"a.full_name", "a.phone", "a.is_first_visit", "a.date", "a.time",
	"a.status", "a.source", "a.note", "a.internal_comment", "a.created_at", "a.updated_at",
	goqu.L("COALESCE(p.full_name, '')"),
	goqu.L("COALESCE(d.full_name, '')"),
	goqu.L("COALESCE(s.name, '')"),
}

// joined is appointment joined with the profiles shown next to it.
func joined() *goqu.SelectDataset {
	return dialect.From(goqu.T("appointment").As("a")).
		LeftJoin(goqu.T("patient").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("a.patient_id")))).
		LeftJoin(goqu.T("doctor").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("a.doctor_id")))).
		LeftJoin(goqu.T("service").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("a.service_id")))).
		Prepared(true)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.BranchID, &a.DoctorID, &a.ServiceID, &a.PatientID,
		&a.FullName, &a.Phone, &a.IsFirstVisit, &a.Date, &a.Time,
		&a.Status, &a.Source, &a.Note, &a.InternalComment, &a.CreatedAt, &a.UpdatedAt,
		&a.PatientName, &a.DoctorName, &a.ServiceName)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) queryAppointments(ctx context.Context, ds *goqu.SelectDataset) ([]*Appointment, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, branch_id, doctor_id, service_id, patient_id, full_name, phone,
			is_first_visit, date, time, status, source, note, internal_comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		a.ID, a.BranchID, a.DoctorID, a.ServiceID, a.PatientID, a.FullName, a.Phone,
		a.IsFirstVisit, a.Date, a.Time, string(a.Status), string(a.Source), a.Note, a.InternalComment,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, activeSlotIndex):
		return ErrSlotTaken
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: referenced record does not exist", ErrInvalid)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	items, err := r.queryAppointments(ctx, joined().Select(appointmentCols...).
		Where(goqu.Ex{"a.id": id.String()}))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0], nil
}

func (r *repoPG) HasActive(ctx context.Context, doctorID uuid.UUID, date calendar.Date, t calendar.ClockTime) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE doctor_id = $1 AND date = $2 AND time = $3 AND status IN ('new', 'confirmed')
		)`, doctorID, date, t).Scan(&exists)
	return exists, err
}

func activeStatuses() []string {
	out := make([]string, len(ActiveStatuses))
	for i, s := range ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func (r *repoPG) ActiveOn(ctx context.Context, date calendar.Date, doctorIDs []uuid.UUID) ([]*Appointment, error) {
	if len(doctorIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(doctorIDs))
	for i, id := range doctorIDs {
		ids[i] = id.String()
	}
	return r.queryAppointments(ctx, joined().Select(appointmentCols...).
		Where(goqu.Ex{
			"a.date":      date.String(),
			"a.doctor_id": ids,
			"a.status":    activeStatuses(),
		}).
		Order(goqu.I("a.time").Asc()))
}

// filterExpressions turns a Filter into WHERE conditions.
func filterExpressions(f Filter) []exp.Expression {
	var where []exp.Expression
	if !f.From.IsZero() {
		where = append(where, goqu.I("a.date").Gte(f.From.String()))
	}
	if !f.To.IsZero() {
		where = append(where, goqu.I("a.date").Lte(f.To.String()))
	}
	if len(f.Statuses) > 0 {
		st := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			st[i] = string(s)
		}
		where = append(where, goqu.I("a.status").In(st))
	}
	if f.BranchID != nil {
		where = append(where, goqu.I("a.branch_id").Eq(f.BranchID.String()))
	}
	if f.DoctorID != nil {
		where = append(where, goqu.I("a.doctor_id").Eq(f.DoctorID.String()))
	}
	if f.PatientID != nil {
		where = append(where, goqu.I("a.patient_id").Eq(f.PatientID.String()))
	}
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		where = append(where, goqu.Or(
			goqu.I("a.full_name").ILike(pattern),
			goqu.I("a.phone").ILike(pattern),
			goqu.I("p.full_name").ILike(pattern),
		))
	}
	return where
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	filtered := joined().Where(filterExpressions(f)...)

	countSQL, countArgs, err := filtered.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	ds := filtered.Select(appointmentCols...).
		Order(goqu.I("a.date").Desc(), goqu.I("a.time").Desc(), goqu.I("a.created_at").Desc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	items, err := r.queryAppointments(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		if db.IsUniqueViolation(err, activeSlotIndex) {
			return ErrSlotTaken
		}
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (r *repoPG) UpdateDetails(ctx context.Context, id uuid.UUID, note string, serviceID *uuid.UUID, internalComment *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment
		SET note = $2, service_id = $3, internal_comment = COALESCE($4, internal_comment), updated_at = NOW()
		WHERE id = $1`, id, note, serviceID, internalComment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scopeExpressions(scope SummaryScope) []exp.Expression {
	var where []exp.Expression
	if scope.DoctorID != nil {
		where = append(where, goqu.I("a.doctor_id").Eq(scope.DoctorID.String()))
	}
	if scope.PatientID != nil {
		where = append(where, goqu.I("a.patient_id").Eq(scope.PatientID.String()))
	}
	return where
}

func (r *repoPG) Summary(ctx context.Context, scope SummaryScope, today, weekStart calendar.Date) (*Summary, error) {
	where := scopeExpressions(scope)
	totals := dialect.From(goqu.T("appointment").As("a")).
		LeftJoin(goqu.T("service").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("a.service_id")))).
		Prepared(true).
		Select(
			goqu.L("COUNT(*)"),
			goqu.L("COUNT(*) FILTER (WHERE a.date = ?)", today.String()),
			goqu.L("COUNT(*) FILTER (WHERE a.date >= ? AND a.date < ?)", weekStart.String(), weekStart.AddDays(7).String()),
			goqu.L("COUNT(*) FILTER (WHERE a.date >= ? AND a.status IN ('new', 'confirmed'))", today.String()),
			goqu.L("COUNT(*) FILTER (WHERE a.status = 'completed')"),
			goqu.L("COUNT(*) FILTER (WHERE a.status IN ('cancelled', 'no_show'))"),
			goqu.L("COUNT(DISTINCT COALESCE(a.patient_id::text, NULLIF(a.phone, '')))"),
			goqu.L("COALESCE(SUM(s.price_from) FILTER (WHERE a.status = 'completed'), 0)::float8"),
		).
		Where(where...)
	query, args, err := totals.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build summary: %w", err)
	}
	var s Summary
	if err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&s.Total, &s.Today, &s.ThisWeek, &s.Upcoming,
		&s.Completed, &s.Cancelled, &s.UniquePatients, &s.SpentTotal); err != nil {
		return nil, err
	}

	breakdown := dialect.From(goqu.T("appointment").As("a")).
		Join(goqu.T("service").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("a.service_id")))).
		Prepared(true).
		Select("s.id", "s.name", goqu.COUNT(goqu.Star())).
		Where(append(where, goqu.I("a.status").Eq(string(StatusCompleted)))...).
		GroupBy("s.id", "s.name").
		Order(goqu.COUNT(goqu.Star()).Desc(), goqu.I("s.name").Asc())
	query, args, err = breakdown.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build breakdown: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st ServiceStat
		if err := rows.Scan(&st.ServiceID, &st.Name, &st.Count); err != nil {
			return nil, err
		}
		s.ByService = append(s.ByService, st)
	}
	return &s, rows.Err()
}

func (r *repoPG) DueReminders(ctx context.Context, start, end time.Time) ([]*Appointment, error) {
	// Slots are wall-clock times in the clinic zone carried by start.
	zone := start.Location().String()
	return r.queryAppointments(ctx, joined().Select(appointmentCols...).
		Where(
			goqu.I("a.status").Eq(string(StatusConfirmed)),
			goqu.I("a.reminder_sent_at").IsNull(),
			goqu.L("(a.date + a.time) AT TIME ZONE ? >= ?", zone, start.UTC()),
			goqu.L("(a.date + a.time) AT TIME ZONE ? < ?", zone, end.UTC()),
		).
		Order(goqu.I("a.date").Asc(), goqu.I("a.time").Asc()))
}

func (r *repoPG) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE appointment SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	return err
}
