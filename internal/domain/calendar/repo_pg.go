package calendar

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

// translate maps constraint violations to calendar errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicateRule
	}
	if db.IsForeignKeyViolation(err) {
		return ErrUnknownReference
	}
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

// =========== Weekly Template Repository ===========

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository { return &templateRepoPG{pool: pool} }

func (r *templateRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const tplCols = `id, doctor_id, branch_id, weekday, start_time, end_time,
	break_start, break_end, active, created_at, updated_at`

func scanTemplate(row pgx.Row) (*WeeklyTemplate, error) {
	var t WeeklyTemplate
	var weekday int16
	var active bool
	err := row.Scan(&t.ID, &t.DoctorID, &t.BranchID, &weekday, &t.StartTime, &t.EndTime,
		&t.BreakStart, &t.BreakEnd, &active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Weekday = Weekday(weekday)
	t.Active = &active
	return &t, nil
}

func (r *templateRepoPG) Create(ctx context.Context, t *WeeklyTemplate) error {
	t.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO weekly_template (id, doctor_id, branch_id, weekday, start_time, end_time,
			break_start, break_end, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		t.ID, t.DoctorID, t.BranchID, int16(t.Weekday), t.StartTime, t.EndTime,
		t.BreakStart, t.BreakEnd, t.IsActive()).Scan(&t.CreatedAt, &t.UpdatedAt)
	return translate(err)
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*WeeklyTemplate, error) {
	t, err := scanTemplate(r.conn(ctx).QueryRow(ctx, `SELECT `+tplCols+` FROM weekly_template WHERE id = $1`, id))
	return t, translate(err)
}

func (r *templateRepoPG) Update(ctx context.Context, t *WeeklyTemplate) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE weekly_template SET branch_id=$2, weekday=$3, start_time=$4, end_time=$5,
			break_start=$6, break_end=$7, active=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING doctor_id, created_at, updated_at`,
		t.ID, t.BranchID, int16(t.Weekday), t.StartTime, t.EndTime,
		t.BreakStart, t.BreakEnd, t.IsActive()).Scan(&t.DoctorID, &t.CreatedAt, &t.UpdatedAt)
	return translate(err)
}

func (r *templateRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM weekly_template WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *templateRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyTemplate, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+tplCols+` FROM weekly_template
		WHERE doctor_id = $1 ORDER BY weekday, start_time`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*WeeklyTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *templateRepoPG) Find(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, weekday Weekday) (*WeeklyTemplate, error) {
	t, err := scanTemplate(r.conn(ctx).QueryRow(ctx, `SELECT `+tplCols+` FROM weekly_template
		WHERE doctor_id = $1 AND weekday = $2 AND ($3::uuid IS NULL OR branch_id = $3)
		ORDER BY active DESC, start_time, branch_id
		LIMIT 1`, doctorID, int16(weekday), branchID))
	if db.IsNoRows(err) {
		return nil, nil
	}
	return t, err
}

// =========== Date Override Repository ===========

type overrideRepoPG struct{ pool *pgxpool.Pool }

func NewOverrideRepoPG(pool *pgxpool.Pool) OverrideRepository { return &overrideRepoPG{pool: pool} }

func (r *overrideRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const ovCols = `id, doctor_id, branch_id, date, working, start_time, end_time,
	break_start, break_end, note, created_at, updated_at`

func scanOverride(row pgx.Row) (*DateOverride, error) {
	var o DateOverride
	err := row.Scan(&o.ID, &o.DoctorID, &o.BranchID, &o.Date, &o.Working, &o.StartTime, &o.EndTime,
		&o.BreakStart, &o.BreakEnd, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *overrideRepoPG) Create(ctx context.Context, o *DateOverride) error {
	o.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO date_override (id, doctor_id, branch_id, date, working, start_time, end_time,
			break_start, break_end, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		o.ID, o.DoctorID, o.BranchID, o.Date, o.Working, o.StartTime, o.EndTime,
		o.BreakStart, o.BreakEnd, o.Note).Scan(&o.CreatedAt, &o.UpdatedAt)
	return translate(err)
}

func (r *overrideRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DateOverride, error) {
	o, err := scanOverride(r.conn(ctx).QueryRow(ctx, `SELECT `+ovCols+` FROM date_override WHERE id = $1`, id))
	return o, translate(err)
}

func (r *overrideRepoPG) Update(ctx context.Context, o *DateOverride) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE date_override SET branch_id=$2, date=$3, working=$4, start_time=$5, end_time=$6,
			break_start=$7, break_end=$8, note=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING doctor_id, created_at, updated_at`,
		o.ID, o.BranchID, o.Date, o.Working, o.StartTime, o.EndTime,
		o.BreakStart, o.BreakEnd, o.Note).Scan(&o.DoctorID, &o.CreatedAt, &o.UpdatedAt)
	return translate(err)
}

func (r *overrideRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM date_override WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *overrideRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to Date) ([]*DateOverride, error) {
	var lo, hi *Date
	if !from.IsZero() {
		lo = &from
	}
	if !to.IsZero() {
		hi = &to
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ovCols+` FROM date_override
		WHERE doctor_id = $1
		  AND ($2::date IS NULL OR date >= $2)
		  AND ($3::date IS NULL OR date <= $3)
		ORDER BY date, branch_id`, doctorID, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DateOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *overrideRepoPG) Find(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date Date) (*DateOverride, error) {
	o, err := scanOverride(r.conn(ctx).QueryRow(ctx, `SELECT `+ovCols+` FROM date_override
		WHERE doctor_id = $1 AND date = $2 AND ($3::uuid IS NULL OR branch_id = $3)
		ORDER BY working DESC, start_time NULLS LAST, branch_id
		LIMIT 1`, doctorID, date, branchID))
	if db.IsNoRows(err) {
		return nil, nil
	}
	return o, err
}
