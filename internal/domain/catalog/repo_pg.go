package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/platform/db"
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return ErrNotFound
	case db.IsUniqueViolation(err, ""):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: referenced branch does not exist", ErrInvalid)
	}
	return err
}

type pgRepo struct{ pool *pgxpool.Pool }

func (r pgRepo) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// =========== Branch Repository ===========

type branchRepoPG struct{ pgRepo }

func NewBranchRepoPG(pool *pgxpool.Pool) BranchRepository { return &branchRepoPG{pgRepo{pool}} }

const branchCols = `id, name, code, city, address, phone, phone_alt, email,
	latitude, longitude, map_url, active, sort_order, created_at, updated_at`

func scanBranch(row pgx.Row) (*Branch, error) {
	var b Branch
	var active bool
	if err := row.Scan(&b.ID, &b.Name, &b.Code, &b.City, &b.Address, &b.Phone, &b.PhoneAlt, &b.Email,
		&b.Latitude, &b.Longitude, &b.MapURL, &active, &b.SortOrder, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Active = &active
	return &b, nil
}

func (r *branchRepoPG) Create(ctx context.Context, b *Branch) error {
	b.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO branch (id, name, code, city, address, phone, phone_alt, email,
			latitude, longitude, map_url, active, sort_order)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		b.ID, b.Name, b.Code, b.City, b.Address, b.Phone, b.PhoneAlt, b.Email,
		b.Latitude, b.Longitude, b.MapURL, b.IsActive(), b.SortOrder).Scan(&b.CreatedAt, &b.UpdatedAt)
	return translate(err)
}

func (r *branchRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Branch, error) {
	b, err := scanBranch(r.conn(ctx).QueryRow(ctx, `SELECT `+branchCols+` FROM branch WHERE id = $1`, id))
	return b, translate(err)
}

func (r *branchRepoPG) Update(ctx context.Context, b *Branch) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE branch SET name=$2, code=$3, city=$4, address=$5, phone=$6, phone_alt=$7, email=$8,
			latitude=$9, longitude=$10, map_url=$11, active=$12, sort_order=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		b.ID, b.Name, b.Code, b.City, b.Address, b.Phone, b.PhoneAlt, b.Email,
		b.Latitude, b.Longitude, b.MapURL, b.IsActive(), b.SortOrder).Scan(&b.CreatedAt, &b.UpdatedAt)
	return translate(err)
}

func (r *branchRepoPG) List(ctx context.Context, activeOnly bool) ([]*Branch, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+branchCols+` FROM branch
		WHERE (NOT $1 OR active) ORDER BY sort_order, name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *branchRepoPG) WorkHours(ctx context.Context, branchID uuid.UUID) ([]BranchWorkHour, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, branch_id, weekday, opens_at, closes_at, closed
		FROM branch_work_hour WHERE branch_id = $1 ORDER BY weekday`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BranchWorkHour
	for rows.Next() {
		var h BranchWorkHour
		var weekday int16
		if err := rows.Scan(&h.ID, &h.BranchID, &weekday, &h.OpensAt, &h.ClosesAt, &h.Closed); err != nil {
			return nil, err
		}
		h.Weekday = calendar.Weekday(weekday)
		items = append(items, h)
	}
	return items, rows.Err()
}

// SetWorkHours replaces the branch's week in one transaction.
func (r *branchRepoPG) SetWorkHours(ctx context.Context, branchID uuid.UUID, hours []BranchWorkHour) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM branch_work_hour WHERE branch_id = $1`, branchID); err != nil {
		return err
	}
	for i := range hours {
		h := &hours[i]
		h.ID = uuid.New()
		h.BranchID = branchID
		if _, err := tx.Exec(ctx, `INSERT INTO branch_work_hour (id, branch_id, weekday, opens_at, closes_at, closed)
			VALUES ($1,$2,$3,$4,$5,$6)`, h.ID, branchID, int16(h.Weekday), h.OpensAt, h.ClosesAt, h.Closed); err != nil {
			return translate(err)
		}
	}
	return tx.Commit(ctx)
}

// =========== Service Repository ===========

type serviceRepoPG struct{ pgRepo }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository { return &serviceRepoPG{pgRepo{pool}} }

const serviceCols = `id, name, description, duration_min, price_from, active, created_at, updated_at`

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	var active bool
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.DurationMin, &s.PriceFrom, &active,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Active = &active
	return &s, nil
}

func (r *serviceRepoPG) Create(ctx context.Context, s *Service) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO service (id, name, description, duration_min, price_from, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description, s.DurationMin, s.PriceFrom, s.IsActive()).Scan(&s.CreatedAt, &s.UpdatedAt)
	return translate(err)
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+serviceCols+` FROM service WHERE id = $1`, id))
	return s, translate(err)
}

func (r *serviceRepoPG) Update(ctx context.Context, s *Service) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE service SET name=$2, description=$3, duration_min=$4, price_from=$5, active=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description, s.DurationMin, s.PriceFrom, s.IsActive()).Scan(&s.CreatedAt, &s.UpdatedAt)
	return translate(err)
}

func (r *serviceRepoPG) List(ctx context.Context, activeOnly bool) ([]*Service, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM service
		WHERE (NOT $1 OR active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pgRepo }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pgRepo{pool}} }

const doctorCols = `id, user_id, full_name, specialization, branch_id, room, phone, active, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var active bool
	if err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Specialization, &d.BranchID, &d.Room, &d.Phone,
		&active, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Active = &active
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (id, user_id, full_name, specialization, branch_id, room, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.FullName, d.Specialization, d.BranchID, d.Room, d.Phone, d.IsActive()).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	return translate(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
	return d, translate(err)
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID string) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE user_id = $1`, userID))
	return d, translate(err)
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor SET user_id=$2, full_name=$3, specialization=$4, branch_id=$5, room=$6, phone=$7,
			active=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.FullName, d.Specialization, d.BranchID, d.Room, d.Phone, d.IsActive()).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	return translate(err)
}

func (r *doctorRepoPG) List(ctx context.Context, branchID *uuid.UUID, activeOnly bool) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctor
		WHERE ($1::uuid IS NULL OR branch_id = $1) AND (NOT $2 OR active)
		ORDER BY full_name`, branchID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pgRepo }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pgRepo{pool}} }

const patientCols = `id, user_id, full_name, date_of_birth, phone, email, branch_id, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.DateOfBirth, &p.Phone, &p.Email, &p.BranchID,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, user_id, full_name, date_of_birth, phone, email, branch_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.FullName, p.DateOfBirth, p.Phone, p.Email, p.BranchID).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	return p, translate(err)
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE user_id = $1`, userID))
	return p, translate(err)
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET full_name=$2, date_of_birth=$3, phone=$4, email=$5, branch_id=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING user_id, created_at, updated_at`,
		p.ID, p.FullName, p.DateOfBirth, p.Phone, p.Email, p.BranchID).Scan(&p.UserID, &p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *patientRepoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE ($1 = '' OR full_name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%')`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, query).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient `+where+`
		ORDER BY full_name LIMIT $2 OFFSET $3`, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
