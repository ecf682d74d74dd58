package catalog

import (
	"context"

	"github.com/google/uuid"
)

type BranchRepository interface {
	Create(ctx context.Context, b *Branch) error
	GetByID(ctx context.Context, id uuid.UUID) (*Branch, error)
	Update(ctx context.Context, b *Branch) error
	List(ctx context.Context, activeOnly bool) ([]*Branch, error)
	WorkHours(ctx context.Context, branchID uuid.UUID) ([]BranchWorkHour, error)
	SetWorkHours(ctx context.Context, branchID uuid.UUID, hours []BranchWorkHour) error
}

type ServiceRepository interface {
	Create(ctx context.Context, s *Service) error
	GetByID(ctx context.Context, id uuid.UUID) (*Service, error)
	Update(ctx context.Context, s *Service) error
	List(ctx context.Context, activeOnly bool) ([]*Service, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	// List returns doctors ordered by name; a nil branch lists every branch.
	List(ctx context.Context, branchID *uuid.UUID, activeOnly bool) ([]*Doctor, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
}
