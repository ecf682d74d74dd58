package calendar

import (
	"context"

	"github.com/google/uuid"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *WeeklyTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*WeeklyTemplate, error)
	Update(ctx context.Context, t *WeeklyTemplate) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyTemplate, error)
	Find(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, weekday Weekday) (*WeeklyTemplate, error)
}

type OverrideRepository interface {
	Create(ctx context.Context, o *DateOverride) error
	GetByID(ctx context.Context, id uuid.UUID) (*DateOverride, error)
	Update(ctx context.Context, o *DateOverride) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByDoctor lists overrides in [from, to]; a zero bound is open.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to Date) ([]*DateOverride, error)
	Find(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date Date) (*DateOverride, error)
}

type ruleStore struct {
	templates TemplateRepository
	overrides OverrideRepository
}

// NewRuleStore joins the two repositories into the read side the resolver uses.
func NewRuleStore(templates TemplateRepository, overrides OverrideRepository) RuleStore {
	return &ruleStore{templates: templates, overrides: overrides}
}

func (s *ruleStore) FindOverride(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, date Date) (*DateOverride, error) {
	return s.overrides.Find(ctx, doctorID, branchID, date)
}

func (s *ruleStore) FindTemplate(ctx context.Context, doctorID uuid.UUID, branchID *uuid.UUID, weekday Weekday) (*WeeklyTemplate, error) {
	return s.templates.Find(ctx, doctorID, branchID, weekday)
}
