package procedure

import (
	"context"
	"fmt"
	"time"

	"clinicledger/internal/core/id"
	"clinicledger/internal/core/tx"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/audit"
	"clinicledger/pkg/logger"
)

// Service manages the procedure catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	auditor   audit.Recorder
	hooks     *domain.HookRegistry[*Procedure]
	now       func() time.Time
}

// NewService creates a procedure catalog service. auditor may be nil.
func NewService(repo Repository, txManager tx.Manager, auditor audit.Recorder) *Service {
	s := &Service{
		repo:      repo,
		txManager: txManager,
		auditor:   auditor,
		hooks:     domain.NewHookRegistry[*Procedure](),
		now:       time.Now,
	}

	s.hooks.OnBeforeCreate(s.prepare)
	s.hooks.OnBeforeUpdate(s.prepare)

	return s
}

// Hooks returns the hook registry for procedure lifecycle callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Procedure] {
	return s.hooks
}

func (s *Service) prepare(_ context.Context, p *Procedure) error {
	p.normalize()
	return p.Validate()
}

// Create adds a procedure. New procedures are active.
func (s *Service) Create(ctx context.Context, in Input) (*Procedure, error) {
	now := s.now().UTC()
	p := &Procedure{
		ID:        id.New(),
		Code:      in.Code,
		Name:      in.Name,
		Active:    true,
		Pricing:   in.Pricing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, domain.BeforeCreate, p); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		if err := s.logChange(ctx, p.ID, audit.ActionCreate, audit.Diff(nil, p.auditState())); err != nil {
			return err
		}
		return s.hooks.Run(ctx, domain.AfterCreate, p)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "procedure created", "procedure_id", p.ID, "code", p.Code)
	return p, nil
}

// Update changes code, name or pricing.
func (s *Service) Update(ctx context.Context, procedureID id.ID, patch Patch) (*Procedure, error) {
	var p *Procedure
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, procedureID)
		if err != nil {
			return err
		}
		before := current.auditState()

		updated := *current
		if patch.Code != nil {
			updated.Code = *patch.Code
		}
		if patch.Name != nil {
			updated.Name = *patch.Name
		}
		if patch.Pricing != nil {
			updated.Pricing = patch.Pricing
		}
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, &updated); err != nil {
			return err
		}
		updated.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, &updated); err != nil {
			return err
		}
		if err := s.logChange(ctx, updated.ID, audit.ActionUpdate, audit.Diff(before, updated.auditState())); err != nil {
			return err
		}
		p = &updated
		return s.hooks.Run(ctx, domain.AfterUpdate, p)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "procedure updated", "procedure_id", p.ID, "code", p.Code)
	return p, nil
}

// SetActive activates or deactivates a procedure. Inactive procedures stay
// resolvable by code so existing invoices keep their references.
func (s *Service) SetActive(ctx context.Context, procedureID id.ID, active bool) (*Procedure, error) {
	var p *Procedure
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, procedureID)
		if err != nil {
			return err
		}
		p = current
		if current.Active == active {
			return nil
		}

		current.Active = active
		current.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}

		action := audit.ActionDeactivate
		if active {
			action = audit.ActionActivate
		}
		return s.logChange(ctx, current.ID, action, map[string]any{
			"active": map[string]any{"old": !active, "new": active},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "procedure activation changed", "procedure_id", procedureID, "active", active)
	return p, nil
}

// GetByID returns a procedure by ID.
func (s *Service) GetByID(ctx context.Context, procedureID id.ID) (*Procedure, error) {
	return s.repo.GetByID(ctx, procedureID)
}

// GetByCode returns a procedure by code, normalizing it first.
func (s *Service) GetByCode(ctx context.Context, code string) (*Procedure, error) {
	return s.repo.GetByCode(ctx, NormalizeCode(code))
}

// List returns procedures ordered by code.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Procedure], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

func (s *Service) logChange(ctx context.Context, procedureID id.ID, action audit.Action, changes map[string]any) error {
	if s.auditor == nil || len(changes) == 0 {
		return nil
	}
	if err := s.auditor.LogChange(ctx, audit.EntityProcedure, procedureID, action, changes); err != nil {
		return fmt.Errorf("audit procedure change: %w", err)
	}
	return nil
}
