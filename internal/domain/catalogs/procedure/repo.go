package procedure

import (
	"context"

	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
)

// Repository persists procedures. Codes are unique: Create and Update return
// DUPLICATE_ENTRY on collision.
type Repository interface {
	Create(ctx context.Context, p *Procedure) error
	Update(ctx context.Context, p *Procedure) error
	GetByID(ctx context.Context, procedureID id.ID) (*Procedure, error)
	GetByCode(ctx context.Context, code string) (*Procedure, error)
	List(ctx context.Context, filter Filter) (domain.ListResult[*Procedure], error)
}
