package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/infrastructure/storage/postgres"
)

const proceduresTable = "procedures"

var procedureColumns = postgres.ExtractDBColumns[procedureRow]()

var procedureUniqueFields = postgres.UniqueField{
	"procedures_code_key": "code",
}

// procedureRow is the flat table shape of a procedure; pricing is stored as a
// kind column plus the fields of each variant.
type procedureRow struct {
	ID     id.ID  `db:"id"`
	Code   string `db:"code"`
	Name   string `db:"name"`
	Active bool   `db:"active"`
	procedure.PricingFields
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newProcedureRow(p *procedure.Procedure) *procedureRow {
	return &procedureRow{
		ID:            p.ID,
		Code:          p.Code,
		Name:          p.Name,
		Active:        p.Active,
		PricingFields: procedure.FlattenPricing(p.Pricing),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (row *procedureRow) toDomain() (*procedure.Procedure, error) {
	pricing, err := row.Pricing()
	if err != nil {
		return nil, fmt.Errorf("procedure %s: %w", row.Code, err)
	}
	return &procedure.Procedure{
		ID:        row.ID,
		Code:      row.Code,
		Name:      row.Name,
		Active:    row.Active,
		Pricing:   pricing,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// ProcedureRepo implements procedure.Repository.
type ProcedureRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ procedure.Repository = (*ProcedureRepo)(nil)

// NewProcedureRepo creates a new procedure repository.
func NewProcedureRepo(txManager *postgres.TxManager) *ProcedureRepo {
	return &ProcedureRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

// Create inserts a procedure.
func (r *ProcedureRepo) Create(ctx context.Context, p *procedure.Procedure) error {
	sql, args, err := r.builder.Insert(proceduresTable).
		SetMap(postgres.StructToMap(newProcedureRow(p))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "insert procedure", "procedure", p.Code, procedureUniqueFields)
	}
	return nil
}

// Update rewrites every mutable column.
func (r *ProcedureRepo) Update(ctx context.Context, p *procedure.Procedure) error {
	values := postgres.StructToMap(newProcedureRow(p))
	delete(values, "id")
	delete(values, "created_at")

	sql, args, err := r.builder.Update(proceduresTable).
		SetMap(values).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "update procedure", "procedure", p.Code, procedureUniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, "update procedure", "procedure", p.ID, nil)
	}
	return nil
}

// GetByID retrieves a procedure by id.
func (r *ProcedureRepo) GetByID(ctx context.Context, procedureID id.ID) (*procedure.Procedure, error) {
	return r.getOne(ctx, squirrel.Eq{"id": procedureID}, procedureID)
}

// GetByCode retrieves a procedure by its normalized code.
func (r *ProcedureRepo) GetByCode(ctx context.Context, code string) (*procedure.Procedure, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code}, code)
}

func (r *ProcedureRepo) getOne(ctx context.Context, where squirrel.Sqlizer, key any) (*procedure.Procedure, error) {
	sql, args, err := r.builder.Select(procedureColumns...).
		From(proceduresTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row procedureRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get procedure", "procedure", key, nil)
	}
	return row.toDomain()
}

// List returns procedures ordered by code.
func (r *ProcedureRepo) List(ctx context.Context, filter procedure.Filter) (domain.ListResult[*procedure.Procedure], error) {
	q := r.builder.Select(procedureColumns...).From(proceduresTable)

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"code": pattern},
			squirrel.ILike{"name": pattern},
		})
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"active": true})
	}

	rows, err := postgres.SelectPage[*procedureRow](ctx, r.txManager.GetQuerier(ctx), q,
		[]string{"code"}, filter.ListFilter)
	if err != nil {
		return domain.ListResult[*procedure.Procedure]{}, err
	}

	result := domain.ListResult[*procedure.Procedure]{
		Items:      make([]*procedure.Procedure, 0, len(rows.Items)),
		TotalCount: rows.TotalCount,
		Limit:      rows.Limit,
		Offset:     rows.Offset,
	}
	for _, row := range rows.Items {
		p, err := row.toDomain()
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, p)
	}
	return result, nil
}
