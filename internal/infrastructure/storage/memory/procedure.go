package memory

import (
	"context"
	"sort"
	"strings"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/catalogs/procedure"
)

// ProcedureRepo implements procedure.Repository.
type ProcedureRepo struct{ s *Store }

// Procedures returns the procedure repository.
func (s *Store) Procedures() *ProcedureRepo { return &ProcedureRepo{s: s} }

func codeTaken(st *state, code string, except id.ID) bool {
	for _, p := range st.procedures {
		if p.ID != except && p.Code == code {
			return true
		}
	}
	return false
}

func (r *ProcedureRepo) Create(ctx context.Context, p *procedure.Procedure) error {
	return r.s.do(ctx, func(st *state) error {
		if codeTaken(st, p.Code, p.ID) {
			return apperror.NewDuplicate("procedure", "code", p.Code)
		}
		st.procedures[p.ID] = *p
		return nil
	})
}

func (r *ProcedureRepo) Update(ctx context.Context, p *procedure.Procedure) error {
	return r.s.do(ctx, func(st *state) error {
		cur, ok := st.procedures[p.ID]
		if !ok {
			return apperror.NewNotFound("procedure", p.ID)
		}
		if codeTaken(st, p.Code, p.ID) {
			return apperror.NewDuplicate("procedure", "code", p.Code)
		}
		updated := *p
		updated.CreatedAt = cur.CreatedAt
		st.procedures[p.ID] = updated
		return nil
	})
}

func (r *ProcedureRepo) GetByID(ctx context.Context, procedureID id.ID) (*procedure.Procedure, error) {
	var out *procedure.Procedure
	err := r.s.do(ctx, func(st *state) error {
		p, ok := st.procedures[procedureID]
		if !ok {
			return apperror.NewNotFound("procedure", procedureID)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *ProcedureRepo) GetByCode(ctx context.Context, code string) (*procedure.Procedure, error) {
	var out *procedure.Procedure
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.procedures {
			if p.Code == code {
				p := p
				out = &p
				return nil
			}
		}
		return apperror.NewNotFound("procedure", code)
	})
	return out, err
}

func (r *ProcedureRepo) List(ctx context.Context, filter procedure.Filter) (domain.ListResult[*procedure.Procedure], error) {
	var res domain.ListResult[*procedure.Procedure]
	err := r.s.do(ctx, func(st *state) error {
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		matched := make([]*procedure.Procedure, 0)
		for _, p := range st.procedures {
			if filter.ActiveOnly && !p.Active {
				continue
			}
			if search != "" && !containsFold(p.Code, search) && !containsFold(p.Name, search) {
				continue
			}
			p := p
			matched = append(matched, &p)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })
		res = domain.Paginate(matched, filter.ListFilter)
		return nil
	})
	return res, err
}
