package procedure_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain/audit"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/infrastructure/storage/memory"
)

func amount(v int64) *types.MinorUnits {
	m := types.MinorUnits(v)
	return &m
}

func newCatalog() (*procedure.Service, *memory.Store) {
	store := memory.New()
	return procedure.NewService(store.Procedures(), store, store), store
}

func TestCreate_NormalizesCode(t *testing.T) {
	svc, _ := newCatalog()
	ctx := context.Background()

	p, err := svc.Create(ctx, procedure.Input{
		Code:    "  od020 ",
		Name:    "Resin filling",
		Pricing: procedure.FixedPrice{Amount: amount(180000)},
	})
	require.NoError(t, err)
	assert.Equal(t, "OD020", p.Code)
	assert.True(t, p.Active)

	found, err := svc.GetByCode(ctx, "od020")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newCatalog()
	ctx := context.Background()

	tests := []struct {
		name  string
		in    procedure.Input
		field string
	}{
		{"missing code", procedure.Input{Name: "X", Pricing: procedure.FixedPrice{}}, "code"},
		{"missing name", procedure.Input{Code: "X1", Pricing: procedure.FixedPrice{}}, "name"},
		{"missing pricing", procedure.Input{Code: "X1", Name: "X"}, "pricing"},
		{"negative amount", procedure.Input{Code: "X1", Name: "X", Pricing: procedure.FixedPrice{Amount: amount(-1)}}, "pricing.amount"},
		{"max below min", procedure.Input{Code: "X1", Name: "X", Pricing: procedure.VariableRange{Min: amount(500), Max: amount(100)}}, "pricing.max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestCreate_DuplicateCode(t *testing.T) {
	svc, _ := newCatalog()
	ctx := context.Background()

	_, err := svc.Create(ctx, procedure.Input{Code: "END01", Name: "Root canal", Pricing: procedure.VariableRange{}})
	require.NoError(t, err)

	_, err = svc.Create(ctx, procedure.Input{Code: "end01", Name: "Other", Pricing: procedure.FixedPrice{}})
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicate))
}

func TestUpdate_ChangesPricingAndAudits(t *testing.T) {
	svc, store := newCatalog()
	ctx := context.Background()

	p, err := svc.Create(ctx, procedure.Input{Code: "END01", Name: "Root canal", Pricing: procedure.VariableRange{}})
	require.NoError(t, err)

	unit := "canal"
	updated, err := svc.Update(ctx, p.ID, procedure.Patch{
		Pricing: procedure.VariableRange{Min: amount(90000), Max: amount(150000), Unit: &unit},
	})
	require.NoError(t, err)

	vr, ok := updated.Pricing.(procedure.VariableRange)
	require.True(t, ok)
	assert.Equal(t, types.MinorUnits(90000), *vr.Min)

	entries, err := store.History(ctx, audit.EntityProcedure, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionUpdate, entries[0].Action)
	assert.Contains(t, string(entries[0].Changes), "priceMin")
}

func TestSetActive_KeepsProcedureResolvable(t *testing.T) {
	svc, _ := newCatalog()
	ctx := context.Background()

	p, err := svc.Create(ctx, procedure.Input{Code: "PRF", Name: "Prophylaxis", Pricing: procedure.FixedPrice{Amount: amount(50000)}})
	require.NoError(t, err)

	_, err = svc.SetActive(ctx, p.ID, false)
	require.NoError(t, err)

	found, err := svc.GetByCode(ctx, "PRF")
	require.NoError(t, err)
	assert.False(t, found.Active)

	active, err := svc.List(ctx, procedure.Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active.Items)

	all, err := svc.List(ctx, procedure.Filter{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 1)
}

func TestProcedure_MarshalJSON(t *testing.T) {
	p := &procedure.Procedure{
		Code:    "END01",
		Name:    "Root canal",
		Pricing: procedure.VariableRange{Min: amount(90000)},
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded struct {
		Pricing procedure.PricingFields `json:"pricing"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, procedure.PricingVariable, decoded.Pricing.Kind)
	assert.Equal(t, types.MinorUnits(90000), *decoded.Pricing.Min)
	assert.Nil(t, decoded.Pricing.Amount)

	back, err := decoded.Pricing.Pricing()
	require.NoError(t, err)
	assert.IsType(t, procedure.VariableRange{}, back)

	_, err = procedure.PricingFields{Kind: "tiered"}.Pricing()
	assert.Error(t, err)
}
