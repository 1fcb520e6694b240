package inventory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/types"
)

func cost(v int64) *types.MinorUnits {
	m := types.MinorUnits(v)
	return &m
}

func TestSignedDelta(t *testing.T) {
	tests := []struct {
		typ  MovementType
		qty  int64
		want int64
	}{
		{MovementPurchase, 10, 10},
		{MovementPurchase, -10, 10},
		{MovementReturn, -3, 3},
		{MovementUse, 4, -4},
		{MovementUse, -4, -4},
		{MovementWaste, 2, -2},
		{MovementAdjustment, 7, 7},
		{MovementAdjustment, -7, -7},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, SignedDelta(tt.typ, tt.qty))
		})
	}
}

func TestWeightedAverage(t *testing.T) {
	t.Run("empty stock takes the purchase cost", func(t *testing.T) {
		assert.Equal(t, types.MinorUnits(1000), WeightedAverage(0, 0, 10, 1000))
	})

	t.Run("blends and rounds", func(t *testing.T) {
		// (10*1000 + 5*2000) / 15 = 1333.33
		assert.Equal(t, types.MinorUnits(1333), WeightedAverage(10, 1000, 5, 2000))
	})

	t.Run("rounds half away from zero", func(t *testing.T) {
		// (1*1 + 1*2) / 2 = 1.5
		assert.Equal(t, types.MinorUnits(2), WeightedAverage(1, 1, 1, 2))
	})

	t.Run("negative base counts as zero", func(t *testing.T) {
		assert.Equal(t, types.MinorUnits(500), WeightedAverage(-4, 9999, 2, 500))
	})

	t.Run("zero total quantity keeps unit cost", func(t *testing.T) {
		assert.Equal(t, types.MinorUnits(700), WeightedAverage(0, 100, 0, 700))
	})
}

func TestApply_Scenarios(t *testing.T) {
	item := &Item{ID: id.New(), Active: true}

	// A: first purchase
	out, err := Apply(item, MovementInput{ItemID: item.ID, Type: MovementPurchase, Quantity: 10, UnitCost: cost(1000)}, StockPolicyClamp)
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.Stock)
	assert.Equal(t, types.MinorUnits(1000), out.AvgCost)
	assert.Equal(t, types.MinorUnits(1000), out.LastCost)
	item.Stock, item.AvgCost, item.LastCost = out.Stock, out.AvgCost, out.LastCost

	// B: second purchase at a higher cost
	out, err = Apply(item, MovementInput{ItemID: item.ID, Type: MovementPurchase, Quantity: 5, UnitCost: cost(2000)}, StockPolicyClamp)
	require.NoError(t, err)
	assert.Equal(t, int64(15), out.Stock)
	assert.Equal(t, types.MinorUnits(1333), out.AvgCost)
	assert.Equal(t, types.MinorUnits(2000), out.LastCost)
	item.Stock, item.AvgCost, item.LastCost = out.Stock, out.AvgCost, out.LastCost

	// C: over-consumption clamps
	out, err = Apply(item, MovementInput{ItemID: item.ID, Type: MovementUse, Quantity: 20}, StockPolicyClamp)
	require.NoError(t, err)
	assert.Equal(t, int64(-20), out.Delta)
	assert.Equal(t, int64(0), out.Stock)
	assert.True(t, out.Clamped)
	assert.Equal(t, types.MinorUnits(1333), out.AvgCost)
	assert.Equal(t, types.MinorUnits(2000), out.LastCost)
}

func TestApply_RejectPolicy(t *testing.T) {
	item := &Item{ID: id.New(), Stock: 15}

	_, err := Apply(item, MovementInput{ItemID: item.ID, Type: MovementUse, Quantity: 20}, StockPolicyReject)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, int64(20), appErr.Details["requested"])
	assert.Equal(t, int64(15), appErr.Details["available"])

	out, err := Apply(item, MovementInput{ItemID: item.ID, Type: MovementUse, Quantity: 15}, StockPolicyReject)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Stock)
}

func TestApply_CostOnlyMovesOnPurchaseWithCost(t *testing.T) {
	base := Item{ID: id.New(), Stock: 10, AvgCost: 800, LastCost: 900}

	inputs := []MovementInput{
		{Type: MovementUse, Quantity: 3},
		{Type: MovementWaste, Quantity: 1},
		{Type: MovementReturn, Quantity: 2},
		{Type: MovementAdjustment, Quantity: -4},
		{Type: MovementAdjustment, Quantity: 4},
		{Type: MovementPurchase, Quantity: 6},
	}
	for _, in := range inputs {
		in.ItemID = base.ID
		item := base
		out, err := Apply(&item, in, StockPolicyClamp)
		require.NoError(t, err)
		assert.Equal(t, base.AvgCost, out.AvgCost, "type %s", in.Type)
		assert.Equal(t, base.LastCost, out.LastCost, "type %s", in.Type)
	}
}

func TestReplay_ClampedFold(t *testing.T) {
	moves := func(deltas ...int64) []*Movement {
		out := make([]*Movement, len(deltas))
		for i, d := range deltas {
			out[i] = &Movement{Quantity: d}
		}
		return out
	}

	stock, raw := Replay(moves(10, 5, -20))
	assert.Equal(t, int64(0), stock)
	assert.Equal(t, int64(-5), raw)

	// After a clamp the fold no longer matches max(0, sum).
	stock, raw = Replay(moves(10, -20, 15))
	assert.Equal(t, int64(15), stock)
	assert.Equal(t, int64(5), raw)

	stock, raw = Replay(moves(3, 4, -2))
	assert.Equal(t, int64(5), stock)
	assert.Equal(t, int64(5), raw)
}

func TestMovementInput_Validate(t *testing.T) {
	itemID := id.New()

	tests := []struct {
		name  string
		in    MovementInput
		field string
	}{
		{"missing item", MovementInput{Type: MovementUse, Quantity: 1}, "itemId"},
		{"unknown type", MovementInput{ItemID: itemID, Type: "LOAN", Quantity: 1}, "type"},
		{"zero quantity", MovementInput{ItemID: itemID, Type: MovementUse}, "quantity"},
		{"cost on use", MovementInput{ItemID: itemID, Type: MovementUse, Quantity: 1, UnitCost: cost(5)}, "unitCost"},
		{"negative cost", MovementInput{ItemID: itemID, Type: MovementPurchase, Quantity: 1, UnitCost: cost(-5)}, "unitCost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}

	assert.NoError(t, MovementInput{ItemID: itemID, Type: MovementPurchase, Quantity: 1, UnitCost: cost(0)}.Validate())
}

func TestParseMovementType(t *testing.T) {
	typ, ok := ParseMovementType(" purchase ")
	assert.True(t, ok)
	assert.Equal(t, MovementPurchase, typ)

	_, ok = ParseMovementType("transfer")
	assert.False(t, ok)
}

func TestParseStockPolicy(t *testing.T) {
	p, err := ParseStockPolicy("")
	require.NoError(t, err)
	assert.Equal(t, StockPolicyClamp, p)

	p, err = ParseStockPolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, StockPolicyReject, p)

	_, err = ParseStockPolicy("ignore")
	assert.Error(t, err)
}

func TestApply_StockOverflow(t *testing.T) {
	current := &Item{ID: id.New(), Stock: 10}

	_, err := Apply(current, MovementInput{ItemID: current.ID, Type: MovementPurchase, Quantity: math.MaxInt64}, StockPolicyClamp)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	out, err := Apply(current, MovementInput{ItemID: current.ID, Type: MovementAdjustment, Quantity: math.MaxInt64 - 10}, StockPolicyClamp)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), out.Stock)
}

func TestMovementInput_ValidateRejectsMinInt64(t *testing.T) {
	in := MovementInput{ItemID: id.New(), Type: MovementReturn, Quantity: math.MinInt64}
	assert.True(t, apperror.IsCode(in.Validate(), apperror.CodeValidation))
}
