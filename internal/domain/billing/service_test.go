package billing_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/numerator"
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain/billing"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/domain/events"
	"clinicledger/internal/infrastructure/storage/memory"
)

var fixedNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func amount(v int64) *types.MinorUnits {
	m := types.MinorUnits(v)
	return &m
}

type fixture struct {
	svc   *billing.Service
	store *memory.Store
}

func newBilling(t *testing.T, opts ...billing.Option) fixture {
	t.Helper()
	store := memory.New()
	catalog := procedure.NewService(store.Procedures(), store, nil)
	ctx := context.Background()

	_, err := catalog.Create(ctx, procedure.Input{Code: "OD020", Name: "Resin filling", Pricing: procedure.FixedPrice{Amount: amount(180000)}})
	require.NoError(t, err)
	_, err = catalog.Create(ctx, procedure.Input{Code: "END01", Name: "Root canal", Pricing: procedure.VariableRange{}})
	require.NoError(t, err)
	_, err = catalog.Create(ctx, procedure.Input{Code: "ORT10", Name: "Orthodontic check", Pricing: procedure.VariableRange{Min: amount(40000), Max: amount(80000)}})
	require.NoError(t, err)
	_, err = catalog.Create(ctx, procedure.Input{Code: "CONS", Name: "Consultation", Pricing: procedure.FixedPrice{}})
	require.NoError(t, err)

	opts = append([]billing.Option{
		billing.WithPublisher(store),
		billing.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	svc := billing.NewService(store.Invoices(), catalog, store, store, opts...)
	return fixture{svc: svc, store: store}
}

func TestCreateInvoice_FixedPrice(t *testing.T) {
	f := newBilling(t)

	inv, err := f.svc.CreateInvoice(context.Background(), billing.InvoiceInput{
		PatientID: "patient-1",
		Lines:     []billing.LineInput{{ProcedureCode: "OD020", Quantity: types.NewQuantity(2)}},
	})
	require.NoError(t, err)

	require.Len(t, inv.Lines, 1)
	assert.Equal(t, types.MinorUnits(180000), inv.Lines[0].UnitPrice)
	assert.Equal(t, types.MinorUnits(360000), inv.Lines[0].Subtotal)
	assert.Equal(t, types.MinorUnits(360000), inv.Total)
	require.NotNil(t, inv.Folio)
	assert.Equal(t, "FAC-2025-000001", *inv.Folio)

	stored, err := f.svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Total, stored.Total)
	assert.Len(t, stored.Lines, 1)
}

func TestCreateInvoice_VariableWithoutMinimumNeedsPrice(t *testing.T) {
	f := newBilling(t)
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, billing.InvoiceInput{
		PatientID: "patient-1",
		Lines: []billing.LineInput{
			{ProcedureCode: "OD020"},
			{ProcedureCode: "END01"},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePriceRequired))
	assert.Contains(t, err.Error(), "price required for END01")

	res, err := f.svc.ListInvoices(ctx, billing.Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, f.store.Counter("invoice-2025"))
}

func TestCreateInvoice_PriceResolution(t *testing.T) {
	f := newBilling(t)

	inv, err := f.svc.CreateInvoice(context.Background(), billing.InvoiceInput{
		PatientID: "patient-2",
		Lines: []billing.LineInput{
			{ProcedureCode: "END01", UnitPrice: amount(120000)},
			{ProcedureCode: "ort10"},
			{ProcedureCode: "CONS"},
			{ProcedureCode: "OD020", UnitPrice: amount(0)},
		},
	})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 4)

	assert.Equal(t, types.MinorUnits(120000), inv.Lines[0].UnitPrice)
	assert.Equal(t, types.MinorUnits(40000), inv.Lines[1].UnitPrice)
	assert.Equal(t, "ORT10", inv.Lines[1].ProcedureCode)
	assert.Equal(t, types.MinorUnits(0), inv.Lines[2].UnitPrice)
	assert.Equal(t, types.MinorUnits(0), inv.Lines[3].UnitPrice)
	for i, line := range inv.Lines {
		assert.Equal(t, i+1, line.LineNo)
		assert.Equal(t, types.QuantityOne, line.Quantity)
	}
	assert.Equal(t, types.MinorUnits(160000), inv.Total)
}

func TestCreateInvoice_TotalIsSumOfRoundedSubtotals(t *testing.T) {
	f := newBilling(t)

	qty, err := types.ParseQuantity("1.5")
	require.NoError(t, err)
	third, err := types.ParseQuantity("0.3333")
	require.NoError(t, err)

	inv, err := f.svc.CreateInvoice(context.Background(), billing.InvoiceInput{
		PatientID: "patient-3",
		Lines: []billing.LineInput{
			{ProcedureCode: "OD020", Quantity: qty},
			{ProcedureCode: "END01", Quantity: third, UnitPrice: amount(1001)},
			{ProcedureCode: "CONS", Quantity: types.NewQuantity(3), UnitPrice: amount(333)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.MinorUnits(270000), inv.Lines[0].Subtotal)
	// 0.3333 * 1001 = 333.6333
	assert.Equal(t, types.MinorUnits(334), inv.Lines[1].Subtotal)
	assert.Equal(t, types.MinorUnits(999), inv.Lines[2].Subtotal)

	var sum types.MinorUnits
	for _, l := range inv.Lines {
		sum += l.Subtotal
	}
	assert.Equal(t, sum, inv.Total)
}

func TestCreateInvoice_AmountOverflowIsRejected(t *testing.T) {
	huge, err := types.ParseQuantity("100000000000000")
	require.NoError(t, err)

	tests := []struct {
		name  string
		lines []billing.LineInput
	}{
		{"subtotal", []billing.LineInput{{ProcedureCode: "OD020", Quantity: huge}}},
		{"total", []billing.LineInput{
			{ProcedureCode: "CONS", UnitPrice: amount(5_000_000_000_000_000_000)},
			{ProcedureCode: "CONS", UnitPrice: amount(5_000_000_000_000_000_000)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBilling(t)

			inv, err := f.svc.CreateInvoice(context.Background(), billing.InvoiceInput{
				PatientID: "patient-overflow",
				Lines:     tt.lines,
			})

			require.Error(t, err)
			assert.Nil(t, inv)
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
			assert.Zero(t, f.store.Counter("invoice-2025"))

			list, err := f.svc.ListInvoices(context.Background(), billing.Filter{})
			require.NoError(t, err)
			assert.Zero(t, list.TotalCount)
		})
	}
}

func TestCreateInvoice_UnknownCodeRejectsWholeInvoice(t *testing.T) {
	f := newBilling(t)
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, billing.InvoiceInput{
		PatientID: "patient-1",
		Lines: []billing.LineInput{
			{ProcedureCode: "OD020"},
			{ProcedureCode: "NOPE"},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	res, err := f.svc.ListInvoices(ctx, billing.Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, f.store.Counter("invoice-2025"))

	for _, e := range f.store.Outbox() {
		assert.NotEqual(t, events.InvoiceCreated, e.Event.EventType)
	}
}

func TestCreateInvoice_Validation(t *testing.T) {
	f := newBilling(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   billing.InvoiceInput
	}{
		{"no patient", billing.InvoiceInput{Lines: []billing.LineInput{{ProcedureCode: "OD020"}}}},
		{"no lines", billing.InvoiceInput{PatientID: "p"}},
		{"empty code", billing.InvoiceInput{PatientID: "p", Lines: []billing.LineInput{{ProcedureCode: " "}}}},
		{"negative quantity", billing.InvoiceInput{PatientID: "p", Lines: []billing.LineInput{{ProcedureCode: "OD020", Quantity: -1}}}},
		{"negative price", billing.InvoiceInput{PatientID: "p", Lines: []billing.LineInput{{ProcedureCode: "OD020", UnitPrice: amount(-5)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateInvoice(ctx, tt.in)
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateInvoice_ConcurrentFoliosAreUniqueAndGapless(t *testing.T) {
	f := newBilling(t)
	ctx := context.Background()

	const callers = 25
	folios := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := f.svc.CreateInvoice(ctx, billing.InvoiceInput{
				PatientID: "patient-1",
				Lines:     []billing.LineInput{{ProcedureCode: "OD020"}},
			})
			if assert.NoError(t, err) {
				folios[i] = *inv.Folio
			}
		}(i)
	}
	wg.Wait()

	sort.Slice(folios, func(i, j int) bool {
		return numerator.ParseNumber(folios[i]) < numerator.ParseNumber(folios[j])
	})
	for i, folio := range folios {
		assert.Equal(t, int64(i+1), numerator.ParseNumber(folio))
		assert.Regexp(t, `^FAC-2025-\d{6}$`, folio)
	}
	assert.Equal(t, int64(callers), f.store.Counter("invoice-2025"))
}

func TestCreateInvoice_TwoConcurrentCallers(t *testing.T) {
	f := newBilling(t)
	ctx := context.Background()

	results := make(chan string, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := f.svc.CreateInvoice(ctx, billing.InvoiceInput{
				PatientID: "patient-1",
				Lines:     []billing.LineInput{{ProcedureCode: "OD020"}},
			})
			if assert.NoError(t, err) {
				results <- *inv.Folio
			}
		}()
	}
	wg.Wait()
	close(results)

	var got []string
	for folio := range results {
		got = append(got, folio)
	}
	assert.ElementsMatch(t, []string{"FAC-2025-000001", "FAC-2025-000002"}, got)
}

func TestCreateInvoice_FolioFailureCreatesNothing(t *testing.T) {
	store := memory.New()
	catalog := procedure.NewService(store.Procedures(), store, nil)
	ctx := context.Background()
	_, err := catalog.Create(ctx, procedure.Input{Code: "OD020", Name: "Filling", Pricing: procedure.FixedPrice{Amount: amount(100)}})
	require.NoError(t, err)

	down := errors.New("counter table unavailable")
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, time.Time) (string, error) { return "", down },
	}
	svc := billing.NewService(store.Invoices(), catalog, gen, store)

	_, err = svc.CreateInvoice(ctx, billing.InvoiceInput{
		PatientID: "p",
		Lines:     []billing.LineInput{{ProcedureCode: "OD020"}},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePersistence))
	assert.ErrorIs(t, err, down)

	res, err := svc.ListInvoices(ctx, billing.Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestDeleteInvoice_RemovesLines(t *testing.T) {
	f := newBilling(t)
	ctx := context.Background()

	inv, err := f.svc.CreateInvoice(ctx, billing.InvoiceInput{
		PatientID: "patient-1",
		Lines:     []billing.LineInput{{ProcedureCode: "OD020"}, {ProcedureCode: "CONS"}},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteInvoice(ctx, inv.ID))

	_, err = f.svc.GetInvoice(ctx, inv.ID)
	assert.True(t, apperror.IsNotFound(err))

	lines, err := f.store.Invoices().GetLines(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	err = f.svc.DeleteInvoice(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))

	var deleted int
	for _, e := range f.store.Outbox() {
		if e.Event.EventType == events.InvoiceDeleted {
			deleted++
		}
	}
	assert.Equal(t, 1, deleted)

	// Folios are never reused.
	next, err := f.svc.CreateInvoice(ctx, billing.InvoiceInput{
		PatientID: "patient-1",
		Lines:     []billing.LineInput{{ProcedureCode: "OD020"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-000002", *next.Folio)
}

func TestListInvoices_Filters(t *testing.T) {
	f := newBilling(t)
	ctx := context.Background()

	march := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []billing.InvoiceInput{
		{PatientID: "ana", Date: &march, Lines: []billing.LineInput{{ProcedureCode: "OD020"}}},
		{PatientID: "ana", Lines: []billing.LineInput{{ProcedureCode: "CONS"}}},
		{PatientID: "luis", Lines: []billing.LineInput{{ProcedureCode: "CONS"}}},
	} {
		_, err := f.svc.CreateInvoice(ctx, in)
		require.NoError(t, err)
	}

	res, err := f.svc.ListInvoices(ctx, billing.Filter{PatientID: "ana"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.True(t, res.Items[0].Date.After(res.Items[1].Date))

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	res, err = f.svc.ListInvoices(ctx, billing.Filter{From: &from})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
}

func TestAssignPendingFolios(t *testing.T) {
	f := newBilling(t)
	ctx := context.Background()

	// One invoice issued normally in 2025, then legacy rows without folio.
	_, err := f.svc.CreateInvoice(ctx, billing.InvoiceInput{
		PatientID: "p", Lines: []billing.LineInput{{ProcedureCode: "CONS"}},
	})
	require.NoError(t, err)

	legacy := []time.Time{
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range legacy {
		require.NoError(t, f.store.Invoices().Create(ctx, &billing.Invoice{
			ID: id.New(), Date: d, PatientID: "p", CreatedAt: d,
		}))
	}

	assigned, err := f.svc.AssignPendingFolios(ctx)
	require.NoError(t, err)
	require.Len(t, assigned, 3)
	assert.Equal(t, "FAC-2024-000001", assigned[0].Folio)
	assert.Equal(t, "FAC-2025-000002", assigned[1].Folio)
	assert.Equal(t, "FAC-2025-000003", assigned[2].Folio)
	assert.True(t, assigned[1].Date.Before(assigned[2].Date))

	again, err := f.svc.AssignPendingFolios(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}
