package billing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/numerator"
	"clinicledger/internal/core/tx"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/domain/events"
	"clinicledger/pkg/logger"
)

var tracer = otel.Tracer("clinicledger/billing")

// Service is the billing engine.
type Service struct {
	repo       Repository
	procedures ProcedureLookup
	numerator  numerator.Generator
	txManager  tx.Manager
	publisher  events.Publisher
	folios     numerator.Config
	now        func() time.Time
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithPublisher sets the outbox publisher.
func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithFolioConfig overrides the invoice numbering scheme.
func WithFolioConfig(cfg numerator.Config) Option { return func(s *Service) { s.folios = cfg } }

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates the billing engine.
func NewService(
	repo Repository,
	procedures ProcedureLookup,
	gen numerator.Generator,
	txManager tx.Manager,
	opts ...Option,
) *Service {
	s := &Service{
		repo:       repo,
		procedures: procedures,
		numerator:  gen,
		txManager:  txManager,
		publisher:  events.Discard,
		folios:     numerator.InvoiceConfig(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInvoice prices every line, takes the next folio and stores the invoice,
// all in one transaction. Any failure leaves no invoice, no lines and no counter
// increment behind.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	ctx, span := tracer.Start(ctx, "billing.CreateInvoice",
		trace.WithAttributes(attribute.Int("invoice.lines", len(in.Lines))))
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	date := truncateDay(now)
	if in.Date != nil {
		date = truncateDay(*in.Date)
	}

	var inv *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lines, err := s.priceLines(ctx, in.Lines)
		if err != nil {
			return err
		}

		total, err := Total(lines)
		if err != nil {
			return err
		}

		folio, err := s.numerator.GetNextNumber(ctx, s.folios, now)
		if err != nil {
			return fmt.Errorf("next folio: %w", err)
		}

		inv = &Invoice{
			ID:        id.New(),
			Folio:     &folio,
			Date:      date,
			PatientID: in.PatientID,
			Total:     total,
			CreatedAt: now,
		}
		for i := range lines {
			lines[i].InvoiceID = inv.ID
		}
		inv.Lines = lines

		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}
		if err := s.repo.SaveLines(ctx, lines); err != nil {
			return err
		}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: events.AggregateInvoice,
			AggregateID:   inv.ID,
			EventType:     events.InvoiceCreated,
			Payload: map[string]any{
				"invoiceId": inv.ID,
				"folio":     folio,
				"patientId": inv.PatientID,
				"total":     inv.Total,
				"lines":     len(lines),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice created",
		"invoice_id", inv.ID,
		"folio", *inv.Folio,
		"patient_id", inv.PatientID,
		"total", inv.Total)

	return inv, nil
}

func (s *Service) priceLines(ctx context.Context, inputs []LineInput) ([]InvoiceLine, error) {
	cache := make(map[string]*procedure.Procedure, len(inputs))
	lines := make([]InvoiceLine, 0, len(inputs))

	for i, in := range inputs {
		code := procedure.NormalizeCode(in.ProcedureCode)
		p, ok := cache[code]
		if !ok {
			found, err := s.procedures.GetByCode(ctx, code)
			if err != nil {
				if apperror.IsNotFound(err) {
					return nil, apperror.NewNotFound("procedure", code).
						WithDetail("line", i+1)
				}
				return nil, err
			}
			p = found
			cache[code] = p
		}

		line, err := PriceLine(p, i+1, in)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// GetInvoice returns an invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

// ListInvoices returns invoice headers, newest first.
func (s *Service) ListInvoices(ctx context.Context, filter Filter) (domain.ListResult[*Invoice], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// DeleteInvoice removes lines first, then the header, in one transaction.
// The folio is not reused.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceID id.ID) error {
	var folio *string
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		folio = inv.Folio

		if err := s.repo.DeleteLines(ctx, invoiceID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, invoiceID); err != nil {
			return err
		}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: events.AggregateInvoice,
			AggregateID:   invoiceID,
			EventType:     events.InvoiceDeleted,
			Payload: map[string]any{
				"invoiceId": invoiceID,
				"folio":     folio,
			},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "invoice deleted", "invoice_id", invoiceID)
	return nil
}

// AssignPendingFolios gives a folio to every invoice stored without one, in date
// order, using the numbering year of each invoice's date. It runs as a single
// transaction holding locks on the pending rows.
func (s *Service) AssignPendingFolios(ctx context.Context) ([]FolioAssignment, error) {
	var assigned []FolioAssignment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		assigned = nil

		pending, err := s.repo.ListPendingFolio(ctx)
		if err != nil {
			return err
		}

		for _, inv := range pending {
			folio, err := s.numerator.GetNextNumber(ctx, s.folios, inv.Date)
			if err != nil {
				return fmt.Errorf("next folio for invoice %s: %w", inv.ID, err)
			}
			if err := s.repo.SetFolio(ctx, inv.ID, folio); err != nil {
				return err
			}
			assigned = append(assigned, FolioAssignment{InvoiceID: inv.ID, Date: inv.Date, Folio: folio})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pending folios assigned", "count", len(assigned))
	return assigned, nil
}
