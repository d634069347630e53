package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pulse-erp/fulfillment/internal/events"
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
)

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service owns the invoice lifecycle. Issuance is idempotent per order id:
// the order-placed fact may arrive more than once, but at most one invoice
// ever exists per order.
type Service struct {
	Store          Store
	ProducerIssued Publisher
	ProducerPaid   Publisher
	DueDays        int
	ServiceName    string
	Log            *zap.Logger

	// Now is swappable in tests.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// IssueForOrder creates the invoice for a newly placed order. The amount is
// copied verbatim from the order total at placement, never recomputed. A
// second call for the same order returns the existing invoice. A placed fact
// arriving after the order's cancellation fact gets ErrOrderCancelled and no
// invoice.
func (s *Service) IssueForOrder(ctx context.Context, orderID string, amount decimal.Decimal) (Invoice, error) {
	if existing, err := s.Store.GetInvoiceByOrder(ctx, orderID); err != nil {
		return Invoice{}, err
	} else if existing != nil {
		return *existing, nil
	}
	if cancelled, err := s.Store.OrderCancelled(ctx, orderID); err != nil {
		return Invoice{}, err
	} else if cancelled {
		return Invoice{}, ErrOrderCancelled
	}

	issuedAt := s.now()
	inv := Invoice{
		ID:       uuid.NewString(),
		OrderID:  orderID,
		Amount:   amount,
		Status:   InvoiceIssued,
		IssuedAt: issuedAt,
		DueDate:  issuedAt.AddDate(0, 0, s.DueDays).Format("2006-01-02"),
	}
	entries := []LedgerEntry{
		{
			ID: uuid.NewString(), Account: AccountReceivable,
			Debit: amount, Credit: decimal.Zero,
			RefType: RefInvoice, RefID: inv.ID,
			Description: fmt.Sprintf("invoice for order %s", orderID),
		},
		{
			ID: uuid.NewString(), Account: AccountRevenue,
			Debit: decimal.Zero, Credit: amount,
			RefType: RefInvoice, RefID: inv.ID,
			Description: fmt.Sprintf("revenue for order %s", orderID),
		},
	}

	created, err := s.Store.CreateInvoice(ctx, inv, entries)
	if errors.Is(err, ErrDuplicateOrder) {
		// concurrent delivery won; converge on the stored invoice
		existing, gerr := s.Store.GetInvoiceByOrder(ctx, orderID)
		if gerr != nil {
			return Invoice{}, gerr
		}
		if existing != nil {
			return *existing, nil
		}
		return Invoice{}, err
	}
	if err != nil {
		return Invoice{}, err
	}

	// a cancel may have tombstoned the order between the check and the
	// insert; its invoice lookup could also have missed our row, so void
	// the invoice ourselves
	if cancelled, err := s.Store.OrderCancelled(ctx, orderID); err == nil && cancelled {
		if _, cerr := s.Cancel(ctx, created.ID); cerr != nil {
			return Invoice{}, cerr
		}
		return Invoice{}, ErrOrderCancelled
	}

	s.Log.Info("invoice issued",
		zap.String("invoice_id", created.ID),
		zap.String("order_id", orderID),
		zap.String("amount", created.Amount.String()))
	s.emitIssued(created)
	return created, nil
}

// MarkPaid settles an issued invoice. Only the issued state accepts payment;
// a repeated pay call after success is rejected, never double-applied.
func (s *Service) MarkPaid(ctx context.Context, invoiceID string) (Invoice, error) {
	paidAt := s.now()
	cur, err := s.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Invoice{}, err
	}

	entries := []LedgerEntry{
		{
			ID: uuid.NewString(), Account: AccountCash,
			Debit: cur.Amount, Credit: decimal.Zero,
			RefType: RefPayment, RefID: cur.ID,
			Description: fmt.Sprintf("payment for invoice %s", cur.ID),
		},
		{
			ID: uuid.NewString(), Account: AccountReceivable,
			Debit: decimal.Zero, Credit: cur.Amount,
			RefType: RefPayment, RefID: cur.ID,
			Description: fmt.Sprintf("AR settled for invoice %s", cur.ID),
		},
	}

	inv, ok, err := s.Store.MarkPaid(ctx, invoiceID, paidAt, entries)
	if err != nil {
		return Invoice{}, err
	}
	if !ok {
		cur, err = s.Store.GetInvoice(ctx, invoiceID)
		if err != nil {
			return Invoice{}, err
		}
		return Invoice{}, &InvalidStateError{Current: cur.Status, Action: "pay"}
	}

	s.Log.Info("invoice paid", zap.String("invoice_id", inv.ID), zap.String("order_id", inv.OrderID))
	s.emitPaid(inv)
	return inv, nil
}

// Cancel voids an issued invoice with reversing ledger entries. There is no
// refund path: payment never happened in this state.
func (s *Service) Cancel(ctx context.Context, invoiceID string) (Invoice, error) {
	cur, err := s.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Invoice{}, err
	}

	entries := []LedgerEntry{
		{
			ID: uuid.NewString(), Account: AccountRevenue,
			Debit: cur.Amount, Credit: decimal.Zero,
			RefType: RefAdjustment, RefID: cur.ID,
			Description: fmt.Sprintf("cancellation of invoice %s", cur.ID),
		},
		{
			ID: uuid.NewString(), Account: AccountReceivable,
			Debit: decimal.Zero, Credit: cur.Amount,
			RefType: RefAdjustment, RefID: cur.ID,
			Description: fmt.Sprintf("AR reversal for invoice %s", cur.ID),
		},
	}

	inv, ok, err := s.Store.MarkCancelled(ctx, invoiceID, entries)
	if err != nil {
		return Invoice{}, err
	}
	if !ok {
		cur, err = s.Store.GetInvoice(ctx, invoiceID)
		if err != nil {
			return Invoice{}, err
		}
		if cur.Status == InvoiceCancelled {
			return cur, nil
		}
		return Invoice{}, &InvalidStateError{Current: cur.Status, Action: "cancel"}
	}
	return inv, nil
}

// CancelForOrder is the compensation hook driven by order-cancelled facts.
// An invoice already paid or cancelled is left alone. The tombstone is
// written before the lookup: either issuance sees it and refuses, or this
// lookup sees the invoice and voids it.
func (s *Service) CancelForOrder(ctx context.Context, orderID string) error {
	if err := s.Store.MarkOrderCancelled(ctx, orderID); err != nil {
		return err
	}
	inv, err := s.Store.GetInvoiceByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if inv == nil || inv.Status != InvoiceIssued {
		return nil
	}
	if _, err := s.Cancel(ctx, inv.ID); err != nil {
		var invalid *InvalidStateError
		if errors.As(err, &invalid) {
			return nil
		}
		return err
	}
	s.Log.Info("invoice cancelled with order",
		zap.String("invoice_id", inv.ID), zap.String("order_id", orderID))
	return nil
}

func (s *Service) emitIssued(inv Invoice) {
	if s.ProducerIssued == nil {
		return
	}
	payload := kafkax.MustMarshal(events.InvoiceIssuedPayload{
		InvoiceID: inv.ID,
		OrderID:   inv.OrderID,
		Amount:    inv.Amount,
		IssuedAt:  inv.IssuedAt,
		DueDate:   inv.DueDate,
	})
	env := events.NewEnvelope(events.EventInvoiceIssued, s.ServiceName, "", inv.OrderID, payload)
	s.ProducerIssued.Publish(events.PartitionKey(inv.OrderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventInvoiceIssued)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) emitPaid(inv Invoice) {
	if s.ProducerPaid == nil {
		return
	}
	paidAt := inv.IssuedAt
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	payload := kafkax.MustMarshal(events.PaymentSettledPayload{
		InvoiceID: inv.ID,
		OrderID:   inv.OrderID,
		Amount:    inv.Amount,
		PaidAt:    paidAt,
	})
	env := events.NewEnvelope(events.EventPaymentSettled, s.ServiceName, "", inv.OrderID, payload)
	s.ProducerPaid.Publish(events.PartitionKey(inv.OrderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventPaymentSettled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
