// internal/invoices/service.go
package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/internal/orders"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/mailer"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type paymentRecorder interface {
	RecordPayment(ctx context.Context, input orders.PaymentInput) (*models.Order, error)
}

// Service manages invoice documents attached to orders. An invoice mirrors
// its order's money: total, paid and balance reconcile at every step, and a
// drift between the two is surfaced as a reconciliation mismatch rather than
// silently repaired.
type Service interface {
	Attach(ctx context.Context, orderID uuid.UUID) (*models.OrderInvoice, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderInvoice, error)
	MarkSent(ctx context.Context, orderID uuid.UUID, force bool) (*models.OrderInvoice, error)
	RecordInvoicePayment(ctx context.Context, orderID uuid.UUID, amountCents int) (*models.OrderInvoice, error)
	Reconcile(ctx context.Context, orderID uuid.UUID) error
	Resend(ctx context.Context, orderID uuid.UUID) (*ResendResult, error)
}

// ResendResult reports invoice delivery fan-out.
type ResendResult struct {
	Recipients []string `json:"recipients"`
	Failed     []string `json:"failed"`
}

type service struct {
	repo      *Repository
	orderRepo orderReader
	payments  paymentRecorder
	tx        txRunner
	sender    mailer.Sender
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds an invoice service with the required stack.
func NewService(repo *Repository, orderRepo orderReader, payments paymentRecorder, tx txRunner, sender mailer.Sender, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	return &service{
		repo:      repo,
		orderRepo: orderRepo,
		payments:  payments,
		tx:        tx,
		sender:    sender,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Attach creates the invoice document for an order. Attaching twice returns
// the existing invoice. Money already collected on the order carries over so
// the new document starts reconciled.
func (s *service) Attach(ctx context.Context, orderID uuid.UUID) (*models.OrderInvoice, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var invoice *models.OrderInvoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		existing, err := txRepo.FindByOrderID(ctx, orderID)
		if err == nil {
			invoice = existing
			return nil
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			return err
		}

		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot invoice a closed order")
		}

		year, err := txRepo.FindEventYear(ctx, order.EventYearID)
		if err != nil {
			return err
		}

		paid := order.TotalCents - order.BalanceOwedCents
		invoice = &models.OrderInvoice{
			OrderID:          order.ID,
			InvoiceNumber:    fmt.Sprintf("INV-%d-%05d", year.Year, order.OrderNumber),
			TotalCents:       order.TotalCents,
			PaidCents:        paid,
			BalanceOwedCents: order.BalanceOwedCents,
			Status:           enums.InvoiceStatusUnsent,
		}
		if paid > 0 {
			invoice.Status = enums.InvoiceStatusPartialPaid
		}
		if order.BalanceOwedCents == 0 {
			invoice.Status = enums.InvoiceStatusPaid
			now := s.now()
			invoice.PaidAt = &now
		}
		_, err = txRepo.Create(ctx, invoice)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderInvoice, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.FindByOrderID(ctx, orderID)
}

// MarkSent stamps the invoice as delivered. A second call is a no-op unless
// force is set, which refreshes SentAt for a re-delivery.
func (s *service) MarkSent(ctx context.Context, orderID uuid.UUID, force bool) (*models.OrderInvoice, error) {
	invoice, err := s.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if invoice.SentAt != nil && !force {
		return invoice, nil
	}

	now := s.now()
	updates := map[string]any{"sent_at": now}
	if invoice.Status == enums.InvoiceStatusUnsent {
		updates["status"] = enums.InvoiceStatusSent
	}
	if err := s.repo.Update(ctx, invoice.ID, updates); err != nil {
		return nil, err
	}
	return s.repo.FindByOrderID(ctx, orderID)
}

// RecordInvoicePayment applies a payment against the invoiced order. The
// order-side recorder keeps both documents in step.
func (s *service) RecordInvoicePayment(ctx context.Context, orderID uuid.UUID, amountCents int) (*models.OrderInvoice, error) {
	invoice, err := s.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentAmount, "payment amount must be positive")
	}
	if amountCents > invoice.BalanceOwedCents {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentAmount, "payment exceeds invoice balance")
	}

	if _, err := s.payments.RecordPayment(ctx, orders.PaymentInput{OrderID: orderID, AmountCents: amountCents}); err != nil {
		return nil, err
	}
	return s.repo.FindByOrderID(ctx, orderID)
}

// Reconcile verifies the invoice against its order and its own arithmetic.
func (s *service) Reconcile(ctx context.Context, orderID uuid.UUID) error {
	invoice, err := s.GetByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if invoice.PaidCents+invoice.BalanceOwedCents != invoice.TotalCents {
		return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "invoice arithmetic does not balance").
			WithDetails(map[string]any{
				"paidCents":        invoice.PaidCents,
				"balanceOwedCents": invoice.BalanceOwedCents,
				"totalCents":       invoice.TotalCents,
			})
	}
	if invoice.TotalCents != order.TotalCents || invoice.BalanceOwedCents != order.BalanceOwedCents {
		return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "invoice and order disagree").
			WithDetails(map[string]any{
				"invoiceTotalCents":   invoice.TotalCents,
				"orderTotalCents":     order.TotalCents,
				"invoiceBalanceCents": invoice.BalanceOwedCents,
				"orderBalanceCents":   order.BalanceOwedCents,
			})
	}
	return nil
}

// Resend delivers the invoice to every admin of the owning organization.
// Delivery failures are collected per recipient; one bad mailbox does not
// stop the rest of the fan-out.
func (s *service) Resend(ctx context.Context, orderID uuid.UUID) (*ResendResult, error) {
	invoice, err := s.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	admins, err := s.repo.ListOrgAdmins(ctx, order.OrganizationID)
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization has no admin recipients")
	}

	result := &ResendResult{}
	var sendErrs error
	for _, admin := range admins {
		msg := mailer.Message{
			To:      admin.Email,
			Subject: fmt.Sprintf("Invoice %s", invoice.InvoiceNumber),
			Body: fmt.Sprintf(
				"Invoice %s\nTotal: $%.2f\nPaid: $%.2f\nBalance owed: $%.2f\n",
				invoice.InvoiceNumber,
				float64(invoice.TotalCents)/100,
				float64(invoice.PaidCents)/100,
				float64(invoice.BalanceOwedCents)/100,
			),
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			result.Failed = append(result.Failed, admin.Email)
			sendErrs = multierr.Append(sendErrs, err)
			continue
		}
		result.Recipients = append(result.Recipients, admin.Email)
	}

	if len(result.Recipients) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, sendErrs, "invoice delivery failed for every recipient")
	}

	if _, err := s.MarkSent(ctx, orderID, true); err != nil {
		return nil, err
	}
	if s.logg != nil && sendErrs != nil {
		s.logg.Warn(ctx, fmt.Sprintf("invoice %s delivery failed for %d of %d recipients",
			invoice.InvoiceNumber, len(result.Failed), len(admins)))
	}
	return result, nil
}
