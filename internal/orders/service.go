// internal/orders/service.go
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/internal/cart"
	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the order lifecycle: creation from a cart, payment recording,
// cancellation and refunds. Inventory held by the source cart transfers to the
// order at conversion without touching the ledger; cancellation and refund
// return it.
type Service interface {
	CreateFromCart(ctx context.Context, orgID, eventYearID uuid.UUID) (*models.Order, error)
	CreateSponsorship(ctx context.Context, input SponsorshipInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, orgID uuid.UUID, eventYearID *uuid.UUID) ([]models.Order, error)
	RecordPayment(ctx context.Context, input PaymentInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// PaymentInput records one collected amount against an order.
type PaymentInput struct {
	OrderID     uuid.UUID
	AmountCents int
	IsDeposit   bool
}

// SponsorshipInput creates an invoice-backed sponsorship order directly,
// bypassing the cart. The processing fee percentage is applied on top of the
// pledged amount and rounded half-up to whole cents.
type SponsorshipInput struct {
	OrganizationID       uuid.UUID
	EventYearID          uuid.UUID
	AmountCents          int
	ProcessingFeePercent decimal.Decimal
	Notes                *string
}

type service struct {
	repo      *Repository
	cartRepo  *cart.Repository
	inventory *inventory.Repository
	tx        txRunner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds an order service with the required stack.
func NewService(repo *Repository, cartRepo *cart.Repository, inv *inventory.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      repo,
		cartRepo:  cartRepo,
		inventory: inv,
		tx:        tx,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// CreateFromCart converts the organization's live cart into a pending order in
// one transaction. Ledger holds move from the cart to the order unchanged, so
// no reserve or release runs here.
func (s *service) CreateFromCart(ctx context.Context, orgID, eventYearID uuid.UUID) (*models.Order, error) {
	if orgID == uuid.Nil || eventYearID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id and event year id are required")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCart := s.cartRepo.WithTx(tx)
		txRepo := s.repo.WithTx(tx)
		txLedger := s.inventory.WithTx(tx)
		now := s.now()

		session, err := txCart.FindLiveByOrg(ctx, orgID, eventYearID, now)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no live cart to convert")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(session.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		var totalCents, depositCents int
		items := make([]models.OrderItem, 0, len(session.Items))
		for _, line := range session.Items {
			product, err := txLedger.FindProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			// Re-check that the ledger still holds these units: the cart's
			// reservation may have been invalidated since it was last touched.
			if product.TotalInventory != nil && product.ReservedCount > *product.TotalInventory {
				return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "product is no longer available at the reserved quantity")
			}
			totalCents += product.PriceCents * line.Quantity
			if product.DepositCents != nil {
				depositCents += *product.DepositCents * line.Quantity
			}
			items = append(items, models.OrderItem{
				ProductID:      product.ID,
				Quantity:       line.Quantity,
				UnitPriceCents: product.PriceCents,
			})
		}

		number, err := txRepo.NextOrderNumber(ctx, eventYearID)
		if err != nil {
			return err
		}

		order := &models.Order{
			OrderNumber:      number,
			OrganizationID:   orgID,
			EventYearID:      eventYearID,
			Status:           enums.OrderStatusPending,
			TotalCents:       totalCents,
			DepositCents:     depositCents,
			BalanceOwedCents: totalCents,
			Items:            items,
		}
		if _, err := txRepo.Create(ctx, order); err != nil {
			return err
		}

		if err := txCart.DeleteItemsByCart(ctx, session.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop converted cart lines")
		}
		// Zero rows means the expiry sweep reclaimed the cart while this
		// transaction was assembling the order; its units are already back in
		// the pool, so committing would oversell them.
		deleted, err := txCart.DeleteCart(ctx, session.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop converted cart")
		}
		if deleted == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart expired during checkout")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, created.ID.String())
		s.logg.Info(logCtx, fmt.Sprintf("order %d created from cart", created.OrderNumber))
	}
	return s.repo.FindByID(ctx, created.ID)
}

// CreateSponsorship creates a confirmed sponsorship order. Sponsorship money
// never holds inventory, so the ledger stays untouched.
func (s *service) CreateSponsorship(ctx context.Context, input SponsorshipInput) (*models.Order, error) {
	if input.OrganizationID == uuid.Nil || input.EventYearID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id and event year id are required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sponsorship amount must be positive")
	}
	if input.ProcessingFeePercent.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processing fee percent cannot be negative")
	}

	feeCents := decimal.NewFromInt(int64(input.AmountCents)).
		Mul(input.ProcessingFeePercent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	totalCents := input.AmountCents + int(feeCents)

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		number, err := txRepo.NextOrderNumber(ctx, input.EventYearID)
		if err != nil {
			return err
		}

		metadata := types.JSONMap{
			"baseAmountCents":      input.AmountCents,
			"processingFeeCents":   int(feeCents),
			"processingFeePercent": input.ProcessingFeePercent.String(),
		}
		order := &models.Order{
			OrderNumber:      number,
			OrganizationID:   input.OrganizationID,
			EventYearID:      input.EventYearID,
			Status:           enums.OrderStatusConfirmed,
			TotalCents:       totalCents,
			BalanceOwedCents: totalCents,
			IsSponsorship:    true,
			Metadata:         &metadata,
			Notes:            input.Notes,
		}
		if _, err := txRepo.Create(ctx, order); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, created.ID)
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.FindByID(ctx, orderID)
}

func (s *service) ListOrders(ctx context.Context, orgID uuid.UUID, eventYearID *uuid.UUID) ([]models.Order, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id is required")
	}
	return s.repo.ListByOrg(ctx, orgID, eventYearID)
}

// RecordPayment applies one collected amount to an order and advances its
// status. Overpayment is rejected rather than clamped.
func (s *service) RecordPayment(ctx context.Context, input PaymentInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentAmount, "payment amount must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		order, err := txRepo.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed")
		}
		if input.AmountCents > order.BalanceOwedCents {
			return pkgerrors.New(pkgerrors.CodeInvalidPaymentAmount, "payment exceeds balance owed")
		}

		payment := &models.Payment{
			OrderID:     order.ID,
			AmountCents: input.AmountCents,
			IsDeposit:   input.IsDeposit,
		}
		if _, err := txRepo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		newBalance := order.BalanceOwedCents - input.AmountCents
		updates := map[string]any{
			"balance_owed_cents": newBalance,
			"status":             nextStatusAfterPayment(order, newBalance, input.IsDeposit),
		}
		if err := txRepo.Update(ctx, order.ID, updates); err != nil {
			return err
		}

		if order.Invoice != nil {
			return syncInvoicePayment(ctx, tx, order.Invoice, input.AmountCents, s.now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, input.OrderID)
}

// nextStatusAfterPayment picks the order status after a payment lands. Once an
// order reaches deposit_paid, a later non-deposit partial payment never
// regresses it to confirmed.
func nextStatusAfterPayment(order *models.Order, newBalance int, isDeposit bool) enums.OrderStatus {
	if newBalance == 0 {
		return enums.OrderStatusFullyPaid
	}
	if isDeposit || order.Status == enums.OrderStatusDepositPaid {
		return enums.OrderStatusDepositPaid
	}
	return enums.OrderStatusConfirmed
}

// syncInvoicePayment keeps the attached invoice reconciled with payments made
// directly against the order.
func syncInvoicePayment(ctx context.Context, tx *gorm.DB, invoice *models.OrderInvoice, amountCents int, now time.Time) error {
	paid := invoice.PaidCents + amountCents
	balance := invoice.TotalCents - paid
	if balance < 0 {
		return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "invoice payments exceed invoice total")
	}

	updates := map[string]any{
		"paid_cents":         paid,
		"balance_owed_cents": balance,
	}
	if balance == 0 {
		updates["status"] = enums.InvoiceStatusPaid
		updates["paid_at"] = now
	} else {
		updates["status"] = enums.InvoiceStatusPartialPaid
	}
	err := tx.WithContext(ctx).
		Model(&models.OrderInvoice{}).
		Where("id = ?", invoice.ID).
		Updates(updates).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync invoice payment")
	}
	return nil
}

// Cancel closes an order before settlement and returns its units to the
// ledger.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.close(ctx, orderID, enums.OrderStatusCancelled)
}

// Refund closes a deposit paid or fully paid order and returns its units to
// the ledger.
func (s *service) Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.close(ctx, orderID, enums.OrderStatusRefunded)
}

func (s *service) close(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txLedger := s.inventory.WithTx(tx)
		now := s.now()

		order, err := txRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed")
		}
		if target == enums.OrderStatusRefunded &&
			order.Status != enums.OrderStatusFullyPaid && order.Status != enums.OrderStatusDepositPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be refunded")
		}
		if target == enums.OrderStatusCancelled && order.Status == enums.OrderStatusFullyPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fully paid orders must be refunded, not cancelled")
		}

		for _, item := range order.Items {
			if err := txLedger.Release(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		updates := map[string]any{"status": target}
		if target == enums.OrderStatusCancelled {
			updates["cancelled_at"] = now
		} else {
			updates["refunded_at"] = now
		}
		return txRepo.Update(ctx, orderID, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}
