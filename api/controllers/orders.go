// api/controllers/orders.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsfesthq/sportsfest-backend/api/responses"
	"github.com/sportsfesthq/sportsfest-backend/api/validators"
	ordersvc "github.com/sportsfesthq/sportsfest-backend/internal/orders"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/types"
)

type checkoutRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	EventYearID    uuid.UUID `json:"event_year_id" validate:"required"`
}

// OrderCheckout converts the organization's live cart into a pending order.
func OrderCheckout(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateFromCart(r.Context(), payload.OrganizationID, payload.EventYearID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

type sponsorshipRequest struct {
	OrganizationID       uuid.UUID       `json:"organization_id" validate:"required"`
	EventYearID          uuid.UUID       `json:"event_year_id" validate:"required"`
	AmountCents          int             `json:"amount_cents" validate:"required,min=1"`
	ProcessingFeePercent decimal.Decimal `json:"processing_fee_percent"`
	Notes                *string         `json:"notes"`
}

// SponsorshipCreate books a sponsorship order directly, skipping the cart,
// and attaches its invoice so the billing document exists from day one.
func SponsorshipCreate(svc ordersvc.Service, invoices invoiceAttacher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload sponsorshipRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateSponsorship(r.Context(), ordersvc.SponsorshipInput{
			OrganizationID:       payload.OrganizationID,
			EventYearID:          payload.EventYearID,
			AmountCents:          payload.AmountCents,
			ProcessingFeePercent: payload.ProcessingFeePercent,
			Notes:                payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if invoices != nil {
			invoice, err := invoices.Attach(r.Context(), order.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			order.Invoice = invoice
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

type invoiceAttacher interface {
	Attach(ctx context.Context, orderID uuid.UUID) (*models.OrderInvoice, error)
}

// OrderGet returns one order with its lines, payments, and invoice.
func OrderGet(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderList returns an organization's orders, optionally scoped to one event
// year via the event_year_id query parameter.
func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orgID, err := validators.ParsePathUUID(chi.URLParam(r, "orgId"), "orgId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventYearID, err := validators.ParseQueryUUID(r, "event_year_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOrders(r.Context(), orgID, eventYearID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]orderResponse, len(list))
		for i := range list {
			out[i] = newOrderResponse(&list[i])
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderCancel cancels an order and releases its inventory holds.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, svcCancel)
}

// OrderRefund refunds a fully paid order and releases its inventory holds.
func OrderRefund(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, svcRefund)
}

type transitionKind int

const (
	svcCancel transitionKind = iota
	svcRefund
)

func orderTransition(svc ordersvc.Service, logg *logger.Logger, kind transitionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var order *models.Order
		if kind == svcRefund {
			order, err = svc.Refund(r.Context(), orderID)
		} else {
			order, err = svc.Cancel(r.Context(), orderID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      int64               `json:"orderNumber"`
	OrganizationID   uuid.UUID           `json:"organizationId"`
	EventYearID      uuid.UUID           `json:"eventYearId"`
	Status           string              `json:"status"`
	TotalCents       int                 `json:"totalCents"`
	DepositCents     int                 `json:"depositCents"`
	BalanceOwedCents int                 `json:"balanceOwedCents"`
	IsSponsorship    bool                `json:"isSponsorship"`
	Metadata         *types.JSONMap      `json:"metadata,omitempty"`
	Notes            *string             `json:"notes,omitempty"`
	CancelledAt      *time.Time          `json:"cancelledAt,omitempty"`
	RefundedAt       *time.Time          `json:"refundedAt,omitempty"`
	Items            []orderItemResponse `json:"items"`
	Payments         []paymentResponse   `json:"payments"`
	Invoice          *invoiceResponse    `json:"invoice,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}

type orderItemResponse struct {
	ProductID      uuid.UUID `json:"productId"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unitPriceCents"`
}

type paymentResponse struct {
	ID          uuid.UUID `json:"id"`
	AmountCents int       `json:"amountCents"`
	IsDeposit   bool      `json:"isDeposit"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemResponse{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	payments := make([]paymentResponse, len(order.Payments))
	for i, payment := range order.Payments {
		payments[i] = paymentResponse{
			ID:          payment.ID,
			AmountCents: payment.AmountCents,
			IsDeposit:   payment.IsDeposit,
			CreatedAt:   payment.CreatedAt,
		}
	}
	resp := orderResponse{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		OrganizationID:   order.OrganizationID,
		EventYearID:      order.EventYearID,
		Status:           string(order.Status),
		TotalCents:       order.TotalCents,
		DepositCents:     order.DepositCents,
		BalanceOwedCents: order.BalanceOwedCents,
		IsSponsorship:    order.IsSponsorship,
		Metadata:         order.Metadata,
		Notes:            order.Notes,
		CancelledAt:      order.CancelledAt,
		RefundedAt:       order.RefundedAt,
		Items:            items,
		Payments:         payments,
		CreatedAt:        order.CreatedAt,
	}
	if order.Invoice != nil {
		invoice := newInvoiceResponse(order.Invoice)
		resp.Invoice = &invoice
	}
	return resp
}
