// api/controllers/invoices.go
package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sportsfesthq/sportsfest-backend/api/responses"
	"github.com/sportsfesthq/sportsfest-backend/api/validators"
	invoicesvc "github.com/sportsfesthq/sportsfest-backend/internal/invoices"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

// InvoiceAttach creates the invoice for an order, or returns the existing one.
func InvoiceAttach(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		orderID, err := invoiceOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Attach(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newInvoiceResponse(invoice))
	}
}

// InvoiceGet returns the invoice attached to an order.
func InvoiceGet(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		orderID, err := invoiceOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.GetByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceResponse(invoice))
	}
}

type markSentRequest struct {
	Force bool `json:"force"`
}

// InvoiceMarkSent stamps the invoice as sent. Repeat calls are no-ops unless
// force is set.
func InvoiceMarkSent(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		orderID, err := invoiceOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload markSentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		invoice, err := svc.MarkSent(r.Context(), orderID, payload.Force)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceResponse(invoice))
	}
}

type invoicePaymentRequest struct {
	AmountCents int `json:"amount_cents" validate:"required,min=1"`
}

// InvoicePaymentRecord applies a payment through the invoice, keeping the
// invoice and its order in lockstep.
func InvoicePaymentRecord(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		orderID, err := invoiceOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload invoicePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.RecordInvoicePayment(r.Context(), orderID, payload.AmountCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newInvoiceResponse(invoice))
	}
}

// InvoiceReconcile verifies invoice arithmetic against the order it bills.
func InvoiceReconcile(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		orderID, err := invoiceOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reconcile(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reconciled"})
	}
}

// InvoiceResend emails the invoice to every admin of the billed organization.
func InvoiceResend(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		orderID, err := invoiceOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Resend(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func invoiceOrderID(r *http.Request) (uuid.UUID, error) {
	return validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
}

type invoiceResponse struct {
	ID               uuid.UUID  `json:"id"`
	OrderID          uuid.UUID  `json:"orderId"`
	InvoiceNumber    string     `json:"invoiceNumber"`
	TotalCents       int        `json:"totalCents"`
	PaidCents        int        `json:"paidCents"`
	BalanceOwedCents int        `json:"balanceOwedCents"`
	Status           string     `json:"status"`
	SentAt           *time.Time `json:"sentAt,omitempty"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func newInvoiceResponse(invoice *models.OrderInvoice) invoiceResponse {
	return invoiceResponse{
		ID:               invoice.ID,
		OrderID:          invoice.OrderID,
		InvoiceNumber:    invoice.InvoiceNumber,
		TotalCents:       invoice.TotalCents,
		PaidCents:        invoice.PaidCents,
		BalanceOwedCents: invoice.BalanceOwedCents,
		Status:           string(invoice.Status),
		SentAt:           invoice.SentAt,
		PaidAt:           invoice.PaidAt,
		CreatedAt:        invoice.CreatedAt,
	}
}
