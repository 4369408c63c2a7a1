// api/controllers/payments.go
package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sportsfesthq/sportsfest-backend/api/responses"
	"github.com/sportsfesthq/sportsfest-backend/api/validators"
	ordersvc "github.com/sportsfesthq/sportsfest-backend/internal/orders"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

type recordPaymentRequest struct {
	AmountCents int  `json:"amount_cents" validate:"required,min=1"`
	IsDeposit   bool `json:"is_deposit"`
}

// PaymentRecord applies a payment to an order and advances its status.
func PaymentRecord(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.RecordPayment(r.Context(), ordersvc.PaymentInput{
			OrderID:     orderID,
			AmountCents: payload.AmountCents,
			IsDeposit:   payload.IsDeposit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
