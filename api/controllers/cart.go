// api/controllers/cart.go
package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sportsfesthq/sportsfest-backend/api/responses"
	"github.com/sportsfesthq/sportsfest-backend/api/validators"
	cartsvc "github.com/sportsfesthq/sportsfest-backend/internal/cart"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

// CartGet returns the organization's live cart for an event year. A missing or
// expired cart reads back as empty rather than an error.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		orgID, eventYearID, err := cartScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.GetCart(r.Context(), orgID, eventYearID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

type setCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=0"`
}

// CartSetItem sets the absolute quantity for one product line. Quantity zero
// removes the line and releases its hold.
func CartSetItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		orgID, eventYearID, err := cartScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.SetItemQuantity(r.Context(), cartsvc.SetItemInput{
			OrganizationID: orgID,
			EventYearID:    eventYearID,
			ProductID:      payload.ProductID,
			Quantity:       payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// CartRemoveItem drops one product line and releases its hold.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		orgID, eventYearID, err := cartScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.RemoveItem(r.Context(), orgID, eventYearID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// CartClear deletes the cart and releases every hold it carried.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		orgID, eventYearID, err := cartScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ClearCart(r.Context(), orgID, eventYearID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

func cartScope(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	orgID, err := validators.ParsePathUUID(chi.URLParam(r, "orgId"), "orgId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	eventYearID, err := validators.ParseRequiredQueryUUID(r, "event_year_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orgID, eventYearID, nil
}
