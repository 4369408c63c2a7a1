// api/controllers/availability.go
package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sportsfesthq/sportsfest-backend/api/responses"
	"github.com/sportsfesthq/sportsfest-backend/api/validators"
	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

// AvailabilityList returns the live availability of every active product in an
// event year.
func AvailabilityList(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		eventYearID, err := validators.ParseRequiredQueryUUID(r, "event_year_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListAvailability(r.Context(), eventYearID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AvailabilityGet returns the availability of a single product.
func AvailabilityGet(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := svc.GetAvailability(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}
