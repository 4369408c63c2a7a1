// api/controllers/cleanup.go
package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sportsfesthq/sportsfest-backend/api/responses"
	"github.com/sportsfesthq/sportsfest-backend/api/validators"
	ordersvc "github.com/sportsfesthq/sportsfest-backend/internal/orders"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

type cleanupOrdersRequest struct {
	OlderThanHours int        `json:"olderThanHours" validate:"min=0,max=8760"`
	Execute        bool       `json:"execute"`
	Quick          bool       `json:"quick"`
	EventYearID    *uuid.UUID `json:"eventYearId"`
}

// CleanupOrders runs the abandoned-order sweep on demand. Without execute the
// sweep is a dry run that only reports what it would delete.
func CleanupOrders(svc *ordersvc.CleanupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cleanup service unavailable"))
			return
		}

		var payload cleanupOrdersRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.SweepAbandonedOrders(r.Context(), ordersvc.SweepInput{
			OlderThanHours: payload.OlderThanHours,
			Execute:        payload.Execute,
			Quick:          payload.Quick,
			EventYearID:    payload.EventYearID,
		})
		if err != nil {
			if result == nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			// The sweep isolates failures per order, so a partial run still
			// produced real counts; report them and log what failed.
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "abandoned order sweep finished with failures")
			}
		}
		responses.WriteSuccess(w, result)
	}
}

// CleanupCartHealth reports live versus expired cart counts.
func CleanupCartHealth(svc *ordersvc.CleanupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cleanup service unavailable"))
			return
		}

		health, err := svc.CartHealthSnapshot(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, health)
	}
}
