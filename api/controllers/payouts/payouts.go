package payouts

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/api/endpoint"
	"github.com/angelmondragon/digimart-backend/api/validators"
	"github.com/angelmondragon/digimart-backend/internal/balance"
	internalpayouts "github.com/angelmondragon/digimart-backend/internal/payouts"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

const payoutService = "payout service"

// shopScoped is a handler body for a route under /shops/{shopId}.
type shopScoped func(r *http.Request, actor auth.Actor, shopID uuid.UUID) (any, error)

func forShop(wired bool, name string, logg *logger.Logger, fn shopScoped) http.HandlerFunc {
	return endpoint.Authenticated(wired, name, logg, func(r *http.Request, actor auth.Actor) (any, error) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			return nil, err
		}
		return fn(r, actor, shopID)
	})
}

// Balance returns the derived earnings balance of a shop.
func Balance(svc balance.Service, logg *logger.Logger) http.HandlerFunc {
	return forShop(svc != nil, "balance service", logg, func(r *http.Request, actor auth.Actor, shopID uuid.UUID) (any, error) {
		return svc.Get(r.Context(), actor, shopID)
	})
}

// Destinations lists the shop's payout destinations with masked account numbers.
func Destinations(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return forShop(svc != nil, payoutService, logg, func(r *http.Request, actor auth.Actor, shopID uuid.UUID) (any, error) {
		views, err := svc.ListDestinations(r.Context(), actor, shopID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"destinations": views}, nil
	})
}

// List returns the shop's payouts, newest first.
func List(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return forShop(svc != nil, payoutService, logg, func(r *http.Request, actor auth.Actor, shopID uuid.UUID) (any, error) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		list, err := svc.ListPayouts(r.Context(), actor, shopID, page)
		if err != nil {
			return nil, err
		}
		return newPayoutListView(list), nil
	})
}

// Detail returns one payout of the shop.
func Detail(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return forShop(svc != nil, payoutService, logg, func(r *http.Request, actor auth.Actor, shopID uuid.UUID) (any, error) {
		payoutID, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			return nil, err
		}
		payout, err := svc.GetPayout(r.Context(), actor, shopID, payoutID)
		if err != nil {
			return nil, err
		}
		return newPayoutView(payout), nil
	})
}

type payoutRequest struct {
	Amount        int64      `json:"amount" validate:"required,gt=0"`
	DestinationID *uuid.UUID `json:"destination_id,omitempty"`
}

// Create requests a payout of part of the available balance.
func Create(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return forShop(svc != nil, payoutService, logg, func(r *http.Request, actor auth.Actor, shopID uuid.UUID) (any, error) {
		var body payoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		payout, err := svc.RequestPayout(r.Context(), actor, shopID, internalpayouts.Request{
			Amount:        body.Amount,
			DestinationID: body.DestinationID,
		})
		if err != nil {
			return nil, err
		}
		return endpoint.Created(newPayoutView(payout)), nil
	})
}
