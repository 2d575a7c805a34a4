package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/api/endpoint"
	"github.com/angelmondragon/digimart-backend/api/validators"
	"github.com/angelmondragon/digimart-backend/internal/cancellation"
	"github.com/angelmondragon/digimart-backend/internal/fulfillment"
	internalorders "github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/internal/payments"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

// cancelReasonMax bounds the free-text reason stored on a cancelled order.
const cancelReasonMax = 500

// transition is an order state change made by the actor on the order in the path.
type transition func(r *http.Request, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)

// onOrder runs change and answers with the actor's view of the resulting order.
func onOrder(wired bool, name string, logg *logger.Logger, change transition) http.HandlerFunc {
	return endpoint.Authenticated(wired, name, logg, func(r *http.Request, actor auth.Actor) (any, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		order, err := change(r, actor, orderID)
		if err != nil {
			return nil, err
		}
		return internalorders.ViewFor(actor, order), nil
	})
}

// List returns the caller's orders as a buyer.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Authenticated(svc != nil, "orders service", logg, func(r *http.Request, actor auth.Actor) (any, error) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		return svc.ListForBuyer(r.Context(), actor, page)
	})
}

// ListForShop returns orders containing a group for the shop in the path.
func ListForShop(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Authenticated(svc != nil, "orders service", logg, func(r *http.Request, actor auth.Actor) (any, error) {
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			return nil, err
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		return svc.ListForShop(r.Context(), actor, shopID, page)
	})
}

// Detail returns one order. Orders the caller cannot see read as not found.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Authenticated(svc != nil, "orders service", logg, func(r *http.Request, actor auth.Actor) (any, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), actor, orderID)
	})
}

type syncPaymentResponse struct {
	internalorders.OrderView
	Changed bool `json:"changed"`
}

// SyncPayment pulls the charge status from the processor and applies it.
func SyncPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Authenticated(svc != nil, "payment service", logg, func(r *http.Request, actor auth.Actor) (any, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		result, err := svc.SyncPayment(r.Context(), actor, orderID)
		if err != nil {
			return nil, err
		}
		return syncPaymentResponse{OrderView: internalorders.ViewFor(actor, result.Order), Changed: result.Changed}, nil
	})
}

type deliverRequest struct {
	Fulfillment map[string]any `json:"fulfillment" validate:"required"`
}

// Deliver records the seller's fulfillment for their shop group.
func Deliver(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc != nil, "fulfillment service", logg, func(r *http.Request, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
		var body deliverRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Deliver(r.Context(), actor, orderID, body.Fulfillment)
	})
}

// Confirm marks delivery as accepted by the buyer, making the order payable.
func Confirm(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc != nil, "fulfillment service", logg, func(r *http.Request, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
		return svc.Confirm(r.Context(), actor, orderID)
	})
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// Cancel cancels an order, refunding it when the charge already completed. The
// body is optional.
func Cancel(svc cancellation.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc != nil, "cancellation service", logg, func(r *http.Request, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
		var body cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				return nil, err
			}
		}
		return svc.Cancel(r.Context(), actor, orderID, validators.SanitizeString(body.Reason, cancelReasonMax))
	})
}
