package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/api/endpoint"
	"github.com/angelmondragon/digimart-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/digimart-backend/internal/checkout"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

// Checkout creates an order from cart items or a direct purchase and starts the
// charge. A repeated submission inside the dedup window returns the live order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Authenticated(svc != nil, "checkout service", logg, func(r *http.Request, actor auth.Actor) (any, error) {
		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}

		input := checkoutsvc.Input{
			BuyerID:       actor.UserID,
			CartItemIDs:   body.CartItemIDs,
			PaymentMethod: enums.PaymentMethod(body.PaymentMethod),
			SourceToken:   validators.SanitizeString(body.SourceToken, 512),
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, checkoutsvc.DirectItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		result, err := svc.Checkout(r.Context(), input)
		if err != nil {
			return nil, err
		}
		view := orders.ViewFor(actor, result.Order)
		view.IsDuplicate = result.IsDuplicate
		if result.IsDuplicate {
			return view, nil
		}
		return endpoint.Created(view), nil
	})
}

type checkoutRequest struct {
	CartItemIDs   []uuid.UUID           `json:"cart_item_ids" validate:"required_without=Items,omitempty,max=100,dive,required"`
	Items         []checkoutItemRequest `json:"items" validate:"required_without=CartItemIDs,omitempty,max=100,dive"`
	PaymentMethod string                `json:"payment_method" validate:"required,oneof=card bank_transfer_qr"`
	SourceToken   string                `json:"source_token" validate:"omitempty,max=512"`
}

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0,max=1000"`
}
