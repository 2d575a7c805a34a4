package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

// ShopAmounts lists each shop group's money split for event payloads.
func ShopAmounts(order *models.Order) []payloads.ShopAmount {
	out := make([]payloads.ShopAmount, 0, len(order.ShopGroups))
	for _, group := range order.ShopGroups {
		out = append(out, payloads.ShopAmount{
			ShopID:          group.ShopID,
			GrossAmount:     group.GrossAmount,
			SellerNetAmount: group.SellerNetAmount,
		})
	}
	return out
}

// ShopIDs returns the shops of order in group order.
func ShopIDs(order *models.Order) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(order.ShopGroups))
	for _, group := range order.ShopGroups {
		out = append(out, group.ShopID)
	}
	return out
}
