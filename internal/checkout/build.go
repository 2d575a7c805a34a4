package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Line is one priced purchase line resolved from the catalog.
type Line struct {
	ShopID     uuid.UUID
	ProductID  uuid.UUID
	CartItemID *uuid.UUID
	Name       string
	UnitPrice  int64
	Quantity   int
}

func (l Line) total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// GroupByShop splits lines per shop, keeping the order in which shops first appear.
func GroupByShop(lines []Line) ([]uuid.UUID, map[uuid.UUID][]Line) {
	order := make([]uuid.UUID, 0)
	grouped := make(map[uuid.UUID][]Line)
	for _, line := range lines {
		if _, ok := grouped[line.ShopID]; !ok {
			order = append(order, line.ShopID)
		}
		grouped[line.ShopID] = append(grouped[line.ShopID], line)
	}
	return order, grouped
}

// orderDraft carries the order-level inputs of buildOrder.
type orderDraft struct {
	BuyerID     uuid.UUID
	Currency    enums.Currency
	Method      enums.PaymentMethod
	Fingerprint []string
	Key         string
	FeeBps      int64
	Now         time.Time
}

// buildOrder assembles an unsaved pending order with one shop group per shop and
// the platform fee applied per group.
func buildOrder(draft orderDraft, lines []Line) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       draft.BuyerID,
		Currency:      draft.Currency,
		PaymentStatus: enums.PaymentStatusPending,
		OrderStatus:   enums.OrderStatusPending,
		PaymentMethod: draft.Method,
		PayoutStatus:  enums.PayoutStatusNone,
		CreatedAt:     draft.Now,
		UpdatedAt:     draft.Now,
	}
	if len(draft.Fingerprint) > 0 {
		order.CartItemFingerprint = pq.StringArray(draft.Fingerprint)
		key := draft.Key
		order.FingerprintKey = &key
	}

	shopOrder, grouped := GroupByShop(lines)
	for _, shopID := range shopOrder {
		group := models.OrderShopGroup{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ShopID:       shopID,
			PayoutStatus: enums.PayoutStatusNone,
		}
		for _, line := range grouped[shopID] {
			group.GrossAmount += line.total()
			group.Items = append(group.Items, models.OrderLineItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ShopGroupID: group.ID,
				ShopID:      shopID,
				ProductID:   line.ProductID,
				CartItemID:  line.CartItemID,
				Name:        line.Name,
				UnitPrice:   line.UnitPrice,
				Quantity:    line.Quantity,
				LineTotal:   line.total(),
			})
		}
		group.PlatformFeeAmount, group.SellerNetAmount = SplitFee(group.GrossAmount, draft.FeeBps)

		order.GrossTotal += group.GrossAmount
		order.PlatformFeeTotal += group.PlatformFeeAmount
		order.SellerNetAmount += group.SellerNetAmount
		order.ShopGroups = append(order.ShopGroups, group)
	}
	if len(order.ShopGroups) == 1 {
		shopID := order.ShopGroups[0].ShopID
		order.ShopID = &shopID
	}
	return order
}
