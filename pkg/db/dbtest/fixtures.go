package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Item builds a line item for productID.
func Item(productID uuid.UUID, unitPrice int64, quantity int) models.OrderLineItem {
	return models.OrderLineItem{
		ProductID: productID,
		Name:      "item " + productID.String()[:8],
		UnitPrice: unitPrice,
		Quantity:  quantity,
		LineTotal: unitPrice * int64(quantity),
	}
}

// Group builds a shop group whose gross is the sum of its items.
func Group(shopID uuid.UUID, fee int64, items ...models.OrderLineItem) models.OrderShopGroup {
	var gross int64
	for _, item := range items {
		gross += item.LineTotal
	}
	return models.OrderShopGroup{
		ShopID:            shopID,
		GrossAmount:       gross,
		PlatformFeeAmount: fee,
		SellerNetAmount:   gross - fee,
		PayoutStatus:      enums.PayoutStatusNone,
		Items:             items,
	}
}

// Order builds an unsaved pending order with ids and totals filled in.
func Order(buyerID uuid.UUID, groups ...models.OrderShopGroup) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Currency:      enums.CurrencyUSD,
		PaymentStatus: enums.PaymentStatusPending,
		OrderStatus:   enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCard,
		PayoutStatus:  enums.PayoutStatusNone,
		CreatedAt:     time.Now().UTC(),
	}
	for i := range groups {
		group := &groups[i]
		group.ID = uuid.New()
		group.OrderID = order.ID
		for j := range group.Items {
			group.Items[j].ID = uuid.New()
			group.Items[j].OrderID = order.ID
			group.Items[j].ShopGroupID = group.ID
			group.Items[j].ShopID = group.ShopID
		}
		order.GrossTotal += group.GrossAmount
		order.PlatformFeeTotal += group.PlatformFeeAmount
		order.SellerNetAmount += group.SellerNetAmount
	}
	if len(groups) == 1 {
		shopID := groups[0].ShopID
		order.ShopID = &shopID
	}
	order.ShopGroups = groups
	return order
}

// Insert creates each value and fails the test on error.
func Insert(t *testing.T, conn *gorm.DB, values ...any) {
	t.Helper()
	for _, value := range values {
		require.NoError(t, conn.Create(value).Error)
	}
}
