package checkout

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

func TestSplitFeeRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		gross, bps, fee int64
	}{
		{gross: 1000, bps: 300, fee: 30},
		{gross: 50, bps: 300, fee: 2},  // 1.5 rounds to 2
		{gross: 150, bps: 300, fee: 4}, // 4.5 rounds to 4
		{gross: 250, bps: 300, fee: 8}, // 7.5 rounds to 8
		{gross: 16, bps: 300, fee: 0},  // 0.48
		{gross: 1000, bps: 0, fee: 0},
		{gross: 0, bps: 300, fee: 0},
	}
	for _, tt := range tests {
		fee, net := SplitFee(tt.gross, tt.bps)
		assert.Equal(t, tt.fee, fee, "gross=%d bps=%d", tt.gross, tt.bps)
		assert.Equal(t, tt.gross-tt.fee, net, "gross=%d bps=%d", tt.gross, tt.bps)
	}
}

func TestBuildOrderGroupsPerShop(t *testing.T) {
	shopA, shopB := uuid.New(), uuid.New()
	cartLine := uuid.New()
	lines := []Line{
		{ShopID: shopA, ProductID: uuid.New(), CartItemID: &cartLine, Name: "Game key", UnitPrice: 1000, Quantity: 2},
		{ShopID: shopB, ProductID: uuid.New(), Name: "Gift card", UnitPrice: 500, Quantity: 1},
		{ShopID: shopA, ProductID: uuid.New(), Name: "DLC", UnitPrice: 250, Quantity: 1},
	}
	order := buildOrder(orderDraft{
		BuyerID:     uuid.New(),
		Currency:    enums.CurrencyUSD,
		Method:      enums.PaymentMethodCard,
		Fingerprint: []string{cartLine.String()},
		Key:         "k",
		FeeBps:      300,
	}, lines)

	require.Len(t, order.ShopGroups, 2)
	assert.Equal(t, shopA, order.ShopGroups[0].ShopID, "shop A comes first")
	groupA := order.ShopGroups[0]
	assert.Equal(t, int64(2250), groupA.GrossAmount)
	assert.Equal(t, int64(68), groupA.PlatformFeeAmount)
	assert.Equal(t, int64(2182), groupA.SellerNetAmount)
	assert.Equal(t, int64(2750), order.GrossTotal)
	assert.Equal(t, order.GrossTotal, order.PlatformFeeTotal+order.SellerNetAmount)
	assert.Nil(t, order.ShopID, "multi-shop order must not carry a top-level shop")
	assert.True(t, order.FromCart())
	assert.NotNil(t, order.FingerprintKey, "cart order must carry its fingerprint")
	for _, item := range groupA.Items {
		assert.Equal(t, groupA.ID, item.ShopGroupID)
		assert.Equal(t, order.ID, item.OrderID)
	}
}
