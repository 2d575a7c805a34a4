package payouts

import (
	"github.com/angelmondragon/digimart-backend/internal/balance"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Allocate draws amount from entries in the given order, taking each entry's
// withdrawable funds in full before moving on. The last entry touched may be split.
func Allocate(entries []balance.Entry, amount int64) []models.PayoutAllocation {
	remaining := amount
	var out []models.PayoutAllocation
	for _, entry := range entries {
		if remaining <= 0 {
			break
		}
		take := entry.Withdrawable()
		if take <= 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		out = append(out, models.PayoutAllocation{
			OrderID:     entry.OrderID,
			ShopGroupID: entry.ShopGroupID,
			Amount:      take,
			PrevPaidOut: entry.PaidOut,
			SellerNet:   entry.SellerNet,
		})
		remaining -= take
	}
	return out
}

// planned returns the payout axis a group moves to once alloc is paid.
func planned(alloc models.PayoutAllocation) (enums.PayoutStatus, int64, error) {
	status := enums.PayoutStatusReady
	if alloc.PrevPaidOut > 0 {
		status = enums.PayoutStatusPartial
	}
	group := &models.OrderShopGroup{
		SellerNetAmount: alloc.SellerNet,
		PaidOutAmount:   alloc.PrevPaidOut,
		PayoutStatus:    status,
	}
	return orders.PlanAllocation(group, true, alloc.Amount)
}
