// Package balance derives a shop's earnings and withdrawable funds from its shop groups.
package balance

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Entry is one shop group's contribution to a shop balance. At is the buyer
// confirmation time for confirmed entries and the payment time for pending ones.
type Entry struct {
	OrderID      uuid.UUID          `gorm:"column:order_id"`
	ShopGroupID  uuid.UUID          `gorm:"column:shop_group_id"`
	SellerNet    int64              `gorm:"column:seller_net"`
	PaidOut      int64              `gorm:"column:paid_out"`
	PayoutStatus enums.PayoutStatus `gorm:"column:payout_status"`
	At           *time.Time         `gorm:"column:at"`
}

// Withdrawable is the unpaid part of the entry, never negative.
func (e Entry) Withdrawable() int64 {
	if e.PayoutStatus == enums.PayoutStatusPaid {
		return 0
	}
	rest := e.SellerNet - e.paid()
	if rest < 0 {
		return 0
	}
	return rest
}

func (e Entry) paid() int64 {
	switch {
	case e.PayoutStatus == enums.PayoutStatusPaid:
		return e.SellerNet
	case e.PaidOut > e.SellerNet:
		return e.SellerNet
	case e.PaidOut < 0:
		return 0
	default:
		return e.PaidOut
	}
}

type Balance struct {
	Available           int64 `json:"available"`
	PendingConfirmation int64 `json:"pending_confirmation"`
	TotalEarnings       int64 `json:"total_earnings"`
	TotalPaidOut        int64 `json:"total_paid_out"`
	Today               int64 `json:"today"`
	ThisWeek            int64 `json:"this_week"`
	ThisMonth           int64 `json:"this_month"`
	ConfirmedOrderCount int   `json:"confirmed_order_count"`
	PendingOrderCount   int   `json:"pending_order_count"`
}

// Compute folds confirmed and pending entries into a Balance. Available plus
// TotalPaidOut always equals TotalEarnings. Today and ThisWeek are trailing windows;
// ThisMonth is the current calendar month in UTC.
func Compute(now time.Time, confirmed, pending []Entry) Balance {
	now = now.UTC()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var out Balance
	confirmedOrders := map[uuid.UUID]struct{}{}
	for _, entry := range confirmed {
		out.TotalEarnings += entry.SellerNet
		out.TotalPaidOut += entry.paid()
		confirmedOrders[entry.OrderID] = struct{}{}
		if entry.At == nil {
			continue
		}
		at := entry.At.UTC()
		if at.After(dayAgo) {
			out.Today += entry.SellerNet
		}
		if at.After(weekAgo) {
			out.ThisWeek += entry.SellerNet
		}
		if !at.Before(monthStart) {
			out.ThisMonth += entry.SellerNet
		}
	}
	out.Available = out.TotalEarnings - out.TotalPaidOut

	pendingOrders := map[uuid.UUID]struct{}{}
	for _, entry := range pending {
		out.PendingConfirmation += entry.SellerNet
		pendingOrders[entry.OrderID] = struct{}{}
	}
	out.ConfirmedOrderCount = len(confirmedOrders)
	out.PendingOrderCount = len(pendingOrders)
	return out
}

// Available sums the withdrawable part of entries.
func Available(entries []Entry) int64 {
	var total int64
	for _, entry := range entries {
		total += entry.Withdrawable()
	}
	return total
}
