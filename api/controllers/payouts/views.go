package payouts

import (
	"time"

	"github.com/google/uuid"

	internalpayouts "github.com/angelmondragon/digimart-backend/internal/payouts"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

type payoutView struct {
	ID                uuid.UUID                `json:"id"`
	ShopID            uuid.UUID                `json:"shop_id"`
	DestinationID     uuid.UUID                `json:"destination_id"`
	Amount            int64                    `json:"amount"`
	Currency          enums.Currency           `json:"currency"`
	Status            enums.PayoutRecordStatus `json:"status"`
	OrderIDs          []uuid.UUID              `json:"order_ids"`
	TransferReference *string                  `json:"transfer_reference,omitempty"`
	FailureReason     *string                  `json:"failure_reason,omitempty"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
	FailedAt          *time.Time               `json:"failed_at,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
}

type payoutListView struct {
	Payouts    []payoutView `json:"payouts"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func newPayoutView(p *models.Payout) payoutView {
	ids := []uuid.UUID(p.OrderIDs)
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return payoutView{
		ID:                p.ID,
		ShopID:            p.ShopID,
		DestinationID:     p.DestinationID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Status:            p.Status,
		OrderIDs:          ids,
		TransferReference: p.TransferReference,
		FailureReason:     p.FailureReason,
		CompletedAt:       p.CompletedAt,
		FailedAt:          p.FailedAt,
		CreatedAt:         p.CreatedAt,
	}
}

func newPayoutListView(list *internalpayouts.PayoutList) payoutListView {
	out := payoutListView{Payouts: make([]payoutView, 0, len(list.Payouts)), NextCursor: list.NextCursor}
	for i := range list.Payouts {
		out.Payouts = append(out.Payouts, newPayoutView(&list.Payouts[i]))
	}
	return out
}
