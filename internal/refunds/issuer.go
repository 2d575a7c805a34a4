// Package refunds returns captured buyer funds and records every outcome on the order.
package refunds

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/internal/ledger"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/metrics"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditor interface {
	Audit(ctx context.Context, entry ledger.Entry)
}

// Outcome is what the gateway reported for a refund attempt.
type Outcome struct {
	Status    enums.RefundStatus
	Reference string
	Amount    int64
	Error     string
}

// Issuer calls the refund gateway and persists the result.
type Issuer struct {
	tx      txRunner
	orders  orders.Repository
	refunds gateway.Refunds
	outbox  outboxPublisher
	audit   auditor
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
}

func NewIssuer(tx txRunner, repo orders.Repository, refunds gateway.Refunds, publisher outboxPublisher, audit auditor, logg *logger.Logger, m *metrics.EngineMetrics) (*Issuer, error) {
	switch {
	case tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case refunds == nil:
		return nil, fmt.Errorf("refund gateway required")
	case publisher == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Issuer{tx: tx, orders: repo, refunds: refunds, outbox: publisher, audit: audit, logg: logg, metrics: m}, nil
}

// Refund requests a refund of the order's gross total and records the outcome even when
// the gateway call fails. Only a failure to persist the outcome is returned.
func (i *Issuer) Refund(ctx context.Context, order *models.Order, reason string) (Outcome, error) {
	if order.RefundStatus != nil && *order.RefundStatus == enums.RefundStatusSucceeded {
		return outcomeOf(order), nil
	}
	if order.ChargeReference == nil {
		out := Outcome{Status: enums.RefundStatusFailed, Amount: order.GrossTotal, Error: "order has no charge reference"}
		return out, i.Record(ctx, order, out)
	}
	out := i.request(ctx, order, reason)
	return out, i.Record(ctx, order, out)
}

// Reconcile re-polls a pending refund. Without a reference the create call is repeated,
// which the gateway deduplicates on the order id.
func (i *Issuer) Reconcile(ctx context.Context, order *models.Order) (Outcome, bool, error) {
	current := outcomeOf(order)
	if order.RefundStatus == nil || *order.RefundStatus != enums.RefundStatusPending {
		return current, false, nil
	}
	var next Outcome
	if current.Reference == "" {
		next = i.request(ctx, order, "refund retry")
	} else {
		refund, err := i.refunds.GetRefund(ctx, current.Reference)
		if err != nil {
			return current, false, err
		}
		next = Outcome{Status: refund.Status, Reference: refund.Reference, Amount: order.GrossTotal}
	}
	if next.Status == current.Status && next.Reference == current.Reference {
		return current, false, nil
	}
	return next, true, i.Record(ctx, order, next)
}

func (i *Issuer) request(ctx context.Context, order *models.Order, reason string) Outcome {
	refund, err := i.refunds.CreateRefund(ctx, gateway.RefundRequest{
		OrderID:         order.ID,
		ChargeReference: *order.ChargeReference,
		Amount:          order.GrossTotal,
		Currency:        order.Currency,
		Reason:          reason,
	})
	if err != nil {
		status := enums.RefundStatusFailed
		if gateway.UnknownOutcome(err) {
			status = enums.RefundStatusPending
		}
		i.logg.Error(i.logg.WithOrderID(ctx, order.ID.String()), "refund request failed", err)
		return Outcome{Status: status, Amount: order.GrossTotal, Error: err.Error()}
	}
	return Outcome{Status: refund.Status, Reference: refund.Reference, Amount: order.GrossTotal}
}

// Record writes the refund fields and the refund_recorded event in one transaction.
func (i *Issuer) Record(ctx context.Context, order *models.Order, out Outcome) error {
	updates := map[string]any{
		"refund_status":   out.Status,
		"refunded_amount": int64(0),
		"refund_error":    nil,
	}
	if out.Status == enums.RefundStatusSucceeded {
		updates["refunded_amount"] = out.Amount
	}
	if out.Reference != "" {
		updates["refund_reference"] = out.Reference
	}
	if out.Error != "" {
		updates["refund_error"] = out.Error
	}
	err := i.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := i.orders.WithTx(tx).UpdateRefund(ctx, order.ID, updates); err != nil {
			return err
		}
		return i.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRecorded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.RefundRecordedEvent{
				OrderID:         order.ID,
				BuyerID:         order.BuyerID,
				RefundReference: out.Reference,
				Amount:          out.Amount,
				Status:          out.Status,
				Error:           out.Error,
			},
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return fmt.Errorf("record refund outcome: %w", err)
	}

	status := out.Status
	order.RefundStatus = &status
	if out.Reference != "" {
		ref := out.Reference
		order.RefundReference = &ref
	}
	if status == enums.RefundStatusSucceeded {
		order.RefundedAmount = out.Amount
	}
	if out.Error != "" {
		msg := out.Error
		order.RefundError = &msg
	} else {
		order.RefundError = nil
	}

	i.metrics.IncRefund(string(status))
	if status == enums.RefundStatusSucceeded && i.audit != nil {
		i.audit.Audit(ctx, ledger.OrderEntry(order, enums.LedgerEventRefundRecorded, out.Amount, out.Reference))
	}
	return nil
}

func outcomeOf(order *models.Order) Outcome {
	out := Outcome{Amount: order.RefundedAmount}
	if order.RefundStatus != nil {
		out.Status = *order.RefundStatus
	}
	if order.RefundReference != nil {
		out.Reference = *order.RefundReference
	}
	if order.RefundError != nil {
		out.Error = *order.RefundError
	}
	return out
}
