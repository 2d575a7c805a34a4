package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

// Service records write-once money movements.
type Service interface {
	Record(ctx context.Context, entry Entry) (*models.LedgerEvent, error)
	HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
	ListForPayout(ctx context.Context, payoutID uuid.UUID) ([]models.LedgerEvent, error)
}

// Entry is one audit line. At least one of OrderID or PayoutID must be set.
type Entry struct {
	OrderID   *uuid.UUID
	PayoutID  *uuid.UUID
	ShopID    *uuid.UUID
	ActorID   *uuid.UUID
	Type      enums.LedgerEventType
	Amount    int64
	Reference string
	Metadata  map[string]any
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, entry Entry) (*models.LedgerEvent, error) {
	if entry.OrderID == nil && entry.PayoutID == nil {
		return nil, fmt.Errorf("order id or payout id is required")
	}
	if !entry.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", entry.Type)
	}
	if entry.Amount < 0 {
		return nil, fmt.Errorf("ledger amount must be non-negative")
	}

	event := &models.LedgerEvent{
		OrderID:  entry.OrderID,
		PayoutID: entry.PayoutID,
		ShopID:   entry.ShopID,
		ActorID:  entry.ActorID,
		Type:     entry.Type,
		Amount:   entry.Amount,
		Metadata: entry.Metadata,
	}
	if entry.Reference != "" {
		ref := entry.Reference
		event.Reference = &ref
	}
	if err := s.repo.Append(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	events, err := s.repo.ForOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) ListForPayout(ctx context.Context, payoutID uuid.UUID) ([]models.LedgerEvent, error) {
	return s.repo.ForPayout(ctx, payoutID)
}

// Auditor writes ledger entries after the owning transaction committed. Failures are
// logged and dropped.
type Auditor struct {
	svc  Service
	logg *logger.Logger
}

func NewAuditor(svc Service, logg *logger.Logger) *Auditor {
	return &Auditor{svc: svc, logg: logg}
}

func (a *Auditor) Audit(ctx context.Context, entry Entry) {
	if a == nil || a.svc == nil {
		return
	}
	if _, err := a.svc.Record(ctx, entry); err != nil && a.logg != nil {
		a.logg.Error(a.logg.WithField(ctx, "ledger_type", entry.Type), "ledger audit write failed", err)
	}
}

// OrderEntry is a shorthand for an entry keyed by order.
func OrderEntry(order *models.Order, eventType enums.LedgerEventType, amount int64, reference string) Entry {
	orderID := order.ID
	entry := Entry{OrderID: &orderID, Type: eventType, Amount: amount, Reference: reference}
	if order.ShopID != nil {
		shopID := *order.ShopID
		entry.ShopID = &shopID
	}
	return entry
}
