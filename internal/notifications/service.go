package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
)

// Service is the inbox surface used by the API.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, inbox Recipient, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, inbox Recipient) (int64, error)
	UnreadCount(ctx context.Context, inbox Recipient) (int64, error)
}

type ListParams struct {
	Recipient  Recipient
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult is one page of an inbox. Cursor is empty on the last page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// RecipientFor picks the inbox an actor reads: the shop inbox for sellers, the
// buyer inbox otherwise.
func RecipientFor(actor auth.Actor) Recipient {
	if actor.ShopID != nil {
		return Recipient{Type: enums.NotificationRecipientShop, ID: *actor.ShopID}
	}
	return Recipient{Type: enums.NotificationRecipientBuyer, ID: actor.UserID}
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func checkInbox(inbox Recipient) error {
	if inbox.ID == uuid.Nil || !inbox.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient required")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := checkInbox(params.Recipient); err != nil {
		return nil, err
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, Page{
		Inbox:      params.Recipient,
		Limit:      params.Limit,
		After:      after,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	out := &ListResult{Items: rows}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) MarkRead(ctx context.Context, inbox Recipient, notificationID uuid.UUID) error {
	if err := checkInbox(inbox); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.FieldError("notificationId", "required")
	}

	found, err := s.repo.MarkRead(ctx, inbox, notificationID, s.now())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, inbox Recipient) (int64, error) {
	if err := checkInbox(inbox); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, inbox, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}

func (s *service) UnreadCount(ctx context.Context, inbox Recipient) (int64, error) {
	if err := checkInbox(inbox); err != nil {
		return 0, err
	}
	n, err := s.repo.CountUnread(ctx, inbox)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return n, nil
}
