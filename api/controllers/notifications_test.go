package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/digimart-backend/api/middleware"
	"github.com/angelmondragon/digimart-backend/internal/notifications"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
)

// inboxRecorder remembers the inbox and arguments each call was made with.
type inboxRecorder struct {
	inbox  notifications.Recipient
	params notifications.ListParams
	marked uuid.UUID
	err    error
}

func (s *inboxRecorder) List(_ context.Context, p notifications.ListParams) (*notifications.ListResult, error) {
	s.inbox, s.params = p.Recipient, p
	return &notifications.ListResult{Cursor: "next"}, s.err
}

func (s *inboxRecorder) MarkRead(_ context.Context, inbox notifications.Recipient, id uuid.UUID) error {
	s.inbox, s.marked = inbox, id
	return s.err
}

func (s *inboxRecorder) MarkAllRead(_ context.Context, inbox notifications.Recipient) (int64, error) {
	s.inbox = inbox
	return 4, s.err
}

func (s *inboxRecorder) UnreadCount(_ context.Context, inbox notifications.Recipient) (int64, error) {
	s.inbox = inbox
	return 7, s.err
}

func asActor(r *http.Request, actor auth.Actor) *http.Request {
	return r.WithContext(middleware.WithActor(r.Context(), actor))
}

func TestMarkNotificationReadUsesShopInbox(t *testing.T) {
	shopID, notificationID := uuid.New(), uuid.New()
	svc := &inboxRecorder{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", nil)
	req = asActor(req, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller, ShopID: &shopID})
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("notificationId", notificationID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, notifications.Recipient{Type: enums.NotificationRecipientShop, ID: shopID}, svc.inbox)
	assert.Equal(t, notificationID, svc.marked)
}

func TestListNotificationsUsesBuyerInbox(t *testing.T) {
	buyerID := uuid.New()
	svc := &inboxRecorder{}

	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=5&unreadOnly=true", nil),
		auth.Actor{UserID: buyerID, Role: enums.UserRoleBuyer})
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, notifications.Recipient{Type: enums.NotificationRecipientBuyer, ID: buyerID}, svc.inbox)
	assert.True(t, svc.params.UnreadOnly)
	assert.Equal(t, 5, svc.params.Limit)

	var body struct {
		Data notifications.ListResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "next", body.Data.Cursor)
}

func TestListNotificationsRejectsBadUnreadFlag(t *testing.T) {
	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?unreadOnly=maybe", nil),
		auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer})
	resp := httptest.NewRecorder()
	ListNotifications(&inboxRecorder{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUnreadNotificationCount(t *testing.T) {
	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil),
		auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer})
	resp := httptest.NewRecorder()
	UnreadNotificationCount(&inboxRecorder{}, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"unread":7}}`, resp.Body.String())
}

func TestInboxHandlersMapServiceErrors(t *testing.T) {
	svc := &inboxRecorder{err: pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")}
	req := asActor(httptest.NewRequest(http.MethodPost, "/", nil), auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer})
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMarkAllNotificationsReadRequiresActor(t *testing.T) {
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(&inboxRecorder{}, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestInboxHandlerWithoutService(t *testing.T) {
	resp := httptest.NewRecorder()
	ListNotifications(nil, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
