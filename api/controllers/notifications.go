package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/digimart-backend/api/endpoint"
	"github.com/angelmondragon/digimart-backend/api/validators"
	"github.com/angelmondragon/digimart-backend/internal/notifications"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

// inboxAction runs against the caller's inbox and returns the response payload.
type inboxAction func(r *http.Request, inbox notifications.Recipient) (any, error)

// inboxHandler resolves the caller's inbox, which is the shop inbox for sellers
// and the buyer inbox otherwise, then runs action on it.
func inboxHandler(svc notifications.Service, logg *logger.Logger, action inboxAction) http.HandlerFunc {
	return endpoint.Authenticated(svc != nil, "notifications service", logg, func(r *http.Request, actor auth.Actor) (any, error) {
		return action(r, notifications.RecipientFor(actor))
	})
}

// ListNotifications pages through the caller's inbox, newest first. unreadOnly=true
// hides notifications already read.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, inbox notifications.Recipient) (any, error) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		unreadOnly := false
		if raw := strings.TrimSpace(r.URL.Query().Get("unreadOnly")); raw != "" {
			if unreadOnly, err = strconv.ParseBool(raw); err != nil {
				return nil, pkgerrors.FieldError("unreadOnly", "must be true or false")
			}
		}
		return svc.List(r.Context(), notifications.ListParams{
			Recipient:  inbox,
			Limit:      page.Limit,
			Cursor:     page.Cursor,
			UnreadOnly: unreadOnly,
		})
	})
}

// UnreadNotificationCount reports how many notifications in the caller's inbox are unread.
func UnreadNotificationCount(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, inbox notifications.Recipient) (any, error) {
		n, err := svc.UnreadCount(r.Context(), inbox)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"unread": n}, nil
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, inbox notifications.Recipient) (any, error) {
		id, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), inbox, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, inbox notifications.Recipient) (any, error) {
		n, err := svc.MarkAllRead(r.Context(), inbox)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": n}, nil
	})
}
