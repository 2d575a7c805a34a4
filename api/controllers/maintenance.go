package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/api/responses"
	"github.com/angelmondragon/digimart-backend/api/validators"
	"github.com/angelmondragon/digimart-backend/internal/checkout"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
)

type duplicateSweeper interface {
	Sweep(ctx context.Context) (checkout.SweepSummary, error)
}

// DedupSweep runs the duplicate-order sweep on demand. Partial progress is
// reported alongside the error when some keys could not be swept.
func DedupSweep(sweeper duplicateSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sweeper == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dedup sweeper unavailable"))
			return
		}

		summary, err := sweeper.Sweep(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "dedup sweep incomplete").
				WithDetails(summary))
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(r.Context(), map[string]any{
				"keys":    summary.Keys,
				"kept":    summary.Kept,
				"deleted": summary.Deleted,
			}), "dedup sweep completed")
		}
		responses.WriteSuccess(w, summary)
	}
}

type deadLetterStore interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, id uuid.UUID) (*models.OutboxDLQ, error)
}

// DeadLetters lists the outbox events the relay gave up on, newest first.
func DeadLetters(store deadLetterStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := store.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"dead_letters": rows})
	}
}

// RequeueDeadLetter hands a dead-lettered event back to the relay.
func RequeueDeadLetter(store deadLetterStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "deadLetterId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := store.Requeue(r.Context(), id)
		switch {
		case errors.Is(err, outbox.ErrDeadLetterNotFound):
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found"))
			return
		case errors.Is(err, outbox.ErrEventGone):
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "event is no longer pending"))
			return
		case err != nil:
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue dead letter"))
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(r.Context(), map[string]any{
				"dead_letter_id": entry.ID.String(),
				"event_id":       entry.EventID.String(),
				"event_type":     string(entry.EventType),
			}), "dead letter requeued")
		}
		responses.WriteSuccess(w, map[string]any{"event_id": entry.EventID, "requeued": true})
	}
}
