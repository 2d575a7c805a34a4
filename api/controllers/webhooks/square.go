package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/angelmondragon/digimart-backend/api/responses"
	squarewebhook "github.com/angelmondragon/digimart-backend/internal/webhooks/square"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

const replayConsumer = "square-webhook"

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.Event) error
}

type replayGuard interface {
	CheckAndMarkKey(ctx context.Context, consumer, id string) (bool, error)
	DeleteKey(ctx context.Context, consumer, id string) error
}

// SquareWebhook verifies and applies Square payment and refund notifications.
// Deliveries already seen are acknowledged without reprocessing.
func SquareWebhook(svc SquareWebhookService, cfg config.SquareConfig, guard replayGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replay guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := r.Header.Get(squarewebhook.SignatureHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "square signature missing"))
			return
		}
		if !squarewebhook.VerifySignature(payload, cfg.WebhookURL, cfg.WebhookSecret, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature"))
			return
		}

		var event squarewebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		key := event.ReplayKey()
		if key == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id missing"))
			return
		}

		seen, err := guard.CheckAndMarkKey(ctx, replayConsumer, key)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check replay guard"))
			return
		}
		if seen {
			if logg != nil {
				logg.Debug(logg.WithField(ctx, "event_id", key), "square event replayed")
			}
			responses.WriteSuccess(w, map[string]bool{"duplicate": true})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if delErr := guard.DeleteKey(ctx, replayConsumer, key); delErr != nil && logg != nil {
				logg.Error(ctx, "release square replay key", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{"event_id": key, "event_type": event.Type}), "square event processed")
		}
		responses.WriteSuccess(w, map[string]bool{"duplicate": false})
	}
}
