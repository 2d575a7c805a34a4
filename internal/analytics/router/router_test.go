package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

type fakeWriter struct {
	inserted []types.MarketplaceEventRow
	err      error
}

func (f *fakeWriter) WriteEvent(_ context.Context, row types.MarketplaceEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}

type captureHandler struct {
	payloads []any
}

func (c *captureHandler) Handle(_ context.Context, _ types.Envelope, payload any) error {
	c.payloads = append(c.payloads, payload)
	return nil
}

func newTestRouter(t *testing.T, writer Writer, overrides map[enums.AnalyticsEventType]Handler) *Router {
	t.Helper()
	r, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test", Level: "error"}), overrides)
	require.NoError(t, err)
	return r
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, logger.New(logger.Options{ServiceName: "router-test"}), nil)
	assert.Error(t, err)
	_, err = NewRouter(&fakeWriter{}, nil, nil)
	assert.Error(t, err)
}

func TestRouterUnsupportedEvent(t *testing.T) {
	r := newTestRouter(t, &fakeWriter{}, nil)
	err := r.Handle(context.Background(), types.Envelope{
		EventType: enums.AnalyticsEventType("unsupported"),
		Payload:   []byte(`{"foo":"bar"}`),
	})
	assert.ErrorIs(t, err, ErrUnsupportedEventType)
}

func TestRouterDecodesPayloadForOverride(t *testing.T) {
	capture := &captureHandler{}
	r := newTestRouter(t, &fakeWriter{}, map[enums.AnalyticsEventType]Handler{
		enums.AnalyticsEventPayoutCompleted:        capture,
		enums.AnalyticsEventType("not_registered"): capture,
	})
	data, err := json.Marshal(payloads.PayoutEvent{PayoutID: uuid.New(), ShopID: uuid.New(), Amount: 100})
	require.NoError(t, err)

	require.NoError(t, r.Handle(context.Background(), types.Envelope{EventType: enums.AnalyticsEventPayoutCompleted, Payload: data}))
	require.Len(t, capture.payloads, 1)
	event, ok := capture.payloads[0].(*payloads.PayoutEvent)
	require.True(t, ok, "got %T", capture.payloads[0])
	assert.Equal(t, int64(100), event.Amount)

	_, registered := r.routes[enums.AnalyticsEventType("not_registered")]
	assert.False(t, registered)
}

func TestRouterRejectsUndecodablePayload(t *testing.T) {
	r := newTestRouter(t, &fakeWriter{}, nil)
	for _, body := range []string{"", "null", `{"order_id":`} {
		err := r.Handle(context.Background(), types.Envelope{
			EventType: enums.AnalyticsEventOrderConfirmed,
			Payload:   json.RawMessage(body),
		})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "body %q: %v", body, err)
		assert.False(t, pkgerrors.Retryable(err))
	}
}
