package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// ErrEmptyPayload is returned by DecodePayload when the event carried no body.
var ErrEmptyPayload = errors.New("empty event payload")

// Envelope is an outbox event as the analytics worker sees it after merging the
// Pub/Sub attributes with the stored payload envelope.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.AnalyticsEventType  `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}

// DecodePayload unmarshals the event body into dst.
func (e Envelope) DecodePayload(dst any) error {
	body := bytes.TrimSpace(e.Payload)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return ErrEmptyPayload
	}
	return json.Unmarshal(body, dst)
}
