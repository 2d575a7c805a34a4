package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"order_id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "abc", body.Data.(map[string]any)["order_id"])
}

func TestWriteErrorEchoesClientFacingMessages(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
		WithDetails(map[string]string{"quantity": "must be positive"})
	WriteError(context.Background(), nil, w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, string(pkgerrors.CodeValidation), got.Code)
	assert.Equal(t, "quantity must be positive", got.Message)
	assert.NotNil(t, got.Details)
}

func TestWriteErrorHidesGatewayMessages(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeGateway, "square: card_token=tok_123 declined"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "payment gateway error", decodeError(t, w).Message)
}

func TestWriteErrorDefaultsToInternal(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &logs})

	w := httptest.NewRecorder()
	cause := &pgconn.PgError{Code: "23505", ConstraintName: "payouts_shop_key"}
	WriteError(context.Background(), logg, w, errors.Join(errors.New("insert payout"), cause))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, string(pkgerrors.CodeInternal), got.Code)
	assert.Nil(t, got.Details)
	assert.NotContains(t, got.Message, "payouts_shop_key")

	assert.Contains(t, logs.String(), "request.error")
	assert.Contains(t, logs.String(), "payouts_shop_key")
}
