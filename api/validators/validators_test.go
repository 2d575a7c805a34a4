package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
)

type refundBody struct {
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Reason      string `json:"reason" validate:"required,max=20"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBody(t *testing.T) {
	var dst refundBody
	require.NoError(t, DecodeJSONBody(jsonRequest(`{"amount_cents":500,"reason":"duplicate"}`), &dst))
	assert.Equal(t, int64(500), dst.AmountCents)
	assert.Equal(t, "duplicate", dst.Reason)
}

func TestDecodeJSONBodyRejects(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"unknown":  `{"amount_cents":1,"reason":"x","extra":true}`,
		"trailing": `{"amount_cents":1,"reason":"x"}{"amount_cents":2}`,
		"syntax":   `{"amount_cents":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dst refundBody
			err := DecodeJSONBody(jsonRequest(body), &dst)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	var dst refundBody
	err := DecodeJSONBody(jsonRequest(`{"amount_cents":0}`), &dst)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be greater than 0", details["amount_cents"])
	assert.Equal(t, "is required", details["reason"])
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(v string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("orderId", v)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("nope"), "orderId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseUUIDParam(withParam(""), "orderId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParsePagination(t *testing.T) {
	p, err := ParsePagination(httptest.NewRequest(http.MethodGet, "/?cursor=+abc+", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: pagination.DefaultLimit, Cursor: "abc"}, p)

	p, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=10", nil))
	require.NoError(t, err)
	assert.Equal(t, 10, p.Limit)

	for _, q := range []string{"limit=0", "limit=101", "limit=ten"} {
		_, err := ParsePagination(httptest.NewRequest(http.MethodGet, "/?"+q, nil))
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), q)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 0))
	assert.Equal(t, "hel", SanitizeString("hello", 3))
	assert.Equal(t, "héé", SanitizeString("héééé", 3))
	assert.Equal(t, "ab", SanitizeString("ab c", 3))
}
