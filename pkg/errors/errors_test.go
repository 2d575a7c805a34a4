package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		retryable bool
		detailed  bool
		kind      Kind
	}{
		{CodeValidation, http.StatusBadRequest, false, true, KindValidation},
		{CodeUnauthorized, http.StatusUnauthorized, false, false, KindAccess},
		{CodeNotFound, http.StatusNotFound, false, false, KindValidation},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true, KindConflict},
		{CodeInsufficient, http.StatusConflict, false, true, KindConflict},
		{CodeRateLimit, http.StatusTooManyRequests, false, false, KindAccess},
		{CodeInternal, http.StatusInternalServerError, true, false, KindInternal},
		{CodeDependency, http.StatusServiceUnavailable, true, true, KindExternal},
		{CodeGateway, http.StatusBadGateway, true, true, KindExternal},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			meta := MetadataFor(tc.code)
			assert.Equal(t, tc.status, meta.HTTPStatus)
			assert.Equal(t, tc.retryable, meta.Retryable)
			assert.Equal(t, tc.detailed, meta.DetailsAllowed)
			assert.Equal(t, tc.kind, meta.Kind)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}
}

func TestEveryCodeHasMetadata(t *testing.T) {
	for _, code := range []Code{
		CodeValidation, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeConflict, CodeStateConflict,
		CodeInsufficient, CodeIdempotency, CodeRateLimit, CodeInternal, CodeDependency, CodeGateway,
	} {
		_, ok := metadataByCode[code]
		assert.True(t, ok, code)
	}
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "reserve stock")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Equal(t, "CONFLICT: reserve stock: boom", wrapped.Error())
	assert.Equal(t, "VALIDATION_ERROR: missing", Wrap(CodeValidation, nil, "missing").Error())
}

func TestDetails(t *testing.T) {
	err := New(CodeValidation, "missing foo")
	assert.Nil(t, err.Details())
	err.WithDetails(map[string]any{"field": "foo"})
	assert.Equal(t, map[string]any{"field": "foo"}, err.Details())

	field := FieldError("items", "cart is empty")
	assert.Equal(t, CodeValidation, field.Code())
	assert.Equal(t, map[string]string{"items": "cart is empty"}, field.Details())
}

func TestNilReceiver(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Empty(t, e.Error())
	assert.Nil(t, e.WithDetails("x"))
}

func TestChainHelpers(t *testing.T) {
	outer := fmt.Errorf("payout: %w", New(CodeGateway, "transfer failed"))
	require.NotNil(t, As(outer))
	assert.Nil(t, As(nil))
	assert.True(t, IsCode(outer, CodeGateway))
	assert.False(t, IsCode(outer, CodeConflict))
	assert.Equal(t, KindExternal, KindOf(outer))
	assert.Equal(t, KindInternal, KindOf(stdErrors.New("plain")))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(stdErrors.New("connection reset")))
	assert.True(t, Retryable(fmt.Errorf("write: %w", New(CodeDependency, "bigquery down"))))
	assert.False(t, Retryable(Wrap(CodeValidation, stdErrors.New("bad json"), "decode payload")))
}
