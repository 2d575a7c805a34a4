package endpoint

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/digimart-backend/api/middleware"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

func quiet() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "endpoint-test", Output: &bytes.Buffer{}})
}

func serve(h http.HandlerFunc, actor *auth.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestAuthenticatedPassesActorAndWritesBody(t *testing.T) {
	actor := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	var seen auth.Actor
	h := Authenticated(true, "things service", quiet(), func(_ *http.Request, a auth.Actor) (any, error) {
		seen = a
		return map[string]string{"ok": "yes"}, nil
	})

	rec := serve(h, &actor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"ok":"yes"}}`, rec.Body.String())
	assert.Equal(t, actor, seen)
}

func TestAuthenticatedHonoursStatus(t *testing.T) {
	actor := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	h := Authenticated(true, "things service", quiet(), func(*http.Request, auth.Actor) (any, error) {
		return Created(map[string]int{"n": 1}), nil
	})
	assert.Equal(t, http.StatusCreated, serve(h, &actor).Code)
}

func TestAuthenticatedFailures(t *testing.T) {
	actor := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer}
	calls := 0
	body := func(*http.Request, auth.Actor) (any, error) {
		calls++
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "missing")
	}

	assert.Equal(t, http.StatusInternalServerError, serve(Authenticated(false, "things service", quiet(), body), &actor).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(Authenticated(true, "things service", quiet(), body), nil).Code)
	assert.Zero(t, calls)

	assert.Equal(t, http.StatusNotFound, serve(Authenticated(true, "things service", quiet(), body), &actor).Code)
	assert.Equal(t, 1, calls)

	plain := func(*http.Request, auth.Actor) (any, error) { return nil, errors.New("boom") }
	assert.Equal(t, http.StatusInternalServerError, serve(Authenticated(true, "things service", quiet(), plain), &actor).Code)
}
