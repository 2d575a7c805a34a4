// Package endpoint adapts authenticated handler bodies to http.HandlerFunc so each
// controller only states what it reads and what it returns.
package endpoint

import (
	"net/http"

	"github.com/angelmondragon/digimart-backend/api/middleware"
	"github.com/angelmondragon/digimart-backend/api/responses"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

// Func is the body of an endpoint that runs on behalf of an authenticated actor.
type Func func(r *http.Request, actor auth.Actor) (any, error)

type statusBody struct {
	status int
	body   any
}

// WithStatus makes the endpoint answer with status instead of 200.
func WithStatus(status int, body any) any {
	return statusBody{status: status, body: body}
}

// Created is WithStatus(http.StatusCreated, body).
func Created(body any) any {
	return WithStatus(http.StatusCreated, body)
}

// Authenticated resolves the actor and runs fn. wired is false when the backing
// service was never constructed; name is used in that error.
func Authenticated(wired bool, name string, logg *logger.Logger, fn Func) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !wired {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable"))
			return
		}
		actor, err := middleware.RequireActor(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := fn(r, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if sb, ok := out.(statusBody); ok {
			responses.WriteSuccessStatus(w, sb.status, sb.body)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
