// Package square wraps the Square SDK calls used for buyer charges and refunds.
// Every error leaving this package is a pkg/errors value.
package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/digimart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

var hosts = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

// sensitiveKeys never reach the logs with their values.
var sensitiveKeys = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"}

type Client struct {
	sdk        *sqclient.Client
	env        string
	locationID string
	logg       *logger.Logger
}

// NewClient validates cfg and builds an SDK client for its environment. A blank
// environment means sandbox.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	if env == "" {
		env = "sandbox"
	}
	host, ok := hosts[env]
	if !ok {
		return nil, fmt.Errorf("square environment %q is not sandbox or production", env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("square webhook secret is required")
	}

	c := &Client{
		sdk:        sqclient.NewClient(sqoption.WithBaseURL(host), sqoption.WithToken(token)),
		env:        env,
		locationID: strings.TrimSpace(cfg.LocationID),
		logg:       logg,
	}
	logg.Info(logg.WithField(ctx, "square_env", env), "square.ready")
	return c, nil
}

// LocationID is the Square location charges are created against.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

func (c *Client) CreatePayment(ctx context.Context, p PaymentCreateParams) (*PaymentSnapshot, error) {
	req := p.toSquareRequest(idempotencyKey("payment", p.IdempotencyKey))
	return call(ctx, c, "create_payment", map[string]any{
		"location_id":  p.LocationID,
		"reference_id": p.ReferenceID,
		"amount":       p.AmountMinor,
		"source_token": p.SourceID,
	}, func(ctx context.Context) (any, error) {
		return c.sdk.Payments.Create(ctx, req)
	}, decodePayment, paymentFields)
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentSnapshot, error) {
	return call(ctx, c, "get_payment", map[string]any{"payment_id": paymentID}, func(ctx context.Context) (any, error) {
		return c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	}, decodePayment, paymentFields)
}

func (c *Client) RefundPayment(ctx context.Context, p RefundParams) (*RefundSnapshot, error) {
	req := p.toSquareRequest(idempotencyKey("refund", p.IdempotencyKey))
	return call(ctx, c, "refund_payment", map[string]any{
		"payment_id": p.PaymentID,
		"amount":     p.AmountMinor,
	}, func(ctx context.Context) (any, error) {
		return c.sdk.Refunds.RefundPayment(ctx, req)
	}, decodeRefund, refundFields)
}

func (c *Client) GetRefund(ctx context.Context, refundID string) (*RefundSnapshot, error) {
	return call(ctx, c, "get_refund", map[string]any{"refund_id": refundID}, func(ctx context.Context) (any, error) {
		return c.sdk.Refunds.Get(ctx, &sq.GetRefundsRequest{RefundID: refundID})
	}, decodeRefund, refundFields)
}

// FindPaymentByReference scans the location's payments created around since for the
// one whose reference_id matches. The Payments API cannot filter on reference_id, so
// the scan is bounded by paymentWindow. A nil snapshot means no payment was found.
func (c *Client) FindPaymentByReference(ctx context.Context, referenceID string, since time.Time) (*PaymentSnapshot, error) {
	const op = "list_payments"
	req := paymentSearchRequest(c.locationID, since)
	c.trace(ctx, op, "request", map[string]any{"reference_id": referenceID, "begin_time": *req.BeginTime, "end_time": *req.EndTime})

	page, err := c.sdk.Payments.List(ctx, req)
	if err != nil {
		return nil, classify(err, op)
	}
	iter := page.Iterator()
	for iter.Next(ctx) {
		payment := iter.Current()
		if payment == nil || payment.ReferenceID == nil || *payment.ReferenceID != referenceID {
			continue
		}
		var snap PaymentSnapshot
		if err := roundTrip(payment, &snap); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode square "+op)
		}
		c.trace(ctx, op, "response", paymentFields(&snap))
		return &snap, nil
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err, op)
	}
	c.trace(ctx, op, "response", map[string]any{"reference_id": referenceID, "found": false})
	return nil, nil
}

func paymentFields(p *PaymentSnapshot) map[string]any {
	return map[string]any{"payment_id": p.ID, "status": p.Status}
}

func refundFields(r *RefundSnapshot) map[string]any {
	return map[string]any{"refund_id": r.ID, "status": r.Status}
}

// call sends one SDK request, logs both legs, and maps failures to pkg/errors codes.
func call[S any](
	ctx context.Context,
	c *Client,
	op string,
	reqFields map[string]any,
	send func(context.Context) (any, error),
	decode func(any) (S, error),
	respFields func(S) map[string]any,
) (S, error) {
	var zero S
	c.trace(ctx, op, "request", reqFields)

	resp, err := send(ctx)
	if err != nil {
		mapped := classify(err, op)
		if c.logg != nil {
			c.logg.Error(c.logg.WithField(ctx, "operation", op), "square.call_failed", mapped)
		}
		return zero, mapped
	}
	snap, err := decode(resp)
	if err != nil {
		return zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode square "+op)
	}
	c.trace(ctx, op, "response", respFields(snap))
	return snap, nil
}

func (c *Client) trace(ctx context.Context, op, phase string, fields map[string]any) {
	if c == nil || c.logg == nil {
		return
	}
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = redact(k, v)
	}
	out["operation"], out["phase"] = op, phase
	c.logg.Debug(c.logg.WithFields(ctx, out), "square."+phase)
}

// idempotencyKey keeps a caller key and otherwise mints a random one under prefix.
func idempotencyKey(prefix, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "dm"
	}
	return prefix + "-" + uuid.NewString()
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return "[REDACTED]"
		}
	}
	return value
}

// classify maps an SDK error to a pkg/errors code. Square error bodies can
// override the HTTP status: a reused idempotency key or an auth failure wins.
func classify(err error, op string) error {
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	code := codeForStatus(apiErr.StatusCode)
	for _, e := range errorBody(apiErr) {
		if e == nil {
			continue
		}
		if e.Code == sq.ErrorCodeIdempotencyKeyReused {
			code = pkgerrors.CodeIdempotency
			break
		}
		if e.Category == sq.ErrorCategoryAuthenticationError {
			code = pkgerrors.CodeUnauthorized
			break
		}
	}
	return pkgerrors.Wrap(code, err, msg)
}

func errorBody(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &body) != nil {
		return nil
	}
	return body.Errors
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}
