package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/digimart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client for Connect transfers to sellers.
type Client struct {
	api         *stripe.Client
	environment string
	logger      *logger.Logger
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:         api,
		environment: env,
		logger:      logg,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// TransferParams describes a Connect transfer to a seller account.
type TransferParams struct {
	Amount         int64
	Currency       string
	Destination    string
	TransferGroup  string
	IdempotencyKey string
	Description    string
}

// CreateTransfer moves funds from the platform balance to a connected account.
func (c *Client) CreateTransfer(ctx context.Context, in TransferParams) (*stripe.Transfer, error) {
	params := &stripe.TransferCreateParams{
		Amount:        stripe.Int64(in.Amount),
		Currency:      stripe.String(strings.ToLower(in.Currency)),
		Destination:   stripe.String(in.Destination),
		TransferGroup: stripe.String(in.TransferGroup),
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	c.log(ctx, "transfer request", map[string]any{"amount": in.Amount, "transfer_group": in.TransferGroup})
	transfer, err := c.api.V1Transfers.Create(ctx, params)
	if err != nil {
		return nil, c.mapStripeError(ctx, err, "create transfer")
	}
	c.log(ctx, "transfer response", map[string]any{"transfer_id": transfer.ID, "transfer_group": in.TransferGroup})
	return transfer, nil
}

// ListTransfersByGroup returns every transfer tagged with group.
func (c *Client) ListTransfersByGroup(ctx context.Context, group string) ([]*stripe.Transfer, error) {
	params := &stripe.TransferListParams{TransferGroup: stripe.String(group)}
	var out []*stripe.Transfer
	for transfer, err := range c.api.V1Transfers.List(ctx, params) {
		if err != nil {
			return nil, c.mapStripeError(ctx, err, "list transfers")
		}
		out = append(out, transfer)
	}
	return out, nil
}

func (c *Client) log(ctx context.Context, msg string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(c.logger.WithFields(ctx, fields), "stripe "+msg)
}

// mapStripeError keeps 4xx responses definitive and treats everything else as a
// dependency failure whose outcome is unknown.
func (c *Client) mapStripeError(ctx context.Context, err error, op string) error {
	if c.logger != nil {
		c.logger.Error(ctx, "stripe "+op, err)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
			return pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, fmt.Sprintf("stripe %s failed", op))
		case stripeErr.HTTPStatusCode == http.StatusConflict:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, fmt.Sprintf("stripe %s failed", op))
		case stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500:
			return pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("stripe %s rejected", op)).
				WithDetails(map[string]any{"stripe_code": string(stripeErr.Code), "definitive": true})
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
