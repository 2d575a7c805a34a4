// Package pubsub wraps the Pub/Sub v2 client with the marketplace's topic and
// subscription naming and a per-topic publisher cache.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client is safe for concurrent use. Publishers are created once per topic and
// stopped by Close so their batches flush before exit.
type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string
	subs      []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and checks that every configured topic and subscription exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{
		client:     ps,
		projectID:  projectID,
		topics:     nonEmpty(cfg.OrdersTopic, cfg.PayoutsTopic, cfg.NotificationTopic, cfg.AnalyticsTopic),
		subs:       nonEmpty(cfg.OrdersSubscription, cfg.NotificationSubscription, cfg.AnalyticsSubscription),
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        len(c.topics),
			"subscriptions": len(c.subs),
		}), "pubsub.connected")
	}
	return c, nil
}

// Ping confirms the configured topics and subscriptions still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, topic := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.resource(kindTopic, topic)})
		if err := describe(kindTopic, topic, err); err != nil {
			return err
		}
	}
	for _, sub := range c.subs {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.resource(kindSubscription, sub)})
		if err := describe(kindSubscription, sub, err); err != nil {
			return err
		}
	}
	return nil
}

// Publisher returns the shared publisher for topic, or nil for a blank name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	name := c.resource(kindTopic, topic)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[name]
	if !ok {
		pub = c.client.Publisher(name)
		c.publishers[name] = pub
	}
	return pub
}

// Subscriber returns a receive handle for subscription, or nil for a blank name.
func (c *Client) Subscriber(subscription string) *pubsub.Subscriber {
	name := c.resource(kindSubscription, subscription)
	if name == "" {
		return nil
	}
	return c.client.Subscriber(name)
}

// Close flushes every publisher then releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// resource expands a bare ID into projects/<project>/<kind>/<id>. Names that
// are already fully qualified pass through.
func (c *Client) resource(kind resourceKind, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+string(kind)+"/") {
		return name
	}
	return "projects/" + c.projectID + "/" + string(kind) + "/" + name
}

func describe(kind resourceKind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub %s %q does not exist", strings.TrimSuffix(string(kind), "s"), name)
	default:
		return fmt.Errorf("check pubsub %s %q: %w", strings.TrimSuffix(string(kind), "s"), name, err)
	}
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
