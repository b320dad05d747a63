package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotConfigured     = errors.New("pubsub orders topic and analytics subscription are both empty")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client wraps the Pub/Sub v2 client for the order events topic and the
// analytics subscription.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects and checks that every configured topic and subscription
// exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, projectID, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, projectID: projectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":        c.cfg.OrdersTopic,
			"subscription": c.cfg.AnalyticsSubscription,
		}), "pubsub resources verified")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping looks up the configured topic and subscription.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	topic := c.resourceName("topics", c.cfg.OrdersTopic)
	sub := c.resourceName("subscriptions", c.cfg.AnalyticsSubscription)
	if topic == "" && sub == "" {
		return errNotConfigured
	}
	if topic != "" {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
		if err != nil {
			return lookupError("topic", topic, err)
		}
	}
	if sub != "" {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: sub})
		if err != nil {
			return lookupError("subscription", sub, err)
		}
	}
	return nil
}

// Subscription accepts a short id or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	full := c.resourceName("subscriptions", name)
	if full == "" || c.client == nil {
		return nil
	}
	return c.client.Subscriber(full)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher accepts a short id or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	full := c.resourceName("topics", name)
	if full == "" || c.client == nil {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.cfg.OrdersTopic)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an id into projects/<p>/<collection>/<id>. Names that
// are already fully qualified pass through.
func (c *Client) resourceName(collection, name string) string {
	if c == nil {
		return ""
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + collection + "/" + name
}

func lookupError(kind, name string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
