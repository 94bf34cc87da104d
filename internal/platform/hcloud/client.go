package hcloud

import (
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// FirewallClient manages the cluster firewall through the Hetzner Cloud API.
type FirewallClient struct {
	client       *hcloud.Client
	maxRetries   int
	initialDelay time.Duration
}

// ClientOption configures a FirewallClient.
type ClientOption func(*FirewallClient)

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *FirewallClient) {
		c.client = hc
	}
}

// WithRetry sets how often locked-resource errors are retried.
func WithRetry(maxRetries int, initialDelay time.Duration) ClientOption {
	return func(c *FirewallClient) {
		c.maxRetries = maxRetries
		c.initialDelay = initialDelay
	}
}

// NewFirewallClient creates a FirewallClient authenticated with token.
func NewFirewallClient(token string, opts ...ClientOption) *FirewallClient {
	c := &FirewallClient{
		client:       hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("kubejoin", "")),
		maxRetries:   5,
		initialDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
