// Package notify delivers operational alerts: orchestrator step failures
// and file-discovery problems. Delivery is best effort; a failed alert is
// logged, never allowed to fail the run it reports on.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier sends one structured alert.
type Notifier interface {
	Notify(ctx context.Context, subject string, body map[string]any) error
}

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	Subject string         `json:"subject"`
	Body    map[string]any `json:"body"`
}

// WebhookNotifier posts alerts as JSON to a webhook endpoint.
type WebhookNotifier struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookNotifier(endpoint string) (*WebhookNotifier, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookNotifierWithClient(endpoint, client)
}

func NewWebhookNotifierWithClient(endpoint string, client *resty.Client) (*WebhookNotifier, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookNotifier{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (n *WebhookNotifier) Notify(ctx context.Context, subject string, body map[string]any) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("notifier is not initialized")
	}
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("subject is required")
	}

	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookRequest{Subject: subject, Body: body}).
		Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}
	return fmt.Errorf("notification endpoint returned status %d", statusCode)
}

// NopNotifier drops every alert. Used when no endpoint is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, map[string]any) error { return nil }
