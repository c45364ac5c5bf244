// Package erp is the outbound client for the ERP service layer: document
// submission, session management, and the read-only directory lookups
// used by the field-mapping rules and the quantity reconciler.
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/domain"
)

const defaultSubmitTimeout = 30 * time.Second

// Submitter is the upstream submission port consumed by the pipeline.
// Submit creates a document; Patch modifies an existing ERP object in
// place for the document types that work that way.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, payload *domain.Payload) (int, error)
	Patch(ctx context.Context, endpoint string, payload *domain.Payload) error
}

// errorEnvelope is the service layer's error body.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// submitResponse carries the reference identifier of an accepted document.
type submitResponse struct {
	DocEntry int `json:"DocEntry"`
}

// Client talks to the ERP service layer over HTTP with a session cookie.
type Client struct {
	http    *resty.Client
	session *Session
	baseURL string
	logger  *zap.Logger
}

func NewClient(baseURL string, session *Session, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("erp base url is required")
	}
	if session == nil {
		return nil, fmt.Errorf("erp session is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &Client{http: client, session: session, baseURL: trimmed, logger: logger}, nil
}

// Submit posts a document payload to an endpoint and returns the DocEntry
// reference the ERP assigned. Failures come back as *SubmitError carrying
// the five-way status class.
func (c *Client) Submit(ctx context.Context, endpoint string, payload *domain.Payload) (int, error) {
	var parsed submitResponse
	resp, err := c.request(ctx, http.MethodPost, endpoint, payload, &parsed)
	if err != nil {
		return 0, err
	}
	_ = resp
	return parsed.DocEntry, nil
}

// Patch updates an existing ERP object in place.
func (c *Client) Patch(ctx context.Context, endpoint string, payload *domain.Payload) error {
	_, err := c.request(ctx, http.MethodPatch, endpoint, payload, nil)
	return err
}

func (c *Client) request(ctx context.Context, method, endpoint string, body, result any) (*resty.Response, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Cookie", fmt.Sprintf("B1SESSION=%s", token))
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, c.url(endpoint))
	if err != nil {
		return nil, classify(err)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		// Stale session: refresh once and replay the call.
		c.session.Invalidate()
		token, err = c.session.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.SetHeader("Cookie", fmt.Sprintf("B1SESSION=%s", token))
		resp, err = req.Execute(method, c.url(endpoint))
		if err != nil {
			return nil, classify(err)
		}
	}

	if resp.IsError() {
		return nil, c.rejection(resp)
	}
	return resp, nil
}

func (c *Client) rejection(resp *resty.Response) *SubmitError {
	message := fmt.Sprintf("rejected with status %d", resp.StatusCode())
	var envelope errorEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil && envelope.Error.Message != "" {
		message = CleanMessage(envelope.Error.Message)
	}
	return &SubmitError{Class: classFromStatus(resp.StatusCode()), Message: message}
}

func (c *Client) url(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func classFromStatus(statusCode int) domain.StatusClass {
	switch {
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return domain.ClassTimeout
	case statusCode == http.StatusBadGateway || statusCode == http.StatusServiceUnavailable:
		return domain.ClassConnection
	default:
		return domain.ClassUpstream
	}
}
