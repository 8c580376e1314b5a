package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"github.com/synaptica-ai/rwe-planner/pkg/gateway/httpclient"
)

const genericUpstreamDetail = "An error occurred while processing your request"

// ErrUpstream marks a failed call to the planning service.
var ErrUpstream = errors.New("planning service request failed")

// UpstreamError carries the planning service's status and detail message.
// StatusCode is 0 when no response was received.
type UpstreamError struct {
	StatusCode int
	Detail     string
	cause      error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("planning service unreachable: %s", e.Detail)
	}
	return fmt.Sprintf("planning service returned %d: %s", e.StatusCode, e.Detail)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *UpstreamError) Unwrap() error {
	return e.cause
}

// Client talks to the external planning service.
type Client struct {
	baseURL   string
	http      *http.Client
	attempts  int
	baseDelay time.Duration
}

type ClientOption func(*Client)

// WithRetry sets the number of attempts for transport failures. The default
// is a single attempt.
func WithRetry(attempts int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = baseDelay
	}
}

func NewClient(baseURL string, httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(30 * time.Second)
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      httpClient,
		attempts:  1,
		baseDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Plan submits a study to POST /plan_rwe_study.
func (c *Client) Plan(ctx context.Context, req models.PlanRequest) (*models.PlanResponse, error) {
	var out models.PlanResponse
	if err := c.post(ctx, "/plan_rwe_study", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuickAssess asks the planning service for a complexity-only review.
func (c *Client) QuickAssess(ctx context.Context, protocolText string) (*models.UpstreamQuickAssessment, error) {
	var out models.UpstreamQuickAssessment
	body := map[string]string{"protocol_text": protocolText}
	if err := c.post(ctx, "/quick_assessment", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := c.baseURL + path
	corrID := requestIDFrom(ctx)
	start := time.Now()

	var resp *http.Response
	err = httpclient.Retry(ctx, c.attempts, c.baseDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return httpclient.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", corrID)

		r, doErr := c.http.Do(req)
		if doErr != nil {
			if httpclient.IsRetriable(doErr) {
				return doErr
			}
			return httpclient.Permanent(doErr)
		}
		resp = r
		return nil
	})
	if err != nil {
		logger.Get().WithError(err).WithFields(map[string]interface{}{
			"url":        url,
			"request_id": corrID,
		}).Error("Planning service unreachable")
		return &UpstreamError{Detail: fmt.Sprintf("Service communication error: %v", err), cause: err}
	}
	defer resp.Body.Close()

	logger.WithFields(map[string]interface{}{
		"url":         url,
		"status":      resp.StatusCode,
		"request_id":  corrID,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Planning service responded")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{StatusCode: resp.StatusCode, Detail: genericUpstreamDetail, cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode, Detail: upstreamDetail(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &UpstreamError{StatusCode: resp.StatusCode, Detail: "malformed response from planning service", cause: err}
	}
	return nil
}

// upstreamDetail extracts {"detail": "..."} from an error body. FastAPI
// validation errors carry a list there, which is flattened.
func upstreamDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return genericUpstreamDetail
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return genericUpstreamDetail
		}
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return genericUpstreamDetail
}

type requestIDKey struct{}

// WithRequestID attaches a correlation id forwarded to the planning service.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// ClientFromConfig builds a client for PLANNER_BASE_URL, adding the
// client-credentials grant when a token URL is configured.
func ClientFromConfig(ctx context.Context, cfg *config.Config) *Client {
	httpClient := httpclient.WithClientCredentials(ctx, httpclient.New(cfg.PlannerRequestTimeout), httpclient.Credentials{
		TokenURL:     cfg.PlannerTokenURL,
		ClientID:     cfg.PlannerClientID,
		ClientSecret: cfg.PlannerClientSecret,
	})
	return NewClient(cfg.PlannerBaseURL, httpClient, WithRetry(cfg.PlannerRetryAttempts, 200*time.Millisecond))
}
