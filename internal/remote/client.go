package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yanisfaquir/weatherboard/internal/models"
	"github.com/yanisfaquir/weatherboard/internal/observability"
)

// Client is the contract against the generic REST data store. Each resource
// (weatherData, cities) is a collection under the base URL supporting list
// and create.
type Client interface {
	List(ctx context.Context, resource string) ([]models.WeatherRecord, error)
	Create(ctx context.Context, resource string, rec models.WeatherRecord) (models.WeatherRecord, error)
}

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrInvalidPayload   = errors.New("invalid payload")
)

// RESTClient talks to a crudcrud-style data store over HTTP.
type RESTClient struct {
	baseURL        string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewRESTClient creates a client with default retry settings (3 attempts,
// 100ms base delay, 2s cap).
func NewRESTClient(baseURL string, timeout time.Duration) (*RESTClient, error) {
	return NewRESTClientWithRetry(baseURL, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

// NewRESTClientWithRetry creates a client with explicit retry settings.
func NewRESTClientWithRetry(baseURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*RESTClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("remote base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid remote base URL: %w", err)
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &RESTClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// List fetches all records of a resource. Transient failures (5xx, 429,
// timeouts) are retried with exponential backoff and jitter; listing is
// idempotent so retries are safe.
func (c *RESTClient) List(ctx context.Context, resource string) ([]models.WeatherRecord, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.RemoteRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		records, err := c.list(ctx, resource)
		if err == nil {
			return records, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

// Create posts a new record to a resource collection and returns the stored
// record with its server-assigned id. Create is never retried: the caller's
// local fallback owns redundancy, and re-posting could duplicate the record.
func (c *RESTClient) Create(ctx context.Context, resource string, rec models.WeatherRecord) (models.WeatherRecord, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rec)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint(resource), bytes.NewReader(body))
	if err != nil {
		observability.RemoteCallsTotal.WithLabelValues(resource, "error").Inc()
		return models.WeatherRecord{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	setCorrelationHeader(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(resource, "error", start)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.WeatherRecord{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.WeatherRecord{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	c.observe(resource, statusLabel(resp.StatusCode), start)

	if err := handleErrorResponse(resp); err != nil {
		return models.WeatherRecord{}, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("read response body: %w", err)
	}
	var created models.WeatherRecord
	if err := json.Unmarshal(data, &created); err != nil {
		return models.WeatherRecord{}, fmt.Errorf("parse response: %w", err)
	}
	return created, nil
}

func (c *RESTClient) list(ctx context.Context, resource string) ([]models.WeatherRecord, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint(resource), nil)
	if err != nil {
		observability.RemoteCallsTotal.WithLabelValues(resource, "error").Inc()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	setCorrelationHeader(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(resource, "error", start)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	c.observe(resource, statusLabel(resp.StatusCode), start)

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var records []models.WeatherRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return records, nil
}

func (c *RESTClient) endpoint(resource string) string {
	return c.baseURL + "/" + url.PathEscape(resource)
}

func (c *RESTClient) observe(resource, status string, start time.Time) {
	observability.RemoteCallsTotal.WithLabelValues(resource, status).Inc()
	observability.RemoteCallDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

func (c *RESTClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}

	return false
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrResourceNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidPayload, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func setCorrelationHeader(ctx context.Context, req *http.Request) {
	if corrID := observability.CorrelationIDFrom(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
