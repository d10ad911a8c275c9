package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mailit/tracking-gateway/internal/circuitbreaker"
	"github.com/mailit/tracking-gateway/internal/metrics"
)

const (
	maxRetries     = 3
	initialBackoff = 1000 * time.Millisecond
)

// doer is the transport boundary; *http.Client satisfies it and tests
// substitute a counting stub.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // connect+read timeout, default 10s
	// RequestsPerSecond paces outbound attempts against the provider's
	// own rate limits. Default 10.
	RequestsPerSecond float64
}

// Client wraps every call to the tracking provider with retry/backoff
// and a shared circuit breaker.
//
// Retry policy per call: up to 3 attempts. Client-side rejections (4xx)
// are never retried and never counted against the breaker. Server errors
// and network failures are retried with exponential backoff
// (1000ms * 2^(attempt-1)) and each occurrence counts as a breaker
// failure. Attempts are sequential; the breaker is shared across all
// concurrent callers.
type Client struct {
	http    doer
	baseURL string
	apiKey  string
	breaker *circuitbreaker.CircuitBreaker
	pacer   *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		breaker: circuitbreaker.New(circuitbreaker.Config{}),
		pacer:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(math.Ceil(cfg.RequestsPerSecond))),
		sleep:   sleepCtx,
	}
}

// Breaker exposes breaker metrics for the health endpoint.
func (c *Client) Breaker() circuitbreaker.Metrics {
	return c.breaker.Metrics()
}

// CreateBatch registers shipments with the provider. The provider
// expects a bare array body and partitions results into success/error
// lists, which the caller reconciles.
func (c *Client) CreateBatch(ctx context.Context, shipments []Shipment) (*BatchData, error) {
	payload, err := json.Marshal(shipments)
	if err != nil {
		return nil, fmt.Errorf("marshal batch body: %w", err)
	}

	resp, err := c.execute(ctx, "create_batch", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/trackings/batch", bytes.NewReader(payload))
	})
	if err != nil {
		return nil, err
	}

	var data BatchData
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return nil, fmt.Errorf("decode batch response: %w", err)
		}
	}
	return &data, nil
}

// GetTracking fetches the latest provider state for one tracking
// number. Returns nil when the provider has no record.
func (c *Client) GetTracking(ctx context.Context, trackingNumber string) (*TrackingItem, error) {
	items, err := c.GetBatch(ctx, []string{trackingNumber})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// GetBatch fetches provider state for multiple tracking numbers in one
// call.
func (c *Client) GetBatch(ctx context.Context, trackingNumbers []string) ([]TrackingItem, error) {
	numbers := strings.Join(trackingNumbers, ",")

	resp, err := c.execute(ctx, "get_trackings", func() (*http.Request, error) {
		u := c.baseURL + "/trackings/get?tracking_numbers=" + url.QueryEscape(numbers)
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}

	var items []TrackingItem
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &items); err != nil {
			return nil, fmt.Errorf("decode trackings response: %w", err)
		}
	}
	return items, nil
}

// DeleteTracking removes a tracking from the provider. A provider 404 is
// treated as success so deletion stays idempotent.
func (c *Client) DeleteTracking(ctx context.Context, courierCode, trackingNumber string) error {
	_, err := c.execute(ctx, "delete_tracking", func() (*http.Request, error) {
		u := fmt.Sprintf("%s/trackings/%s/%s", c.baseURL,
			url.PathEscape(courierCode), url.PathEscape(trackingNumber))
		return http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	})

	var reject *Error
	if errors.As(err, &reject) && reject.HTTPStatus == 404 {
		log.Printf("Tracking already deleted upstream: %s/%s", courierCode, trackingNumber)
		return nil
	}
	return err
}

// DetectCourier asks the provider for candidate couriers matching a
// tracking number.
func (c *Client) DetectCourier(ctx context.Context, trackingNumber string) ([]Courier, error) {
	payload, err := json.Marshal(map[string]string{"tracking_number": trackingNumber})
	if err != nil {
		return nil, fmt.Errorf("marshal detect body: %w", err)
	}

	resp, err := c.execute(ctx, "detect_courier", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/couriers/detect", bytes.NewReader(payload))
	})
	if err != nil {
		return nil, err
	}

	var couriers []Courier
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &couriers); err != nil {
			return nil, fmt.Errorf("decode detect response: %w", err)
		}
	}
	return couriers, nil
}

// execute runs one logical provider call under the breaker and retry
// policy. Only the final outcome surfaces; individual attempt failures
// are logged, never returned.
func (c *Client) execute(ctx context.Context, op string, build func() (*http.Request, error)) (*Response, error) {
	if err := c.breaker.Allow(); err != nil {
		var open *circuitbreaker.OpenError
		errors.As(err, &open)
		metrics.BreakerRejections.Inc()
		c.publishBreakerState()
		return nil, &UnavailableError{
			Message:    "tracking provider temporarily unavailable, circuit open",
			RetryAfter: int64(math.Ceil(open.RetryAfter.Seconds())),
			Err:        err,
		}
	}
	c.publishBreakerState()

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, &UnavailableError{Message: "upstream call canceled", Err: err}
		}

		resp, err := c.attempt(build)
		if err == nil {
			c.breaker.RecordSuccess()
			c.publishBreakerState()
			metrics.UpstreamAttempts.WithLabelValues(op, "success").Inc()
			return resp, nil
		}

		var reject *Error
		if errors.As(err, &reject) {
			// Bad request, not upstream unhealthiness: no retry, breaker
			// counter untouched.
			metrics.UpstreamAttempts.WithLabelValues(op, "client_error").Inc()
			log.Printf("Upstream %s rejected: %v", op, reject)
			return nil, reject
		}

		lastErr = err
		c.breaker.RecordFailure()
		c.publishBreakerState()
		metrics.UpstreamAttempts.WithLabelValues(op, "server_error").Inc()
		log.Printf("Upstream %s attempt %d/%d failed: %v", op, attempt, maxRetries, err)

		if attempt < maxRetries {
			backoff := initialBackoff * time.Duration(1<<(attempt-1))
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, &UnavailableError{Message: "upstream call canceled", Err: err}
			}
		}
	}

	return nil, &UnavailableError{
		Message: fmt.Sprintf("tracking provider unavailable after %d attempts", maxRetries),
		Err:     lastErr,
	}
}

// attempt performs a single HTTP round trip and classifies the result.
// A returned *Error means a non-retryable client rejection; any other
// error is retryable.
func (c *Client) attempt(build func() (*http.Request, error)) (*Response, error) {
	req, err := build()
	if err != nil {
		return nil, &Error{Code: "VALIDATION_ERROR", Message: err.Error(), HTTPStatus: 400}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tracking-Api-Key", c.apiKey)

	httpResp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are upstream health signals.
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if httpResp.StatusCode >= 500 {
		return nil, fmt.Errorf("upstream returned status %d", httpResp.StatusCode)
	}

	var resp Response
	if httpResp.StatusCode >= 400 {
		// Best effort decode for the provider's message.
		_ = json.Unmarshal(body, &resp)
		return nil, mapClientError(httpResp.StatusCode, resp.Meta.Message)
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}

	// Some provider failures arrive as HTTP 200 with a non-2xx meta code.
	if !resp.Success() {
		if resp.Meta.Code >= 400 && resp.Meta.Code < 500 {
			return nil, mapClientError(resp.Meta.Code, resp.Meta.Message)
		}
		return nil, fmt.Errorf("upstream returned meta code %d: %s", resp.Meta.Code, resp.Meta.Message)
	}

	return &resp, nil
}

func (c *Client) publishBreakerState() {
	metrics.BreakerState.Set(float64(c.breaker.State()))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
