package providers

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig defines retry behavior for provider API calls
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []int // HTTP status codes that should be retried
}

// DefaultRetryConfig returns sensible retry defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		RetryableErrors: []int{429, 500, 502, 503, 504}, // Rate limit + server errors
	}
}

// RateLimiter provides rate limiting for API calls. It is safe for
// concurrent use: each caller reserves the next free slot under the lock,
// then sleeps outside it, so concurrent callers are spaced one interval
// apart instead of bursting.
type RateLimiter struct {
	mu       sync.Mutex
	nextCall time.Time
	interval time.Duration
}

// NewRateLimiter creates a rate limiter with minimum interval between calls
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	interval := time.Duration(float64(time.Second) / requestsPerSecond)
	return &RateLimiter{
		interval: interval,
	}
}

// Wait blocks until it's safe to make the next API call or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	slot := rl.nextCall
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	rl.nextCall = slot.Add(rl.interval)
	rl.mu.Unlock()

	sleepTime := time.Until(slot)
	if sleepTime <= 0 {
		return nil
	}
	log.Debug().Dur("sleep", sleepTime).Msg("Rate limiting API call")
	return sleepContext(ctx, sleepTime)
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryableHTTPClient wraps an HTTP client with retries and rate limiting
type RetryableHTTPClient struct {
	client      *http.Client
	retryConfig RetryConfig
	rateLimiter *RateLimiter
}

// NewRetryableHTTPClient creates a new HTTP client with retry logic
func NewRetryableHTTPClient(timeout time.Duration, requestsPerSecond float64) *RetryableHTTPClient {
	return &RetryableHTTPClient{
		client:      &http.Client{Timeout: timeout},
		retryConfig: DefaultRetryConfig(),
		rateLimiter: NewRateLimiter(requestsPerSecond),
	}
}

// Do executes an HTTP request with retry logic and rate limiting. Requests
// with a body must carry GetBody (http.NewRequest sets it for byte readers)
// so the body can be replayed on retry.
func (c *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		// Rate limit before making request
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, err
		}

		reqClone := req.Clone(req.Context())
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replay request body: %w", err)
			}
			reqClone.Body = body
		}

		resp, err := c.client.Do(reqClone)
		if err != nil {
			lastErr = err
			if attempt < c.retryConfig.MaxRetries {
				delay := c.calculateDelay(attempt)
				log.Warn().
					Err(err).
					Int("attempt", attempt+1).
					Int("max_retries", c.retryConfig.MaxRetries).
					Dur("delay", delay).
					Str("url", req.URL.String()).
					Msg("HTTP request failed, retrying")
				if err := sleepContext(req.Context(), delay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		// Check if status code is retryable
		if c.shouldRetry(resp.StatusCode) && attempt < c.retryConfig.MaxRetries {
			resp.Body.Close()
			delay := c.calculateDelay(attempt)
			log.Warn().
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Int("max_retries", c.retryConfig.MaxRetries).
				Dur("delay", delay).
				Str("url", req.URL.String()).
				Msg("HTTP request returned retryable error, retrying")
			if err := sleepContext(req.Context(), delay); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// shouldRetry determines if a status code should trigger a retry
func (c *RetryableHTTPClient) shouldRetry(statusCode int) bool {
	for _, code := range c.retryConfig.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

// calculateDelay calculates exponential backoff delay with jitter
func (c *RetryableHTTPClient) calculateDelay(attempt int) time.Duration {
	delay := float64(c.retryConfig.InitialDelay) * math.Pow(c.retryConfig.BackoffFactor, float64(attempt))

	// Apply jitter (±25%)
	jitter := delay * 0.25 * (2*rand.Float64() - 1)
	delay += jitter

	// Cap at max delay
	if delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}

	return time.Duration(delay)
}

// Request parameter bounds shared by all chat providers.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 32000
)

// ClampTemperature clamps a sampling temperature into the valid range.
func ClampTemperature(temp float64) float64 {
	return math.Max(math.Min(temp, MaxTemperature), MinTemperature)
}

// RequestValidator validates chat requests before they are sent
type RequestValidator struct{}

// NewRequestValidator creates a validator with shared parameter bounds
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

// ValidateChatRequest validates a chat completion request
func (v *RequestValidator) ValidateChatRequest(req ChatRequest) error {
	if len(req.Messages) == 0 {
		return ValidationError{Field: "messages", Value: "", Message: "messages cannot be empty"}
	}

	for i, m := range req.Messages {
		if m.Role == "" {
			return ValidationError{Field: "messages", Value: fmt.Sprintf("[%d]", i), Message: "message role is required"}
		}
	}

	if req.Temperature != nil {
		t := *req.Temperature
		if t < MinTemperature || t > MaxTemperature {
			return ValidationError{
				Field:   "temperature",
				Value:   fmt.Sprintf("%g", t),
				Message: fmt.Sprintf("temperature must be between %g and %g", MinTemperature, MaxTemperature),
			}
		}
	}

	if req.MaxTokens != 0 && (req.MaxTokens < MinMaxTokens || req.MaxTokens > MaxMaxTokens) {
		return ValidationError{
			Field:   "max_tokens",
			Value:   fmt.Sprintf("%d", req.MaxTokens),
			Message: fmt.Sprintf("max_tokens must be between %d and %d", MinMaxTokens, MaxMaxTokens),
		}
	}

	return nil
}
