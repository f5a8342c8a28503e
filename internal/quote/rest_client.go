package quote

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PriceSource returns the current market price of a ticker.
type PriceSource interface {
	FetchPrice(ctx context.Context, ticker string) (float64, error)
}

// RestClient fetches prices from a quote service answering
// GET /price?ticker=SYMBOL with {"ticker": "...", "price": 123.4}.
// It implements PriceSource.
type RestClient struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	suffixes   []suffixRule
	maxRetries int
	backoff    time.Duration // first retry delay, doubled per attempt
}

// ensure RestClient implements the interface
var _ PriceSource = (*RestClient)(nil)

// NewRestClient creates a quote client.
func NewRestClient(cfg *config.Quote, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetHeader("Accept", "application/json")

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &RestClient{
		client:     client,
		logger:     logger.Named("quote"),
		limiter:    limiter,
		suffixes:   suffixRules(cfg.TickerMap),
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

type priceResponse struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
	Error  string  `json:"error,omitempty"`
}

// FetchPrice returns the latest price for ticker. Every failure wraps
// models.ErrUpstreamFetch.
func (c *RestClient) FetchPrice(ctx context.Context, ticker string) (float64, error) {
	symbol := c.normalize(ticker)

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("ticker", symbol).
		SetResult(&priceResponse{}).
		SetError(&priceResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/price", req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w: %w", ticker, models.ErrUpstreamFetch, err)
	}

	result := resp.Result().(*priceResponse)
	if result.Price <= 0 {
		return 0, fmt.Errorf("no price in response for %s: %w", ticker, models.ErrUpstreamFetch)
	}
	return result.Price, nil
}

type suffixRule struct {
	suffix      string // lower case
	replacement string
}

// suffixRules orders the ticker map longest suffix first, so overlapping
// suffixes always resolve to the most specific one.
func suffixRules(m map[string]string) []suffixRule {
	rules := make([]suffixRule, 0, len(m))
	for suffix, replacement := range m {
		if suffix == "" {
			continue
		}
		rules = append(rules, suffixRule{suffix: strings.ToLower(suffix), replacement: replacement})
	}
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].suffix) != len(rules[j].suffix) {
			return len(rules[i].suffix) > len(rules[j].suffix)
		}
		return rules[i].suffix < rules[j].suffix
	})
	return rules
}

// normalize applies the configured suffix remapping, e.g. "7203.T" with
// {".t": ":TYO"} becomes "7203:TYO". Suffixes are compared
// case-insensitively because viper lower-cases map keys.
func (c *RestClient) normalize(ticker string) string {
	lower := strings.ToLower(ticker)
	for _, rule := range c.suffixes {
		if strings.HasSuffix(lower, rule.suffix) {
			return ticker[:len(ticker)-len(rule.suffix)] + rule.replacement
		}
	}
	return ticker
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err == nil && resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
			err = fmt.Errorf("request failed with status %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
		} else {
			// Network errors, timeouts
			shouldRetry = ctx.Err() == nil
		}

		if !shouldRetry || i == c.maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed: %w", err)
}
