// Package okx implements the exchange gateway against the OKX v5 REST API.
package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/alpha-arena/internal/exchange"
)

const defaultBaseURL = "https://www.okx.com"

// Config holds OKX client configuration
type Config struct {
	APIKey      string
	APISecret   string
	Passphrase  string
	BaseURL     string
	IsDemo      bool
	RateLimitMs int
}

// Client talks to the OKX v5 REST API
type Client struct {
	http    *resty.Client
	cfg     Config
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time
}

// apiResponse is the OKX v5 envelope
type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// NewClient creates a new OKX REST client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RateLimitMs <= 0 {
		cfg.RateLimitMs = 250
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Duration(cfg.RateLimitMs)*time.Millisecond), 1),
		log:     log.With().Str("client", "okx").Logger(),
		now:     time.Now,
	}
}

// RateLimitMs returns the suggested inter-page sleep in milliseconds
func (c *Client) RateLimitMs() int {
	return c.cfg.RateLimitMs
}

// sign produces the OK-ACCESS-SIGN header value
func (c *Client) sign(timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// request performs one API call with rate limiting and retries on
// transient failures (429 and 5xx)
func (c *Client) request(ctx context.Context, method, path string, query map[string]string, body interface{}, signed bool) (*apiResponse, error) {
	bo := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, retryable, err := c.do(ctx, method, path, query, body, signed)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}

		d := bo.Duration()
		c.log.Warn().Err(err).Str("path", path).Dur("backoff", d).Msg("Retrying request")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body interface{}, signed bool) (*apiResponse, bool, error) {
	req := c.http.R().SetContext(ctx)

	requestPath := path
	if len(query) > 0 {
		req.SetQueryParams(query)
		requestPath = path + "?" + encodeQuery(query)
	}

	bodyStr := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyStr = string(raw)
		req.SetBody(raw)
	}

	if signed {
		timestamp := c.now().UTC().Format("2006-01-02T15:04:05.000Z")
		req.SetHeaders(map[string]string{
			"OK-ACCESS-KEY":        c.cfg.APIKey,
			"OK-ACCESS-SIGN":       c.sign(timestamp, method, requestPath, bodyStr),
			"OK-ACCESS-TIMESTAMP":  timestamp,
			"OK-ACCESS-PASSPHRASE": c.cfg.Passphrase,
		})
	}
	if c.cfg.IsDemo {
		req.SetHeader("x-simulated-trading", "1")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status == http.StatusTooManyRequests || status >= 500 {
		return nil, true, fmt.Errorf("http status %d: %s", status, resp.String())
	}
	if status != http.StatusOK {
		return nil, false, fmt.Errorf("http status %d: %s", status, resp.String())
	}

	var result apiResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, false, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Code != "0" {
		// batch endpoints report the real cause per item
		var items []struct {
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		}
		if json.Unmarshal(result.Data, &items) == nil && len(items) > 0 && items[0].SCode != "" && items[0].SCode != "0" {
			return nil, false, &exchange.Error{Code: items[0].SCode, Message: items[0].SMsg}
		}
		return nil, false, &exchange.Error{Code: result.Code, Message: result.Msg}
	}
	return &result, false, nil
}

// encodeQuery builds the canonical query string used for signing. Resty
// sorts parameters the same way, so signature and request stay aligned.
func encodeQuery(query map[string]string) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+query[k])
	}
	return strings.Join(parts, "&")
}
