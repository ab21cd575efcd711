package mudrex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"feeflow/config"
	"feeflow/logger"
	"feeflow/models"
	"feeflow/reader"
)

// Client talks to the Mudrex Futures trading API over REST and implements
// reader.HistorySource. Timeouts and rate limiting live here; the engine
// above has neither.
type Client struct {
	httpClient *http.Client
	baseURL    string
	orderPath  string
	feePath    string
	limiter    *rate.Limiter
	log        *logger.Log
}

func NewClient(cfg config.MudrexSourceConfig, apiSecret string) *Client {
	transport := &http.Transport{
		MaxIdleConns:    cfg.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost: cfg.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout: cfg.ConnectionPool.IdleConnTimeout,
	}

	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: authTransport{secret: apiSecret, agent: cfg.UserAgent, base: transport},
			Timeout:   cfg.Timeout,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		orderPath: cfg.OrderHistoryPath,
		feePath:   cfg.FeeHistoryPath,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst),
		log:       logger.GetLogger(),
	}

	c.log.WithComponent("mudrex_client").WithFields(logger.Fields{
		"base_url": c.baseURL,
		"timeout":  cfg.Timeout,
	}).Debug("mudrex client initialized")

	return c
}

// FetchOrderPage requests one page of futures order history. The decoded
// body is returned as-is; envelope shape tolerance lives in the reader.
func (c *Client) FetchOrderPage(ctx context.Context, page, pageSize int) (models.Envelope, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(pageSize))

	var env models.Envelope
	if err := c.getJSON(ctx, c.orderPath, params, &env); err != nil {
		return nil, err
	}
	return env, nil
}

// FetchFeeHistory requests the fee-history feed. limit <= 0 leaves the
// server default; symbol is optional.
func (c *Client) FetchFeeHistory(ctx context.Context, limit int, symbol string) ([]models.RawRecord, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	var env models.Envelope
	if err := c.getJSON(ctx, c.feePath, params, &env); err != nil {
		return nil, err
	}
	records, _ := reader.Flatten(env)
	return records, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out *models.Envelope) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
