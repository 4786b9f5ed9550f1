// Package alpaca provides client functionality for an Alpaca-compatible
// brokerage REST API.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
)

// Client for the brokerage REST API. Every call is bounded by the configured
// timeout; failures are wrapped in domain.ErrUpstreamUnavailable so the
// return-calculation chain can treat them as defer signals.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new brokerage client.
// Always creates a client, even with empty credentials (the API will reject
// unauthenticated calls and the error is handled as upstream-unavailable).
func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("client", "alpaca").Logger(),
	}
}

// get performs an authenticated GET and decodes the JSON response into dest.
func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", domain.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: GET %s: status %d: %s", domain.ErrUpstreamUnavailable, path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: GET %s: decode: %v", domain.ErrUpstreamUnavailable, path, err)
	}

	return nil
}

// accountResponse is the wire shape of the account endpoint.
// Numeric fields arrive as strings.
type accountResponse struct {
	Equity         string `json:"equity"`
	Cash           string `json:"cash"`
	LastEquity     string `json:"last_equity"`
	PortfolioValue string `json:"portfolio_value"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// GetAccount returns the current account snapshot.
func (c *Client) GetAccount(ctx context.Context) (*domain.AccountSnapshot, error) {
	var raw accountResponse
	if err := c.get(ctx, "/v2/account", nil, &raw); err != nil {
		return nil, err
	}

	snapshot := &domain.AccountSnapshot{
		Equity:         c.parseAmount(raw.Equity, "equity"),
		Cash:           c.parseAmount(raw.Cash, "cash"),
		LastEquity:     c.parseAmount(raw.LastEquity, "last_equity"),
		PortfolioValue: c.parseAmount(raw.PortfolioValue, "portfolio_value"),
		Status:         raw.Status,
	}

	if raw.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
			snapshot.CreatedAt = t
		}
	}

	c.log.Debug().
		Float64("equity", snapshot.Equity).
		Float64("last_equity", snapshot.LastEquity).
		Str("status", snapshot.Status).
		Msg("Fetched account snapshot")

	return snapshot, nil
}

// parseAmount parses a string-typed numeric field, logging and returning 0 on
// failure. Missing account fields degrade the calculation quality downstream
// rather than failing the whole request.
func (c *Client) parseAmount(s, field string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.log.Warn().Str("field", field).Str("value", s).Msg("Unparseable account field, using 0")
		return 0
	}
	return v
}

// GetPositions returns raw position records for the account.
// Records are passed through unparsed: the position normalizer owns
// string-to-decimal validation.
func (c *Client) GetPositions(ctx context.Context) ([]domain.RawPosition, error) {
	var raw []domain.RawPosition
	if err := c.get(ctx, "/v2/positions", nil, &raw); err != nil {
		return nil, err
	}

	c.log.Debug().Int("positions", len(raw)).Msg("Fetched positions")
	return raw, nil
}

// activityResponse is the wire shape of an account activity record.
type activityResponse struct {
	ID              string `json:"id"`
	ActivityType    string `json:"activity_type"`
	NetAmount       string `json:"net_amount"`
	Date            string `json:"date"`
	TransactionTime string `json:"transaction_time"`
}

// GetActivities returns account activities of the given types for a single
// date (YYYY-MM-DD).
func (c *Client) GetActivities(ctx context.Context, activityTypes []string, date string) ([]domain.Activity, error) {
	query := url.Values{}
	if len(activityTypes) > 0 {
		query.Set("activity_types", strings.Join(activityTypes, ","))
	}
	if date != "" {
		query.Set("date", date)
	}

	var raw []activityResponse
	if err := c.get(ctx, "/v2/account/activities", query, &raw); err != nil {
		return nil, err
	}

	activities := make([]domain.Activity, 0, len(raw))
	for _, a := range raw {
		amount, err := strconv.ParseFloat(a.NetAmount, 64)
		if err != nil {
			c.log.Warn().Str("activity_id", a.ID).Str("net_amount", a.NetAmount).Msg("Unparseable activity amount, skipping")
			continue
		}

		activity := domain.Activity{
			ID:        a.ID,
			Type:      a.ActivityType,
			NetAmount: amount,
		}
		if a.TransactionTime != "" {
			if t, err := time.Parse(time.RFC3339, a.TransactionTime); err == nil {
				activity.Timestamp = t
			}
		} else if a.Date != "" {
			if t, err := time.Parse("2006-01-02", a.Date); err == nil {
				activity.Timestamp = t
			}
		}

		activities = append(activities, activity)
	}

	c.log.Debug().Int("activities", len(activities)).Str("date", date).Msg("Fetched account activities")
	return activities, nil
}

// historyResponse is the wire shape of the portfolio-history endpoint.
type historyResponse struct {
	ProfitLoss []float64 `json:"profit_loss"`
	BaseValue  float64   `json:"base_value"`
	Timestamps []int64   `json:"timestamp"`
}

// GetPortfolioHistory returns a short equity history window. May be empty.
func (c *Client) GetPortfolioHistory(ctx context.Context, period, timeframe string) (*domain.PortfolioHistory, error) {
	query := url.Values{}
	query.Set("period", period)
	query.Set("timeframe", timeframe)

	var raw historyResponse
	if err := c.get(ctx, "/v2/account/portfolio/history", query, &raw); err != nil {
		return nil, err
	}

	return &domain.PortfolioHistory{
		ProfitLoss: raw.ProfitLoss,
		BaseValue:  raw.BaseValue,
		Timestamps: raw.Timestamps,
	}, nil
}

// assetResponse is the wire shape of the asset metadata endpoint.
type assetResponse struct {
	Symbol   string `json:"symbol"`
	Class    string `json:"class"` // us_equity, crypto, ...
	Exchange string `json:"exchange"`
	Name     string `json:"name"`
}

// GetMetadata looks up classification metadata for a symbol.
// Unknown symbols map to OTHER/OTHER; lookup is never inferred from price action.
func (c *Client) GetMetadata(ctx context.Context, symbol string) (*domain.SymbolMetadata, error) {
	var raw assetResponse
	err := c.get(ctx, "/v2/assets/"+url.PathEscape(strings.ToUpper(symbol)), nil, &raw)
	if err != nil {
		return nil, err
	}

	meta := &domain.SymbolMetadata{
		Symbol:       strings.ToUpper(symbol),
		AssetClass:   domain.AssetClassOther,
		SecurityType: domain.SecurityTypeOther,
	}

	switch raw.Class {
	case "us_equity":
		meta.AssetClass = domain.AssetClassEquity
		meta.SecurityType = domain.SecurityTypeStock
	case "crypto":
		meta.AssetClass = domain.AssetClassAlternative
		meta.SecurityType = domain.SecurityTypeCrypto
	}

	return meta, nil
}
