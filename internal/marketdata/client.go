// Package marketdata provides a client for the Alpha Vantage market data API.
//
// Alpha Vantage signals most failures in-band: a 200 response whose body
// carries a "Note" or "Information" field means the daily request quota is
// exhausted, and an unrecognized symbol produces an empty payload rather than
// a non-200 status. The client normalizes all of these into errors classified
// with errdefs sentinels so callers can branch on the failure kind instead of
// inspecting message text.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/ramonkaushik/finagent/internal/transport"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// maxResponseBytes caps how much of an upstream response is read (1MB).
const maxResponseBytes = 1 << 20

// Client calls the Alpha Vantage query API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, primarily for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a new Alpha Vantage client. The API key may be empty;
// calls made without one fail with an unauthenticated error.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Transport: transport.WithRateLimiting(nil),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote is a real-time global quote for a single symbol.
type Quote struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
	Change           string `json:"09. change"`
	ChangePercent    string `json:"10. change percent"`
}

// CompanyOverview is the fundamental data summary for a company.
type CompanyOverview struct {
	Symbol               string `json:"Symbol"`
	Name                 string `json:"Name"`
	Description          string `json:"Description"`
	Exchange             string `json:"Exchange"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
	PERatio              string `json:"PERatio"`
	EPS                  string `json:"EPS"`
	DividendYield        string `json:"DividendYield"`
	WeekHigh52           string `json:"52WeekHigh"`
	WeekLow52            string `json:"52WeekLow"`
	AnalystTargetPrice   string `json:"AnalystTargetPrice"`
}

// Article is one entry of a news and sentiment feed.
type Article struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	TimePublished  string  `json:"time_published"`
	Summary        string  `json:"summary"`
	Source         string  `json:"source"`
	SentimentScore float64 `json:"overall_sentiment_score"`
	SentimentLabel string  `json:"overall_sentiment_label"`
}

// envelope captures the in-band failure fields Alpha Vantage mixes into
// otherwise-successful responses.
type envelope struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// Quote fetches a real-time quote for the given symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := c.query(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		GlobalQuote Quote `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to parse quote response: %v", errdefs.ErrUnavailable, err)
	}
	if payload.GlobalQuote.Symbol == "" {
		return nil, fmt.Errorf("%w: no quote data for symbol %q", errdefs.ErrNotFound, symbol)
	}
	return &payload.GlobalQuote, nil
}

// CompanyOverview fetches fundamental data for the given symbol.
func (c *Client) CompanyOverview(ctx context.Context, symbol string) (*CompanyOverview, error) {
	body, err := c.query(ctx, url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	var overview CompanyOverview
	if err := json.Unmarshal(body, &overview); err != nil {
		return nil, fmt.Errorf("%w: failed to parse overview response: %v", errdefs.ErrUnavailable, err)
	}
	// An unknown symbol yields an empty object rather than an error status
	if overview.Symbol == "" {
		return nil, fmt.Errorf("%w: no company overview for symbol %q", errdefs.ErrNotFound, symbol)
	}
	return &overview, nil
}

// NewsSentiment fetches up to limit recent news articles with sentiment for
// the given symbol.
func (c *Client) NewsSentiment(ctx context.Context, symbol string, limit int) ([]Article, error) {
	body, err := c.query(ctx, url.Values{
		"function": {"NEWS_SENTIMENT"},
		"tickers":  {symbol},
		"sort":     {"LATEST"},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Feed []Article `json:"feed"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to parse news response: %v", errdefs.ErrUnavailable, err)
	}
	if len(payload.Feed) == 0 {
		return nil, fmt.Errorf("%w: no news found for symbol %q", errdefs.ErrNotFound, symbol)
	}
	if limit > 0 && len(payload.Feed) > limit {
		payload.Feed = payload.Feed[:limit]
	}
	return payload.Feed, nil
}

// query performs a GET against the query endpoint and screens the response
// for Alpha Vantage's in-band failure signals before returning the raw body.
func (c *Client) query(ctx context.Context, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: ALPHA_VANTAGE_API_KEY is not set", errdefs.ErrUnauthenticated)
	}
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", errdefs.ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", errdefs.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from alpha vantage", errdefs.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", errdefs.ErrUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed response from alpha vantage: %v", errdefs.ErrUnavailable, err)
	}
	if env.Note != "" || env.Information != "" {
		// Free-tier quota exhaustion arrives as a 200 with an advisory note
		return nil, fmt.Errorf("%w: alpha vantage daily request quota reached", errdefs.ErrResourceExhausted)
	}
	if env.ErrorMessage != "" {
		if symbol := params.Get("symbol"); symbol != "" {
			return nil, fmt.Errorf("%w: symbol %q not recognized", errdefs.ErrNotFound, symbol)
		}
		return nil, fmt.Errorf("%w: invalid alpha vantage request: %s", errdefs.ErrInvalidArgument, strings.TrimSpace(env.ErrorMessage))
	}
	return body, nil
}
