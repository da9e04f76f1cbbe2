package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/containerd/errdefs"

	"github.com/ramonkaushik/finagent/internal/marketdata"
)

// WarningMarker prefixes every tool failure rendered as text. The model reads
// these as conversational content and adapts its answer instead of the loop
// treating the call as failed.
const WarningMarker = "⚠️"

const (
	minNewsLimit     = 1
	maxNewsLimit     = 10
	defaultNewsLimit = 5
)

// Tool is a named, schema-described capability the model may request. Run
// never returns an error: all failure modes are rendered as a short
// human-readable string prefixed with WarningMarker.
type Tool interface {
	// Param returns the tool's schema for the model API
	Param() anthropic.ToolParam

	// Run executes the tool call and returns the result text
	Run(ctx context.Context, block anthropic.ToolUseBlock) string
}

// MarketData is the slice of the market data client the tools depend on.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*marketdata.Quote, error)
	CompanyOverview(ctx context.Context, symbol string) (*marketdata.CompanyOverview, error)
	NewsSentiment(ctx context.Context, symbol string, limit int) ([]marketdata.Article, error)
}

// parseInputJSON unmarshals a tool use block's input into target
func parseInputJSON(block anthropic.ToolUseBlock, target any) error {
	return json.Unmarshal(block.Input, target)
}

// normalizeSymbol upper-cases and trims a ticker-like identifier
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// clampNewsLimit clamps an article count into [minNewsLimit, maxNewsLimit],
// applying the default when unset
func clampNewsLimit(limit int) int {
	if limit == 0 {
		return defaultNewsLimit
	}
	if limit < minNewsLimit {
		return minNewsLimit
	}
	if limit > maxNewsLimit {
		return maxNewsLimit
	}
	return limit
}

// failureText renders an upstream error as warning-marked text for the model.
// The classification lives on the error itself; no message sniffing here.
func failureText(err error, symbol string) string {
	switch {
	case errdefs.IsResourceExhausted(err):
		return fmt.Sprintf("%s The market data provider's daily request quota has been reached. Data for %s is unavailable until the quota resets.", WarningMarker, symbol)
	case errdefs.IsNotFound(err):
		return fmt.Sprintf("%s No data was found for symbol %q. It may not be a valid ticker.", WarningMarker, symbol)
	case errdefs.IsUnauthorized(err):
		return fmt.Sprintf("%s The market data service is not configured: missing API key.", WarningMarker)
	default:
		return fmt.Sprintf("%s Could not fetch data for %s: the market data service is temporarily unavailable.", WarningMarker, symbol)
	}
}

// symbolInput is the common argument payload of the quote and overview tools
type symbolInput struct {
	Symbol string `json:"symbol"`
}

// StockQuoteTool fetches a real-time quote for a ticker.
type StockQuoteTool struct {
	data MarketData
}

func NewStockQuoteTool(data MarketData) *StockQuoteTool {
	return &StockQuoteTool{data: data}
}

func (t *StockQuoteTool) Param() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        "get_stock_quote",
		Description: anthropic.String("Get the current price, change, and volume for a stock ticker symbol"),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Stock ticker symbol, e.g. AAPL",
				},
			},
			Required: []string{"symbol"},
		},
	}
}

func (t *StockQuoteTool) Run(ctx context.Context, block anthropic.ToolUseBlock) string {
	var input symbolInput
	if err := parseInputJSON(block, &input); err != nil {
		return fmt.Sprintf("%s Invalid input for get_stock_quote: %v", WarningMarker, err)
	}
	symbol := normalizeSymbol(input.Symbol)
	if symbol == "" {
		return fmt.Sprintf("%s get_stock_quote requires a ticker symbol.", WarningMarker)
	}

	quote, err := t.data.Quote(ctx, symbol)
	if err != nil {
		return failureText(err, symbol)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Quote for %s (as of %s):\n", quote.Symbol, quote.LatestTradingDay)
	fmt.Fprintf(&sb, "  Price: $%s (%s, %s)\n", quote.Price, quote.Change, quote.ChangePercent)
	fmt.Fprintf(&sb, "  Open: $%s  High: $%s  Low: $%s  Prev close: $%s\n", quote.Open, quote.High, quote.Low, quote.PreviousClose)
	fmt.Fprintf(&sb, "  Volume: %s", quote.Volume)
	return sb.String()
}

// CompanyOverviewTool fetches company fundamentals for a ticker.
type CompanyOverviewTool struct {
	data MarketData
}

func NewCompanyOverviewTool(data MarketData) *CompanyOverviewTool {
	return &CompanyOverviewTool{data: data}
}

func (t *CompanyOverviewTool) Param() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        "get_company_overview",
		Description: anthropic.String("Get company fundamentals for a stock ticker: sector, industry, market cap, P/E ratio, EPS, dividend yield, and 52-week range"),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Stock ticker symbol, e.g. MSFT",
				},
			},
			Required: []string{"symbol"},
		},
	}
}

func (t *CompanyOverviewTool) Run(ctx context.Context, block anthropic.ToolUseBlock) string {
	var input symbolInput
	if err := parseInputJSON(block, &input); err != nil {
		return fmt.Sprintf("%s Invalid input for get_company_overview: %v", WarningMarker, err)
	}
	symbol := normalizeSymbol(input.Symbol)
	if symbol == "" {
		return fmt.Sprintf("%s get_company_overview requires a ticker symbol.", WarningMarker)
	}

	overview, err := t.data.CompanyOverview(ctx, symbol)
	if err != nil {
		return failureText(err, symbol)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s) — %s / %s, listed on %s\n", overview.Name, overview.Symbol, overview.Sector, overview.Industry, overview.Exchange)
	fmt.Fprintf(&sb, "  Market cap: %s  P/E: %s  EPS: %s  Dividend yield: %s\n", overview.MarketCapitalization, overview.PERatio, overview.EPS, overview.DividendYield)
	fmt.Fprintf(&sb, "  52-week range: %s – %s  Analyst target: %s\n", overview.WeekLow52, overview.WeekHigh52, overview.AnalystTargetPrice)
	if overview.Description != "" {
		fmt.Fprintf(&sb, "  %s", overview.Description)
	}
	return sb.String()
}

// MarketNewsTool fetches recent news with sentiment for a ticker.
type MarketNewsTool struct {
	data MarketData
}

func NewMarketNewsTool(data MarketData) *MarketNewsTool {
	return &MarketNewsTool{data: data}
}

func (t *MarketNewsTool) Param() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        "get_market_news",
		Description: anthropic.String("Get recent news articles with sentiment analysis for a stock ticker"),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Stock ticker symbol, e.g. NVDA",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of articles to return, between 1 and 10 (default 5)",
				},
			},
			Required: []string{"symbol"},
		},
	}
}

func (t *MarketNewsTool) Run(ctx context.Context, block anthropic.ToolUseBlock) string {
	var input struct {
		Symbol string `json:"symbol"`
		Limit  int    `json:"limit"`
	}
	if err := parseInputJSON(block, &input); err != nil {
		return fmt.Sprintf("%s Invalid input for get_market_news: %v", WarningMarker, err)
	}
	symbol := normalizeSymbol(input.Symbol)
	if symbol == "" {
		return fmt.Sprintf("%s get_market_news requires a ticker symbol.", WarningMarker)
	}
	limit := clampNewsLimit(input.Limit)

	articles, err := t.data.NewsSentiment(ctx, symbol, limit)
	if err != nil {
		return failureText(err, symbol)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent news for %s:\n", symbol)
	for i, article := range articles {
		fmt.Fprintf(&sb, "%d. %s (%s, %s)\n", i+1, article.Title, article.Source, article.TimePublished)
		fmt.Fprintf(&sb, "   Sentiment: %s (%.2f)\n", article.SentimentLabel, article.SentimentScore)
		if article.Summary != "" {
			fmt.Fprintf(&sb, "   %s\n", article.Summary)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
