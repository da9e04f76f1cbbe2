package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ramonkaushik/finagent/internal/config"
	"github.com/ramonkaushik/finagent/internal/marketdata"
	"github.com/ramonkaushik/finagent/internal/research"
	"github.com/ramonkaushik/finagent/internal/transport"
)

func setupContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup graceful shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		slog.Info("Interrupt signal detected, shutting down gracefully...")
		cancel()
		<-interrupt
		slog.Error("Forcing shutdown")
		os.Exit(1)
	}()

	return ctx
}

func createAnthropicClient(apiKey string) anthropic.Client {
	rateLimitedHTTPClient := &http.Client{
		Transport: transport.WithRateLimiting(nil),
	}
	return anthropic.NewClient(
		option.WithHTTPClient(rateLimitedHTTPClient),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(5),
	)
}

// buildAgent wires the model sender, market data client, and tool registry
// into a research agent according to cfg.
func buildAgent(cfg config.Config) *research.Agent {
	anthropicClient := createAnthropicClient(cfg.AnthropicAPIKey)
	sender := research.NewStreamingMessageSender(anthropicClient)

	data := marketdata.NewClient(cfg.AlphaVantageAPIKey)
	registry := research.NewRegistry(data)

	return research.NewAgent(sender, registry, anthropic.Model(cfg.Model),
		research.WithMaxIterations(cfg.MaxIterations),
		research.WithTimeout(cfg.RequestTimeout),
		research.WithMaxOutputTokens(cfg.MaxOutputTokens),
	)
}
