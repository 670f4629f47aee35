// Package bybit reads public market data from the Bybit v5 API.
package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/strategy-lab/internal/safety"
)

// Client wraps the Bybit API client with additional functionality
type Client struct {
	httpClient *bybit_api.Client
	category   string
	testnet    bool
	limiter    *safety.RateLimiter
	log        zerolog.Logger
}

// Config holds the configuration for the Bybit client. Keys are optional for
// market data.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	// Category is "spot", "linear" or "inverse"; empty means linear.
	Category string
	// RequestsPerSecond throttles outgoing calls; 0 means 10.
	RequestsPerSecond int
}

// NewClient creates a new Bybit client
func NewClient(config Config, log zerolog.Logger) *Client {
	baseURL := bybit_api.MAINNET
	if config.Testnet {
		baseURL = bybit_api.TESTNET
	}
	category := config.Category
	if category == "" {
		category = "linear"
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient: httpClient,
		category:   category,
		testnet:    config.Testnet,
		limiter:    safety.NewRateLimiter("bybit", rps, rps),
		log:        log.With().Str("component", "bybit").Str("category", category).Logger(),
	}
}

func (c *Client) Category() string {
	return c.category
}

// GetEnvironment returns "testnet" or "mainnet".
func (c *Client) GetEnvironment() string {
	if c.testnet {
		return "testnet"
	}
	return "mainnet"
}
