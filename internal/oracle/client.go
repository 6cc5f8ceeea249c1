// Package oracle implements the external vendor-name resolution
// clients: LLM providers and Google Programmable Search grounding.
package oracle

import (
	"context"
	"time"

	"github.com/Veraticus/vendor-lens/internal/service"
)

// Client defines the interface for oracle providers.
type Client interface {
	// Lookup proposes a clean vendor name for the request. The returned
	// response attributes its source (llm or google).
	Lookup(ctx context.Context, req service.OracleRequest) (service.OracleResponse, error)
}

// Config holds configuration for the oracle layer.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	SearchEngineID string
	MaxRetries     int
	RetryDelay     time.Duration
	CacheTTL       time.Duration
	RateLimit      int
	Temperature    float64
	MaxTokens      int
}
