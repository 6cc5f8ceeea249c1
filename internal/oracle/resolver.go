package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/vendor-lens/internal/common"
	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/service"
)

// Resolver implements service.Oracle on top of a provider client,
// adding rate limiting, retries, and an in-process response cache.
type Resolver struct {
	client      Client
	cache       *responseCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// NewResolver creates an oracle resolver for the configured provider.
func NewResolver(cfg Config, logger *slog.Logger) (*Resolver, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Resolver{
		client:      client,
		cache:       newResponseCache(cfg.CacheTTL),
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}, nil
}

// ResolveVendor asks the provider for a candidate vendor name.
func (r *Resolver) ResolveVendor(ctx context.Context, req service.OracleRequest) (service.OracleResponse, error) {
	if response, found := r.cache.get(req.NormalizedText); found {
		r.logger.Debug("oracle cache hit", "normalized_text", req.NormalizedText)
		return response, nil
	}

	if err := r.rateLimiter.wait(ctx); err != nil {
		return service.OracleResponse{}, fmt.Errorf("rate limit error: %w", err)
	}

	var response service.OracleResponse

	err := common.WithRetry(ctx, func() error {
		lookupResp, err := r.client.Lookup(ctx, req)
		if err != nil {
			r.logger.Warn("oracle lookup attempt failed",
				"error", err,
				"normalized_text", req.NormalizedText)
			return &common.RetryableError{Err: err, Retryable: true}
		}

		if strings.TrimSpace(lookupResp.Name) == "" {
			return &common.RetryableError{
				Err:       fmt.Errorf("oracle returned empty vendor name"),
				Retryable: true,
			}
		}
		if !lookupResp.Source.Valid() || lookupResp.Source == model.SourceUser {
			return &common.RetryableError{
				Err:       fmt.Errorf("oracle attributed invalid source %q", lookupResp.Source),
				Retryable: false,
			}
		}

		lookupResp.Confidence = model.ClampConfidence(lookupResp.Confidence)
		response = lookupResp
		return nil
	}, r.retryOpts)

	if err != nil {
		return service.OracleResponse{}, fmt.Errorf("vendor lookup failed: %w", err)
	}

	r.cache.set(req.NormalizedText, response)

	r.logger.Debug("vendor resolved by oracle",
		"normalized_text", req.NormalizedText,
		"name", response.Name,
		"confidence", response.Confidence,
		"source", response.Source)

	return response, nil
}

// Close stops background goroutines and cleans up resources.
func (r *Resolver) Close() error {
	if r.cache != nil {
		r.cache.Close()
	}
	if r.rateLimiter != nil {
		r.rateLimiter.Close()
	}
	return nil
}
