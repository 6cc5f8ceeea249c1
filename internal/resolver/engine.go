package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/vendor-lens/internal/common"
	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/service"
)

// Engine orchestrates the resolution tiers: normalized cache lookup
// against the mapping store, then the external oracle on a miss, then
// persistence of the new mapping.
type Engine struct {
	store  service.MappingStore
	oracle service.Oracle
	logger *slog.Logger

	oracleTimeout time.Duration
	maxWorkers    int
}

// Config holds configuration options for the resolution engine.
type Config struct {
	OracleTimeout time.Duration
	MaxWorkers    int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		OracleTimeout: 15 * time.Second,
		MaxWorkers:    5,
	}
}

// New creates a new resolution engine with the given dependencies.
func New(store service.MappingStore, oracle service.Oracle, logger *slog.Logger) *Engine {
	return NewWithConfig(store, oracle, logger, DefaultConfig())
}

// NewWithConfig creates a new resolution engine with custom configuration.
func NewWithConfig(store service.MappingStore, oracle service.Oracle, logger *slog.Logger, config Config) *Engine {
	if config.OracleTimeout <= 0 {
		config.OracleTimeout = 15 * time.Second
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 5
	}
	return &Engine{
		store:         store,
		oracle:        oracle,
		logger:        logger,
		oracleTimeout: config.OracleTimeout,
		maxWorkers:    config.MaxWorkers,
	}
}

// Resolve produces exactly one ResolutionResult for raw vendor text,
// persisting a new mapping when one did not already exist. An empty
// userID resolves against (and persists into) the global scope.
func (e *Engine) Resolve(ctx context.Context, userID, originalText string, rctx *model.ResolutionContext) (*model.ResolutionResult, error) {
	normalizedText, err := Normalize(originalText)
	if err != nil {
		return nil, err
	}

	// Cache lookup must precede the external call; a hit short-circuits
	// the costly path.
	existing, err := e.store.FindMapping(ctx, normalizedText, userID)
	if err == nil {
		e.logger.Debug("mapping cache hit",
			"normalized_text", normalizedText,
			"mapped_name", existing.MappedName,
			"source", existing.Source)
		return resultFromMapping(originalText, existing, true), nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("mapping lookup failed: %w", err)
	}

	octx, cancel := context.WithTimeout(ctx, e.oracleTimeout)
	defer cancel()

	response, err := e.oracle.ResolveVendor(octx, service.OracleRequest{
		NormalizedText: normalizedText,
		OriginalText:   originalText,
		Context:        rctx,
	})
	if err != nil {
		// Not retried here: nothing was persisted, so the caller can
		// safely retry from the cache lookup.
		return nil, fmt.Errorf("%w: %v", common.ErrResolutionFailed, err)
	}

	candidate := &model.VendorMapping{
		NormalizedText: normalizedText,
		OriginalText:   originalText,
		MappedName:     truncateName(response.Name),
		Confidence:     model.ClampConfidence(response.Confidence),
		Source:         response.Source,
		UserID:         userID,
	}

	created, err := e.store.CreateMapping(ctx, candidate)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			return e.resolveConflict(ctx, userID, originalText, normalizedText, candidate, response)
		}
		return nil, fmt.Errorf("failed to persist mapping: %w", err)
	}

	e.logger.Info("vendor resolved",
		"normalized_text", normalizedText,
		"mapped_name", created.MappedName,
		"confidence", created.Confidence,
		"source", created.Source,
		"band", model.ClassifyConfidence(created.Confidence))

	result := resultFromMapping(originalText, created, false)
	result.Reasoning = response.Reasoning
	result.Sources = response.Sources
	return result, nil
}

// resolveConflict handles a concurrent duplicate create: the insert
// conflict means another caller won the race, so re-read the stored row
// and treat it as a cache hit. The stored row is never overwritten; the
// merge decides only which result to report.
func (e *Engine) resolveConflict(ctx context.Context, userID, originalText, normalizedText string, candidate *model.VendorMapping, response service.OracleResponse) (*model.ResolutionResult, error) {
	existing, err := e.store.FindMapping(ctx, normalizedText, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read mapping after conflict: %w", err)
	}

	e.logger.Debug("concurrent mapping create detected",
		"normalized_text", normalizedText,
		"stored_name", existing.MappedName)

	winner := model.MergeMappings(existing, candidate)
	result := resultFromMapping(originalText, winner, winner == existing)
	if winner == candidate {
		result.Reasoning = response.Reasoning
		result.Sources = response.Sources
	}
	return result, nil
}

// CreateUserMapping records an explicit user correction. User input is
// authoritative: source is user and confidence is 1.0.
func (e *Engine) CreateUserMapping(ctx context.Context, userID, originalText, mappedName string) (*model.VendorMapping, error) {
	normalizedText, err := Normalize(originalText)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(mappedName) == "" || len(mappedName) > model.MaxMappedNameLength {
		return nil, fmt.Errorf("%w: mapped name must be 1-%d characters", common.ErrInvalidInput, model.MaxMappedNameLength)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user mappings require an owner", common.ErrInvalidInput)
	}

	return e.store.CreateMapping(ctx, &model.VendorMapping{
		NormalizedText: normalizedText,
		OriginalText:   originalText,
		MappedName:     strings.TrimSpace(mappedName),
		Confidence:     1.0,
		Source:         model.SourceUser,
		UserID:         userID,
	})
}

// BatchItem is a single entry in a bulk resolution request.
type BatchItem struct {
	Context      *model.ResolutionContext
	OriginalText string
}

// BatchResult aggregates the outcome of a bulk resolution.
type BatchResult struct {
	Resolved []model.ResolutionResult   `json:"resolved"`
	Failed   []model.BatchFailure       `json:"failed"`
	Stats    model.BatchResolutionStats `json:"stats"`
}

// ResolveBatch applies Resolve to each item. A single item's failure
// never aborts the batch; failed items are collected alongside the
// resolved ones and counted in the stats.
func (e *Engine) ResolveBatch(ctx context.Context, userID string, items []BatchItem) *BatchResult {
	results := make([]*model.ResolutionResult, len(items))
	failures := make([]error, len(items))

	sem := make(chan struct{}, e.maxWorkers)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, item BatchItem) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				failures[idx] = ctx.Err()
				return
			}

			result, err := e.Resolve(ctx, userID, item.OriginalText, item.Context)
			if err != nil {
				failures[idx] = err
				return
			}
			results[idx] = result
		}(i, item)
	}

	wg.Wait()

	batch := &BatchResult{
		Resolved: make([]model.ResolutionResult, 0, len(items)),
		Failed:   make([]model.BatchFailure, 0),
	}
	batch.Stats.Total = len(items)

	for i := range items {
		switch {
		case failures[i] != nil:
			batch.Failed = append(batch.Failed, model.BatchFailure{
				OriginalText: items[i].OriginalText,
				Error:        failures[i].Error(),
			})
			batch.Stats.Failed++
		case results[i] != nil:
			batch.Resolved = append(batch.Resolved, *results[i])
			batch.Stats.Resolved++
			if results[i].CacheHit {
				batch.Stats.Cached++
			} else {
				batch.Stats.AIResolved++
			}
		}
	}

	return batch
}

// resultFromMapping builds a resolution result from a stored mapping.
func resultFromMapping(originalText string, mapping *model.VendorMapping, cacheHit bool) *model.ResolutionResult {
	return &model.ResolutionResult{
		OriginalText: originalText,
		ResolvedName: mapping.MappedName,
		Confidence:   mapping.Confidence,
		Source:       mapping.Source,
		CacheHit:     cacheHit,
	}
}

// truncateName bounds an oracle-supplied name to the mapping limit.
func truncateName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > model.MaxMappedNameLength {
		return name[:model.MaxMappedNameLength]
	}
	return name
}
