// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/vendor-lens/internal/model"
)

// MappingStore defines the contract for vendor mapping persistence.
// Implementations must enforce a uniqueness constraint on
// (normalized text, owner scope); a conflicting create returns a
// duplicate-entry error that callers recover from by re-reading.
type MappingStore interface {
	// FindMapping looks up a mapping by normalized text, preferring a
	// mapping owned by userID over a global one when both exist.
	FindMapping(ctx context.Context, normalizedText, userID string) (*model.VendorMapping, error)
	// CreateMapping inserts a new mapping row.
	CreateMapping(ctx context.Context, mapping *model.VendorMapping) (*model.VendorMapping, error)
	// GetMapping retrieves a mapping by id.
	GetMapping(ctx context.Context, id string) (*model.VendorMapping, error)
	// UpdateMapping applies a patch to a mapping owned by userID.
	UpdateMapping(ctx context.Context, id string, patch MappingPatch, userID string) (*model.VendorMapping, error)
	// DeleteMapping removes a mapping owned by userID.
	DeleteMapping(ctx context.Context, id, userID string) error
	// ListMappings returns the caller's mappings plus global mappings.
	ListMappings(ctx context.Context, userID string) ([]model.VendorMapping, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// MappingPatch is a partial update to a vendor mapping. Nil fields are
// left unchanged.
type MappingPatch struct {
	MappedName *string
	Confidence *float64
	Source     *model.ResolutionSource
}

// Empty reports whether the patch changes nothing.
func (p MappingPatch) Empty() bool {
	return p.MappedName == nil && p.Confidence == nil && p.Source == nil
}

// OracleRequest carries normalized vendor text plus optional caller
// hints to the external resolution oracle.
type OracleRequest struct {
	NormalizedText string
	OriginalText   string
	Context        *model.ResolutionContext
}

// OracleResponse is the oracle's best-effort candidate for a request.
type OracleResponse struct {
	Name       string
	Reasoning  string
	Source     model.ResolutionSource
	Sources    []model.GroundingSource
	Confidence float64
}

// Oracle is the external AI/grounding service that proposes a clean
// vendor name for unmapped text. It is fallible: no availability or
// latency guarantee is assumed by callers.
type Oracle interface {
	ResolveVendor(ctx context.Context, req OracleRequest) (OracleResponse, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
