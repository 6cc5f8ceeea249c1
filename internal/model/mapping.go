// Package model defines the core domain types for vendor resolution.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ResolutionSource indicates how a vendor mapping was produced.
type ResolutionSource string

const (
	// SourceLLM indicates the mapping came from a language-model resolution.
	SourceLLM ResolutionSource = "llm"
	// SourceUser indicates the mapping was entered or corrected by a user.
	SourceUser ResolutionSource = "user"
	// SourceGoogle indicates the mapping came from search grounding.
	SourceGoogle ResolutionSource = "google"
)

// Valid reports whether s is a known resolution source.
func (s ResolutionSource) Valid() bool {
	switch s {
	case SourceLLM, SourceUser, SourceGoogle:
		return true
	}
	return false
}

// MaxMappedNameLength bounds the resolved display name.
const MaxMappedNameLength = 200

// MaxVendorTextLength bounds raw vendor text accepted for resolution.
const MaxVendorTextLength = 500

// Mapping validation errors.
var (
	ErrInvalidMapping = errors.New("invalid vendor mapping")
)

// VendorMapping binds a normalized raw-vendor string to a resolved
// display name. A mapping with an empty UserID is global: usable by all
// callers but never user-editable.
type VendorMapping struct {
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	ID             string           `json:"id"`
	NormalizedText string           `json:"normalized_text"`
	OriginalText   string           `json:"original_text"`
	MappedName     string           `json:"mapped_name"`
	UserID         string           `json:"user_id,omitempty"`
	Source         ResolutionSource `json:"source"`
	Confidence     float64          `json:"confidence"`
}

// IsGlobal reports whether the mapping has no owning user.
func (m *VendorMapping) IsGlobal() bool {
	return m.UserID == ""
}

// OwnedBy reports whether the mapping is owned by the given user.
// Global mappings are owned by nobody.
func (m *VendorMapping) OwnedBy(userID string) bool {
	return m.UserID != "" && m.UserID == userID
}

// Validate checks the mapping invariants.
func (m *VendorMapping) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mapping", ErrInvalidMapping)
	}
	if strings.TrimSpace(m.NormalizedText) == "" {
		return fmt.Errorf("%w: missing normalized text", ErrInvalidMapping)
	}
	name := strings.TrimSpace(m.MappedName)
	if name == "" {
		return fmt.Errorf("%w: missing mapped name", ErrInvalidMapping)
	}
	if len(m.MappedName) > MaxMappedNameLength {
		return fmt.Errorf("%w: mapped name exceeds %d characters", ErrInvalidMapping, MaxMappedNameLength)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidMapping)
	}
	if !m.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidMapping, m.Source)
	}
	return nil
}
