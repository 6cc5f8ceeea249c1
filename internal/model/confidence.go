package model

// ConfidenceBand buckets a confidence score for display and for
// deciding how much trust to place in an automated suggestion.
type ConfidenceBand string

const (
	// BandHigh is a score of 0.80 or above.
	BandHigh ConfidenceBand = "high"
	// BandMedium is a score in [0.50, 0.80).
	BandMedium ConfidenceBand = "medium"
	// BandLow is a score below 0.50.
	BandLow ConfidenceBand = "low"
)

const (
	highConfidenceThreshold   = 0.80
	mediumConfidenceThreshold = 0.50
)

// ClassifyConfidence buckets a confidence score into a band.
func ClassifyConfidence(confidence float64) ConfidenceBand {
	switch {
	case confidence >= highConfidenceThreshold:
		return BandHigh
	case confidence >= mediumConfidenceThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// ClampConfidence forces a score into [0, 1]. Oracle-reported values
// are not trusted to stay in bounds.
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// sourceAuthority ranks sources for tie-breaking: explicit user input
// outranks model output, which outranks search grounding.
func sourceAuthority(s ResolutionSource) int {
	switch s {
	case SourceUser:
		return 3
	case SourceLLM:
		return 2
	case SourceGoogle:
		return 1
	default:
		return 0
	}
}

// MergeMappings decides between an existing mapping and a new candidate
// resolution. The higher-confidence result wins; ties prefer the more
// authoritative source. A user-sourced mapping is never displaced by a
// lower-authority candidate regardless of confidence.
func MergeMappings(existing, candidate *VendorMapping) *VendorMapping {
	if existing == nil {
		return candidate
	}
	if candidate == nil {
		return existing
	}
	if existing.Source == SourceUser && candidate.Source != SourceUser {
		return existing
	}
	if candidate.Confidence > existing.Confidence {
		return candidate
	}
	if candidate.Confidence == existing.Confidence &&
		sourceAuthority(candidate.Source) > sourceAuthority(existing.Source) {
		return candidate
	}
	return existing
}
