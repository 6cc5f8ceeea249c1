package model

// GroundingSource is a single piece of evidence cited by the external
// oracle for a suggested vendor name.
type GroundingSource struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet,omitempty"`
	URL         string `json:"url,omitempty"`
	PublishDate string `json:"publish_date,omitempty"`
}

// ResolutionResult is the outcome of resolving a single raw vendor
// string. It is transient: the engine persists a VendorMapping derived
// from it, never the result itself.
type ResolutionResult struct {
	OriginalText string            `json:"original_text"`
	ResolvedName string            `json:"resolved_name"`
	Source       ResolutionSource  `json:"source"`
	Reasoning    string            `json:"reasoning,omitempty"`
	Sources      []GroundingSource `json:"sources,omitempty"`
	Confidence   float64           `json:"confidence"`
	CacheHit     bool              `json:"cache_hit"`
}

// ResolutionContext carries optional hints from the caller used only to
// disambiguate raw text during external lookup. Never persisted.
type ResolutionContext struct {
	Amount   float64 `json:"amount,omitempty"`
	Date     string  `json:"date,omitempty"`
	BankName string  `json:"bank_name,omitempty"`
}

// Empty reports whether the context carries no hints.
func (c *ResolutionContext) Empty() bool {
	return c == nil || (c.Amount == 0 && c.Date == "" && c.BankName == "")
}

// BatchFailure records a single item that failed during bulk resolution.
type BatchFailure struct {
	OriginalText string `json:"original_text"`
	Error        string `json:"error"`
}

// BatchResolutionStats aggregates counters across one bulk request.
type BatchResolutionStats struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	Failed     int `json:"failed"`
	Cached     int `json:"cached"`
	AIResolved int `json:"ai_resolved"`
}
