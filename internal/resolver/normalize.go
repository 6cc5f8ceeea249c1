// Package resolver implements the vendor name resolution engine.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/vendor-lens/internal/common"
	"github.com/Veraticus/vendor-lens/internal/model"
)

// boilerplateTokens are processor artifacts that carry no information
// about the merchant. Matched against whole lower-cased tokens.
var boilerplateTokens = map[string]bool{
	"pos":        true,
	"debit":      true,
	"credit":     true,
	"ach":        true,
	"web":        true,
	"pmt":        true,
	"payment":    true,
	"purchase":   true,
	"checkcard":  true,
	"visa":       true,
	"mastercard": true,
	"tst":        true,
	"sq":         true,
	"pending":    true,
	"recurring":  true,
}

var (
	numericToken   = regexp.MustCompile(`^[0-9]{3,}$`)
	storeNumber    = regexp.MustCompile(`^#[0-9]+$`)
	collapseSpaces = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes raw vendor text into a lookup key: trim,
// case-fold, strip processor boilerplate, collapse whitespace.
// Returns common.ErrInvalidInput for empty or oversized input.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: vendor text is empty", common.ErrInvalidInput)
	}
	if len(trimmed) > model.MaxVendorTextLength {
		return "", fmt.Errorf("%w: vendor text exceeds %d characters", common.ErrInvalidInput, model.MaxVendorTextLength)
	}

	lowered := strings.ToLower(collapseSpaces.ReplaceAllString(trimmed, " "))

	kept := make([]string, 0, 8)
	for _, token := range strings.Split(lowered, " ") {
		// "US*1A2B3" carries a country code before the reference; keep
		// the prefix, drop the reference. A leading star ("SQ *COFFEE")
		// is pure decoration.
		token = strings.TrimLeft(token, "*")
		if idx := strings.IndexByte(token, '*'); idx > 0 {
			token = token[:idx]
		}
		token = strings.Trim(token, ".,:;")

		switch {
		case token == "":
		case boilerplateTokens[token]:
		case numericToken.MatchString(token):
		case storeNumber.MatchString(token):
		default:
			kept = append(kept, token)
		}
	}

	// Everything was boilerplate; fall back to the folded original so
	// the lookup key is never empty.
	if len(kept) == 0 {
		return lowered, nil
	}

	return strings.Join(kept, " "), nil
}
