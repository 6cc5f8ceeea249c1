package oracle

import (
	"fmt"

	"github.com/Veraticus/vendor-lens/internal/service"
)

// buildPrompt creates the prompt for vendor name resolution.
func buildPrompt(req service.OracleRequest) string {
	details := fmt.Sprintf("Statement text: %s", req.OriginalText)
	if req.NormalizedText != req.OriginalText {
		details += fmt.Sprintf("\nNormalized: %s", req.NormalizedText)
	}

	if ctx := req.Context; !ctx.Empty() {
		if ctx.Amount != 0 {
			details += fmt.Sprintf("\nAmount: $%.2f", ctx.Amount)
		}
		if ctx.Date != "" {
			details += fmt.Sprintf("\nDate: %s", ctx.Date)
		}
		if ctx.BankName != "" {
			details += fmt.Sprintf("\nBank: %s", ctx.BankName)
		}
	}

	return fmt.Sprintf(`Identify the real-world merchant behind this bank statement line.

IMPORTANT GUIDELINES:
- Statement text is noisy: point-of-sale prefixes, store numbers, and
  processor reference codes are not part of the merchant's name
- Return the merchant's canonical, human-readable name (e.g. "Amazon",
  not "AMZN MKTPLACE")
- Do not guess a specific franchise location or append city names
- If the text could be several unrelated merchants, pick the most
  likely one and lower your confidence accordingly

%s

Respond with ONLY a JSON object in this exact format:
{"name": "<canonical merchant name>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`,
		details)
}
