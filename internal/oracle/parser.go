package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/service"
)

// cleanMarkdownWrapper strips a ```json fence if the model wrapped its
// response in one.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

// parseCandidate extracts a vendor name candidate from an LLM response body.
func parseCandidate(content string) (service.OracleResponse, error) {
	var jsonResp struct {
		Name       string  `json:"name"`
		Reasoning  string  `json:"reasoning,omitempty"`
		Confidence float64 `json:"confidence"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return service.OracleResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if strings.TrimSpace(jsonResp.Name) == "" {
		return service.OracleResponse{}, fmt.Errorf("no vendor name found in response")
	}

	return service.OracleResponse{
		Name:       strings.TrimSpace(jsonResp.Name),
		Confidence: model.ClampConfidence(jsonResp.Confidence),
		Reasoning:  jsonResp.Reasoning,
		Source:     model.SourceLLM,
	}, nil
}
