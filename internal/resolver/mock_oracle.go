package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/service"
)

// MockOracle is a test implementation of the service.Oracle interface.
// It returns deterministic candidates based on the normalized text.
type MockOracle struct {
	// Responses maps normalized text to a canned response.
	Responses map[string]service.OracleResponse
	// FailOn marks normalized texts whose lookup should fail.
	FailOn map[string]bool
	// FailAll makes every lookup fail.
	FailAll bool

	calls []service.OracleRequest
	mu    sync.Mutex
}

// NewMockOracle creates a new mock oracle.
func NewMockOracle() *MockOracle {
	return &MockOracle{
		Responses: make(map[string]service.OracleResponse),
		FailOn:    make(map[string]bool),
	}
}

// ResolveVendor returns the canned response for the request, or a
// deterministic default derived from the normalized text.
func (m *MockOracle) ResolveVendor(_ context.Context, req service.OracleRequest) (service.OracleResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if m.FailAll || m.FailOn[req.NormalizedText] {
		return service.OracleResponse{}, fmt.Errorf("oracle unavailable for %q", req.NormalizedText)
	}

	if response, ok := m.Responses[req.NormalizedText]; ok {
		return response, nil
	}

	// Default: title-case the normalized text
	words := strings.Fields(req.NormalizedText)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return service.OracleResponse{
		Name:       strings.Join(words, " "),
		Confidence: 0.75,
		Source:     model.SourceLLM,
	}, nil
}

// CallCount returns the number of lookups issued.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded requests.
func (m *MockOracle) Calls() []service.OracleRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]service.OracleRequest, len(m.calls))
	copy(calls, m.calls)
	return calls
}
