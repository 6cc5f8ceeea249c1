package oracle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/service"
)

// stubClient is a scriptable provider client for resolver tests.
type stubClient struct {
	responses []service.OracleResponse
	errs      []error
	calls     int
}

func (s *stubClient) Lookup(_ context.Context, _ service.OracleRequest) (service.OracleResponse, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return service.OracleResponse{}, s.errs[idx]
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	if len(s.responses) > 0 {
		return s.responses[len(s.responses)-1], nil
	}
	return service.OracleResponse{}, fmt.Errorf("no scripted response")
}

func newTestResolver(client Client) *Resolver {
	return &Resolver{
		client:      client,
		cache:       newResponseCache(time.Minute),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		rateLimiter: newRateLimiter(600),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	}
}

func TestResolverResolveVendor(t *testing.T) {
	client := &stubClient{responses: []service.OracleResponse{
		{Name: "Amazon", Confidence: 1.3, Source: model.SourceLLM},
	}}
	r := newTestResolver(client)
	defer func() { _ = r.Close() }()

	resp, err := r.ResolveVendor(context.Background(), service.OracleRequest{NormalizedText: "amzn"})
	if err != nil {
		t.Fatalf("ResolveVendor failed: %v", err)
	}
	if resp.Name != "Amazon" {
		t.Errorf("Name = %q, want Amazon", resp.Name)
	}
	if resp.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want clamped 1.0", resp.Confidence)
	}

	// Second call for the same text is served from the response cache
	if _, err := r.ResolveVendor(context.Background(), service.OracleRequest{NormalizedText: "amzn"}); err != nil {
		t.Fatalf("cached ResolveVendor failed: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("client called %d times, want 1", client.calls)
	}
}

func TestResolverRetriesTransientFailure(t *testing.T) {
	client := &stubClient{
		errs: []error{fmt.Errorf("connection reset")},
		responses: []service.OracleResponse{
			{},
			{Name: "Netflix", Confidence: 0.9, Source: model.SourceLLM},
		},
	}
	r := newTestResolver(client)
	defer func() { _ = r.Close() }()

	resp, err := r.ResolveVendor(context.Background(), service.OracleRequest{NormalizedText: "netflix"})
	if err != nil {
		t.Fatalf("ResolveVendor failed after retry: %v", err)
	}
	if resp.Name != "Netflix" {
		t.Errorf("Name = %q, want Netflix", resp.Name)
	}
	if client.calls != 2 {
		t.Errorf("client called %d times, want 2", client.calls)
	}
}

func TestResolverRejectsUserSource(t *testing.T) {
	client := &stubClient{responses: []service.OracleResponse{
		{Name: "Evil", Confidence: 0.9, Source: model.SourceUser},
	}}
	r := newTestResolver(client)
	defer func() { _ = r.Close() }()

	_, err := r.ResolveVendor(context.Background(), service.OracleRequest{NormalizedText: "evil"})
	if err == nil {
		t.Fatal("user-attributed oracle response should be rejected")
	}
	if client.calls != 1 {
		t.Errorf("client called %d times, want 1 (no retry on invalid source)", client.calls)
	}
}

func TestResolverGivesUpOnEmptyName(t *testing.T) {
	client := &stubClient{responses: []service.OracleResponse{
		{Name: "", Confidence: 0.9, Source: model.SourceLLM},
	}}
	r := newTestResolver(client)
	defer func() { _ = r.Close() }()

	_, err := r.ResolveVendor(context.Background(), service.OracleRequest{NormalizedText: "blank"})
	if err == nil {
		t.Fatal("empty vendor name should fail after retries")
	}
	if client.calls != 3 {
		t.Errorf("client called %d times, want MaxAttempts", client.calls)
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	cache := newResponseCache(20 * time.Millisecond)
	defer cache.Close()

	cache.set("key", service.OracleResponse{Name: "Amazon"})
	if _, found := cache.get("key"); !found {
		t.Fatal("fresh entry should be found")
	}

	time.Sleep(40 * time.Millisecond)
	if _, found := cache.get("key"); found {
		t.Error("expired entry should not be served")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.Close()

	if !rl.tryAcquire() || !rl.tryAcquire() {
		t.Fatal("both initial tokens should be available")
	}
	if rl.tryAcquire() {
		t.Error("bucket should be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.wait(ctx); err == nil {
		t.Error("wait on an exhausted bucket should honor cancellation")
	}
}
