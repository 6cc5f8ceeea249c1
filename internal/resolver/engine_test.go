package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Veraticus/vendor-lens/internal/common"
	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/service"
	"github.com/Veraticus/vendor-lens/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestStore(t *testing.T) (*storage.SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}
	return store, func() { _ = store.Close() }
}

func TestEngineResolveMissThenHit(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	oracle := NewMockOracle()
	oracle.Responses["amzn mktplace us"] = service.OracleResponse{
		Name:       "Amazon",
		Confidence: 0.92,
		Source:     model.SourceGoogle,
		Reasoning:  "marketplace listing",
	}

	engine := New(store, oracle, testLogger())
	ctx := context.Background()

	result, err := engine.Resolve(ctx, "", "POS 4829 AMZN MKTPLACE US*1A2B3", nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.ResolvedName != "Amazon" {
		t.Errorf("ResolvedName = %q, want Amazon", result.ResolvedName)
	}
	if result.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", result.Confidence)
	}
	if result.Source != model.SourceGoogle {
		t.Errorf("Source = %q, want google", result.Source)
	}
	if result.CacheHit {
		t.Error("first resolution should not be a cache hit")
	}
	if result.Reasoning != "marketplace listing" {
		t.Errorf("Reasoning = %q", result.Reasoning)
	}

	// The mapping must have been persisted under the normalized key.
	stored, err := store.FindMapping(ctx, "amzn mktplace us", "")
	if err != nil {
		t.Fatalf("FindMapping after resolve failed: %v", err)
	}
	if stored.MappedName != "Amazon" || stored.OriginalText != "POS 4829 AMZN MKTPLACE US*1A2B3" {
		t.Errorf("stored mapping = %+v", stored)
	}

	// A second resolve of a differently-formatted variant of the same
	// vendor must be served from the store without an oracle call.
	again, err := engine.Resolve(ctx, "", "AMZN MKTPLACE US*9Z8Y7", nil)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if !again.CacheHit {
		t.Error("second resolution should be a cache hit")
	}
	if again.ResolvedName != "Amazon" {
		t.Errorf("cached ResolvedName = %q, want Amazon", again.ResolvedName)
	}
	if oracle.CallCount() != 1 {
		t.Errorf("oracle called %d times, want 1", oracle.CallCount())
	}
}

func TestEngineResolveClampsConfidence(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	oracle := NewMockOracle()
	oracle.Responses["netflix.com"] = service.OracleResponse{
		Name:       "Netflix",
		Confidence: 1.7,
		Source:     model.SourceLLM,
	}

	engine := New(store, oracle, testLogger())

	result, err := engine.Resolve(context.Background(), "", "NETFLIX.COM", nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want clamped 1.0", result.Confidence)
	}
}

func TestEngineResolveInvalidInput(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	engine := New(store, NewMockOracle(), testLogger())

	_, err := engine.Resolve(context.Background(), "", "   ", nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestEngineResolveOracleFailure(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	oracle := NewMockOracle()
	oracle.FailAll = true

	engine := New(store, oracle, testLogger())
	ctx := context.Background()

	_, err := engine.Resolve(ctx, "", "MYSTERY VENDOR", nil)
	if !errors.Is(err, common.ErrResolutionFailed) {
		t.Fatalf("error = %v, want ErrResolutionFailed", err)
	}

	// A failed resolution must leave no partial state behind.
	_, err = store.FindMapping(ctx, "mystery vendor", "")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("FindMapping after failure = %v, want ErrNotFound", err)
	}
}

// raceStore injects a competing insert immediately before the first
// delegated CreateMapping, forcing the unique-index conflict path.
type raceStore struct {
	*storage.SQLiteStorage
	competitor model.VendorMapping
	once       sync.Once
}

func (r *raceStore) CreateMapping(ctx context.Context, mapping *model.VendorMapping) (*model.VendorMapping, error) {
	var raceErr error
	r.once.Do(func() {
		competitor := r.competitor
		_, raceErr = r.SQLiteStorage.CreateMapping(ctx, &competitor)
	})
	if raceErr != nil {
		return nil, raceErr
	}
	return r.SQLiteStorage.CreateMapping(ctx, mapping)
}

func TestEngineResolveConcurrentCreateConverges(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	race := &raceStore{
		SQLiteStorage: store,
		competitor: model.VendorMapping{
			NormalizedText: "blue bottle coffee",
			OriginalText:   "SQ *BLUE BOTTLE COFFEE",
			MappedName:     "Blue Bottle Coffee",
			Confidence:     0.95,
			Source:         model.SourceLLM,
		},
	}

	oracle := NewMockOracle()
	oracle.Responses["blue bottle coffee"] = service.OracleResponse{
		Name:       "Blue Bottle",
		Confidence: 0.70,
		Source:     model.SourceLLM,
	}

	engine := New(race, oracle, testLogger())
	ctx := context.Background()

	result, err := engine.Resolve(ctx, "", "SQ *BLUE BOTTLE COFFEE", nil)
	if err != nil {
		t.Fatalf("Resolve failed despite conflict: %v", err)
	}

	// The competing writer won the insert; its higher-confidence row is
	// both what is stored and what is reported.
	if result.ResolvedName != "Blue Bottle Coffee" {
		t.Errorf("ResolvedName = %q, want stored winner", result.ResolvedName)
	}
	if !result.CacheHit {
		t.Error("conflict resolution against the stored row should report a cache hit")
	}

	mappings, err := store.ListMappings(ctx, "")
	if err != nil {
		t.Fatalf("ListMappings failed: %v", err)
	}
	if len(mappings) != 1 {
		t.Errorf("got %d mappings after conflict, want exactly 1", len(mappings))
	}
}

func TestEngineUserMappingNeverOverwritten(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	oracle := NewMockOracle()
	engine := New(store, oracle, testLogger())
	ctx := context.Background()

	created, err := engine.CreateUserMapping(ctx, "user-1", "VENMO PAYMENT 8675309", "Rent to Alex")
	if err != nil {
		t.Fatalf("CreateUserMapping failed: %v", err)
	}
	if created.Source != model.SourceUser || created.Confidence != 1.0 {
		t.Errorf("user mapping = source %q confidence %v, want user/1.0", created.Source, created.Confidence)
	}

	result, err := engine.Resolve(ctx, "user-1", "VENMO PAYMENT 8675309", nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.ResolvedName != "Rent to Alex" {
		t.Errorf("ResolvedName = %q, want the user's mapping", result.ResolvedName)
	}
	if result.Source != model.SourceUser {
		t.Errorf("Source = %q, want user", result.Source)
	}
	if oracle.CallCount() != 0 {
		t.Errorf("oracle called %d times for a user-mapped vendor, want 0", oracle.CallCount())
	}
}

func TestEngineCreateUserMappingValidation(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	engine := New(store, NewMockOracle(), testLogger())
	ctx := context.Background()

	if _, err := engine.CreateUserMapping(ctx, "", "STARBUCKS", "Starbucks"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("missing owner error = %v, want ErrInvalidInput", err)
	}
	if _, err := engine.CreateUserMapping(ctx, "user-1", "STARBUCKS", "  "); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("blank name error = %v, want ErrInvalidInput", err)
	}

	if _, err := engine.CreateUserMapping(ctx, "user-1", "STARBUCKS", "Starbucks"); err != nil {
		t.Fatalf("CreateUserMapping failed: %v", err)
	}
	_, err := engine.CreateUserMapping(ctx, "user-1", "STARBUCKS", "Starbucks Coffee")
	if !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("duplicate error = %v, want ErrDuplicateEntry", err)
	}
}

func TestEngineResolveBatch(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	oracle := NewMockOracle()
	oracle.FailOn["doomed vendor"] = true

	engine := New(store, oracle, testLogger())
	ctx := context.Background()

	// Pre-seed one mapping so the batch exercises the cached path.
	if _, err := store.CreateMapping(ctx, &model.VendorMapping{
		NormalizedText: "spotify",
		OriginalText:   "SPOTIFY",
		MappedName:     "Spotify",
		Confidence:     0.90,
		Source:         model.SourceLLM,
	}); err != nil {
		t.Fatalf("seed CreateMapping failed: %v", err)
	}

	batch := engine.ResolveBatch(ctx, "", []BatchItem{
		{OriginalText: "SPOTIFY"},
		{OriginalText: "UBER TRIP HELP.UBER.COM"},
		{OriginalText: "LYFT RIDE"},
		{OriginalText: "DOOMED VENDOR"},
	})

	if batch.Stats.Total != 4 {
		t.Errorf("Stats.Total = %d, want 4", batch.Stats.Total)
	}
	if batch.Stats.Resolved != 3 {
		t.Errorf("Stats.Resolved = %d, want 3", batch.Stats.Resolved)
	}
	if batch.Stats.Failed != 1 {
		t.Errorf("Stats.Failed = %d, want 1", batch.Stats.Failed)
	}
	if batch.Stats.Resolved+batch.Stats.Failed != batch.Stats.Total {
		t.Error("resolved + failed must equal total")
	}
	if batch.Stats.Cached != 1 {
		t.Errorf("Stats.Cached = %d, want 1", batch.Stats.Cached)
	}
	if batch.Stats.AIResolved != 2 {
		t.Errorf("Stats.AIResolved = %d, want 2", batch.Stats.AIResolved)
	}

	if len(batch.Failed) != 1 || batch.Failed[0].OriginalText != "DOOMED VENDOR" {
		t.Errorf("Failed = %+v, want the doomed vendor only", batch.Failed)
	}
	if len(batch.Resolved) != 3 {
		t.Fatalf("got %d resolved results, want 3", len(batch.Resolved))
	}
	for _, res := range batch.Resolved {
		if res.ResolvedName == "" {
			t.Errorf("resolved result for %q has empty name", res.OriginalText)
		}
	}
}

func TestEngineResolveBatchEmpty(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	engine := New(store, NewMockOracle(), testLogger())

	batch := engine.ResolveBatch(context.Background(), "", nil)
	if batch.Stats.Total != 0 || len(batch.Resolved) != 0 || len(batch.Failed) != 0 {
		t.Errorf("empty batch = %+v", batch)
	}
}
