package store

import (
	"context"
	"sync"

	"github.com/memoraai/memora/internal/profile"
)

// Store provides access to stored memory chunks through a Driver.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// schemaMu guards lazy schema provisioning. A failed attempt is retried
	// on the next call; concurrent first writers are harmless because
	// drivers treat "already exists" as success.
	schemaMu    sync.Mutex
	schemaReady bool
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// EnsureSchema provisions the backing collection. It runs the driver's
// provisioning at most once per process on the success path and retries on
// later calls if a previous attempt failed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if err := s.driver.EnsureSchema(ctx); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

// UpsertMemory writes one memory chunk, provisioning the schema first if
// needed, and returns the store-assigned id.
func (s *Store) UpsertMemory(ctx context.Context, create *MemoryChunk) (string, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return "", err
	}
	return s.driver.UpsertMemory(ctx, create)
}

// VectorSearch returns up to k project-scoped hits by vector similarity.
func (s *Store) VectorSearch(ctx context.Context, projectID string, queryVector []float32, k int) ([]SearchHit, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s.driver.VectorSearch(ctx, projectID, queryVector, k)
}

// HybridSearch returns a fused lexical+vector candidate pool for one query.
func (s *Store) HybridSearch(ctx context.Context, projectID, queryText string, queryVector []float32, k int) ([]SearchHit, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s.driver.HybridSearch(ctx, projectID, queryText, queryVector, k)
}
