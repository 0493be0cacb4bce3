package grounding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/malwarescan/precogs-api-sub001/grounding/internal/store"
	"github.com/malwarescan/precogs-api-sub001/identity"
	"github.com/malwarescan/precogs-api-sub001/idgen"
)

// Service is the grounding orchestrator.
type Service struct {
	store  *store.Store
	hasher identity.Hasher
	config *Config
	logger *slog.Logger
	newID  func() string
}

// New creates a Service, opening (or creating) the SQLite database at
// cfg.DBPath.
func New(cfg *Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	hasher, err := identity.NewHasher(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:  s,
		hasher: hasher,
		config: cfg,
		logger: logger,
		newID:  idgen.New,
	}, nil
}

// Close releases the underlying database.
func (s *Service) Close() error {
	return s.store.Close()
}

// Hasher exposes the configured hash function, so collaborators (anchor
// construction, offline audits) compute with exactly the same algorithm.
func (s *Service) Hasher() identity.Hasher {
	return s.hasher
}

// PutSnapshot stores the canonical extracted text for (domain, sourceURL),
// computing extraction_text_hash in the same write. Re-extraction replaces
// the prior generation wholesale; anchors minted against it are flagged as
// stale by Validate, never silently revalidated against the new text.
func (s *Service) PutSnapshot(ctx context.Context, domain, sourceURL, extractionMethod, text string) (*Snapshot, error) {
	if domain == "" || sourceURL == "" {
		return nil, fmt.Errorf("%w: domain and source_url are required", ErrInvalidInput)
	}
	if extractionMethod == "" {
		return nil, fmt.Errorf("%w: extraction_method is required", ErrInvalidInput)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: canonical_text is empty", ErrInvalidInput)
	}

	snap := &Snapshot{
		ID:                 s.newID(),
		Domain:             domain,
		SourceURL:          sourceURL,
		ExtractionMethod:   extractionMethod,
		CanonicalText:      text,
		ExtractionTextHash: s.hasher.Sum(text),
	}
	if err := s.store.UpsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	s.logger.Info("snapshot stored",
		"domain", domain, "url", sourceURL,
		"method", extractionMethod, "hash", snap.ExtractionTextHash,
		"chars", len(text))
	return snap, nil
}

// GetSnapshot returns the current snapshot for (domain, sourceURL).
func (s *Service) GetSnapshot(ctx context.Context, domain, sourceURL string) (*Snapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, domain, sourceURL)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrSnapshotNotFound, domain, sourceURL)
	}
	return snap, nil
}

// Snapshots lists every stored snapshot.
func (s *Service) Snapshots(ctx context.Context) ([]*Snapshot, error) {
	return s.store.ListSnapshots(ctx)
}

// LatestFacts returns all current-revision facts for a source URL.
func (s *Service) LatestFacts(ctx context.Context, sourceURL string) ([]*Fact, error) {
	return s.store.LatestFacts(ctx, sourceURL)
}

// FactHistory returns the revision chain for one slot, oldest first.
func (s *Service) FactHistory(ctx context.Context, sourceURL, slotID string) ([]*Fact, error) {
	return s.store.FactHistory(ctx, sourceURL, slotID)
}

// ValidationRuns returns recent validation runs for a source URL.
func (s *Service) ValidationRuns(ctx context.Context, sourceURL string, limit int) ([]*ValidationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ValidationRuns(ctx, sourceURL, limit)
}

// Stats returns aggregate database counters.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}
