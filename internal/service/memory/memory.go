package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/pkg/log"
)

// Store is the semantic fact store: facts are embedded on write and ranked
// by the repository's cosine KNN index on read.
type Store struct {
	repo       core.FactRepository
	embedder   core.Embedder
	relevance  float32
	duplicate  float32
	defaultTop int
}

func NewStore(repo core.FactRepository, embedder core.Embedder, cfg *config.MemoryConfig) *Store {
	return &Store{
		repo:       repo,
		embedder:   embedder,
		relevance:  cfg.RelevanceThreshold,
		duplicate:  cfg.DuplicateThreshold,
		defaultTop: cfg.PrefetchLimit,
	}
}

// SimilaritySearch returns at most topK facts scoring at or above the
// relevance threshold, best first. topK <= 0 uses the configured limit.
func (s *Store) SimilaritySearch(ctx context.Context, query string, topK int) ([]core.Fact, error) {
	if topK <= 0 {
		topK = s.defaultTop
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vec, err := s.embedder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, unavailable("embed query", err)
	}

	nearest, err := s.repo.Nearest(ctx, vec, topK)
	if err != nil {
		return nil, unavailable("search facts", err)
	}

	facts := make([]core.Fact, 0, len(nearest))
	for _, f := range nearest {
		if f.Score < s.relevance {
			break
		}
		facts = append(facts, f)
	}

	log.FromCtx(ctx).Debug().Int("candidates", len(nearest)).Int("matches", len(facts)).Msg("fact similarity search")
	return facts, nil
}

// AddFact stores content unless a near-duplicate already exists.
func (s *Store) AddFact(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("empty fact: %w", core.ErrInvalidArguments)
	}

	vec, err := s.embedder.EncodePassage(ctx, content)
	if err != nil {
		return "", unavailable("embed fact", err)
	}

	if err := s.rejectDuplicate(ctx, vec, ""); err != nil {
		return "", err
	}

	id, err := s.repo.Insert(ctx, content, vec)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateFact) {
			return "", err
		}
		return "", unavailable("insert fact", err)
	}

	log.FromCtx(ctx).Info().Str("fact_id", id).Msg("fact saved")
	return id, nil
}

// ReplaceFact swaps the fact under id for content and returns the new id.
// A stale id yields core.ErrMemoryNotFound and leaves the store untouched.
func (s *Store) ReplaceFact(ctx context.Context, id, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("empty fact: %w", core.ErrInvalidArguments)
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		if errors.Is(err, core.ErrMemoryNotFound) {
			return "", err
		}
		return "", unavailable("load fact", err)
	}

	vec, err := s.embedder.EncodePassage(ctx, content)
	if err != nil {
		return "", unavailable("embed fact", err)
	}

	// The fact being replaced is allowed to be similar to its replacement.
	if err := s.rejectDuplicate(ctx, vec, id); err != nil {
		return "", err
	}

	newID, err := s.repo.Replace(ctx, id, content, vec)
	if err != nil {
		if errors.Is(err, core.ErrMemoryNotFound) || errors.Is(err, core.ErrDuplicateFact) {
			return "", err
		}
		return "", unavailable("replace fact", err)
	}

	log.FromCtx(ctx).Info().Str("old_id", id).Str("fact_id", newID).Msg("fact replaced")
	return newID, nil
}

func (s *Store) Get(ctx context.Context, id string) (core.Fact, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return core.Fact{}, err
	}
	return core.Fact{ID: f.ID, Content: f.Content, CreatedAt: f.CreatedAt}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Store) rejectDuplicate(ctx context.Context, vec []float32, exceptID string) error {
	// The closest two are enough: one of them may be exceptID.
	nearest, err := s.repo.Nearest(ctx, vec, 2)
	if err != nil {
		return unavailable("search facts", err)
	}
	for _, f := range nearest {
		if f.ID == exceptID {
			continue
		}
		if f.Score >= s.duplicate {
			return fmt.Errorf("%w: %s (%q, similarity %.2f)", core.ErrDuplicateFact, f.ID, f.Content, f.Score)
		}
		break
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrCapabilityUnavailable, err)
}
