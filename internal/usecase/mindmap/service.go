// Package mindmap synthesizes a hierarchical overview of an engine's indexed
// content: excerpts in, LLM tree out, flattened into nodes, relationships and
// a Mermaid diagram.
package mindmap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// excerptPageSize caps how many documents feed one synthesis.
const excerptPageSize = 10

// Service handles mind map generation.
type Service struct {
	repo     Repository
	excerpts ExcerptSource
	gen      Generator
	logger   *zap.Logger
}

// New creates a mind map service.
func New(repo Repository, excerpts ExcerptSource, gen Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, excerpts: excerpts, gen: gen, logger: logger}
}

// Generate builds a mind map for the engine. An engine with no indexed
// documents is a client error, not an empty map.
func (s *Service) Generate(ctx context.Context, engineID string) (domain.MindMap, error) {
	if _, err := s.repo.GetEngine(ctx, engineID); err != nil {
		return domain.MindMap{}, fmt.Errorf("get engine: %w", err)
	}

	count, err := s.repo.CountDocuments(ctx, engineID)
	if err != nil {
		return domain.MindMap{}, fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		return domain.MindMap{}, fmt.Errorf("engine %s: %w", engineID, domain.ErrNoDocuments)
	}

	excerpts, err := s.excerpts.FetchExcerpts(ctx, engineID, excerptPageSize)
	if err != nil {
		return domain.MindMap{}, fmt.Errorf("fetch excerpts: %w", err)
	}
	if len(excerpts) == 0 {
		return domain.MindMap{}, fmt.Errorf("engine %s has no retrievable content: %w",
			engineID, domain.ErrNoDocuments)
	}

	tree, err := s.gen.Generate(ctx, excerpts)
	if err != nil {
		return domain.MindMap{}, fmt.Errorf("generate tree: %w", err)
	}

	result := domain.AssembleMindMap(tree, len(excerpts))
	s.logger.Info("mind map assembled",
		zap.String("engine_id", engineID),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("sources", len(excerpts)),
	)
	return result, nil
}
