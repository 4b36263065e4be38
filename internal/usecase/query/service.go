// Package query answers conversational questions against an engine's indexed
// content, with a generated summary and citations.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// Service handles query requests.
type Service struct {
	repo     Repository
	searcher Searcher
}

// New creates a query service.
func New(repo Repository, searcher Searcher) *Service {
	return &Service{repo: repo, searcher: searcher}
}

// Ask validates the engine and runs the search.
func (s *Service) Ask(ctx context.Context, engineID, question string) (domain.QueryAnswer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.QueryAnswer{}, fmt.Errorf("empty question: %w", domain.ErrEmptyQuery)
	}

	if _, err := s.repo.GetEngine(ctx, engineID); err != nil {
		return domain.QueryAnswer{}, fmt.Errorf("get engine: %w", err)
	}

	answer, err := s.searcher.Search(ctx, engineID, question)
	if err != nil {
		return domain.QueryAnswer{}, fmt.Errorf("search: %w", err)
	}
	return answer, nil
}
