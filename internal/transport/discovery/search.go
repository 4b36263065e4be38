package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	discoveryengine "google.golang.org/api/discoveryengine/v1"
	"google.golang.org/api/googleapi"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// Search runs a summarized query against the engine's default serving config
// and maps the response into a domain answer with citations.
func (g *Gateway) Search(ctx context.Context, engineID, query string) (domain.QueryAnswer, error) {
	req := &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest{
		Query:    query,
		PageSize: 10,
		QueryExpansionSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestQueryExpansionSpec{
			Condition: "AUTO",
		},
		ContentSearchSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpec{
			SummarySpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecSummarySpec{
				SummaryResultCount: 5,
				IncludeCitations:   true,
			},
			ExtractiveContentSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecExtractiveContentSpec{
				MaxExtractiveAnswerCount: 3,
			},
		},
	}

	resp, err := g.api.Search(ctx, g.servingConfig(engineID), req)
	if err != nil {
		if isNotFound(err) {
			return domain.QueryAnswer{}, domain.ErrEngineNotFound
		}
		return domain.QueryAnswer{}, fmt.Errorf("search engine %s: %w", engineID, err)
	}

	var answer domain.QueryAnswer
	if resp.Summary != nil {
		answer.Summary = resp.Summary.SummaryText
		answer.Citations = summaryCitations(resp.Summary)
	}
	for _, result := range resp.Results {
		if result.Document == nil {
			continue
		}
		fields := structData(result.Document.DerivedStructData)
		answer.Results = append(answer.Results, domain.SearchHit{
			Title:             stringField(fields, "title"),
			URI:               stringField(fields, "link"),
			ExtractiveAnswers: pageContents(fields, "extractive_answers"),
		})
	}
	return answer, nil
}

// summaryCitations flattens the summary's citation metadata, resolving each
// citation source to its reference document.
func summaryCitations(summary *discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSummary) []domain.Citation {
	meta := summary.SummaryWithMetadata
	if meta == nil || meta.CitationMetadata == nil {
		return nil
	}

	var out []domain.Citation
	for _, c := range meta.CitationMetadata.Citations {
		citation := domain.Citation{
			StartIndex: c.StartIndex,
			EndIndex:   c.EndIndex,
		}
		for _, src := range c.Sources {
			idx := src.ReferenceIndex
			if idx < 0 || idx >= int64(len(meta.References)) {
				continue
			}
			ref := meta.References[idx]
			if ref.Title != "" {
				citation.Source = ref.Title
			} else {
				citation.Source = ref.Uri
			}
			break
		}
		out = append(out, citation)
	}
	return out
}

// FetchExcerpts pulls representative content for every indexed document via
// an empty browse query, for use as source material by mind map synthesis.
func (g *Gateway) FetchExcerpts(ctx context.Context, engineID string, pageSize int64) ([]domain.DocumentExcerpt, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	req := &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest{
		Query:    "",
		PageSize: pageSize,
		ContentSearchSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpec{
			ExtractiveContentSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecExtractiveContentSpec{
				MaxExtractiveSegmentCount: 5,
				MaxExtractiveAnswerCount:  3,
			},
		},
	}

	resp, err := g.api.Search(ctx, g.servingConfig(engineID), req)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrEngineNotFound
		}
		return nil, fmt.Errorf("fetch excerpts for engine %s: %w", engineID, err)
	}

	var excerpts []domain.DocumentExcerpt
	for _, result := range resp.Results {
		if result.Document == nil {
			continue
		}
		fields := structData(result.Document.DerivedStructData)
		content := passageText(fields)
		if content == "" {
			continue
		}
		title := stringField(fields, "title")
		if title == "" {
			title = stringField(fields, "link")
		}
		excerpts = append(excerpts, domain.DocumentExcerpt{
			Title:   title,
			Content: content,
		})
	}
	return excerpts, nil
}

// --- Derived struct data parsing ---

// structData decodes the document's derived fields, which arrive as raw JSON.
func structData(raw googleapi.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// pageContents collects content+page pairs from a derived list field.
func pageContents(fields map[string]any, key string) []domain.PageContent {
	items, _ := fields[key].([]any)
	var out []domain.PageContent
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, _ := entry["content"].(string)
		if content == "" {
			continue
		}
		page, _ := entry["pageNumber"].(string)
		out = append(out, domain.PageContent{PageNumber: page, Content: content})
	}
	return out
}

// passageText joins the best available content for one document: extractive
// segments first, then extractive answers, then snippets.
func passageText(fields map[string]any) string {
	for _, key := range []string{"extractive_segments", "extractive_answers"} {
		if contents := pageContents(fields, key); len(contents) > 0 {
			parts := make([]string, 0, len(contents))
			for _, c := range contents {
				parts = append(parts, c.Content)
			}
			return strings.Join(parts, "\n")
		}
	}

	items, _ := fields["snippets"].([]any)
	var parts []string
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := entry["snippet"].(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
