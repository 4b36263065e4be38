// Package openai generates mind map trees from indexed document content
// using an OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notedex/internal/domain"
	"github.com/kailas-cloud/notedex/internal/metrics"
)

const (
	defaultModel     = "gpt-4o"
	mindMapDepth     = 3
	mindMapBranches  = 5
	completionTokens = 8000

	systemPrompt = "You are an expert at structuring document content into hierarchical mind maps. " +
		"You always respond with a single valid JSON object and nothing else."
)

// Generator produces mind map trees via chat completions.
type Generator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the generation provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewGenerator creates an OpenAI-compatible mind map generator.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// Generate builds a mind map tree from document excerpts.
func (g *Generator) Generate(ctx context.Context, excerpts []domain.DocumentExcerpt) (domain.MindMapTree, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.3,
		TopP:        0.8,
		MaxTokens:   completionTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(excerpts)},
		},
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.MindMapRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.MindMapTree{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.MindMapRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.MindMapTree{}, fmt.Errorf("empty completion response: %w", domain.ErrRemoteUnavailable)
	}

	metrics.MindMapRequestsTotal.WithLabelValues(g.model, "success").Inc()
	metrics.MindMapRequestDuration.WithLabelValues(g.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.MindMapTokensTotal.WithLabelValues(g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.MindMapTokensTotal.WithLabelValues(g.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	tree, err := parseTree(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.MindMapTree{}, err
	}

	g.logger.Info("mind map generated",
		zap.String("model", g.model),
		zap.Int("branches", len(tree.Branches)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return tree, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// buildPrompt assembles the user prompt from document excerpts.
func buildPrompt(excerpts []domain.DocumentExcerpt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"Create a hierarchical mind map of the following documents. "+
			"Use at most %d levels of depth and at most %d top-level branches. ",
		mindMapDepth, mindMapBranches)
	sb.WriteString(`Respond with JSON of the shape {"central_topic": string, "branches": ` +
		`[{"id": string, "label": string, "description": string, "key_points": [string], ` +
		`"level": number, "children": [...]}]}.` + "\n\n")

	for i, excerpt := range excerpts {
		title := excerpt.Title
		if title == "" {
			title = fmt.Sprintf("Untitled %d", i+1)
		}
		fmt.Fprintf(&sb, "--- Document %d: %s ---\n", i+1, title)
		sb.WriteString(excerpt.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// parseTree decodes the model output into a tree, tolerating markdown fences
// around the JSON body.
func parseTree(content string) (domain.MindMapTree, error) {
	cleaned := stripFences(content)

	var tree domain.MindMapTree
	if err := json.Unmarshal([]byte(cleaned), &tree); err != nil {
		return domain.MindMapTree{}, fmt.Errorf("decode mind map: %v: %w", err, domain.ErrBadMindMap)
	}
	if tree.CentralTopic == "" && len(tree.Branches) == 0 {
		return domain.MindMapTree{}, fmt.Errorf("mind map has no content: %w", domain.ErrBadMindMap)
	}
	return tree, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrRemoteUnavailable for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrRemoteUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("completion request failed: %w", wrap)
}
