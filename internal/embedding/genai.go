package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"sonagent/internal/logging"
)

// GenAIEngine generates embeddings using Google's Gemini API.
type GenAIEngine struct {
	client *genai.Client
	model  string
	task   TaskType // empty selects per call
}

// NewGenAIEngine creates a new GenAI embedding engine. taskType overrides
// the per-call task selection; leave it empty for automatic selection.
func NewGenAIEngine(apiKey, model, taskType string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	task, ok := ParseTaskType(taskType)
	if !ok {
		logging.Get(logging.CategoryEmbed).Warn("Unknown embedding task type %q, selecting per call", taskType)
		task = ""
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEngine{
		client: client,
		model:  model,
		task:   task,
	}, nil
}

// taskFor resolves the task hint for one call, honoring the configured
// override.
func (e *GenAIEngine) taskFor(text string, isQuery bool) string {
	task := e.task
	if task == "" {
		task = SelectTaskType(text, isQuery)
	}
	switch task {
	case TaskRetrievalDocument:
		return string(TaskRetrievalDocument)
	case TaskRetrievalQuery:
		return string(TaskRetrievalQuery)
	case TaskQuestionAnswering:
		return string(TaskQuestionAnswering)
	default:
		return string(TaskSemanticSimilarity)
	}
}

// Embed generates an embedding for a single text, treated as content to
// be indexed.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: e.taskFor(text, false),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return result.Embeddings[0].Values, nil
}

// EmbedQuery generates an embedding for a search query.
func (e *GenAIEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: e.taskFor(text, true),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI query embed failed: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return result.Embeddings[0].Values, nil
}

// EmbedBatch generates embeddings for multiple texts.
// GenAI has native batch support.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: e.taskFor("", false),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI batch embed failed: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}

	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
// gemini-embedding-001 produces 768-dimensional vectors.
func (e *GenAIEngine) Dimensions() int {
	return 768
}

// Name returns the engine name.
func (e *GenAIEngine) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}

// Close closes the GenAI client. The genai SDK client holds no
// resources that need closing.
func (e *GenAIEngine) Close() error {
	return nil
}
