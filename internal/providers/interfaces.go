package providers

import "context"

// Embedding task intents. Providers that distinguish document vs query
// embeddings (gemini) map these to their native task types.
const (
	TaskDocument = "document"
	TaskQuery    = "query"
)

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation   string   `json:"operation"`
	Prompt      string   `json:"prompt"`
	Context     []string `json:"context"`
	Temperature float32  `json:"temperature"`
	JSONOnly    bool     `json:"json_only"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
	Task      string   `json:"task"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}
