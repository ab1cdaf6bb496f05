package moonshot

import (
	"context"
	"os"

	"github.com/aq-cli/aq/internal/provider"
)

// APIKeyMeta is the metadata for Moonshot via API Key
var APIKeyMeta = provider.ProviderMeta{
	Provider:    provider.ProviderMoonshot,
	AuthMethod:  provider.AuthAPIKey,
	EnvVars:     []string{"MOONSHOT_API_KEY"},
	DisplayName: "Direct API",
}

// NewAPIKeyClient creates a new Moonshot client using API Key authentication.
// Moonshot's API is OpenAI-compatible but has no official Go SDK, so this
// backend speaks raw HTTP SSE through the stream package's C8 parser
// instead of routing through the openai-go SDK like the openai backend does.
func NewAPIKeyClient(ctx context.Context) (provider.LLMProvider, error) {
	baseURL := os.Getenv("MOONSHOT_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.moonshot.cn/v1"
	}
	return NewClient(baseURL, os.Getenv("MOONSHOT_API_KEY"), "moonshot:api_key"), nil
}

func init() {
	provider.Register(APIKeyMeta, NewAPIKeyClient)
}
