package settings

import "strings"

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
)

// Model is one selectable model of a provider.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider describes a supported model provider.
type Provider struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	BaseURL   string  `json:"base_url"`
	APIKeyEnv string  `json:"api_key_env"`
	DocsURL   string  `json:"docs_url"`
	Models    []Model `json:"models"`
}

var catalogue = []Provider{
	{
		ID:        ProviderOpenRouter,
		Name:      "OpenRouter",
		BaseURL:   "https://openrouter.ai/api/v1",
		APIKeyEnv: "OPENROUTER_API_KEY",
		DocsURL:   "https://openrouter.ai/docs",
		Models: []Model{
			{ID: "openai/gpt-4o", Name: "GPT-4o (OpenAI)"},
			{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini (OpenAI)"},
			{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet (Anthropic)"},
			{ID: "anthropic/claude-3-opus", Name: "Claude 3 Opus (Anthropic)"},
			{ID: "google/gemini-pro-1.5", Name: "Gemini Pro 1.5 (Google)"},
			{ID: "meta-llama/llama-3.1-70b-instruct", Name: "Llama 3.1 70B (Meta)"},
			{ID: "mistralai/mistral-large", Name: "Mistral Large (Mistral AI)"},
		},
	},
	{
		ID:        ProviderOpenAI,
		Name:      "OpenAI",
		BaseURL:   "https://api.openai.com/v1",
		APIKeyEnv: "OPENAI_API_KEY",
		DocsURL:   "https://platform.openai.com/docs",
		Models: []Model{
			{ID: "gpt-4o", Name: "GPT-4o"},
			{ID: "gpt-4o-mini", Name: "GPT-4o Mini"},
			{ID: "gpt-4-turbo", Name: "GPT-4 Turbo"},
		},
	},
	{
		ID:   ProviderAnthropic,
		Name: "Anthropic",
		// OpenAI-compatible endpoint.
		BaseURL:   "https://api.anthropic.com/v1/",
		APIKeyEnv: "ANTHROPIC_API_KEY",
		DocsURL:   "https://docs.anthropic.com",
		Models: []Model{
			{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet"},
			{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus"},
		},
	},
	{
		ID:        ProviderGemini,
		Name:      "Google Gemini",
		APIKeyEnv: "GEMINI_API_KEY",
		DocsURL:   "https://ai.google.dev/gemini-api/docs",
		Models: []Model{
			{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro"},
			{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash"},
		},
	},
}

// Providers returns a copy of the provider catalogue.
func Providers() []Provider {
	out := make([]Provider, len(catalogue))
	for i, p := range catalogue {
		p.Models = append([]Model(nil), p.Models...)
		out[i] = p
	}
	return out
}

// Lookup finds a provider by id, ignoring case and surrounding spaces.
func Lookup(id string) (Provider, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range catalogue {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}
