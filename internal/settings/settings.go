// Package settings owns the process-wide model settings: the record itself, the
// provider catalogue and a store that hands out consistent snapshots while an
// administrative update may replace the whole record at any time.
package settings

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultProvider        = ProviderOpenRouter
	DefaultModel           = "openai/gpt-4o-mini"
	DefaultTemperature     = 0.4
	DefaultMaxOutputTokens = 4000
)

// Settings is the model configuration used for one model call. Values are
// copied around; nothing mutates a Settings after it has been stored.
type Settings struct {
	Provider    string  `mapstructure:"provider" yaml:"provider" json:"provider"`
	Model       string  `mapstructure:"model" yaml:"model" json:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	// MaxOutputTokens caps the response length; zero leaves it to the provider.
	MaxOutputTokens int `mapstructure:"max_tokens" yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// Defaults returns the settings used when nothing has been saved yet.
func Defaults() Settings {
	return Settings{
		Provider:        DefaultProvider,
		Model:           DefaultModel,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// Validate reports every problem with s at once.
func (s Settings) Validate() error {
	var errs []error

	if _, ok := Lookup(s.Provider); !ok {
		errs = append(errs, fmt.Errorf("unsupported provider %q", s.Provider))
	}
	if strings.TrimSpace(s.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within 0..2, got %v", s.Temperature))
	}
	if s.MaxOutputTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", s.MaxOutputTokens))
	}

	return errors.Join(errs...)
}

// EffectiveBaseURL returns the configured base URL or the provider default.
func (s Settings) EffectiveBaseURL() string {
	if url := strings.TrimSpace(s.BaseURL); url != "" {
		return url
	}
	if p, ok := Lookup(s.Provider); ok {
		return p.BaseURL
	}
	return ""
}

// Redacted returns a copy safe to show to users: only the last four characters
// of the API key survive.
func (s Settings) Redacted() Settings {
	key := strings.TrimSpace(s.APIKey)
	switch {
	case key == "":
		s.APIKey = ""
	case len(key) <= 8:
		s.APIKey = "****"
	default:
		s.APIKey = "****" + key[len(key)-4:]
	}
	return s
}
