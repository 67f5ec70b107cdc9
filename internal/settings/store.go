package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ModelEnv overrides the model of loaded settings when set.
const ModelEnv = "AI_MODEL"

const redactedPrefix = "****"

// Options configures Open.
type Options struct {
	// Path of the YAML settings file. Empty keeps settings in memory only.
	Path string
	// FallbackAPIKey is used when the settings file carries no API key. It is
	// resolved by the caller from a key file or the OS keyring.
	FallbackAPIKey string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	Logger *zap.Logger
}

// Store hands out settings snapshots. Updates replace the whole record, so a
// reader never observes a mix of old and new fields.
type Store struct {
	path        string
	logger      *zap.Logger
	getenv      func(string) string
	fallbackKey string
	current     atomic.Pointer[Settings]

	// serializes writers; readers only touch current.
	mu sync.Mutex
	// keySaved is false while the live key comes from the fallback secret or the
	// environment. Such keys are never written to the settings file.
	keySaved bool
}

// Open loads settings from the file, falling back to defaults, then fills a
// missing API key from opts.FallbackAPIKey or the provider environment variable
// and applies the AI_MODEL override.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	s := &Store{
		path:        strings.TrimSpace(opts.Path),
		logger:      logger,
		getenv:      getenv,
		fallbackKey: strings.TrimSpace(opts.FallbackAPIKey),
	}

	loaded, err := s.load()
	if err != nil {
		logger.Error("could not load settings, using defaults", zap.String("path", s.path), zap.Error(err))
		loaded = Defaults()
	}

	if strings.TrimSpace(loaded.APIKey) == "" {
		loaded.APIKey = s.resolveKey(normalize(loaded).Provider)
	} else {
		s.keySaved = true
	}

	if model := strings.TrimSpace(getenv(ModelEnv)); model != "" {
		logger.Info("using model from environment", zap.String("env", ModelEnv), zap.String("model", model))
		loaded.Model = model
	}

	loaded = normalize(loaded)
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	s.current.Store(&loaded)
	logger.Info("settings loaded", zap.String("provider", loaded.Provider), zap.String("model", loaded.Model))

	return s, nil
}

// Snapshot returns the current settings. The value is a copy.
func (s *Store) Snapshot() Settings {
	return *s.current.Load()
}

// Update merges a partial update into the current settings. Keys follow the
// mapstructure tags of Settings; unknown keys are rejected. A redacted API key
// sent back by a client is ignored. Switching provider without a key resolves
// the key again for the new provider and drops the old base URL override. The
// merged settings are validated, swapped in atomically and persisted;
// persistence failures are logged only.
func (s *Store) Update(patch map[string]any) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clean := make(map[string]any, len(patch))
	keys := make([]string, 0, len(patch))
	for k, v := range patch {
		if k == "api_key" {
			if key, ok := v.(string); ok && strings.HasPrefix(key, redactedPrefix) {
				continue
			}
		}
		clean[k] = v
		if k != "api_key" {
			keys = append(keys, k)
		}
	}

	prev := s.Snapshot()
	next := prev
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &next,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("settings decoder: %w", err)
	}
	if err := decoder.Decode(clean); err != nil {
		return Settings{}, fmt.Errorf("decode settings update: %w", err)
	}

	s.logger.Info("updating settings", zap.Strings("keys", keys))

	keySaved := s.keySaved
	if _, ok := clean["api_key"]; ok {
		keySaved = true
	} else if normalize(next).Provider != prev.Provider {
		next.APIKey = s.resolveKey(normalize(next).Provider)
		keySaved = false
		if _, ok := clean["base_url"]; !ok {
			next.BaseURL = ""
		}
	}

	return s.swap(next, keySaved)
}

// Replace validates and stores a complete settings record. Its key is persisted.
func (s *Store) Replace(next Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.swap(next, true)
}

func (s *Store) swap(next Settings, keySaved bool) (Settings, error) {
	next = normalize(next)
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}

	s.keySaved = keySaved
	s.current.Store(&next)
	s.logger.Info("settings updated", zap.String("provider", next.Provider), zap.String("model", next.Model))

	if err := s.save(next); err != nil {
		s.logger.Error("could not save settings", zap.String("path", s.path), zap.Error(err))
	}

	return next, nil
}

// resolveKey returns the fallback secret, then the provider environment
// variable, then an empty key.
func (s *Store) resolveKey(provider string) string {
	if s.fallbackKey != "" {
		s.logger.Info("using api key from configured secret source")
		return s.fallbackKey
	}
	if p, ok := Lookup(provider); ok && p.APIKeyEnv != "" {
		if key := strings.TrimSpace(s.getenv(p.APIKeyEnv)); key != "" {
			s.logger.Info("using api key from environment", zap.String("env", p.APIKeyEnv))
			return key
		}
	}
	return ""
}

func (s *Store) load() (Settings, error) {
	loaded := Defaults()
	if s.path == "" {
		return loaded, nil
	}

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no settings file found, using defaults", zap.String("path", s.path))
		return loaded, nil
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.RLock(); err != nil {
		return loaded, fmt.Errorf("lock settings file: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return loaded, err
	}

	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Defaults(), fmt.Errorf("decode settings file: %w", err)
	}

	return loaded, nil
}

// save writes to a temporary file and renames it over the target under an
// exclusive lock, so concurrent processes never read a half-written file.
func (s *Store) save(settings Settings) error {
	if s.path == "" {
		return nil
	}

	if !s.keySaved {
		settings.APIKey = ""
	}

	data, err := yaml.Marshal(&settings)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock settings file: %w", err)
	}
	defer lock.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}

func normalize(s Settings) Settings {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	s.Model = strings.TrimSpace(s.Model)
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	return s
}
