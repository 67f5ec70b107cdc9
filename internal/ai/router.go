package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/autocv/internal/logger"
	"github.com/spigell/autocv/internal/settings"
)

// Backend is a provider client bound to one API key and base URL.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Factory builds a Backend for the given settings.
type Factory func(ctx context.Context, s settings.Settings) (Backend, error)

type backendKey struct {
	provider string
	apiKey   string
	baseURL  string
}

// Router implements Completer by dispatching each request to the backend of
// the provider in its settings snapshot. Backends are built lazily and reused
// while provider, key and base URL stay the same.
type Router struct {
	factories map[string]Factory
	logger    *zap.Logger
	maxLogLen int

	mu       sync.Mutex
	backends map[backendKey]Backend
}

// NewRouter creates a router with no providers registered.
func NewRouter(logger *zap.Logger, maxLogLength int) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = 200
	}
	return &Router{
		factories: make(map[string]Factory),
		backends:  make(map[backendKey]Backend),
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Register binds factory to provider ids.
func (r *Router) Register(factory Factory, providers ...string) {
	for _, p := range providers {
		r.factories[strings.ToLower(strings.TrimSpace(p))] = factory
	}
}

// Complete implements Completer.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	s := req.Settings
	log := logger.WithCommonFields(r.logger, s.Provider, s.Model)

	backend, err := r.backend(ctx, s)
	if err != nil {
		return "", &ModelCallError{Provider: s.Provider, Model: s.Model, Err: err}
	}

	log.Debug("model request",
		zap.Int("prompt_length", utf8.RuneCountInString(req.Prompt)),
		zap.String("prompt_preview", logger.Truncate(req.Prompt, r.maxLogLen)),
	)

	started := time.Now()
	out, err := backend.Complete(ctx, req)
	elapsed := time.Since(started)

	if err != nil {
		log.Error("model call failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		if errors.Is(err, ErrEmptyResponse) {
			return "", err
		}
		return "", &ModelCallError{Provider: s.Provider, Model: s.Model, Err: err}
	}

	if strings.TrimSpace(out) == "" {
		log.Error("model returned empty response", zap.Duration("elapsed", elapsed))
		return "", ErrEmptyResponse
	}

	log.Info("model call succeeded",
		zap.Duration("elapsed", elapsed),
		zap.Int("response_length", utf8.RuneCountInString(out)),
	)
	log.Debug("model response", zap.String("response_preview", logger.Truncate(out, r.maxLogLen)))

	return out, nil
}

func (r *Router) backend(ctx context.Context, s settings.Settings) (Backend, error) {
	key := backendKey{
		provider: strings.ToLower(strings.TrimSpace(s.Provider)),
		apiKey:   s.APIKey,
		baseURL:  s.EffectiveBaseURL(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[key]; ok {
		return b, nil
	}

	factory, ok := r.factories[key.provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", s.Provider)
	}

	b, err := factory(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", key.provider, err)
	}

	// Clients for superseded credentials are dropped; only the latest is kept per provider.
	for k := range r.backends {
		if k.provider == key.provider {
			delete(r.backends, k)
		}
	}
	r.backends[key] = b

	return b, nil
}
