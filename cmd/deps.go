package cmd

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/autocv/internal/ai"
	"github.com/spigell/autocv/internal/ai/gemini"
	"github.com/spigell/autocv/internal/ai/openai"
	"github.com/spigell/autocv/internal/compiler"
	"github.com/spigell/autocv/internal/generator"
	"github.com/spigell/autocv/internal/jobposting"
	"github.com/spigell/autocv/internal/prompts"
	"github.com/spigell/autocv/internal/secrets"
	"github.com/spigell/autocv/internal/settings"
)

// deps is everything a command needs to generate and render a CV.
type deps struct {
	settings  *settings.Store
	generator *generator.Generator
	compiler  *compiler.Compiler
	scraper   *jobposting.Scraper
}

func openSettings(config *Config, logger *zap.Logger) (*settings.Store, error) {
	fallback, err := secrets.Load(secrets.Source{
		Name:           "api key",
		File:           config.APIKeyFile,
		KeyringAccount: config.KeyringAccount,
	})
	if err != nil && !errors.Is(err, secrets.ErrNotConfigured) {
		return nil, fmt.Errorf("loading api key: %w", err)
	}

	store, err := settings.Open(settings.Options{
		Path:           config.SettingsFile,
		FallbackAPIKey: fallback,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}
	return store, nil
}

func newCompiler(config *Config, logger *zap.Logger) *compiler.Compiler {
	return compiler.New(compiler.Options{
		Binary:        config.Latex.Binary,
		Timeout:       config.Latex.Timeout,
		MaxConcurrent: config.Latex.MaxConcurrent,
		ScratchRoot:   config.Latex.ScratchDir,
		Logger:        logger.Named("compiler"),
	})
}

func buildDeps(config *Config, logger *zap.Logger) (*deps, error) {
	store, err := openSettings(config, logger)
	if err != nil {
		return nil, err
	}

	lib, err := prompts.Load(config.PromptsFile)
	if err != nil {
		return nil, err
	}

	router := ai.NewRouter(logger.Named("ai"), config.MaxLogLength)
	router.Register(openai.New, settings.ProviderOpenRouter, settings.ProviderOpenAI, settings.ProviderAnthropic)
	router.Register(gemini.New, settings.ProviderGemini)

	gen, err := generator.New(generator.Options{
		Model:        router,
		Settings:     store,
		Prompts:      lib,
		Logger:       logger.Named("generator"),
		MaxLogLength: config.MaxLogLength,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	scraper := jobposting.NewScraper(jobposting.ScraperOptions{
		Timeout:           config.Scraper.Timeout,
		RequestsPerSecond: config.Scraper.RequestsPerSecond,
		UserAgent:         config.Scraper.UserAgent,
		Logger:            logger.Named("scraper"),
	})

	return &deps{
		settings:  store,
		generator: gen,
		compiler:  newCompiler(config, logger),
		scraper:   scraper,
	}, nil
}
