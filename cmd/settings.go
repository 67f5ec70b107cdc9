package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/autocv/internal/secrets"
	"github.com/spigell/autocv/internal/settings"
)

const promptOtherModel = "Other (type model id)"

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the generation settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings with the api key redacted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		defer logger.Sync()

		store, err := settingsStore(logger)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(store.Snapshot().Redacted())
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update settings; without flags asks interactively",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		defer logger.Sync()

		store, err := settingsStore(logger)
		if err != nil {
			return err
		}

		patch, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}
		if len(patch) == 0 {
			if patch, err = askSettings(store.Snapshot()); err != nil {
				return err
			}
		}

		updated, err := store.Update(patch)
		if err != nil {
			return fmt.Errorf("updating settings: %w", err)
		}

		out, err := yaml.Marshal(updated.Redacted())
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var settingsStoreKeyCmd = &cobra.Command{
	Use:   "store-key",
	Short: "Save an api key in the OS keyring under the configured keyring-account",
	RunE: func(_ *cobra.Command, _ []string) error {
		config, err := getConfig()
		if err != nil {
			return err
		}
		if strings.TrimSpace(config.KeyringAccount) == "" {
			return errors.New("keyring-account is not configured")
		}

		key, err := (&promptui.Prompt{
			Label:    "API key",
			Mask:     '*',
			Validate: notEmpty,
		}).Run()
		if err != nil {
			return err
		}

		return secrets.Store(config.KeyringAccount, key)
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsStoreKeyCmd)

	f := settingsSetCmd.Flags()
	f.String("provider", "", "provider id (openrouter, openai, anthropic, gemini)")
	f.String("model", "", "model id")
	f.String("api-key", "", "provider api key")
	f.String("base-url", "", "override the provider base url")
	f.Float64("temperature", 0, "sampling temperature (0-2)")
	f.Int("max-tokens", 0, "maximum output tokens, 0 leaves it to the provider")
}

func settingsStore(logger *zap.Logger) (*settings.Store, error) {
	config, err := getConfig()
	if err != nil {
		return nil, err
	}
	return openSettings(config, logger)
}

// patchFromFlags collects only the flags the user actually set.
func patchFromFlags(cmd *cobra.Command) (map[string]any, error) {
	patch := map[string]any{}
	f := cmd.Flags()

	for flag, key := range map[string]string{
		"provider": "provider",
		"model":    "model",
		"api-key":  "api_key",
		"base-url": "base_url",
	} {
		if f.Changed(flag) {
			v, err := f.GetString(flag)
			if err != nil {
				return nil, err
			}
			patch[key] = v
		}
	}
	if f.Changed("temperature") {
		v, err := f.GetFloat64("temperature")
		if err != nil {
			return nil, err
		}
		patch["temperature"] = v
	}
	if f.Changed("max-tokens") {
		v, err := f.GetInt("max-tokens")
		if err != nil {
			return nil, err
		}
		patch["max_tokens"] = v
	}

	return patch, nil
}

func askSettings(current settings.Settings) (map[string]any, error) {
	providers := settings.Providers()
	names := make([]string, len(providers))
	cursor := 0
	for i, p := range providers {
		names[i] = fmt.Sprintf("%s (%s)", p.Name, p.ID)
		if p.ID == current.Provider {
			cursor = i
		}
	}

	idx, _, err := (&promptui.Select{
		Label:     "Provider",
		Items:     names,
		CursorPos: cursor,
	}).Run()
	if err != nil {
		return nil, err
	}
	provider := providers[idx]

	model, err := askModel(provider, current)
	if err != nil {
		return nil, err
	}

	temperature, err := (&promptui.Prompt{
		Label:   "Temperature",
		Default: strconv.FormatFloat(current.Temperature, 'f', -1, 64),
		Validate: func(s string) error {
			_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return err
		},
	}).Run()
	if err != nil {
		return nil, err
	}

	key, err := (&promptui.Prompt{
		Label: "API key (empty keeps the current one)",
		Mask:  '*',
	}).Run()
	if err != nil {
		return nil, err
	}

	patch := map[string]any{
		"provider":    provider.ID,
		"model":       model,
		"temperature": strings.TrimSpace(temperature),
	}
	if provider.ID != current.Provider {
		patch["base_url"] = ""
	}
	if strings.TrimSpace(key) != "" {
		patch["api_key"] = key
	}

	return patch, nil
}

func askModel(provider settings.Provider, current settings.Settings) (string, error) {
	items := make([]string, 0, len(provider.Models)+1)
	cursor := 0
	for i, m := range provider.Models {
		items = append(items, m.ID)
		if m.ID == current.Model {
			cursor = i
		}
	}
	items = append(items, promptOtherModel)

	_, choice, err := (&promptui.Select{
		Label:     "Model",
		Items:     items,
		CursorPos: cursor,
	}).Run()
	if err != nil {
		return "", err
	}
	if choice != promptOtherModel {
		return choice, nil
	}

	return (&promptui.Prompt{
		Label:    "Model id",
		Default:  current.Model,
		Validate: notEmpty,
	}).Run()
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value must not be empty")
	}
	return nil
}
