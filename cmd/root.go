package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/autocv/internal/logger"
)

const (
	app       = "autocv"
	envPrefix = "AUTOCV"
)

type Config struct {
	Listen         string         `mapstructure:"listen"`
	CORSOrigins    string         `mapstructure:"cors-origins"`
	SettingsFile   string         `mapstructure:"settings-file"`
	PromptsFile    string         `mapstructure:"prompts-file"`
	APIKeyFile     string         `mapstructure:"api-key-file"`
	KeyringAccount string         `mapstructure:"keyring-account"`
	MaxLogLength   int            `mapstructure:"max-log-length"`
	RequestTimeout time.Duration  `mapstructure:"request-timeout"`
	Latex          *LatexConfig   `mapstructure:"latex"`
	Scraper        *ScraperConfig `mapstructure:"scraper"`
}

type LatexConfig struct {
	Binary        string        `mapstructure:"binary"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max-concurrent"`
	ScratchDir    string        `mapstructure:"scratch-dir"`
}

type ScraperConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	UserAgent         string        `mapstructure:"user-agent"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "autocv generates job-tailored CVs with an LLM and renders them to PDF with LaTeX",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults(viper.GetViper())

	if err := viper.BindEnv("cors-origins", envPrefix+"_CORS_ORIGINS", "CORS_ORIGINS"); err != nil {
		log.Fatalf("binding CORS_ORIGINS environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is autocv.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8000")
	v.SetDefault("cors-origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("settings-file", "settings.yaml")
	v.SetDefault("prompts-file", "")
	v.SetDefault("api-key-file", "")
	v.SetDefault("keyring-account", "")
	v.SetDefault("max-log-length", 200)
	v.SetDefault("request-timeout", 5*time.Minute)
	v.SetDefault("latex.binary", "pdflatex")
	v.SetDefault("latex.timeout", 60*time.Second)
	v.SetDefault("latex.max-concurrent", 2)
	v.SetDefault("latex.scratch-dir", "")
	v.SetDefault("scraper.timeout", 10*time.Second)
	v.SetDefault("scraper.requests-per-second", 1.0)
	v.SetDefault("scraper.user-agent", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if config.Latex == nil {
		config.Latex = &LatexConfig{}
	}
	if config.Scraper == nil {
		config.Scraper = &ScraperConfig{}
	}

	return config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
