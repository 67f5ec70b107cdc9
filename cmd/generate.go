package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/autocv/internal/compiler"
	"github.com/spigell/autocv/internal/jobposting"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a CV for one job posting and write it to disk",
	Run: func(cmd *cobra.Command, _ []string) {
		generate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("job-file", "", "file with the job posting text")
	generateCmd.Flags().String("job-url", "", "job posting url to scrape")
	generateCmd.Flags().String("profile-file", "", "file with the candidate profile (plain text or markdown)")
	generateCmd.Flags().StringP("output", "o", "cv.pdf", "where to write the rendered pdf")
	generateCmd.Flags().String("tex-output", "", "also write the generated latex source to this file")

	generateCmd.MarkFlagsOneRequired("job-file", "job-url")
	generateCmd.MarkFlagsMutuallyExclusive("job-file", "job-url")
	generateCmd.MarkFlagRequired("profile-file")
}

func generate(cmd *cobra.Command) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	d, err := buildDeps(config, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}

	job, err := loadJob(ctx, d.scraper, flagString(cmd, "job-file"), flagString(cmd, "job-url"))
	if err != nil {
		logger.Fatal("loading job posting", zap.Error(err))
	}

	profile, err := readTextFile(flagString(cmd, "profile-file"))
	if err != nil {
		logger.Fatal("loading profile", zap.Error(err))
	}

	snapshot := d.settings.Snapshot()
	logger.Info("generating cv",
		zap.String("job_title", job.Title),
		zap.String("ai_provider", snapshot.Provider),
		zap.String("ai_model", snapshot.Model),
	)

	source, err := d.generator.Generate(ctx, profile, job)
	if err != nil {
		logger.Fatal("generating cv", zap.Error(err))
	}

	if texOut := flagString(cmd, "tex-output"); texOut != "" {
		if err := os.WriteFile(texOut, []byte(source), 0o644); err != nil {
			logger.Fatal("writing latex source", zap.Error(err))
		}
		logger.Info("latex source written", zap.String("filename", texOut))
	}

	pdf, err := d.compiler.Compile(ctx, source)
	if err != nil {
		var compErr *compiler.CompilationError
		if errors.As(err, &compErr) && compErr.Log != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), compErr.Log)
		}
		logger.Fatal("compiling cv", zap.Error(err))
	}

	output := flagString(cmd, "output")
	if err := os.WriteFile(output, pdf, 0o644); err != nil {
		logger.Fatal("writing pdf", zap.Error(err))
	}

	logger.Info("cv written", zap.String("filename", output), zap.Int("size", len(pdf)))
}

type jobFetcher interface {
	Fetch(ctx context.Context, url string) (jobposting.Posting, error)
}

func loadJob(ctx context.Context, fetcher jobFetcher, file, url string) (jobposting.Posting, error) {
	switch {
	case url != "":
		return fetcher.Fetch(ctx, url)
	case file != "":
		text, err := readTextFile(file)
		if err != nil {
			return jobposting.Posting{}, err
		}
		return jobposting.FromText(text), nil
	default:
		return jobposting.Posting{}, errors.New("either job file or job url is required")
	}
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("file %q is empty", path)
	}
	return text, nil
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(v)
}
