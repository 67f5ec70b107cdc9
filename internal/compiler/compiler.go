// Package compiler renders LaTeX source to PDF with an external toolchain
// (pdflatex by default). Every run happens in its own scratch directory that is
// removed before Compile returns.
package compiler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultBinary is the toolchain executable looked up in PATH.
	DefaultBinary = "pdflatex"
	// DefaultTimeout bounds a single compilation.
	DefaultTimeout = 60 * time.Second

	sourceName = "cv.tex"
	outputName = "cv.pdf"
	tracerName = "github.com/spigell/autocv/internal/compiler"
	waitDelay  = 2 * time.Second
)

// Options configures a Compiler.
type Options struct {
	// Binary is the toolchain executable. Empty means DefaultBinary.
	Binary string
	// Timeout bounds one run. Zero disables the bound; negative means DefaultTimeout.
	Timeout time.Duration
	// MaxConcurrent caps parallel toolchain processes. Values below 1 mean 1.
	MaxConcurrent int
	// ScratchRoot is the parent of per-run directories. Empty means os.TempDir().
	ScratchRoot string
	Logger      *zap.Logger
	Tracer      trace.Tracer
}

// Status describes the toolchain installation. Version is nil when the
// toolchain is missing.
type Status struct {
	Installed bool    `json:"installed"`
	Version   *string `json:"version"`
}

// Compiler turns LaTeX source into PDF bytes. It is safe for concurrent use.
type Compiler struct {
	binary      string
	timeout     time.Duration
	scratchRoot string
	slots       *semaphore.Weighted
	logger      *zap.Logger
	tracer      trace.Tracer
}

// New builds a Compiler from opts.
func New(opts Options) *Compiler {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	timeout := opts.Timeout
	if timeout < 0 {
		timeout = DefaultTimeout
	}
	slots := opts.MaxConcurrent
	if slots < 1 {
		slots = 1
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Compiler{
		binary:      binary,
		timeout:     timeout,
		scratchRoot: opts.ScratchRoot,
		slots:       semaphore.NewWeighted(int64(slots)),
		logger:      log,
		tracer:      tracer,
	}
}

// Compile renders source and returns the PDF. Failures to produce the document
// are returned as *CompilationError; environment failures (scratch directory,
// file I/O) are returned as plain errors.
func (c *Compiler) Compile(ctx context.Context, source string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "Compile")
	defer span.End()
	span.SetAttributes(attribute.Int("latex.source_length", len(source)))

	pdf, err := c.compile(ctx, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("latex.pdf_size", len(pdf)))
	return pdf, nil
}

func (c *Compiler) compile(ctx context.Context, source string) ([]byte, error) {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return nil, &CompilationError{Message: "latex compilation canceled", Err: err}
	}
	defer c.slots.Release(1)

	dir, err := os.MkdirTemp(c.scratchRoot, "autocv-")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	log := c.logger.With(zap.String("dir", dir))
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove scratch directory", zap.Error(err))
		}
	}()

	texPath := filepath.Join(dir, sourceName)
	if err := os.WriteFile(texPath, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write latex source: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.binary,
		"-interaction=nonstopmode",
		"-output-directory="+dir,
		texPath,
	)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	started := time.Now()
	output, runErr := cmd.CombinedOutput()
	elapsed := time.Since(started)

	if runErr != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			msg := "latex compilation canceled"
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				msg = "latex compilation timed out"
			}
			log.Error(msg, zap.Duration("elapsed", elapsed))
			return nil, &CompilationError{Message: msg, Log: string(output), Err: ctxErr}
		}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			log.Error("latex compilation failed",
				zap.Duration("elapsed", elapsed),
				zap.Int("exit_code", exitErr.ExitCode()),
			)
			return nil, &CompilationError{
				Message:  "latex compilation failed",
				Log:      string(output),
				ExitCode: exitErr.ExitCode(),
				Err:      runErr,
			}
		}
		log.Error("latex toolchain could not be started", zap.String("binary", c.binary), zap.Error(runErr))
		return nil, &CompilationError{
			Message: fmt.Sprintf("latex toolchain %q could not be started", c.binary),
			Log:     string(output),
			Err:     runErr,
		}
	}

	pdf, err := os.ReadFile(filepath.Join(dir, outputName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &CompilationError{Message: "latex compilation produced no pdf", Log: string(output), Err: err}
		}
		return nil, fmt.Errorf("read compiled pdf: %w", err)
	}

	log.Info("latex compiled",
		zap.Duration("elapsed", elapsed),
		zap.Int("pdf_size", len(pdf)),
	)

	return pdf, nil
}

// CheckToolchain runs "<binary> -version". Any failure reports not installed.
func (c *Compiler) CheckToolchain(ctx context.Context) Status {
	cmd := exec.CommandContext(ctx, c.binary, "-version")
	cmd.WaitDelay = waitDelay

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		c.logger.Debug("latex toolchain unavailable", zap.String("binary", c.binary), zap.Error(err))
		return Status{}
	}

	scanner := bufio.NewScanner(&stdout)
	version := ""
	if scanner.Scan() {
		version = strings.TrimSpace(scanner.Text())
	}

	return Status{Installed: true, Version: &version}
}
