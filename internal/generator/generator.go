// Package generator turns a candidate profile and a job posting into LaTeX CV
// source by running the draft, review and normalize stages in order.
package generator

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spigell/autocv/internal/ai"
	"github.com/spigell/autocv/internal/jobposting"
	"github.com/spigell/autocv/internal/logger"
	"github.com/spigell/autocv/internal/prompts"
	"github.com/spigell/autocv/internal/settings"
)

const tracerName = "github.com/spigell/autocv/internal/generator"

// SettingsSource hands out the settings in effect right now.
type SettingsSource interface {
	Snapshot() settings.Settings
}

// StageError reports which stage aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options configures a Generator.
type Options struct {
	Model        ai.Completer
	Settings     SettingsSource
	Prompts      *prompts.Library
	Logger       *zap.Logger
	MaxLogLength int
	Tracer       trace.Tracer
}

// Generator runs the CV pipeline. It is safe for concurrent use.
type Generator struct {
	model     ai.Completer
	settings  SettingsSource
	prompts   *prompts.Library
	logger    *zap.Logger
	maxLogLen int
	tracer    trace.Tracer
	stages    []Stage
}

// New validates opts and builds the default stage list.
func New(opts Options) (*Generator, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("model completer is required")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("settings source is required")
	}
	lib := opts.Prompts
	if lib == nil {
		var err error
		if lib, err = prompts.Default(); err != nil {
			return nil, fmt.Errorf("load default prompts: %w", err)
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = 200
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Generator{
		model:     opts.Model,
		settings:  opts.Settings,
		prompts:   lib,
		logger:    log,
		maxLogLen: maxLogLen,
		tracer:    tracer,
		stages:    DefaultStages(),
	}, nil
}

// Generate runs every stage and returns a complete LaTeX document whose body is
// the escaped CV text.
func (g *Generator) Generate(ctx context.Context, profileText string, job jobposting.Posting) (string, error) {
	ctx, span := g.tracer.Start(ctx, "Generate")
	defer span.End()

	state := &State{Profile: profileText, Job: job}
	deps := Deps{
		Model:    g.model,
		Settings: g.settings,
		Prompts:  g.prompts,
	}

	started := time.Now()
	if err := Run(ctx, g.tracer, g.logger, g.maxLogLen, deps, g.stages, state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("cv.length", utf8.RuneCountInString(state.Output)))
	g.logger.Info("cv generated",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("length", utf8.RuneCountInString(state.Output)),
	)

	return state.Output, nil
}

// Run executes stages sequentially against state. The first failure aborts the
// run and is returned as a *StageError.
func Run(ctx context.Context, tracer trace.Tracer, log *zap.Logger, maxLogLen int, deps Deps, stages []Stage, state *State) error {
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", zap.String(logger.FieldStage, stage.Name()), zap.Error(err))
			return &StageError{Stage: stage.Name(), Err: err}
		}

		stageCtx, span := tracer.Start(ctx, stage.Name())
		stageLog := log.With(zap.String(logger.FieldStage, stage.Name()))

		started := time.Now()
		err := stage.Run(stageCtx, deps, state)
		elapsed := time.Since(started)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			stageLog.Error("stage failed", zap.Duration("elapsed", elapsed), zap.Error(err))
			return &StageError{Stage: stage.Name(), Err: err}
		}

		span.SetAttributes(attribute.Int("output.length", utf8.RuneCountInString(state.Output)))
		span.End()

		stageLog.Info("stage completed",
			zap.Duration("elapsed", elapsed),
			zap.Int("output_length", utf8.RuneCountInString(state.Output)),
		)
		stageLog.Debug("stage output", zap.String("output_preview", logger.Truncate(state.Output, maxLogLen)))
	}

	return nil
}
