package generator

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/autocv/internal/ai"
	"github.com/spigell/autocv/internal/jobposting"
	"github.com/spigell/autocv/internal/latex"
	"github.com/spigell/autocv/internal/prompts"
)

// Stage names.
const (
	StageDraft     = "draft"
	StageReview    = "review"
	StageNormalize = "normalize"
	StageDocument  = "document"
)

// Stage is one step of the pipeline. Run reads state and replaces state.Output.
type Stage interface {
	Name() string
	Run(ctx context.Context, deps Deps, state *State) error
}

// Deps aggregates dependencies shared across all stages.
type Deps struct {
	Model    ai.Completer
	Settings SettingsSource
	Prompts  *prompts.Library
}

// State is threaded through the stages of one run.
type State struct {
	Profile string
	Job     jobposting.Posting
	Output  string
}

// DefaultStages returns the draft, review, normalize and document stages in order.
func DefaultStages() []Stage {
	return []Stage{draftStage{}, reviewStage{}, normalizeStage{}, documentStage{}}
}

type draftStage struct{}

func (draftStage) Name() string { return StageDraft }

func (draftStage) Run(ctx context.Context, deps Deps, state *State) error {
	prompt := prompts.Build(deps.Prompts.Content, map[string]string{
		prompts.KeyUserDescription: state.Profile,
		prompts.KeyJobDescription:  state.Job.Description,
		prompts.KeyJobTitle:        state.Job.Title,
	})
	return complete(ctx, deps, prompt, state)
}

type reviewStage struct{}

func (reviewStage) Name() string { return StageReview }

func (reviewStage) Run(ctx context.Context, deps Deps, state *State) error {
	prompt := prompts.Build(deps.Prompts.Review, map[string]string{
		prompts.KeyCVText: state.Output,
	})
	return complete(ctx, deps, prompt, state)
}

type normalizeStage struct{}

func (normalizeStage) Name() string { return StageNormalize }

func (normalizeStage) Run(_ context.Context, _ Deps, state *State) error {
	state.Output = latex.Normalize(state.Output)
	return nil
}

// documentStage embeds the normalized body into the library's document template.
// Every non-blank line of the body becomes its own paragraph.
type documentStage struct{}

func (documentStage) Name() string { return StageDocument }

func (documentStage) Run(_ context.Context, deps Deps, state *State) error {
	if strings.TrimSpace(deps.Prompts.Document) == "" {
		return errors.New("document template is empty")
	}

	var paragraphs []string
	for _, line := range strings.Split(state.Output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}

	state.Output = prompts.Build(deps.Prompts.Document, map[string]string{
		prompts.KeyContent: strings.Join(paragraphs, "\n\n"),
	})
	return nil
}

// complete takes a fresh settings snapshot for every call.
func complete(ctx context.Context, deps Deps, prompt string, state *State) error {
	out, err := deps.Model.Complete(ctx, ai.Request{
		Settings: deps.Settings.Snapshot(),
		System:   deps.Prompts.System,
		Prompt:   prompt,
	})
	if err != nil {
		return err
	}
	state.Output = out
	return nil
}
