// Package ai defines the model-call contract used by the generation pipeline and
// routes calls to the provider named in the settings snapshot.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/autocv/internal/settings"
)

// ErrEmptyResponse is returned when a provider answers without usable text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Request is a single chat completion: one system instruction, one user prompt,
// and the settings snapshot the call must use from start to finish.
type Request struct {
	Settings settings.Settings
	System   string
	Prompt   string
}

// Completer performs one model call. Implementations must not retry.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ModelCallError wraps a transport or provider failure.
type ModelCallError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("%s model %q call failed: %v", e.Provider, e.Model, e.Err)
}

func (e *ModelCallError) Unwrap() error {
	return e.Err
}
