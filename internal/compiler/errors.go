package compiler

import "fmt"

// CompilationError is returned when the toolchain does not produce a PDF.
// Log holds the combined toolchain output for diagnosis.
type CompilationError struct {
	Message  string
	Log      string
	ExitCode int
	Err      error
}

func (e *CompilationError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s (exit code %d)", e.Message, e.ExitCode)
	}
	return e.Message
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}
