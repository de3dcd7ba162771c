package pipeline

import (
	"errors"
	"fmt"
)

var ErrEmptyQuestion = errors.New("question is required")

// SetupError reports that the dataset could not be resolved or bound. The
// runner is unusable after it.
type SetupError struct {
	Source string
	Err    error
}

func (e *SetupError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("setup: %v", e.Err)
	}
	return fmt.Sprintf("setup %s: %v", e.Source, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// GenerationError reports a failed language-model call. Stage is either
// StageAwaitingQuery or StageAwaitingAnswer.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
