// Package pipeline composes the Validate, Normalize, and Deduplicate stages
// into the ordered processing chain every extracted batch passes through
// before reaching a Repository.
package pipeline

import (
	"context"
	"fmt"

	"webharvest/internal/domain/entity"
	"webharvest/internal/usecase/dedupe"
	"webharvest/internal/usecase/normalize"
	"webharvest/internal/usecase/validate"
)

// Report summarizes one Pipeline.Run call.
type Report struct {
	Input           int
	Output          int
	ValidateStats   validate.Stats
	NormalizeStats  normalize.Stats
}

// ErrPipelineFailed wraps a non-AI stage failure. Per the engine's failure
// policy, a batch that cannot be validated or deduplicated aborts the run
// rather than silently dropping records; AI failures inside Normalize never
// reach this error since Normalizer always falls back internally.
type ErrPipelineFailed struct {
	Stage string
	Err   error
}

func (e *ErrPipelineFailed) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *ErrPipelineFailed) Unwrap() error { return e.Err }

// Pipeline runs Validate, then Normalize, then Deduplicate, in that fixed
// canonical order; the stage list cannot be changed.
type Pipeline struct {
	validator    *validate.Validator
	normalizer   *normalize.Normalizer
	deduplicator *dedupe.Deduplicator
}

// New builds the canonical Pipeline.
func New(normalizer *normalize.Normalizer) *Pipeline {
	return &Pipeline{
		validator:    validate.New(),
		normalizer:   normalizer,
		deduplicator: dedupe.New(),
	}
}

// Run executes Validate -> Normalize -> Deduplicate over xs. A panic inside
// the Validate or Deduplicate stage (the two non-AI stages; Normalize's AI
// path already guards its own failures) is recovered and surfaced as
// ErrPipelineFailed instead of crashing the caller.
func (p *Pipeline) Run(ctx context.Context, xs []*entity.Record) (out []*entity.Record, report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ErrPipelineFailed{Stage: "validate_or_dedupe", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	validated, vStats := p.validator.Run(xs)

	normalized, nStats := p.normalizer.Normalize(ctx, validated)

	deduped := p.deduplicator.Run(normalized)

	report = Report{
		Input:          len(xs),
		Output:         len(deduped),
		ValidateStats:  vStats,
		NormalizeStats: nStats,
	}
	return deduped, report, nil
}
