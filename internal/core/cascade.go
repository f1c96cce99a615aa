package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
	"github.com/baxromumarov/shelf-harvester/internal/observability"
	"github.com/baxromumarov/shelf-harvester/internal/scraper"
)

// Step is one candidate of a first-success cascade.
type Step[T any] struct {
	Label string
	Run   func(ctx context.Context) (T, error)
}

// Attempt records how one step went.
type Attempt struct {
	Label     string
	Kind      observability.EventKind
	Items     int
	ErrorType string
	Err       error
	Duration  time.Duration
}

// Won is the outcome of First. Label is empty when no step was accepted.
type Won[T any] struct {
	Value T
	Label string
	Trace []Attempt
}

func (w Won[T]) OK() bool { return w.Label != "" }

// CascadeOptions configure First.
type CascadeOptions struct {
	Pipeline string
	Timeout  time.Duration
	Sink     observability.Sink
}

// First runs steps strictly in order and returns the first value whose size
// is positive. Step errors, timeouts and panics are recorded and skipped;
// First itself never fails. Values are never combined across steps.
func First[T any](ctx context.Context, opts CascadeOptions, steps []Step[T], size func(T) int) Won[T] {
	sink := opts.Sink
	if sink == nil {
		sink = observability.Discard
	}
	var won Won[T]

	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		sink.Emit(observability.Event{Pipeline: opts.Pipeline, Strategy: step.Label, Kind: observability.EventAttempted})

		start := time.Now()
		value, err := runStep(ctx, opts.Timeout, step)
		attempt := Attempt{Label: step.Label, Duration: time.Since(start)}

		switch {
		case err != nil:
			attempt.Kind = observability.EventFailed
			attempt.Err = err
			attempt.ErrorType = observability.Classify(err)
		case size(value) > 0:
			attempt.Kind = observability.EventSucceeded
			attempt.Items = size(value)
		default:
			attempt.Kind = observability.EventEmpty
		}

		won.Trace = append(won.Trace, attempt)
		sink.Emit(observability.Event{
			Pipeline:  opts.Pipeline,
			Strategy:  step.Label,
			Kind:      attempt.Kind,
			Items:     attempt.Items,
			Err:       attempt.Err,
			ErrorType: attempt.ErrorType,
			Duration:  attempt.Duration,
		})

		if attempt.Kind == observability.EventSucceeded {
			won.Value = value
			won.Label = step.Label
			return won
		}
	}

	sink.Emit(observability.Event{Pipeline: opts.Pipeline, Kind: observability.EventExhausted, Err: catalog.ErrExhausted})
	return won
}

func runStep[T any](ctx context.Context, timeout time.Duration, step Step[T]) (value T, err error) {
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = fmt.Errorf("%w: %s: %v", observability.ErrExtractionPanic, step.Label, r)
		}
	}()

	value, err = step.Run(stepCtx)
	if err == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		var zero T
		return zero, fmt.Errorf("%s: %w", step.Label, context.DeadlineExceeded)
	}
	return value, err
}

// Candidate is one product source of a category harvest.
type Candidate struct {
	Label   string
	Extract func(ctx context.Context) (scraper.Outcome, error)
}

// Harvest is the winning product list of a cascade run.
type Harvest struct {
	Products []catalog.Product
	Strategy string
	Trace    []Attempt
}

func (h Harvest) Exhausted() bool { return h.Strategy == "" }

// Cascade turns candidates into normalized, deduplicated product lists and
// keeps the first non-empty one.
type Cascade struct {
	Normalizer *scraper.Normalizer
	Options    CascadeOptions
}

func NewCascade(opts CascadeOptions) *Cascade {
	if opts.Pipeline == "" {
		opts.Pipeline = "products"
	}
	return &Cascade{Normalizer: scraper.NewNormalizer(), Options: opts}
}

func (c *Cascade) Run(ctx context.Context, candidates []Candidate) Harvest {
	steps := make([]Step[[]catalog.Product], 0, len(candidates))
	for _, cand := range candidates {
		steps = append(steps, Step[[]catalog.Product]{
			Label: cand.Label,
			Run: func(ctx context.Context) ([]catalog.Product, error) {
				out, err := cand.Extract(ctx)
				if err != nil {
					return nil, err
				}
				return scraper.Dedup(c.Normalizer.NormalizeAll(out.Items, cand.Label)), nil
			},
		})
	}

	won := First(ctx, c.Options, steps, func(p []catalog.Product) int { return len(p) })
	return Harvest{Products: won.Value, Strategy: won.Label, Trace: won.Trace}
}
