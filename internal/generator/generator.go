package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/storm-nowcast/internal/domain"
	"github.com/couchcryptid/storm-nowcast/internal/radargrid"
)

// ErrSourceExhausted is returned by NextBatch when the source ran out of
// file times before a full batch could be assembled.
var ErrSourceExhausted = errors.New("example source exhausted")

// Example is one labeled storm image: the predictor stack for a single
// storm object and its target class.
type Example struct {
	StormID string
	// Images holds one extracted sub-image per configured (field, height),
	// in catalog order.
	Images []*radargrid.Field
	Target domain.TargetClass
}

// Batch is a fixed-size set of examples ready for one training step.
type Batch struct {
	Examples []Example
}

// ExampleSource yields all examples of one file time per call. A source
// drains storm-image files in chronological order and returns
// ErrSourceExhausted when no file times remain.
type ExampleSource interface {
	NextFileTime(ctx context.Context, skipDeadStorms bool) ([]Example, error)
}

// Config declares batch shape and class balance for a Generator.
type Config struct {
	NumExamplesPerBatch  int
	NumFileTimesPerBatch int
	Target               domain.TargetSpec
	// Sampling is optional; nil disables downsampling.
	Sampling *SamplingSpec
}

// Validate fails fast on an unusable configuration, once, before any
// file is read.
func (c Config) Validate() error {
	if c.NumExamplesPerBatch <= 0 {
		return fmt.Errorf("examples per batch must be positive, got %d", c.NumExamplesPerBatch)
	}
	if c.NumFileTimesPerBatch <= 0 {
		return fmt.Errorf("file times per batch must be positive, got %d", c.NumFileTimesPerBatch)
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target spec: %w", err)
	}
	if c.Sampling != nil {
		if err := c.Sampling.Validate(c.Target); err != nil {
			return fmt.Errorf("sampling spec: %w", err)
		}
	}
	return nil
}

// Generator streams class-balanced batches out of an ExampleSource.
// It is not safe for concurrent use; run one Generator per training
// worker.
type Generator struct {
	cfg      Config
	source   ExampleSource
	logger   *slog.Logger
	perBatch ClassCounts

	// Carry-over state between NextBatch calls.
	buffer            []Example
	fileTimesInMemory int
}

// New validates the configuration and creates a Generator.
func New(cfg Config, source ExampleSource, logger *slog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		cfg:      cfg,
		source:   source,
		logger:   logger,
		perBatch: PerBatchClassCounts(cfg.NumExamplesPerBatch, cfg.Target, cfg.Sampling),
	}, nil
}

// NextBatch reads file times until the stopping criterion is met, then
// cuts and returns one batch. Examples of already-saturated classes are
// discarded on arrival rather than buffered.
func (g *Generator) NextBatch(ctx context.Context) (Batch, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}

		targets := bufferTargets(g.buffer)
		inMemory, stop := StoppingCriterion(
			g.cfg.NumExamplesPerBatch, g.cfg.NumFileTimesPerBatch,
			g.perBatch, g.fileTimesInMemory, g.cfg.Sampling, g.cfg.Target, targets,
		)
		if stop {
			return g.cutBatch(inMemory), nil
		}

		left := ExamplesLeftByClass(
			g.cfg.NumExamplesPerBatch, g.cfg.NumFileTimesPerBatch,
			g.perBatch, len(g.buffer), g.fileTimesInMemory, inMemory,
		)

		examples, err := g.source.NextFileTime(ctx, !NeedDeadStorms(left))
		if err != nil {
			return Batch{}, err
		}
		g.fileTimesInMemory++

		kept := 0
		for _, ex := range examples {
			if left[ex.Target] == 0 && g.cfg.Sampling != nil {
				continue
			}
			g.buffer = append(g.buffer, ex)
			kept++
		}

		g.logger.Debug("file time read",
			"examples", len(examples),
			"kept", kept,
			"in_memory", len(g.buffer),
			"file_times_in_memory", g.fileTimesInMemory,
		)
	}
}

// cutBatch selects the batch composition from the buffer and resets the
// carry-over state for the next accumulation round.
func (g *Generator) cutBatch(inMemory ClassCounts) Batch {
	wanted := g.perBatch
	selected := make([]Example, 0, g.cfg.NumExamplesPerBatch)
	remaining := make([]Example, 0, len(g.buffer))

	if g.cfg.Sampling == nil {
		selected = append(selected, g.buffer[:g.cfg.NumExamplesPerBatch]...)
		remaining = append(remaining, g.buffer[g.cfg.NumExamplesPerBatch:]...)
	} else {
		taken := make(ClassCounts, len(wanted))
		for _, ex := range g.buffer {
			if taken[ex.Target] < wanted[ex.Target] && len(selected) < g.cfg.NumExamplesPerBatch {
				selected = append(selected, ex)
				taken[ex.Target]++
				continue
			}
			remaining = append(remaining, ex)
		}
	}

	g.logger.Debug("batch cut",
		"batch_size", len(selected),
		"carried_over", len(remaining),
		"in_memory_by_class", fmt.Sprint(inMemory),
	)

	g.buffer = remaining
	g.fileTimesInMemory = 0
	return Batch{Examples: selected}
}

func bufferTargets(buffer []Example) []domain.TargetClass {
	targets := make([]domain.TargetClass, len(buffer))
	for i := range buffer {
		targets[i] = buffer[i].Target
	}
	return targets
}
