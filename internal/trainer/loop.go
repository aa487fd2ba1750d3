package trainer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-nowcast/internal/generator"
)

// Model is the slice of a deep-learning framework the control loop
// needs. Implementations bind to an external framework or a gRPC
// training worker; the loop never sees weights or gradients.
type Model interface {
	TrainOnBatch(ctx context.Context, batch generator.Batch) (loss float64, err error)
	EvaluateOnBatch(ctx context.Context, batch generator.Batch) (monitored float64, err error)
	LearningRate() float64
	SetLearningRate(lr float64)
	Save(path string) error
}

// BatchSource yields training or validation batches. Satisfied by
// *generator.Generator.
type BatchSource interface {
	NextBatch(ctx context.Context) (generator.Batch, error)
}

// State is the phase the control loop is in for the current epoch.
type State int

const (
	StateTraining State = iota
	StateValidating
	StateCheckpointDecision
	StateContinueOrStop
)

func (s State) String() string {
	switch s {
	case StateTraining:
		return "training"
	case StateValidating:
		return "validating"
	case StateCheckpointDecision:
		return "checkpoint_decision"
	case StateContinueOrStop:
		return "continue_or_stop"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config declares the shape of one training run.
type Config struct {
	NumEpochs         int
	TrainingBatches   int
	ValidationBatches int // 0 disables validation; checkpoints then save every epoch
	Monitor           string
	CheckpointPath    string
}

// Validate fails fast on an unusable run configuration.
func (c Config) Validate() error {
	if c.NumEpochs < 1 {
		return fmt.Errorf("need at least 1 epoch, got %d", c.NumEpochs)
	}
	if c.TrainingBatches < 1 {
		return fmt.Errorf("need at least 1 training batch per epoch, got %d", c.TrainingBatches)
	}
	if c.ValidationBatches < 0 {
		return fmt.Errorf("validation batches must be non-negative, got %d", c.ValidationBatches)
	}
	if c.CheckpointPath == "" {
		return fmt.Errorf("checkpoint path is required")
	}
	if _, err := monitorMode(c.Monitor); err != nil {
		return err
	}
	return nil
}

// EpochResult records what one pass through the state machine decided.
type EpochResult struct {
	Epoch        int
	TrainingLoss float64
	Monitored    float64
	Saved        bool
	LearningRate float64
	ReducedLR    bool
	DurationSec  float64
}

// Loop is the epoch-level training state machine.
type Loop struct {
	cfg      Config
	model    Model
	training BatchSource
	validn   BatchSource
	logger   *slog.Logger
	clock    clockwork.Clock

	stopping *EarlyStopping
	plateau  *ReduceLROnPlateau
	ckpt     *Checkpointer
}

// NewLoop validates the configuration and assembles the state machine.
// validationGen may be nil when cfg.ValidationBatches is 0.
func NewLoop(cfg Config, model Model, trainingGen, validationGen BatchSource, logger *slog.Logger, clock clockwork.Clock) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ValidationBatches > 0 && validationGen == nil {
		return nil, fmt.Errorf("validation batches configured but no validation generator given")
	}

	mode, _ := monitorMode(cfg.Monitor)
	return &Loop{
		cfg:      cfg,
		model:    model,
		training: trainingGen,
		validn:   validationGen,
		logger:   logger,
		clock:    clock,
		stopping: &EarlyStopping{Patience: DefaultEarlyStoppingPatience, MinDelta: DefaultEarlyStoppingMinDelta, Mode: mode},
		plateau:  &ReduceLROnPlateau{Patience: DefaultPlateauPatience, Factor: DefaultPlateauFactor, Mode: mode},
		ckpt:     &Checkpointer{Path: cfg.CheckpointPath, SaveBestOnly: cfg.ValidationBatches > 0, Mode: mode},
	}, nil
}

// Run executes up to NumEpochs epochs and returns the per-epoch results.
// It stops early when the early-stopping criterion fires or the context
// is cancelled.
func (l *Loop) Run(ctx context.Context) ([]EpochResult, error) {
	results := make([]EpochResult, 0, l.cfg.NumEpochs)

	for epoch := 1; epoch <= l.cfg.NumEpochs; epoch++ {
		result, stop, err := l.runEpoch(ctx, epoch)
		if err != nil {
			return results, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		results = append(results, result)
		if stop {
			l.logger.Info("early stopping", "epoch", epoch, "monitor", l.cfg.Monitor)
			break
		}
	}
	return results, nil
}

func (l *Loop) runEpoch(ctx context.Context, epoch int) (EpochResult, bool, error) {
	start := l.clock.Now()
	state := StateTraining
	result := EpochResult{Epoch: epoch}

	for {
		l.logger.Debug("epoch state", "epoch", epoch, "state", state.String())

		switch state {
		case StateTraining:
			loss, err := l.trainPhase(ctx)
			if err != nil {
				return result, false, err
			}
			result.TrainingLoss = loss
			state = StateValidating

		case StateValidating:
			// Without validation the training loss doubles as the
			// monitored value, as in the no-validation checkpoint setup.
			result.Monitored = result.TrainingLoss
			if l.cfg.ValidationBatches > 0 {
				monitored, err := l.validatePhase(ctx)
				if err != nil {
					return result, false, err
				}
				result.Monitored = monitored
			}
			state = StateCheckpointDecision

		case StateCheckpointDecision:
			if l.ckpt.ShouldSave(result.Monitored) {
				if err := l.model.Save(l.ckpt.Path); err != nil {
					return result, false, fmt.Errorf("save checkpoint: %w", err)
				}
				result.Saved = true
			}
			state = StateContinueOrStop

		case StateContinueOrStop:
			newLR, reduced := l.plateau.Observe(result.Monitored, l.model.LearningRate())
			if reduced {
				l.model.SetLearningRate(newLR)
				l.logger.Info("learning rate reduced", "epoch", epoch, "lr", newLR)
			}
			result.LearningRate = newLR
			result.ReducedLR = reduced
			result.DurationSec = l.clock.Since(start).Seconds()

			stop := l.stopping.Observe(result.Monitored)
			l.logger.Info("epoch complete",
				"epoch", epoch,
				"training_loss", result.TrainingLoss,
				"monitored", result.Monitored,
				"saved", result.Saved,
				"duration_sec", result.DurationSec,
			)
			return result, stop, nil
		}
	}
}

func (l *Loop) trainPhase(ctx context.Context) (float64, error) {
	var total float64
	for i := 0; i < l.cfg.TrainingBatches; i++ {
		batch, err := l.training.NextBatch(ctx)
		if err != nil {
			return 0, fmt.Errorf("training batch %d: %w", i, err)
		}
		loss, err := l.model.TrainOnBatch(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("train on batch %d: %w", i, err)
		}
		total += loss
	}
	return total / float64(l.cfg.TrainingBatches), nil
}

func (l *Loop) validatePhase(ctx context.Context) (float64, error) {
	var total float64
	for i := 0; i < l.cfg.ValidationBatches; i++ {
		batch, err := l.validn.NextBatch(ctx)
		if err != nil {
			return 0, fmt.Errorf("validation batch %d: %w", i, err)
		}
		monitored, err := l.model.EvaluateOnBatch(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("evaluate batch %d: %w", i, err)
		}
		total += monitored
	}
	return total / float64(l.cfg.ValidationBatches), nil
}
