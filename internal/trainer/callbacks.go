// Package trainer drives epoch-level training control as an explicit
// state machine: Training -> Validating -> CheckpointDecision ->
// ContinueOrStop. The deep-learning framework itself is behind the
// Model interface; this package owns only the control flow that decides
// when to checkpoint, when to cut the learning rate, and when to stop.
package trainer

import "fmt"

// Mode says whether a larger monitored value is better (skill scores)
// or worse (loss functions).
type Mode int

const (
	ModeMin Mode = iota
	ModeMax
)

// Defaults match the long-standing tornado-CNN training setup.
const (
	DefaultEarlyStoppingPatience = 6
	DefaultEarlyStoppingMinDelta = 0.005

	DefaultPlateauPatience = 3
	DefaultPlateauFactor   = 0.2
)

// EarlyStopping stops training once the monitored metric has gone
// Patience epochs without improving by at least MinDelta.
type EarlyStopping struct {
	Patience int
	MinDelta float64
	Mode     Mode

	best    float64
	wait    int
	started bool
}

// Observe records one epoch's monitored value and reports whether
// training should stop.
func (e *EarlyStopping) Observe(value float64) bool {
	if e.improved(value, e.best, e.MinDelta) || !e.started {
		e.best = value
		e.wait = 0
		e.started = true
		return false
	}

	e.wait++
	return e.wait >= e.Patience
}

func (e *EarlyStopping) improved(value, best, delta float64) bool {
	if !e.started {
		return true
	}
	if e.Mode == ModeMax {
		return value > best+delta
	}
	return value < best-delta
}

// ReduceLROnPlateau multiplies the learning rate by Factor after
// Patience epochs without improvement, never dropping below MinLR.
type ReduceLROnPlateau struct {
	Patience int
	Factor   float64
	MinLR    float64
	Mode     Mode

	best    float64
	wait    int
	started bool
}

// Observe records one epoch's monitored value and returns the learning
// rate to use next epoch, plus whether it was just reduced.
func (r *ReduceLROnPlateau) Observe(value, currentLR float64) (newLR float64, reduced bool) {
	improved := false
	if !r.started {
		improved = true
	} else if r.Mode == ModeMax {
		improved = value > r.best
	} else {
		improved = value < r.best
	}

	if improved {
		r.best = value
		r.wait = 0
		r.started = true
		return currentLR, false
	}

	r.wait++
	if r.wait < r.Patience {
		return currentLR, false
	}

	r.wait = 0
	newLR = currentLR * r.Factor
	if newLR < r.MinLR {
		newLR = r.MinLR
	}
	return newLR, newLR != currentLR
}

// Checkpointer saves the model after an epoch. With SaveBestOnly it
// saves only when the monitored metric improved on the best seen so far;
// otherwise it saves unconditionally (the no-validation setup).
type Checkpointer struct {
	Path         string
	SaveBestOnly bool
	Mode         Mode

	best    float64
	started bool
}

// ShouldSave decides whether this epoch's model is written to Path.
func (c *Checkpointer) ShouldSave(value float64) bool {
	if !c.SaveBestOnly {
		return true
	}

	improved := !c.started
	if c.started {
		if c.Mode == ModeMax {
			improved = value > c.best
		} else {
			improved = value < c.best
		}
	}

	if improved {
		c.best = value
		c.started = true
	}
	return improved
}

// monitorMode maps a monitor name to its comparison mode. Loss is
// minimized; every skill score is maximized.
func monitorMode(monitor string) (Mode, error) {
	switch monitor {
	case "loss":
		return ModeMin, nil
	case "binary_peirce_score", "binary_csi", "binary_pod":
		return ModeMax, nil
	default:
		return ModeMin, fmt.Errorf("unknown monitor %q", monitor)
	}
}
