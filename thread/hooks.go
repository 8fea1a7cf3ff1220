package thread

import (
	"fmt"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// LoadFunc loads the full flat log. Invoked once at store construction.
// It must tolerate being asked for an empty history.
type LoadFunc func() []core.Message

// SaveFunc persists the full flat log. Invoked at the end of every run.
// It must tolerate an empty sequence.
type SaveFunc func(messages []core.Message) error

// Hooks bundles the external persistence callbacks that frame a run.
// Loading happens once at store construction, so OnRunStart has no required
// action and exists purely as an extension point.
type Hooks struct {
	load   LoadFunc
	save   SaveFunc
	logger logging.Logger
}

// NewHooks constructs persistence hooks. It fails fast when either callback
// is missing: a half-wired persistence contract is a programming error.
func NewHooks(load LoadFunc, save SaveFunc, logger logging.Logger) (*Hooks, error) {
	if load == nil {
		return nil, fmt.Errorf("thread: load callback must be a function, got nil")
	}
	if save == nil {
		return nil, fmt.Errorf("thread: save callback must be a function, got nil")
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Hooks{load: load, save: save, logger: logger}, nil
}

// Load invokes the load callback.
func (h *Hooks) Load() []core.Message { return h.load() }

// OnRunStart is a no-op extension point; loading already happened at store
// construction.
func (h *Hooks) OnRunStart(runID string) {}

// OnRunEnd hands the full flat log to the save callback. A failing save is
// wrapped as SaveFailedError, logged and swallowed: the run that produced
// the messages already completed and must not be retroactively failed by an
// unrelated storage outage.
func (h *Hooks) OnRunEnd(runID string, messages []core.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("thread.save.panic", "run_id", runID, "panic", fmt.Sprint(r))
		}
	}()
	if err := h.save(messages); err != nil {
		saveErr := &core.SaveFailedError{Err: err}
		h.logger.Error("thread.save.failed", "run_id", runID, "count", len(messages), "error", saveErr.Error())
	}
}
