package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"production-dashboard-backend/internal/model"
	"production-dashboard-backend/internal/store"
)

// Threshold levels for production progress alerts.
const (
	LevelNone      = 0
	LevelWarning   = 1 // >= 75%
	LevelCritical  = 2 // >= 90%
	LevelCompleted = 3 // >= 100%
)

// Event is one debounced threshold crossing for a machine.
type Event struct {
	MachineID   int64   `json:"machine_id"`
	MachineName string  `json:"machine_name"`
	Level       int     `json:"level"`
	Percent     float64 `json:"percent"`
	Message     string  `json:"alert"`
}

// Notifier receives debounced alert events.
type Notifier interface {
	Notify(event Event)
}

// Engine watches machine progress and emits at most one notification per
// threshold crossing per production run. The last-emitted level lives on
// the engine instance, so separate engines (and tests) keep isolated
// alert history.
type Engine struct {
	store     store.Store
	notifiers []Notifier
	interval  time.Duration

	mu         sync.Mutex
	lastLevels map[int64]int
}

// NewEngine creates an alert engine evaluating on the given interval.
func NewEngine(s store.Store, interval time.Duration, notifiers ...Notifier) *Engine {
	return &Engine{
		store:      s,
		notifiers:  notifiers,
		interval:   interval,
		lastLevels: make(map[int64]int),
	}
}

// Name implements jobs.Job.
func (e *Engine) Name() string { return "production-alerts" }

// Interval implements jobs.Job.
func (e *Engine) Interval() time.Duration { return e.interval }

// Run implements jobs.Job.
func (e *Engine) Run(ctx context.Context) error {
	events, err := e.Evaluate(ctx)
	if err != nil {
		return err
	}
	for _, event := range events {
		for _, n := range e.notifiers {
			n.Notify(event)
		}
	}
	return nil
}

// Evaluate computes the threshold level of every running machine with a
// target and returns one event per level increase since the last pass.
// Dropping back below the warning threshold clears the stored level so a
// future re-crossing alerts again.
func (e *Engine) Evaluate(ctx context.Context) ([]Event, error) {
	machines, err := e.store.MachinesWithTarget(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event
	for i := range machines {
		m := &machines[i]
		if m.WorkOrder == nil || m.Status != model.StatusRunning {
			continue
		}

		percent := float64(m.ProducedQty) / float64(m.TargetQty) * 100
		level, message := classify(m.Name, percent)

		if level == LevelNone {
			if percent < 75 {
				e.lastLevels[m.ID] = LevelNone
			}
			continue
		}

		if level != e.lastLevels[m.ID] {
			e.lastLevels[m.ID] = level
			events = append(events, Event{
				MachineID:   m.ID,
				MachineName: m.Name,
				Level:       level,
				Percent:     percent,
				Message:     message,
			})
		}
	}
	return events, nil
}

func classify(name string, percent float64) (int, string) {
	switch {
	case percent >= 100:
		return LevelCompleted, fmt.Sprintf("Machine %s COMPLETED", name)
	case percent >= 90:
		return LevelCritical, fmt.Sprintf("%s CRITICAL %.1f%%", name, percent)
	case percent >= 75:
		return LevelWarning, fmt.Sprintf("%s Warning %.1f%%", name, percent)
	default:
		return LevelNone, ""
	}
}
