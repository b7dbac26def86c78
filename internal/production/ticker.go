package production

import (
	"context"
	"log"
	"time"

	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/store"
)

// Ticker is the periodic driver that advances produced quantity on every
// running machine. The actual read-modify-commit happens in one store
// transaction; the ticker only schedules the pass and pushes the
// best-effort ERP status update for machines that completed.
type Ticker struct {
	store    store.Store
	erp      *erp.Client
	interval time.Duration
}

// NewTicker creates a production ticker running on the given interval.
func NewTicker(s store.Store, client *erp.Client, interval time.Duration) *Ticker {
	return &Ticker{store: s, erp: client, interval: interval}
}

// Name implements jobs.Job.
func (t *Ticker) Name() string { return "production-ticker" }

// Interval implements jobs.Job.
func (t *Ticker) Interval() time.Duration { return t.interval }

// Run implements jobs.Job. A failed pass is rolled back by the store and
// retried on the next tick from persisted state.
func (t *Ticker) Run(ctx context.Context) error {
	report, err := t.store.AdvanceProduction(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	// Local completion is already committed; the ERP write is
	// fire-and-forget and self-heals on the next sync cycle if it fails.
	for _, completion := range report.Completions {
		log.Printf("Machine %s completed work order %s", completion.MachineName, completion.WorkOrder)
		if completion.WorkOrder != "" {
			t.erp.SetStatus(ctx, completion.WorkOrder, erp.StatusCompleted)
		}
	}
	return nil
}
