package sync

import (
	"context"
	"time"

	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/store"
	"production-dashboard-backend/internal/ws"
)

// QueueEntry is the ERP work-order view pushed to dashboard viewers.
type QueueEntry struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	PipeSize    string  `json:"pipe_size"`
	Qty         float64 `json:"qty"`
	ProducedQty float64 `json:"produced_qty"`
	Location    string  `json:"location"`
	MachineID   any     `json:"machine_id"`
}

// Snapshot is the combined dashboard + ERP queue payload.
type Snapshot struct {
	Locations  []store.LocationView `json:"locations"`
	WorkOrders []QueueEntry         `json:"work_orders"`
}

// Broadcaster periodically publishes the combined dashboard snapshot and
// ERP queue to every connected viewer.
type Broadcaster struct {
	store    store.Store
	erp      *erp.Client
	hub      *ws.Hub
	interval time.Duration
}

// NewBroadcaster creates a broadcast loop.
func NewBroadcaster(s store.Store, client *erp.Client, hub *ws.Hub, interval time.Duration) *Broadcaster {
	return &Broadcaster{store: s, erp: client, hub: hub, interval: interval}
}

// Name implements jobs.Job.
func (b *Broadcaster) Name() string { return "dashboard-broadcast" }

// Interval implements jobs.Job.
func (b *Broadcaster) Interval() time.Duration { return b.interval }

// Run implements jobs.Job.
func (b *Broadcaster) Run(ctx context.Context) error {
	locations, err := b.store.DashboardSnapshot(ctx)
	if err != nil {
		return err
	}

	// An unreachable ERP yields an empty queue, not a failed broadcast.
	orders := b.erp.ListPendingWorkOrders(ctx)

	b.hub.Broadcast(Snapshot{
		Locations:  locations,
		WorkOrders: QueueEntries(orders),
	})
	return nil
}

// QueueEntries maps ERP work orders to their dashboard representation.
func QueueEntries(orders []erp.WorkOrder) []QueueEntry {
	entries := make([]QueueEntry, 0, len(orders))
	for _, wo := range orders {
		entries = append(entries, QueueEntry{
			ID:          wo.Name,
			Status:      wo.Status,
			PipeSize:    wo.PipeSize,
			Qty:         wo.Qty,
			ProducedQty: wo.ProducedQty,
			Location:    wo.Location,
			MachineID:   wo.MachineID,
		})
	}
	return entries
}
