package sync

import (
	"context"
	"log"
	"time"

	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/store"
)

// Service is the reconcile loop: it pulls pending work orders from the
// ERP, assigns them to compatible idle machines through the store, and
// pushes the chosen machine id back to the ERP once the local assignment
// is durable.
type Service struct {
	store    store.Store
	erp      *erp.Client
	policy   store.AssignPolicy
	interval time.Duration
}

// NewService creates a reconcile service.
func NewService(s store.Store, client *erp.Client, policy store.AssignPolicy, interval time.Duration) *Service {
	return &Service{store: s, erp: client, policy: policy, interval: interval}
}

// Name implements jobs.Job.
func (s *Service) Name() string { return "erpnext-sync" }

// Interval implements jobs.Job.
func (s *Service) Interval() time.Duration { return s.interval }

// Run implements jobs.Job.
func (s *Service) Run(ctx context.Context) error {
	return s.Reconcile(ctx)
}

// Reconcile performs one sync cycle. Remote failures surface as an empty
// fetch and are retried next cycle; a store failure rolls the whole pass
// back.
func (s *Service) Reconcile(ctx context.Context) error {
	orders := s.erp.ListPendingWorkOrders(ctx)
	if len(orders) == 0 {
		log.Println("No ERP work orders to assign")
		return nil
	}
	log.Printf("Fetched %d work orders from ERP", len(orders))

	assignments, err := s.store.AssignWorkOrders(ctx, time.Now().UTC(), orders, s.policy)
	if err != nil {
		return err
	}

	// Local state is committed; record the chosen machine in the ERP.
	// A failed write here is corrected by the skip guards next cycle.
	for _, a := range assignments {
		s.erp.SetFields(ctx, a.WorkOrder, map[string]any{
			"custom_machine_id": a.ERPMachineID,
		})
	}
	return nil
}
