package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"gorm.io/gorm"

	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/model"
	"production-dashboard-backend/internal/parse"
)

var (
	// ErrMachineNotFound is returned when no machine matches a
	// location/id pair.
	ErrMachineNotFound = errors.New("machine not found")
	// ErrNoWorkOrder is returned when a machine without a work order is
	// asked to run.
	ErrNoWorkOrder = errors.New("machine has no work order")
)

// Store defines the interface for all database operations. Every mutating
// method is one committed transaction per pass: a failure rolls the whole
// pass back and the next scheduled pass retries from persisted state.
type Store interface {
	DB() *gorm.DB
	SeedMachines(ctx context.Context, machines []model.Machine) error
	AssignWorkOrders(ctx context.Context, now time.Time, orders []erp.WorkOrder, policy AssignPolicy) ([]Assignment, error)
	AdvanceProduction(ctx context.Context, now time.Time) (TickReport, error)
	SetMachineStatus(ctx context.Context, location string, machineID int64, status model.MachineStatus, now time.Time) (*model.Machine, error)
	RenameMachine(ctx context.Context, location string, machineID int64, newName string) (*model.Machine, error)
	MachinesWithTarget(ctx context.Context) ([]model.Machine, error)
	DashboardSnapshot(ctx context.Context) ([]LocationView, error)
	RecentProductionLogs(ctx context.Context, limit int) ([]model.ProductionLog, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// SeedMachines provisions machines that do not exist yet. Existing rows
// are left untouched: machine state belongs to the running system, not to
// the config file.
func (s *gormStore) SeedMachines(ctx context.Context, machines []model.Machine) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range machines {
			var count int64
			if err := tx.Model(&model.Machine{}).Where("id = ?", machines[i].ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check machine %d: %w", machines[i].ID, err)
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&machines[i]).Error; err != nil {
				return fmt.Errorf("failed to seed machine %d: %w", machines[i].ID, err)
			}
			log.Printf("Seeded machine %d (%s) at %s", machines[i].ID, machines[i].Name, machines[i].Location)
		}
		return nil
	})
}

// AssignWorkOrders matches unassigned work orders to compatible idle
// machines in a single transaction. It returns the assignments made so
// the caller can push custom_machine_id to the ERP after the local state
// is durable.
func (s *gormStore) AssignWorkOrders(ctx context.Context, now time.Time, orders []erp.WorkOrder, policy AssignPolicy) ([]Assignment, error) {
	var made []Assignment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range orders {
			wo := &orders[i]

			// The ERP already owns an assignment for running or bound
			// orders.
			if wo.Status == erp.StatusInProcess || wo.MachineAssigned() {
				continue
			}

			// Idempotence guard: skip orders the local store already
			// tracks.
			var tracked int64
			if err := tx.Model(&model.Machine{}).
				Where("erpnext_work_order_id = ?", wo.Name).
				Count(&tracked).Error; err != nil {
				return fmt.Errorf("failed to check existing assignment for %s: %w", wo.Name, err)
			}
			if tracked > 0 {
				continue
			}

			var candidates []model.Machine
			if err := tx.
				Where("location = ? AND is_locked = ? AND status IN ?",
					wo.Location, false, policy.statusList()).
				Order("id").
				Find(&candidates).Error; err != nil {
				return fmt.Errorf("failed to list candidate machines for %s: %w", wo.Name, err)
			}

			if len(candidates) == 0 {
				log.Printf("Warning: no free machine at %s for work order %s", wo.Location, wo.Name)
				continue
			}

			// Prefer an exact pipe-size match; otherwise take the first
			// candidate. A greedy heuristic, not a scheduler.
			selected := &candidates[0]
			for j := range candidates {
				if candidates[j].PipeSize != nil && parse.SamePipeSize(*candidates[j].PipeSize, wo.PipeSize) {
					selected = &candidates[j]
					break
				}
			}

			woName := wo.Name
			pipeSize := wo.PipeSize
			selected.WorkOrder = &woName
			selected.ERPNextWorkOrderID = &woName
			selected.PipeSize = &pipeSize
			selected.TargetQty = int(wo.Qty)
			selected.ProducedQty = int(wo.ProducedQty)
			selected.Status = model.StatusPaused
			selected.IsLocked = true

			if err := tx.Save(selected).Error; err != nil {
				return fmt.Errorf("failed to assign %s to machine %d: %w", wo.Name, selected.ID, err)
			}

			if err := upsertMetadata(tx, wo.Name, selected.ID, model.ERPStatusAssigned, now); err != nil {
				return err
			}

			made = append(made, Assignment{
				WorkOrder:    wo.Name,
				MachineID:    selected.ID,
				MachineName:  selected.Name,
				Location:     selected.Location,
				ERPMachineID: policy.erpMachineID(selected.ID),
			})
			log.Printf("Assigned work order %s to machine %s (%s)", wo.Name, selected.Name, selected.Location)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return made, nil
}

func (p AssignPolicy) erpMachineID(id int64) any {
	if p.CoerceNumericID {
		return id
	}
	return fmt.Sprintf("%d", id)
}

// upsertMetadata creates or refreshes the one-per-work-order metadata
// shadow record.
func upsertMetadata(tx *gorm.DB, workOrder string, machineID int64, erpStatus string, now time.Time) error {
	var meta model.ERPNextMetadata
	err := tx.Where("work_order = ?", workOrder).First(&meta).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		meta = model.ERPNextMetadata{
			WorkOrder:  workOrder,
			MachineID:  machineID,
			ERPStatus:  erpStatus,
			LastSynced: now,
		}
		if err := tx.Create(&meta).Error; err != nil {
			return fmt.Errorf("failed to create metadata for %s: %w", workOrder, err)
		}
	case err != nil:
		return fmt.Errorf("failed to load metadata for %s: %w", workOrder, err)
	default:
		meta.MachineID = machineID
		meta.ERPStatus = erpStatus
		meta.LastSynced = now
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("failed to update metadata for %s: %w", workOrder, err)
		}
	}
	return nil
}

// AdvanceProduction converts elapsed wall-clock time into produced
// quantity for every running machine, in one transaction. Machines that
// reach their target are completed and unlocked; the caller notifies the
// ERP after commit.
func (s *gormStore) AdvanceProduction(ctx context.Context, now time.Time) (TickReport, error) {
	var report TickReport

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var machines []model.Machine
		if err := tx.Where("status = ?", model.StatusRunning).Order("id").Find(&machines).Error; err != nil {
			return fmt.Errorf("failed to list running machines: %w", err)
		}

		for i := range machines {
			m := &machines[i]
			if m.WorkOrder == nil || m.SecondsPerMeter == nil || *m.SecondsPerMeter <= 0 {
				continue
			}

			// First observation establishes the baseline; no retroactive
			// credit.
			if m.LastTickTime == nil {
				t := now
				m.LastTickTime = &t
				if err := tx.Save(m).Error; err != nil {
					return fmt.Errorf("failed to baseline machine %d: %w", m.ID, err)
				}
				continue
			}

			elapsed := now.Sub(*m.LastTickTime).Seconds()
			ticks := int(elapsed / *m.SecondsPerMeter)
			if ticks <= 0 || m.ProducedQty >= m.TargetQty {
				continue
			}

			increment := ticks
			if remaining := m.TargetQty - m.ProducedQty; increment > remaining {
				increment = remaining
			}
			m.ProducedQty += increment
			// The fractional remainder is discarded, not carried forward.
			t := now
			m.LastTickTime = &t

			if err := tx.Model(&model.ERPNextMetadata{}).
				Where("work_order = ?", *m.WorkOrder).
				Updates(map[string]any{
					"erp_status":  model.ERPStatusInProgress,
					"last_synced": now,
				}).Error; err != nil {
				return fmt.Errorf("failed to refresh metadata for %s: %w", *m.WorkOrder, err)
			}

			if m.ProducedQty >= m.TargetQty {
				m.ProducedQty = m.TargetQty
				m.Status = model.StatusCompleted
				m.IsLocked = false
				report.Completions = append(report.Completions, Completion{
					MachineID:   m.ID,
					MachineName: m.Name,
					WorkOrder:   derefString(m.ERPNextWorkOrderID),
				})
			}

			if err := tx.Save(m).Error; err != nil {
				return fmt.Errorf("failed to advance machine %d: %w", m.ID, err)
			}

			entry := model.ProductionLog{
				MachineID:    m.ID,
				Location:     m.Location,
				WorkOrder:    *m.WorkOrder,
				PipeSize:     derefString(m.PipeSize),
				ProducedQty:  increment,
				RemainingQty: m.TargetQty - m.ProducedQty,
				Status:       string(m.Status),
				Timestamp:    now,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to append production log for machine %d: %w", m.ID, err)
			}
			report.Advanced++
		}
		return nil
	})

	if err != nil {
		return TickReport{}, err
	}
	return report, nil
}

// SetMachineStatus applies an operator-driven status transition. Starting
// a machine requires a work order and stamps the tick baseline; completing
// one releases the lock. ERP side effects are the caller's concern: the
// local transition is authoritative.
func (s *gormStore) SetMachineStatus(ctx context.Context, location string, machineID int64, status model.MachineStatus, now time.Time) (*model.Machine, error) {
	var m model.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND location = ?", machineID, location).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMachineNotFound
			}
			return fmt.Errorf("failed to load machine %d: %w", machineID, err)
		}

		switch status {
		case model.StatusRunning:
			if m.WorkOrder == nil {
				return ErrNoWorkOrder
			}
			m.IsLocked = true
			t := now
			m.LastTickTime = &t
		case model.StatusCompleted:
			m.IsLocked = false
		}
		m.Status = status

		return tx.Save(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RenameMachine changes a machine's display name.
func (s *gormStore) RenameMachine(ctx context.Context, location string, machineID int64, newName string) (*model.Machine, error) {
	var m model.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND location = ?", machineID, location).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMachineNotFound
			}
			return fmt.Errorf("failed to load machine %d: %w", machineID, err)
		}
		m.Name = newName
		return tx.Save(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MachinesWithTarget returns the machines the alert engine watches.
func (s *gormStore) MachinesWithTarget(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Where("target_qty > 0").Order("id").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines with targets: %w", err)
	}
	return machines, nil
}

// DashboardSnapshot builds the per-location machine view with job
// progress, ERP metadata and the next queued job per location.
func (s *gormStore) DashboardSnapshot(ctx context.Context) ([]LocationView, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("location, id").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	var metadata []model.ERPNextMetadata
	if err := s.db.WithContext(ctx).Find(&metadata).Error; err != nil {
		return nil, fmt.Errorf("failed to list ERP metadata: %w", err)
	}
	metadataMap := make(map[string]model.ERPNextMetadata, len(metadata))
	for _, meta := range metadata {
		metadataMap[meta.WorkOrder] = meta
	}

	nextJobs := make(map[string]*NextJob)
	for i := range machines {
		m := &machines[i]
		if m.WorkOrder == nil {
			continue
		}
		if m.Status != model.StatusFree && m.Status != model.StatusStopped {
			continue
		}
		if _, exists := nextJobs[m.Location]; exists {
			continue
		}
		nextJobs[m.Location] = &NextJob{
			MachineID:     m.ID,
			WorkOrder:     *m.WorkOrder,
			PipeSize:      m.PipeSize,
			TotalQty:      m.TargetQty,
			ProducedQty:   m.ProducedQty,
			RemainingTime: remainingTime(m),
		}
	}

	locations := make(map[string][]MachineView)
	for i := range machines {
		m := &machines[i]
		view := MachineView{
			ID:      m.ID,
			Name:    m.Name,
			Status:  m.Status,
			NextJob: nextJobs[m.Location],
		}
		if m.WorkOrder != nil {
			remaining := m.TargetQty - m.ProducedQty
			var percent float64
			if m.TargetQty > 0 {
				percent = float64(m.ProducedQty) / float64(m.TargetQty) * 100
			}
			job := &JobDetail{
				WorkOrder:       *m.WorkOrder,
				Size:            m.PipeSize,
				TotalQty:        m.TargetQty,
				CompletedQty:    m.ProducedQty,
				RemainingQty:    remaining,
				RemainingTime:   remainingTime(m),
				ProgressPercent: percent,
			}
			if meta, ok := metadataMap[*m.WorkOrder]; ok {
				status := meta.ERPStatus
				job.ERPStatus = &status
				job.ERPComments = meta.ERPComments
			}
			view.Job = job
		}
		locations[m.Location] = append(locations[m.Location], view)
	}

	names := make([]string, 0, len(locations))
	for name := range locations {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]LocationView, 0, len(names))
	for _, name := range names {
		views = append(views, LocationView{Name: name, Machines: locations[name]})
	}
	return views, nil
}

// RecentProductionLogs returns the most recent limit log rows, newest
// first.
func (s *gormStore) RecentProductionLogs(ctx context.Context, limit int) ([]model.ProductionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.ProductionLog
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list production logs: %w", err)
	}
	return logs, nil
}

func remainingTime(m *model.Machine) *float64 {
	if m.SecondsPerMeter == nil {
		return nil
	}
	remaining := float64(m.TargetQty-m.ProducedQty) * *m.SecondsPerMeter
	return &remaining
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
