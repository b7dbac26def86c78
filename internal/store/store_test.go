package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/model"
)

func newSQLiteStore(t *testing.T) Store {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.Machine{},
		&model.ERPNextMetadata{},
		&model.ProductionLog{},
		&model.PushSubscription{},
	)
	require.NoError(t, err)

	return NewGormStore(db)
}

func strPtr(s string) *string       { return &s }
func floatPtr(f float64) *float64   { return &f }
func timePtr(ts time.Time) *time.Time { return &ts }

func createMachine(t *testing.T, s Store, m model.Machine) {
	require.NoError(t, s.DB().Create(&m).Error)
}

func loadMachine(t *testing.T, s Store, id int64) model.Machine {
	var m model.Machine
	require.NoError(t, s.DB().First(&m, id).Error)
	return m
}

func TestAssignWorkOrders_PrefersPipeSizeMatch(t *testing.T) {
	s := newSQLiteStore(t)
	now := time.Now().UTC()

	createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusFree, PipeSize: strPtr(`3"`)})
	createMachine(t, s, model.Machine{ID: 2, Name: "Line B", Location: "Modan", Status: model.StatusFree, PipeSize: strPtr(`2"`)})

	orders := []erp.WorkOrder{{
		Name:     "WO-1",
		Qty:      50,
		Status:   erp.StatusNotStarted,
		PipeSize: `2"`,
		Location: "Modan",
	}}

	assignments, err := s.AssignWorkOrders(context.Background(), now, orders, DefaultAssignPolicy())
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, int64(2), assignments[0].MachineID)
	assert.Equal(t, "WO-1", assignments[0].WorkOrder)
	assert.Equal(t, int64(2), assignments[0].ERPMachineID)

	m := loadMachine(t, s, 2)
	require.NotNil(t, m.WorkOrder)
	assert.Equal(t, "WO-1", *m.WorkOrder)
	require.NotNil(t, m.ERPNextWorkOrderID)
	assert.Equal(t, "WO-1", *m.ERPNextWorkOrderID)
	assert.Equal(t, 50, m.TargetQty)
	assert.Equal(t, 0, m.ProducedQty)
	assert.Equal(t, model.StatusPaused, m.Status)
	assert.True(t, m.IsLocked)

	other := loadMachine(t, s, 1)
	assert.Nil(t, other.WorkOrder)
	assert.False(t, other.IsLocked)

	var meta model.ERPNextMetadata
	require.NoError(t, s.DB().Where("work_order = ?", "WO-1").First(&meta).Error)
	assert.Equal(t, int64(2), meta.MachineID)
	assert.Equal(t, model.ERPStatusAssigned, meta.ERPStatus)
}

func TestAssignWorkOrders_FallbackToFirstCandidate(t *testing.T) {
	s := newSQLiteStore(t)

	createMachine(t, s, model.Machine{ID: 5, Name: "Line E", Location: "Modan", Status: model.StatusStopped, PipeSize: strPtr(`4"`)})
	createMachine(t, s, model.Machine{ID: 6, Name: "Line F", Location: "Modan", Status: model.StatusPaused, PipeSize: strPtr(`4"`)})

	orders := []erp.WorkOrder{{Name: "WO-2", Qty: 10, Status: erp.StatusNotStarted, PipeSize: `2"`, Location: "Modan"}}

	assignments, err := s.AssignWorkOrders(context.Background(), time.Now().UTC(), orders, DefaultAssignPolicy())
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, int64(5), assignments[0].MachineID)

	// The machine takes on the order's pipe size once assigned.
	m := loadMachine(t, s, 5)
	require.NotNil(t, m.PipeSize)
	assert.Equal(t, `2"`, *m.PipeSize)
}

func TestAssignWorkOrders_Idempotent(t *testing.T) {
	s := newSQLiteStore(t)
	now := time.Now().UTC()

	createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusFree})
	createMachine(t, s, model.Machine{ID: 2, Name: "Line B", Location: "Modan", Status: model.StatusFree})

	orders := []erp.WorkOrder{{Name: "WO-1", Qty: 50, Status: erp.StatusNotStarted, PipeSize: `2"`, Location: "Modan"}}

	first, err := s.AssignWorkOrders(context.Background(), now, orders, DefaultAssignPolicy())
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second pass with the same ERP snapshot must not reassign or
	// duplicate the metadata record.
	second, err := s.AssignWorkOrders(context.Background(), now, orders, DefaultAssignPolicy())
	require.NoError(t, err)
	assert.Empty(t, second)

	var metaCount int64
	require.NoError(t, s.DB().Model(&model.ERPNextMetadata{}).Where("work_order = ?", "WO-1").Count(&metaCount).Error)
	assert.Equal(t, int64(1), metaCount)

	var holders int64
	require.NoError(t, s.DB().Model(&model.Machine{}).Where("erpnext_work_order_id = ?", "WO-1").Count(&holders).Error)
	assert.Equal(t, int64(1), holders)
}

func TestAssignWorkOrders_SkipConditions(t *testing.T) {
	s := newSQLiteStore(t)

	createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusFree})

	testCases := []struct {
		name  string
		order erp.WorkOrder
	}{
		{"already in process", erp.WorkOrder{Name: "WO-IP", Qty: 10, Status: erp.StatusInProcess, Location: "Modan"}},
		{"machine already set in ERP", erp.WorkOrder{Name: "WO-ERP", Qty: 10, Status: erp.StatusNotStarted, Location: "Modan", MachineID: float64(7)}},
		{"no machine at location", erp.WorkOrder{Name: "WO-ELSE", Qty: 10, Status: erp.StatusNotStarted, Location: "Dammam"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assignments, err := s.AssignWorkOrders(context.Background(), time.Now().UTC(), []erp.WorkOrder{tc.order}, DefaultAssignPolicy())
			require.NoError(t, err)
			assert.Empty(t, assignments)
		})
	}

	m := loadMachine(t, s, 1)
	assert.Nil(t, m.WorkOrder)
	assert.Equal(t, model.StatusFree, m.Status)
}

func TestAssignWorkOrders_SkipsLockedAndRunning(t *testing.T) {
	s := newSQLiteStore(t)

	createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusRunning, IsLocked: true, WorkOrder: strPtr("WO-OLD"), ERPNextWorkOrderID: strPtr("WO-OLD")})

	orders := []erp.WorkOrder{{Name: "WO-NEW", Qty: 10, Status: erp.StatusNotStarted, Location: "Modan"}}
	assignments, err := s.AssignWorkOrders(context.Background(), time.Now().UTC(), orders, DefaultAssignPolicy())
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestAdvanceProduction_FirstObservationBaseline(t *testing.T) {
	s := newSQLiteStore(t)
	now := time.Now().UTC()

	createMachine(t, s, model.Machine{
		ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusRunning,
		IsLocked: true, WorkOrder: strPtr("WO-1"), ERPNextWorkOrderID: strPtr("WO-1"),
		TargetQty: 10, SecondsPerMeter: floatPtr(2),
	})

	report, err := s.AdvanceProduction(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, report.Advanced)
	assert.Empty(t, report.Completions)

	m := loadMachine(t, s, 1)
	require.NotNil(t, m.LastTickTime)
	assert.WithinDuration(t, now, *m.LastTickTime, time.Second)
	assert.Equal(t, 0, m.ProducedQty)

	var logCount int64
	require.NoError(t, s.DB().Model(&model.ProductionLog{}).Count(&logCount).Error)
	assert.Zero(t, logCount)
}

func TestAdvanceProduction_AccruesWholeTicks(t *testing.T) {
	s := newSQLiteStore(t)
	now := time.Now().UTC()

	createMachine(t, s, model.Machine{
		ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusRunning,
		IsLocked: true, WorkOrder: strPtr("WO-1"), ERPNextWorkOrderID: strPtr("WO-1"),
		PipeSize: strPtr(`2"`), TargetQty: 10,
		SecondsPerMeter: floatPtr(2), LastTickTime: timePtr(now.Add(-7 * time.Second)),
	})
	require.NoError(t, s.DB().Create(&model.ERPNextMetadata{
		WorkOrder: "WO-1", MachineID: 1, ERPStatus: model.ERPStatusAssigned, LastSynced: now.Add(-time.Minute),
	}).Error)

	report, err := s.AdvanceProduction(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Advanced)
	assert.Empty(t, report.Completions)

	// 7 elapsed seconds at 2 s/m is 3 whole ticks; the fractional second
	// is discarded.
	m := loadMachine(t, s, 1)
	assert.Equal(t, 3, m.ProducedQty)
	require.NotNil(t, m.LastTickTime)
	assert.WithinDuration(t, now, *m.LastTickTime, time.Second)
	assert.Equal(t, model.StatusRunning, m.Status)

	var logs []model.ProductionLog
	require.NoError(t, s.DB().Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, 3, logs[0].ProducedQty)
	assert.Equal(t, 7, logs[0].RemainingQty)
	assert.Equal(t, "WO-1", logs[0].WorkOrder)
	assert.Equal(t, int64(1), logs[0].MachineID)

	var meta model.ERPNextMetadata
	require.NoError(t, s.DB().Where("work_order = ?", "WO-1").First(&meta).Error)
	assert.Equal(t, model.ERPStatusInProgress, meta.ERPStatus)
}

func TestAdvanceProduction_ClampsAndCompletes(t *testing.T) {
	s := newSQLiteStore(t)
	now := time.Now().UTC()

	createMachine(t, s, model.Machine{
		ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusRunning,
		IsLocked: true, WorkOrder: strPtr("WO-1"), ERPNextWorkOrderID: strPtr("WO-1"),
		TargetQty: 100, ProducedQty: 98,
		SecondsPerMeter: floatPtr(1), LastTickTime: timePtr(now.Add(-30 * time.Second)),
	})

	report, err := s.AdvanceProduction(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, report.Completions, 1)
	assert.Equal(t, "WO-1", report.Completions[0].WorkOrder)
	assert.Equal(t, int64(1), report.Completions[0].MachineID)

	// 30 ticks would overshoot; the increment is clamped to the 2
	// remaining units.
	m := loadMachine(t, s, 1)
	assert.Equal(t, 100, m.ProducedQty)
	assert.Equal(t, model.StatusCompleted, m.Status)
	assert.False(t, m.IsLocked)

	var logs []model.ProductionLog
	require.NoError(t, s.DB().Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, 2, logs[0].ProducedQty)
	assert.Equal(t, 0, logs[0].RemainingQty)
	assert.Equal(t, string(model.StatusCompleted), logs[0].Status)
}

func TestAdvanceProduction_SkipsUntrackedMachines(t *testing.T) {
	s := newSQLiteStore(t)
	now := time.Now().UTC()

	// No production rate configured.
	createMachine(t, s, model.Machine{
		ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusRunning,
		IsLocked: true, WorkOrder: strPtr("WO-1"), TargetQty: 10,
		LastTickTime: timePtr(now.Add(-time.Minute)),
	})
	// No work order.
	createMachine(t, s, model.Machine{
		ID: 2, Name: "Line B", Location: "Modan", Status: model.StatusRunning,
		IsLocked: true, TargetQty: 10, SecondsPerMeter: floatPtr(1),
		LastTickTime: timePtr(now.Add(-time.Minute)),
	})

	report, err := s.AdvanceProduction(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, report.Advanced)

	assert.Equal(t, 0, loadMachine(t, s, 1).ProducedQty)
	assert.Equal(t, 0, loadMachine(t, s, 2).ProducedQty)
}

func TestSetMachineStatus(t *testing.T) {
	now := time.Now().UTC()

	t.Run("running requires a work order", func(t *testing.T) {
		s := newSQLiteStore(t)
		createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusFree})

		_, err := s.SetMachineStatus(context.Background(), "Modan", 1, model.StatusRunning, now)
		assert.ErrorIs(t, err, ErrNoWorkOrder)
	})

	t.Run("running locks and stamps the baseline", func(t *testing.T) {
		s := newSQLiteStore(t)
		createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusPaused, WorkOrder: strPtr("WO-1"), ERPNextWorkOrderID: strPtr("WO-1")})

		m, err := s.SetMachineStatus(context.Background(), "Modan", 1, model.StatusRunning, now)
		require.NoError(t, err)
		assert.Equal(t, model.StatusRunning, m.Status)
		assert.True(t, m.IsLocked)
		require.NotNil(t, m.LastTickTime)
		assert.WithinDuration(t, now, *m.LastTickTime, time.Second)
	})

	t.Run("completed releases the lock", func(t *testing.T) {
		s := newSQLiteStore(t)
		createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusRunning, IsLocked: true, WorkOrder: strPtr("WO-1")})

		m, err := s.SetMachineStatus(context.Background(), "Modan", 1, model.StatusCompleted, now)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, m.Status)
		assert.False(t, m.IsLocked)
	})

	t.Run("unknown machine", func(t *testing.T) {
		s := newSQLiteStore(t)
		_, err := s.SetMachineStatus(context.Background(), "Modan", 99, model.StatusPaused, now)
		assert.ErrorIs(t, err, ErrMachineNotFound)
	})

	t.Run("wrong location does not match", func(t *testing.T) {
		s := newSQLiteStore(t)
		createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusFree})

		_, err := s.SetMachineStatus(context.Background(), "Dammam", 1, model.StatusPaused, now)
		assert.ErrorIs(t, err, ErrMachineNotFound)
	})
}

func TestRenameMachine(t *testing.T) {
	s := newSQLiteStore(t)
	createMachine(t, s, model.Machine{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusFree})

	m, err := s.RenameMachine(context.Background(), "Modan", 1, "Extruder 1")
	require.NoError(t, err)
	assert.Equal(t, "Extruder 1", m.Name)
	assert.Equal(t, "Extruder 1", loadMachine(t, s, 1).Name)
}

func TestRecentProductionLogs(t *testing.T) {
	s := newSQLiteStore(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.DB().Create(&model.ProductionLog{
			MachineID: 1, WorkOrder: "WO-1", ProducedQty: i + 1,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	logs, err := s.RecentProductionLogs(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, 5, logs[0].ProducedQty)
	assert.Equal(t, 4, logs[1].ProducedQty)
	assert.Equal(t, 3, logs[2].ProducedQty)
}

func TestDashboardSnapshot(t *testing.T) {
	s := newSQLiteStore(t)
	now := time.Now().UTC()

	createMachine(t, s, model.Machine{
		ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusRunning,
		IsLocked: true, WorkOrder: strPtr("WO-1"), ERPNextWorkOrderID: strPtr("WO-1"),
		PipeSize: strPtr(`2"`), TargetQty: 100, ProducedQty: 40, SecondsPerMeter: floatPtr(2),
	})
	createMachine(t, s, model.Machine{
		ID: 2, Name: "Line B", Location: "Modan", Status: model.StatusStopped,
		WorkOrder: strPtr("WO-2"), TargetQty: 20,
	})
	createMachine(t, s, model.Machine{ID: 3, Name: "Line C", Location: "Dammam", Status: model.StatusFree})

	require.NoError(t, s.DB().Create(&model.ERPNextMetadata{
		WorkOrder: "WO-1", MachineID: 1, ERPStatus: model.ERPStatusInProgress, LastSynced: now,
	}).Error)

	locations, err := s.DashboardSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 2)

	// Locations are sorted by name.
	assert.Equal(t, "Dammam", locations[0].Name)
	assert.Equal(t, "Modan", locations[1].Name)

	modan := locations[1]
	require.Len(t, modan.Machines, 2)

	lineA := modan.Machines[0]
	require.NotNil(t, lineA.Job)
	assert.Equal(t, "WO-1", lineA.Job.WorkOrder)
	assert.Equal(t, 60, lineA.Job.RemainingQty)
	assert.InDelta(t, 40.0, lineA.Job.ProgressPercent, 0.01)
	require.NotNil(t, lineA.Job.RemainingTime)
	assert.InDelta(t, 120.0, *lineA.Job.RemainingTime, 0.01)
	require.NotNil(t, lineA.Job.ERPStatus)
	assert.Equal(t, model.ERPStatusInProgress, *lineA.Job.ERPStatus)

	// Line B is stopped with a queued order, so it is Modan's next job.
	require.NotNil(t, lineA.NextJob)
	assert.Equal(t, int64(2), lineA.NextJob.MachineID)
	assert.Equal(t, "WO-2", lineA.NextJob.WorkOrder)

	dammam := locations[0]
	require.Len(t, dammam.Machines, 1)
	assert.Nil(t, dammam.Machines[0].Job)
	assert.Nil(t, dammam.Machines[0].NextJob)
}

func TestSeedMachines(t *testing.T) {
	s := newSQLiteStore(t)

	seeds := []model.Machine{
		{ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusFree},
		{ID: 2, Name: "Line B", Location: "Modan", Status: model.StatusFree},
	}
	require.NoError(t, s.SeedMachines(context.Background(), seeds))

	// Re-seeding must not clobber live state.
	require.NoError(t, s.DB().Model(&model.Machine{ID: 1}).Update("status", model.StatusRunning).Error)
	require.NoError(t, s.SeedMachines(context.Background(), seeds))

	assert.Equal(t, model.StatusRunning, loadMachine(t, s, 1).Status)

	var count int64
	require.NoError(t, s.DB().Model(&model.Machine{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
