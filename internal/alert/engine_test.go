package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"production-dashboard-backend/internal/model"
	"production-dashboard-backend/internal/store"
)

type collectorNotifier struct {
	events []Event
}

func (c *collectorNotifier) Notify(event Event) {
	c.events = append(c.events, event)
}

func newAlertStore(t *testing.T) store.Store {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Machine{}, &model.ERPNextMetadata{}, &model.ProductionLog{}))
	return store.NewGormStore(db)
}

func runningMachine(t *testing.T, s store.Store, produced, target int) {
	wo := "WO-1"
	require.NoError(t, s.DB().Create(&model.Machine{
		ID: 1, Name: "Line A", Location: "Modan", Status: model.StatusRunning,
		IsLocked: true, WorkOrder: &wo, TargetQty: target, ProducedQty: produced,
	}).Error)
}

func setProduced(t *testing.T, s store.Store, produced int) {
	require.NoError(t, s.DB().Model(&model.Machine{ID: 1}).Update("produced_qty", produced).Error)
}

func TestEvaluate_DebouncesThresholdCrossings(t *testing.T) {
	s := newAlertStore(t)
	runningMachine(t, s, 0, 100)
	engine := NewEngine(s, time.Second)
	ctx := context.Background()

	events, err := engine.Evaluate(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	// Crossing 75% emits exactly one warning, and holding there stays
	// silent.
	setProduced(t, s, 80)
	events, err = engine.Evaluate(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, LevelWarning, events[0].Level)
	assert.Equal(t, int64(1), events[0].MachineID)
	assert.Equal(t, "Line A Warning 80.0%", events[0].Message)

	events, err = engine.Evaluate(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	setProduced(t, s, 95)
	events, err = engine.Evaluate(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, LevelCritical, events[0].Level)
	assert.Equal(t, "Line A CRITICAL 95.0%", events[0].Message)

	setProduced(t, s, 100)
	events, err = engine.Evaluate(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, LevelCompleted, events[0].Level)
	assert.Equal(t, "Machine Line A COMPLETED", events[0].Message)
}

func TestEvaluate_ResetBelowWarningRearms(t *testing.T) {
	s := newAlertStore(t)
	runningMachine(t, s, 80, 100)
	engine := NewEngine(s, time.Second)
	ctx := context.Background()

	events, err := engine.Evaluate(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// A new run on the same machine drops progress below 75%, which
	// clears the stored level.
	setProduced(t, s, 10)
	events, err = engine.Evaluate(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	setProduced(t, s, 80)
	events, err = engine.Evaluate(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, LevelWarning, events[0].Level)
}

func TestEvaluate_IgnoresNonRunningMachines(t *testing.T) {
	s := newAlertStore(t)
	wo := "WO-2"
	require.NoError(t, s.DB().Create(&model.Machine{
		ID: 2, Name: "Line B", Location: "Modan", Status: model.StatusPaused,
		WorkOrder: &wo, TargetQty: 100, ProducedQty: 90,
	}).Error)

	events, err := NewEngine(s, time.Second).Evaluate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRun_FansOutToNotifiers(t *testing.T) {
	s := newAlertStore(t)
	runningMachine(t, s, 95, 100)

	first := &collectorNotifier{}
	second := &collectorNotifier{}
	engine := NewEngine(s, time.Second, first, second)

	require.NoError(t, engine.Run(context.Background()))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, LevelCritical, first.events[0].Level)
}
