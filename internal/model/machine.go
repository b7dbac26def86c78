package model

import "time"

// MachineStatus is the lifecycle state of a production machine.
type MachineStatus string

const (
	StatusFree      MachineStatus = "free"
	StatusIdle      MachineStatus = "idle"
	StatusPaused    MachineStatus = "paused"
	StatusStopped   MachineStatus = "stopped"
	StatusRunning   MachineStatus = "running"
	StatusCompleted MachineStatus = "completed"
)

// Machine represents a physical production unit on the floor.
type Machine struct {
	ID              int64         `gorm:"primaryKey" json:"id"`
	Name            string        `gorm:"size:128;not null" json:"name"`
	Location        string        `gorm:"size:64;index;not null" json:"location"`
	Status          MachineStatus `gorm:"size:16;not null;default:free" json:"status"`
	IsLocked        bool          `gorm:"not null;default:false" json:"is_locked"`
	WorkOrder       *string       `gorm:"size:140" json:"work_order"`
	PipeSize        *string       `gorm:"size:32" json:"pipe_size"`
	TargetQty       int           `gorm:"not null;default:0" json:"target_qty"`
	ProducedQty     int           `gorm:"not null;default:0" json:"produced_qty"`
	SecondsPerMeter *float64      `json:"seconds_per_meter"`
	LastTickTime    *time.Time    `json:"last_tick_time"`
	// Denormalized copy of WorkOrder used as the ERP correlation key.
	ERPNextWorkOrderID *string `gorm:"column:erpnext_work_order_id;size:140;index" json:"erpnext_work_order_id"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Associations
	Subscriptions []*PushSubscription `gorm:"many2many:subscription_machine_mapping;" json:"-"`
}
