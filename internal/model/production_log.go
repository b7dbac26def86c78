package model

import "time"

// ProductionLog is an immutable audit record written once per non-zero
// tick batch. ProducedQty holds the increment of that batch, not the
// machine's running total.
type ProductionLog struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MachineID    int64     `gorm:"index;not null" json:"machine_id"`
	Location     string    `gorm:"size:64" json:"location"`
	WorkOrder    string    `gorm:"size:140;index" json:"work_order"`
	PipeSize     string    `gorm:"size:32" json:"pipe_size"`
	ProducedQty  int       `gorm:"not null" json:"produced_qty"`
	RemainingQty int       `gorm:"not null" json:"remaining_qty"`
	Status       string    `gorm:"size:16" json:"status"`
	Timestamp    time.Time `gorm:"index;not null" json:"timestamp"`
}
