package model

import "time"

// ERP-side status values tracked in the local metadata shadow.
const (
	ERPStatusAssigned   = "Assigned"
	ERPStatusInProgress = "In Progress"
	ERPStatusCompleted  = "Completed"
)

// ERPNextMetadata is the local shadow of the ERP-assignment state for one
// work order. One record per work order, created on first assignment.
type ERPNextMetadata struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	WorkOrder   string    `gorm:"uniqueIndex;size:140;not null"`
	MachineID   int64     `gorm:"index;not null"`
	ERPStatus   string    `gorm:"column:erp_status;size:32;not null"`
	LastSynced  time.Time `gorm:"not null"`
	ERPComments *string   `gorm:"column:erp_comments;size:512"`
}
