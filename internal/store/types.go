package store

import (
	"production-dashboard-backend/internal/model"
)

// AssignPolicy makes the assignment divergences found across dashboard
// revisions explicit instead of hiding them in the matching loop.
type AssignPolicy struct {
	// AssignableStatuses are the machine statuses eligible to receive a
	// work order.
	AssignableStatuses []model.MachineStatus
	// CoerceNumericID controls whether the machine id pushed to the ERP is
	// coerced to a number (0 when the id is not numeric). ERPNext sites
	// with an Int custom_machine_id field reject string ids.
	CoerceNumericID bool
}

// DefaultAssignPolicy matches the production configuration: free, paused,
// stopped and idle machines may take work, and ids are pushed numerically.
func DefaultAssignPolicy() AssignPolicy {
	return AssignPolicy{
		AssignableStatuses: []model.MachineStatus{
			model.StatusFree, model.StatusPaused, model.StatusStopped, model.StatusIdle,
		},
		CoerceNumericID: true,
	}
}

func (p AssignPolicy) statusList() []string {
	statuses := make([]string, len(p.AssignableStatuses))
	for i, s := range p.AssignableStatuses {
		statuses[i] = string(s)
	}
	return statuses
}

// Assignment records one work order bound to one machine during a
// reconcile pass. ERPMachineID is the value to push to the ERP's
// custom_machine_id field, already coerced per policy.
type Assignment struct {
	WorkOrder    string
	MachineID    int64
	MachineName  string
	Location     string
	ERPMachineID any
}

// Completion records a machine that reached its target during a ticker
// pass and needs a best-effort "Completed" status pushed to the ERP.
type Completion struct {
	MachineID   int64
	MachineName string
	WorkOrder   string
}

// TickReport summarizes one production ticker pass.
type TickReport struct {
	Advanced    int
	Completions []Completion
}

// JobDetail is the per-machine job progress block of the dashboard
// snapshot.
type JobDetail struct {
	WorkOrder       string   `json:"work_order"`
	Size            *string  `json:"size"`
	TotalQty        int      `json:"total_qty"`
	CompletedQty    int      `json:"completed_qty"`
	RemainingQty    int      `json:"remaining_qty"`
	RemainingTime   *float64 `json:"remaining_time"`
	ProgressPercent float64  `json:"progress_percent"`
	ERPStatus       *string  `json:"erp_status"`
	ERPComments     *string  `json:"erp_comments"`
}

// NextJob summarizes the queued job a free or stopped machine will take
// next at a location.
type NextJob struct {
	MachineID     int64    `json:"machine_id"`
	WorkOrder     string   `json:"work_order"`
	PipeSize      *string  `json:"pipe_size"`
	TotalQty      int      `json:"total_qty"`
	ProducedQty   int      `json:"produced_qty"`
	RemainingTime *float64 `json:"remaining_time"`
}

// MachineView is one machine entry in the dashboard snapshot.
type MachineView struct {
	ID      int64               `json:"id"`
	Name    string              `json:"name"`
	Status  model.MachineStatus `json:"status"`
	Job     *JobDetail          `json:"job"`
	NextJob *NextJob            `json:"next_job"`
}

// LocationView groups the machines of one site location.
type LocationView struct {
	Name     string        `json:"name"`
	Machines []MachineView `json:"machines"`
}
