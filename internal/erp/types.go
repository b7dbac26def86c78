package erp

// Work order statuses used by the ERPNext "Work Order" doctype.
const (
	StatusNotStarted = "Not Started"
	StatusInProcess  = "In Process"
	StatusCompleted  = "Completed"
	StatusStopped    = "Stopped"
)

// WorkOrder is the read/write view of an ERPNext work order. ERPNext
// serializes quantities as floats, so the wire type keeps them that way.
type WorkOrder struct {
	Name        string  `json:"name"`
	Qty         float64 `json:"qty"`
	ProducedQty float64 `json:"produced_qty"`
	Status      string  `json:"status"`
	// custom_machine_id is an Int field in some sites and a Data field in
	// others, so it may arrive as a number, a string, or null.
	MachineID any    `json:"custom_machine_id"`
	PipeSize  string `json:"custom_pipe_size"`
	Location  string `json:"custom_location"`
}

// MachineAssigned reports whether the ERP already records a machine for
// this work order.
func (w *WorkOrder) MachineAssigned() bool {
	switch v := w.MachineID.(type) {
	case nil:
		return false
	case string:
		return v != "" && v != "0"
	case float64:
		return v != 0
	default:
		return true
	}
}

// listResponse models the envelope ERPNext wraps list results in.
type listResponse struct {
	Data []WorkOrder `json:"data"`
}
