package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/model"
	"production-dashboard-backend/internal/store"
)

type machineActionRequest struct {
	Location  string `json:"location" binding:"required"`
	MachineID int64  `json:"machine_id" binding:"required"`
}

type machineRenameRequest struct {
	machineActionRequest
	NewName string `json:"new_name" binding:"required"`
}

// StartMachine handles POST /api/machine/start. Starting requires an
// assigned work order; the ERP is told the order is In Process
// best-effort after the local commit.
func (h *Handler) StartMachine(c *gin.Context) {
	var req machineActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.store.SetMachineStatus(c.Request.Context(), req.Location, req.MachineID, model.StatusRunning, time.Now().UTC())
	if err != nil {
		h.machineActionError(c, err)
		return
	}

	if m.ERPNextWorkOrderID != nil {
		h.erp.SetStatus(c.Request.Context(), *m.ERPNextWorkOrderID, erp.StatusInProcess)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PauseMachine handles POST /api/machine/pause. Pausing is purely local.
func (h *Handler) PauseMachine(c *gin.Context) {
	var req machineActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.SetMachineStatus(c.Request.Context(), req.Location, req.MachineID, model.StatusPaused, time.Now().UTC()); err != nil {
		h.machineActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// StopMachine handles POST /api/machine/stop. The ERP status write is
// policy-controlled and off by default.
func (h *Handler) StopMachine(c *gin.Context) {
	var req machineActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.store.SetMachineStatus(c.Request.Context(), req.Location, req.MachineID, model.StatusStopped, time.Now().UTC())
	if err != nil {
		h.machineActionError(c, err)
		return
	}

	if h.pushStopStatus && m.ERPNextWorkOrderID != nil {
		h.erp.SetStatus(c.Request.Context(), *m.ERPNextWorkOrderID, erp.StatusStopped)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RenameMachine handles POST /api/machine/rename.
func (h *Handler) RenameMachine(c *gin.Context) {
	var req machineRenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.RenameMachine(c.Request.Context(), req.Location, req.MachineID, req.NewName); err != nil {
		h.machineActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) machineActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrMachineNotFound), errors.Is(err, store.ErrNoWorkOrder):
		c.JSON(http.StatusOK, gin.H{"ok": false})
	default:
		log.Printf("machine action failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "machine update failed"})
	}
}
