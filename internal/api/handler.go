package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/store"
	"production-dashboard-backend/internal/ws"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store          store.Store
	erp            *erp.Client
	hub            *ws.Hub
	webpush        *webpush.Options
	pushStopStatus bool
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, client *erp.Client, hub *ws.Hub, webpushOptions *webpush.Options, pushStopStatus bool) *Handler {
	return &Handler{
		store:          s,
		erp:            client,
		hub:            hub,
		webpush:        webpushOptions,
		pushStopStatus: pushStopStatus,
	}
}
