package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"production-dashboard-backend/config"
	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/model"
	"production-dashboard-backend/internal/store"
	"production-dashboard-backend/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testServerConfig keeps the rate limiter and response cache out of the
// way of handler assertions.
func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	}
}

func newTestStore(t *testing.T) store.Store {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Machine{},
		&model.ERPNextMetadata{},
		&model.ProductionLog{},
		&model.PushSubscription{},
	))
	return store.NewGormStore(db)
}

// newTestRouter wires a router over a fresh sqlite store and an
// unconfigured ERP client.
func newTestRouter(t *testing.T) (*gin.Engine, store.Store) {
	s := newTestStore(t)
	handler := NewHandler(s, erp.NewClient(&config.ERPConfig{}), ws.NewHub(), nil, false)
	return NewRouter(handler, testServerConfig()), s
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	// Bypass the response cache so every request reflects current state.
	req.Header.Set("Cache-Control", "no-cache")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
