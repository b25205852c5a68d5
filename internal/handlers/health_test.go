package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vortexis/hackhub/backend/internal/services"
)

func TestCheckHealth(t *testing.T) {
	db := newTestDB(t)
	broker := services.NewLocalBroker()
	h := NewHealthHandler(db, broker, services.NewSyncQueue(nil))

	r := gin.New()
	r.GET("/health", h.CheckHealth)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status     string                 `json:"status"`
		Components map[string]interface{} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Components["database"])
	assert.Equal(t, "sync", body.Components["queue_mode"])
	assert.Equal(t, "local", body.Components["broker_mode"])
	assert.EqualValues(t, 0, body.Components["connections"])
}

func TestCheckHealth_DatabaseDown(t *testing.T) {
	db := newTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	h := NewHealthHandler(db, services.NewLocalBroker(), nil)
	r := gin.New()
	r.GET("/health", h.CheckHealth)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}
