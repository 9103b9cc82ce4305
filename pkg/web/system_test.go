package web

import (
	"context"
	"encoding/json"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"tagscan/cmd/tagscan/config"
	"tagscan/pkg/alarm"
	"tagscan/pkg/protocol/simulator"
	"tagscan/pkg/scheduler"
	"tagscan/pkg/state"
	v1 "tagscan/pkg/v1"
	"testing"
	"time"
)

const simulatedSet = `
version: "7"
devices:
  - id: sim
    protocol: simulator
tags:
  - id: wave
    name: Wave
    tagType: input
    deviceId: sim
    address: "sine:10"
  - id: broken
    name: Broken
    tagType: input
    deviceId: sim
`

func newTestConfig(t *testing.T, tagsFile string) (*gin.Engine, *config.Config) {
	gin.SetMode(gin.TestMode)
	s := scheduler.NewScheduler(state.NewStore(), alarm.NewEvaluator(),
		scheduler.WithPortFactory(v1.ProtocolSimulator, simulator.NewPort))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	c := &config.Config{Scheduler: s, TagsFile: tagsFile}
	router := gin.New()
	InstallHandler(router.Group("/api/v1"), c)
	return router, c
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(simulatedSet), 0o644))
	router, c := newTestConfig(t, path)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var model ReloadModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &model))
	assert.Equal(t, "7", model.Version)
	assert.Equal(t, 1, model.Tags)
	assert.Contains(t, model.Rejected, "broken")
	assert.Equal(t, "7", c.Scheduler.Version())
}

func TestReloadFailures(t *testing.T) {
	router, _ := newTestConfig(t, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	path := filepath.Join(t.TempDir(), "tags.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\ndevices:\n  - id: d\n    protocol: bacnet\n"), 0o644))
	router, c := newTestConfig(t, path)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, c.Scheduler.Version())
}

func TestGetSystem(t *testing.T) {
	router, _ := newTestConfig(t, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var model map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &model))
	assert.Contains(t, model, "scan")
}
