package scheduler

import (
	"encoding/json"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"tagscan/pkg/apis/response"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"testing"
)

type errorBody struct {
	Errors []struct {
		Code    response.ErrCode `json:"code"`
		Message string           `json:"message"`
	} `json:"errors"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *Scheduler) {
	gin.SetMode(gin.TestMode)
	s, _ := newTestScheduler(t, newScriptedPort())

	sensor := inputTag("sensor")
	sensor.DecimalPlaces = 1
	setpoint := runtime.NewTag("setpoint")
	setpoint.ID = "setpoint"
	setpoint.TagType = constant.Virtual
	setpoint.DataAccess = constant.ReadWrite
	setpoint.CurrentValue = runtime.DoubleValue(12.5)
	require.NoError(t, s.Apply("v1", testDevices(), []*runtime.Tag{sensor, setpoint}))

	router := gin.New()
	InstallHandler(router.Group("/api/v1"), s)
	return router, s
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Errors)
	return body.Errors[0].Code
}

func TestGetTag(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/v1/tags/setpoint", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "setpoint", view["id"])
	assert.Equal(t, "12.50", view["displayValue"])
	assert.Equal(t, 12.5, view["currentValue"])
	assert.Equal(t, "virtual", view["tagType"])

	w = serve(router, http.MethodGet, "/api/v1/tags/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrCodeResourceNotFound, errorCode(t, w))
}

func TestListTags(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/v1/tags", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tags []map[string]interface{} `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tags, 2)
	assert.Equal(t, "sensor", body.Tags[0]["name"])

	filter := url.QueryEscape(`{"tagType":"virtual"}`)
	w = serve(router, http.MethodGet, "/api/v1/tags?filter="+filter, "")
	require.Equal(t, http.StatusOK, w.Code)
	body.Tags = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tags, 1)
	assert.Equal(t, "setpoint", body.Tags[0]["id"])

	w = serve(router, http.MethodGet, "/api/v1/tags?filter="+url.QueryEscape("{"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrCodeMalformedJSON, errorCode(t, w))
}

func TestSwitchTag(t *testing.T) {
	router, s := newTestRouter(t)

	w := serve(router, http.MethodPut, "/api/v1/tags/sensor/disable", "")
	require.Equal(t, http.StatusOK, w.Code)
	got, err := s.Tag("sensor")
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)

	w = serve(router, http.MethodPut, "/api/v1/tags/sensor/enable", "")
	require.Equal(t, http.StatusOK, w.Code)
	got, err = s.Tag("sensor")
	require.NoError(t, err)
	assert.True(t, got.IsEnabled)

	w = serve(router, http.MethodPut, "/api/v1/tags/missing/enable", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriteTagHandler(t *testing.T) {
	router, s := newTestRouter(t)

	w := serve(router, http.MethodPut, "/api/v1/tags/setpoint/value", `{"value": 42}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	got, err := s.Tag("setpoint")
	require.NoError(t, err)
	f, _ := got.CurrentValue.Float64()
	assert.Equal(t, 42.0, f)

	w = serve(router, http.MethodPut, "/api/v1/tags/sensor/value", `{"value": 1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrCodeAccessDenied, errorCode(t, w))

	w = serve(router, http.MethodPut, "/api/v1/tags/setpoint/value", `{"value": "high"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrCodeInvalidValue, errorCode(t, w))

	w = serve(router, http.MethodPut, "/api/v1/tags/setpoint/value", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrCodeRequestBody, errorCode(t, w))

	w = serve(router, http.MethodPut, "/api/v1/tags/setpoint/value", `{"value":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrCodeMalformedJSON, errorCode(t, w))

	w = serve(router, http.MethodPut, "/api/v1/tags/missing/value", `{"value": 1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlarmsAndStatsHandlers(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/v1/alarms", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/api/v1/stats?detail=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "v1", st.Version)
	assert.Equal(t, 2, st.Tags)
	assert.Len(t, st.TagStats, 2)
}
