package generic

import (
	"encoding/json"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"tagscan/pkg/apis/response"
	"testing"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	s := NewServer(gin.New(), "32200", http.MethodGet, http.MethodPut)
	s.API().GET("/tags", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"tags": []string{}}) })
	return s
}

func errorCodes(t *testing.T, w *httptest.ResponseRecorder) []response.ErrCode {
	var body struct {
		Errors []struct {
			Code response.ErrCode `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	codes := make([]response.ErrCode, 0, len(body.Errors))
	for _, e := range body.Errors {
		codes = append(codes, e.Code)
	}
	return codes
}

func TestServerRoutesUnderAPIPrefix(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, APIPrefix+"/tags", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServerUnknownRoute(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/tags", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []response.ErrCode{response.ErrCodeLegalActionNotFound}, errorCodes(t, w))
}

func TestServerUnknownMethod(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, APIPrefix+"/tags", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, PUT", w.Header().Get("Allow"))
	assert.Equal(t, []response.ErrCode{response.ErrCodeLegalActionNotFound}, errorCodes(t, w))
}
