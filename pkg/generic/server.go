package generic

import (
	"github.com/gin-gonic/gin"
	"net/http"
	"strings"
	"tagscan/pkg/apis/response"
)

// APIPrefix is the route group every versioned handler is installed under.
const APIPrefix = "/api/v1"

type Server struct {
	Router  *gin.Engine
	Port    string
	Methods []string
}

// NewServer answers unknown routes and methods with the API's JSON error body
// instead of gin's plain text pages.
func NewServer(router *gin.Engine, port string, methods ...string) *Server {
	s := &Server{
		Router:  router,
		Port:    port,
		Methods: methods,
	}
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrLegalActionNotFound))
	})
	router.NoMethod(func(c *gin.Context) {
		c.Header("Allow", strings.Join(s.Methods, ", "))
		c.JSON(http.StatusMethodNotAllowed, response.NewMultiError(response.ErrLegalActionNotFound))
	})
	return s
}

func (s *Server) API() *gin.RouterGroup {
	return s.Router.Group(APIPrefix)
}
