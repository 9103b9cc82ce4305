package web

import (
	"context"
	"crypto/tls"
	"fmt"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"net/http"
	"tagscan/cmd/tagscan/config"
	"tagscan/cmd/tagscan/options"
	"tagscan/pkg/generic"
	"tagscan/pkg/scheduler"
)

type Server struct {
	*generic.Server
	*config.Config
}

func NewServer(router *gin.Engine, o *options.Options, config *config.Config) (*Server, error) {
	allowMethods := []string{http.MethodPost, http.MethodGet, http.MethodPut}

	server := &Server{
		Server: generic.NewServer(router, o.Port, allowMethods...),
		Config: config,
	}

	server.InstallHandlers()

	return server, nil
}

func (s *Server) InstallHandlers() {
	v1 := s.API()
	scheduler.InstallHandler(v1, s.Config.Scheduler)
	InstallHandler(v1, s.Config)
}

func (s *Server) Serve() (func(ctx context.Context), error) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.Port),
		Handler: s.Router,
	}
	if len(s.Config.CertFile) != 0 && len(s.Config.KeyFile) != 0 {
		x509KeyPair, err := tls.LoadX509KeyPair(s.Config.CertFile, s.Config.KeyFile)
		if err != nil {
			return nil, err
		}
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{x509KeyPair},
		}
		go func() {
			if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				klog.ErrorS(err, "HTTPS server exited")
			}
		}()
	} else {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				klog.ErrorS(err, "HTTP server exited")
			}
		}()
	}

	return func(ctx context.Context) {
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shut down HTTP server")
		}
		if err := s.Config.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shut down scheduler")
		}
	}, nil
}
