package web

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"energylogger/cmd/energylogger/config"
	"energylogger/cmd/energylogger/options"
	"energylogger/pkg/apis/response"
	"energylogger/pkg/device"
	"energylogger/pkg/generic"
	"energylogger/pkg/host"
	"energylogger/pkg/scheduler"
	"energylogger/pkg/sink"
	"energylogger/pkg/storage"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

// a poll loop is unhealthy once no cycle started for this many intervals
const staleIntervals = 3

type Server struct {
	*generic.Server
	*config.Config
	started time.Time
	now     func() time.Time
}

type StatusModel struct {
	Scheduler scheduler.Stats  `json:"scheduler"`
	Devices   storage.FileInfo `json:"devices"`
	Sinks     storage.FileInfo `json:"sinks"`
}

func NewServer(router *gin.Engine, o *options.Options, config *config.Config) (*Server, error) {
	allowMethods := []string{http.MethodGet, http.MethodHead}

	s := &generic.Server{
		Router:  router,
		Port:    o.Port,
		Methods: allowMethods,
	}

	server := &Server{
		Server:  s,
		Config:  config,
		started: time.Now(),
		now:     time.Now,
	}

	server.InstallHandlers()

	return server, nil
}

func (s *Server) InstallHandlers() {
	s.Router.Use(s.allowMethods())
	s.Router.GET("/healthz", s.healthz)
	s.Router.GET("/metrics", gin.WrapH(s.Config.Metrics.Handler()))

	v1 := s.Router.Group("/api/v1")
	v1.GET("/status", s.status)
	device.InstallHandler(v1, s.Config.Devices)
	sink.InstallHandler(v1, s.Config.Sinks)
	host.InstallHandler(v1, s.Config.Host)
}

func (s *Server) allowMethods() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Allowed(c.Request.Method) {
			c.AbortWithStatus(http.StatusMethodNotAllowed)
			return
		}
		c.Next()
	}
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.healthy(); err != nil {
		c.JSON(http.StatusServiceUnavailable, response.NewMultiError(response.ErrUnavailable("poll loop", err)))
		return
	}
	c.String(http.StatusOK, "ok")
}

func (s *Server) healthy() error {
	st := s.Config.Scheduler.Stats()
	last := st.LastStart
	if last.IsZero() {
		last = s.started
	}
	if behind := s.now().Sub(last); behind > staleIntervals*st.Interval {
		return fmt.Errorf("no cycle started for %s", behind.Round(time.Second))
	}
	return nil
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, &StatusModel{
		Scheduler: s.Config.Scheduler.Stats(),
		Devices:   s.Config.Devices.Info(),
		Sinks:     s.Config.Sinks.Info(),
	})
}

func (s *Server) Serve() (func(ctx context.Context), error) {
	var srv *http.Server
	if len(s.Config.CertFile) != 0 && len(s.Config.KeyFile) != 0 {
		x509KeyPair, err := tls.LoadX509KeyPair(s.Config.CertFile, s.Config.KeyFile)
		if err != nil {
			return nil, err
		}
		c := &tls.Config{
			Certificates: []tls.Certificate{x509KeyPair},
		}

		srv = &http.Server{
			Addr:      fmt.Sprintf(":%s", s.Port),
			Handler:   s.Router,
			TLSConfig: c,
		}
		go func() {
			if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				klog.ErrorS(err, "Status server stopped")
			}
		}()
	} else {
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%s", s.Port),
			Handler: s.Router,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				klog.ErrorS(err, "Status server stopped")
			}
		}()
	}

	return func(ctx context.Context) {
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shut down status server")
		}
	}, nil
}
