// Package metrics provides the Prometheus and pprof side services shared by
// both walletd subcommands.
package metrics

import (
	"context"
	"net/http"

	"github.com/hdcustody/walletd/pkg/config"
	"go.uber.org/zap"
)

// Service serves metrics over one or more listeners.
type Service struct {
	servers     []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string
}

// NewService configures a loggable metrics service over srvs.
func NewService(name string, srvs []*http.Server, cfg config.BasicService, log *zap.Logger) *Service {
	return &Service{
		servers:     srvs,
		config:      cfg,
		log:         log.With(zap.String("service", name)),
		serviceType: name,
	}
}

// Start runs the http listeners on the configured addresses.
func (ms *Service) Start() {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return
	}
	for _, srv := range ms.servers {
		srv := srv
		ms.log.Info("service is running", zap.String("endpoint", srv.Addr))
		go func() {
			err := srv.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				ms.log.Warn("service couldn't start on configured port", zap.Error(err))
			}
		}()
	}
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.config.Enabled {
		return
	}
	for _, srv := range ms.servers {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		if err := srv.Shutdown(context.Background()); err != nil {
			ms.log.Error("can't shut service down", zap.Error(err))
		}
	}
}
