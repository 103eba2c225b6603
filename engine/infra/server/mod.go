package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dallosh/analysis/pkg/config"
	"github.com/dallosh/analysis/pkg/logger"
)

// Run wires every dependency, then serves HTTP next to the background
// components until a signal arrives or one of them fails.
func (s *Server) Run() error {
	defer s.runCleanups()
	state, err := s.setupDependencies()
	if err != nil {
		return err
	}
	if err := s.buildRouter(state); err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	return s.serve()
}

func (s *Server) createHTTPServer() *http.Server {
	cfg := config.FromContext(s.ctx)
	return &http.Server{
		Addr:              s.serverConfig.Addr(),
		Handler:           s.router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: httpReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func (s *Server) serve() error {
	log := logger.FromContext(s.ctx)
	ctx, stop := signal.NotifyContext(s.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	s.httpServer = s.createHTTPServer()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logStartupBanner()
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Received shutdown signal, initiating graceful shutdown")
		return s.shutdownHTTP()
	})
	for _, bg := range s.background {
		g.Go(func() error {
			if err := bg.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", bg.Name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	s.cancel()
	if err != nil {
		log.Error("Server stopped with error", "error", err)
		return err
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

// shutdownHTTP drains in-flight requests. Closing the broadcaster ends open
// event streams, which would otherwise hold the shutdown until its timeout.
func (s *Server) shutdownHTTP() error {
	timeout := config.FromContext(s.ctx).Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), timeout)
	defer cancel()
	if s.broadcaster != nil {
		s.httpServer.RegisterOnShutdown(s.broadcaster.Close)
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
