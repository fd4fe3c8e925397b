package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	st := s.store
	defer func() { _ = st.NonTx().Close() }()

	if err := s.Prepare(); err != nil {
		return err
	}

	if s.loop != nil {
		go func() {
			if err := s.loop.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("event loop stopped", "err", err)
			}
		}()
	}

	if err := s.StartBridge(); err != nil {
		return err
	}
	s.StartHTTP()

	s.logger.Info("matchadmin running",
		"bridge", s.cfg.BridgeAddr,
		"http", s.cfg.HTTPAddr,
	)

	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-s.ctx.Done():
	}

	s.logger.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Prepare loads admins and groups into the permission cache, importing the
// admins file first when one is configured.
func (s *Server) Prepare() error {
	if s.cfg.AdminsFile != "" {
		if err := LoadAdminsFromYAML(s.cfg.AdminsFile, s.ledger); err != nil {
			s.logger.Error("failed to load admins file", "path", s.cfg.AdminsFile, "err", err)
		}
	}
	n, err := s.ledger.LoadAll()
	if err != nil {
		return fmt.Errorf("server: load admins: %w", err)
	}
	s.logger.Info("admins loaded", "count", n)
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(ctx)
	}
	s.metrics.LogSummary()
}
