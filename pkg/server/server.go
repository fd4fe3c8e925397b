// Package server wires the moderation ledger, the vote coordinator and the
// match machine to the host bridge, the chat command router and the HTTP API.
//
// Every bridge event, timer callback and API read that touches component
// state runs on one sched.Loop goroutine.
package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/datastore"
	"github.com/NicolasHaas/matchadmin/pkg/logging"
	"github.com/NicolasHaas/matchadmin/pkg/match"
	"github.com/NicolasHaas/matchadmin/pkg/moderation"
	"github.com/NicolasHaas/matchadmin/pkg/rbac"
	"github.com/NicolasHaas/matchadmin/pkg/sched"
	"github.com/NicolasHaas/matchadmin/pkg/vote"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store datastore.DataProviderFactory

	// Scheduler drives timers. When nil the server creates a sched.Loop and
	// serializes all component access through it; a caller-provided
	// scheduler means the caller already serializes calls.
	Scheduler sched.Scheduler
}

// loadOrGenerateTLS loads TLS cert/key from disk or generates a self-signed pair.
func loadOrGenerateTLS(cfg Config) (tls.Certificate, error) {
	certPath := cfg.CertFile
	keyPath := cfg.KeyFile

	if certPath == "" {
		certPath = filepath.Join(cfg.DataDir, "server.crt")
	}
	if keyPath == "" {
		keyPath = filepath.Join(cfg.DataDir, "server.key")
	}

	// Try loading existing cert
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err == nil {
		slog.Info("loaded TLS certificate", "cert", certPath)
		return cert, nil
	}

	// Generate self-signed certificate
	slog.Info("generating self-signed TLS certificate")
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate key: %w", err)
	}

	serialNumber, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{Organization: []string{"matchadmin bridge"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create cert: %w", err)
	}

	// Write cert
	certOut, err := os.Create(certPath) //nolint:gosec // path from server config
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("write cert: %w", err)
	}
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certDER}); err != nil {
		_ = certOut.Close()
		return tls.Certificate{}, fmt.Errorf("encode cert: %w", err)
	}
	if err := certOut.Close(); err != nil {
		return tls.Certificate{}, fmt.Errorf("close cert file: %w", err)
	}

	// Write key
	privBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("marshal key: %w", err)
	}
	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) //nolint:gosec // path from server config
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("write key: %w", err)
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes}); err != nil {
		_ = keyOut.Close()
		return tls.Certificate{}, fmt.Errorf("encode key: %w", err)
	}
	if err := keyOut.Close(); err != nil {
		return tls.Certificate{}, fmt.Errorf("close key file: %w", err)
	}

	slog.Info("TLS certificate generated", "cert", certPath, "key", keyPath)

	return tls.LoadX509KeyPair(certPath, keyPath)
}

// Server is the matchadmin core.
type Server struct {
	cfg     Config
	store   datastore.DataProviderFactory
	sched   sched.Scheduler
	loop    *sched.Loop
	logger  *slog.Logger
	metrics *Metrics

	roster *Roster
	link   *hostLink
	engine *bridgeEngine
	perms  *rbac.Cache
	ledger *moderation.Ledger
	match  *match.Machine
	votes  *vote.Coordinator

	mapName    string // current map as last reported by the host
	serverName string

	listener net.Listener
	httpSrv  *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		store:   deps.Store,
		sched:   deps.Scheduler,
		logger:  logging.Component("server"),
		metrics: NewMetrics(),
		roster:  NewRoster(),
		link:    &hostLink{},
		perms:   rbac.NewCache(),
		ctx:     ctx,
		cancel:  cancel,
	}
	if s.sched == nil {
		s.loop = sched.NewLoop(256, logging.Component("loop"))
		s.sched = s.loop
	}
	s.engine = &bridgeEngine{
		link:    s.link,
		roster:  s.roster,
		metrics: s.metrics,
		prefix:  cfg.Plugin.ChatPrefix,
		logger:  logging.Component("bridge"),
	}
	s.ledger = moderation.New(deps.Store, moderation.Options{
		AuditEnabled: cfg.Plugin.EnableLogging,
		Permissions:  s.perms,
		Now:          s.sched.Now,
		Logger:       logging.Component("moderation"),
	})
	s.match = match.New(cfg.MatchTunables(), match.Deps{
		Engine:      s.engine,
		Roster:      s.roster,
		Broadcaster: s.engine,
		Scheduler:   s.sched,
		Auditor:     s.ledger,
		Logger:      logging.Component("match"),
	})
	s.votes = vote.New(cfg.VoteTunables(), vote.Deps{
		Electorate:  s.roster,
		Broadcaster: s.engine,
		Scheduler:   s.sched,
		Dispatcher:  vote.DispatchFunc(s.dispatch),
		Native:      s.engine,
		OnResolved:  s.metrics.RecordVote,
		Logger:      logging.Component("vote"),
	})
	return s
}

// do runs fn on the loop goroutine and waits for it.
func (s *Server) do(ctx context.Context, fn func()) error {
	if s.loop == nil {
		fn()
		return nil
	}
	return s.loop.Call(ctx, fn)
}

// post queues fn on the loop goroutine.
func (s *Server) post(fn func()) {
	if s.loop == nil {
		fn()
		return
	}
	if err := s.loop.Post(fn); err != nil {
		s.logger.Warn("event dropped", "err", err)
	}
}

// Ledger returns the moderation ledger.
func (s *Server) Ledger() *moderation.Ledger {
	return s.ledger
}

// Roster returns the participant roster.
func (s *Server) Roster() *Roster {
	return s.roster
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
