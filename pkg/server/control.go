package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/NicolasHaas/matchadmin/pkg/crypto"
	"github.com/NicolasHaas/matchadmin/pkg/protocol"
	pb "github.com/NicolasHaas/matchadmin/pkg/protocol/pb"
	"github.com/NicolasHaas/matchadmin/pkg/version"
)

const (
	helloTimeout = 10 * time.Second

	errCodeHandshake = 1
	errCodeAuth      = 2
)

// hostConn serializes writes to one host connection. Replies written by the
// read loop and commands written through the hostLink never interleave.
type hostConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *hostConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(p)
}

func (c *hostConn) Close() error {
	return c.conn.Close()
}

// StartBridge starts the host bridge listener. TLS 1.3 is used unless
// BridgeTLS is off.
func (s *Server) StartBridge() error {
	var (
		ln  net.Listener
		err error
	)
	if s.cfg.BridgeTLS {
		cert, cerr := loadOrGenerateTLS(s.cfg)
		if cerr != nil {
			return fmt.Errorf("server: tls: %w", cerr)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
		}
		ln, err = tls.Listen("tcp", s.cfg.BridgeAddr, tlsCfg)
	} else {
		ln, err = net.Listen("tcp", s.cfg.BridgeAddr)
	}
	if err != nil {
		return fmt.Errorf("server: listen bridge: %w", err)
	}
	s.listener = ln

	if s.cfg.BridgeSecretHash == "" {
		s.logger.Warn("bridge secret not configured, any host may attach")
	}
	s.logger.Info("bridge listening", "addr", ln.Addr().String(), "tls", s.cfg.BridgeTLS)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if isClosedErr(err) {
					return
				}
				s.logger.Error("accept error", "err", err)
				continue
			}
			go s.handleBridgeConn(conn)
		}
	}()

	return nil
}

// handleBridgeConn runs one host connection: handshake, then the read loop.
func (s *Server) handleBridgeConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	remote := conn.RemoteAddr().String()
	s.metrics.BridgeConnections.Add(1)
	s.logger.Debug("new bridge connection", "remote", remote)

	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		s.logger.Warn("hello read failed", "remote", remote, "err", err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if msg.Hello == nil {
		sendError(conn, errCodeHandshake, "first message must be hello")
		return
	}
	if !s.authorizeHost(msg.Hello.Secret) {
		s.metrics.FailedAuths.Add(1)
		s.logger.Warn("bridge authentication failed", "remote", remote)
		sendError(conn, errCodeAuth, "authentication failed")
		return
	}

	id := uuid.NewString()
	hc := &hostConn{conn: conn}
	if err := protocol.WriteMessage(hc, &pb.Envelope{
		Welcome: &pb.Welcome{Session: id, Version: version.String()},
	}); err != nil {
		s.logger.Warn("welcome write failed", "remote", remote, "err", err)
		return
	}

	if prev := s.link.attach(id, hc); prev != "" {
		s.logger.Info("host replaced", "previous", prev, "session", id)
	}
	s.metrics.BridgeActive.Add(1)
	defer func() {
		s.metrics.BridgeActive.Add(-1)
		if s.link.detach(id) {
			s.logger.Info("host detached", "session", id)
		}
	}()

	hello := msg.Hello
	s.logger.Info("host attached", "session", id, "remote", remote,
		"server_name", hello.ServerName, "map", hello.Map)
	s.post(func() {
		s.serverName = sanitizeText(hello.ServerName)
		if hello.Map != "" {
			s.onMapStarted(hello.Map)
		}
	})

	for {
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || isClosedErr(err) {
				s.logger.Debug("bridge connection closed", "session", id)
			} else {
				s.logger.Warn("bridge read error", "session", id, "err", err)
			}
			return
		}

		if msg.Ping != nil {
			_ = protocol.WriteMessage(hc, &pb.Envelope{Pong: &pb.Pong{Timestamp: msg.Ping.Timestamp}})
			continue
		}
		if msg.Chat != nil {
			msg.Chat.Text = sanitizeText(msg.Chat.Text)
		}
		s.post(func() { s.handleEvent(msg) })
	}
}

// authorizeHost checks the hello secret against the configured hash.
// An empty hash admits every host.
func (s *Server) authorizeHost(secret string) bool {
	if s.cfg.BridgeSecretHash == "" {
		return true
	}
	ok, err := crypto.VerifySecret(s.cfg.BridgeSecretHash, secret)
	if err != nil {
		s.logger.Error("bridge secret hash is malformed", "err", err)
		return false
	}
	return ok
}

func sendError(w io.Writer, code int32, message string) {
	_ = protocol.WriteMessage(w, &pb.Envelope{
		Error: &pb.ErrorResponse{Code: code, Message: message},
	})
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "tls: use of closed connection")
}

// sanitizeText strips control characters from host-supplied text. Newlines
// collapse to spaces.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
