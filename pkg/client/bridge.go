// Package client implements the host side of the matchadmin bridge. The
// console tool uses it to stand in for a game server plugin.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/protocol"
	pb "github.com/NicolasHaas/matchadmin/pkg/protocol/pb"
)

// CommandHandler is a callback for commands received from the core.
type CommandHandler func(msg *pb.Envelope)

// BridgeClient manages one host connection to the core.
type BridgeClient struct {
	conn    net.Conn
	mu      sync.Mutex
	handler CommandHandler
	done    chan struct{}
}

// Dial connects to the core bridge, over TLS unless insecure is set.
func Dial(ctx context.Context, addr string, insecure bool) (*BridgeClient, error) {
	var (
		conn net.Conn
		err  error
	)
	if insecure {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		dialer := &tls.Dialer{Config: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // the core generates a self-signed certificate
			MinVersion:         tls.VersionTLS13,
		}}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("client: connect bridge: %w", err)
	}
	return NewBridgeClient(conn), nil
}

// NewBridgeClient wraps an established connection.
func NewBridgeClient(conn net.Conn) *BridgeClient {
	return &BridgeClient{
		conn: conn,
		done: make(chan struct{}),
	}
}

// SetCommandHandler sets the callback for incoming commands.
func (c *BridgeClient) SetCommandHandler(handler CommandHandler) {
	c.handler = handler
}

// Send sends an event to the core.
func (c *BridgeClient) Send(msg *pb.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteMessage(c.conn, msg)
}

// Hello performs the handshake and returns the core's welcome.
func (c *BridgeClient) Hello(secret, serverName, mapName string) (*pb.Welcome, error) {
	if err := c.Send(&pb.Envelope{
		Hello: &pb.Hello{Secret: secret, ServerName: serverName, Map: mapName},
	}); err != nil {
		return nil, fmt.Errorf("client: send hello: %w", err)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	msg, err := protocol.ReadMessage(c.conn)
	_ = c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("client: read welcome: %w", err)
	}

	if msg.Error != nil {
		return nil, fmt.Errorf("client: handshake rejected: %s", msg.Error.Message)
	}
	if msg.Welcome == nil {
		return nil, fmt.Errorf("client: unexpected %s during handshake", protocol.Kind(msg))
	}
	return msg.Welcome, nil
}

// StartReceiving starts a goroutine that reads incoming commands and
// dispatches them to the handler.
func (c *BridgeClient) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			msg, err := protocol.ReadMessage(c.conn)
			if err != nil {
				if errors.Is(err, io.EOF) || isClosedErr(err) {
					slog.Debug("bridge connection closed")
					return
				}
				slog.Error("bridge read error", "err", err)
				return
			}
			if c.handler != nil {
				c.handler(msg)
			}
		}
	}()
}

// Close closes the bridge connection.
func (c *BridgeClient) Close() error {
	return c.conn.Close()
}

// Done returns a channel that's closed when the connection is lost.
func (c *BridgeClient) Done() <-chan struct{} {
	return c.done
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
