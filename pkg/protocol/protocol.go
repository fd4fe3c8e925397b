// Package protocol frames bridge messages between the host plugin and the
// admin core.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	pb "github.com/NicolasHaas/matchadmin/pkg/protocol/pb"
)

const (
	// MaxMessage is the maximum frame payload size (64KB).
	MaxMessage = 65536

	// DefaultPort is the default bridge TCP port.
	DefaultPort = 27110
)

var ErrMessageTooLarge = errors.New("protocol: message too large")

// WriteMessage writes a length-prefixed JSON envelope to a writer.
// Format: [4-byte big-endian length][JSON payload]
func WriteMessage(w io.Writer, msg *pb.Envelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("protocol: marshal: %w", err)
	}
	if len(data) > MaxMessage {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	// Single write so concurrent readers never observe a split frame.
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data))) //nolint:gosec // length already bounds-checked above
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}

// ReadMessage reads a length-prefixed JSON envelope from a reader.
func ReadMessage(r io.Reader) (*pb.Envelope, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("protocol: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxMessage {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}

	msg := &pb.Envelope{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal: %w", err)
	}
	return msg, nil
}

// Kind names the field set on an envelope, for logs and metrics.
func Kind(msg *pb.Envelope) string {
	switch {
	case msg == nil:
		return "nil"
	case msg.Hello != nil:
		return "hello"
	case msg.Welcome != nil:
		return "welcome"
	case msg.Error != nil:
		return "error"
	case msg.Ping != nil:
		return "ping"
	case msg.Pong != nil:
		return "pong"
	case msg.PlayerConnected != nil:
		return "player_connected"
	case msg.PlayerDisconnected != nil:
		return "player_disconnected"
	case msg.Chat != nil:
		return "chat"
	case msg.RoundStarted != nil:
		return "round_started"
	case msg.RoundEnded != nil:
		return "round_ended"
	case msg.MapStarted != nil:
		return "map_started"
	case msg.Roster != nil:
		return "roster"
	case msg.Inventory != nil:
		return "inventory"
	case msg.NativeVoteResult != nil:
		return "native_vote_result"
	case msg.Exec != nil:
		return "exec"
	case msg.Broadcast != nil:
		return "broadcast"
	case msg.Tell != nil:
		return "tell"
	case msg.Kick != nil:
		return "kick"
	case msg.SetMoney != nil:
		return "set_money"
	case msg.RemoveItem != nil:
		return "remove_item"
	case msg.InventoryRequest != nil:
		return "inventory_request"
	case msg.NativeVoteStart != nil:
		return "native_vote_start"
	default:
		return "empty"
	}
}
