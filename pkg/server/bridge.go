package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/NicolasHaas/matchadmin/pkg/match"
	"github.com/NicolasHaas/matchadmin/pkg/protocol"
	pb "github.com/NicolasHaas/matchadmin/pkg/protocol/pb"
	"github.com/NicolasHaas/matchadmin/pkg/vote"
)

var errNoHost = errors.New("server: no host attached")

// hostLink is the single active host connection. A newly attached host
// replaces the previous one.
type hostLink struct {
	mu sync.Mutex
	w  io.Writer
	id string
}

// attach makes w the active host and returns the id of the replaced one.
// A replaced writer that is also an io.Closer is closed.
func (h *hostLink) attach(id string, w io.Writer) string {
	h.mu.Lock()
	prev, prevW := h.id, h.w
	h.id, h.w = id, w
	h.mu.Unlock()
	if c, ok := prevW.(io.Closer); ok && prevW != w {
		_ = c.Close()
	}
	return prev
}

// detach clears the link if id is still the active host.
func (h *hostLink) detach(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.id != id {
		return false
	}
	h.id, h.w = "", nil
	return true
}

func (h *hostLink) active() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

func (h *hostLink) send(msg *pb.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.w == nil {
		return errNoHost
	}
	return protocol.WriteMessage(h.w, msg)
}

// bridgeEngine turns engine directives and chat output into bridge commands.
// It implements match.Engine, match.Broadcaster, vote.Broadcaster and
// vote.NativeHost.
type bridgeEngine struct {
	link    *hostLink
	roster  *Roster
	metrics *Metrics
	prefix  string
	logger  *slog.Logger
}

var (
	_ match.Engine    = (*bridgeEngine)(nil)
	_ vote.NativeHost = (*bridgeEngine)(nil)
)

func (e *bridgeEngine) send(msg *pb.Envelope) {
	if err := e.link.send(msg); err != nil {
		if errors.Is(err, errNoHost) {
			e.metrics.CommandsDropped.Add(1)
			e.logger.Warn("command dropped, no host attached", "kind", protocol.Kind(msg))
			return
		}
		e.logger.Error("command write failed", "kind", protocol.Kind(msg), "err", err)
		return
	}
	e.metrics.CommandsOut.Add(1)
}

// Exec sends console commands in order.
func (e *bridgeEngine) Exec(commands ...string) {
	for _, c := range commands {
		e.send(&pb.Envelope{Exec: &pb.Exec{Command: c}})
	}
}

func (e *bridgeEngine) GiveMoney(steamID uint64, amount int) {
	e.send(&pb.Envelope{SetMoney: &pb.SetMoney{SteamID: steamID, Amount: amount}})
}

// Inventory returns the last inventory the host reported for a participant.
func (e *bridgeEngine) Inventory(steamID uint64) []string {
	return e.roster.Inventory(steamID)
}

func (e *bridgeEngine) RemoveItem(steamID uint64, item string) {
	e.roster.DropItem(steamID, item)
	e.send(&pb.Envelope{RemoveItem: &pb.RemoveItem{SteamID: steamID, Item: item}})
}

// RequestInventory asks the host for a fresh inventory snapshot.
func (e *bridgeEngine) RequestInventory(steamID uint64) {
	e.send(&pb.Envelope{InventoryRequest: &pb.InventoryRequest{SteamID: steamID}})
}

// Broadcast sends a prefixed chat line to everyone.
func (e *bridgeEngine) Broadcast(message string) {
	e.send(&pb.Envelope{Broadcast: &pb.Broadcast{Text: e.prefixed(message)}})
}

// Tell sends a prefixed chat line to one participant.
func (e *bridgeEngine) Tell(steamID uint64, message string) {
	e.send(&pb.Envelope{Tell: &pb.Tell{SteamID: steamID, Text: e.prefixed(message)}})
}

// Kick disconnects a participant with a reason.
func (e *bridgeEngine) Kick(steamID uint64, reason string) {
	e.send(&pb.Envelope{Kick: &pb.Kick{SteamID: steamID, Reason: reason}})
}

func (e *bridgeEngine) StartNativeVote(req vote.NativeRequest) {
	e.send(&pb.Envelope{NativeVoteStart: &pb.NativeVoteStart{
		VoteID:           req.ID,
		Title:            req.Title,
		Detail:           req.Detail,
		Team:             req.Team,
		DurationSeconds:  int(req.Duration.Seconds()),
		ThresholdPercent: req.ThresholdPercent,
	}})
}

func (e *bridgeEngine) prefixed(message string) string {
	if e.prefix == "" {
		return message
	}
	return e.prefix + " " + message
}
