package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/match"
	"github.com/NicolasHaas/matchadmin/pkg/vote"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Bridge counters
	BridgeConnections atomic.Int64 // lifetime host connections accepted
	BridgeActive      atomic.Int64 // 1 while a host is attached
	FailedAuths       atomic.Int64 // rejected hello messages
	EventsIn          atomic.Int64 // host events received
	CommandsOut       atomic.Int64 // commands sent to the host
	CommandsDropped   atomic.Int64 // commands dropped while no host was attached

	// Moderation counters
	BanCount    atomic.Int64
	UnbanCount  atomic.Int64
	MuteCount   atomic.Int64
	UnmuteCount atomic.Int64
	KickCount   atomic.Int64

	// Vote counters
	VotesStarted   atomic.Int64
	VotesPassed    atomic.Int64
	VotesFailed    atomic.Int64
	VotesCancelled atomic.Int64

	// Match counters
	AdminPauses      atomic.Int64
	VotePauses       atomic.Int64
	DisconnectPauses atomic.Int64
	KnifeRounds      atomic.Int64

	RejectedCommands atomic.Int64 // chat commands denied or refused
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	BridgeConnections int64 `json:"bridge_connections"`
	BridgeActive      int64 `json:"bridge_active"`
	FailedAuths       int64 `json:"failed_auths"`
	EventsIn          int64 `json:"events_in"`
	CommandsOut       int64 `json:"commands_out"`
	CommandsDropped   int64 `json:"commands_dropped"`

	BanCount    int64 `json:"ban_count"`
	UnbanCount  int64 `json:"unban_count"`
	MuteCount   int64 `json:"mute_count"`
	UnmuteCount int64 `json:"unmute_count"`
	KickCount   int64 `json:"kick_count"`

	VotesStarted   int64 `json:"votes_started"`
	VotesPassed    int64 `json:"votes_passed"`
	VotesFailed    int64 `json:"votes_failed"`
	VotesCancelled int64 `json:"votes_cancelled"`

	AdminPauses      int64 `json:"admin_pauses"`
	VotePauses       int64 `json:"vote_pauses"`
	DisconnectPauses int64 `json:"disconnect_pauses"`
	KnifeRounds      int64 `json:"knife_rounds"`

	RejectedCommands int64 `json:"rejected_commands"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		BridgeConnections: m.BridgeConnections.Load(),
		BridgeActive:      m.BridgeActive.Load(),
		FailedAuths:       m.FailedAuths.Load(),
		EventsIn:          m.EventsIn.Load(),
		CommandsOut:       m.CommandsOut.Load(),
		CommandsDropped:   m.CommandsDropped.Load(),
		BanCount:          m.BanCount.Load(),
		UnbanCount:        m.UnbanCount.Load(),
		MuteCount:         m.MuteCount.Load(),
		UnmuteCount:       m.UnmuteCount.Load(),
		KickCount:         m.KickCount.Load(),
		VotesStarted:      m.VotesStarted.Load(),
		VotesPassed:       m.VotesPassed.Load(),
		VotesFailed:       m.VotesFailed.Load(),
		VotesCancelled:    m.VotesCancelled.Load(),
		AdminPauses:       m.AdminPauses.Load(),
		VotePauses:        m.VotePauses.Load(),
		DisconnectPauses:  m.DisconnectPauses.Load(),
		KnifeRounds:       m.KnifeRounds.Load(),
		RejectedCommands:  m.RejectedCommands.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// RecordVote counts a vote outcome. It is the coordinator's OnResolved hook.
func (m *Metrics) RecordVote(_ vote.Type, outcome vote.Outcome) {
	switch outcome {
	case vote.Passed:
		m.VotesPassed.Add(1)
	case vote.Failed:
		m.VotesFailed.Add(1)
	default:
		m.VotesCancelled.Add(1)
	}
}

// RecordPause counts a pause of the given kind.
func (m *Metrics) RecordPause(kind match.PauseKind) {
	switch kind {
	case match.PauseAdmin:
		m.AdminPauses.Add(1)
	case match.PauseVote:
		m.VotePauses.Add(1)
	case match.PauseDisconnect:
		m.DisconnectPauses.Add(1)
	}
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"bridge_active", s.BridgeActive,
		"events_in", s.EventsIn,
		"commands_out", s.CommandsOut,
		"commands_dropped", s.CommandsDropped,
		"bans", s.BanCount,
		"mutes", s.MuteCount,
		"kicks", s.KickCount,
		"votes", s.VotesStarted,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
