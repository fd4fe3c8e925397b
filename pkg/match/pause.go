package match

import (
	"fmt"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/sched"
)

// PauseKind tells who asked for the active pause.
type PauseKind int

const (
	PauseNone PauseKind = iota
	PauseAdmin
	PauseVote
	PauseDisconnect
)

func (k PauseKind) String() string {
	switch k {
	case PauseAdmin:
		return "admin"
	case PauseVote:
		return "vote"
	case PauseDisconnect:
		return "disconnect"
	default:
		return "none"
	}
}

type pauseState struct {
	active       bool
	kind         PauseKind
	owner        model.Team
	remaining    int
	used         map[model.Team]int
	disconnected map[model.Team]bool

	// subject is the player whose disconnect caused the active pause.
	subject uint64

	// epoch changes whenever a pause ends so stale ticks do nothing.
	epoch uint64
	timer sched.Timer
}

func (p *pauseState) reset() {
	p.stop()
	p.used = make(map[model.Team]int)
	p.disconnected = make(map[model.Team]bool)
}

// stop ends the active pause without touching quotas.
func (p *pauseState) stop() bool {
	wasActive := p.active
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.epoch++
	p.active = false
	p.kind = PauseNone
	p.owner = model.TeamNone
	p.remaining = 0
	p.subject = 0
	return wasActive
}

// PauseMatch pauses the match until UnpauseMatch. It is a no-op while any
// pause is active.
func (m *Machine) PauseMatch(by model.Actor) {
	if m.pause.active {
		return
	}
	m.pause.epoch++
	m.pause.active = true
	m.pause.kind = PauseAdmin
	m.engine.Exec(cmdPause)
	m.logger.Info("match paused", "kind", PauseAdmin.String())
	m.logAction(model.ActionPause, by, "")
}

// UnpauseMatch ends any active pause and cancels its countdown. It is a
// no-op when the match is not paused.
func (m *Machine) UnpauseMatch(by model.Actor) {
	if !m.pause.active {
		return
	}
	kind := m.pause.kind
	m.resume("Match resumed.")
	m.logger.Info("match unpaused", "kind", kind.String())
	m.logAction(model.ActionUnpause, by, "")
}

// PauseMatchTimed starts a timed pause owned by team. Vote pauses consume
// one unit of the team's quota. The match resumes by itself once the
// countdown reaches zero.
func (m *Machine) PauseMatchTimed(kind PauseKind, team model.Team, seconds int) (bool, string) {
	if ok, reason := m.canPauseTimed(kind, team, seconds); !ok {
		return false, reason
	}
	if kind == PauseVote {
		if m.pause.used[team] >= m.cfg.TeamPauseLimit {
			return false, fmt.Sprintf("%s has no pauses remaining (limit %d per map).", team, m.cfg.TeamPauseLimit)
		}
		m.pause.used[team]++
	}
	m.startTimed(kind, team, seconds)
	return true, ""
}

// PauseForDisconnect starts a timed disconnect pause for subject's team.
// Each team gets one disconnect pause per map.
func (m *Machine) PauseForDisconnect(subject uint64, team model.Team, seconds int) (bool, string) {
	if ok, reason := m.canPauseTimed(PauseDisconnect, team, seconds); !ok {
		return false, reason
	}
	if m.pause.disconnected[team] {
		return false, fmt.Sprintf("%s already used its disconnect pause this map.", team)
	}
	m.pause.disconnected[team] = true
	m.startTimed(PauseDisconnect, team, seconds)
	m.pause.subject = subject
	return true, ""
}

func (m *Machine) canPauseTimed(kind PauseKind, team model.Team, seconds int) (bool, string) {
	switch {
	case kind != PauseVote && kind != PauseDisconnect:
		return false, "Only vote and disconnect pauses are timed."
	case m.pause.active:
		return false, "The match is already paused."
	case m.warmup:
		return false, "Cannot pause during warmup."
	case m.knifeRound:
		return false, "Cannot pause during the knife round."
	case m.waitingForSideChoice:
		return false, "Cannot pause while waiting for side choice."
	case !team.Playing():
		return false, "Only T or CT can pause the match."
	case seconds <= 0:
		return false, "Pause duration must be positive."
	}
	return true, ""
}

func (m *Machine) startTimed(kind PauseKind, team model.Team, seconds int) {
	m.pause.epoch++
	m.pause.active = true
	m.pause.kind = kind
	m.pause.owner = team
	m.pause.remaining = seconds
	m.engine.Exec(cmdPause)
	m.bc.Broadcast(fmt.Sprintf("Match paused by %s (%s). Resuming in %d seconds.", team, kind, seconds))
	m.logger.Info("match paused", "kind", kind.String(), "team", team.String(), "seconds", seconds)

	epoch := m.pause.epoch
	m.pause.timer = m.sched.ScheduleRepeating(time.Second, func() { m.tick(epoch) })
}

func (m *Machine) tick(epoch uint64) {
	if epoch != m.pause.epoch || !m.pause.active {
		return
	}
	m.pause.remaining--
	if m.pause.remaining <= 0 {
		m.logger.Info("pause expired", "kind", m.pause.kind.String())
		m.resume("Pause time is over. Match resumed.")
		return
	}
	m.bc.Broadcast(fmt.Sprintf("Match resumes in %d seconds.", m.pause.remaining))
}

// resume ends the active pause, unpauses the engine and announces it.
func (m *Machine) resume(message string) {
	if !m.pause.stop() {
		return
	}
	m.engine.Exec(cmdUnpause)
	m.bc.Broadcast(message)
}

// releasePause ends an active pause silently before another transition.
func (m *Machine) releasePause() {
	if m.pause.stop() {
		m.engine.Exec(cmdUnpause)
	}
}

// OnPlayerReconnect ends a disconnect pause caused by subject. Any other
// reconnect leaves the pause alone.
func (m *Machine) OnPlayerReconnect(subject uint64) bool {
	if !m.pause.active || m.pause.kind != PauseDisconnect || m.pause.subject != subject {
		return false
	}
	m.logger.Info("disconnected player returned", "subject", subject)
	m.resume("Player reconnected. Match resumed.")
	return true
}

// ResetPauseState ends any pause without engine commands and restores every
// quota. It runs on map change.
func (m *Machine) ResetPauseState() {
	m.pause.reset()
}

func (m *Machine) IsPaused() bool              { return m.pause.active }
func (m *Machine) ActivePauseKind() PauseKind  { return m.pause.kind }
func (m *Machine) PauseOwner() model.Team      { return m.pause.owner }
func (m *Machine) PauseRemainingSeconds() int  { return m.pause.remaining }
func (m *Machine) DisconnectedSubject() uint64 { return m.pause.subject }

// TeamPausesRemaining returns how many vote pauses team may still take on
// this map.
func (m *Machine) TeamPausesRemaining(team model.Team) int {
	left := m.cfg.TeamPauseLimit - m.pause.used[team]
	if left < 0 {
		return 0
	}
	return left
}

// DisconnectPauseAvailable reports whether team still has its disconnect
// pause for this map.
func (m *Machine) DisconnectPauseAvailable(team model.Team) bool {
	return team.Playing() && !m.pause.disconnected[team]
}
