// Package match governs the warmup, knife round, side choice and pause
// lifecycle of one game server.
//
// A Machine is not safe for concurrent use. All calls, including timer
// callbacks, are expected on the goroutine driving its sched.Scheduler.
package match

import (
	"log/slog"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/sched"
)

// Config holds the match tunables.
type Config struct {
	WarmupMoney        int
	TeamPauseLimit     int
	KnifeReassertDelay time.Duration

	// WarmupOnMapStart re-enters warmup after WarmupDelay when a map starts.
	WarmupOnMapStart bool
	WarmupDelay      time.Duration
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		WarmupMoney:        60000,
		TeamPauseLimit:     3,
		KnifeReassertDelay: 3 * time.Second,
		WarmupOnMapStart:   true,
		WarmupDelay:        2 * time.Second,
	}
}

// Deps are the collaborators of a Machine. Auditor and Logger are optional.
type Deps struct {
	Engine      Engine
	Roster      Roster
	Broadcaster Broadcaster
	Scheduler   sched.Scheduler
	Auditor     Auditor
	Logger      *slog.Logger
}

// Machine is the match state record and its transitions.
type Machine struct {
	cfg    Config
	engine Engine
	roster Roster
	bc     Broadcaster
	sched  sched.Scheduler
	audit  Auditor
	logger *slog.Logger

	warmup               bool
	knifeRound           bool
	knifeOnly            bool
	waitingForSideChoice bool
	knifeWinner          model.Team

	// knifeEpoch invalidates the knife reassert and the delayed warmup.
	knifeEpoch uint64

	pause pauseState
}

// New creates a Machine in the idle state.
func New(cfg Config, deps Deps) *Machine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	m := &Machine{
		cfg:    cfg,
		engine: deps.Engine,
		roster: deps.Roster,
		bc:     deps.Broadcaster,
		sched:  deps.Scheduler,
		audit:  deps.Auditor,
		logger: deps.Logger,
	}
	m.pause.reset()
	return m
}

func (m *Machine) applyProfile(p Profile) {
	m.engine.Exec(p.Commands(m.cfg.WarmupMoney)...)
}

func (m *Machine) logAction(action string, by model.Actor, details string) {
	if m.audit == nil || by == (model.Actor{}) {
		return
	}
	m.audit.LogAction(action, by, model.Actor{}, details)
}

// ---- Warmup ----

// StartWarmup relaxes the economy and funds every connected player. It is a
// no-op while warmup is running. A zero Actor marks an automatic transition
// and is not audited.
func (m *Machine) StartWarmup(by model.Actor) {
	if m.warmup {
		return
	}
	m.releasePause()
	m.ResetKnifeRoundState()
	m.warmup = true
	m.applyProfile(ProfileWarmup)
	for _, p := range m.roster.Participants() {
		if !p.Bot {
			m.engine.GiveMoney(p.SteamID, m.cfg.WarmupMoney)
		}
	}
	m.logger.Info("warmup started")
	m.logAction(model.ActionWarmupStart, by, "")
}

// EndWarmup restores the competitive economy. It is a no-op outside warmup.
func (m *Machine) EndWarmup(by model.Actor) {
	if !m.warmup {
		return
	}
	m.warmup = false
	m.applyProfile(ProfileCompetitive)
	m.engine.Exec(cmdWarmupEnd)
	m.logger.Info("warmup ended")
	m.logAction(model.ActionWarmupEnd, by, "")
}

// StartMatch ends warmup and restarts the game.
func (m *Machine) StartMatch(by model.Actor) {
	m.EndWarmup(by)
	m.engine.Exec(restartCommand(3))
	m.logger.Info("match started")
	m.logAction(model.ActionMatchStart, by, "")
}

// RestartMatch restarts the game after one second.
func (m *Machine) RestartMatch(by model.Actor) {
	m.engine.Exec(restartCommand(1))
	m.logger.Info("match restarted")
	m.logAction(model.ActionRestart, by, "")
}

// GiveWarmupMoney funds a single participant while warmup is running, e.g.
// one who joined after warmup started.
func (m *Machine) GiveWarmupMoney(steamID uint64) {
	if m.warmup {
		m.engine.GiveMoney(steamID, m.cfg.WarmupMoney)
	}
}

// ---- Knife round ----

// StartKnifeRound forces warmup off and restarts into a knife-only round.
// The restart is asserted a second time after KnifeReassertDelay because
// the host may apply settings late.
func (m *Machine) StartKnifeRound(by model.Actor) {
	m.releasePause()
	m.warmup = false
	m.knifeRound = true
	m.knifeOnly = true
	m.waitingForSideChoice = false
	m.knifeWinner = model.TeamNone
	m.knifeEpoch++

	m.engine.Exec("mp_warmup_pausetimer 0", "mp_warmuptime 0", cmdWarmupEnd)
	m.applyProfile(ProfileKnife)
	m.engine.Exec(restartCommand(3))

	epoch := m.knifeEpoch
	m.sched.ScheduleOnce(m.cfg.KnifeReassertDelay, func() {
		if epoch != m.knifeEpoch || !m.knifeRound {
			return
		}
		m.applyProfile(ProfileKnife)
		m.engine.Exec(restartCommand(1))
	})

	m.logger.Info("knife round started")
	m.logAction(model.ActionKnifeRoundStart, by, "")
}

// EndKnifeRound records the winner and holds the match until a side is
// chosen. It is ignored outside a knife round or for a non-playing team.
func (m *Machine) EndKnifeRound(winner model.Team) bool {
	if !m.knifeRound || !winner.Playing() {
		return false
	}
	m.knifeRound = false
	m.knifeWinner = winner
	m.waitingForSideChoice = true
	m.knifeEpoch++
	m.engine.Exec(cmdPause)
	m.logger.Info("knife round ended", "winner", winner.String())
	return true
}

// ChooseSide restores the competitive economy, swaps teams unless stay is
// set, and starts the match. It is a no-op unless a side choice is pending.
func (m *Machine) ChooseSide(stay bool, by model.Actor) {
	if !m.waitingForSideChoice {
		return
	}
	m.waitingForSideChoice = false
	m.knifeOnly = false
	m.applyProfile(ProfileCompetitive)
	if !stay {
		m.engine.Exec(cmdSwapTeams)
	}
	m.engine.Exec(cmdUnpause, restartCommand(3))

	choice := "Switch"
	if stay {
		choice = "Stay"
	}
	m.logger.Info("side chosen", "winner", m.knifeWinner.String(), "choice", choice)
	m.logAction(model.ActionSideChoice, by, choice)
}

// ResetKnifeRoundState clears every knife round flag.
func (m *Machine) ResetKnifeRoundState() {
	m.knifeRound = false
	m.knifeOnly = false
	m.waitingForSideChoice = false
	m.knifeWinner = model.TeamNone
	m.knifeEpoch++
}

// ---- Knife only ----

// EnableKnifeOnly applies the knife profile outside a knife round.
func (m *Machine) EnableKnifeOnly(by model.Actor) {
	m.knifeOnly = true
	m.applyProfile(ProfileKnife)
	m.engine.Exec(restartCommand(1))
	m.logAction(model.ActionKnifeOnlyOn, by, "")
}

// DisableKnifeOnly restores the competitive profile.
func (m *Machine) DisableKnifeOnly(by model.Actor) {
	m.knifeOnly = false
	m.applyProfile(ProfileCompetitive)
	m.engine.Exec(restartCommand(1))
	m.logAction(model.ActionKnifeOnlyOff, by, "")
}

// StripNonMelee removes every non-melee item from a participant. It works on
// a snapshot of the inventory.
func (m *Machine) StripNonMelee(steamID uint64) int {
	items := m.engine.Inventory(steamID)
	removed := 0
	for _, item := range items {
		if item == "" || IsMelee(item) {
			continue
		}
		m.engine.RemoveItem(steamID, item)
		removed++
	}
	return removed
}

// StripAllNonMelee strips every human participant.
func (m *Machine) StripAllNonMelee() {
	for _, p := range m.roster.Participants() {
		if !p.Bot {
			m.StripNonMelee(p.SteamID)
		}
	}
}

// OnRoundStarted strips weapons while knife-only mode is on.
func (m *Machine) OnRoundStarted() {
	if m.knifeOnly {
		m.StripAllNonMelee()
	}
}

// ---- Map lifecycle ----

// ChangeMap switches to name. Workshop names and numeric ids use the
// workshop command. An empty name is a no-op.
func (m *Machine) ChangeMap(name string, by model.Actor) {
	if name == "" {
		return
	}
	m.warmup = false
	m.engine.Exec(mapCommand(name))
	m.logger.Info("changing map", "map", name)
	m.logAction(model.ActionChangeMap, by, "Map: "+name)
}

// OnMapStarted resets every transient flag and quota for the new map and
// schedules warmup when configured.
func (m *Machine) OnMapStarted(name string) {
	m.ResetKnifeRoundState()
	m.ResetPauseState()
	m.warmup = false
	m.logger.Info("map started", "map", name)
	if !m.cfg.WarmupOnMapStart {
		return
	}
	epoch := m.knifeEpoch
	m.sched.ScheduleOnce(m.cfg.WarmupDelay, func() {
		if epoch != m.knifeEpoch {
			return
		}
		m.StartWarmup(model.Actor{})
	})
}

// ---- Status ----

func (m *Machine) IsWarmup() bool             { return m.warmup }
func (m *Machine) IsKnifeRound() bool         { return m.knifeRound }
func (m *Machine) IsKnifeOnly() bool          { return m.knifeOnly }
func (m *Machine) WaitingForSideChoice() bool { return m.waitingForSideChoice }

// KnifeWinnerTeam returns the knife round winner, or TeamNone.
func (m *Machine) KnifeWinnerTeam() model.Team { return m.knifeWinner }

// Live reports whether no warmup, knife round or side choice is running.
func (m *Machine) Live() bool {
	return !m.warmup && !m.knifeRound && !m.waitingForSideChoice
}

// Status is a point-in-time copy of the match state.
type Status struct {
	Warmup               bool           `json:"warmup"`
	KnifeRound           bool           `json:"knife_round"`
	KnifeOnly            bool           `json:"knife_only"`
	WaitingForSideChoice bool           `json:"waiting_for_side_choice"`
	KnifeWinner          string         `json:"knife_winner,omitempty"`
	Paused               bool           `json:"paused"`
	PauseKind            string         `json:"pause_kind"`
	PauseOwner           string         `json:"pause_owner,omitempty"`
	PauseRemaining       int            `json:"pause_remaining_seconds"`
	WaitingForPlayer     uint64         `json:"waiting_for_player,omitempty"`
	PausesRemaining      map[string]int `json:"team_pauses_remaining"`
}

// Snapshot returns the current Status.
func (m *Machine) Snapshot() Status {
	s := Status{
		Warmup:               m.warmup,
		KnifeRound:           m.knifeRound,
		KnifeOnly:            m.knifeOnly,
		WaitingForSideChoice: m.waitingForSideChoice,
		Paused:               m.pause.active,
		PauseKind:            m.pause.kind.String(),
		PauseRemaining:       m.pause.remaining,
		PausesRemaining: map[string]int{
			model.TeamT.String():  m.TeamPausesRemaining(model.TeamT),
			model.TeamCT.String(): m.TeamPausesRemaining(model.TeamCT),
		},
	}
	if m.knifeWinner.Playing() {
		s.KnifeWinner = m.knifeWinner.String()
	}
	if m.pause.owner.Playing() {
		s.PauseOwner = m.pause.owner.String()
	}
	if m.pause.active && m.pause.kind == PauseDisconnect {
		s.WaitingForPlayer = m.DisconnectedSubject()
	}
	return s
}
