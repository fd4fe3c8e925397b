// Package vote runs player votes: one at a time, time-boxed, with a
// per-type cooldown, handing the outcome of a passed vote to a Dispatcher.
//
// A Coordinator is not safe for concurrent use; it expects every call and
// timer callback on the goroutine driving its sched.Scheduler.
package vote

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/sched"
)

// Config holds the vote tunables.
type Config struct {
	ThresholdPercent   int
	Duration           time.Duration
	Cooldown           time.Duration
	MinimumVoters      int
	InitiatorAutoYes   bool
	SideChoiceDuration time.Duration

	// UseNative delegates ballot collection to the host's vote primitive.
	UseNative bool
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		ThresholdPercent:   60,
		Duration:           30 * time.Second,
		Cooldown:           60 * time.Second,
		MinimumVoters:      3,
		InitiatorAutoYes:   true,
		SideChoiceDuration: 15 * time.Second,
	}
}

// Electorate counts eligible voters. One function serves the minimum check,
// the percentage denominator and the early-fail ceiling.
type Electorate interface {
	EligibleVoters() int
	TeamVoters(team model.Team) int
}

// Broadcaster sends a chat message to every participant.
type Broadcaster interface {
	Broadcast(message string)
}

// Outcome is how a vote ended.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "cancelled"
	}
}

// Deps are the collaborators of a Coordinator. Native is required only when
// Config.UseNative is set. OnResolved and Logger are optional.
type Deps struct {
	Electorate  Electorate
	Broadcaster Broadcaster
	Scheduler   sched.Scheduler
	Dispatcher  Dispatcher
	Native      NativeHost
	OnResolved  func(t Type, outcome Outcome)
	Logger      *slog.Logger
}

// Vote is the active poll.
type Vote struct {
	ID        uint64
	Action    Action
	Initiator model.Actor

	// Team restricts the electorate; TeamNone means every eligible voter.
	Team      model.Team
	Yes       map[uint64]struct{}
	No        map[uint64]struct{}
	StartedAt time.Time
	ExpiresAt time.Time
	Native    bool

	nativeYes, nativeNo, nativeEligible int
}

// YesCount returns the number of yes ballots.
func (v *Vote) YesCount() int {
	if v.Native {
		return v.nativeYes
	}
	return len(v.Yes)
}

// NoCount returns the number of no ballots.
func (v *Vote) NoCount() int {
	if v.Native {
		return v.nativeNo
	}
	return len(v.No)
}

func (v *Vote) voted(id uint64) bool {
	_, yes := v.Yes[id]
	_, no := v.No[id]
	return yes || no
}

// Coordinator owns the single active vote and the cooldown table.
type Coordinator struct {
	cfg        Config
	electorate Electorate
	bc         Broadcaster
	sched      sched.Scheduler
	dispatch   Dispatcher
	native     NativeHost
	onResolved func(Type, Outcome)
	logger     *slog.Logger

	current   *Vote
	nextID    uint64
	timer     sched.Timer
	cooldowns map[Type]time.Time
}

// New creates a Coordinator with no active vote.
func New(cfg Config, deps Deps) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Coordinator{
		cfg:        cfg,
		electorate: deps.Electorate,
		bc:         deps.Broadcaster,
		sched:      deps.Scheduler,
		dispatch:   deps.Dispatcher,
		native:     deps.Native,
		onResolved: deps.OnResolved,
		logger:     deps.Logger,
		cooldowns:  make(map[Type]time.Time),
	}
}

// Start opens a vote for action. Policy rejections come back as
// (false, reason).
func (c *Coordinator) Start(action Action, initiator model.Actor) (bool, string) {
	if c.current != nil {
		return false, "A vote is already in progress."
	}
	players := c.electorate.EligibleVoters()
	if players < c.cfg.MinimumVoters {
		return false, fmt.Sprintf("Not enough players to start a vote. Need at least %d players.", c.cfg.MinimumVoters)
	}
	if remaining := c.CooldownRemaining(action.Type()); remaining > 0 {
		return false, fmt.Sprintf("Vote on cooldown. Please wait %d seconds.", ceilSeconds(remaining))
	}

	v := c.open(action, initiator, model.TeamNone, c.cfg.Duration)
	desc := action.Describe()
	c.logger.Info("vote started", "vote", v.ID, "type", action.Type().String(), "initiator", initiator.ID)

	if v.Native {
		c.native.StartNativeVote(NativeRequest{
			ID:               v.ID,
			Title:            "Vote: " + desc,
			Detail:           "Initiated by " + initiator.Name,
			Duration:         c.cfg.Duration,
			ThresholdPercent: c.cfg.ThresholdPercent,
		})
		c.bc.Broadcast("Vote started: " + desc)
		return true, "Vote started: " + desc
	}

	if c.cfg.InitiatorAutoYes && initiator.ID != 0 {
		v.Yes[initiator.ID] = struct{}{}
	}
	c.bc.Broadcast("Vote started: " + desc)
	c.bc.Broadcast(fmt.Sprintf("Type .yes or .no to vote. (%d seconds remaining)", ceilSeconds(c.cfg.Duration)))

	if c.cfg.InitiatorAutoYes {
		// A lone initiator may already satisfy the threshold.
		if decided, passed := c.decide(players); decided {
			c.resolve(passed)
		}
	}
	return true, "Vote started: " + desc
}

func (c *Coordinator) open(action Action, initiator model.Actor, team model.Team, d time.Duration) *Vote {
	c.nextID++
	now := c.sched.Now()
	v := &Vote{
		ID:        c.nextID,
		Action:    action,
		Initiator: initiator,
		Team:      team,
		Yes:       make(map[uint64]struct{}),
		No:        make(map[uint64]struct{}),
		StartedAt: now,
		ExpiresAt: now.Add(d),
		Native:    c.cfg.UseNative && c.native != nil,
	}
	c.current = v
	id := v.ID
	c.timer = c.sched.ScheduleOnce(d, func() { c.expire(id) })
	return v
}

// Cast records a ballot. Each participant votes once and cannot change it.
func (c *Coordinator) Cast(voter uint64, yes bool) (bool, string) {
	v := c.current
	if v == nil || v.Action.Type() == TypeSideChoice {
		return false, "No active vote."
	}
	if v.Native {
		return false, "Use the in-game vote panel to vote."
	}
	if v.voted(voter) {
		return false, "You have already voted."
	}
	if yes {
		v.Yes[voter] = struct{}{}
	} else {
		v.No[voter] = struct{}{}
	}

	players := c.electorate.EligibleVoters()
	if decided, passed := c.decide(players); decided {
		c.resolve(passed)
		if passed {
			return true, "Vote passed!"
		}
		return true, "Vote failed."
	}
	return true, fmt.Sprintf("Vote recorded. Current: %d yes, %d no (%.0f%%)", len(v.Yes), len(v.No), percent(len(v.Yes), players))
}

// decide applies the early pass and early fail rules to the current tally.
func (c *Coordinator) decide(players int) (decided, passed bool) {
	v := c.current
	if players <= 0 {
		return false, false
	}
	yes := len(v.Yes)
	if percent(yes, players) >= float64(c.cfg.ThresholdPercent) {
		return true, true
	}
	undecided := max(0, players-len(v.Yes)-len(v.No))
	if percent(yes+undecided, players) < float64(c.cfg.ThresholdPercent) {
		return true, false
	}
	return false, false
}

func (c *Coordinator) expire(id uint64) {
	if c.current == nil || c.current.ID != id {
		return
	}
	c.logger.Info("vote expired", "vote", id)
	if c.current.Action.Type() == TypeSideChoice {
		c.resolveSideChoice()
		return
	}
	c.resolve(false)
}

// resolve ends the current vote, stamps the cooldown for its type and
// dispatches the action if it passed.
func (c *Coordinator) resolve(passed bool) {
	v := c.finish()
	if v == nil {
		return
	}
	c.cooldowns[v.Action.Type()] = c.sched.Now()

	players := c.electorate.EligibleVoters()
	if v.Native && v.nativeEligible > 0 {
		players = v.nativeEligible
	}
	verdict := "failed"
	outcome := Failed
	if passed {
		verdict = "passed"
		outcome = Passed
	}
	c.bc.Broadcast(fmt.Sprintf("Vote %s: %s (%d/%d, %.0f%%)", verdict, v.Action.Describe(), v.YesCount(), players, percent(v.YesCount(), players)))
	c.logger.Info("vote resolved", "vote", v.ID, "type", v.Action.Type().String(), "outcome", outcome.String(), "yes", v.YesCount(), "no", v.NoCount())
	c.notify(v.Action.Type(), outcome)
	if passed {
		c.dispatch.Dispatch(v.Action, v.Initiator)
	}
}

func (c *Coordinator) finish() *Vote {
	v := c.current
	if v == nil {
		return nil
	}
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return v
}

func (c *Coordinator) notify(t Type, outcome Outcome) {
	if c.onResolved != nil {
		c.onResolved(t, outcome)
	}
}

// Cancel discards the active vote without stamping a cooldown.
func (c *Coordinator) Cancel() bool {
	v := c.finish()
	if v == nil {
		return false
	}
	c.bc.Broadcast("Vote cancelled.")
	c.logger.Info("vote cancelled", "vote", v.ID, "type", v.Action.Type().String())
	c.notify(v.Action.Type(), Cancelled)
	return true
}

// HasActiveVote reports whether a vote is open.
func (c *Coordinator) HasActiveVote() bool {
	return c.current != nil
}

// CooldownRemaining returns how long votes of type t stay blocked.
func (c *Coordinator) CooldownRemaining(t Type) time.Duration {
	last, ok := c.cooldowns[t]
	if !ok {
		return 0
	}
	remaining := c.cfg.Cooldown - c.sched.Now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetCooldowns forgets every cooldown.
func (c *Coordinator) ResetCooldowns() {
	clear(c.cooldowns)
}

// Summary is a read-only view of the active vote.
type Summary struct {
	ID               uint64 `json:"id"`
	Type             string `json:"type"`
	Description      string `json:"description"`
	InitiatorID      uint64 `json:"initiator_id"`
	Yes              int    `json:"yes"`
	No               int    `json:"no"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Native           bool   `json:"native"`
}

// Current returns the active vote summary, or nil.
func (c *Coordinator) Current() *Summary {
	v := c.current
	if v == nil {
		return nil
	}
	remaining := max(0, v.ExpiresAt.Sub(c.sched.Now()))
	return &Summary{
		ID:               v.ID,
		Type:             v.Action.Type().String(),
		Description:      v.Action.Describe(),
		InitiatorID:      v.Initiator.ID,
		Yes:              v.YesCount(),
		No:               v.NoCount(),
		RemainingSeconds: ceilSeconds(remaining),
		Native:           v.Native,
	}
}

func percent(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
