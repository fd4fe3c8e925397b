package match

import (
	"slices"
	"testing"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/sched"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	commands  []string
	money     map[uint64]int
	inventory map[uint64][]string
	removed   map[uint64][]string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		money:     make(map[uint64]int),
		inventory: make(map[uint64][]string),
		removed:   make(map[uint64][]string),
	}
}

func (e *fakeEngine) Exec(commands ...string) { e.commands = append(e.commands, commands...) }

func (e *fakeEngine) GiveMoney(id uint64, amount int) { e.money[id] = amount }

func (e *fakeEngine) Inventory(id uint64) []string { return slices.Clone(e.inventory[id]) }

func (e *fakeEngine) RemoveItem(id uint64, item string) {
	e.removed[id] = append(e.removed[id], item)
	e.inventory[id] = slices.DeleteFunc(e.inventory[id], func(s string) bool { return s == item })
}

func (e *fakeEngine) count(cmd string) int {
	n := 0
	for _, c := range e.commands {
		if c == cmd {
			n++
		}
	}
	return n
}

type fakeRoster []model.Participant

func (r fakeRoster) Participants() []model.Participant { return r }

type fakeBroadcaster struct{ messages []string }

func (b *fakeBroadcaster) Broadcast(msg string) { b.messages = append(b.messages, msg) }

type fakeAuditor struct{ actions []string }

func (a *fakeAuditor) LogAction(action string, _, _ model.Actor, _ string) {
	a.actions = append(a.actions, action)
}

type harness struct {
	m      *Machine
	engine *fakeEngine
	bc     *fakeBroadcaster
	clock  *sched.Manual
	audit  *fakeAuditor
}

var adminActor = model.Actor{ID: 76561198000000001, Name: "admin"}

func newHarness(t *testing.T, roster fakeRoster) *harness {
	t.Helper()
	h := &harness{
		engine: newFakeEngine(),
		bc:     &fakeBroadcaster{},
		clock:  sched.NewManual(time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)),
		audit:  &fakeAuditor{},
	}
	cfg := DefaultConfig()
	h.m = New(cfg, Deps{
		Engine:      h.engine,
		Roster:      roster,
		Broadcaster: h.bc,
		Scheduler:   h.clock,
		Auditor:     h.audit,
	})
	return h
}

func TestWarmup(t *testing.T) {
	roster := fakeRoster{
		{SteamID: 1, Team: model.TeamT},
		{SteamID: 2, Team: model.TeamCT},
		{SteamID: 3, Team: model.TeamCT, Bot: true},
	}
	h := newHarness(t, roster)

	h.m.StartWarmup(adminActor)
	assert.True(t, h.m.IsWarmup())
	assert.Equal(t, map[uint64]int{1: 60000, 2: 60000}, h.engine.money)
	assert.Equal(t, 1, h.engine.count("mp_warmup_start"))

	h.m.StartWarmup(adminActor)
	assert.Equal(t, 1, h.engine.count("mp_warmup_start"), "second start is a no-op")
	assert.Equal(t, []string{model.ActionWarmupStart}, h.audit.actions)

	h.m.StartMatch(adminActor)
	assert.False(t, h.m.IsWarmup())
	assert.Equal(t, 1, h.engine.count("mp_warmup_end"))
	assert.Equal(t, 1, h.engine.count("mp_restartgame 3"))

	h.m.EndWarmup(adminActor)
	assert.Equal(t, 1, h.engine.count("mp_warmup_end"), "end outside warmup is a no-op")
	assert.Equal(t, []string{model.ActionWarmupStart, model.ActionWarmupEnd, model.ActionMatchStart}, h.audit.actions)
}

func TestAutomaticTransitionsAreNotAudited(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartWarmup(model.Actor{})
	assert.Empty(t, h.audit.actions)
}

func TestKnifeRoundFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartWarmup(adminActor)

	h.m.StartKnifeRound(adminActor)
	assert.True(t, h.m.IsKnifeRound())
	assert.True(t, h.m.IsKnifeOnly())
	assert.False(t, h.m.IsWarmup())
	assert.Equal(t, 1, h.engine.count("mp_restartgame 3"))

	h.clock.Advance(3 * time.Second)
	assert.Equal(t, 1, h.engine.count("mp_restartgame 1"), "second restart after the reassert delay")

	require.True(t, h.m.EndKnifeRound(model.TeamCT))
	assert.True(t, h.m.WaitingForSideChoice())
	assert.Equal(t, model.TeamCT, h.m.KnifeWinnerTeam())
	assert.False(t, h.m.IsKnifeRound())
	assert.False(t, h.m.Live())

	h.m.ChooseSide(false, adminActor)
	assert.Equal(t, 1, h.engine.count("mp_swapteams"))
	assert.False(t, h.m.WaitingForSideChoice())
	assert.False(t, h.m.IsKnifeOnly())
	assert.True(t, h.m.Live())

	h.m.ChooseSide(false, adminActor)
	assert.Equal(t, 1, h.engine.count("mp_swapteams"), "choose side without a pending choice is a no-op")
}

func TestChooseSideStay(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartKnifeRound(adminActor)
	h.m.EndKnifeRound(model.TeamT)
	h.m.ChooseSide(true, adminActor)
	assert.Equal(t, 0, h.engine.count("mp_swapteams"))
	assert.Equal(t, 1, h.engine.count("mp_unpause_match"))
}

func TestKnifeReassertSkippedAfterRoundEnds(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartKnifeRound(adminActor)
	h.m.EndKnifeRound(model.TeamT)
	h.clock.Advance(10 * time.Second)
	assert.Equal(t, 0, h.engine.count("mp_restartgame 1"))
}

func TestEndKnifeRoundIgnored(t *testing.T) {
	h := newHarness(t, nil)
	assert.False(t, h.m.EndKnifeRound(model.TeamT), "no knife round running")
	h.m.StartKnifeRound(adminActor)
	assert.False(t, h.m.EndKnifeRound(model.TeamSpectator))
	assert.True(t, h.m.IsKnifeRound())
}

func TestAdminPause(t *testing.T) {
	h := newHarness(t, nil)
	h.m.PauseMatch(adminActor)
	h.m.PauseMatch(adminActor)
	assert.True(t, h.m.IsPaused())
	assert.Equal(t, PauseAdmin, h.m.ActivePauseKind())
	assert.Equal(t, 1, h.engine.count("mp_pause_match"))

	h.clock.Advance(time.Hour)
	assert.True(t, h.m.IsPaused(), "admin pauses are untimed")

	h.m.UnpauseMatch(adminActor)
	h.m.UnpauseMatch(adminActor)
	assert.False(t, h.m.IsPaused())
	assert.Equal(t, 1, h.engine.count("mp_unpause_match"))
	assert.Equal(t, []string{model.ActionPause, model.ActionUnpause}, h.audit.actions)
}

func TestTimedPauseCountdown(t *testing.T) {
	h := newHarness(t, nil)
	ok, reason := h.m.PauseMatchTimed(PauseVote, model.TeamT, 3)
	require.True(t, ok, reason)
	assert.Equal(t, 3, h.m.PauseRemainingSeconds())
	assert.Equal(t, model.TeamT, h.m.PauseOwner())

	h.clock.Advance(time.Second)
	assert.Equal(t, 2, h.m.PauseRemainingSeconds())
	assert.Contains(t, h.bc.messages, "Match resumes in 2 seconds.")

	h.clock.Advance(2 * time.Second)
	assert.False(t, h.m.IsPaused())
	assert.Equal(t, PauseNone, h.m.ActivePauseKind())
	assert.Equal(t, 1, h.engine.count("mp_unpause_match"))

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, 1, h.engine.count("mp_unpause_match"), "countdown resumes exactly once")
	assert.Equal(t, 0, h.clock.Pending())
}

func TestManualUnpauseCancelsCountdown(t *testing.T) {
	h := newHarness(t, nil)
	ok, _ := h.m.PauseMatchTimed(PauseVote, model.TeamCT, 60)
	require.True(t, ok)
	h.clock.Advance(5 * time.Second)

	h.m.UnpauseMatch(adminActor)
	before := len(h.bc.messages)
	h.clock.Advance(2 * time.Minute)
	assert.Len(t, h.bc.messages, before, "no ticks after a manual unpause")
	assert.Equal(t, 1, h.engine.count("mp_unpause_match"))

	ok, _ = h.m.PauseMatchTimed(PauseVote, model.TeamCT, 2)
	require.True(t, ok)
	h.clock.Advance(2 * time.Second)
	assert.False(t, h.m.IsPaused())
	assert.Equal(t, 2, h.engine.count("mp_unpause_match"))
}

func TestPauseQuota(t *testing.T) {
	h := newHarness(t, nil)
	for i := range 3 {
		ok, reason := h.m.PauseMatchTimed(PauseVote, model.TeamT, 30)
		require.True(t, ok, "pause %d: %s", i+1, reason)
		h.m.UnpauseMatch(adminActor)
	}
	assert.Equal(t, 0, h.m.TeamPausesRemaining(model.TeamT))
	assert.Equal(t, 3, h.m.TeamPausesRemaining(model.TeamCT))

	ok, reason := h.m.PauseMatchTimed(PauseVote, model.TeamT, 30)
	assert.False(t, ok)
	assert.Contains(t, reason, "no pauses remaining")

	h.m.ResetPauseState()
	assert.Equal(t, 3, h.m.TeamPausesRemaining(model.TeamT))
	ok, _ = h.m.PauseMatchTimed(PauseVote, model.TeamT, 30)
	assert.True(t, ok)
}

func TestTimedPauseRejections(t *testing.T) {
	type tcase struct {
		setup  func(m *Machine)
		kind   PauseKind
		team   model.Team
		reason string
	}
	tests := map[string]tcase{
		"already_paused": {
			setup:  func(m *Machine) { m.PauseMatch(adminActor) },
			kind:   PauseVote,
			team:   model.TeamT,
			reason: "The match is already paused.",
		},
		"warmup": {
			setup:  func(m *Machine) { m.StartWarmup(adminActor) },
			kind:   PauseVote,
			team:   model.TeamT,
			reason: "Cannot pause during warmup.",
		},
		"knife_round": {
			setup:  func(m *Machine) { m.StartKnifeRound(adminActor) },
			kind:   PauseVote,
			team:   model.TeamT,
			reason: "Cannot pause during the knife round.",
		},
		"side_choice": {
			setup: func(m *Machine) {
				m.StartKnifeRound(adminActor)
				m.EndKnifeRound(model.TeamT)
			},
			kind:   PauseVote,
			team:   model.TeamT,
			reason: "Cannot pause while waiting for side choice.",
		},
		"spectator": {
			setup:  func(*Machine) {},
			kind:   PauseVote,
			team:   model.TeamSpectator,
			reason: "Only T or CT can pause the match.",
		},
		"admin_kind": {
			setup:  func(*Machine) {},
			kind:   PauseAdmin,
			team:   model.TeamT,
			reason: "Only vote and disconnect pauses are timed.",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			tc.setup(h.m)
			ok, reason := h.m.PauseMatchTimed(tc.kind, tc.team, 30)
			assert.False(t, ok)
			assert.Equal(t, tc.reason, reason)
			assert.Equal(t, 3, h.m.TeamPausesRemaining(model.TeamT), "rejections never consume quota")
		})
	}
}

func TestDisconnectPause(t *testing.T) {
	h := newHarness(t, nil)
	const subject, stranger = uint64(42), uint64(43)

	ok, reason := h.m.PauseForDisconnect(subject, model.TeamCT, 120)
	require.True(t, ok, reason)
	assert.Equal(t, PauseDisconnect, h.m.ActivePauseKind())
	assert.Equal(t, subject, h.m.Snapshot().WaitingForPlayer)
	assert.False(t, h.m.DisconnectPauseAvailable(model.TeamCT))

	assert.False(t, h.m.OnPlayerReconnect(stranger))
	assert.True(t, h.m.IsPaused())

	assert.True(t, h.m.OnPlayerReconnect(subject))
	assert.False(t, h.m.IsPaused())

	ok, reason = h.m.PauseForDisconnect(stranger, model.TeamCT, 120)
	assert.False(t, ok)
	assert.Contains(t, reason, "already used its disconnect pause")
	assert.Equal(t, 3, h.m.TeamPausesRemaining(model.TeamCT), "disconnect pauses use their own quota")

	ok, _ = h.m.PauseForDisconnect(stranger, model.TeamT, 120)
	assert.True(t, ok)
}

func TestReconnectIgnoredForOtherPauses(t *testing.T) {
	h := newHarness(t, nil)
	ok, _ := h.m.PauseMatchTimed(PauseVote, model.TeamT, 30)
	require.True(t, ok)
	assert.False(t, h.m.OnPlayerReconnect(0))
	assert.True(t, h.m.IsPaused())
}

func TestMapStartResets(t *testing.T) {
	h := newHarness(t, nil)
	ok, _ := h.m.PauseMatchTimed(PauseVote, model.TeamT, 30)
	require.True(t, ok)
	h.m.StartKnifeRound(adminActor)

	h.m.OnMapStarted("de_nuke")
	assert.False(t, h.m.IsPaused())
	assert.False(t, h.m.IsKnifeRound())
	assert.False(t, h.m.IsKnifeOnly())
	assert.Equal(t, 3, h.m.TeamPausesRemaining(model.TeamT))
	assert.False(t, h.m.IsWarmup())

	h.clock.Advance(2 * time.Second)
	assert.True(t, h.m.IsWarmup(), "warmup is re-entered after the delay")
}

func TestChangeMap(t *testing.T) {
	type tcase struct {
		name string
		want string
	}
	tests := map[string]tcase{
		"stock":         {name: "de_inferno", want: "changelevel de_inferno"},
		"workshop_path": {name: "workshop/3070284539", want: "host_workshop_map workshop/3070284539"},
		"workshop_id":   {name: "3070284539", want: "host_workshop_map 3070284539"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.m.StartWarmup(model.Actor{})
			h.m.ChangeMap(tc.name, adminActor)
			assert.False(t, h.m.IsWarmup())
			assert.Equal(t, 1, h.engine.count(tc.want))
		})
	}

	h := newHarness(t, nil)
	h.m.ChangeMap("", adminActor)
	assert.Empty(t, h.engine.commands)
}

func TestStripNonMelee(t *testing.T) {
	roster := fakeRoster{
		{SteamID: 1, Team: model.TeamT},
		{SteamID: 2, Team: model.TeamCT, Bot: true},
	}
	h := newHarness(t, roster)
	h.engine.inventory[1] = []string{"weapon_knife", "weapon_ak47", "weapon_glock", "weapon_bayonet", "weapon_c4"}
	h.engine.inventory[2] = []string{"weapon_m4a1"}

	h.m.EnableKnifeOnly(adminActor)
	h.m.OnRoundStarted()

	assert.ElementsMatch(t, []string{"weapon_ak47", "weapon_glock", "weapon_c4"}, h.engine.removed[1])
	assert.Equal(t, []string{"weapon_knife", "weapon_bayonet"}, h.engine.inventory[1])
	assert.Empty(t, h.engine.removed[2], "bots are left alone")

	h.m.DisableKnifeOnly(adminActor)
	h.engine.inventory[1] = []string{"weapon_ak47"}
	h.m.OnRoundStarted()
	assert.Len(t, h.engine.removed[1], 3)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	ok, _ := h.m.PauseMatchTimed(PauseVote, model.TeamCT, 30)
	require.True(t, ok)

	s := h.m.Snapshot()
	assert.True(t, s.Paused)
	assert.Equal(t, "vote", s.PauseKind)
	assert.Equal(t, "CT", s.PauseOwner)
	assert.Equal(t, 30, s.PauseRemaining)
	assert.Equal(t, map[string]int{"T": 3, "CT": 2}, s.PausesRemaining)
}
