package vote

import (
	"fmt"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/model"
)

// NativeHost starts a vote with the host's own majority-vote primitive. The
// host reports the tally back through Coordinator.OnNativeResult.
type NativeHost interface {
	StartNativeVote(req NativeRequest)
}

// NativeRequest describes a vote run by the host primitive.
type NativeRequest struct {
	ID     uint64
	Title  string
	Detail string
	// Team restricts the electorate; TeamNone means every eligible voter.
	Team             model.Team
	Duration         time.Duration
	ThresholdPercent int
}

// OnNativeResult settles a vote collected by the host primitive. Results
// for a vote that is no longer active are ignored.
func (c *Coordinator) OnNativeResult(id uint64, yes, no, eligible int) bool {
	v := c.current
	if v == nil || v.ID != id || !v.Native {
		return false
	}
	v.nativeYes, v.nativeNo, v.nativeEligible = yes, no, eligible
	if v.Action.Type() == TypeSideChoice {
		c.settleSideChoice(yes >= no)
		return true
	}
	passed := eligible > 0 && percent(yes, eligible) >= float64(c.cfg.ThresholdPercent)
	c.resolve(passed)
	return true
}

// StartSideChoice lets the knife round winners vote to stay or switch. Only
// members of team may vote, the vote runs for SideChoiceDuration and a
// simple majority decides. Ties and empty ballots mean stay. Side choice
// votes ignore the minimum voter count and cooldowns.
func (c *Coordinator) StartSideChoice(team model.Team) (bool, string) {
	if c.current != nil {
		return false, "A vote is already in progress."
	}
	if !team.Playing() {
		return false, "Only T or CT can choose a side."
	}
	v := c.open(SideChoice{Team: team, Stay: true}, model.Console, team, c.cfg.SideChoiceDuration)
	seconds := ceilSeconds(c.cfg.SideChoiceDuration)
	c.logger.Info("side choice vote started", "vote", v.ID, "team", team.String())

	if v.Native {
		c.native.StartNativeVote(NativeRequest{
			ID:               v.ID,
			Title:            "Stay on your current side?",
			Detail:           "Yes to stay, no to switch",
			Team:             team,
			Duration:         c.cfg.SideChoiceDuration,
			ThresholdPercent: 50,
		})
		return true, ""
	}
	c.bc.Broadcast(fmt.Sprintf("%s: type .stay or .switch to choose your side. (%d seconds remaining)", team, seconds))
	return true, ""
}

// CastSide records a side-choice ballot from a member of the winning team.
func (c *Coordinator) CastSide(voter uint64, team model.Team, stay bool) (bool, string) {
	v := c.current
	if v == nil || v.Action.Type() != TypeSideChoice {
		return false, "No side choice vote in progress."
	}
	if v.Native {
		return false, "Use the in-game vote panel to vote."
	}
	if team != v.Team {
		return false, "Only the knife round winners can choose the side."
	}
	if v.voted(voter) {
		return false, "You have already voted."
	}
	if stay {
		v.Yes[voter] = struct{}{}
	} else {
		v.No[voter] = struct{}{}
	}

	members := c.electorate.TeamVoters(v.Team)
	half := members / 2
	switch {
	case len(v.Yes) > half:
		c.settleSideChoice(true)
	case len(v.No) > half:
		c.settleSideChoice(false)
	case len(v.Yes)+len(v.No) >= members:
		c.settleSideChoice(len(v.Yes) >= len(v.No))
	default:
		return true, fmt.Sprintf("Side vote recorded. Stay: %d, Switch: %d", len(v.Yes), len(v.No))
	}
	return true, "Side vote recorded."
}

func (c *Coordinator) resolveSideChoice() {
	v := c.current
	c.settleSideChoice(v.YesCount() >= v.NoCount())
}

// settleSideChoice ends the side-choice vote and always dispatches its
// result; there is no failing outcome.
func (c *Coordinator) settleSideChoice(stay bool) {
	v := c.finish()
	if v == nil {
		return
	}
	action := SideChoice{Team: v.Team, Stay: stay}
	c.bc.Broadcast(fmt.Sprintf("Side vote finished: %s (stay %d, switch %d).", action.Describe(), v.YesCount(), v.NoCount()))
	c.logger.Info("side choice vote resolved", "vote", v.ID, "team", v.Team.String(), "stay", stay)
	c.notify(TypeSideChoice, Passed)
	c.dispatch.Dispatch(action, v.Initiator)
}
