package model

import "strings"

// Team is the engine's team index.
type Team int

const (
	TeamNone      Team = 0
	TeamSpectator Team = 1
	TeamT         Team = 2
	TeamCT        Team = 3
)

func (t Team) String() string {
	switch t {
	case TeamT:
		return "T"
	case TeamCT:
		return "CT"
	case TeamSpectator:
		return "Spectator"
	default:
		return "None"
	}
}

// Playing returns true for the two sides that play rounds.
func (t Team) Playing() bool {
	return t == TeamT || t == TeamCT
}

// Opponent returns the other playing side, or TeamNone.
func (t Team) Opponent() Team {
	switch t {
	case TeamT:
		return TeamCT
	case TeamCT:
		return TeamT
	default:
		return TeamNone
	}
}

// ParseTeam converts "t", "ct", "2" or "3" to a Team.
func ParseTeam(s string) Team {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "2", "terrorist":
		return TeamT
	case "ct", "3", "counter-terrorist":
		return TeamCT
	case "spec", "spectator", "1":
		return TeamSpectator
	default:
		return TeamNone
	}
}

// Participant is a connected player as reported by the host (in-memory only).
type Participant struct {
	SteamID uint64 `json:"steam_id"`
	Slot    int    `json:"slot"` // engine user id, addressed as #slot
	Name    string `json:"name"`
	Team    Team   `json:"team"`
	Bot     bool   `json:"bot"`
}

// CanVote reports whether the participant counts as an eligible voter.
func (p Participant) CanVote() bool {
	return !p.Bot && p.Team.Playing()
}
