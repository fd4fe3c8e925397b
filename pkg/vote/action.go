package vote

import (
	"github.com/NicolasHaas/matchadmin/pkg/model"
)

// Type is the kind of a vote. Cooldowns are tracked per Type.
type Type int

const (
	TypeKick Type = iota
	TypePause
	TypeRestart
	TypeChangeMap
	TypeSideChoice
)

func (t Type) String() string {
	switch t {
	case TypeKick:
		return "kick"
	case TypePause:
		return "pause"
	case TypeRestart:
		return "restart"
	case TypeChangeMap:
		return "changemap"
	case TypeSideChoice:
		return "sidechoice"
	default:
		return "unknown"
	}
}

// Action is the effect a passing vote asks for. The concrete types below
// form a closed set; a Dispatcher switches on them.
type Action interface {
	Type() Type
	Describe() string
	isAction()
}

// Kick removes Subject from the server.
type Kick struct {
	Subject uint64
	Name    string
}

// Pause asks for a timed vote pause owned by Team.
type Pause struct {
	Team model.Team
}

// Restart restarts the match.
type Restart struct{}

// ChangeMap switches to Map.
type ChangeMap struct {
	Map string
}

// SideChoice is the outcome of the knife winners' vote.
type SideChoice struct {
	Team model.Team
	Stay bool
}

func (Kick) Type() Type       { return TypeKick }
func (Pause) Type() Type      { return TypePause }
func (Restart) Type() Type    { return TypeRestart }
func (ChangeMap) Type() Type  { return TypeChangeMap }
func (SideChoice) Type() Type { return TypeSideChoice }

func (a Kick) Describe() string {
	if a.Name == "" {
		return "Kick player"
	}
	return "Kick " + a.Name
}
func (Pause) Describe() string   { return "Pause match" }
func (Restart) Describe() string { return "Restart match" }
func (a ChangeMap) Describe() string {
	if a.Map == "" {
		return "Change map to unknown"
	}
	return "Change map to " + a.Map
}
func (a SideChoice) Describe() string {
	if a.Stay {
		return a.Team.String() + " stay on their side"
	}
	return a.Team.String() + " switch sides"
}

func (Kick) isAction()       {}
func (Pause) isAction()      {}
func (Restart) isAction()    {}
func (ChangeMap) isAction()  {}
func (SideChoice) isAction() {}

// Dispatcher carries out the action of a passed vote.
type Dispatcher interface {
	Dispatch(action Action, initiator model.Actor)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(action Action, initiator model.Actor)

func (f DispatchFunc) Dispatch(action Action, initiator model.Actor) { f(action, initiator) }
