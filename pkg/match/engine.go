package match

import "github.com/NicolasHaas/matchadmin/pkg/model"

// Engine applies directives to the game server. Calls are fire-and-forget;
// delivery failures are the implementation's concern.
type Engine interface {
	// Exec runs console commands in order.
	Exec(commands ...string)
	GiveMoney(steamID uint64, amount int)
	// Inventory returns a snapshot of the participant's item names.
	Inventory(steamID uint64) []string
	RemoveItem(steamID uint64, item string)
}

// Roster lists the connected participants.
type Roster interface {
	Participants() []model.Participant
}

// Broadcaster sends a chat message to every participant.
type Broadcaster interface {
	Broadcast(message string)
}

// Auditor records admin-initiated transitions. moderation.Ledger
// implements it.
type Auditor interface {
	LogAction(action string, issuer, subject model.Actor, details string)
}
