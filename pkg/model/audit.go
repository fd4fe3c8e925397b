package model

import "time"

// Audit actions written by the ledger and the match components.
const (
	ActionBan             = "BAN"
	ActionUnban           = "UNBAN"
	ActionMute            = "MUTE"
	ActionUnmute          = "UNMUTE"
	ActionKick            = "KICK"
	ActionAddAdmin        = "ADD_ADMIN"
	ActionRemoveAdmin     = "REMOVE_ADMIN"
	ActionSetAdminGroup   = "SET_ADMIN_GROUP"
	ActionAddGroup        = "ADD_GROUP"
	ActionRemoveGroup     = "REMOVE_GROUP"
	ActionWarmupStart     = "WARMUP_START"
	ActionWarmupEnd       = "WARMUP_END"
	ActionMatchStart      = "MATCH_START"
	ActionPause           = "PAUSE"
	ActionUnpause         = "UNPAUSE"
	ActionRestart         = "RESTART"
	ActionChangeMap       = "CHANGEMAP"
	ActionKnifeRoundStart = "KNIFE_ROUND_START"
	ActionSideChoice      = "SIDE_CHOICE"
	ActionKnifeOnlyOn     = "KNIFE_ONLY_ENABLE"
	ActionKnifeOnlyOff    = "KNIFE_ONLY_DISABLE"
)

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	IssuerID    uint64    `json:"issuer_id"`
	IssuerName  string    `json:"issuer_name"`
	SubjectID   uint64    `json:"subject_id,omitempty"`
	SubjectName string    `json:"subject_name,omitempty"`
	Details     string    `json:"details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Actor identifies who performed an action. The zero Actor is the server
// console.
type Actor struct {
	ID   uint64
	Name string
}

// Console is the actor used for automatic and console-issued actions.
var Console = Actor{Name: "Console"}
