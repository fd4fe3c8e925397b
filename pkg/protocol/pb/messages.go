// Package pb holds the messages exchanged between the host game plugin and
// the admin core. Every frame carries exactly one Envelope with one field set.
package pb

import "github.com/NicolasHaas/matchadmin/pkg/model"

// Envelope wraps all bridge messages.
type Envelope struct {
	// Only one of these fields should be set.

	// Handshake
	Hello   *Hello         `json:"hello,omitempty"`
	Welcome *Welcome       `json:"welcome,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Ping    *Ping          `json:"ping,omitempty"`
	Pong    *Pong          `json:"pong,omitempty"`

	// Host -> core events
	PlayerConnected    *PlayerConnected    `json:"player_connected,omitempty"`
	PlayerDisconnected *PlayerDisconnected `json:"player_disconnected,omitempty"`
	Chat               *Chat               `json:"chat,omitempty"`
	RoundStarted       *RoundStarted       `json:"round_started,omitempty"`
	RoundEnded         *RoundEnded         `json:"round_ended,omitempty"`
	MapStarted         *MapStarted         `json:"map_started,omitempty"`
	Roster             *Roster             `json:"roster,omitempty"`
	Inventory          *Inventory          `json:"inventory,omitempty"`
	NativeVoteResult   *NativeVoteResult   `json:"native_vote_result,omitempty"`

	// Core -> host commands
	Exec             *Exec             `json:"exec,omitempty"`
	Broadcast        *Broadcast        `json:"broadcast,omitempty"`
	Tell             *Tell             `json:"tell,omitempty"`
	Kick             *Kick             `json:"kick,omitempty"`
	SetMoney         *SetMoney         `json:"set_money,omitempty"`
	RemoveItem       *RemoveItem       `json:"remove_item,omitempty"`
	InventoryRequest *InventoryRequest `json:"inventory_request,omitempty"`
	NativeVoteStart  *NativeVoteStart  `json:"native_vote_start,omitempty"`
}

// ----- Handshake -----

type Hello struct {
	Secret     string `json:"secret"` // empty = unauthenticated bridge (if server allows)
	ServerName string `json:"server_name"`
	Map        string `json:"map"`
}

type Welcome struct {
	Session string `json:"session"`
	Version string `json:"version"`
}

type ErrorResponse struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

// ----- Events -----

type PlayerConnected struct {
	Participant model.Participant `json:"participant"`
}

type PlayerDisconnected struct {
	SteamID uint64     `json:"steam_id"`
	Team    model.Team `json:"team"` // team at the moment of leaving
}

type Chat struct {
	SteamID  uint64 `json:"steam_id"`
	Text     string `json:"text"`
	TeamOnly bool   `json:"team_only"`
}

type RoundStarted struct{}

type RoundEnded struct {
	Winner model.Team `json:"winner"`
}

type MapStarted struct {
	Map string `json:"map"`
}

// Roster is a full snapshot of the connected participants.
type Roster struct {
	Participants []model.Participant `json:"participants"`
}

type Inventory struct {
	SteamID uint64   `json:"steam_id"`
	Items   []string `json:"items"`
}

type NativeVoteResult struct {
	VoteID   uint64 `json:"vote_id"`
	Yes      int    `json:"yes"`
	No       int    `json:"no"`
	Eligible int    `json:"eligible"`
}

// ----- Commands -----

type Exec struct {
	Command string `json:"command"`
}

type Broadcast struct {
	Text string `json:"text"`
}

type Tell struct {
	SteamID uint64 `json:"steam_id"`
	Text    string `json:"text"`
}

type Kick struct {
	SteamID uint64 `json:"steam_id"`
	Reason  string `json:"reason"`
}

type SetMoney struct {
	SteamID uint64 `json:"steam_id"`
	Amount  int    `json:"amount"`
}

type RemoveItem struct {
	SteamID uint64 `json:"steam_id"`
	Item    string `json:"item"`
}

type InventoryRequest struct {
	SteamID uint64 `json:"steam_id"`
}

type NativeVoteStart struct {
	VoteID           uint64     `json:"vote_id"`
	Title            string     `json:"title"`
	Detail           string     `json:"detail"`
	Team             model.Team `json:"team,omitempty"` // 0 = everyone
	DurationSeconds  int        `json:"duration_seconds"`
	ThresholdPercent int        `json:"threshold_percent"`
}
