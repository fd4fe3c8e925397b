package server

import (
	"strconv"
	"strings"

	"github.com/NicolasHaas/matchadmin/pkg/match"
	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/protocol"
	pb "github.com/NicolasHaas/matchadmin/pkg/protocol/pb"
)

// handleEvent applies one host event. It must run on the loop goroutine.
func (s *Server) handleEvent(msg *pb.Envelope) {
	s.metrics.EventsIn.Add(1)
	switch {
	case msg.PlayerConnected != nil:
		s.onPlayerConnected(msg.PlayerConnected.Participant)

	case msg.PlayerDisconnected != nil:
		s.onPlayerDisconnected(msg.PlayerDisconnected.SteamID, msg.PlayerDisconnected.Team)

	case msg.Chat != nil:
		s.onChat(msg.Chat.SteamID, msg.Chat.Text)

	case msg.RoundStarted != nil:
		s.onRoundStarted()

	case msg.RoundEnded != nil:
		s.onRoundEnded(msg.RoundEnded.Winner)

	case msg.MapStarted != nil:
		s.onMapStarted(msg.MapStarted.Map)

	case msg.Roster != nil:
		s.roster.Replace(msg.Roster.Participants)

	case msg.Inventory != nil:
		s.roster.SetInventory(msg.Inventory.SteamID, msg.Inventory.Items)
		if s.match.IsKnifeOnly() {
			s.match.StripNonMelee(msg.Inventory.SteamID)
		}

	case msg.NativeVoteResult != nil:
		r := msg.NativeVoteResult
		if !s.votes.OnNativeResult(r.VoteID, r.Yes, r.No, r.Eligible) {
			s.logger.Debug("stale native vote result ignored", "vote", r.VoteID)
		}

	default:
		s.logger.Debug("unexpected host message", "kind", protocol.Kind(msg))
	}
}

// onPlayerConnected enforces bans, restores mutes and greets the player.
func (s *Server) onPlayerConnected(p model.Participant) {
	s.roster.Upsert(p)
	if p.Bot {
		return
	}

	ban, err := s.ledger.ActiveBan(p.SteamID)
	if err != nil {
		s.logger.Error("ban lookup failed", "steam_id", p.SteamID, "err", err)
	}
	if ban != nil {
		s.engine.Kick(p.SteamID, banKickMessage(ban))
		s.logger.Info("banned player rejected", "steam_id", p.SteamID, "ban", ban.ID)
		return
	}

	if _, err := s.ledger.LoadMuteForPlayer(p.SteamID); err != nil {
		s.logger.Error("mute lookup failed", "steam_id", p.SteamID, "err", err)
	}
	if s.match.OnPlayerReconnect(p.SteamID) {
		s.logger.Info("disconnect pause released by reconnect", "steam_id", p.SteamID)
	}
	s.match.GiveWarmupMoney(p.SteamID)

	plugin := s.cfg.Plugin
	if plugin.AnnouncePlayerJoin {
		s.engine.Broadcast(expand(plugin.PlayerJoinMessage, p))
	}
	if plugin.EnableWelcomeMessage {
		id := p.SteamID
		s.sched.ScheduleOnce(plugin.WelcomeMessageDelay, func() {
			current, ok := s.roster.Get(id)
			if !ok {
				return
			}
			s.engine.Tell(id, expand(plugin.WelcomeMessage, current))
			if s.match.IsWarmup() {
				s.engine.Tell(id, plugin.WarmupMessage)
			}
		})
	}
}

// onPlayerDisconnected forgets the session mute and, for a team player
// leaving a live match, pauses for the reconnect.
func (s *Server) onPlayerDisconnected(steamID uint64, team model.Team) {
	p, known := s.roster.Remove(steamID)
	s.ledger.DropSessionMute(steamID)
	if !known || p.Bot {
		return
	}
	if !team.Playing() {
		team = p.Team
	}
	if !s.cfg.Pause.AutoDisconnectPause || !team.Playing() {
		return
	}
	seconds := int(s.cfg.Pause.DisconnectPauseDuration.Seconds())
	ok, reason := s.match.PauseForDisconnect(steamID, team, seconds)
	if !ok {
		s.logger.Debug("no disconnect pause", "steam_id", steamID, "reason", reason)
		return
	}
	s.metrics.RecordPause(match.PauseDisconnect)
}

func (s *Server) onRoundStarted() {
	if !s.match.IsKnifeOnly() {
		return
	}
	for _, p := range s.roster.Participants() {
		if !p.Bot {
			s.engine.RequestInventory(p.SteamID)
		}
	}
	s.match.OnRoundStarted()
}

// onRoundEnded closes a knife round and opens the side choice.
func (s *Server) onRoundEnded(winner model.Team) {
	if !s.match.EndKnifeRound(winner) {
		return
	}
	msg := strings.ReplaceAll(s.cfg.Plugin.KnifeRoundWinnerMessage, "{team}", winner.String())
	s.engine.Broadcast(msg)
	if !s.cfg.Vote.SideChoiceVote {
		return
	}
	if ok, reason := s.votes.StartSideChoice(winner); !ok {
		s.logger.Info("side choice vote not started, waiting for .stay or .switch", "reason", reason)
	}
}

// onMapStarted resets per-map state. A vote still open from the previous
// map is cancelled and every vote cooldown starts fresh.
func (s *Server) onMapStarted(name string) {
	s.mapName = name
	s.votes.Cancel()
	s.votes.ResetCooldowns()
	s.match.OnMapStarted(name)
}

// expand fills the {player} and {steamid} placeholders.
func expand(template string, p model.Participant) string {
	r := strings.NewReplacer("{player}", p.Name, "{steamid}", strconv.FormatUint(p.SteamID, 10))
	return r.Replace(template)
}

func banKickMessage(ban *model.Punishment) string {
	when := "permanently"
	if !ban.IsPermanent() {
		when = "until " + ban.ExpiresAt.UTC().Format("2006-01-02 15:04 UTC")
	}
	reason := ban.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	return "You are banned " + when + ". Reason: " + reason
}
