package server

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/NicolasHaas/matchadmin/pkg/match"
	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/rbac"
	"github.com/NicolasHaas/matchadmin/pkg/timeparse"
	"github.com/NicolasHaas/matchadmin/pkg/vote"
)

const (
	msgInternalError  = "Internal error."
	msgPlayerNotFound = "Player not found."
	msgInvalidSteamID = "Invalid SteamID."
	msgInvalidTime    = "Invalid duration. Use e.g. 30m, 2h, 7d, 1M or 0 for permanent."
	maxListedEntries  = 10
)

// sender is the participant behind a chat command.
type sender struct {
	model.Participant
}

func (f sender) actor() model.Actor {
	return model.Actor{ID: f.SteamID, Name: f.Name}
}

// onChat routes a chat line. Lines not starting with '.' are ignored.
func (s *Server) onChat(steamID uint64, text string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, ".") {
		return
	}
	parts := strings.Fields(text[1:])
	if len(parts) == 0 {
		return
	}

	from := sender{model.Participant{SteamID: steamID, Name: model.Console.Name}}
	if steamID != 0 {
		p, ok := s.roster.Get(steamID)
		if !ok {
			p = model.Participant{SteamID: steamID, Name: strconv.FormatUint(steamID, 10)}
		}
		from = sender{p}

		muted, err := s.ledger.IsMuted(steamID)
		if err != nil {
			s.logger.Error("mute check failed", "steam_id", steamID, "err", err)
		}
		if muted {
			s.engine.Tell(steamID, "You are muted.")
			return
		}
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]
	s.logger.Debug("chat command", "steam_id", steamID, "command", command, "args", len(args))

	switch command {
	// Votes
	case "votekick":
		s.cmdVoteKick(from, args)
	case "votepause":
		s.startVote(from, vote.Pause{Team: from.Team})
	case "voterestart":
		s.startVote(from, vote.Restart{})
	case "votemap", "votechangemap":
		s.cmdVoteMap(from, args)
	case "yes", "no":
		_, msg := s.votes.Cast(from.SteamID, command == "yes")
		s.reply(from, msg)
	case "cancelvote":
		s.cmdCancelVote(from)
	case "stay", "switch":
		s.cmdSide(from, command == "stay")

	// Moderation
	case "kick":
		s.cmdKick(from, args)
	case "ban":
		s.cmdBan(from, args)
	case "unban":
		s.cmdUnban(from, args)
	case "mute":
		s.cmdMute(from, args)
	case "unmute":
		s.cmdUnmute(from, args)

	// Match
	case "changemap", "map":
		s.cmdChangeMap(from, args)
	case "pause":
		s.cmdPause(from)
	case "unpause":
		s.cmdUnpause(from)
	case "tpause":
		s.cmdTeamPause(from)
	case "restart":
		s.cmdRestart(from)
	case "start":
		s.cmdStart(from)
	case "warmup":
		s.cmdWarmup(from)
	case "endwarmup":
		s.cmdEndWarmup(from)
	case "knife":
		s.cmdKnife(from)
	case "knifeonly":
		s.cmdKnifeOnly(from, args)
	case "status":
		s.cmdStatus(from)

	// Admin management
	case "add_admin":
		s.cmdAddAdmin(from, args)
	case "remove_admin":
		s.cmdRemoveAdmin(from, args)
	case "list_admins":
		s.cmdListAdmins(from)
	case "add_group":
		s.cmdAddGroup(from, args)
	case "remove_group":
		s.cmdRemoveGroup(from, args)
	case "list_groups":
		s.cmdListGroups(from)
	case "set_group":
		s.cmdSetGroup(from, args)
	case "reload_admins":
		s.cmdReloadAdmins(from)
	}
}

// reply tells the sender a message. Console commands are logged instead.
func (s *Server) reply(to sender, message string) {
	if message == "" {
		return
	}
	if to.SteamID == 0 {
		s.logger.Info("console reply", "message", message)
		return
	}
	s.engine.Tell(to.SteamID, message)
}

func (s *Server) reject(to sender, message string) {
	s.metrics.RejectedCommands.Add(1)
	s.reply(to, message)
}

// allowed checks a permission and tells the sender when it is missing.
func (s *Server) allowed(from sender, perm rbac.Permission) bool {
	if s.perms.Has(from.SteamID, perm) {
		return true
	}
	s.reject(from, rbac.DeniedMessage)
	return false
}

// internalError is the top-level boundary for store failures.
func (s *Server) internalError(to sender, op string, err error) {
	s.logger.Error("command failed", "op", op, "steam_id", to.SteamID, "err", err)
	s.reply(to, msgInternalError)
}

// target resolves a player query. When offline is set, a bare SteamID64 of
// a player who is not connected also resolves.
func (s *Server) target(query string, offline bool) (model.Actor, bool) {
	if p, ok := s.roster.Find(query); ok {
		return model.Actor{ID: p.SteamID, Name: p.Name}, true
	}
	if offline {
		if id, err := strconv.ParseUint(query, 10, 64); err == nil && id > steamID64Base {
			return model.Actor{ID: id, Name: query}, true
		}
	}
	return model.Actor{}, false
}

func orDefault(args []string, def string) string {
	if len(args) == 0 {
		return def
	}
	return strings.Join(args, " ")
}

// ---- Votes ----

func (s *Server) startVote(from sender, action vote.Action) {
	ok, msg := s.votes.Start(action, from.actor())
	if !ok {
		s.reject(from, msg)
		return
	}
	s.metrics.VotesStarted.Add(1)
}

func (s *Server) cmdVoteKick(from sender, args []string) {
	if len(args) < 1 {
		s.reply(from, "Usage: .votekick <player>")
		return
	}
	p, ok := s.roster.Find(strings.Join(args, " "))
	if !ok {
		s.reply(from, msgPlayerNotFound)
		return
	}
	if p.SteamID == from.SteamID {
		s.reject(from, "You cannot vote to kick yourself.")
		return
	}
	s.startVote(from, vote.Kick{Subject: p.SteamID, Name: p.Name})
}

func (s *Server) cmdVoteMap(from sender, args []string) {
	if len(args) < 1 {
		s.reply(from, "Usage: .votechangemap <map>")
		return
	}
	name := args[0]
	if !slices.Contains(s.cfg.Vote.Maps, name) && !match.IsWorkshopMap(name) {
		s.reject(from, "Map is not in the vote pool. Available: "+strings.Join(s.cfg.Vote.Maps, ", "))
		return
	}
	s.startVote(from, vote.ChangeMap{Map: name})
}

func (s *Server) cmdCancelVote(from sender) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	if !s.votes.Cancel() {
		s.reply(from, "No active vote.")
	}
}

// cmdSide handles .stay and .switch. While a side-choice vote runs the
// line is a ballot; otherwise any member of the winning team decides.
func (s *Server) cmdSide(from sender, stay bool) {
	if !s.match.WaitingForSideChoice() {
		s.reply(from, "No side choice pending.")
		return
	}
	if from.Team != s.match.KnifeWinnerTeam() {
		s.reject(from, "Only the knife round winners can choose the side.")
		return
	}
	if cur := s.votes.Current(); cur != nil && cur.Type == vote.TypeSideChoice.String() {
		_, msg := s.votes.CastSide(from.SteamID, from.Team, stay)
		s.reply(from, msg)
		return
	}
	choice := "switch sides"
	if stay {
		choice = "stay"
	}
	s.engine.Broadcast(fmt.Sprintf("%s chose to %s.", from.Name, choice))
	s.match.ChooseSide(stay, from.actor())
}

// ---- Moderation ----

func (s *Server) cmdKick(from sender, args []string) {
	if !s.allowed(from, rbac.PermKick) {
		return
	}
	if len(args) < 1 {
		s.reply(from, "Usage: .kick <player> [reason]")
		return
	}
	t, ok := s.target(args[0], false)
	if !ok {
		s.reply(from, msgPlayerNotFound)
		return
	}
	reason := orDefault(args[1:], s.cfg.Plugin.DefaultKickReason)
	s.kick(t, from.actor(), reason)
	s.engine.Broadcast(fmt.Sprintf("%s was kicked by %s. Reason: %s", t.Name, from.Name, reason))
}

func (s *Server) cmdBan(from sender, args []string) {
	if !s.allowed(from, rbac.PermBan) {
		return
	}
	if len(args) < 2 {
		s.reply(from, "Usage: .ban <player> <duration> [reason]")
		return
	}
	t, ok := s.target(args[0], true)
	if !ok {
		s.reply(from, msgPlayerNotFound)
		return
	}
	d, err := timeparse.Parse(args[1])
	if err != nil {
		s.reject(from, msgInvalidTime)
		return
	}
	reason := orDefault(args[2:], s.cfg.Plugin.DefaultBanReason)
	if _, err := s.ledger.Ban(t, from.actor(), d, reason); err != nil {
		s.internalError(from, "ban", err)
		return
	}
	s.metrics.BanCount.Add(1)
	if _, online := s.roster.Get(t.ID); online {
		s.engine.Kick(t.ID, "Banned: "+reason)
	}
	s.engine.Broadcast(fmt.Sprintf("%s was banned by %s for %s. Reason: %s", t.Name, from.Name, timeparse.Format(d), reason))
}

func (s *Server) cmdUnban(from sender, args []string) {
	if !s.allowed(from, rbac.PermBan) {
		return
	}
	if len(args) < 1 {
		s.reply(from, "Usage: .unban <steamid>")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		s.reply(from, msgInvalidSteamID)
		return
	}
	ok, err := s.ledger.Unban(id, from.actor())
	if err != nil {
		s.internalError(from, "unban", err)
		return
	}
	if !ok {
		s.reply(from, "No active ban found for this SteamID.")
		return
	}
	s.metrics.UnbanCount.Add(1)
	s.reply(from, "Player unbanned successfully.")
}

func (s *Server) cmdMute(from sender, args []string) {
	if !s.allowed(from, rbac.PermChat) {
		return
	}
	if len(args) < 1 {
		s.reply(from, "Usage: .mute <player> [duration] [reason]")
		return
	}
	t, ok := s.target(args[0], true)
	if !ok {
		s.reply(from, msgPlayerNotFound)
		return
	}
	rest := args[1:]
	d := timeparse.Permanent
	if len(rest) > 0 && timeparse.IsDuration(rest[0]) {
		d, _ = timeparse.Parse(rest[0])
		rest = rest[1:]
	}
	reason := orDefault(rest, s.cfg.Plugin.DefaultMuteReason)
	if _, err := s.ledger.Mute(t, from.actor(), d, reason); err != nil {
		s.internalError(from, "mute", err)
		return
	}
	s.metrics.MuteCount.Add(1)
	s.engine.Broadcast(fmt.Sprintf("%s was muted by %s for %s.", t.Name, from.Name, timeparse.Format(d)))
}

func (s *Server) cmdUnmute(from sender, args []string) {
	if !s.allowed(from, rbac.PermChat) {
		return
	}
	if len(args) < 1 {
		s.reply(from, "Usage: .unmute <player>")
		return
	}
	t, ok := s.target(args[0], true)
	if !ok {
		s.reply(from, msgPlayerNotFound)
		return
	}
	ok, err := s.ledger.Unmute(t.ID, from.actor())
	if err != nil {
		s.internalError(from, "unmute", err)
		return
	}
	if !ok {
		s.reply(from, "Player is not muted.")
		return
	}
	s.metrics.UnmuteCount.Add(1)
	s.engine.Broadcast(fmt.Sprintf("%s was unmuted by %s.", t.Name, from.Name))
}

// ---- Match ----

func (s *Server) cmdChangeMap(from sender, args []string) {
	if !s.allowed(from, rbac.PermChangeMap) {
		return
	}
	if len(args) < 1 {
		s.reply(from, "Usage: .changemap <map>")
		return
	}
	s.engine.Broadcast(fmt.Sprintf("Changing map to %s...", args[0]))
	s.match.ChangeMap(args[0], from.actor())
}

func (s *Server) cmdPause(from sender) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	if s.match.IsPaused() {
		s.reply(from, "Match is already paused.")
		return
	}
	s.match.PauseMatch(from.actor())
	s.metrics.RecordPause(match.PauseAdmin)
	s.engine.Broadcast(fmt.Sprintf("Match paused by %s.", from.Name))
}

func (s *Server) cmdUnpause(from sender) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	if !s.match.IsPaused() {
		s.reply(from, "Match is not paused.")
		return
	}
	s.engine.Broadcast(fmt.Sprintf("Match unpaused by %s.", from.Name))
	s.match.UnpauseMatch(from.actor())
}

// cmdTeamPause is the public timed pause; it spends one unit of the
// sender's team quota.
func (s *Server) cmdTeamPause(from sender) {
	seconds := int(s.cfg.Pause.VotePauseDuration.Seconds())
	ok, reason := s.match.PauseMatchTimed(match.PauseVote, from.Team, seconds)
	if !ok {
		s.reject(from, reason)
		return
	}
	s.metrics.RecordPause(match.PauseVote)
}

func (s *Server) cmdRestart(from sender) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	s.engine.Broadcast(fmt.Sprintf("Match restarting by %s...", from.Name))
	s.match.RestartMatch(from.actor())
}

func (s *Server) cmdStart(from sender) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	if !s.match.IsWarmup() {
		s.reply(from, "Server is not in warmup mode.")
		return
	}
	if n := s.humanCount(); n < s.cfg.Plugin.MinPlayersToStart {
		s.reject(from, fmt.Sprintf("Not enough players. Need at least %d players.", s.cfg.Plugin.MinPlayersToStart))
		return
	}
	s.engine.Broadcast(s.cfg.Plugin.MatchStartMessage)
	s.engine.Broadcast(fmt.Sprintf("Match started by %s.", from.Name))
	s.match.StartMatch(from.actor())
}

func (s *Server) cmdWarmup(from sender) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	if s.match.IsWarmup() {
		s.reply(from, "Server is already in warmup mode.")
		return
	}
	s.engine.Broadcast(fmt.Sprintf("Warmup started by %s.", from.Name))
	s.engine.Broadcast(s.cfg.Plugin.WarmupMessage)
	s.match.StartWarmup(from.actor())
}

func (s *Server) cmdEndWarmup(from sender) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	if !s.match.IsWarmup() {
		s.reply(from, "Server is not in warmup mode.")
		return
	}
	s.engine.Broadcast(fmt.Sprintf("Warmup ended by %s.", from.Name))
	s.match.EndWarmup(from.actor())
}

func (s *Server) cmdKnife(from sender) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	if !s.cfg.Plugin.EnableKnifeRound {
		s.reject(from, "Knife round is disabled.")
		return
	}
	if s.match.IsKnifeRound() || s.match.WaitingForSideChoice() {
		s.reply(from, "A knife round is already in progress.")
		return
	}
	s.engine.Broadcast(s.cfg.Plugin.KnifeRoundMessage)
	s.match.StartKnifeRound(from.actor())
	s.metrics.KnifeRounds.Add(1)
}

func (s *Server) cmdKnifeOnly(from sender, args []string) {
	if !s.allowed(from, rbac.PermGeneric) {
		return
	}
	switch strings.ToLower(strings.Join(args, "")) {
	case "on":
		s.match.EnableKnifeOnly(from.actor())
		s.engine.Broadcast(fmt.Sprintf("Knife only enabled by %s.", from.Name))
	case "off":
		s.match.DisableKnifeOnly(from.actor())
		s.engine.Broadcast(fmt.Sprintf("Knife only disabled by %s.", from.Name))
	default:
		s.reply(from, "Usage: .knifeonly on|off")
	}
}

func (s *Server) cmdStatus(from sender) {
	st := s.match.Snapshot()
	phase := "live"
	switch {
	case st.Warmup:
		phase = "warmup"
	case st.KnifeRound:
		phase = "knife round"
	case st.WaitingForSideChoice:
		phase = "side choice (" + st.KnifeWinner + ")"
	}
	pause := "no"
	if st.Paused {
		pause = st.PauseKind
		if st.PauseRemaining > 0 {
			pause = fmt.Sprintf("%s, %ds left", st.PauseKind, st.PauseRemaining)
		}
		if st.WaitingForPlayer != 0 {
			pause += fmt.Sprintf(", waiting for %d", st.WaitingForPlayer)
		}
	}
	s.reply(from, fmt.Sprintf("Match: %s | Paused: %s | Pauses left: T %d, CT %d",
		phase, pause, st.PausesRemaining[model.TeamT.String()], st.PausesRemaining[model.TeamCT.String()]))
	if v := s.votes.Current(); v != nil {
		s.reply(from, fmt.Sprintf("Vote: %s (%d yes, %d no, %ds left)", v.Description, v.Yes, v.No, v.RemainingSeconds))
	}
}

func (s *Server) humanCount() int {
	n := 0
	for _, p := range s.roster.Participants() {
		if !p.Bot {
			n++
		}
	}
	return n
}

// ---- Admin management ----

func (s *Server) cmdAddAdmin(from sender, args []string) {
	if !s.allowed(from, rbac.PermManageAdmins) {
		return
	}
	if len(args) < 3 {
		s.reply(from, "Usage: .add_admin <steamid> <name> <flags> [group]")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		s.reply(from, msgInvalidSteamID)
		return
	}
	flags, err := model.ParseFlags(args[2])
	if err != nil {
		s.reject(from, "Invalid flag: "+strings.TrimPrefix(err.Error(), model.ErrInvalidFlag.Error()+": "))
		return
	}
	group := ""
	if len(args) > 3 {
		group = args[3]
	}
	ok, err := s.ledger.AddAdmin(id, args[1], flags, group, from.actor())
	if err != nil {
		s.internalError(from, "add admin", err)
		return
	}
	if !ok {
		s.reply(from, "Admin already exists or group not found.")
		return
	}
	s.reply(from, fmt.Sprintf("Admin added: %s (%d)", args[1], id))
}

func (s *Server) cmdRemoveAdmin(from sender, args []string) {
	if !s.allowed(from, rbac.PermManageAdmins) {
		return
	}
	if len(args) < 1 {
		s.reply(from, "Usage: .remove_admin <steamid>")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		s.reply(from, msgInvalidSteamID)
		return
	}
	ok, err := s.ledger.RemoveAdmin(id, from.actor())
	if err != nil {
		s.internalError(from, "remove admin", err)
		return
	}
	if !ok {
		s.reply(from, "Admin not found.")
		return
	}
	s.reply(from, "Admin removed.")
}

func (s *Server) cmdListAdmins(from sender) {
	if !s.allowed(from, rbac.PermManageAdmins) {
		return
	}
	admins, err := s.ledger.ListAdmins()
	if err != nil {
		s.internalError(from, "list admins", err)
		return
	}
	if len(admins) == 0 {
		s.reply(from, "No admins found.")
		return
	}
	s.reply(from, fmt.Sprintf("Admins (%d):", len(admins)))
	for i, a := range admins {
		if i == maxListedEntries {
			s.reply(from, fmt.Sprintf("... and %d more.", len(admins)-maxListedEntries))
			break
		}
		line := fmt.Sprintf("%s (%d): %s", a.Name, a.SteamID, model.JoinFlags(a.Flags))
		if a.Group != "" {
			line += " [" + a.Group + "]"
		}
		s.reply(from, line)
	}
}

func (s *Server) cmdAddGroup(from sender, args []string) {
	if !s.allowed(from, rbac.PermManageAdmins) {
		return
	}
	if len(args) < 2 {
		s.reply(from, "Usage: .add_group <name> <flags> [immunity]")
		return
	}
	if err := model.ValidateGroupName(args[0]); err != nil {
		s.reject(from, "Invalid group name: "+err.Error())
		return
	}
	flags, err := model.ParseFlags(args[1])
	if err != nil {
		s.reject(from, "Invalid flag: "+strings.TrimPrefix(err.Error(), model.ErrInvalidFlag.Error()+": "))
		return
	}
	immunity := 0
	if len(args) > 2 {
		immunity, err = strconv.Atoi(args[2])
		if err != nil {
			s.reply(from, "Invalid immunity.")
			return
		}
	}
	ok, err := s.ledger.AddGroup(args[0], flags, immunity, from.actor())
	if err != nil {
		s.internalError(from, "add group", err)
		return
	}
	if !ok {
		s.reply(from, "Group already exists.")
		return
	}
	s.reply(from, "Group created: "+args[0])
}

func (s *Server) cmdRemoveGroup(from sender, args []string) {
	if !s.allowed(from, rbac.PermManageAdmins) {
		return
	}
	if len(args) < 1 {
		s.reply(from, "Usage: .remove_group <name>")
		return
	}
	ok, err := s.ledger.RemoveGroup(args[0], from.actor())
	if err != nil {
		s.internalError(from, "remove group", err)
		return
	}
	if !ok {
		s.reply(from, "Group not found.")
		return
	}
	s.reply(from, "Group removed.")
}

func (s *Server) cmdListGroups(from sender) {
	if !s.allowed(from, rbac.PermManageAdmins) {
		return
	}
	groups, err := s.ledger.ListGroups()
	if err != nil {
		s.internalError(from, "list groups", err)
		return
	}
	if len(groups) == 0 {
		s.reply(from, "No groups found.")
		return
	}
	s.reply(from, fmt.Sprintf("Groups (%d):", len(groups)))
	for _, g := range groups {
		s.reply(from, fmt.Sprintf("%s: %s (immunity: %d)", g.Name, model.JoinFlags(g.Flags), g.Immunity))
	}
}

func (s *Server) cmdSetGroup(from sender, args []string) {
	if !s.allowed(from, rbac.PermManageAdmins) {
		return
	}
	if len(args) < 2 {
		s.reply(from, "Usage: .set_group <steamid> <group>")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		s.reply(from, msgInvalidSteamID)
		return
	}
	ok, err := s.ledger.SetAdminGroup(id, args[1], from.actor())
	if err != nil {
		s.internalError(from, "set group", err)
		return
	}
	if !ok {
		s.reply(from, "Admin or group not found.")
		return
	}
	s.reply(from, fmt.Sprintf("Admin %d assigned to group: %s", id, args[1]))
}

func (s *Server) cmdReloadAdmins(from sender) {
	if !s.allowed(from, rbac.PermManageAdmins) {
		return
	}
	n, err := s.ledger.LoadAll()
	if err != nil {
		s.internalError(from, "reload admins", err)
		return
	}
	s.reply(from, fmt.Sprintf("Admins reloaded from database (%d).", n))
}
