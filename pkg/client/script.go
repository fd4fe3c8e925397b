package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	pb "github.com/NicolasHaas/matchadmin/pkg/protocol/pb"
)

var ErrEmptyLine = errors.New("empty line")

// Usage lists the event lines understood by ParseLine.
const Usage = `connect <steamid> <slot> <team> <name>
bot <slot> <team> <name>
disconnect <steamid> [team]
chat <steamid> <text>        (steamid 0 is the server console)
round_start
round_end <team>
map <name>
inventory <steamid> <item,item,...>
native <vote id> <yes> <no> <eligible>
ping`

// ParseLine turns one console line into a host event.
func ParseLine(line string) (*pb.Envelope, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmptyLine
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "connect":
		if len(args) < 4 {
			return nil, usageErr(name, "<steamid> <slot> <team> <name>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		p, err := participant(args[1], args[2], strings.Join(args[3:], " "))
		if err != nil {
			return nil, err
		}
		p.SteamID = id
		return &pb.Envelope{PlayerConnected: &pb.PlayerConnected{Participant: p}}, nil

	case "bot":
		if len(args) < 3 {
			return nil, usageErr(name, "<slot> <team> <name>")
		}
		p, err := participant(args[0], args[1], strings.Join(args[2:], " "))
		if err != nil {
			return nil, err
		}
		p.Bot = true
		return &pb.Envelope{PlayerConnected: &pb.PlayerConnected{Participant: p}}, nil

	case "disconnect":
		if len(args) < 1 {
			return nil, usageErr(name, "<steamid> [team]")
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		ev := &pb.PlayerDisconnected{SteamID: id}
		if len(args) > 1 {
			if ev.Team, err = parseTeam(args[1]); err != nil {
				return nil, err
			}
		}
		return &pb.Envelope{PlayerDisconnected: ev}, nil

	case "chat", "say":
		if len(args) < 2 {
			return nil, usageErr(name, "<steamid> <text>")
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid steam id %q", args[0])
		}
		return &pb.Envelope{Chat: &pb.Chat{SteamID: id, Text: strings.Join(args[1:], " ")}}, nil

	case "round_start":
		return &pb.Envelope{RoundStarted: &pb.RoundStarted{}}, nil

	case "round_end":
		if len(args) < 1 {
			return nil, usageErr(name, "<team>")
		}
		team, err := parseTeam(args[0])
		if err != nil {
			return nil, err
		}
		return &pb.Envelope{RoundEnded: &pb.RoundEnded{Winner: team}}, nil

	case "map":
		if len(args) < 1 {
			return nil, usageErr(name, "<name>")
		}
		return &pb.Envelope{MapStarted: &pb.MapStarted{Map: args[0]}}, nil

	case "inventory":
		if len(args) < 2 {
			return nil, usageErr(name, "<steamid> <item,item,...>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return &pb.Envelope{Inventory: &pb.Inventory{SteamID: id, Items: strings.Split(args[1], ",")}}, nil

	case "native":
		if len(args) < 4 {
			return nil, usageErr(name, "<vote id> <yes> <no> <eligible>")
		}
		var nums [4]int
		for i, a := range args[:4] {
			n, err := strconv.Atoi(a)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid number %q", a)
			}
			nums[i] = n
		}
		return &pb.Envelope{NativeVoteResult: &pb.NativeVoteResult{
			VoteID: uint64(nums[0]), Yes: nums[1], No: nums[2], Eligible: nums[3], //nolint:gosec // checked non-negative
		}}, nil

	case "ping":
		return &pb.Envelope{Ping: &pb.Ping{Timestamp: time.Now().UnixMilli()}}, nil
	}
	return nil, fmt.Errorf("unknown event %q", name)
}

// FormatCommand renders a command from the core as one line.
func FormatCommand(msg *pb.Envelope) string {
	switch {
	case msg.Exec != nil:
		return "exec      " + msg.Exec.Command
	case msg.Broadcast != nil:
		return "broadcast " + msg.Broadcast.Text
	case msg.Tell != nil:
		return fmt.Sprintf("tell      %d %s", msg.Tell.SteamID, msg.Tell.Text)
	case msg.Kick != nil:
		return fmt.Sprintf("kick      %d %s", msg.Kick.SteamID, msg.Kick.Reason)
	case msg.SetMoney != nil:
		return fmt.Sprintf("money     %d %d", msg.SetMoney.SteamID, msg.SetMoney.Amount)
	case msg.RemoveItem != nil:
		return fmt.Sprintf("strip     %d %s", msg.RemoveItem.SteamID, msg.RemoveItem.Item)
	case msg.InventoryRequest != nil:
		return fmt.Sprintf("inventory %d?", msg.InventoryRequest.SteamID)
	case msg.NativeVoteStart != nil:
		v := msg.NativeVoteStart
		return fmt.Sprintf("vote      #%d %q %s (%ds, team %s)", v.VoteID, v.Title, v.Detail, v.DurationSeconds, v.Team)
	case msg.Pong != nil:
		return fmt.Sprintf("pong      %dms", time.Now().UnixMilli()-msg.Pong.Timestamp)
	case msg.Error != nil:
		return fmt.Sprintf("error     %d %s", msg.Error.Code, msg.Error.Message)
	}
	return "?"
}

func participant(slot, team, name string) (model.Participant, error) {
	s, err := strconv.Atoi(slot)
	if err != nil {
		return model.Participant{}, fmt.Errorf("invalid slot %q", slot)
	}
	t, err := parseTeam(team)
	if err != nil {
		return model.Participant{}, err
	}
	return model.Participant{Slot: s, Team: t, Name: name}, nil
}

func parseTeam(s string) (model.Team, error) {
	t := model.ParseTeam(s)
	if t == model.TeamNone && !strings.EqualFold(s, "none") {
		return t, fmt.Errorf("invalid team %q", s)
	}
	return t, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid steam id %q", s)
	}
	return id, nil
}

func usageErr(name, args string) error {
	return fmt.Errorf("usage: %s %s", name, args)
}
