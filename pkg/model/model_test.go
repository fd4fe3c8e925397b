package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateGroupName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "mods", nil},
		{"valid with hash", "#admins", nil},
		{"valid with underscore", "head_admins", nil},
		{"valid max length", strings.Repeat("a", MaxGroupNameLength), nil},
		{"empty", "", ErrGroupNameEmpty},
		{"too long", strings.Repeat("a", MaxGroupNameLength+1), ErrGroupNameTooLong},
		{"contains space", "head admins", ErrGroupNameInvalidChars},
		{"hash not leading", "ad#mins", ErrGroupNameInvalidChars},
		{"quote", "' OR 1=1", ErrGroupNameInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGroupName(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateGroupName(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"single", "@css/kick", "@css/kick", false},
		{"trimmed", " @css/kick , @css/ban ", "@css/kick,@css/ban", false},
		{"duplicates dropped", "@css/ban,@css/ban", "@css/ban", false},
		{"empty parts skipped", "@css/chat,,", "@css/chat", false},
		{"empty", "", "", false},
		{"unknown", "@css/kick,@css/fly", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, err := ParseFlags(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFlag) {
					t.Fatalf("ParseFlags(%q): expected ErrInvalidFlag, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFlags(%q): unexpected error: %v", tt.input, err)
			}
			if got := JoinFlags(flags); got != tt.want {
				t.Errorf("ParseFlags(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestUnionFlags(t *testing.T) {
	got := JoinFlags(UnionFlags([]Flag{FlagKick, FlagBan}, []Flag{FlagBan, FlagChat}, nil))
	if want := "@css/kick,@css/ban,@css/chat"; got != want {
		t.Errorf("UnionFlags = %q, want %q", got, want)
	}
}

func TestPunishmentIsActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		p    Punishment
		want bool
	}{
		{"permanent", Punishment{}, true},
		{"future expiry", Punishment{ExpiresAt: now.Add(time.Minute)}, true},
		{"expired", Punishment{ExpiresAt: now.Add(-time.Minute)}, false},
		{"expires exactly now", Punishment{ExpiresAt: now}, false},
		{"revoked permanent", Punishment{RevokedAt: now.Add(-time.Hour)}, false},
		{"revoked future", Punishment{ExpiresAt: now.Add(time.Hour), RevokedAt: now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsActive(now); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPunishmentRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Punishment{ExpiresAt: now.Add(90 * time.Second)}
	if got := p.Remaining(now); got != 90*time.Second {
		t.Errorf("Remaining() = %v, want 90s", got)
	}
	perm := Punishment{}
	if got := perm.Remaining(now); got != 0 {
		t.Errorf("Remaining() on permanent = %v, want 0", got)
	}
}

func TestPunishmentValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Punishment
		wantErr error
	}{
		{"valid ban", Punishment{Kind: KindBan, SubjectID: 76561198000000001}, nil},
		{"valid mute", Punishment{Kind: KindMute, SubjectID: 76561198000000001}, nil},
		{"zero subject", Punishment{Kind: KindBan}, ErrSubjectIDZero},
		{"bad kind", Punishment{Kind: Kind(7), SubjectID: 1}, ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTeam(t *testing.T) {
	tests := []struct {
		input    string
		want     Team
		opponent Team
		playing  bool
	}{
		{"t", TeamT, TeamCT, true},
		{"CT", TeamCT, TeamT, true},
		{"3", TeamCT, TeamT, true},
		{"spec", TeamSpectator, TeamNone, false},
		{"blue", TeamNone, TeamNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseTeam(tt.input)
			if got != tt.want {
				t.Fatalf("ParseTeam(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.Opponent() != tt.opponent {
				t.Errorf("%v.Opponent() = %v, want %v", got, got.Opponent(), tt.opponent)
			}
			if got.Playing() != tt.playing {
				t.Errorf("%v.Playing() = %v, want %v", got, got.Playing(), tt.playing)
			}
		})
	}
}

func TestParticipantCanVote(t *testing.T) {
	tests := []struct {
		name string
		p    Participant
		want bool
	}{
		{"T player", Participant{Team: TeamT}, true},
		{"CT player", Participant{Team: TeamCT}, true},
		{"bot", Participant{Team: TeamT, Bot: true}, false},
		{"spectator", Participant{Team: TeamSpectator}, false},
		{"unassigned", Participant{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.CanVote(); got != tt.want {
				t.Errorf("CanVote() = %v, want %v", got, tt.want)
			}
		})
	}
}
