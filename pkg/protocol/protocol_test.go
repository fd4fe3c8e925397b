package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	pb "github.com/NicolasHaas/matchadmin/pkg/protocol/pb"
)

func TestFramingSequence(t *testing.T) {
	msgs := []*pb.Envelope{
		{Hello: &pb.Hello{Secret: "s3cret", ServerName: "pug #1", Map: "de_nuke"}},
		{PlayerConnected: &pb.PlayerConnected{Participant: model.Participant{
			SteamID: 76561198000000001, Slot: 3, Name: "alice", Team: model.TeamCT,
		}}},
		{Chat: &pb.Chat{SteamID: 76561198000000001, Text: ".votekick bob", TeamOnly: true}},
		{Exec: &pb.Exec{Command: "mp_pause_match"}},
	}

	var buf bytes.Buffer
	for _, m := range msgs {
		if err := WriteMessage(&buf, m); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	for i, want := range msgs {
		got, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("ReadMessage %d: %v", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("message %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	if _, err := ReadMessage(&buf); !errors.Is(err, io.EOF) {
		t.Errorf("ReadMessage on empty stream = %v, want io.EOF", err)
	}
}

func TestMessageSizeLimits(t *testing.T) {
	big := &pb.Envelope{Broadcast: &pb.Broadcast{Text: strings.Repeat("x", MaxMessage)}}
	if err := WriteMessage(io.Discard, big); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("WriteMessage oversized = %v, want ErrMessageTooLarge", err)
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], MaxMessage+1)
	if _, err := ReadMessage(bytes.NewReader(hdr[:])); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("ReadMessage oversized header = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadMessageTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, &pb.Envelope{Ping: &pb.Ping{Timestamp: 42}}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	data := buf.Bytes()[:buf.Len()-2]
	if _, err := ReadMessage(bytes.NewReader(data)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadMessage truncated = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		msg  *pb.Envelope
		want string
	}{
		{"nil", nil, "nil"},
		{"hello", &pb.Envelope{Hello: &pb.Hello{}}, "hello"},
		{"round ended", &pb.Envelope{RoundEnded: &pb.RoundEnded{Winner: model.TeamT}}, "round_ended"},
		{"native vote", &pb.Envelope{NativeVoteStart: &pb.NativeVoteStart{VoteID: 1}}, "native_vote_start"},
		{"kick", &pb.Envelope{Kick: &pb.Kick{SteamID: 1}}, "kick"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.msg); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}
