package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrInvalidFlag = errors.New("invalid flag")

// Flag is an atomic permission token such as "@css/kick".
type Flag string

const (
	FlagKick        Flag = "@css/kick"
	FlagBan         Flag = "@css/ban"
	FlagSlay        Flag = "@css/slay"
	FlagChat        Flag = "@css/chat"
	FlagChangeMap   Flag = "@css/changemap"
	FlagGeneric     Flag = "@css/generic"
	FlagRoot        Flag = "@css/root"
	FlagVIP         Flag = "@css/vip"
	FlagReservation Flag = "@css/reservation"
)

var knownFlags = []Flag{
	FlagKick, FlagBan, FlagSlay, FlagChat, FlagChangeMap,
	FlagGeneric, FlagRoot, FlagVIP, FlagReservation,
}

// Valid returns true if the flag is one of the known permission tokens.
func (f Flag) Valid() bool {
	return slices.Contains(knownFlags, f)
}

// KnownFlags returns every recognised flag.
func KnownFlags() []Flag {
	return slices.Clone(knownFlags)
}

// ParseFlags splits a comma-separated flag list, trimming blanks and
// dropping duplicates. Unknown flags are rejected.
func ParseFlags(s string) ([]Flag, error) {
	var flags []Flag
	for _, part := range strings.Split(s, ",") {
		f := Flag(strings.TrimSpace(part))
		if f == "" {
			continue
		}
		if !f.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFlag, string(f))
		}
		if !slices.Contains(flags, f) {
			flags = append(flags, f)
		}
	}
	return flags, nil
}

// JoinFlags renders flags in the comma-separated storage form.
func JoinFlags(flags []Flag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// UnionFlags merges flag sets keeping first-seen order.
func UnionFlags(sets ...[]Flag) []Flag {
	var out []Flag
	for _, set := range sets {
		for _, f := range set {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}
