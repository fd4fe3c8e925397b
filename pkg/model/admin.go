package model

import (
	"errors"
	"fmt"
	"time"
)

const MaxGroupNameLength = 32

var ErrGroupNameEmpty = errors.New("group name must not be empty")
var ErrGroupNameTooLong = fmt.Errorf("group name must not exceed %d characters", MaxGroupNameLength)
var ErrGroupNameInvalidChars = errors.New("group name must contain only alphanumeric characters, underscores, hyphens or a leading #")

// Admin is a durable admin identity. Group is empty when no group is assigned.
type Admin struct {
	SteamID       uint64    `json:"steam_id" yaml:"steam_id"`
	Name          string    `json:"name" yaml:"name"`
	Flags         []Flag    `json:"flags" yaml:"flags"`
	Group         string    `json:"group,omitempty" yaml:"group,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	CreatedByID   uint64    `json:"created_by_id" yaml:"-"`
	CreatedByName string    `json:"created_by_name" yaml:"-"`
}

// AdminGroup is a named flag set shared by admins.
type AdminGroup struct {
	Name          string    `json:"name" yaml:"name"`
	Flags         []Flag    `json:"flags" yaml:"flags"`
	Immunity      int       `json:"immunity" yaml:"immunity"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	CreatedByID   uint64    `json:"created_by_id" yaml:"-"`
	CreatedByName string    `json:"created_by_name" yaml:"-"`
}

// ValidateGroupName checks that a group name is 1-32 ASCII alphanumeric,
// underscore or hyphen characters, optionally prefixed with '#'.
func ValidateGroupName(name string) error {
	if len(name) == 0 {
		return ErrGroupNameEmpty
	}
	if len(name) > MaxGroupNameLength {
		return ErrGroupNameTooLong
	}
	for i, r := range name {
		if r == '#' && i == 0 {
			continue
		}
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrGroupNameInvalidChars
		}
	}
	return nil
}
