// Package model defines the records shared by the ledger, the stores and
// the match components.
package model

import (
	"errors"
	"time"
)

var ErrSubjectIDZero = errors.New("subject id must not be zero")
var ErrInvalidKind = errors.New("invalid punishment kind: must be ban or mute")

// Kind distinguishes the two punishment relations. Both share one record shape.
type Kind int

const (
	KindBan Kind = iota
	KindMute
)

func (k Kind) String() string {
	switch k {
	case KindBan:
		return "ban"
	case KindMute:
		return "mute"
	default:
		return "unknown"
	}
}

// Valid returns true if the kind is a recognised value.
func (k Kind) Valid() bool {
	return k == KindBan || k == KindMute
}

// Punishment is a ban or mute record. Records are append-only; revocation
// stamps the Revoked* fields of the record instead of deleting it.
type Punishment struct {
	ID            int64     `json:"id"`
	Kind          Kind      `json:"kind"`
	SubjectID     uint64    `json:"subject_id"`
	SubjectName   string    `json:"subject_name"`
	Reason        string    `json:"reason"`
	IssuerID      uint64    `json:"issuer_id"` // 0 = console
	IssuerName    string    `json:"issuer_name"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"` // zero = permanent
	RevokedAt     time.Time `json:"revoked_at"` // zero = not revoked
	RevokedByID   uint64    `json:"revoked_by_id"`
	RevokedByName string    `json:"revoked_by_name"`
}

// IsPermanent reports whether the record never expires.
func (p *Punishment) IsPermanent() bool {
	return p.ExpiresAt.IsZero()
}

// IsRevoked reports whether an unban or unmute was stamped on the record.
func (p *Punishment) IsRevoked() bool {
	return !p.RevokedAt.IsZero()
}

// IsActive reports whether the record is enforceable at now.
func (p *Punishment) IsActive(now time.Time) bool {
	if p.IsRevoked() {
		return false
	}
	return p.IsPermanent() || p.ExpiresAt.After(now)
}

// Remaining returns the time left before expiry, or 0 for permanent and
// expired records.
func (p *Punishment) Remaining(now time.Time) time.Duration {
	if p.IsPermanent() || !p.ExpiresAt.After(now) {
		return 0
	}
	return p.ExpiresAt.Sub(now)
}

// Validate checks the fields a store requires before inserting.
func (p *Punishment) Validate() error {
	if !p.Kind.Valid() {
		return ErrInvalidKind
	}
	if p.SubjectID == 0 {
		return ErrSubjectIDZero
	}
	return nil
}
