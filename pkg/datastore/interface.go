package datastore

import (
	"context"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/model"
)

type DataProviderFactory interface {
	NonTx() DataStore
	Tx(context.Context) (DataStoreTx, error)
}

type DataStoreTx interface {
	DataStore
	Rollback() error
	Commit() error
}

// DataStore defines the persistence interface for the moderation ledger.
// Implementations include the default SQLite store and the in-memory store
// in pkg/store used by tests.
type DataStore interface {
	ConfigReadProvider

	PunishmentReadProvider
	PunishmentWriteProvider

	AdminReadProvider
	AdminWriteProvider

	GroupReadProvider
	GroupWriteProvider

	AuditReadProvider
	AuditWriteProvider
}

// Compile-time check: *ProviderFactory implements DataProviderFactory.
var _ DataProviderFactory = (*ProviderFactory)(nil)

type ConfigReadProvider interface {
	ZeroTime() time.Time
	Close() error
}

type PunishmentReadProvider interface {
	// ActivePunishment returns the most recently created record of kind for
	// subjectID that is unrevoked and unexpired at now, or (nil, nil).
	ActivePunishment(kind model.Kind, subjectID uint64, now time.Time) (*model.Punishment, error)
	ListPunishments(kind model.Kind, subjectID uint64) ([]model.Punishment, error)
}

type PunishmentWriteProvider interface {
	CreatePunishment(p *model.Punishment) error
	// RevokePunishment stamps the revoke fields of an unrevoked record.
	// It returns false if the record does not exist or was already revoked.
	RevokePunishment(kind model.Kind, id int64, revokedAt time.Time, byID uint64, byName string) (bool, error)
}

type AdminReadProvider interface {
	GetAdmin(steamID uint64) (*model.Admin, error)
	ListAdmins() ([]model.Admin, error)
}

type AdminWriteProvider interface {
	// CreateAdmin inserts an admin. It returns false if the steam id exists.
	CreateAdmin(admin *model.Admin) (bool, error)
	DeleteAdmin(steamID uint64) (bool, error)
	SetAdminGroup(steamID uint64, group string) (bool, error)
}

type GroupReadProvider interface {
	GetGroup(name string) (*model.AdminGroup, error)
	ListGroups() ([]model.AdminGroup, error)
}

type GroupWriteProvider interface {
	// CreateGroup inserts a group. It returns false if the name exists.
	CreateGroup(group *model.AdminGroup) (bool, error)
	// DeleteGroup clears the group reference on every admin using it, then
	// removes the group. It returns false if the group does not exist.
	DeleteGroup(name string) (bool, error)
}

type AuditReadProvider interface {
	// ListAudit returns the newest entries first.
	ListAudit(limit int) ([]model.AuditEntry, error)
}

type AuditWriteProvider interface {
	CreateAuditEntry(entry *model.AuditEntry) error
}
