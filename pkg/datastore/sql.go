package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/matchadmin/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type baseProvider struct {
	DB
}

func (p *baseProvider) ZeroTime() time.Time {
	return time.Time{}
}

func (p *baseProvider) Close() error {
	return nil
}

type nonTxProvider struct {
	baseProvider
}

type txProvider struct {
	baseProvider
	tx *sql.Tx
}

func (c *txProvider) Rollback() error {
	return c.tx.Rollback()
}

func (c *txProvider) Commit() error {
	return c.tx.Commit()
}

// ProviderFactory provides database access for the moderation ledger.
type ProviderFactory struct {
	DB *sql.DB
}

func (sf ProviderFactory) NonTx() DataStore {
	return &nonTxProvider{
		baseProvider: baseProvider{
			DB: sf.DB,
		},
	}
}

func (sf ProviderFactory) Tx(ctx context.Context) (DataStoreTx, error) {
	tx, err := sf.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &txProvider{
		baseProvider: baseProvider{
			DB: tx,
		},
		tx: tx,
	}, nil
}

// NewProviderFactory opens (or creates) a SQLite database and runs migrations.
func NewProviderFactory(dbPath string) (*ProviderFactory, error) {
	DB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := DB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	if _, err := DB.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: enable FK: %w", err)
	}
	if _, err := DB.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}
	// A single connection keeps the foreign_keys pragma in effect for every query.
	DB.SetMaxOpenConns(1)

	s := &ProviderFactory{DB: DB}
	if err := s.migrate(); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *ProviderFactory) Close() error {
	return s.DB.Close()
}

func (s *ProviderFactory) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS bans (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		steam_id            INTEGER NOT NULL,
		player_name         TEXT    NOT NULL DEFAULT '',
		reason              TEXT    NOT NULL DEFAULT '',
		admin_steam_id      INTEGER NOT NULL DEFAULT 0,
		admin_name          TEXT    NOT NULL DEFAULT '',
		created_at          TEXT    NOT NULL DEFAULT (datetime('now')),
		expires_at          TEXT,
		unbanned_at         TEXT,
		unbanned_by_steam_id INTEGER,
		unbanned_by_name    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_bans_steam_id ON bans(steam_id);

	CREATE TABLE IF NOT EXISTS mutes (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		steam_id            INTEGER NOT NULL,
		player_name         TEXT    NOT NULL DEFAULT '',
		reason              TEXT    NOT NULL DEFAULT '',
		admin_steam_id      INTEGER NOT NULL DEFAULT 0,
		admin_name          TEXT    NOT NULL DEFAULT '',
		created_at          TEXT    NOT NULL DEFAULT (datetime('now')),
		expires_at          TEXT,
		unmuted_at          TEXT,
		unmuted_by_steam_id INTEGER,
		unmuted_by_name     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_mutes_steam_id ON mutes(steam_id);

	CREATE TABLE IF NOT EXISTS logs (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		action          TEXT    NOT NULL,
		admin_steam_id  INTEGER NOT NULL DEFAULT 0,
		admin_name      TEXT    NOT NULL DEFAULT '',
		target_steam_id INTEGER,
		target_name     TEXT,
		details         TEXT,
		created_at      TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS admin_groups (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		name                 TEXT    NOT NULL UNIQUE,
		flags                TEXT    NOT NULL DEFAULT '',
		immunity             INTEGER NOT NULL DEFAULT 0,
		created_at           TEXT    NOT NULL DEFAULT (datetime('now')),
		created_by_steam_id  INTEGER NOT NULL DEFAULT 0,
		created_by_name      TEXT    NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS admins (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		steam_id             INTEGER NOT NULL UNIQUE,
		player_name          TEXT    NOT NULL DEFAULT '',
		flags                TEXT    NOT NULL DEFAULT '',
		group_name           TEXT    REFERENCES admin_groups(name) ON DELETE SET NULL,
		created_at           TEXT    NOT NULL DEFAULT (datetime('now')),
		created_by_steam_id  INTEGER NOT NULL DEFAULT 0,
		created_by_name      TEXT    NOT NULL DEFAULT ''
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version      int
		statements   []string
		ignoreErrors bool
	}{
		{
			version:    1,
			statements: []string{schema},
		},
		{
			version: 2,
			statements: []string{
				"CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs(created_at)",
				"CREATE INDEX IF NOT EXISTS idx_admins_group_name ON admins(group_name)",
			},
			ignoreErrors: true,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if err := s.execMigration(ctx, stmt, m.ignoreErrors); err != nil {
				return err
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProviderFactory) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.DB.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *ProviderFactory) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.DB.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

func (s *ProviderFactory) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.DB.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

func (s *ProviderFactory) execMigration(ctx context.Context, stmt string, ignoreErrors bool) error {
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		if ignoreErrors {
			return nil
		}
		return fmt.Errorf("datastore: migrate: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

func nullableTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := formatDBTime(t)
	return &s
}

func parseNullableTime(value sql.NullString) (time.Time, error) {
	if !value.Valid {
		return time.Time{}, nil
	}
	return parseDBTime(value.String)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// punishmentTable maps a kind to its table and revoke columns.
type punishmentTable struct {
	name, revokedAt, revokedByID, revokedByName string
}

func tableFor(kind model.Kind) (punishmentTable, error) {
	switch kind {
	case model.KindBan:
		return punishmentTable{"bans", "unbanned_at", "unbanned_by_steam_id", "unbanned_by_name"}, nil
	case model.KindMute:
		return punishmentTable{"mutes", "unmuted_at", "unmuted_by_steam_id", "unmuted_by_name"}, nil
	default:
		return punishmentTable{}, model.ErrInvalidKind
	}
}

func (t punishmentTable) selectColumns() string {
	return "id, steam_id, player_name, reason, admin_steam_id, admin_name, created_at, expires_at, " +
		t.revokedAt + ", " + t.revokedByID + ", " + t.revokedByName
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPunishment(row rowScanner, kind model.Kind) (*model.Punishment, error) {
	p := &model.Punishment{Kind: kind}
	var subjectID, issuerID int64
	var createdAt string
	var expiresAt, revokedAt, revokedByName sql.NullString
	var revokedByID sql.NullInt64
	if err := row.Scan(&p.ID, &subjectID, &p.SubjectName, &p.Reason, &issuerID, &p.IssuerName,
		&createdAt, &expiresAt, &revokedAt, &revokedByID, &revokedByName); err != nil {
		return nil, err
	}
	p.SubjectID = uint64(subjectID) //nolint:gosec // steam ids are stored as their int64 bit pattern
	p.IssuerID = uint64(issuerID)   //nolint:gosec // same as above
	p.RevokedByID = uint64(revokedByID.Int64)
	p.RevokedByName = revokedByName.String

	var err error
	if p.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, err
	}
	if p.ExpiresAt, err = parseNullableTime(expiresAt); err != nil {
		return nil, err
	}
	if p.RevokedAt, err = parseNullableTime(revokedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// ---- Punishments ----

// CreatePunishment inserts a ban or mute record and assigns its ID.
func (s *baseProvider) CreatePunishment(p *model.Punishment) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("datastore: create %s: %w", p.Kind, err)
	}
	table, err := tableFor(p.Kind)
	if err != nil {
		return fmt.Errorf("datastore: create punishment: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.ExecContext(context.Background(),
		"INSERT INTO "+table.name+" (steam_id, player_name, reason, admin_steam_id, admin_name, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		int64(p.SubjectID), p.SubjectName, p.Reason, int64(p.IssuerID), p.IssuerName, //nolint:gosec // steam ids fit in int64
		formatDBTime(p.CreatedAt), nullableTime(p.ExpiresAt))
	if err != nil {
		return fmt.Errorf("datastore: create %s: %w", p.Kind, err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// ActivePunishment returns the newest active record for a subject.
func (s *baseProvider) ActivePunishment(kind model.Kind, subjectID uint64, now time.Time) (*model.Punishment, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("datastore: active punishment: %w", err)
	}
	row := s.QueryRowContext(context.Background(),
		"SELECT "+table.selectColumns()+" FROM "+table.name+
			" WHERE steam_id = ? AND "+table.revokedAt+" IS NULL AND (expires_at IS NULL OR expires_at > ?)"+
			" ORDER BY created_at DESC, id DESC LIMIT 1",
		int64(subjectID), formatDBTime(now)) //nolint:gosec // steam ids fit in int64
	p, err := scanPunishment(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: active %s: %w", kind, err)
	}
	return p, nil
}

// ListPunishments returns every record of a subject, newest first.
func (s *baseProvider) ListPunishments(kind model.Kind, subjectID uint64) ([]model.Punishment, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("datastore: list punishments: %w", err)
	}
	rows, err := s.QueryContext(context.Background(),
		"SELECT "+table.selectColumns()+" FROM "+table.name+" WHERE steam_id = ? ORDER BY created_at DESC, id DESC",
		int64(subjectID)) //nolint:gosec // steam ids fit in int64
	if err != nil {
		return nil, fmt.Errorf("datastore: list %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Punishment
	for rows.Next() {
		p, err := scanPunishment(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("datastore: scan %s: %w", kind, err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// RevokePunishment stamps the revoke columns of an unrevoked record.
func (s *baseProvider) RevokePunishment(kind model.Kind, id int64, revokedAt time.Time, byID uint64, byName string) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, fmt.Errorf("datastore: revoke punishment: %w", err)
	}
	res, err := s.ExecContext(context.Background(),
		"UPDATE "+table.name+" SET "+table.revokedAt+" = ?, "+table.revokedByID+" = ?, "+table.revokedByName+" = ?"+
			" WHERE id = ? AND "+table.revokedAt+" IS NULL",
		formatDBTime(revokedAt), int64(byID), byName, id) //nolint:gosec // steam ids fit in int64
	if err != nil {
		return false, fmt.Errorf("datastore: revoke %s: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---- Admins ----

func scanAdmin(row rowScanner) (*model.Admin, error) {
	a := &model.Admin{}
	var steamID, createdByID int64
	var flags, createdAt string
	var group sql.NullString
	if err := row.Scan(&steamID, &a.Name, &flags, &group, &createdAt, &createdByID, &a.CreatedByName); err != nil {
		return nil, err
	}
	a.SteamID = uint64(steamID)         //nolint:gosec // steam ids are stored as their int64 bit pattern
	a.CreatedByID = uint64(createdByID) //nolint:gosec // same as above
	a.Group = group.String
	parsedFlags, err := model.ParseFlags(flags)
	if err != nil {
		return nil, err
	}
	a.Flags = parsedFlags
	if a.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, err
	}
	return a, nil
}

const adminColumns = "steam_id, player_name, flags, group_name, created_at, created_by_steam_id, created_by_name"

// CreateAdmin inserts an admin. Returns false if the steam id already exists.
func (s *baseProvider) CreateAdmin(admin *model.Admin) (bool, error) {
	if admin.SteamID == 0 {
		return false, fmt.Errorf("datastore: create admin: %w", model.ErrSubjectIDZero)
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	var group *string
	if admin.Group != "" {
		group = &admin.Group
	}
	_, err := s.ExecContext(context.Background(),
		"INSERT INTO admins ("+adminColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		int64(admin.SteamID), admin.Name, model.JoinFlags(admin.Flags), group,        //nolint:gosec // steam ids fit in int64
		formatDBTime(admin.CreatedAt), int64(admin.CreatedByID), admin.CreatedByName) //nolint:gosec // same as above
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("datastore: create admin: %w", err)
	}
	return true, nil
}

// GetAdmin retrieves an admin by steam id.
func (s *baseProvider) GetAdmin(steamID uint64) (*model.Admin, error) {
	row := s.QueryRowContext(context.Background(),
		"SELECT "+adminColumns+" FROM admins WHERE steam_id = ?", int64(steamID)) //nolint:gosec // steam ids fit in int64
	a, err := scanAdmin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: get admin: %w", err)
	}
	return a, nil
}

// ListAdmins returns all admins ordered by creation.
func (s *baseProvider) ListAdmins() ([]model.Admin, error) {
	rows, err := s.QueryContext(context.Background(), "SELECT "+adminColumns+" FROM admins ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("datastore: list admins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var admins []model.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("datastore: scan admin: %w", err)
		}
		admins = append(admins, *a)
	}
	return admins, rows.Err()
}

// DeleteAdmin removes an admin. Returns false if it did not exist.
func (s *baseProvider) DeleteAdmin(steamID uint64) (bool, error) {
	res, err := s.ExecContext(context.Background(), "DELETE FROM admins WHERE steam_id = ?", int64(steamID)) //nolint:gosec // steam ids fit in int64
	if err != nil {
		return false, fmt.Errorf("datastore: delete admin: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetAdminGroup assigns a group (empty clears it). Returns false if the
// admin does not exist.
func (s *baseProvider) SetAdminGroup(steamID uint64, group string) (bool, error) {
	var value *string
	if group != "" {
		value = &group
	}
	res, err := s.ExecContext(context.Background(), "UPDATE admins SET group_name = ? WHERE steam_id = ?", value, int64(steamID)) //nolint:gosec // steam ids fit in int64
	if err != nil {
		return false, fmt.Errorf("datastore: set admin group: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---- Groups ----

func scanGroup(row rowScanner) (*model.AdminGroup, error) {
	g := &model.AdminGroup{}
	var createdByID int64
	var flags, createdAt string
	if err := row.Scan(&g.Name, &flags, &g.Immunity, &createdAt, &createdByID, &g.CreatedByName); err != nil {
		return nil, err
	}
	g.CreatedByID = uint64(createdByID) //nolint:gosec // steam ids are stored as their int64 bit pattern
	parsedFlags, err := model.ParseFlags(flags)
	if err != nil {
		return nil, err
	}
	g.Flags = parsedFlags
	if g.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, err
	}
	return g, nil
}

const groupColumns = "name, flags, immunity, created_at, created_by_steam_id, created_by_name"

// CreateGroup inserts a group. Returns false if the name already exists.
func (s *baseProvider) CreateGroup(group *model.AdminGroup) (bool, error) {
	if err := model.ValidateGroupName(group.Name); err != nil {
		return false, fmt.Errorf("datastore: create group: %w", err)
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	_, err := s.ExecContext(context.Background(),
		"INSERT INTO admin_groups ("+groupColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		group.Name, model.JoinFlags(group.Flags), group.Immunity,
		formatDBTime(group.CreatedAt), int64(group.CreatedByID), group.CreatedByName) //nolint:gosec // steam ids fit in int64
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("datastore: create group: %w", err)
	}
	return true, nil
}

// GetGroup retrieves a group by name.
func (s *baseProvider) GetGroup(name string) (*model.AdminGroup, error) {
	row := s.QueryRowContext(context.Background(), "SELECT "+groupColumns+" FROM admin_groups WHERE name = ?", name)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: get group: %w", err)
	}
	return g, nil
}

// ListGroups returns all groups ordered by creation.
func (s *baseProvider) ListGroups() ([]model.AdminGroup, error) {
	rows, err := s.QueryContext(context.Background(), "SELECT "+groupColumns+" FROM admin_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("datastore: list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []model.AdminGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("datastore: scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// DeleteGroup nulls the group reference on its admins and removes the group.
// Run it through Tx to make both statements atomic.
func (s *baseProvider) DeleteGroup(name string) (bool, error) {
	ctx := context.Background()
	if _, err := s.ExecContext(ctx, "UPDATE admins SET group_name = NULL WHERE group_name = ?", name); err != nil {
		return false, fmt.Errorf("datastore: delete group: clear admins: %w", err)
	}
	res, err := s.ExecContext(ctx, "DELETE FROM admin_groups WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("datastore: delete group: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---- Audit ----

// CreateAuditEntry appends an audit log row.
func (s *baseProvider) CreateAuditEntry(entry *model.AuditEntry) error {
	if entry.Action == "" {
		return fmt.Errorf("datastore: create audit entry: empty action")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var subjectID *int64
	var subjectName, details *string
	if entry.SubjectID != 0 {
		v := int64(entry.SubjectID) //nolint:gosec // steam ids fit in int64
		subjectID = &v
	}
	if entry.SubjectName != "" {
		subjectName = &entry.SubjectName
	}
	if entry.Details != "" {
		details = &entry.Details
	}
	res, err := s.ExecContext(context.Background(),
		"INSERT INTO logs (action, admin_steam_id, admin_name, target_steam_id, target_name, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.Action, int64(entry.IssuerID), entry.IssuerName, subjectID, subjectName, details, //nolint:gosec // steam ids fit in int64
		formatDBTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("datastore: create audit entry: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// ListAudit returns up to limit entries, newest first.
func (s *baseProvider) ListAudit(limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.QueryContext(context.Background(),
		"SELECT id, action, admin_steam_id, admin_name, target_steam_id, target_name, details, created_at FROM logs ORDER BY id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("datastore: list audit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var issuerID int64
		var subjectID sql.NullInt64
		var subjectName, details sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Action, &issuerID, &e.IssuerName, &subjectID, &subjectName, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("datastore: scan audit entry: %w", err)
		}
		e.IssuerID = uint64(issuerID)         //nolint:gosec // steam ids are stored as their int64 bit pattern
		e.SubjectID = uint64(subjectID.Int64) //nolint:gosec // same as above
		e.SubjectName = subjectName.String
		e.Details = details.String
		parsed, err := parseDBTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("datastore: scan audit entry: %w", err)
		}
		e.CreatedAt = parsed
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
