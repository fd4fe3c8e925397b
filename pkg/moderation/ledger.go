// Package moderation is the durable record of bans, mutes and admins.
//
// The Ledger answers "is X banned or muted right now" and "what may admin Y
// do". Punishment records are append-only: revoking stamps the newest active
// record instead of deleting anything. Mutes are mirrored in an in-memory
// session set so a reconnecting player is silenced before the durable lookup
// runs.
package moderation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/datastore"
	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/timeparse"
)

// PermissionSink receives resolved admin flag sets. rbac.Cache implements it.
type PermissionSink interface {
	SetFlags(steamID uint64, flags []model.Flag)
	RemoveFlags(steamID uint64)
}

// Options configures a Ledger.
type Options struct {
	// AuditEnabled controls whether mutations write audit entries.
	AuditEnabled bool
	Permissions  PermissionSink
	Now          func() time.Time
	Logger       *slog.Logger
}

// Ledger owns punishments, admins, groups and the audit log.
type Ledger struct {
	store  datastore.DataProviderFactory
	perms  PermissionSink
	now    func() time.Time
	audit  bool
	logger *slog.Logger

	mu           sync.Mutex
	sessionMutes map[uint64]struct{}
	loaded       map[uint64]struct{}
}

// New creates a Ledger on top of store.
func New(store datastore.DataProviderFactory, opts Options) *Ledger {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ledger{
		store:        store,
		perms:        opts.Permissions,
		now:          opts.Now,
		audit:        opts.AuditEnabled,
		logger:       opts.Logger,
		sessionMutes: make(map[uint64]struct{}),
		loaded:       make(map[uint64]struct{}),
	}
}

// ---- Bans and mutes ----

// Ban records a ban. A zero duration is permanent. Existing bans are left
// untouched; lookups pick the newest active record.
func (l *Ledger) Ban(subject, issuer model.Actor, duration time.Duration, reason string) (*model.Punishment, error) {
	p, err := l.punish(model.KindBan, subject, issuer, duration, reason)
	if err != nil {
		return nil, fmt.Errorf("moderation: ban: %w", err)
	}
	l.logger.Info("player banned", "subject", subject.ID, "issuer", issuer.ID, "duration", timeparse.Format(duration))
	l.logAction(model.ActionBan, issuer, subject, punishmentDetails(duration, p.Reason))
	return p, nil
}

// Mute records a mute and silences the subject for the current session.
func (l *Ledger) Mute(subject, issuer model.Actor, duration time.Duration, reason string) (*model.Punishment, error) {
	p, err := l.punish(model.KindMute, subject, issuer, duration, reason)
	if err != nil {
		return nil, fmt.Errorf("moderation: mute: %w", err)
	}
	l.addSessionMute(subject.ID)
	l.logger.Info("player muted", "subject", subject.ID, "issuer", issuer.ID, "duration", timeparse.Format(duration))
	l.logAction(model.ActionMute, issuer, subject, punishmentDetails(duration, p.Reason))
	return p, nil
}

func (l *Ledger) punish(kind model.Kind, subject, issuer model.Actor, duration time.Duration, reason string) (*model.Punishment, error) {
	now := l.now().UTC()
	p := &model.Punishment{
		Kind:        kind,
		SubjectID:   subject.ID,
		SubjectName: truncate(subject.Name, MaxNameLength),
		Reason:      truncate(reason, MaxReasonLength),
		IssuerID:    issuer.ID,
		IssuerName:  truncate(issuer.Name, MaxNameLength),
		CreatedAt:   now,
	}
	if duration > 0 {
		p.ExpiresAt = now.Add(duration)
	}
	if err := l.store.NonTx().CreatePunishment(p); err != nil {
		return nil, err
	}
	return p, nil
}

func punishmentDetails(duration time.Duration, reason string) string {
	return fmt.Sprintf("Duration: %s, Reason: %s", timeparse.Format(duration), reason)
}

// ActiveBan returns the newest active ban of subjectID, or (nil, nil).
func (l *Ledger) ActiveBan(subjectID uint64) (*model.Punishment, error) {
	p, err := l.store.NonTx().ActivePunishment(model.KindBan, subjectID, l.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("moderation: active ban: %w", err)
	}
	return p, nil
}

// ActiveMute returns the newest active mute of subjectID, or (nil, nil).
func (l *Ledger) ActiveMute(subjectID uint64) (*model.Punishment, error) {
	p, err := l.store.NonTx().ActivePunishment(model.KindMute, subjectID, l.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("moderation: active mute: %w", err)
	}
	return p, nil
}

// History returns every record of kind for subjectID, newest first.
func (l *Ledger) History(kind model.Kind, subjectID uint64) ([]model.Punishment, error) {
	list, err := l.store.NonTx().ListPunishments(kind, subjectID)
	if err != nil {
		return nil, fmt.Errorf("moderation: history: %w", err)
	}
	return list, nil
}

// Unban revokes the active ban of subjectID. It returns false when the
// subject has no active ban.
func (l *Ledger) Unban(subjectID uint64, issuer model.Actor) (bool, error) {
	p, ok, err := l.revoke(model.KindBan, subjectID, issuer)
	if err != nil {
		return false, fmt.Errorf("moderation: unban: %w", err)
	}
	if !ok {
		return false, nil
	}
	l.logger.Info("player unbanned", "subject", subjectID, "issuer", issuer.ID)
	l.logAction(model.ActionUnban, issuer, model.Actor{ID: subjectID, Name: p.SubjectName}, "")
	return true, nil
}

// Unmute lifts the session mute and revokes the active durable mute. It
// returns false when neither existed.
func (l *Ledger) Unmute(subjectID uint64, issuer model.Actor) (bool, error) {
	hadSession := l.DropSessionMute(subjectID)
	p, ok, err := l.revoke(model.KindMute, subjectID, issuer)
	if err != nil {
		return false, fmt.Errorf("moderation: unmute: %w", err)
	}
	if !ok && !hadSession {
		return false, nil
	}
	subject := model.Actor{ID: subjectID}
	if p != nil {
		subject.Name = p.SubjectName
	}
	l.logger.Info("player unmuted", "subject", subjectID, "issuer", issuer.ID)
	l.logAction(model.ActionUnmute, issuer, subject, "")
	return true, nil
}

func (l *Ledger) revoke(kind model.Kind, subjectID uint64, issuer model.Actor) (*model.Punishment, bool, error) {
	now := l.now().UTC()
	ds := l.store.NonTx()
	p, err := ds.ActivePunishment(kind, subjectID, now)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, nil
	}
	ok, err := ds.RevokePunishment(kind, p.ID, now, issuer.ID, truncate(issuer.Name, MaxNameLength))
	if err != nil {
		return nil, false, err
	}
	return p, ok, nil
}

// ---- Session mutes ----

func (l *Ledger) addSessionMute(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionMutes[id] = struct{}{}
}

// DropSessionMute removes id from the session set and reports whether it
// was present. It is called on disconnect.
func (l *Ledger) DropSessionMute(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sessionMutes[id]
	delete(l.sessionMutes, id)
	return ok
}

// SessionMuted reports whether id is in the session mute set.
func (l *Ledger) SessionMuted(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sessionMutes[id]
	return ok
}

// LoadMuteForPlayer copies an active durable mute into the session set. It
// is called when a player connects.
func (l *Ledger) LoadMuteForPlayer(id uint64) (*model.Punishment, error) {
	p, err := l.ActiveMute(id)
	if err != nil {
		return nil, err
	}
	if p != nil {
		l.addSessionMute(id)
	}
	return p, nil
}

// IsMuted reports whether id is session-muted or has an active mute.
func (l *Ledger) IsMuted(id uint64) (bool, error) {
	if l.SessionMuted(id) {
		return true, nil
	}
	p, err := l.ActiveMute(id)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// ---- Audit ----

// LogAction writes an audit entry when audit logging is enabled. Failures
// are logged and otherwise ignored.
func (l *Ledger) LogAction(action string, issuer, subject model.Actor, details string) {
	l.logAction(action, issuer, subject, details)
}

func (l *Ledger) logAction(action string, issuer, subject model.Actor, details string) {
	if !l.audit {
		return
	}
	entry := &model.AuditEntry{
		Action:      action,
		IssuerID:    issuer.ID,
		IssuerName:  truncate(issuer.Name, MaxNameLength),
		SubjectID:   subject.ID,
		SubjectName: truncate(subject.Name, MaxNameLength),
		Details:     details,
		CreatedAt:   l.now().UTC(),
	}
	if err := l.store.NonTx().CreateAuditEntry(entry); err != nil {
		l.logger.Error("failed to write audit entry", "action", action, "err", err)
	}
}

// ListAudit returns up to limit audit entries, newest first.
func (l *Ledger) ListAudit(limit int) ([]model.AuditEntry, error) {
	entries, err := l.store.NonTx().ListAudit(limit)
	if err != nil {
		return nil, fmt.Errorf("moderation: list audit: %w", err)
	}
	return entries, nil
}
