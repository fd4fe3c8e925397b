// Package store provides an in-memory implementation of the datastore
// interfaces. It mirrors the SQLite behaviour for validation, ordering and
// the group cascade.
package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/datastore"
	"github.com/NicolasHaas/matchadmin/pkg/model"
)

var (
	_ datastore.DataProviderFactory = (*MemoryStore)(nil)
	_ datastore.DataStore           = (*MemoryStore)(nil)
)

// MemoryStore holds every relation in maps guarded by one mutex.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	state *memoryState
}

type memoryState struct {
	nextPunishmentID int64
	nextAdminSeq     int64
	nextGroupSeq     int64
	nextAuditID      int64

	punishments map[model.Kind][]model.Punishment
	admins      map[uint64]*memoryAdmin
	groups      map[string]*memoryGroup
	audit       []model.AuditEntry
}

type memoryAdmin struct {
	seq   int64
	admin model.Admin
}

type memoryGroup struct {
	seq   int64
	group model.AdminGroup
}

func newMemoryState() *memoryState {
	return &memoryState{
		nextPunishmentID: 1,
		nextAdminSeq:     1,
		nextGroupSeq:     1,
		nextAuditID:      1,
		punishments:      make(map[model.Kind][]model.Punishment),
		admins:           make(map[uint64]*memoryAdmin),
		groups:           make(map[string]*memoryGroup),
	}
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		nextPunishmentID: st.nextPunishmentID,
		nextAdminSeq:     st.nextAdminSeq,
		nextGroupSeq:     st.nextGroupSeq,
		nextAuditID:      st.nextAuditID,
		punishments:      make(map[model.Kind][]model.Punishment, len(st.punishments)),
		admins:           make(map[uint64]*memoryAdmin, len(st.admins)),
		groups:           make(map[string]*memoryGroup, len(st.groups)),
		audit:            slices.Clone(st.audit),
	}
	for k, list := range st.punishments {
		c.punishments[k] = slices.Clone(list)
	}
	for id, a := range st.admins {
		copyAdmin := *a
		copyAdmin.admin.Flags = slices.Clone(a.admin.Flags)
		c.admins[id] = &copyAdmin
	}
	for name, g := range st.groups {
		copyGroup := *g
		copyGroup.group.Flags = slices.Clone(g.group.Flags)
		c.groups[name] = &copyGroup
	}
	return c
}

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:   now,
		state: newMemoryState(),
	}
}

// NonTx returns the store itself.
func (s *MemoryStore) NonTx() datastore.DataStore {
	return s
}

// Tx starts a transaction on a copy of the current state. Commit replaces
// the store's state with the copy.
func (s *MemoryStore) Tx(_ context.Context) (datastore.DataStoreTx, error) {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return &memoryTx{
		MemoryStore: &MemoryStore{now: s.now, state: snapshot},
		parent:      s,
	}, nil
}

type memoryTx struct {
	*MemoryStore
	parent *MemoryStore
	done   bool
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return fmt.Errorf("store: commit: transaction already finished")
	}
	tx.done = true
	tx.mu.RLock()
	state := tx.state
	tx.mu.RUnlock()
	tx.parent.mu.Lock()
	tx.parent.state = state
	tx.parent.mu.Unlock()
	return nil
}

func (tx *memoryTx) Rollback() error {
	tx.done = true
	return nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// ZeroTime returns the zero time value (used for permanent records).
func (s *MemoryStore) ZeroTime() time.Time {
	return time.Time{}
}

// ---- Punishments ----

// CreatePunishment appends a ban or mute record and assigns its ID.
func (s *MemoryStore) CreatePunishment(p *model.Punishment) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("store: create %s: %w", p.Kind, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.ID = s.state.nextPunishmentID
	s.state.nextPunishmentID++
	s.state.punishments[p.Kind] = append(s.state.punishments[p.Kind], *p)
	return nil
}

// ActivePunishment returns the newest active record for a subject.
func (s *MemoryStore) ActivePunishment(kind model.Kind, subjectID uint64, now time.Time) (*model.Punishment, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("store: active punishment: %w", model.ErrInvalidKind)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.Punishment
	for i := range s.state.punishments[kind] {
		p := &s.state.punishments[kind][i]
		if p.SubjectID != subjectID || !p.IsActive(now) {
			continue
		}
		if best == nil || newer(p, best) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	copyP := *best
	return &copyP, nil
}

func newer(a, b *model.Punishment) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// ListPunishments returns every record of a subject, newest first.
func (s *MemoryStore) ListPunishments(kind model.Kind, subjectID uint64) ([]model.Punishment, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("store: list punishments: %w", model.ErrInvalidKind)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Punishment
	for _, p := range s.state.punishments[kind] {
		if p.SubjectID == subjectID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(&out[i], &out[j]) })
	return out, nil
}

// RevokePunishment stamps the revoke fields of an unrevoked record.
func (s *MemoryStore) RevokePunishment(kind model.Kind, id int64, revokedAt time.Time, byID uint64, byName string) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("store: revoke punishment: %w", model.ErrInvalidKind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.state.punishments[kind]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		if list[i].IsRevoked() {
			return false, nil
		}
		list[i].RevokedAt = revokedAt.UTC()
		list[i].RevokedByID = byID
		list[i].RevokedByName = byName
		return true, nil
	}
	return false, nil
}

// ---- Admins ----

// CreateAdmin inserts an admin. Returns false if the steam id already exists.
func (s *MemoryStore) CreateAdmin(admin *model.Admin) (bool, error) {
	if admin.SteamID == 0 {
		return false, fmt.Errorf("store: create admin: %w", model.ErrSubjectIDZero)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.state.admins[admin.SteamID]; exists {
		return false, nil
	}
	if admin.Group != "" {
		if _, ok := s.state.groups[admin.Group]; !ok {
			return false, fmt.Errorf("store: create admin: constraint failed: FOREIGN KEY constraint failed")
		}
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = s.now().UTC()
	}
	copyAdmin := *admin
	copyAdmin.Flags = slices.Clone(admin.Flags)
	s.state.admins[admin.SteamID] = &memoryAdmin{seq: s.state.nextAdminSeq, admin: copyAdmin}
	s.state.nextAdminSeq++
	return true, nil
}

// GetAdmin retrieves an admin by steam id.
func (s *MemoryStore) GetAdmin(steamID uint64) (*model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.admins[steamID]
	if !ok {
		return nil, nil
	}
	copyAdmin := a.admin
	copyAdmin.Flags = slices.Clone(a.admin.Flags)
	return &copyAdmin, nil
}

// ListAdmins returns all admins ordered by creation.
func (s *MemoryStore) ListAdmins() ([]model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*memoryAdmin, 0, len(s.state.admins))
	for _, a := range s.state.admins {
		entries = append(entries, a)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	var admins []model.Admin
	for _, a := range entries {
		copyAdmin := a.admin
		copyAdmin.Flags = slices.Clone(a.admin.Flags)
		admins = append(admins, copyAdmin)
	}
	return admins, nil
}

// DeleteAdmin removes an admin. Returns false if it did not exist.
func (s *MemoryStore) DeleteAdmin(steamID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.admins[steamID]; !ok {
		return false, nil
	}
	delete(s.state.admins, steamID)
	return true, nil
}

// SetAdminGroup assigns a group (empty clears it).
func (s *MemoryStore) SetAdminGroup(steamID uint64, group string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.admins[steamID]
	if !ok {
		return false, nil
	}
	if group != "" {
		if _, ok := s.state.groups[group]; !ok {
			return false, fmt.Errorf("store: set admin group: constraint failed: FOREIGN KEY constraint failed")
		}
	}
	a.admin.Group = group
	return true, nil
}

// ---- Groups ----

// CreateGroup inserts a group. Returns false if the name already exists.
func (s *MemoryStore) CreateGroup(group *model.AdminGroup) (bool, error) {
	if err := model.ValidateGroupName(group.Name); err != nil {
		return false, fmt.Errorf("store: create group: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.state.groups[group.Name]; exists {
		return false, nil
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = s.now().UTC()
	}
	copyGroup := *group
	copyGroup.Flags = slices.Clone(group.Flags)
	s.state.groups[group.Name] = &memoryGroup{seq: s.state.nextGroupSeq, group: copyGroup}
	s.state.nextGroupSeq++
	return true, nil
}

// GetGroup retrieves a group by name.
func (s *MemoryStore) GetGroup(name string) (*model.AdminGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.groups[name]
	if !ok {
		return nil, nil
	}
	copyGroup := g.group
	copyGroup.Flags = slices.Clone(g.group.Flags)
	return &copyGroup, nil
}

// ListGroups returns all groups ordered by creation.
func (s *MemoryStore) ListGroups() ([]model.AdminGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*memoryGroup, 0, len(s.state.groups))
	for _, g := range s.state.groups {
		entries = append(entries, g)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	var groups []model.AdminGroup
	for _, g := range entries {
		copyGroup := g.group
		copyGroup.Flags = slices.Clone(g.group.Flags)
		groups = append(groups, copyGroup)
	}
	return groups, nil
}

// DeleteGroup clears the group on its admins and removes it, under one lock.
func (s *MemoryStore) DeleteGroup(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.groups[name]; !ok {
		return false, nil
	}
	for _, a := range s.state.admins {
		if a.admin.Group == name {
			a.admin.Group = ""
		}
	}
	delete(s.state.groups, name)
	return true, nil
}

// ---- Audit ----

// CreateAuditEntry appends an audit log row.
func (s *MemoryStore) CreateAuditEntry(entry *model.AuditEntry) error {
	if entry.Action == "" {
		return fmt.Errorf("store: create audit entry: empty action")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	entry.ID = s.state.nextAuditID
	s.state.nextAuditID++
	s.state.audit = append(s.state.audit, *entry)
	return nil
}

// ListAudit returns up to limit entries, newest first.
func (s *MemoryStore) ListAudit(limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AuditEntry
	for i := len(s.state.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.state.audit[i])
	}
	return out, nil
}
