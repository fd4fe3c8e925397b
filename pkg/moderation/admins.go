package moderation

import (
	"context"
	"fmt"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/rbac"
)

// AddAdmin creates an admin. It returns false when the steam id is already
// an admin or when group names a group that does not exist.
func (l *Ledger) AddAdmin(steamID uint64, name string, flags []model.Flag, group string, issuer model.Actor) (bool, error) {
	if steamID == 0 {
		return false, fmt.Errorf("moderation: add admin: %w", model.ErrSubjectIDZero)
	}
	for _, f := range flags {
		if !f.Valid() {
			return false, fmt.Errorf("moderation: add admin: %w: %q", model.ErrInvalidFlag, string(f))
		}
	}
	ds := l.store.NonTx()

	var g *model.AdminGroup
	if group != "" {
		var err error
		g, err = ds.GetGroup(group)
		if err != nil {
			return false, fmt.Errorf("moderation: add admin: %w", err)
		}
		if g == nil {
			return false, nil
		}
	}

	admin := &model.Admin{
		SteamID:       steamID,
		Name:          truncate(name, MaxNameLength),
		Flags:         model.UnionFlags(flags),
		Group:         group,
		CreatedAt:     l.now().UTC(),
		CreatedByID:   issuer.ID,
		CreatedByName: truncate(issuer.Name, MaxNameLength),
	}
	ok, err := ds.CreateAdmin(admin)
	if err != nil {
		return false, fmt.Errorf("moderation: add admin: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.pushFlags(admin, g)
	l.logger.Info("admin added", "steam_id", steamID, "flags", model.JoinFlags(admin.Flags), "group", group)
	l.logAction(model.ActionAddAdmin, issuer, model.Actor{ID: steamID, Name: admin.Name}, "Flags: "+model.JoinFlags(admin.Flags))
	return true, nil
}

// RemoveAdmin deletes an admin and drops its runtime flags.
func (l *Ledger) RemoveAdmin(steamID uint64, issuer model.Actor) (bool, error) {
	ds := l.store.NonTx()
	admin, err := ds.GetAdmin(steamID)
	if err != nil {
		return false, fmt.Errorf("moderation: remove admin: %w", err)
	}
	if admin == nil {
		return false, nil
	}
	ok, err := ds.DeleteAdmin(steamID)
	if err != nil {
		return false, fmt.Errorf("moderation: remove admin: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.dropFlags(steamID)
	l.logger.Info("admin removed", "steam_id", steamID)
	l.logAction(model.ActionRemoveAdmin, issuer, model.Actor{ID: steamID, Name: admin.Name}, "")
	return true, nil
}

// SetAdminGroup assigns group to an admin. An empty group clears the
// assignment. It returns false when the admin or the group does not exist.
func (l *Ledger) SetAdminGroup(steamID uint64, group string, issuer model.Actor) (bool, error) {
	ds := l.store.NonTx()
	admin, err := ds.GetAdmin(steamID)
	if err != nil {
		return false, fmt.Errorf("moderation: set admin group: %w", err)
	}
	if admin == nil {
		return false, nil
	}
	var g *model.AdminGroup
	if group != "" {
		g, err = ds.GetGroup(group)
		if err != nil {
			return false, fmt.Errorf("moderation: set admin group: %w", err)
		}
		if g == nil {
			return false, nil
		}
	}
	ok, err := ds.SetAdminGroup(steamID, group)
	if err != nil {
		return false, fmt.Errorf("moderation: set admin group: %w", err)
	}
	if !ok {
		return false, nil
	}

	admin.Group = group
	l.pushFlags(admin, g)
	l.logAction(model.ActionSetAdminGroup, issuer, model.Actor{ID: steamID, Name: admin.Name}, "Group: "+group)
	return true, nil
}

// GetAdmin returns the admin with steamID, or (nil, nil).
func (l *Ledger) GetAdmin(steamID uint64) (*model.Admin, error) {
	admin, err := l.store.NonTx().GetAdmin(steamID)
	if err != nil {
		return nil, fmt.Errorf("moderation: get admin: %w", err)
	}
	return admin, nil
}

// ListAdmins returns every admin in creation order.
func (l *Ledger) ListAdmins() ([]model.Admin, error) {
	admins, err := l.store.NonTx().ListAdmins()
	if err != nil {
		return nil, fmt.Errorf("moderation: list admins: %w", err)
	}
	return admins, nil
}

// EffectiveFlags returns the resolved flag set of an admin, or nil.
func (l *Ledger) EffectiveFlags(steamID uint64) ([]model.Flag, error) {
	ds := l.store.NonTx()
	admin, err := ds.GetAdmin(steamID)
	if err != nil {
		return nil, fmt.Errorf("moderation: effective flags: %w", err)
	}
	if admin == nil {
		return nil, nil
	}
	var g *model.AdminGroup
	if admin.Group != "" {
		if g, err = ds.GetGroup(admin.Group); err != nil {
			return nil, fmt.Errorf("moderation: effective flags: %w", err)
		}
	}
	return rbac.Resolve(admin, g), nil
}

// ---- Groups ----

// AddGroup creates a group. It returns false when the name is taken.
func (l *Ledger) AddGroup(name string, flags []model.Flag, immunity int, issuer model.Actor) (bool, error) {
	if err := model.ValidateGroupName(name); err != nil {
		return false, fmt.Errorf("moderation: add group: %w", err)
	}
	for _, f := range flags {
		if !f.Valid() {
			return false, fmt.Errorf("moderation: add group: %w: %q", model.ErrInvalidFlag, string(f))
		}
	}
	group := &model.AdminGroup{
		Name:          name,
		Flags:         model.UnionFlags(flags),
		Immunity:      immunity,
		CreatedAt:     l.now().UTC(),
		CreatedByID:   issuer.ID,
		CreatedByName: truncate(issuer.Name, MaxNameLength),
	}
	ok, err := l.store.NonTx().CreateGroup(group)
	if err != nil {
		return false, fmt.Errorf("moderation: add group: %w", err)
	}
	if !ok {
		return false, nil
	}
	l.logger.Info("admin group added", "group", name, "flags", model.JoinFlags(group.Flags))
	l.logAction(model.ActionAddGroup, issuer, model.Actor{}, fmt.Sprintf("Group: %s, Flags: %s", name, model.JoinFlags(group.Flags)))
	return true, nil
}

// RemoveGroup deletes a group and clears it from every admin in the same
// transaction. Affected admins fall back to their individual flags.
func (l *Ledger) RemoveGroup(name string, issuer model.Actor) (bool, error) {
	tx, err := l.store.Tx(context.Background())
	if err != nil {
		return false, fmt.Errorf("moderation: remove group: %w", err)
	}
	admins, err := tx.ListAdmins()
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("moderation: remove group: %w", err)
	}
	ok, err := tx.DeleteGroup(name)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("moderation: remove group: %w", err)
	}
	if !ok {
		_ = tx.Rollback()
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("moderation: remove group: commit: %w", err)
	}

	for i := range admins {
		if admins[i].Group != name {
			continue
		}
		admins[i].Group = ""
		l.pushFlags(&admins[i], nil)
	}
	l.logger.Info("admin group removed", "group", name)
	l.logAction(model.ActionRemoveGroup, issuer, model.Actor{}, "Group: "+name)
	return true, nil
}

// GetGroup returns the named group, or (nil, nil).
func (l *Ledger) GetGroup(name string) (*model.AdminGroup, error) {
	g, err := l.store.NonTx().GetGroup(name)
	if err != nil {
		return nil, fmt.Errorf("moderation: get group: %w", err)
	}
	return g, nil
}

// ListGroups returns every group in creation order.
func (l *Ledger) ListGroups() ([]model.AdminGroup, error) {
	groups, err := l.store.NonTx().ListGroups()
	if err != nil {
		return nil, fmt.Errorf("moderation: list groups: %w", err)
	}
	return groups, nil
}

// ---- Runtime permissions ----

// LoadAll resolves the flags of every admin and pushes them to the
// permission sink. Admins removed since the previous load lose their flags.
// It returns the number of admins loaded.
func (l *Ledger) LoadAll() (int, error) {
	ds := l.store.NonTx()
	groups, err := ds.ListGroups()
	if err != nil {
		return 0, fmt.Errorf("moderation: load all: %w", err)
	}
	admins, err := ds.ListAdmins()
	if err != nil {
		return 0, fmt.Errorf("moderation: load all: %w", err)
	}
	byName := make(map[string]*model.AdminGroup, len(groups))
	for i := range groups {
		byName[groups[i].Name] = &groups[i]
	}

	current := make(map[uint64]struct{}, len(admins))
	for i := range admins {
		current[admins[i].SteamID] = struct{}{}
		l.pushFlags(&admins[i], byName[admins[i].Group])
	}

	l.mu.Lock()
	var stale []uint64
	for id := range l.loaded {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	l.mu.Unlock()
	for _, id := range stale {
		l.dropFlags(id)
	}

	l.logger.Info("admins loaded", "admins", len(admins), "groups", len(groups))
	return len(admins), nil
}

func (l *Ledger) pushFlags(admin *model.Admin, group *model.AdminGroup) {
	l.mu.Lock()
	l.loaded[admin.SteamID] = struct{}{}
	l.mu.Unlock()
	if l.perms != nil {
		l.perms.SetFlags(admin.SteamID, rbac.Resolve(admin, group))
	}
}

func (l *Ledger) dropFlags(steamID uint64) {
	l.mu.Lock()
	delete(l.loaded, steamID)
	l.mu.Unlock()
	if l.perms != nil {
		l.perms.RemoveFlags(steamID)
	}
}
