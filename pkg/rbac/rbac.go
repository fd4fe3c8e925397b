// Package rbac resolves admin flag sets and checks command permissions.
package rbac

import (
	"slices"
	"sync"

	"github.com/NicolasHaas/matchadmin/pkg/model"
)

// Permission is a class of admin command gated by one flag.
type Permission int

const (
	PermKick Permission = iota
	PermBan
	PermChat
	PermSlay
	PermChangeMap
	PermGeneric
	PermManageAdmins
)

// permissionMatrix maps each permission to the flag that grants it.
// FlagRoot grants every permission.
var permissionMatrix = map[Permission]model.Flag{
	PermKick:         model.FlagKick,
	PermBan:          model.FlagBan,
	PermChat:         model.FlagChat,
	PermSlay:         model.FlagSlay,
	PermChangeMap:    model.FlagChangeMap,
	PermGeneric:      model.FlagGeneric,
	PermManageAdmins: model.FlagRoot,
}

// DeniedMessage is returned to a requester lacking a permission.
const DeniedMessage = "You don't have permission to use this command."

// Resolve returns the effective flag set of an admin: its individual flags
// merged with the flags of its group, if one is assigned and exists.
func Resolve(admin *model.Admin, group *model.AdminGroup) []model.Flag {
	if admin == nil {
		return nil
	}
	if group == nil || admin.Group == "" || group.Name != admin.Group {
		return model.UnionFlags(admin.Flags)
	}
	return model.UnionFlags(group.Flags, admin.Flags)
}

// HasPermission checks if a flag set grants a permission.
func HasPermission(flags []model.Flag, perm Permission) bool {
	if slices.Contains(flags, model.FlagRoot) {
		return true
	}
	need, ok := permissionMatrix[perm]
	if !ok {
		return false
	}
	return slices.Contains(flags, need)
}

// RequirePermission returns DeniedMessage if the flags lack the permission,
// or empty string if allowed.
func RequirePermission(flags []model.Flag, perm Permission) string {
	if HasPermission(flags, perm) {
		return ""
	}
	return DeniedMessage
}

// FlagFor returns the flag that grants perm.
func FlagFor(perm Permission) model.Flag {
	return permissionMatrix[perm]
}

// Cache is the runtime permission cache consulted by the command router.
// The ledger pushes resolved flag sets into it.
type Cache struct {
	mu    sync.RWMutex
	flags map[uint64][]model.Flag
}

// NewCache creates an empty permission cache.
func NewCache() *Cache {
	return &Cache{flags: make(map[uint64][]model.Flag)}
}

// SetFlags replaces the flag set of a player.
func (c *Cache) SetFlags(steamID uint64, flags []model.Flag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[steamID] = slices.Clone(flags)
}

// RemoveFlags drops every flag of a player.
func (c *Cache) RemoveFlags(steamID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flags, steamID)
}

// Flags returns a copy of the player's flag set.
func (c *Cache) Flags(steamID uint64) []model.Flag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.flags[steamID])
}

// Has checks a player's permission. The console (id 0) is always allowed.
func (c *Cache) Has(steamID uint64, perm Permission) bool {
	if steamID == 0 {
		return true
	}
	return HasPermission(c.Flags(steamID), perm)
}

// Len returns the number of players with flags.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.flags)
}
