package server

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/moderation"
)

// GroupYAML represents an admin group in YAML.
type GroupYAML struct {
	Name     string `yaml:"name"`
	Flags    string `yaml:"flags"`
	Immunity int    `yaml:"immunity,omitempty"`
}

// AdminYAML represents an admin in YAML.
type AdminYAML struct {
	SteamID uint64 `yaml:"steam_id"`
	Name    string `yaml:"name"`
	Flags   string `yaml:"flags,omitempty"`
	Group   string `yaml:"group,omitempty"`
}

// AdminsConfig is the top-level YAML for admin import and export.
type AdminsConfig struct {
	Groups []GroupYAML `yaml:"groups"`
	Admins []AdminYAML `yaml:"admins"`
}

// LoadAdminsFromYAML reads an admins YAML file and imports it into the ledger.
func LoadAdminsFromYAML(path string, ledger *moderation.Ledger) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read admins config: %w", err)
	}
	return ImportAdminsFromYAML(data, ledger)
}

// ImportAdminsFromYAML creates the groups, then the admins, described by data.
// Existing groups and admins are left untouched, so importing twice is a no-op.
func ImportAdminsFromYAML(data []byte, ledger *moderation.Ledger) error {
	var cfg AdminsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse admins config: %w", err)
	}

	groups, admins := 0, 0
	for _, g := range cfg.Groups {
		flags, err := model.ParseFlags(g.Flags)
		if err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		ok, err := ledger.AddGroup(g.Name, flags, g.Immunity, model.Console)
		if err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		if ok {
			groups++
		} else {
			slog.Debug("group already exists, skipped", "name", g.Name)
		}
	}

	for _, a := range cfg.Admins {
		flags, err := model.ParseFlags(a.Flags)
		if err != nil {
			return fmt.Errorf("admin %d: %w", a.SteamID, err)
		}
		ok, err := ledger.AddAdmin(a.SteamID, a.Name, flags, a.Group, model.Console)
		if err != nil {
			return fmt.Errorf("admin %d: %w", a.SteamID, err)
		}
		if ok {
			admins++
		} else {
			slog.Debug("admin already exists or group missing, skipped", "steam_id", a.SteamID, "group", a.Group)
		}
	}

	slog.Info("imported admins from YAML", "groups", groups, "admins", admins)
	return nil
}

// ExportAdminsYAML exports every group and admin as YAML.
func ExportAdminsYAML(ledger *moderation.Ledger) ([]byte, error) {
	groups, err := ledger.ListGroups()
	if err != nil {
		return nil, err
	}
	admins, err := ledger.ListAdmins()
	if err != nil {
		return nil, err
	}

	export := AdminsConfig{}
	for _, g := range groups {
		export.Groups = append(export.Groups, GroupYAML{
			Name:     g.Name,
			Flags:    model.JoinFlags(g.Flags),
			Immunity: g.Immunity,
		})
	}
	for _, a := range admins {
		export.Admins = append(export.Admins, AdminYAML{
			SteamID: a.SteamID,
			Name:    a.Name,
			Flags:   model.JoinFlags(a.Flags),
			Group:   a.Group,
		})
	}
	return yaml.Marshal(&export)
}
