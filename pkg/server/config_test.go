package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/moderation"
	"github.com/NicolasHaas/matchadmin/pkg/rbac"
	"github.com/NicolasHaas/matchadmin/pkg/store"
)

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"threshold zero":      func(c *Config) { c.Vote.ThresholdPercent = 0 },
		"threshold above 100": func(c *Config) { c.Vote.ThresholdPercent = 101 },
		"no vote duration":    func(c *Config) { c.Vote.Duration = 0 },
		"negative money":      func(c *Config) { c.Plugin.WarmupMoney = -1 },
		"unknown log level":   func(c *Config) { c.LogLevel = "trace" },
		"long chat prefix":    func(c *Config) { c.Plugin.ChatPrefix = strings.Repeat("x", 33) },
		"no db path":          func(c *Config) { c.DBPath = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestChatPrefixCountsGraphemes(t *testing.T) {
	cfg := DefaultConfig()
	// 32 flag emoji are 64 runes but 32 graphemes.
	cfg.Plugin.ChatPrefix = strings.Repeat("🇩🇪", 32)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matchadmin.yaml")
	yaml := `
bridge_addr: ":30000"
vote:
  threshold_percent: 75
  maps: [de_nuke, de_train]
pause:
  team_pause_limit: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("MATCHADMIN_PAUSE_TEAM_PAUSE_LIMIT", "5")
	t.Setenv("MATCHADMIN_VOTE_DURATION", "45s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":30000", cfg.BridgeAddr)
	assert.Equal(t, 75, cfg.Vote.ThresholdPercent)
	assert.Equal(t, []string{"de_nuke", "de_train"}, cfg.Vote.Maps)
	assert.Equal(t, 5, cfg.Pause.TeamPauseLimit, "env overrides the file")
	assert.Equal(t, 45*time.Second, cfg.Vote.Duration)
	assert.Equal(t, DefaultConfig().Plugin.WarmupMessage, cfg.Plugin.WarmupMessage, "defaults survive")
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("control_addr: \":1\"\n"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestAdminsYAMLRoundTrip(t *testing.T) {
	const doc = `
groups:
  - name: "#mods"
    flags: "@css/kick,@css/chat"
    immunity: 20
admins:
  - steam_id: 76561198000000001
    name: owner
    flags: "@css/root"
  - steam_id: 76561198000000002
    name: helper
    group: "#mods"
`
	perms := rbac.NewCache()
	ledger := moderation.New(store.NewMemory(), moderation.Options{Permissions: perms})

	require.NoError(t, ImportAdminsFromYAML([]byte(doc), ledger))
	require.NoError(t, ImportAdminsFromYAML([]byte(doc), ledger), "import is idempotent")

	admins, err := ledger.ListAdmins()
	require.NoError(t, err)
	assert.Len(t, admins, 2)
	assert.True(t, perms.Has(76561198000000002, rbac.PermKick))
	assert.False(t, perms.Has(76561198000000002, rbac.PermBan))

	out, err := ExportAdminsYAML(ledger)
	require.NoError(t, err)

	other := moderation.New(store.NewMemory(), moderation.Options{Permissions: rbac.NewCache()})
	require.NoError(t, ImportAdminsFromYAML(out, other))
	group, err := other.GetGroup("#mods")
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, 20, group.Immunity)
	assert.ElementsMatch(t, []model.Flag{model.FlagKick, model.FlagChat}, group.Flags)
}

func TestAdminsYAMLInvalidFlag(t *testing.T) {
	ledger := moderation.New(store.NewMemory(), moderation.Options{})
	err := ImportAdminsFromYAML([]byte("admins:\n  - steam_id: 7\n    name: x\n    flags: \"@css/fly\"\n"), ledger)
	assert.ErrorIs(t, err, model.ErrInvalidFlag)
}
