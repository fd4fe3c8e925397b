package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/rivo/uniseg"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/matchadmin/pkg/match"
	"github.com/NicolasHaas/matchadmin/pkg/vote"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MATCHADMIN_"

// Config holds server configuration.
type Config struct {
	DBPath  string `yaml:"db_path" env:"DB_PATH" validate:"required"`
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`

	BridgeAddr       string `yaml:"bridge_addr" env:"BRIDGE_ADDR" validate:"required"`
	BridgeSecretHash string `yaml:"bridge_secret_hash" env:"BRIDGE_SECRET_HASH"` // empty = unauthenticated bridge
	BridgeTLS        bool   `yaml:"bridge_tls" env:"BRIDGE_TLS"`
	CertFile         string `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile          string `yaml:"key_file" env:"KEY_FILE"`

	HTTPAddr           string   `yaml:"http_addr" env:"HTTP_ADDR"` // empty = disabled
	HTTPAllowedOrigins []string `yaml:"http_allowed_origins" env:"HTTP_ALLOWED_ORIGINS" envSeparator:","`

	AdminsFile string `yaml:"admins_file" env:"ADMINS_FILE"` // imported on startup when set
	LogLevel   string `yaml:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat  string `yaml:"log_format" env:"LOG_FORMAT" validate:"omitempty,oneof=text json"`

	Plugin PluginConfig `yaml:"plugin" envPrefix:"PLUGIN_"`
	Vote   VoteConfig   `yaml:"vote" envPrefix:"VOTE_"`
	Pause  PauseConfig  `yaml:"pause" envPrefix:"PAUSE_"`
}

// PluginConfig holds chat, moderation and match lifecycle settings.
type PluginConfig struct {
	ChatPrefix    string `yaml:"chat_prefix" env:"CHAT_PREFIX" validate:"maxgraphemes=32"`
	EnableLogging bool   `yaml:"enable_logging" env:"ENABLE_LOGGING"`

	DefaultBanReason  string `yaml:"default_ban_reason" env:"DEFAULT_BAN_REASON"`
	DefaultKickReason string `yaml:"default_kick_reason" env:"DEFAULT_KICK_REASON"`
	DefaultMuteReason string `yaml:"default_mute_reason" env:"DEFAULT_MUTE_REASON"`

	EnableWelcomeMessage bool          `yaml:"enable_welcome_message" env:"ENABLE_WELCOME_MESSAGE"`
	WelcomeMessage       string        `yaml:"welcome_message" env:"WELCOME_MESSAGE"`
	WelcomeMessageDelay  time.Duration `yaml:"welcome_message_delay" env:"WELCOME_MESSAGE_DELAY" validate:"gte=0"`
	AnnouncePlayerJoin   bool          `yaml:"announce_player_join" env:"ANNOUNCE_PLAYER_JOIN"`
	PlayerJoinMessage    string        `yaml:"player_join_message" env:"PLAYER_JOIN_MESSAGE"`

	EnableWarmupMode  bool   `yaml:"enable_warmup_mode" env:"ENABLE_WARMUP_MODE"`
	WarmupMoney       int    `yaml:"warmup_money" env:"WARMUP_MONEY" validate:"gte=0"`
	WarmupMessage     string `yaml:"warmup_message" env:"WARMUP_MESSAGE"`
	MatchStartMessage string `yaml:"match_start_message" env:"MATCH_START_MESSAGE"`
	MinPlayersToStart int    `yaml:"min_players_to_start" env:"MIN_PLAYERS_TO_START" validate:"gte=0"`

	EnableKnifeRound        bool          `yaml:"enable_knife_round" env:"ENABLE_KNIFE_ROUND"`
	KnifeRoundMessage       string        `yaml:"knife_round_message" env:"KNIFE_ROUND_MESSAGE"`
	KnifeRoundWinnerMessage string        `yaml:"knife_round_winner_message" env:"KNIFE_ROUND_WINNER_MESSAGE"`
	KnifeReassertDelay      time.Duration `yaml:"knife_reassert_delay" env:"KNIFE_REASSERT_DELAY" validate:"gt=0"`
}

// VoteConfig holds vote tunables.
type VoteConfig struct {
	ThresholdPercent int           `yaml:"threshold_percent" env:"THRESHOLD_PERCENT" validate:"gte=1,lte=100"`
	Duration         time.Duration `yaml:"duration" env:"DURATION" validate:"gt=0"`
	Cooldown         time.Duration `yaml:"cooldown" env:"COOLDOWN" validate:"gte=0"`
	MinimumVoters    int           `yaml:"minimum_voters" env:"MINIMUM_VOTERS" validate:"gte=0"`
	InitiatorAutoYes bool          `yaml:"initiator_auto_yes" env:"INITIATOR_AUTO_YES"`
	Maps             []string      `yaml:"maps" env:"MAPS" envSeparator:","`
	UseNative        bool          `yaml:"use_native" env:"USE_NATIVE"`

	SideChoiceVote     bool          `yaml:"side_choice_vote" env:"SIDE_CHOICE_VOTE"`
	SideChoiceDuration time.Duration `yaml:"side_choice_duration" env:"SIDE_CHOICE_DURATION" validate:"gt=0"`
}

// PauseConfig holds pause tunables.
type PauseConfig struct {
	TeamPauseLimit          int           `yaml:"team_pause_limit" env:"TEAM_PAUSE_LIMIT" validate:"gte=0"`
	VotePauseDuration       time.Duration `yaml:"vote_pause_duration" env:"VOTE_PAUSE_DURATION" validate:"gt=0"`
	DisconnectPauseDuration time.Duration `yaml:"disconnect_pause_duration" env:"DISCONNECT_PAUSE_DURATION" validate:"gt=0"`
	AutoDisconnectPause     bool          `yaml:"auto_disconnect_pause" env:"AUTO_DISCONNECT_PAUSE"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:     "data/matchadmin.db",
		DataDir:    ".",
		BridgeAddr: ":27110",
		BridgeTLS:  true,
		HTTPAddr:   ":27111",
		LogLevel:   "info",
		LogFormat:  "text",
		Plugin: PluginConfig{
			ChatPrefix:              "[CS2Admin]",
			EnableLogging:           true,
			DefaultBanReason:        "Banned by admin",
			DefaultKickReason:       "Kicked by admin",
			DefaultMuteReason:       "Muted by admin",
			EnableWelcomeMessage:    true,
			WelcomeMessage:          "Welcome to the server, {player}!",
			WelcomeMessageDelay:     3 * time.Second,
			AnnouncePlayerJoin:      true,
			PlayerJoinMessage:       "{player} joined the server.",
			EnableWarmupMode:        true,
			WarmupMoney:             60000,
			WarmupMessage:           "Server is in warmup. Waiting for admin to start the match.",
			MatchStartMessage:       "Match starting! Good luck, have fun!",
			MinPlayersToStart:       2,
			EnableKnifeRound:        true,
			KnifeRoundMessage:       "Knife round! Winner chooses side.",
			KnifeRoundWinnerMessage: "{team} won the knife round! Type .stay or .switch to choose side.",
			KnifeReassertDelay:      3 * time.Second,
		},
		Vote: VoteConfig{
			ThresholdPercent:   60,
			Duration:           30 * time.Second,
			Cooldown:           60 * time.Second,
			MinimumVoters:      3,
			InitiatorAutoYes:   true,
			Maps:               []string{"de_mirage", "de_ancient", "de_dust2", "de_inferno", "de_nuke", "de_anubis", "de_overpass"},
			SideChoiceVote:     true,
			SideChoiceDuration: 15 * time.Second,
		},
		Pause: PauseConfig{
			TeamPauseLimit:          3,
			VotePauseDuration:       60 * time.Second,
			DisconnectPauseDuration: 120 * time.Second,
			AutoDisconnectPause:     true,
		},
	}
}

// LoadConfig layers a YAML file (optional) and MATCHADMIN_ environment
// variables over the defaults. Flags are applied by the caller, which then
// calls Validate.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
		if err != nil {
			return cfg, fmt.Errorf("server: read config: %w", err)
		}
		if err := decodeConfigYAML(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("server: parse env: %w", err)
	}
	return cfg, nil
}

func decodeConfigYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("server: parse config: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("maxgraphemes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return uniseg.GraphemeClusterCount(fl.Field().String()) <= limit
	})
	return v
}

// Validate checks ranges and formats of every field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("server: invalid config: %w", err)
	}
	return nil
}

// MatchTunables derives the match machine tunables.
func (c Config) MatchTunables() match.Config {
	return match.Config{
		WarmupMoney:        c.Plugin.WarmupMoney,
		TeamPauseLimit:     c.Pause.TeamPauseLimit,
		KnifeReassertDelay: c.Plugin.KnifeReassertDelay,
		WarmupOnMapStart:   c.Plugin.EnableWarmupMode,
		WarmupDelay:        2 * time.Second,
	}
}

// VoteTunables derives the vote coordinator tunables.
func (c Config) VoteTunables() vote.Config {
	return vote.Config{
		ThresholdPercent:   c.Vote.ThresholdPercent,
		Duration:           c.Vote.Duration,
		Cooldown:           c.Vote.Cooldown,
		MinimumVoters:      c.Vote.MinimumVoters,
		InitiatorAutoYes:   c.Vote.InitiatorAutoYes,
		SideChoiceDuration: c.Vote.SideChoiceDuration,
		UseNative:          c.Vote.UseNative,
	}
}
