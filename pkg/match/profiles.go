package match

import (
	"strconv"
	"strings"
)

// Profile is a named set of economy and round settings.
type Profile int

const (
	ProfileWarmup Profile = iota
	ProfileCompetitive
	ProfileKnife
)

func (p Profile) String() string {
	switch p {
	case ProfileWarmup:
		return "warmup"
	case ProfileCompetitive:
		return "competitive"
	case ProfileKnife:
		return "knife"
	default:
		return "unknown"
	}
}

// Commands returns the console commands that apply the profile.
func (p Profile) Commands(warmupMoney int) []string {
	money := strconv.Itoa(warmupMoney)
	switch p {
	case ProfileWarmup:
		return []string{
			"mp_warmup_start",
			"mp_warmup_pausetimer 1",
			"mp_warmuptime 9999",
			"mp_startmoney " + money,
			"mp_maxmoney " + money,
			"mp_afterroundmoney " + money,
			"mp_buy_anywhere 0",
			"mp_buytime 9999",
			"mp_free_armor 2",
			"mp_weapons_allow_zeus 1",
			"sv_infinite_ammo 0",
			"mp_death_drop_gun 0",
			"mp_respawn_on_death_ct 1",
			"mp_respawn_on_death_t 1",
		}
	case ProfileCompetitive:
		return []string{
			"mp_warmup_pausetimer 0",
			"mp_buy_anywhere 0",
			"mp_buytime 20",
			"mp_free_armor 0",
			"mp_startmoney 800",
			"mp_maxmoney 16000",
			"mp_afterroundmoney 0",
			"mp_death_drop_gun 1",
			"mp_respawn_on_death_ct 0",
			"mp_respawn_on_death_t 0",
			"mp_give_player_c4 1",
			`mp_ct_default_secondary "weapon_hkp2000"`,
			`mp_t_default_secondary "weapon_glock"`,
		}
	case ProfileKnife:
		return []string{
			"mp_respawn_on_death_ct 0",
			"mp_respawn_on_death_t 0",
			"mp_free_armor 1",
			"mp_give_player_c4 0",
			`mp_ct_default_secondary ""`,
			`mp_t_default_secondary ""`,
			"mp_buytime 0",
			"mp_startmoney 0",
			"mp_maxmoney 0",
		}
	default:
		return nil
	}
}

const (
	cmdWarmupEnd  = "mp_warmup_end"
	cmdPause      = "mp_pause_match"
	cmdUnpause    = "mp_unpause_match"
	cmdSwapTeams  = "mp_swapteams"
	cmdChangeMap  = "changelevel "
	cmdWorkshop   = "host_workshop_map "
	cmdRestartFmt = "mp_restartgame "
)

func restartCommand(delaySeconds int) string {
	return cmdRestartFmt + strconv.Itoa(delaySeconds)
}

// IsMelee reports whether an item survives knife-only stripping.
func IsMelee(item string) bool {
	return strings.Contains(item, "knife") || strings.Contains(item, "bayonet")
}

// IsWorkshopMap reports whether name addresses a workshop map, either as
// "workshop/<id>" or as a bare numeric id.
func IsWorkshopMap(name string) bool {
	if strings.HasPrefix(name, "workshop/") {
		return true
	}
	_, err := strconv.ParseUint(name, 10, 64)
	return err == nil
}

func mapCommand(name string) string {
	if IsWorkshopMap(name) {
		return cmdWorkshop + name
	}
	return cmdChangeMap + name
}
