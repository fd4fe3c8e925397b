// Package version reports the matchadmin build. Release builds set the
// values with -ldflags "-X github.com/NicolasHaas/matchadmin/pkg/version.tag=v1.2.0 ...";
// other builds fall back to the VCS stamp embedded by the Go toolchain.
package version

import "runtime/debug"

var (
	tag    = ""
	commit = ""
	date   = ""
)

func init() {
	if commit != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 7 {
				s.Value = s.Value[:7]
			}
			commit = s.Value
		case "vcs.time":
			if date == "" {
				date = s.Value
			}
		}
	}
}

// String is the short version: the tag, else the commit, else "dev".
// The bridge sends it to hosts in the welcome.
func String() string {
	switch {
	case tag != "":
		return tag
	case commit != "":
		return commit
	}
	return "dev"
}

// Full adds the commit and build date to String for -version output.
func Full() string {
	s := String()
	if tag != "" && commit != "" {
		s += " (" + commit + ")"
	}
	if date != "" {
		s += " built " + date
	}
	return s
}
