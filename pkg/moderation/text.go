package moderation

import "github.com/rivo/uniseg"

const (
	MaxNameLength   = 64
	MaxReasonLength = 255
)

// truncate cuts s to at most max grapheme clusters.
func truncate(s string, max int) string {
	if uniseg.GraphemeClusterCount(s) <= max {
		return s
	}
	g := uniseg.NewGraphemes(s)
	end := 0
	for n := 0; n < max && g.Next(); n++ {
		_, end = g.Positions()
	}
	return s[:end]
}
