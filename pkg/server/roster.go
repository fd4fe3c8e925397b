package server

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/text/cases"

	"github.com/NicolasHaas/matchadmin/pkg/model"
)

// steamID64Base is the lowest individual-account SteamID64.
const steamID64Base = 76561197960265728

// maxFuzzyDistance bounds the edit distance of a fuzzy name match.
const maxFuzzyDistance = 2

// Roster tracks the participants reported by the host and their last known
// inventories.
type Roster struct {
	mu           sync.RWMutex
	participants map[uint64]model.Participant // steamID -> participant
	inventories  map[uint64][]string
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		participants: make(map[uint64]model.Participant),
		inventories:  make(map[uint64][]string),
	}
}

// Upsert adds or updates a participant.
func (r *Roster) Upsert(p model.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[p.SteamID] = p
}

// Remove drops a participant and returns its last known state.
func (r *Roster) Remove(steamID uint64) (model.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[steamID]
	delete(r.participants, steamID)
	delete(r.inventories, steamID)
	return p, ok
}

// Replace swaps the roster for a full snapshot. Inventories of participants
// no longer present are dropped.
func (r *Roster) Replace(list []model.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[uint64]model.Participant, len(list))
	for _, p := range list {
		next[p.SteamID] = p
	}
	for id := range r.inventories {
		if _, ok := next[id]; !ok {
			delete(r.inventories, id)
		}
	}
	r.participants = next
}

// Get retrieves a participant by steam id.
func (r *Roster) Get(steamID uint64) (model.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[steamID]
	return p, ok
}

// Participants returns a snapshot ordered by slot.
func (r *Roster) Participants() []model.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]model.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b model.Participant) int { return a.Slot - b.Slot })
	return result
}

// Count returns the number of connected participants, bots included.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// EligibleVoters counts connected humans on a playing team.
func (r *Roster) EligibleVoters() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.participants {
		if p.CanVote() {
			n++
		}
	}
	return n
}

// TeamVoters counts eligible voters on one team.
func (r *Roster) TeamVoters(team model.Team) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.participants {
		if p.CanVote() && p.Team == team {
			n++
		}
	}
	return n
}

// SetInventory stores the items last reported for a participant.
func (r *Roster) SetInventory(steamID uint64, items []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventories[steamID] = slices.Clone(items)
}

// Inventory returns the items last reported for a participant.
func (r *Roster) Inventory(steamID uint64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.inventories[steamID])
}

// DropItem forgets one item of a participant's cached inventory.
func (r *Roster) DropItem(steamID uint64, item string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.inventories[steamID]
	if i := slices.Index(items, item); i >= 0 {
		r.inventories[steamID] = slices.Delete(items, i, i+1)
	}
}

// Find resolves a player query: "#<slot>", a SteamID64, an exact name, a
// unique name substring or a unique close name. Ambiguous queries match
// nobody.
func (r *Roster) Find(query string) (model.Participant, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.Participant{}, false
	}
	list := r.Participants()

	if rest, ok := strings.CutPrefix(query, "#"); ok {
		slot, err := strconv.Atoi(rest)
		if err != nil {
			return model.Participant{}, false
		}
		for _, p := range list {
			if p.Slot == slot {
				return p, true
			}
		}
		return model.Participant{}, false
	}

	if id, err := strconv.ParseUint(query, 10, 64); err == nil && id > steamID64Base {
		for _, p := range list {
			if p.SteamID == id {
				return p, true
			}
		}
		return model.Participant{}, false
	}

	fold := cases.Fold()
	q := fold.String(query)
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = fold.String(p.Name)
	}

	for i, name := range names {
		if name == q {
			return list[i], true
		}
	}

	match := -1
	for i, name := range names {
		if strings.Contains(name, q) {
			if match >= 0 {
				return model.Participant{}, false
			}
			match = i
		}
	}
	if match >= 0 {
		return list[match], true
	}

	best, bestDist, tie := -1, maxFuzzyDistance+1, false
	for i, name := range names {
		d := levenshtein.DistanceForStrings([]rune(q), []rune(name), levenshtein.DefaultOptions)
		switch {
		case d < bestDist:
			best, bestDist, tie = i, d, false
		case d == bestDist:
			tie = true
		}
	}
	if best < 0 || tie {
		return model.Participant{}, false
	}
	return list[best], true
}
