// Package stats turns the stored match corpus into ranked champion
// summaries, leaderboards and the output artifact.
package stats

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"meta-pipeline/internal/patch"
	"meta-pipeline/internal/store"
)

const (
	// A champion appears in a role table if picked at least once or
	// banned often enough to matter.
	banRateFloor = 1.0

	// Summaries per role table.
	maxSummaries = 15

	// Builds per signature: the first completed items, at least two.
	buildItems    = 3
	buildMinItems = 2

	// A context sub-build needs this many games under the tag.
	contextMinSamples = 3
)

// Enemy-composition tags attached to builds.
const (
	TagTankHeavy = "Tank Heavy"
	TagHeavyAD   = "Heavy AD"
	TagHeavyAP   = "Heavy AP"
)

const (
	tankHeavyThreshold   = 3    // enemy champions tagged Tank
	damageShareThreshold = 0.60 // share of enemy champion damage
)

// ChampionSummary is one row of a role table.
type ChampionSummary struct {
	Name          string           `json:"name"`
	Games         int              `json:"count"`
	PickRate      float64          `json:"pick_rate"`
	WinRate       float64          `json:"win_rate"`
	BanRate       float64          `json:"ban_rate"`
	KDA           float64          `json:"kda"`
	TopBuild      []int            `json:"top_build,omitempty"`
	ContextBuilds map[string][]int `json:"context_builds,omitempty"`
}

// RegionStats holds one region's role tables for the full season corpus
// and for the current patch only.
type RegionStats struct {
	Season map[string][]ChampionSummary `json:"season"`
	Patch  map[string][]ChampionSummary `json:"patch"`
}

// Aggregator computes summaries from stored matches. It carries no state
// between regions; every call works from its arguments alone.
type Aggregator struct {
	champNames    map[int]string // ban id -> display name; nil degrades to numeric labels
	items         map[int]bool   // completed items; nil disables item filtering
	countRoleless bool
	log           *slog.Logger
}

func NewAggregator(champNames map[int]string, items map[int]bool, countRoleless bool, log *slog.Logger) *Aggregator {
	return &Aggregator{
		champNames:    champNames,
		items:         items,
		countRoleless: countRoleless,
		log:           log,
	}
}

// AggregateRegion builds the region's season and current-patch tables and
// feeds the region's matches into the shared leaderboards.
func (a *Aggregator) AggregateRegion(region string, matches []store.MatchRecord, current patch.Version, lb *Leaderboards) RegionStats {
	subset := matches
	if !a.countRoleless {
		subset = withAssignedRoles(matches)
	}

	currentShort := current.String()
	var onPatch []store.MatchRecord
	for _, m := range subset {
		if m.Patch == currentShort {
			onPatch = append(onPatch, m)
		}
	}

	if lb != nil {
		lb.Accumulate(region, subset)
	}

	stats := RegionStats{
		Season: make(map[string][]ChampionSummary, len(store.Roles)),
		Patch:  make(map[string][]ChampionSummary, len(store.Roles)),
	}
	for _, role := range store.Roles {
		stats.Season[role] = a.aggregateRole(role, subset)
		stats.Patch[role] = a.aggregateRole(role, onPatch)
	}

	a.log.Info("region aggregated",
		"region", region,
		"season_games", len(subset),
		"patch_games", len(onPatch))
	return stats
}

func withAssignedRoles(matches []store.MatchRecord) []store.MatchRecord {
	kept := make([]store.MatchRecord, 0, len(matches))
	for _, m := range matches {
		for _, p := range m.Participants {
			if p.Role != "" {
				kept = append(kept, m)
				break
			}
		}
	}
	return kept
}

// champAccum accumulates one champion's numbers within a role.
type champAccum struct {
	name    string
	games   int
	wins    int
	kills   int
	deaths  int
	assists int
	bans    int

	builds        *buildCounter
	contextBuilds map[string]*buildCounter
}

// aggregateRole produces the ranked summary table for one role over the
// given subset. The subset size is the denominator for both pick and ban
// rates.
func (a *Aggregator) aggregateRole(role string, subset []store.MatchRecord) []ChampionSummary {
	total := len(subset)
	if total == 0 {
		return nil
	}

	// Names observed anywhere in the subset, any role, so banned-only
	// champions resolve even when the metadata feed is down.
	corpusNames := make(map[int]string)
	for _, m := range subset {
		for _, p := range m.Participants {
			if p.ChampionName != "" {
				corpusNames[p.ChampionID] = p.ChampionName
			}
		}
	}

	accums := make(map[int]*champAccum)
	get := func(id int) *champAccum {
		acc, ok := accums[id]
		if !ok {
			acc = &champAccum{
				builds:        newBuildCounter(),
				contextBuilds: make(map[string]*buildCounter),
			}
			accums[id] = acc
		}
		return acc
	}

	for _, m := range subset {
		// Every match credits its bans, whether or not anyone played
		// this role in it.
		for _, banID := range m.Bans {
			get(banID).bans++
		}

		snap, ok := roleParticipant(m, role)
		if !ok {
			continue
		}

		acc := get(snap.ChampionID)
		acc.name = snap.ChampionName
		acc.games++
		if snap.Win {
			acc.wins++
		}
		acc.kills += snap.Kills
		acc.deaths += snap.Deaths
		acc.assists += snap.Assists

		if sig, ok := a.buildSignature(snap.Items); ok {
			acc.builds.add(sig)
			if tag := contextTag(snap); tag != "" {
				counter, exists := acc.contextBuilds[tag]
				if !exists {
					counter = newBuildCounter()
					acc.contextBuilds[tag] = counter
				}
				counter.add(sig)
			}
		}
	}

	var summaries []ChampionSummary
	for id, acc := range accums {
		banRate := round1(float64(acc.bans) / float64(total) * 100)
		if acc.games < 1 && banRate <= banRateFloor {
			continue
		}

		s := ChampionSummary{
			Name:     a.championName(id, acc.name, corpusNames),
			Games:    acc.games,
			PickRate: round1(float64(acc.games) / float64(total) * 100),
			BanRate:  banRate,
			KDA:      round2(float64(acc.kills+acc.assists) / math.Max(float64(acc.deaths), 1)),
		}
		if acc.games > 0 {
			s.WinRate = round1(float64(acc.wins) / float64(acc.games) * 100)
		}

		if top, ok := acc.builds.mostFrequent(); ok {
			s.TopBuild = top
		}
		for tag, counter := range acc.contextBuilds {
			if counter.samples < contextMinSamples {
				continue
			}
			if build, ok := counter.mostFrequent(); ok {
				if s.ContextBuilds == nil {
					s.ContextBuilds = make(map[string][]int)
				}
				s.ContextBuilds[tag] = build
			}
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].PickRate != summaries[j].PickRate {
			return summaries[i].PickRate > summaries[j].PickRate
		}
		if summaries[i].Games != summaries[j].Games {
			return summaries[i].Games > summaries[j].Games
		}
		return summaries[i].Name < summaries[j].Name
	})

	if len(summaries) > maxSummaries {
		summaries = summaries[:maxSummaries]
	}
	return summaries
}

// roleParticipant finds the participant assigned to the role, if any.
// At most one per match matters; payload order breaks the tie.
func roleParticipant(m store.MatchRecord, role string) (store.ParticipantSnapshot, bool) {
	for _, p := range m.Participants {
		if p.Role == role {
			return p, true
		}
	}
	return store.ParticipantSnapshot{}, false
}

func (a *Aggregator) championName(id int, fromGames string, corpus map[int]string) string {
	if fromGames != "" {
		return fromGames
	}
	if name, ok := corpus[id]; ok {
		return name
	}
	if name, ok := a.champNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Champion_%d", id)
}

// buildSignature reduces an inventory to its canonical form: the first
// completed items in slot order, at least two, sorted ascending so that
// the same items in different slots compare equal.
func (a *Aggregator) buildSignature(items [6]int) ([]int, bool) {
	var sig []int
	for _, item := range items {
		if item == 0 {
			continue
		}
		if a.items != nil && !a.items[item] {
			continue
		}
		sig = append(sig, item)
		if len(sig) == buildItems {
			break
		}
	}
	if len(sig) < buildMinItems {
		return nil, false
	}
	sort.Ints(sig)
	return sig, true
}

// contextTag classifies the enemy composition the participant faced.
func contextTag(p store.ParticipantSnapshot) string {
	if p.EnemyTanks >= tankHeavyThreshold {
		return TagTankHeavy
	}
	total := p.EnemyPhysicalDamage + p.EnemyMagicDamage
	if total <= 0 {
		return ""
	}
	if float64(p.EnemyPhysicalDamage)/float64(total) >= damageShareThreshold {
		return TagHeavyAD
	}
	if float64(p.EnemyMagicDamage)/float64(total) >= damageShareThreshold {
		return TagHeavyAP
	}
	return ""
}

// buildCounter tallies build signatures, remembering first-encounter
// order so frequency ties resolve deterministically.
type buildCounter struct {
	counts  map[string]int
	order   []string
	samples int
}

func newBuildCounter() *buildCounter {
	return &buildCounter{counts: make(map[string]int)}
}

func (c *buildCounter) add(sig []int) {
	key := buildKey(sig)
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
	c.samples++
}

func (c *buildCounter) mostFrequent() ([]int, bool) {
	best := ""
	bestCount := 0
	for _, key := range c.order {
		if c.counts[key] > bestCount {
			best = key
			bestCount = c.counts[key]
		}
	}
	if best == "" {
		return nil, false
	}
	return parseBuildKey(best), true
}

func buildKey(sig []int) string {
	parts := make([]string, len(sig))
	for i, item := range sig {
		parts[i] = strconv.Itoa(item)
	}
	return strings.Join(parts, ",")
}

func parseBuildKey(key string) []int {
	parts := strings.Split(key, ",")
	items := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		items = append(items, n)
	}
	return items
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
