package stats

import (
	"math"
	"sort"

	"meta-pipeline/internal/store"
)

// LeaderboardEntry is one player's record on a (role, champion) pairing.
type LeaderboardEntry struct {
	Player  string  `json:"player"`
	Region  string  `json:"region"`
	Games   int     `json:"games"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	Kills   int     `json:"kills"`
	Deaths  int     `json:"deaths"`
	Assists int     `json:"assists"`
	KDA     float64 `json:"kda"`
}

// Leaderboards accumulates per-player records keyed by "ROLE/Champion"
// across every region's corpus.
type Leaderboards struct {
	boards map[string]map[string]*LeaderboardEntry // board key -> puuid -> entry
}

func NewLeaderboards() *Leaderboards {
	return &Leaderboards{boards: make(map[string]map[string]*LeaderboardEntry)}
}

// Accumulate folds a region's matches into the boards. Participants
// without an assigned role are skipped.
func (l *Leaderboards) Accumulate(region string, matches []store.MatchRecord) {
	for _, m := range matches {
		for _, p := range m.Participants {
			if p.Role == "" || p.ChampionName == "" {
				continue
			}
			key := p.Role + "/" + p.ChampionName
			board, ok := l.boards[key]
			if !ok {
				board = make(map[string]*LeaderboardEntry)
				l.boards[key] = board
			}
			entry, ok := board[p.PUUID]
			if !ok {
				entry = &LeaderboardEntry{Player: p.Player, Region: region}
				board[p.PUUID] = entry
			}
			entry.Games++
			if p.Win {
				entry.Wins++
			}
			entry.Kills += p.Kills
			entry.Deaths += p.Deaths
			entry.Assists += p.Assists
		}
	}
}

// Emit finalizes every board: rates computed, entries sorted by games
// then win rate, deterministic on player name. No truncation.
func (l *Leaderboards) Emit() map[string][]LeaderboardEntry {
	out := make(map[string][]LeaderboardEntry, len(l.boards))
	for key, board := range l.boards {
		entries := make([]LeaderboardEntry, 0, len(board))
		for _, e := range board {
			e.WinRate = round1(float64(e.Wins) / float64(e.Games) * 100)
			e.KDA = round2(float64(e.Kills+e.Assists) / math.Max(float64(e.Deaths), 1))
			entries = append(entries, *e)
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Games != entries[j].Games {
				return entries[i].Games > entries[j].Games
			}
			if entries[i].WinRate != entries[j].WinRate {
				return entries[i].WinRate > entries[j].WinRate
			}
			return entries[i].Player < entries[j].Player
		})
		out[key] = entries
	}
	return out
}
