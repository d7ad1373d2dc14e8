// Package pool resolves the set of players whose match histories seed a
// region's crawl.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"meta-pipeline/internal/riot"
)

// Rank score weights. Ladder players always outrank fallback sources,
// and a higher bracket always outranks a lower one regardless of LP.
const (
	scoreChallenger  = 3_000_000
	scoreGrandmaster = 2_000_000
	scoreMaster      = 1_000_000
)

// Player is one crawl seed, ordered by rank score.
type Player struct {
	PUUID string
	Score int64
}

// LadderClient is the upstream surface the resolver needs.
type LadderClient interface {
	GetLeagueByQueue(ctx context.Context, platform string, tier riot.LeagueTier) (*riot.LeagueListResponse, error)
	GetSummonerByID(ctx context.Context, platform, summonerID string) (*riot.SummonerResponse, error)
	GetAccountByRiotID(ctx context.Context, platform, gameName, tagLine string) (*riot.AccountResponse, error)
}

// RecencySampler supplies puuids seen in recently stored matches.
type RecencySampler interface {
	RecentParticipants(ctx context.Context, region string, window int) ([]string, error)
}

// Resolver builds a region's player pool from ranked ladders, falling
// back to recently seen players and a configured pro roster when the
// ladders come up short.
type Resolver struct {
	client  LadderClient
	sampler RecencySampler
	roster  map[string][]string // region -> "Name#Tag" handles
	window  int                 // recency sample, in matches
	log     *slog.Logger
}

func NewResolver(client LadderClient, sampler RecencySampler, roster map[string][]string, window int, log *slog.Logger) *Resolver {
	return &Resolver{
		client:  client,
		sampler: sampler,
		roster:  roster,
		window:  window,
		log:     log,
	}
}

// Resolve returns up to target players ordered by rank score descending
// with deterministic ties. A pool shorter than target is not an error.
func (r *Resolver) Resolve(ctx context.Context, region string, target int) ([]Player, error) {
	log := r.log.With("region", region)
	seen := make(map[string]bool)
	var players []Player

	add := func(puuid string, score int64) {
		if puuid == "" || seen[puuid] {
			return
		}
		seen[puuid] = true
		players = append(players, Player{PUUID: puuid, Score: score})
	}

	ladder := []struct {
		tier  riot.LeagueTier
		score int64
	}{
		{riot.TierChallenger, scoreChallenger},
		{riot.TierGrandmaster, scoreGrandmaster},
		{riot.TierMaster, scoreMaster},
	}

	for _, bracket := range ladder {
		if len(players) >= target {
			break
		}
		league, err := r.client.GetLeagueByQueue(ctx, region, bracket.tier)
		if err != nil {
			if errors.Is(err, riot.ErrNotFound) {
				log.Debug("ladder bracket absent", "tier", bracket.tier)
				continue
			}
			return nil, fmt.Errorf("fetching %s ladder: %w", bracket.tier, err)
		}
		for _, entry := range league.Entries {
			puuid := entry.PUUID
			if puuid == "" && entry.SummonerID != "" {
				// Legacy payloads carry only the summoner id.
				summoner, err := r.client.GetSummonerByID(ctx, region, entry.SummonerID)
				if err != nil {
					log.Warn("ladder entry could not be resolved", "summoner_id", entry.SummonerID, "error", err)
					continue
				}
				puuid = summoner.PUUID
			}
			add(puuid, bracket.score+int64(entry.LeaguePoints))
		}
		log.Debug("ladder bracket collected", "tier", bracket.tier, "pool", len(players))
	}

	if len(players) < target && r.sampler != nil {
		recent, err := r.sampler.RecentParticipants(ctx, region, r.window)
		if err != nil {
			log.Warn("could not sample recent players", "error", err)
		} else {
			for _, puuid := range recent {
				add(puuid, 0)
			}
			log.Debug("recent players sampled", "pool", len(players))
		}
	}

	if len(players) < target {
		for _, handle := range r.roster[region] {
			name, tag, ok := splitHandle(handle)
			if !ok {
				log.Warn("malformed roster handle skipped", "handle", handle)
				continue
			}
			account, err := r.client.GetAccountByRiotID(ctx, region, name, tag)
			if err != nil {
				log.Warn("roster handle could not be resolved", "handle", handle, "error", err)
				continue
			}
			add(account.PUUID, 0)
		}
	}

	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].PUUID < players[j].PUUID
	})

	if len(players) > target {
		players = players[:target]
	}
	if len(players) < target {
		log.Info("player pool shorter than target", "pool", len(players), "target", target)
	}
	return players, nil
}

func splitHandle(handle string) (name, tag string, ok bool) {
	name, tag, found := strings.Cut(handle, "#")
	if !found || name == "" || tag == "" {
		return "", "", false
	}
	return name, tag, true
}
