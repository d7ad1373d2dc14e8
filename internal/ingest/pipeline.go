// Package ingest crawls player match histories and persists slimmed
// match records.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/errgroup"

	"meta-pipeline/internal/patch"
	"meta-pipeline/internal/pool"
	"meta-pipeline/internal/riot"
	"meta-pipeline/internal/store"
)

// MatchAPI is the upstream surface the pipeline needs.
type MatchAPI interface {
	GetMatchHistory(ctx context.Context, platform, puuid string, count int) ([]string, error)
	GetMatch(ctx context.Context, platform, matchID string) (*riot.MatchResponse, error)
}

// MatchStore is the persistence surface the pipeline needs.
type MatchStore interface {
	FilterNew(ctx context.Context, region string, ids []string) ([]string, error)
	InsertMatch(ctx context.Context, m *store.MatchRecord) (bool, error)
}

// Config tunes one pipeline run.
type Config struct {
	HistoryCount int           // match ids requested per player
	Concurrency  int           // parallel detail fetches per player
	TargetPatch  patch.Version // zero value accepts every patch
	Tanks        map[int]bool  // champion id -> tank; nil disables tank counting
}

// Summary is the outcome of one region's crawl.
type Summary struct {
	New        int64 // matches stored this run
	Duplicates int64 // already stored, swallowed
	OffPatch   int64 // discarded before storage
	Errors     int64 // per-match or per-player failures, logged and skipped
}

// Pipeline ingests match histories for one run. The bloom filter is an
// in-run pre-filter only; the store's unique index stays the source of
// truth for deduplication.
type Pipeline struct {
	api MatchAPI
	db  MatchStore
	cfg Config
	log *slog.Logger

	seen *bloom.BloomFilter

	newCount   atomic.Int64
	dupCount   atomic.Int64
	patchCount atomic.Int64
	errCount   atomic.Int64
}

func New(api MatchAPI, db MatchStore, cfg Config, log *slog.Logger) *Pipeline {
	if cfg.HistoryCount <= 0 {
		cfg.HistoryCount = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &Pipeline{
		api:  api,
		db:   db,
		cfg:  cfg,
		log:  log,
		seen: bloom.NewWithEstimates(200_000, 0.01),
	}
}

// IngestRegion crawls every player's recent history. Player failures are
// logged and skipped; the region's crawl always runs to completion.
func (p *Pipeline) IngestRegion(ctx context.Context, region string, players []pool.Player) Summary {
	log := p.log.With("region", region)
	start := p.snapshot()

	for _, player := range players {
		if ctx.Err() != nil {
			break
		}
		if err := p.ingestPlayer(ctx, region, player.PUUID); err != nil {
			p.errCount.Add(1)
			log.Warn("player crawl failed, moving on", "puuid", player.PUUID, "error", err)
		}
	}

	end := p.snapshot()
	summary := Summary{
		New:        end.New - start.New,
		Duplicates: end.Duplicates - start.Duplicates,
		OffPatch:   end.OffPatch - start.OffPatch,
		Errors:     end.Errors - start.Errors,
	}
	log.Info("region crawl finished",
		"players", len(players),
		"new", summary.New,
		"duplicates", summary.Duplicates,
		"off_patch", summary.OffPatch,
		"errors", summary.Errors)
	return summary
}

func (p *Pipeline) snapshot() Summary {
	return Summary{
		New:        p.newCount.Load(),
		Duplicates: p.dupCount.Load(),
		OffPatch:   p.patchCount.Load(),
		Errors:     p.errCount.Load(),
	}
}

func (p *Pipeline) ingestPlayer(ctx context.Context, region, puuid string) error {
	ids, err := p.api.GetMatchHistory(ctx, region, puuid, p.cfg.HistoryCount)
	if err != nil {
		if errors.Is(err, riot.ErrNotFound) {
			return nil
		}
		return err
	}

	// In-run pre-filter: ids already claimed this run are not even
	// checked against the store.
	candidates := make([]string, 0, len(ids))
	for _, id := range ids {
		if !p.seen.TestOrAddString(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	fresh, err := p.db.FilterNew(ctx, region, candidates)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, matchID := range fresh {
		matchID := matchID
		g.Go(func() error {
			p.ingestMatch(gctx, region, matchID)
			return nil
		})
	}
	return g.Wait()
}

// ingestMatch never fails the player scope; every failure is counted and
// logged here.
func (p *Pipeline) ingestMatch(ctx context.Context, region, matchID string) {
	match, err := p.api.GetMatch(ctx, region, matchID)
	if err != nil {
		if errors.Is(err, riot.ErrNotFound) {
			p.log.Debug("match vanished upstream", "match", matchID)
			return
		}
		p.errCount.Add(1)
		p.log.Warn("match fetch failed", "match", matchID, "error", err)
		return
	}

	short := patch.Short(match.Info.GameVersion)
	if !p.cfg.TargetPatch.IsZero() {
		if v, ok := patch.Parse(short); !ok || v != p.cfg.TargetPatch {
			p.patchCount.Add(1)
			p.log.Debug("off-patch match discarded", "match", matchID, "patch", short)
			return
		}
	}

	record := slim(region, short, match, p.cfg.Tanks)
	inserted, err := p.db.InsertMatch(ctx, record)
	if err != nil {
		p.errCount.Add(1)
		p.log.Warn("match could not be stored", "match", matchID, "error", err)
		return
	}
	if inserted {
		p.newCount.Add(1)
	} else {
		p.dupCount.Add(1)
	}
}

// slim reduces a raw match payload to the record the aggregation stage
// needs, normalizing roles, display names and bans, and precomputing the
// enemy-composition inputs for context tagging.
func slim(region, shortPatch string, m *riot.MatchResponse, tanks map[int]bool) *store.MatchRecord {
	record := &store.MatchRecord{
		Region:       region,
		MatchID:      m.Metadata.MatchID,
		Patch:        shortPatch,
		GameCreation: m.Info.GameCreation,
	}

	for _, team := range m.Info.Teams {
		for _, ban := range team.Bans {
			if ban.ChampionID != riot.NoBanSentinel {
				record.Bans = append(record.Bans, ban.ChampionID)
			}
		}
	}

	type teamTotals struct {
		physical int64
		magic    int64
		tanks    int
	}
	totals := make(map[int]*teamTotals, 2)
	for _, part := range m.Info.Participants {
		t, ok := totals[part.TeamID]
		if !ok {
			t = &teamTotals{}
			totals[part.TeamID] = t
		}
		t.physical += part.PhysicalDamageDealtToChampions
		t.magic += part.MagicDamageDealtToChampions
		if tanks[part.ChampionID] {
			t.tanks++
		}
	}

	for _, part := range m.Info.Participants {
		snap := store.ParticipantSnapshot{
			PUUID:        part.PUUID,
			Player:       displayName(part),
			ChampionID:   part.ChampionID,
			ChampionName: part.ChampionName,
			Win:          part.Win,
			Kills:        part.Kills,
			Deaths:       part.Deaths,
			Assists:      part.Assists,
			Items:        [6]int{part.Item0, part.Item1, part.Item2, part.Item3, part.Item4, part.Item5},
		}
		if store.ValidRole(part.TeamPosition) {
			snap.Role = part.TeamPosition
		}
		for teamID, t := range totals {
			if teamID != part.TeamID {
				snap.EnemyPhysicalDamage += t.physical
				snap.EnemyMagicDamage += t.magic
				snap.EnemyTanks += t.tanks
			}
		}
		record.Participants = append(record.Participants, snap)
	}
	return record
}

// displayName prefers the modern "game#tag" handle, falls back to the
// legacy summoner name, and never returns an empty string.
func displayName(p riot.MatchParticipant) string {
	if p.RiotIdGameName != "" {
		return p.RiotIdGameName + "#" + p.RiotIdTagline
	}
	if p.SummonerName != "" {
		return p.SummonerName
	}
	return "Unknown"
}
