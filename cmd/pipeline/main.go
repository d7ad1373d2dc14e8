package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meta-pipeline/internal/config"
	"meta-pipeline/internal/ddragon"
	"meta-pipeline/internal/ingest"
	"meta-pipeline/internal/patch"
	"meta-pipeline/internal/pool"
	"meta-pipeline/internal/riot"
	"meta-pipeline/internal/stats"
	"meta-pipeline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	client, err := riot.NewClient(cfg.RiotAPIKey, logger)
	if err != nil {
		log.Fatalf("Client setup failed: %v", err)
	}

	// An invalid key would fail every request ten thousand times; check
	// once up front. A probe that cannot reach the API at all is only a
	// warning, the crawl may still work.
	if err := client.ValidateKey(ctx, cfg.Regions[0]); err != nil {
		if errors.Is(err, riot.ErrInvalidKey) {
			log.Fatal("RIOT_API_KEY was rejected (401/403): key is invalid or expired")
		}
		logger.Warn("could not verify API key, continuing", "error", err)
	}

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database unavailable: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Schema setup failed: %v", err)
	}

	// Static metadata is optional: without it the run proceeds with
	// build-item filtering and tank counting disabled.
	feed := ddragon.NewClient(logger)
	var (
		tanks      map[int]bool
		items      map[int]bool
		champNames map[int]string
	)
	if fullVersion, err := feed.LatestVersion(ctx); err != nil {
		logger.Warn("metadata feed unavailable, item and tank filters disabled", "error", err)
	} else {
		if champs, err := feed.Champions(ctx, fullVersion); err != nil {
			logger.Warn("champion metadata unavailable", "error", err)
		} else {
			tanks = make(map[int]bool)
			champNames = make(map[int]string, len(champs))
			for key, ch := range champs {
				champNames[key] = ch.Name
				if ch.Tank {
					tanks[key] = true
				}
			}
		}
		if completed, err := feed.CompletedItems(ctx, fullVersion); err != nil {
			logger.Warn("item metadata unavailable", "error", err)
		} else {
			items = completed
		}
	}

	current := patch.NewResolver(feed, db, logger).Resolve(ctx)

	poolResolver := pool.NewResolver(client, db, cfg.ProRoster, cfg.RecentMatchWindow, logger)
	pipeline := ingest.New(client, db, ingest.Config{
		HistoryCount: cfg.MatchHistoryCount,
		Concurrency:  cfg.FetchConcurrency,
		TargetPatch:  current,
		Tanks:        tanks,
	}, logger)

	var crawl ingest.Summary
	for _, region := range cfg.Regions {
		if ctx.Err() != nil {
			logger.Warn("crawl interrupted", "error", ctx.Err())
			break
		}
		players, err := poolResolver.Resolve(ctx, region, cfg.PlayerCount)
		if err != nil {
			logger.Error("region skipped, player pool unavailable", "region", region, "error", err)
			continue
		}
		summary := pipeline.IngestRegion(ctx, region, players)
		crawl.New += summary.New
		crawl.Duplicates += summary.Duplicates
		crawl.OffPatch += summary.OffPatch
		crawl.Errors += summary.Errors
	}

	if purged, err := db.PurgeOtherPatches(ctx, current.String()); err != nil {
		logger.Warn("stale-patch purge failed, aggregating what is stored", "error", err)
	} else if purged > 0 {
		logger.Info("stale-patch matches purged", "matches", purged, "patch", current.String())
	}

	// The roleless-games policy governs the meta counts too: with the
	// flag off, matches with no assigned role stay out of total_games
	// and patch_games, matching the aggregation denominators.
	rolesOnly := !cfg.CountRolelessGames
	totalGames, err := db.CountMatches(ctx, rolesOnly)
	if err != nil {
		logger.Warn("could not count matches", "error", err)
	}
	patchGames, err := db.CountMatchesByPatch(ctx, current.String(), rolesOnly)
	if err != nil {
		logger.Warn("could not count patch matches", "error", err)
	}

	aggregator := stats.NewAggregator(champNames, items, cfg.CountRolelessGames, logger)
	leaderboards := stats.NewLeaderboards()
	regions := make(map[string]stats.RegionStats, len(cfg.Regions))
	for _, region := range cfg.Regions {
		matches, err := db.LoadMatches(ctx, region)
		if err != nil {
			logger.Error("region dropped from artifact", "region", region, "error", err)
			continue
		}
		regions[region] = aggregator.AggregateRegion(region, matches, current, leaderboards)
	}

	artifact := &stats.Artifact{
		Meta: stats.Meta{
			TotalGames:   totalGames,
			PatchGames:   patchGames,
			CurrentPatch: current.String(),
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			SampleSize:   cfg.PlayerCount,
		},
		Regions:      regions,
		Leaderboards: leaderboards.Emit(),
	}
	if err := stats.WriteAtomic(cfg.OutputFile, artifact); err != nil {
		log.Fatalf("Artifact write failed: %v", err)
	}

	logger.Info("run complete",
		"output", cfg.OutputFile,
		"patch", current.String(),
		"new_matches", crawl.New,
		"duplicates", crawl.Duplicates,
		"off_patch", crawl.OffPatch,
		"errors", crawl.Errors,
		"total_games", totalGames,
		"patch_games", patchGames,
		"elapsed", time.Since(start).Round(time.Second))
}
