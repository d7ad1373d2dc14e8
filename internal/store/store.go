// Package store persists slimmed match records in Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

// New creates a connection pool and verifies connectivity. Store
// unavailability at startup is fatal for the run, so errors here
// propagate unchanged.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InitSchema creates the tables and indexes if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			region TEXT NOT NULL,
			match_id TEXT NOT NULL,
			patch TEXT NOT NULL,
			game_creation BIGINT NOT NULL,
			bans INTEGER[] NOT NULL DEFAULT '{}',
			UNIQUE (region, match_id)
		);

		CREATE TABLE IF NOT EXISTS participants (
			id BIGSERIAL PRIMARY KEY,
			region TEXT NOT NULL,
			match_id TEXT NOT NULL,
			puuid TEXT NOT NULL,
			player TEXT NOT NULL,
			role TEXT NOT NULL,
			champion_id INTEGER NOT NULL,
			champion_name TEXT NOT NULL,
			win BOOLEAN NOT NULL,
			kills INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			assists INTEGER NOT NULL,
			items INTEGER[] NOT NULL,
			enemy_physical_damage BIGINT NOT NULL DEFAULT 0,
			enemy_magic_damage BIGINT NOT NULL DEFAULT 0,
			enemy_tanks INTEGER NOT NULL DEFAULT 0,
			UNIQUE (region, match_id, puuid)
		);

		CREATE INDEX IF NOT EXISTS idx_matches_patch ON matches (patch);
		CREATE INDEX IF NOT EXISTS idx_matches_region_creation
			ON matches (region, game_creation DESC);
		CREATE INDEX IF NOT EXISTS idx_participants_match
			ON participants (region, match_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// InsertMatch persists a match and its participants in one transaction.
// A (region, match_id) conflict means the match is already stored: the
// insert is skipped and (false, nil) is returned. (true, nil) means the
// record is new.
func (s *Store) InsertMatch(ctx context.Context, m *MatchRecord) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO matches (region, match_id, patch, game_creation, bans)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (region, match_id) DO NOTHING
	`, m.Region, m.MatchID, m.Patch, m.GameCreation, m.Bans)
	if err != nil {
		return false, fmt.Errorf("failed to insert match %s: %w", m.MatchID, err)
	}
	if tag.RowsAffected() == 0 {
		// Already stored by an earlier run; not an error.
		return false, nil
	}

	for _, p := range m.Participants {
		_, err := tx.Exec(ctx, `
			INSERT INTO participants (
				region, match_id, puuid, player, role,
				champion_id, champion_name, win, kills, deaths, assists,
				items, enemy_physical_damage, enemy_magic_damage, enemy_tanks
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (region, match_id, puuid) DO NOTHING
		`, m.Region, m.MatchID, p.PUUID, p.Player, p.Role,
			p.ChampionID, p.ChampionName, p.Win, p.Kills, p.Deaths, p.Assists,
			p.Items[:], p.EnemyPhysicalDamage, p.EnemyMagicDamage, p.EnemyTanks)
		if err != nil {
			return false, fmt.Errorf("failed to insert participant %s of %s: %w", p.PUUID, m.MatchID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit match %s: %w", m.MatchID, err)
	}
	return true, nil
}

// FilterNew returns the subset of ids not yet stored for the region, in
// the original order. One batched query regardless of input size.
func (s *Store) FilterNew(ctx context.Context, region string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT match_id FROM matches
		WHERE region = $1 AND match_id = ANY($2)
	`, region, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing matches: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// PurgeOtherPatches bulk-deletes every match (and its participants) whose
// patch differs from current. Returns the number of matches removed.
func (s *Store) PurgeOtherPatches(ctx context.Context, current string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM participants p
		USING matches m
		WHERE p.region = m.region AND p.match_id = m.match_id AND m.patch <> $1
	`, current)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale participants: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM matches WHERE patch <> $1`, current)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale matches: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountMatches returns the total number of stored matches. With
// rolesOnly set, matches where no participant has an assigned role are
// left out of the count.
func (s *Store) CountMatches(ctx context.Context, rolesOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM matches`
	if rolesOnly {
		query = `
			SELECT COUNT(*) FROM matches m
			WHERE EXISTS (
				SELECT 1 FROM participants p
				WHERE p.region = m.region AND p.match_id = m.match_id AND p.role <> ''
			)`
	}
	var count int
	err := s.pool.QueryRow(ctx, query).Scan(&count)
	return count, err
}

// CountMatchesByPatch returns the number of stored matches on a patch,
// with the same rolesOnly filter as CountMatches.
func (s *Store) CountMatchesByPatch(ctx context.Context, patch string, rolesOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM matches WHERE patch = $1`
	if rolesOnly {
		query = `
			SELECT COUNT(*) FROM matches m
			WHERE m.patch = $1 AND EXISTS (
				SELECT 1 FROM participants p
				WHERE p.region = m.region AND p.match_id = m.match_id AND p.role <> ''
			)`
	}
	var count int
	err := s.pool.QueryRow(ctx, query, patch).Scan(&count)
	return count, err
}

// DistinctPatches lists the patch versions present in the corpus.
func (s *Store) DistinctPatches(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT patch FROM matches`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patches: %w", err)
	}
	defer rows.Close()

	var patches []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, rows.Err()
}

// RecentParticipants returns the distinct puuids seen in the region's
// newest `window` matches, sorted for determinism.
func (s *Store) RecentParticipants(ctx context.Context, region string, window int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.puuid
		FROM participants p
		JOIN (
			SELECT region, match_id FROM matches
			WHERE region = $1
			ORDER BY game_creation DESC
			LIMIT $2
		) m ON p.region = m.region AND p.match_id = m.match_id
		ORDER BY p.puuid
	`, region, window)
	if err != nil {
		return nil, fmt.Errorf("failed to sample recent participants: %w", err)
	}
	defer rows.Close()

	var puuids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		puuids = append(puuids, id)
	}
	return puuids, rows.Err()
}

// LoadMatches loads every stored match for the region with its
// participants, newest first.
func (s *Store) LoadMatches(ctx context.Context, region string) ([]MatchRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT match_id, patch, game_creation, bans FROM matches
		WHERE region = $1
		ORDER BY game_creation DESC
	`, region)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches: %w", err)
	}

	var records []MatchRecord
	index := make(map[string]int)
	for rows.Next() {
		m := MatchRecord{Region: region}
		if err := rows.Scan(&m.MatchID, &m.Patch, &m.GameCreation, &m.Bans); err != nil {
			rows.Close()
			return nil, err
		}
		index[m.MatchID] = len(records)
		records = append(records, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.pool.Query(ctx, `
		SELECT match_id, puuid, player, role,
			champion_id, champion_name, win, kills, deaths, assists,
			items, enemy_physical_damage, enemy_magic_damage, enemy_tanks
		FROM participants
		WHERE region = $1
	`, region)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var matchID string
		var p ParticipantSnapshot
		var items []int
		err := prows.Scan(&matchID, &p.PUUID, &p.Player, &p.Role,
			&p.ChampionID, &p.ChampionName, &p.Win, &p.Kills, &p.Deaths, &p.Assists,
			&items, &p.EnemyPhysicalDamage, &p.EnemyMagicDamage, &p.EnemyTanks)
		if err != nil {
			return nil, err
		}
		copy(p.Items[:], items)

		if i, ok := index[matchID]; ok {
			records[i].Participants = append(records[i].Participants, p)
		}
	}
	return records, prows.Err()
}
