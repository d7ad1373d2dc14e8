package stats

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"meta-pipeline/internal/patch"
	"meta-pipeline/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAggregator() *Aggregator {
	return NewAggregator(nil, nil, true, discard())
}

func match(id string, bans []int, parts ...store.ParticipantSnapshot) store.MatchRecord {
	return store.MatchRecord{
		Region:       "kr",
		MatchID:      id,
		Patch:        "14.23",
		GameCreation: 1700000000000,
		Bans:         bans,
		Participants: parts,
	}
}

func mid(champID int, name string, win bool) store.ParticipantSnapshot {
	return store.ParticipantSnapshot{
		PUUID:        "puuid-" + name,
		Player:       name + "#KR1",
		Role:         store.RoleMiddle,
		ChampionID:   champID,
		ChampionName: name,
		Win:          win,
		Kills:        4,
		Deaths:       2,
		Assists:      6,
	}
}

func find(summaries []ChampionSummary, name string) (ChampionSummary, bool) {
	for _, s := range summaries {
		if s.Name == name {
			return s, true
		}
	}
	return ChampionSummary{}, false
}

// 40 matches; one champion picked mid in 10 (6 wins) and banned in 2.
// Denominator for both rates is all 40 matches.
func TestRateMath(t *testing.T) {
	var matches []store.MatchRecord
	for i := 0; i < 10; i++ {
		matches = append(matches, match(fmt.Sprintf("KR_pick_%d", i), nil, mid(517, "Sylas", i < 6)))
	}
	for i := 0; i < 2; i++ {
		matches = append(matches, match(fmt.Sprintf("KR_ban_%d", i), []int{517}, mid(103, "Ahri", true)))
	}
	for i := 0; i < 28; i++ {
		matches = append(matches, match(fmt.Sprintf("KR_other_%d", i), nil))
	}

	summaries := testAggregator().aggregateRole(store.RoleMiddle, matches)
	sylas, ok := find(summaries, "Sylas")
	if !ok {
		t.Fatal("Sylas missing from the role table")
	}

	if sylas.Games != 10 {
		t.Errorf("games = %d, want 10", sylas.Games)
	}
	if sylas.PickRate != 25.0 {
		t.Errorf("pick rate = %v, want 25.0", sylas.PickRate)
	}
	if sylas.WinRate != 60.0 {
		t.Errorf("win rate = %v, want 60.0", sylas.WinRate)
	}
	if sylas.BanRate != 5.0 {
		t.Errorf("ban rate = %v, want 5.0", sylas.BanRate)
	}
	// 10 games of 4/2/6: (40+60)/20 = 5.00
	if sylas.KDA != 5.0 {
		t.Errorf("kda = %v, want 5.0", sylas.KDA)
	}
}

func TestKDAWithZeroDeaths(t *testing.T) {
	p := mid(517, "Sylas", true)
	p.Kills, p.Deaths, p.Assists = 7, 0, 3
	summaries := testAggregator().aggregateRole(store.RoleMiddle, []store.MatchRecord{
		match("KR_1", nil, p),
	})
	s, _ := find(summaries, "Sylas")
	// Deaths floor at 1: (7+3)/1.
	if s.KDA != 10.0 {
		t.Errorf("kda = %v, want 10.0", s.KDA)
	}
}

func TestInclusionBoundary(t *testing.T) {
	// 100 matches: one champion banned once (1.0%), another banned
	// twice (2.0%). Neither is ever picked.
	var matches []store.MatchRecord
	matches = append(matches, match("KR_b1", []int{1}))
	matches = append(matches, match("KR_b2", []int{2}))
	matches = append(matches, match("KR_b3", []int{2}))
	for i := 0; i < 97; i++ {
		matches = append(matches, match(fmt.Sprintf("KR_pad_%d", i), nil))
	}

	summaries := testAggregator().aggregateRole(store.RoleMiddle, matches)
	if _, ok := find(summaries, "Champion_1"); ok {
		t.Error("ban rate exactly 1.0 with zero games must be excluded")
	}
	if _, ok := find(summaries, "Champion_2"); !ok {
		t.Error("ban rate above 1.0 must be included even with zero games")
	}
}

func TestTruncationToFifteen(t *testing.T) {
	// 20 champions, each with a distinct pick count.
	var matches []store.MatchRecord
	n := 0
	for champ := 1; champ <= 20; champ++ {
		for g := 0; g < champ; g++ {
			n++
			matches = append(matches, match(fmt.Sprintf("KR_%d", n), nil,
				mid(champ, fmt.Sprintf("Champ%02d", champ), true)))
		}
	}

	summaries := testAggregator().aggregateRole(store.RoleMiddle, matches)
	if len(summaries) != maxSummaries {
		t.Fatalf("got %d summaries, want %d", len(summaries), maxSummaries)
	}
	if summaries[0].Name != "Champ20" {
		t.Errorf("top pick = %s, want the most-picked champion", summaries[0].Name)
	}
	// The five least-picked champions fell off.
	if _, ok := find(summaries, "Champ05"); ok {
		t.Error("truncation should drop the lowest pick rates")
	}
}

func TestBuildSignatureCanonicalization(t *testing.T) {
	a := testAggregator()

	s1, ok1 := a.buildSignature([6]int{3031, 3072, 0, 0, 0, 0})
	s2, ok2 := a.buildSignature([6]int{3072, 3031, 0, 0, 0, 0})
	if !ok1 || !ok2 {
		t.Fatal("two-item inventories must form signatures")
	}
	if buildKey(s1) != buildKey(s2) {
		t.Errorf("same items in different slots must compare equal: %v vs %v", s1, s2)
	}

	if _, ok := a.buildSignature([6]int{3031, 0, 0, 0, 0, 0}); ok {
		t.Error("a single item is not a build")
	}

	// Only the first three valid items count.
	sig, ok := a.buildSignature([6]int{3095, 3031, 3072, 3094, 3046, 0})
	if !ok || len(sig) != 3 {
		t.Fatalf("signature = %v", sig)
	}
	if buildKey(sig) != "3031,3072,3095" {
		t.Errorf("signature key = %q, want first three slots sorted", buildKey(sig))
	}
}

func TestBuildSignatureItemFilter(t *testing.T) {
	completed := map[int]bool{3031: true, 3072: true}
	a := NewAggregator(nil, completed, true, discard())

	// 2003 is not a completed item; it must be skipped, not counted.
	sig, ok := a.buildSignature([6]int{2003, 3031, 3072, 0, 0, 0})
	if !ok {
		t.Fatal("two completed items remain after filtering")
	}
	if buildKey(sig) != "3031,3072" {
		t.Errorf("signature = %v", sig)
	}

	// With a nil item set the filter is disabled entirely.
	if _, ok := testAggregator().buildSignature([6]int{2003, 2055, 0, 0, 0, 0}); !ok {
		t.Error("nil item set must accept any non-empty item")
	}
}

func TestTopBuildFrequencyAndTieBreak(t *testing.T) {
	var matches []store.MatchRecord
	add := func(id string, items [6]int) {
		p := mid(517, "Sylas", true)
		p.Items = items
		matches = append(matches, match(id, nil, p))
	}
	add("KR_1", [6]int{3152, 3157, 0, 0, 0, 0})
	add("KR_2", [6]int{3089, 3135, 0, 0, 0, 0})
	add("KR_3", [6]int{3157, 3152, 0, 0, 0, 0}) // same build, different slots

	summaries := testAggregator().aggregateRole(store.RoleMiddle, matches)
	s, _ := find(summaries, "Sylas")
	if buildKey(s.TopBuild) != "3152,3157" {
		t.Errorf("top build = %v, want the twice-seen signature", s.TopBuild)
	}

	// Frequency tie: the first-encountered signature wins.
	tied := []store.MatchRecord{matches[0], matches[1]}
	summaries = testAggregator().aggregateRole(store.RoleMiddle, tied)
	s, _ = find(summaries, "Sylas")
	if buildKey(s.TopBuild) != "3152,3157" {
		t.Errorf("tie-break build = %v, want the first-encountered signature", s.TopBuild)
	}
}

func TestContextTag(t *testing.T) {
	tests := []struct {
		name string
		snap store.ParticipantSnapshot
		want string
	}{
		{"three tanks", store.ParticipantSnapshot{EnemyTanks: 3, EnemyPhysicalDamage: 100}, TagTankHeavy},
		{"two tanks is not enough", store.ParticipantSnapshot{EnemyTanks: 2, EnemyPhysicalDamage: 50, EnemyMagicDamage: 50}, ""},
		{"physical 60%", store.ParticipantSnapshot{EnemyPhysicalDamage: 60, EnemyMagicDamage: 40}, TagHeavyAD},
		{"magic 75%", store.ParticipantSnapshot{EnemyPhysicalDamage: 25, EnemyMagicDamage: 75}, TagHeavyAP},
		{"even split", store.ParticipantSnapshot{EnemyPhysicalDamage: 50, EnemyMagicDamage: 50}, ""},
		{"no damage data", store.ParticipantSnapshot{}, ""},
		{"tanks outrank damage share", store.ParticipantSnapshot{EnemyTanks: 4, EnemyMagicDamage: 100}, TagTankHeavy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contextTag(tt.snap); got != tt.want {
				t.Errorf("contextTag = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextBuildsNeedSamples(t *testing.T) {
	var matches []store.MatchRecord
	add := func(id string, n int) {
		for i := 0; i < n; i++ {
			p := mid(517, "Sylas", true)
			p.Items = [6]int{3152, 3157, 0, 0, 0, 0}
			p.EnemyTanks = 3
			matches = append(matches, match(fmt.Sprintf("%s_%d", id, i), nil, p))
		}
	}

	add("KR_two", 2)
	summaries := testAggregator().aggregateRole(store.RoleMiddle, matches)
	s, _ := find(summaries, "Sylas")
	if _, ok := s.ContextBuilds[TagTankHeavy]; ok {
		t.Error("two tagged games must not produce a context build")
	}

	add("KR_third", 1)
	summaries = testAggregator().aggregateRole(store.RoleMiddle, matches)
	s, _ = find(summaries, "Sylas")
	build, ok := s.ContextBuilds[TagTankHeavy]
	if !ok {
		t.Fatal("three tagged games must produce a context build")
	}
	if buildKey(build) != "3152,3157" {
		t.Errorf("context build = %v", build)
	}
}

func TestBanOnlyChampionNaming(t *testing.T) {
	names := map[int]string{517: "Sylas"}
	a := NewAggregator(names, nil, true, discard())

	var matches []store.MatchRecord
	for i := 0; i < 10; i++ {
		matches = append(matches, match(fmt.Sprintf("KR_%d", i), []int{517}))
	}

	summaries := a.aggregateRole(store.RoleMiddle, matches)
	if _, ok := find(summaries, "Sylas"); !ok {
		t.Error("banned-only champion should resolve through the name map")
	}
}

func TestBanOnlyChampionNameFromCorpus(t *testing.T) {
	// No metadata feed: the aggregator has no name map at all. Ahri is
	// banned in the mid matches but only ever played top, so her name
	// must come from the stored corpus.
	ahriTop := mid(103, "Ahri", true)
	ahriTop.Role = store.RoleTop

	var matches []store.MatchRecord
	matches = append(matches, match("KR_top", nil, ahriTop))
	for i := 0; i < 9; i++ {
		matches = append(matches, match(fmt.Sprintf("KR_ban_%d", i), []int{103}))
	}

	summaries := testAggregator().aggregateRole(store.RoleMiddle, matches)
	if _, ok := find(summaries, "Ahri"); !ok {
		t.Errorf("banned-only champion should resolve from the corpus, got %v", summaries)
	}
	if _, ok := find(summaries, "Champion_103"); ok {
		t.Error("numeric fallback used despite the name being stored")
	}
}

func TestRolelessPolicy(t *testing.T) {
	roleless := match("KR_roleless", nil, store.ParticipantSnapshot{
		PUUID: "p", Player: "P#KR1", ChampionID: 517, ChampionName: "Sylas",
	})
	played := match("KR_played", nil, mid(517, "Sylas", true))
	matches := []store.MatchRecord{roleless, played}
	current := patch.Version{Major: 14, Minor: 23}

	counting := NewAggregator(nil, nil, true, discard())
	stats := counting.AggregateRegion("kr", matches, current, nil)
	s, _ := find(stats.Season[store.RoleMiddle], "Sylas")
	if s.PickRate != 50.0 {
		t.Errorf("with roleless games counted, pick rate = %v, want 50.0", s.PickRate)
	}

	strict := NewAggregator(nil, nil, false, discard())
	stats = strict.AggregateRegion("kr", matches, current, nil)
	s, _ = find(stats.Season[store.RoleMiddle], "Sylas")
	if s.PickRate != 100.0 {
		t.Errorf("with roleless games excluded, pick rate = %v, want 100.0", s.PickRate)
	}
}

func TestPatchSubset(t *testing.T) {
	onPatch := match("KR_now", nil, mid(517, "Sylas", true))
	stale := match("KR_old", nil, mid(103, "Ahri", true))
	stale.Patch = "14.22"

	a := testAggregator()
	stats := a.AggregateRegion("kr", []store.MatchRecord{onPatch, stale},
		patch.Version{Major: 14, Minor: 23}, nil)

	if _, ok := find(stats.Season[store.RoleMiddle], "Ahri"); !ok {
		t.Error("season table must include every patch")
	}
	if _, ok := find(stats.Patch[store.RoleMiddle], "Ahri"); ok {
		t.Error("patch table must exclude other patches")
	}
	s, ok := find(stats.Patch[store.RoleMiddle], "Sylas")
	if !ok || s.PickRate != 100.0 {
		t.Errorf("patch table should rate against the patch subset only: %+v", s)
	}
}
