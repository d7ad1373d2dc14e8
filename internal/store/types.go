package store

// Canonical role labels as reported by the match API. A participant with
// any other label is stored with an empty role and excluded from
// per-role aggregation.
const (
	RoleTop     = "TOP"
	RoleJungle  = "JUNGLE"
	RoleMiddle  = "MIDDLE"
	RoleBottom  = "BOTTOM"
	RoleUtility = "UTILITY"
)

// Roles lists the canonical roles in draft order.
var Roles = []string{RoleTop, RoleJungle, RoleMiddle, RoleBottom, RoleUtility}

// ValidRole reports whether role is one of the five canonical labels.
func ValidRole(role string) bool {
	switch role {
	case RoleTop, RoleJungle, RoleMiddle, RoleBottom, RoleUtility:
		return true
	}
	return false
}

// ParticipantSnapshot is the slimmed per-player record persisted for each
// match. Enemy damage totals and tank count are precomputed at ingest so
// aggregation never needs the raw payload again.
type ParticipantSnapshot struct {
	PUUID        string
	Player       string // "game#tag", legacy summoner name, or "Unknown"
	Role         string // canonical role or "" when unassigned
	ChampionID   int
	ChampionName string
	Win          bool
	Kills        int
	Deaths       int
	Assists      int
	Items        [6]int // inventory slots, 0 = empty

	EnemyPhysicalDamage int64
	EnemyMagicDamage    int64
	EnemyTanks          int
}

// MatchRecord is one persisted ranked match, unique per (region, matchID).
type MatchRecord struct {
	Region       string
	MatchID      string
	Patch        string // short "major.minor" form
	GameCreation int64
	Bans         []int // champion ids, skipped slots excluded
	Participants []ParticipantSnapshot
}
