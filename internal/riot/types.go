package riot

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// SummonerResponse represents the response from /lol/summoner/v4/summoners/{id}
type SummonerResponse struct {
	ID    string `json:"id"`
	PUUID string `json:"puuid"`
}

// LeagueTier identifies one of the apex ladder brackets, ordered from most
// to least exclusive.
type LeagueTier string

const (
	TierChallenger  LeagueTier = "CHALLENGER"
	TierGrandmaster LeagueTier = "GRANDMASTER"
	TierMaster      LeagueTier = "MASTER"
)

// LeagueListResponse represents a ladder bracket from
// /lol/league/v4/{bracket}leagues/by-queue/{queue}
type LeagueListResponse struct {
	Tier    string        `json:"tier"`
	Entries []LeagueEntry `json:"entries"`
}

// LeagueEntry is one player on the ladder. Older payloads identify the
// player by summonerId only; newer ones carry the puuid directly.
type LeagueEntry struct {
	PUUID        string `json:"puuid"`
	SummonerID   string `json:"summonerId"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation int64              `json:"gameCreation"`
	GameDuration int                `json:"gameDuration"`
	GameVersion  string             `json:"gameVersion"`
	QueueID      int                `json:"queueId"`
	Participants []MatchParticipant `json:"participants"`
	Teams        []MatchTeam        `json:"teams"`
}

type MatchParticipant struct {
	ParticipantID  int    `json:"participantId"`
	PUUID          string `json:"puuid"`
	RiotIdGameName string `json:"riotIdGameName"`
	RiotIdTagline  string `json:"riotIdTagline"`
	SummonerName   string `json:"summonerName"`
	TeamID         int    `json:"teamId"`
	ChampionID     int    `json:"championId"`
	ChampionName   string `json:"championName"`
	TeamPosition   string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Win            bool   `json:"win"`
	Kills          int    `json:"kills"`
	Deaths         int    `json:"deaths"`
	Assists        int    `json:"assists"`
	Item0          int    `json:"item0"`
	Item1          int    `json:"item1"`
	Item2          int    `json:"item2"`
	Item3          int    `json:"item3"`
	Item4          int    `json:"item4"`
	Item5          int    `json:"item5"`
	Item6          int    `json:"item6"` // Trinket

	PhysicalDamageDealtToChampions int64 `json:"physicalDamageDealtToChampions"`
	MagicDamageDealtToChampions    int64 `json:"magicDamageDealtToChampions"`
	TrueDamageDealtToChampions     int64 `json:"trueDamageDealtToChampions"`
}

type MatchTeam struct {
	TeamID int           `json:"teamId"`
	Win    bool          `json:"win"`
	Bans   []ChampionBan `json:"bans"`
}

// ChampionBan is one ban slot; championId -1 means the slot was skipped.
type ChampionBan struct {
	ChampionID int `json:"championId"`
	PickTurn   int `json:"pickTurn"`
}

// NoBanSentinel is the champion id the API reports for an unused ban slot.
const NoBanSentinel = -1
