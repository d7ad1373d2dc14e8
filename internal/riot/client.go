// Package riot is a rate-limited client for the ranked-ladder, account and
// match endpoints of the Riot API.
package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	// Conservative dev-key limits, applied independently per host.
	requestsPerSecond = 15 // actual: 20
	requestsPer2Min   = 90 // actual: 100

	rankedSoloQueue   = "RANKED_SOLO_5x5"
	rankedSoloQueueID = 420

	// Lightweight endpoint used to probe key validity (LoL Status API).
	statusEndpoint = "/lol/status/v4/platform-data"
)

// ErrNotFound is returned when the API answers 404: the player, match or
// account does not exist. Callers treat it as an empty result.
var ErrNotFound = errors.New("riot: not found")

// ErrInvalidKey is returned by ValidateKey when the API rejects the key
// outright (401/403).
var ErrInvalidKey = errors.New("riot: api key rejected")

// PlatformHost returns the platform-routed host (league endpoints).
func PlatformHost(platform string) string {
	return fmt.Sprintf("https://%s.api.riotgames.com", platform)
}

// ClusterHost returns the regional cluster host (match and account
// endpoints) serving the given platform.
func ClusterHost(platform string) string {
	var cluster string
	switch platform {
	case "na1", "br1", "la1", "la2", "oc1":
		cluster = "americas"
	case "kr", "jp1":
		cluster = "asia"
	case "euw1", "eun1", "tr1", "ru":
		cluster = "europe"
	case "ph2", "sg2", "th2", "tw2", "vn2":
		cluster = "sea"
	default:
		cluster = "americas"
	}
	return fmt.Sprintf("https://%s.api.riotgames.com", cluster)
}

// hostWindows tracks request timestamps for one host. Each host gets its
// own pair of windows so throttling on one region never gates another.
type hostWindows struct {
	short []time.Time // last second
	long  []time.Time // last 2 minutes
}

// Client is a rate-limited Riot API client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string // overrides host resolution when set (tests)
	log        *slog.Logger

	mu      sync.Mutex
	windows map[string]*hostWindows
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL routes every request to the given URL regardless of
// platform, useful for pointing the client at a test server.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client authenticated with the given API key.
func NewClient(apiKey string, log *slog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("riot: API key is required")
	}

	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:     log,
		windows: make(map[string]*hostWindows),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveHost(host string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return host
}

// waitForRateLimit blocks until a request may go out to host.
func (c *Client) waitForRateLimit(ctx context.Context, host string) error {
	for {
		c.mu.Lock()
		w, ok := c.windows[host]
		if !ok {
			w = &hostWindows{}
			c.windows[host] = w
		}

		now := time.Now()
		w.short = trimBefore(w.short, now.Add(-1*time.Second))
		w.long = trimBefore(w.long, now.Add(-2*time.Minute))

		var wait time.Duration
		switch {
		case len(w.short) >= requestsPerSecond:
			wait = w.short[0].Add(time.Second).Sub(now) + 100*time.Millisecond
		case len(w.long) >= requestsPer2Min:
			wait = w.long[0].Add(2*time.Minute).Sub(now) + 100*time.Millisecond
		default:
			w.short = append(w.short, now)
			w.long = append(w.long, now)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		c.log.Debug("rate limit window full, waiting", "host", host, "wait", wait)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// doRequest performs a rate-limited GET against host+path and decodes the
// JSON response into result. 429 responses are retried indefinitely after
// the server-mandated backoff; 404 maps to ErrNotFound; any other non-200
// status is an error.
func (c *Client) doRequest(ctx context.Context, host, path string, result any) error {
	for {
		if err := c.waitForRateLimit(ctx, host); err != nil {
			return err
		}

		reqURL := c.resolveHost(host) + path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Riot-Token", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := 10
			if v := resp.Header.Get("Retry-After"); v != "" {
				if n, perr := strconv.Atoi(v); perr == nil {
					retryAfter = n
				}
			}
			resp.Body.Close()
			wait := time.Duration(retryAfter+1) * time.Second
			c.log.Warn("throttled by upstream, backing off", "host", host, "wait", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return ErrNotFound
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("riot: %s returned status %d", path, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("riot: decoding %s: %w", path, err)
		}
		return nil
	}
}

// ValidateKey probes a status endpoint on the platform to confirm the
// key is usable before a run commits to a full crawl. A 401/403 answer
// returns ErrInvalidKey; any other failure means validity is unknown.
// The probe goes through the same per-host limiter as real requests.
func (c *Client) ValidateKey(ctx context.Context, platform string) error {
	host := PlatformHost(platform)
	if err := c.waitForRateLimit(ctx, host); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveHost(host)+statusEndpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("riot: key probe failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidKey
	default:
		return fmt.Errorf("riot: key probe returned status %d", resp.StatusCode)
	}
}

// GetLeagueByQueue fetches one apex ladder bracket for the platform's
// ranked solo queue.
func (c *Client) GetLeagueByQueue(ctx context.Context, platform string, tier LeagueTier) (*LeagueListResponse, error) {
	var bracket string
	switch tier {
	case TierChallenger:
		bracket = "challengerleagues"
	case TierGrandmaster:
		bracket = "grandmasterleagues"
	case TierMaster:
		bracket = "masterleagues"
	default:
		return nil, fmt.Errorf("riot: unknown league tier %q", tier)
	}

	path := fmt.Sprintf("/lol/league/v4/%s/by-queue/%s", bracket, rankedSoloQueue)
	var league LeagueListResponse
	if err := c.doRequest(ctx, PlatformHost(platform), path, &league); err != nil {
		return nil, err
	}
	return &league, nil
}

// GetSummonerByID resolves an encrypted summoner id to its puuid, for
// ladder entries that predate puuid-carrying payloads.
func (c *Client) GetSummonerByID(ctx context.Context, platform, summonerID string) (*SummonerResponse, error) {
	path := fmt.Sprintf("/lol/summoner/v4/summoners/%s", url.PathEscape(summonerID))

	var summoner SummonerResponse
	if err := c.doRequest(ctx, PlatformHost(platform), path, &summoner); err != nil {
		return nil, err
	}
	return &summoner, nil
}

// GetMatchHistory fetches the player's most recent ranked solo queue
// match IDs, newest first.
func (c *Client) GetMatchHistory(ctx context.Context, platform, puuid string, count int) ([]string, error) {
	path := fmt.Sprintf("/lol/match/v5/matches/by-puuid/%s/ids?queue=%d&count=%d",
		puuid, rankedSoloQueueID, count)

	var matchIDs []string
	if err := c.doRequest(ctx, ClusterHost(platform), path, &matchIDs); err != nil {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatch fetches full match details.
func (c *Client) GetMatch(ctx context.Context, platform, matchID string) (*MatchResponse, error) {
	path := fmt.Sprintf("/lol/match/v5/matches/%s", matchID)

	var match MatchResponse
	if err := c.doRequest(ctx, ClusterHost(platform), path, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetAccountByRiotID resolves a "gameName#tagLine" handle to an account.
func (c *Client) GetAccountByRiotID(ctx context.Context, platform, gameName, tagLine string) (*AccountResponse, error) {
	path := fmt.Sprintf("/riot/account/v1/accounts/by-riot-id/%s/%s",
		url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.doRequest(ctx, ClusterHost(platform), path, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
