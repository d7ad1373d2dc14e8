// Package ddragon fetches static game metadata (versions, champions,
// items) from the Data Dragon CDN.
package ddragon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://ddragon.leagueoflegends.com"

	summonersRiftMap     = "11"
	completedItemMinGold = 1000
)

// Champion is the static metadata the pipeline needs for one champion.
type Champion struct {
	Key  int    // numeric id, matches championId in match payloads
	ID   string // internal name, matches championName in match payloads
	Name string // display name
	Tank bool   // tagged Tank by the feed
}

// Client reads the Data Dragon static feed. All failures are returned to
// the caller, which treats the feed as optional.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a custom feed, useful for testing.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

func NewClient(log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ddragon: fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ddragon: %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ddragon: decoding %s: %w", path, err)
	}
	return nil
}

// LatestVersion returns the newest game version the feed knows about.
func (c *Client) LatestVersion(ctx context.Context) (string, error) {
	var versions []string
	if err := c.get(ctx, "/api/versions.json", &versions); err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("ddragon: empty version list")
	}
	return versions[0], nil
}

type championDTO struct {
	Key  string   `json:"key"`
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// Champions fetches champion metadata for the given full version, keyed
// by numeric champion id.
func (c *Client) Champions(ctx context.Context, version string) (map[int]Champion, error) {
	var payload struct {
		Data map[string]championDTO `json:"data"`
	}
	path := fmt.Sprintf("/cdn/%s/data/en_US/champion.json", version)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}

	champions := make(map[int]Champion, len(payload.Data))
	for _, dto := range payload.Data {
		key, err := strconv.Atoi(dto.Key)
		if err != nil {
			c.log.Warn("champion with non-numeric key skipped", "id", dto.ID, "key", dto.Key)
			continue
		}
		ch := Champion{Key: key, ID: dto.ID, Name: dto.Name}
		for _, tag := range dto.Tags {
			if tag == "Tank" {
				ch.Tank = true
				break
			}
		}
		champions[key] = ch
	}
	return champions, nil
}

type itemDTO struct {
	Name string   `json:"name"`
	Into []string `json:"into"`
	Gold struct {
		Total       int  `json:"total"`
		Purchasable bool `json:"purchasable"`
	} `json:"gold"`
	Maps map[string]bool `json:"maps"`
}

// CompletedItems fetches the set of item ids considered finished builds:
// nothing to build into, meaningfully expensive, purchasable, and
// available on Summoner's Rift.
func (c *Client) CompletedItems(ctx context.Context, version string) (map[int]bool, error) {
	var payload struct {
		Data map[string]itemDTO `json:"data"`
	}
	path := fmt.Sprintf("/cdn/%s/data/en_US/item.json", version)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}

	items := make(map[int]bool)
	for rawID, dto := range payload.Data {
		id, err := strconv.Atoi(rawID)
		if err != nil {
			continue
		}
		if len(dto.Into) > 0 {
			continue
		}
		if dto.Gold.Total < completedItemMinGold || !dto.Gold.Purchasable {
			continue
		}
		if !dto.Maps[summonersRiftMap] {
			continue
		}
		items[id] = true
	}
	return items, nil
}
