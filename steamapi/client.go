// Package steamapi fetches public player profiles from the Steam Web API.
package steamapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	sa "github.com/dzteam/steamauth"
)

// DefaultBaseURL is the Steam Web API host.
const DefaultBaseURL = "https://api.steampowered.com"

// Client fetches player summaries; it implements steamauth.ProfileFetcher.
type Client struct {
	// Key is the Steam Web API key. Falls back to STEAM_API_KEY.
	Key string

	// BaseURL can be overridden for testing.
	BaseURL string

	// HTTPClient defaults to a client with a 5 second timeout. A slow
	// profile API degrades the login, it must not stall it.
	HTTPClient *http.Client
}

func NewClient(key string) *Client {
	if key == "" {
		key = strings.TrimSpace(os.Getenv("STEAM_API_KEY"))
	}
	return &Client{
		Key:        key,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// playerSummariesResponse mirrors the GetPlayerSummaries v0002 shape.
type playerSummariesResponse struct {
	Response struct {
		Players []struct {
			PersonaName string `json:"personaname"`
			RealName    string `json:"realname"`
			AvatarFull  string `json:"avatarfull"`
			ProfileURL  string `json:"profileurl"`
		} `json:"players"`
	} `json:"response"`
}

// Fetch returns the public profile for a SteamID. Any transport, status or
// shape problem is an error; the caller decides whether that is fatal
// (steamauth degrades to the bare identifier).
func (c *Client) Fetch(ctx context.Context, id sa.SteamID) (*sa.ProfileSnapshot, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	q := url.Values{}
	q.Set("key", c.Key)
	q.Set("steamids", string(id))
	endpoint := base + "/ISteamUser/GetPlayerSummaries/v0002/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting player summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("player summary request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading response: %w", err)
	}

	var parsed playerSummariesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse player summary: %w", err)
	}
	if len(parsed.Response.Players) == 0 {
		return nil, fmt.Errorf("no player summary for steamid %s", id)
	}

	p := parsed.Response.Players[0]
	return &sa.ProfileSnapshot{
		PersonaName: p.PersonaName,
		RealName:    p.RealName,
		AvatarURL:   p.AvatarFull,
		ProfileURL:  p.ProfileURL,
	}, nil
}
