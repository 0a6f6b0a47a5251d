// Package spotifyapi is a thin Spotify Web API client covering playback and
// playlist operations. Every call takes the OAuth token resolved for the job
// at hand.
package spotifyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/hookline/hookline/engine/service/upstream"
)

const DefaultBaseURL = "https://api.spotify.com/v1"

// Track is the currently playing item. Artist holds the first listed artist
// and is empty when Spotify reports none.
type Track struct {
	ID     string
	Name   string
	Artist string
	Album  string
	Raw    string
}

// Playlist is the subset of a playlist the components read back.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	http *resty.Client
}

func NewClient() *Client {
	return NewClientWithBaseURL(DefaultBaseURL)
}

// NewClientWithBaseURL exists for tests pointing the client at a local
// stand-in server.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{http: upstream.NewRestClient(baseURL)}
}

// CurrentlyPlaying returns the track playing right now, or nil when playback
// is idle (Spotify answers 204, or 200 with a null item between tracks).
func (c *Client) CurrentlyPlaying(ctx context.Context, token string) (*Track, error) {
	var out struct {
		Item json.RawMessage `json:"item"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/me/player/currently-playing")
	if err != nil {
		return nil, fmt.Errorf("failed to get currently playing track: %w", err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if resp.IsError() {
		return nil, upstream.StatusError("spotify", resp.StatusCode(), resp.Body())
	}
	if len(out.Item) == 0 || string(out.Item) == "null" {
		return nil, nil
	}
	var item struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name string `json:"name"`
		} `json:"album"`
	}
	if err := json.Unmarshal(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to decode currently playing track: %w", err)
	}
	track := &Track{
		ID:    item.ID,
		Name:  item.Name,
		Album: item.Album.Name,
		Raw:   string(out.Item),
	}
	if len(item.Artists) > 0 {
		track.Artist = item.Artists[0].Name
	}
	return track, nil
}

// CreatePlaylist creates a playlist owned by userID. Spotify answers 201.
func (c *Client) CreatePlaylist(ctx context.Context, token, userID, name, description string, public bool) (*Playlist, error) {
	var out Playlist
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]any{"name": name, "description": description, "public": public}).
		SetResult(&out).
		SetPathParam("user_id", userID).
		Post("/users/{user_id}/playlists")
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, upstream.StatusError("spotify", resp.StatusCode(), resp.Body())
	}
	return &out, nil
}

// AddTracks appends track URIs to a playlist, optionally at a fixed
// position. Spotify answers 201 with a snapshot id.
func (c *Client) AddTracks(ctx context.Context, token, playlistID string, uris []string, position *int) error {
	body := map[string]any{"uris": uris}
	if position != nil {
		body["position"] = *position
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetPathParam("playlist_id", playlistID).
		Post("/playlists/{playlist_id}/tracks")
	if err != nil {
		return fmt.Errorf("failed to add tracks to playlist %s: %w", playlistID, err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return upstream.StatusError("spotify", resp.StatusCode(), resp.Body())
	}
	return nil
}

// ListPlaylists returns the user's playlists, first page only.
func (c *Client) ListPlaylists(ctx context.Context, token string) ([]Playlist, error) {
	var out struct {
		Items []Playlist `json:"items"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/me/playlists")
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	if resp.IsError() {
		return nil, upstream.StatusError("spotify", resp.StatusCode(), resp.Body())
	}
	return out.Items, nil
}
