// Package spotify provides the track-played trigger/action pair and the
// playlist reactions backed by the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"time"

	"github.com/hookline/hookline/engine/catalog/shared"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/schema"
	"github.com/hookline/hookline/engine/service/spotifyapi"
)

// now is swapped by tests.
var now = time.Now

// Client is the slice of the Spotify adapter the components consume.
type Client interface {
	CurrentlyPlaying(ctx context.Context, token string) (*spotifyapi.Track, error)
	CreatePlaylist(ctx context.Context, token, userID, name, description string, public bool) (*spotifyapi.Playlist, error)
	AddTracks(ctx context.Context, token, playlistID string, uris []string, position *int) error
}

var trackFields = schema.Schema{
	"track_id":    {Type: schema.TypeString},
	"track_name":  {Type: schema.TypeString},
	"artist_name": {Type: schema.TypeString},
	"album_name":  {Type: schema.TypeString},
	"content":     {Type: schema.TypeString},
}

// Register adds the Spotify components to the registry.
func Register(reg *component.Registry, client Client) error {
	defs := []*component.Definition{
		{
			Name:    "track_played",
			Kind:    core.KindTrigger,
			Service: core.ServiceSpotify,
			NewTrigger: func(cfg core.Params) (component.Trigger, error) {
				return newTrackTrigger(client, cfg)
			},
		},
		{
			Name:         "track_played",
			Kind:         core.KindAction,
			Service:      core.ServiceSpotify,
			ConfigSchema: trackFields,
			NewAction:    newTrackAction,
		},
		{
			Name:    "add_to_playlist",
			Kind:    core.KindReaction,
			Service: core.ServiceSpotify,
			ConfigSchema: schema.Schema{
				"playlist_id": {Type: schema.TypeString, Required: true},
				"position":    {Type: schema.TypeInt, Min: schema.MinValue(0), Description: "insert position, append when absent"},
			},
			NewReaction: func(cfg core.Params) (component.Reaction, error) {
				return newAddReaction(client, cfg)
			},
		},
		{
			Name:    "send_playlist",
			Kind:    core.KindReaction,
			Service: core.ServiceSpotify,
			ConfigSchema: schema.Schema{
				"playlist_name": {Type: schema.TypeString, Required: true},
				"user_id":       {Type: schema.TypeString, Required: true},
				"description":   {Type: schema.TypeString, Default: ""},
				"public":        {Type: schema.TypeBool, Default: false},
				"track_uris":    {Type: schema.TypeStringList, Description: "tracks to add after creation"},
			},
			NewReaction: func(cfg core.Params) (component.Reaction, error) {
				return newPlaylistReaction(client, cfg)
			},
		},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// track_played trigger
// -----------------------------------------------------------------------------

// trackTrigger fires whenever the currently playing track changes. The
// cursor is the last seen track ID, so the first evaluation reports whatever
// is playing at startup.
type trackTrigger struct {
	client      Client
	token       string
	lastTrackID string
}

func newTrackTrigger(client Client, cfg core.Params) (*trackTrigger, error) {
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	return &trackTrigger{client: client, token: token}, nil
}

func (t *trackTrigger) Evaluate(ctx context.Context) (*component.TriggerResponse, error) {
	track, err := t.client.CurrentlyPlaying(ctx, t.token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch currently playing track: %w", err)
	}
	if track == nil || track.ID == t.lastTrackID {
		return nil, nil
	}
	t.lastTrackID = track.ID
	artist := track.Artist
	if artist == "" {
		artist = "Unknown Artist"
	}
	album := track.Album
	if album == "" {
		album = "Unknown Album"
	}
	return &component.TriggerResponse{
		TriggeredAt: shared.Epoch(now()),
		Content:     track.Raw,
		Details:     core.Params{"event": "track_played"},
		Fields: core.Params{
			"track_id":    track.ID,
			"track_name":  track.Name,
			"artist_name": artist,
			"album_name":  album,
		},
	}, nil
}

// -----------------------------------------------------------------------------
// track_played action
// -----------------------------------------------------------------------------

type trackAction struct {
	gate *shared.Gate
	data core.Params
}

func newTrackAction(cfg core.Params) (component.Action, error) {
	gate, err := shared.GateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &trackAction{gate: gate, data: cfg}, nil
}

func (a *trackAction) Execute(_ context.Context) (*component.ActionResponse, error) {
	ok, err := a.gate.Accept(a.data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	str := func(key string) string {
		s, _ := a.data.Prop(key).(string)
		return s
	}
	return &component.ActionResponse{
		Success: true,
		Details: core.Params{"event": "track_played"},
		Fields: core.Params{
			"track_id":    str("track_id"),
			"track_name":  str("track_name"),
			"artist_name": str("artist_name"),
			"album_name":  str("album_name"),
			"content":     str("content"),
		},
	}, nil
}

// -----------------------------------------------------------------------------
// add_to_playlist reaction
// -----------------------------------------------------------------------------

// addReaction appends the track reported by the action to a fixed playlist.
type addReaction struct {
	client Client
	token  string
	cfg    core.Params
}

func newAddReaction(client Client, cfg core.Params) (*addReaction, error) {
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	return &addReaction{client: client, token: token, cfg: cfg}, nil
}

func (r *addReaction) Execute(ctx context.Context, result *component.ActionResponse) (*component.ReactionResponse, error) {
	resultParams := result.AsParams()
	trackID, _ := resultParams.Prop("track_id").(string)
	if trackID == "" {
		return &component.ReactionResponse{
			Success: false,
			Details: core.Params{"error": "no track id in the action result"},
		}, nil
	}
	playlistID, _ := r.cfg.Prop("playlist_id").(string)
	var position *int
	if v, ok := r.cfg.Prop("position").(int); ok {
		position = &v
	}
	uri := "spotify:track:" + trackID
	if err := r.client.AddTracks(ctx, r.token, playlistID, []string{uri}, position); err != nil {
		return nil, fmt.Errorf("failed to add track to playlist %s: %w", playlistID, err)
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{
			"message":     "track added to playlist",
			"track_id":    trackID,
			"playlist_id": playlistID,
		},
	}, nil
}

// -----------------------------------------------------------------------------
// send_playlist reaction
// -----------------------------------------------------------------------------

// playlistReaction creates a playlist and optionally seeds it with tracks.
type playlistReaction struct {
	client Client
	token  string
	cfg    core.Params
}

func newPlaylistReaction(client Client, cfg core.Params) (*playlistReaction, error) {
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	return &playlistReaction{client: client, token: token, cfg: cfg}, nil
}

func (r *playlistReaction) Execute(ctx context.Context, _ *component.ActionResponse) (*component.ReactionResponse, error) {
	str := func(key string) string {
		s, _ := r.cfg.Prop(key).(string)
		return s
	}
	public, _ := r.cfg.Prop("public").(bool)
	playlist, err := r.client.CreatePlaylist(ctx, r.token, str("user_id"), str("playlist_name"), str("description"), public)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	if uris, _ := r.cfg.Prop("track_uris").([]string); len(uris) > 0 {
		if err := r.client.AddTracks(ctx, r.token, playlist.ID, uris, nil); err != nil {
			return nil, fmt.Errorf("failed to seed playlist %s: %w", playlist.ID, err)
		}
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{
			"message":       "playlist created",
			"playlist_id":   playlist.ID,
			"playlist_name": playlist.Name,
		},
	}, nil
}
