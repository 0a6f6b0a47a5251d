package spotify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/service/spotifyapi"
)

type fakeSpotify struct {
	track     *spotifyapi.Track
	trackErr  error
	playlist  *spotifyapi.Playlist
	createErr error
	addErr    error

	createdName string
	createdDesc string
	createdUser string
	createdPub  bool
	addedTo     string
	addedURIs   []string
	addedPos    *int
}

func (f *fakeSpotify) CurrentlyPlaying(_ context.Context, _ string) (*spotifyapi.Track, error) {
	return f.track, f.trackErr
}

func (f *fakeSpotify) CreatePlaylist(_ context.Context, _, userID, name, description string, public bool) (*spotifyapi.Playlist, error) {
	f.createdUser, f.createdName, f.createdDesc, f.createdPub = userID, name, description, public
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.playlist, nil
}

func (f *fakeSpotify) AddTracks(_ context.Context, _, playlistID string, uris []string, position *int) error {
	f.addedTo, f.addedURIs, f.addedPos = playlistID, uris, position
	return f.addErr
}

func newRegistry(t *testing.T, client Client) *component.Registry {
	t.Helper()
	reg := component.NewRegistry()
	require.NoError(t, Register(reg, client))
	return reg
}

func TestRegister(t *testing.T) {
	t.Run("Should register all components under the spotify service", func(t *testing.T) {
		reg := newRegistry(t, &fakeSpotify{})
		for _, lookup := range []func() (*component.Definition, error){
			func() (*component.Definition, error) { return reg.Trigger("track_played") },
			func() (*component.Definition, error) { return reg.Action("track_played") },
			func() (*component.Definition, error) { return reg.Reaction("add_to_playlist") },
			func() (*component.Definition, error) { return reg.Reaction("send_playlist") },
		} {
			def, err := lookup()
			require.NoError(t, err)
			assert.Equal(t, core.ServiceSpotify, def.Service)
		}
	})
}

func TestTrackTrigger(t *testing.T) {
	playing := &spotifyapi.Track{
		ID:     "trk-1",
		Name:   "Harvest Moon",
		Artist: "Neil Young",
		Album:  "Harvest Moon",
		Raw:    `{"id":"trk-1"}`,
	}

	t.Run("Should report the track playing at startup", func(t *testing.T) {
		fake := &fakeSpotify{track: playing}
		trig, err := newTrackTrigger(fake, core.Params{"token": "tok"})
		require.NoError(t, err)

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "trk-1", resp.Fields["track_id"])
		assert.Equal(t, "Harvest Moon", resp.Fields["track_name"])
		assert.Equal(t, "Neil Young", resp.Fields["artist_name"])
		assert.Equal(t, `{"id":"trk-1"}`, resp.Content)
	})

	t.Run("Should stay quiet while the same track keeps playing", func(t *testing.T) {
		fake := &fakeSpotify{track: playing}
		trig, err := newTrackTrigger(fake, core.Params{"token": "tok"})
		require.NoError(t, err)

		_, err = trig.Evaluate(context.Background())
		require.NoError(t, err)

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)

		fake.track = &spotifyapi.Track{ID: "trk-2", Name: "Old Man"}
		resp, err = trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "trk-2", resp.Fields["track_id"])
	})

	t.Run("Should stay quiet while playback is idle", func(t *testing.T) {
		trig, err := newTrackTrigger(&fakeSpotify{}, core.Params{"token": "tok"})
		require.NoError(t, err)
		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("Should fall back to placeholder artist and album", func(t *testing.T) {
		fake := &fakeSpotify{track: &spotifyapi.Track{ID: "trk-3", Name: "Untitled"}}
		trig, err := newTrackTrigger(fake, core.Params{"token": "tok"})
		require.NoError(t, err)

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "Unknown Artist", resp.Fields["artist_name"])
		assert.Equal(t, "Unknown Album", resp.Fields["album_name"])
	})

	t.Run("Should refuse to start without a credential", func(t *testing.T) {
		_, err := newTrackTrigger(&fakeSpotify{}, core.Params{})
		require.ErrorIs(t, err, core.ErrMissingCredential)
	})
}

func TestTrackAction(t *testing.T) {
	newAction := func(t *testing.T, cfg core.Params) component.Action {
		t.Helper()
		def, err := newRegistry(t, &fakeSpotify{}).Action("track_played")
		require.NoError(t, err)
		validated, err := def.ValidateConfig(cfg)
		require.NoError(t, err)
		act, err := def.NewAction(validated)
		require.NoError(t, err)
		return act
	}

	t.Run("Should echo the track fields", func(t *testing.T) {
		act := newAction(t, core.Params{
			"track_id":    "trk-1",
			"track_name":  "Harvest Moon",
			"artist_name": "Neil Young",
		})

		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "trk-1", resp.Fields["track_id"])
		assert.Equal(t, "Neil Young", resp.Fields["artist_name"])
		assert.Equal(t, "", resp.Fields["album_name"])
	})

	t.Run("Should honor the declarative filter", func(t *testing.T) {
		act := newAction(t, core.Params{
			"track_id":    "trk-1",
			"artist_name": "Neil Young",
			"filter": map[string]any{
				"conditions": []any{
					map[string]any{"field": "artist_name", "operator": "equals", "value": "Aphex Twin"},
				},
			},
		})

		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}

func TestAddReaction(t *testing.T) {
	newReaction := func(t *testing.T, fake *fakeSpotify, cfg core.Params) component.Reaction {
		t.Helper()
		def, err := newRegistry(t, fake).Reaction("add_to_playlist")
		require.NoError(t, err)
		validated, err := def.ValidateConfig(cfg)
		require.NoError(t, err)
		rea, err := def.NewReaction(validated)
		require.NoError(t, err)
		return rea
	}

	t.Run("Should add the reported track to the playlist", func(t *testing.T) {
		fake := &fakeSpotify{}
		rea := newReaction(t, fake, core.Params{"token": "tok", "playlist_id": "pl-1", "position": 0})

		resp, err := rea.Execute(context.Background(), &component.ActionResponse{
			Success: true,
			Fields:  core.Params{"track_id": "trk-1"},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "pl-1", fake.addedTo)
		assert.Equal(t, []string{"spotify:track:trk-1"}, fake.addedURIs)
		require.NotNil(t, fake.addedPos)
		assert.Equal(t, 0, *fake.addedPos)
	})

	t.Run("Should append when no position is configured", func(t *testing.T) {
		fake := &fakeSpotify{}
		rea := newReaction(t, fake, core.Params{"token": "tok", "playlist_id": "pl-1"})

		_, err := rea.Execute(context.Background(), &component.ActionResponse{
			Success: true,
			Fields:  core.Params{"track_id": "trk-1"},
		})
		require.NoError(t, err)
		assert.Nil(t, fake.addedPos)
	})

	t.Run("Should fail the result when the action reported no track", func(t *testing.T) {
		fake := &fakeSpotify{}
		rea := newReaction(t, fake, core.Params{"token": "tok", "playlist_id": "pl-1"})

		resp, err := rea.Execute(context.Background(), &component.ActionResponse{Success: true})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.False(t, resp.Success)
		assert.Empty(t, fake.addedTo)
	})

	t.Run("Should surface upstream failures", func(t *testing.T) {
		fake := &fakeSpotify{addErr: core.ErrUpstreamTransient}
		rea := newReaction(t, fake, core.Params{"token": "tok", "playlist_id": "pl-1"})

		_, err := rea.Execute(context.Background(), &component.ActionResponse{
			Success: true,
			Fields:  core.Params{"track_id": "trk-1"},
		})
		require.ErrorIs(t, err, core.ErrUpstreamTransient)
	})
}

func TestPlaylistReaction(t *testing.T) {
	newReaction := func(t *testing.T, fake *fakeSpotify, cfg core.Params) component.Reaction {
		t.Helper()
		def, err := newRegistry(t, fake).Reaction("send_playlist")
		require.NoError(t, err)
		validated, err := def.ValidateConfig(cfg)
		require.NoError(t, err)
		rea, err := def.NewReaction(validated)
		require.NoError(t, err)
		return rea
	}

	t.Run("Should create the playlist and seed the configured tracks", func(t *testing.T) {
		fake := &fakeSpotify{playlist: &spotifyapi.Playlist{ID: "pl-9", Name: "Morning"}}
		rea := newReaction(t, fake, core.Params{
			"token":         "tok",
			"playlist_name": "Morning",
			"user_id":       "u-77",
			"description":   "slow starts",
			"public":        true,
			"track_uris":    []any{"spotify:track:a", "spotify:track:b"},
		})

		resp, err := rea.Execute(context.Background(), &component.ActionResponse{Success: true})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "pl-9", resp.Details["playlist_id"])

		assert.Equal(t, "u-77", fake.createdUser)
		assert.Equal(t, "Morning", fake.createdName)
		assert.Equal(t, "slow starts", fake.createdDesc)
		assert.True(t, fake.createdPub)
		assert.Equal(t, "pl-9", fake.addedTo)
		assert.Equal(t, []string{"spotify:track:a", "spotify:track:b"}, fake.addedURIs)
	})

	t.Run("Should skip seeding when no tracks are configured", func(t *testing.T) {
		fake := &fakeSpotify{playlist: &spotifyapi.Playlist{ID: "pl-9", Name: "Morning"}}
		rea := newReaction(t, fake, core.Params{
			"token":         "tok",
			"playlist_name": "Morning",
			"user_id":       "u-77",
		})

		resp, err := rea.Execute(context.Background(), &component.ActionResponse{Success: true})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Empty(t, fake.addedTo)
	})

	t.Run("Should reject a config without a playlist name", func(t *testing.T) {
		def, err := newRegistry(t, &fakeSpotify{}).Reaction("send_playlist")
		require.NoError(t, err)
		_, err = def.ValidateConfig(core.Params{"token": "tok", "user_id": "u-77"})
		require.ErrorIs(t, err, core.ErrInvalidConfig)
	})
}
