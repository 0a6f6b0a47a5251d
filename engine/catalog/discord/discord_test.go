package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
)

// fakeSource mimics the gateway drain semantics: scanned events that do not
// match are dropped.
type fakeSource struct {
	events  map[string][]map[string]any
	pollErr error
	closed  bool
}

func (f *fakeSource) Poll(_ context.Context, eventType string, match func(map[string]any) bool) (map[string]any, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	queue := f.events[eventType]
	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]
		if match(ev) {
			f.events[eventType] = queue
			return ev, nil
		}
	}
	f.events[eventType] = queue
	return nil, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type fakeSender struct {
	sendErr error
	callErr error

	sentChannel, sentContent                    string
	editedChannel, editedMessage, editedContent string
	deletedChannel, deletedMessage              string
	reactChannel, reactMessage, reactEmoji      string
}

func (f *fakeSender) SendMessage(_ context.Context, channelID, content string) (string, error) {
	f.sentChannel, f.sentContent = channelID, content
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "m-1", nil
}

func (f *fakeSender) EditMessage(_ context.Context, channelID, messageID, content string) error {
	f.editedChannel, f.editedMessage, f.editedContent = channelID, messageID, content
	return f.callErr
}

func (f *fakeSender) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.deletedChannel, f.deletedMessage = channelID, messageID
	return f.callErr
}

func (f *fakeSender) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	f.reactChannel, f.reactMessage, f.reactEmoji = channelID, messageID, emoji
	return f.callErr
}

func newRegistry(t *testing.T, dial Dialer, sender Sender) *component.Registry {
	t.Helper()
	reg := component.NewRegistry()
	require.NoError(t, Register(reg, dial, sender))
	return reg
}

func newTrigger(t *testing.T, reg *component.Registry, name string, cfg core.Params) component.Trigger {
	t.Helper()
	def, err := reg.Trigger(name)
	require.NoError(t, err)
	validated, err := def.ValidateConfig(cfg)
	require.NoError(t, err)
	trig, err := def.NewTrigger(validated)
	require.NoError(t, err)
	return trig
}

func TestRegister(t *testing.T) {
	t.Run("Should register every component under the discord service", func(t *testing.T) {
		reg := newRegistry(t, nil, &fakeSender{})
		triggers := []string{
			"new_message_in_channel", "message_updated", "channel_created",
			"channel_updated", "channel_deleted", "guild_role_added",
			"member_removed", "user_joins_guild",
		}
		for _, name := range triggers {
			def, err := reg.Trigger(name)
			require.NoError(t, err, name)
			assert.Equal(t, core.ServiceDiscord, def.Service, name)
		}
		actions := []string{
			"new_message_in_channel", "message_updated", "channel_created",
			"channel_updated", "channel_deleted", "guild_role_added",
			"member_removed", "user_joins_guild",
		}
		for _, name := range actions {
			_, err := reg.Action(name)
			assert.NoError(t, err, name)
		}
		for _, name := range []string{"send_message", "edit_message", "delete_message", "add_reaction"} {
			_, err := reg.Reaction(name)
			assert.NoError(t, err, name)
		}
	})
}

func TestGatewayTriggers(t *testing.T) {
	dialerFor := func(src EventSource, count *int) Dialer {
		return func() (EventSource, error) {
			*count++
			return src, nil
		}
	}

	t.Run("Should report a new message in the watched channel", func(t *testing.T) {
		src := &fakeSource{events: map[string][]map[string]any{
			"MESSAGE_CREATE": {
				{"channel_id": "c-2", "content": "elsewhere"},
				{"channel_id": "c-1", "content": "hi there", "author": map[string]any{"username": "ada"}},
			},
		}}
		var dials int
		reg := newRegistry(t, dialerFor(src, &dials), &fakeSender{})
		trig := newTrigger(t, reg, "new_message_in_channel", core.Params{"channel_id": "c-1"})

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "hi there", resp.Content)
		assert.Equal(t, "c-1", resp.Fields["channel_id"])
		assert.Equal(t, map[string]any{"username": "ada"}, resp.Fields["author"])
		assert.Equal(t, "new_message", resp.Details["event"])
		assert.Equal(t, "c-1", resp.Details["channel_id"])
	})

	t.Run("Should stay quiet while no buffered event matches", func(t *testing.T) {
		src := &fakeSource{events: map[string][]map[string]any{
			"MESSAGE_CREATE": {{"channel_id": "c-2", "content": "elsewhere"}},
		}}
		var dials int
		reg := newRegistry(t, dialerFor(src, &dials), &fakeSender{})
		trig := newTrigger(t, reg, "new_message_in_channel", core.Params{"channel_id": "c-1"})

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("Should dial one session and reuse it", func(t *testing.T) {
		src := &fakeSource{events: map[string][]map[string]any{}}
		var dials int
		reg := newRegistry(t, dialerFor(src, &dials), &fakeSender{})
		trig := newTrigger(t, reg, "new_message_in_channel", core.Params{"channel_id": "c-1"})

		_, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		_, err = trig.Evaluate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, dials)
	})

	t.Run("Should surface dial failures", func(t *testing.T) {
		dial := func() (EventSource, error) { return nil, errors.New("handshake rejected") }
		reg := newRegistry(t, dial, &fakeSender{})
		trig := newTrigger(t, reg, "new_message_in_channel", core.Params{"channel_id": "c-1"})

		_, err := trig.Evaluate(context.Background())
		require.ErrorContains(t, err, "failed to open gateway session")
	})

	t.Run("Should report created channels in the watched guild", func(t *testing.T) {
		src := &fakeSource{events: map[string][]map[string]any{
			"CHANNEL_CREATE": {{"guild_id": "g-1", "id": "ch-9", "name": "general"}},
		}}
		var dials int
		reg := newRegistry(t, dialerFor(src, &dials), &fakeSender{})
		trig := newTrigger(t, reg, "channel_created", core.Params{"guild_id": "g-1"})

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "ch-9", resp.Fields["channel_id"])
		assert.Equal(t, "general", resp.Fields["channel_name"])
		assert.Contains(t, resp.Content, `"name":"general"`)
		assert.Equal(t, "channel_created", resp.Details["event"])
		assert.Equal(t, "g-1", resp.Details["guild_id"])
	})

	t.Run("Should skip role events with incomplete payloads", func(t *testing.T) {
		src := &fakeSource{events: map[string][]map[string]any{
			"GUILD_ROLE_CREATE": {
				{"guild_id": "g-1", "role": map[string]any{"id": "r-1"}},
				{"guild_id": "g-1", "role": map[string]any{"id": "r-2", "name": "mods"}},
			},
		}}
		var dials int
		reg := newRegistry(t, dialerFor(src, &dials), &fakeSender{})
		trig := newTrigger(t, reg, "guild_role_added", core.Params{"guild_id": "g-1"})

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "r-2", resp.Fields["role_id"])
		assert.Equal(t, "mods", resp.Fields["role_name"])
	})

	t.Run("Should report members joining the guild", func(t *testing.T) {
		src := &fakeSource{events: map[string][]map[string]any{
			"GUILD_MEMBER_ADD": {{
				"guild_id":  "g-1",
				"joined_at": "2026-08-25T12:00:00Z",
				"user":      map[string]any{"id": "u-5", "username": "ada"},
			}},
		}}
		var dials int
		reg := newRegistry(t, dialerFor(src, &dials), &fakeSender{})
		trig := newTrigger(t, reg, "user_joins_guild", core.Params{"guild_id": "g-1"})

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "u-5", resp.Fields["user_id"])
		assert.Equal(t, "ada", resp.Fields["user_name"])
		assert.Equal(t, "2026-08-25T12:00:00Z", resp.Fields["joined_at"])
		assert.Equal(t, "g-1", resp.Fields["guild_id"])
	})

	t.Run("Should close the dialed session", func(t *testing.T) {
		src := &fakeSource{events: map[string][]map[string]any{}}
		var dials int
		reg := newRegistry(t, dialerFor(src, &dials), &fakeSender{})
		trig := newTrigger(t, reg, "member_removed", core.Params{"guild_id": "g-1"})

		closer, ok := trig.(interface{ Close() error })
		require.True(t, ok)
		require.NoError(t, closer.Close())
		assert.False(t, src.closed)

		_, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NoError(t, closer.Close())
		assert.True(t, src.closed)
	})
}

func TestEchoActions(t *testing.T) {
	newAction := func(t *testing.T, name string, cfg core.Params) component.Action {
		t.Helper()
		reg := newRegistry(t, nil, &fakeSender{})
		def, err := reg.Action(name)
		require.NoError(t, err)
		validated, err := def.ValidateConfig(cfg)
		require.NoError(t, err)
		act, err := def.NewAction(validated)
		require.NoError(t, err)
		return act
	}

	t.Run("Should echo the projected message fields", func(t *testing.T) {
		author := map[string]any{"username": "ada"}
		act := newAction(t, "new_message_in_channel", core.Params{
			"content":    "hi there",
			"author":     author,
			"channel_id": "c-1",
		})

		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "hi there", resp.Fields["content"])
		assert.Equal(t, author, resp.Fields["author"])
		assert.Equal(t, "new_message", resp.Details["event"])
	})

	t.Run("Should leave absent optional fields out of the response", func(t *testing.T) {
		act := newAction(t, "channel_deleted", core.Params{"channel_name": "general"})

		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "general", resp.Fields["channel_name"])
		assert.NotContains(t, resp.Fields, "content")
	})

	t.Run("Should reject an event missing a required field", func(t *testing.T) {
		reg := newRegistry(t, nil, &fakeSender{})
		def, err := reg.Action("message_updated")
		require.NoError(t, err)
		_, err = def.ValidateConfig(core.Params{"channel_id": "c-1", "author": map[string]any{}})
		require.ErrorIs(t, err, core.ErrInvalidConfig)
	})

	t.Run("Should honor the declarative filter", func(t *testing.T) {
		act := newAction(t, "member_removed", core.Params{
			"user_id":   "u-5",
			"user_name": "ada",
			"filter": map[string]any{
				"conditions": []any{
					map[string]any{"field": "user_name", "operator": "equals", "value": "grace"},
				},
			},
		})

		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}

func TestReactions(t *testing.T) {
	newReaction := func(t *testing.T, sender Sender, name string, cfg core.Params) component.Reaction {
		t.Helper()
		reg := newRegistry(t, nil, sender)
		def, err := reg.Reaction(name)
		require.NoError(t, err)
		validated, err := def.ValidateConfig(cfg)
		require.NoError(t, err)
		rea, err := def.NewReaction(validated)
		require.NoError(t, err)
		return rea
	}
	ok := &component.ActionResponse{Success: true}

	t.Run("Should send the configured message", func(t *testing.T) {
		sender := &fakeSender{}
		rea := newReaction(t, sender, "send_message", core.Params{"channel_id": "c-1", "content": "deploy done"})

		resp, err := rea.Execute(context.Background(), ok)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "m-1", resp.Details["message_id"])
		assert.Equal(t, "c-1", sender.sentChannel)
		assert.Equal(t, "deploy done", sender.sentContent)
	})

	t.Run("Should edit the targeted message", func(t *testing.T) {
		sender := &fakeSender{}
		rea := newReaction(t, sender, "edit_message", core.Params{
			"channel_id": "c-1", "message_id": "m-7", "content": "edited",
		})

		resp, err := rea.Execute(context.Background(), ok)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "m-7", sender.editedMessage)
		assert.Equal(t, "edited", sender.editedContent)
	})

	t.Run("Should delete the targeted message", func(t *testing.T) {
		sender := &fakeSender{}
		rea := newReaction(t, sender, "delete_message", core.Params{"channel_id": "c-1", "message_id": "m-7"})

		resp, err := rea.Execute(context.Background(), ok)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "c-1", sender.deletedChannel)
		assert.Equal(t, "m-7", sender.deletedMessage)
	})

	t.Run("Should add the configured reaction", func(t *testing.T) {
		sender := &fakeSender{}
		rea := newReaction(t, sender, "add_reaction", core.Params{
			"channel_id": "c-1", "message_id": "m-7", "emoji": "👍",
		})

		resp, err := rea.Execute(context.Background(), ok)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "👍", sender.reactEmoji)
	})

	t.Run("Should surface send failures", func(t *testing.T) {
		sender := &fakeSender{sendErr: core.ErrUpstreamTransient}
		rea := newReaction(t, sender, "send_message", core.Params{"channel_id": "c-1", "content": "x"})

		_, err := rea.Execute(context.Background(), ok)
		require.ErrorIs(t, err, core.ErrUpstreamTransient)
	})
}
