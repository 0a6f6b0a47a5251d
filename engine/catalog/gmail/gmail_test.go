package gmail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/service/googleapi"
)

type fakeMail struct {
	refs    []googleapi.MessageRef
	msg     *googleapi.Message
	listErr error
	getErr  error
	sendErr error

	queries []string
	fetched []string
	sent    *googleapi.OutgoingMessage
	sentTok string
}

func (f *fakeMail) ListMessages(_ context.Context, _ string, query string) ([]googleapi.MessageRef, error) {
	f.queries = append(f.queries, query)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeMail) GetMessage(_ context.Context, _ string, id string) (*googleapi.Message, error) {
	f.fetched = append(f.fetched, id)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.msg, nil
}

func (f *fakeMail) SendMessage(_ context.Context, token string, msg *googleapi.OutgoingMessage) (*googleapi.SendResult, error) {
	f.sentTok = token
	f.sent = msg
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &googleapi.SendResult{ID: "m-42", ThreadID: "t-42"}, nil
}

// stubClock pins the package clock to a mutable instant.
func stubClock(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	current := start
	now = func() time.Time { return current }
	t.Cleanup(func() { now = time.Now })
	return &current
}

func newRegistry(t *testing.T, client Client) *component.Registry {
	t.Helper()
	reg := component.NewRegistry()
	require.NoError(t, Register(reg, client))
	return reg
}

func event() core.Params {
	return core.Params{
		"message_id":  "m-1",
		"sender":      "Ada Lovelace <ada@example.test>",
		"subject":     "Release 1.2 shipped",
		"snippet":     "the release is out",
		"received_at": "1756000000500",
	}
}

func TestRegister(t *testing.T) {
	t.Run("Should register all components under the google service", func(t *testing.T) {
		reg := newRegistry(t, &fakeMail{})

		trig, err := reg.Trigger("gmail_receive")
		require.NoError(t, err)
		assert.Equal(t, core.ServiceGoogle, trig.Service)

		act, err := reg.Action("gmail_receive")
		require.NoError(t, err)
		assert.Equal(t, core.ServiceGoogle, act.Service)

		rea, err := reg.Reaction("send_email")
		require.NoError(t, err)
		assert.Equal(t, core.ServiceGoogle, rea.Service)
	})
}

func TestReceiveTrigger(t *testing.T) {
	t.Run("Should stay quiet while nothing arrived after the cursor", func(t *testing.T) {
		stubClock(t, time.Unix(1_756_000_000, 0))
		fake := &fakeMail{}

		trig, err := newReceiveTrigger(fake, core.Params{"token": "tok"})
		require.NoError(t, err)
		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)
		require.Len(t, fake.queries, 1)
		assert.Equal(t, "after:1756000000", fake.queries[0])
	})

	t.Run("Should report the newest message and advance the cursor", func(t *testing.T) {
		start := time.Unix(1_756_000_000, 0)
		clk := stubClock(t, start)
		fake := &fakeMail{
			refs: []googleapi.MessageRef{{ID: "m-1", ThreadID: "t-1"}, {ID: "m-0"}},
			msg: &googleapi.Message{
				ID:         "m-1",
				Sender:     "ada@example.test",
				Subject:    "hello",
				Snippet:    "first line",
				ReceivedAt: "1756000000500",
				Raw:        `{"id":"m-1"}`,
			},
		}

		trig, err := newReceiveTrigger(fake, core.Params{"token": "tok"})
		require.NoError(t, err)
		*clk = start.Add(30 * time.Second)

		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, []string{"m-1"}, fake.fetched)
		assert.Equal(t, `{"id":"m-1"}`, resp.Content)
		assert.Equal(t, "ada@example.test", resp.Fields["sender"])
		assert.Equal(t, "hello", resp.Fields["subject"])
		assert.Equal(t, "first line", resp.Fields["snippet"])
		assert.Equal(t, "1756000000500", resp.Fields["received_at"])

		fake.refs = nil
		_, err = trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.Len(t, fake.queries, 2)
		assert.Equal(t, "after:1756000030", fake.queries[1])
	})

	t.Run("Should fall back to placeholder sender and subject", func(t *testing.T) {
		stubClock(t, time.Unix(1_756_000_000, 0))
		fake := &fakeMail{
			refs: []googleapi.MessageRef{{ID: "m-2"}},
			msg:  &googleapi.Message{ID: "m-2", Snippet: "hi"},
		}

		trig, err := newReceiveTrigger(fake, core.Params{"token": "tok"})
		require.NoError(t, err)
		resp, err := trig.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "Unknown Sender", resp.Fields["sender"])
		assert.Equal(t, "No Subject", resp.Fields["subject"])
	})

	t.Run("Should surface upstream failures", func(t *testing.T) {
		stubClock(t, time.Unix(1_756_000_000, 0))
		fake := &fakeMail{listErr: core.ErrUpstreamTransient}

		trig, err := newReceiveTrigger(fake, core.Params{"token": "tok"})
		require.NoError(t, err)
		_, err = trig.Evaluate(context.Background())
		require.ErrorIs(t, err, core.ErrUpstreamTransient)
	})

	t.Run("Should refuse to start without a credential", func(t *testing.T) {
		_, err := newReceiveTrigger(&fakeMail{}, core.Params{})
		require.ErrorIs(t, err, core.ErrMissingCredential)
	})
}

func TestReceiveAction(t *testing.T) {
	newAction := func(t *testing.T, cfg core.Params) component.Action {
		t.Helper()
		def, err := newRegistry(t, &fakeMail{}).Action("gmail_receive")
		require.NoError(t, err)
		validated, err := def.ValidateConfig(cfg)
		require.NoError(t, err)
		act, err := def.NewAction(validated)
		require.NoError(t, err)
		return act
	}

	t.Run("Should echo the event fields", func(t *testing.T) {
		act := newAction(t, event())
		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "m-1", resp.Fields["message_id"])
		assert.Equal(t, "Release 1.2 shipped", resp.Fields["subject"])
	})

	t.Run("Should match substring filters case-insensitively", func(t *testing.T) {
		cfg := event()
		cfg["filter_sender"] = "ADA"
		cfg["filter_subject"] = "release"
		cfg["filter_content"] = "THE RELEASE"
		act := newAction(t, cfg)

		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, resp)
	})

	t.Run("Should drop mail that misses a substring filter", func(t *testing.T) {
		cfg := event()
		cfg["filter_sender"] = "bob@"
		act := newAction(t, cfg)

		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("Should honor the declarative filter", func(t *testing.T) {
		cfg := event()
		cfg["filter"] = map[string]any{
			"conditions": []any{
				map[string]any{"field": "sender", "operator": "contains", "value": "nobody"},
			},
		}
		act := newAction(t, cfg)

		resp, err := act.Execute(context.Background())
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
}

func TestSendReaction(t *testing.T) {
	newReaction := func(t *testing.T, fake *fakeMail, cfg core.Params) component.Reaction {
		t.Helper()
		def, err := newRegistry(t, fake).Reaction("send_email")
		require.NoError(t, err)
		validated, err := def.ValidateConfig(cfg)
		require.NoError(t, err)
		rea, err := def.NewReaction(validated)
		require.NoError(t, err)
		return rea
	}

	t.Run("Should expand placeholders and send the mail", func(t *testing.T) {
		fake := &fakeMail{}
		rea := newReaction(t, fake, core.Params{
			"token":   "tok",
			"to":      "ops@example.test",
			"subject": "mail from {sender}",
			"body":    "they wrote: {snippet}",
			"cc":      []any{"a@example.test", "b@example.test"},
		})

		resp, err := rea.Execute(context.Background(), &component.ActionResponse{
			Success: true,
			Fields:  core.Params{"sender": "ada@example.test", "snippet": "hi there"},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "m-42", resp.Details["message_id"])
		assert.Equal(t, "t-42", resp.Details["thread_id"])

		require.NotNil(t, fake.sent)
		assert.Equal(t, "tok", fake.sentTok)
		assert.Equal(t, "ops@example.test", fake.sent.To)
		assert.Equal(t, "a@example.test, b@example.test", fake.sent.Cc)
		assert.Equal(t, "mail from ada@example.test", fake.sent.Subject)
		assert.Equal(t, "they wrote: hi there", fake.sent.Body)
	})

	t.Run("Should fail when a placeholder has no value", func(t *testing.T) {
		fake := &fakeMail{}
		rea := newReaction(t, fake, core.Params{
			"token":   "tok",
			"to":      "ops@example.test",
			"subject": "mail about {missing_field}",
			"body":    "text",
		})

		_, err := rea.Execute(context.Background(), &component.ActionResponse{Success: true})
		require.ErrorContains(t, err, "missing_field")
		assert.Nil(t, fake.sent)
	})

	t.Run("Should surface send failures", func(t *testing.T) {
		fake := &fakeMail{sendErr: errors.New("gmail: status 503")}
		rea := newReaction(t, fake, core.Params{
			"token":   "tok",
			"to":      "ops@example.test",
			"subject": "s",
			"body":    "b",
		})

		_, err := rea.Execute(context.Background(), &component.ActionResponse{Success: true})
		require.ErrorContains(t, err, "failed to send mail")
	})

	t.Run("Should refuse to construct without a credential", func(t *testing.T) {
		def, err := newRegistry(t, &fakeMail{}).Reaction("send_email")
		require.NoError(t, err)
		validated, err := def.ValidateConfig(core.Params{
			"to":      "ops@example.test",
			"subject": "s",
			"body":    "b",
		})
		require.NoError(t, err)
		_, err = def.NewReaction(validated)
		require.ErrorIs(t, err, core.ErrMissingCredential)
	})
}
