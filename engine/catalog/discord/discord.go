// Package discord provides the gateway-driven triggers, their echo actions
// and the channel reactions. Triggers consume dispatch events from a
// per-area gateway session; reactions go through the REST API. Both sides
// authenticate with the platform bot token, so the per-user credential the
// worker injects is never read here.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hookline/hookline/engine/catalog/shared"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/schema"
)

// now is swapped by tests.
var now = time.Now

// EventSource is the gateway surface the triggers consume.
type EventSource interface {
	Poll(ctx context.Context, eventType string, match func(map[string]any) bool) (map[string]any, error)
	Close() error
}

// Dialer opens a gateway session. Every trigger dials its own session so the
// event buffers of one area are never drained by another.
type Dialer func() (EventSource, error)

// Sender is the REST surface the reactions consume.
type Sender interface {
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}

// -----------------------------------------------------------------------------
// Trigger table
// -----------------------------------------------------------------------------

// eventSpec binds one trigger name to the gateway dispatch type it watches.
// matchKey names the event field compared against the configured scopeKey
// value; accept may veto events with incomplete payloads before they fire.
type eventSpec struct {
	name      string
	eventType string
	scopeKey  string
	matchKey  string
	accept    func(data map[string]any) bool
	project   func(data map[string]any) (core.Params, string)
}

var triggerSpecs = []eventSpec{
	{
		name:      "new_message_in_channel",
		eventType: "MESSAGE_CREATE",
		scopeKey:  "channel_id",
		matchKey:  "channel_id",
		project:   projectMessage,
	},
	{
		name:      "message_updated",
		eventType: "MESSAGE_UPDATE",
		scopeKey:  "channel_id",
		matchKey:  "channel_id",
		project:   projectMessage,
	},
	{
		name:      "channel_created",
		eventType: "CHANNEL_CREATE",
		scopeKey:  "guild_id",
		matchKey:  "guild_id",
		project:   projectChannel,
	},
	{
		name:      "channel_updated",
		eventType: "CHANNEL_UPDATE",
		scopeKey:  "guild_id",
		matchKey:  "guild_id",
		project:   projectChannel,
	},
	{
		name:      "channel_deleted",
		eventType: "CHANNEL_DELETE",
		scopeKey:  "guild_id",
		matchKey:  "guild_id",
		project: func(data map[string]any) (core.Params, string) {
			return core.Params{"channel_name": stringAt(data, "name")}, rawJSON(data)
		},
	},
	{
		name:      "guild_role_added",
		eventType: "GUILD_ROLE_CREATE",
		scopeKey:  "guild_id",
		matchKey:  "guild_id",
		accept: func(data map[string]any) bool {
			role, _ := data["role"].(map[string]any)
			return stringAt(role, "id") != "" && stringAt(role, "name") != ""
		},
		project: func(data map[string]any) (core.Params, string) {
			role, _ := data["role"].(map[string]any)
			return core.Params{
				"role_id":   stringAt(role, "id"),
				"role_name": stringAt(role, "name"),
			}, rawJSON(role)
		},
	},
	{
		name:      "member_removed",
		eventType: "GUILD_MEMBER_REMOVE",
		scopeKey:  "guild_id",
		matchKey:  "guild_id",
		project: func(data map[string]any) (core.Params, string) {
			user, _ := data["user"].(map[string]any)
			return core.Params{
				"user_id":   stringAt(user, "id"),
				"user_name": stringAt(user, "username"),
				"guild_id":  stringAt(data, "guild_id"),
			}, ""
		},
	},
	{
		name:      "user_joins_guild",
		eventType: "GUILD_MEMBER_ADD",
		scopeKey:  "guild_id",
		matchKey:  "guild_id",
		project: func(data map[string]any) (core.Params, string) {
			user, _ := data["user"].(map[string]any)
			return core.Params{
				"user_id":   stringAt(user, "id"),
				"user_name": stringAt(user, "username"),
				"joined_at": stringAt(data, "joined_at"),
				"guild_id":  stringAt(data, "guild_id"),
			}, ""
		},
	},
}

func projectMessage(data map[string]any) (core.Params, string) {
	author, _ := data["author"].(map[string]any)
	return core.Params{
		"author":     author,
		"channel_id": stringAt(data, "channel_id"),
	}, stringAt(data, "content")
}

func projectChannel(data map[string]any) (core.Params, string) {
	return core.Params{
		"channel_id":   stringAt(data, "id"),
		"channel_name": stringAt(data, "name"),
	}, rawJSON(data)
}

// detailEvent maps trigger names onto the event label their details carry.
// new_message_in_channel predates the naming scheme, so it stays short.
func detailEvent(name string) string {
	if name == "new_message_in_channel" {
		return "new_message"
	}
	return name
}

func stringAt(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func rawJSON(data map[string]any) string {
	raw, _ := json.Marshal(data)
	return string(raw)
}

// -----------------------------------------------------------------------------
// Action table
// -----------------------------------------------------------------------------

// actionSpec describes one echo action: the fields it validates and copies
// from the projected event into its response.
type actionSpec struct {
	name   string
	schema schema.Schema
}

var actionSpecs = []actionSpec{
	{
		name: "new_message_in_channel",
		schema: schema.Schema{
			"content":    {Type: schema.TypeString, Required: true},
			"author":     {Type: schema.TypeMap, Required: true},
			"channel_id": {Type: schema.TypeString, Required: true},
		},
	},
	{
		name: "message_updated",
		schema: schema.Schema{
			"content":    {Type: schema.TypeString, Required: true},
			"author":     {Type: schema.TypeMap, Required: true},
			"channel_id": {Type: schema.TypeString, Required: true},
		},
	},
	{
		name: "channel_created",
		schema: schema.Schema{
			"channel_id":   {Type: schema.TypeString, Required: true},
			"channel_name": {Type: schema.TypeString, Required: true},
			"content":      {Type: schema.TypeString},
		},
	},
	{
		name: "channel_updated",
		schema: schema.Schema{
			"channel_id":   {Type: schema.TypeString, Required: true},
			"channel_name": {Type: schema.TypeString, Required: true},
			"content":      {Type: schema.TypeString},
		},
	},
	{
		name: "channel_deleted",
		schema: schema.Schema{
			"channel_name": {Type: schema.TypeString},
			"content":      {Type: schema.TypeString},
		},
	},
	{
		name: "guild_role_added",
		schema: schema.Schema{
			"content":   {Type: schema.TypeString, Required: true},
			"role_id":   {Type: schema.TypeString, Required: true},
			"role_name": {Type: schema.TypeString, Required: true},
		},
	},
	{
		name: "member_removed",
		schema: schema.Schema{
			"user_id":   {Type: schema.TypeString, Required: true},
			"user_name": {Type: schema.TypeString, Required: true},
		},
	},
	{
		name: "user_joins_guild",
		schema: schema.Schema{
			"content":   {Type: schema.TypeString, Required: true},
			"user_id":   {Type: schema.TypeString, Required: true},
			"user_name": {Type: schema.TypeString, Required: true},
			"joined_at": {Type: schema.TypeString, Required: true},
		},
	},
}

// -----------------------------------------------------------------------------
// Register
// -----------------------------------------------------------------------------

// Register adds the Discord components to the registry.
func Register(reg *component.Registry, dial Dialer, sender Sender) error {
	for _, spec := range triggerSpecs {
		spec := spec
		def := &component.Definition{
			Name:    spec.name,
			Kind:    core.KindTrigger,
			Service: core.ServiceDiscord,
			ConfigSchema: schema.Schema{
				spec.scopeKey: {Type: schema.TypeString, Required: true},
			},
			NewTrigger: func(cfg core.Params) (component.Trigger, error) {
				return newGatewayTrigger(dial, spec, cfg), nil
			},
		}
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	for _, spec := range actionSpecs {
		spec := spec
		def := &component.Definition{
			Name:         spec.name,
			Kind:         core.KindAction,
			Service:      core.ServiceDiscord,
			ConfigSchema: spec.schema,
			NewAction: func(cfg core.Params) (component.Action, error) {
				return newEchoAction(spec, cfg)
			},
		}
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return registerReactions(reg, sender)
}

// -----------------------------------------------------------------------------
// Gateway trigger
// -----------------------------------------------------------------------------

// gatewayTrigger drains one dispatch queue of its own gateway session. The
// session opens on the first evaluation and lives until the evaluator closes
// the trigger.
type gatewayTrigger struct {
	dial  Dialer
	spec  eventSpec
	scope string

	mu     sync.Mutex
	source EventSource
}

func newGatewayTrigger(dial Dialer, spec eventSpec, cfg core.Params) *gatewayTrigger {
	scope, _ := cfg.Prop(spec.scopeKey).(string)
	return &gatewayTrigger{dial: dial, spec: spec, scope: scope}
}

func (t *gatewayTrigger) Evaluate(ctx context.Context) (*component.TriggerResponse, error) {
	source, err := t.ensure()
	if err != nil {
		return nil, err
	}
	data, err := source.Poll(ctx, t.spec.eventType, func(ev map[string]any) bool {
		if stringAt(ev, t.spec.matchKey) != t.scope {
			return false
		}
		return t.spec.accept == nil || t.spec.accept(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to poll %s events: %w", t.spec.eventType, err)
	}
	if data == nil {
		return nil, nil
	}
	fields, content := t.spec.project(data)
	return &component.TriggerResponse{
		TriggeredAt: shared.Epoch(now()),
		Content:     content,
		Details: core.Params{
			"event":         detailEvent(t.spec.name),
			t.spec.scopeKey: t.scope,
		},
		Fields: fields,
	}, nil
}

func (t *gatewayTrigger) ensure() (EventSource, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.source != nil {
		return t.source, nil
	}
	source, err := t.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway session: %w", err)
	}
	t.source = source
	return source, nil
}

// Close shuts the gateway session down. The scheduler calls it when the
// owning evaluator unwinds.
func (t *gatewayTrigger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.source == nil {
		return nil
	}
	err := t.source.Close()
	t.source = nil
	return err
}

// -----------------------------------------------------------------------------
// Echo actions
// -----------------------------------------------------------------------------

// echoAction copies its declared fields from the projected event into the
// response, gated by the declarative filter.
type echoAction struct {
	gate   *shared.Gate
	data   core.Params
	name   string
	fields []string
}

func newEchoAction(spec actionSpec, cfg core.Params) (*echoAction, error) {
	gate, err := shared.GateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &echoAction{gate: gate, data: cfg, name: spec.name, fields: spec.schema.FieldNames()}, nil
}

func (a *echoAction) Execute(_ context.Context) (*component.ActionResponse, error) {
	ok, err := a.gate.Accept(a.data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	out := make(core.Params, len(a.fields))
	for _, field := range a.fields {
		if v, present := a.data[field]; present {
			out[field] = v
		}
	}
	return &component.ActionResponse{
		Success: true,
		Details: core.Params{"event": detailEvent(a.name)},
		Fields:  out,
	}, nil
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

func registerReactions(reg *component.Registry, sender Sender) error {
	messageTarget := schema.Schema{
		"channel_id": {Type: schema.TypeString, Required: true},
		"message_id": {Type: schema.TypeString, Required: true},
	}
	defs := []*component.Definition{
		{
			Name:    "send_message",
			Kind:    core.KindReaction,
			Service: core.ServiceDiscord,
			ConfigSchema: schema.Schema{
				"channel_id": {Type: schema.TypeString, Required: true},
				"content":    {Type: schema.TypeString, Required: true},
			},
			NewReaction: func(cfg core.Params) (component.Reaction, error) {
				return &sendMessageReaction{sender: sender, cfg: cfg}, nil
			},
		},
		{
			Name:    "edit_message",
			Kind:    core.KindReaction,
			Service: core.ServiceDiscord,
			ConfigSchema: messageTarget.Merge(schema.Schema{
				"content": {Type: schema.TypeString, Required: true},
			}),
			NewReaction: func(cfg core.Params) (component.Reaction, error) {
				return &editMessageReaction{sender: sender, cfg: cfg}, nil
			},
		},
		{
			Name:         "delete_message",
			Kind:         core.KindReaction,
			Service:      core.ServiceDiscord,
			ConfigSchema: messageTarget,
			NewReaction: func(cfg core.Params) (component.Reaction, error) {
				return &deleteMessageReaction{sender: sender, cfg: cfg}, nil
			},
		},
		{
			Name:    "add_reaction",
			Kind:    core.KindReaction,
			Service: core.ServiceDiscord,
			ConfigSchema: messageTarget.Merge(schema.Schema{
				"emoji": {Type: schema.TypeString, Required: true},
			}),
			NewReaction: func(cfg core.Params) (component.Reaction, error) {
				return &addReactionReaction{sender: sender, cfg: cfg}, nil
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

func configString(cfg core.Params, key string) string {
	s, _ := cfg.Prop(key).(string)
	return s
}

type sendMessageReaction struct {
	sender Sender
	cfg    core.Params
}

func (r *sendMessageReaction) Execute(ctx context.Context, _ *component.ActionResponse) (*component.ReactionResponse, error) {
	channelID := configString(r.cfg, "channel_id")
	content := configString(r.cfg, "content")
	messageID, err := r.sender.SendMessage(ctx, channelID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{
			"channel_id": channelID,
			"message_id": messageID,
			"message":    content,
		},
	}, nil
}

type editMessageReaction struct {
	sender Sender
	cfg    core.Params
}

func (r *editMessageReaction) Execute(ctx context.Context, _ *component.ActionResponse) (*component.ReactionResponse, error) {
	channelID := configString(r.cfg, "channel_id")
	messageID := configString(r.cfg, "message_id")
	if err := r.sender.EditMessage(ctx, channelID, messageID, configString(r.cfg, "content")); err != nil {
		return nil, fmt.Errorf("failed to edit message %s: %w", messageID, err)
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{"channel_id": channelID, "message_id": messageID},
	}, nil
}

type deleteMessageReaction struct {
	sender Sender
	cfg    core.Params
}

func (r *deleteMessageReaction) Execute(ctx context.Context, _ *component.ActionResponse) (*component.ReactionResponse, error) {
	channelID := configString(r.cfg, "channel_id")
	messageID := configString(r.cfg, "message_id")
	if err := r.sender.DeleteMessage(ctx, channelID, messageID); err != nil {
		return nil, fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{"channel_id": channelID, "message_id": messageID},
	}, nil
}

type addReactionReaction struct {
	sender Sender
	cfg    core.Params
}

func (r *addReactionReaction) Execute(ctx context.Context, _ *component.ActionResponse) (*component.ReactionResponse, error) {
	channelID := configString(r.cfg, "channel_id")
	messageID := configString(r.cfg, "message_id")
	emoji := configString(r.cfg, "emoji")
	if err := r.sender.AddReaction(ctx, channelID, messageID, emoji); err != nil {
		return nil, fmt.Errorf("failed to add reaction to message %s: %w", messageID, err)
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{"channel_id": channelID, "message_id": messageID, "emoji": emoji},
	}, nil
}
