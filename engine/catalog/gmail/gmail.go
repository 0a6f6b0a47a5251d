// Package gmail provides the mail-received trigger/action pair and the
// send_email reaction backed by the Gmail REST API.
package gmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hookline/hookline/engine/catalog/shared"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/schema"
	"github.com/hookline/hookline/engine/service/googleapi"
)

// now is swapped by tests.
var now = time.Now

// Client is the slice of the Gmail adapter the components consume.
type Client interface {
	ListMessages(ctx context.Context, token, query string) ([]googleapi.MessageRef, error)
	GetMessage(ctx context.Context, token, id string) (*googleapi.Message, error)
	SendMessage(ctx context.Context, token string, msg *googleapi.OutgoingMessage) (*googleapi.SendResult, error)
}

var eventSchema = schema.Schema{
	"message_id":  {Type: schema.TypeString, Required: true},
	"sender":      {Type: schema.TypeString, Required: true},
	"subject":     {Type: schema.TypeString, Required: true},
	"snippet":     {Type: schema.TypeString, Required: true},
	"received_at": {Type: schema.TypeString, Required: true},
}

// Register adds the Gmail components to the registry.
func Register(reg *component.Registry, client Client) error {
	defs := []*component.Definition{
		{
			Name:    "gmail_receive",
			Kind:    core.KindTrigger,
			Service: core.ServiceGoogle,
			NewTrigger: func(cfg core.Params) (component.Trigger, error) {
				return newReceiveTrigger(client, cfg)
			},
		},
		{
			Name:    "gmail_receive",
			Kind:    core.KindAction,
			Service: core.ServiceGoogle,
			ConfigSchema: eventSchema.Merge(schema.Schema{
				"filter_sender":  {Type: schema.TypeString, Description: "substring the sender must contain"},
				"filter_subject": {Type: schema.TypeString, Description: "substring the subject must contain"},
				"filter_content": {Type: schema.TypeString, Description: "substring the snippet must contain"},
			}),
			NewAction: newReceiveAction,
		},
		{
			Name:    "send_email",
			Kind:    core.KindReaction,
			Service: core.ServiceGoogle,
			ConfigSchema: schema.Schema{
				"to":      {Type: schema.TypeString, Required: true},
				"subject": {Type: schema.TypeString, Required: true},
				"body":    {Type: schema.TypeString, Required: true},
				"cc":      {Type: schema.TypeStringList, Description: "additional recipients"},
				"bcc":     {Type: schema.TypeStringList, Description: "hidden recipients"},
			},
			NewReaction: func(cfg core.Params) (component.Reaction, error) {
				return newSendReaction(client, cfg)
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
// gmail_receive trigger
// -----------------------------------------------------------------------------

// receiveTrigger polls the inbox for mail newer than the cursor. The cursor
// starts at construction time, so mail that predates the evaluator never
// fires.
type receiveTrigger struct {
	client    Client
	token     string
	lastCheck float64
}

func newReceiveTrigger(client Client, cfg core.Params) (*receiveTrigger, error) {
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	return &receiveTrigger{client: client, token: token, lastCheck: shared.Epoch(now())}, nil
}

func (t *receiveTrigger) Evaluate(ctx context.Context) (*component.TriggerResponse, error) {
	query := fmt.Sprintf("after:%d", int64(t.lastCheck))
	refs, err := t.client.ListMessages(ctx, t.token, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox messages: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	msg, err := t.client.GetMessage(ctx, t.token, refs[0].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", refs[0].ID, err)
	}
	stamp := shared.Epoch(now())
	t.lastCheck = stamp
	sender := msg.Sender
	if sender == "" {
		sender = "Unknown Sender"
	}
	subject := msg.Subject
	if subject == "" {
		subject = "No Subject"
	}
	return &component.TriggerResponse{
		TriggeredAt: stamp,
		Content:     msg.Raw,
		Details:     core.Params{"event": "mail_received"},
		Fields: core.Params{
			"message_id":  msg.ID,
			"sender":      sender,
			"subject":     subject,
			"snippet":     msg.Snippet,
			"received_at": msg.ReceivedAt,
		},
	}, nil
}

// -----------------------------------------------------------------------------
// gmail_receive action
// -----------------------------------------------------------------------------

type receiveAction struct {
	gate *shared.Gate
	data core.Params
}

func newReceiveAction(cfg core.Params) (component.Action, error) {
	gate, err := shared.GateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &receiveAction{gate: gate, data: cfg}, nil
}

func (a *receiveAction) Execute(_ context.Context) (*component.ActionResponse, error) {
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
	if !containsFold(str("sender"), str("filter_sender")) ||
		!containsFold(str("subject"), str("filter_subject")) ||
		!containsFold(str("snippet"), str("filter_content")) {
		return nil, nil
	}
	return &component.ActionResponse{
		Success: true,
		Details: core.Params{"event": "mail_received"},
		Fields: core.Params{
			"message_id":  str("message_id"),
			"sender":      str("sender"),
			"subject":     str("subject"),
			"snippet":     str("snippet"),
			"received_at": str("received_at"),
		},
	}, nil
}

// containsFold reports whether value contains needle ignoring case. An empty
// needle always matches.
func containsFold(value, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}

// -----------------------------------------------------------------------------
// send_email reaction
// -----------------------------------------------------------------------------

type sendReaction struct {
	client Client
	token  string
	cfg    core.Params
}

func newSendReaction(client Client, cfg core.Params) (*sendReaction, error) {
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	return &sendReaction{client: client, token: token, cfg: cfg}, nil
}

func (r *sendReaction) Execute(ctx context.Context, result *component.ActionResponse) (*component.ReactionResponse, error) {
	data := result.AsParams()
	str := func(key string) string {
		s, _ := r.cfg.Prop(key).(string)
		return s
	}
	subject, err := shared.Expand(str("subject"), data)
	if err != nil {
		return nil, fmt.Errorf("failed to expand subject: %w", err)
	}
	body, err := shared.Expand(str("body"), data)
	if err != nil {
		return nil, fmt.Errorf("failed to expand body: %w", err)
	}
	msg := &googleapi.OutgoingMessage{
		To:      str("to"),
		Cc:      joinAddresses(r.cfg, "cc"),
		Bcc:     joinAddresses(r.cfg, "bcc"),
		Subject: subject,
		Body:    body,
	}
	sent, err := r.client.SendMessage(ctx, r.token, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send mail: %w", err)
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{
			"message_id": sent.ID,
			"thread_id":  sent.ThreadID,
			"to":         msg.To,
			"subject":    subject,
		},
	}, nil
}

func joinAddresses(cfg core.Params, key string) string {
	list, _ := cfg.Prop(key).([]string)
	return strings.Join(list, ", ")
}
