// Package outlook provides the mail-received trigger/action pair and the
// send_mail reaction backed by the Microsoft Graph API.
package outlook

import (
	"context"
	"fmt"
	"time"

	"github.com/hookline/hookline/engine/catalog/shared"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/schema"
	"github.com/hookline/hookline/engine/service/graphapi"
)

// now is swapped by tests.
var now = time.Now

// Client is the slice of the Graph adapter the components consume.
type Client interface {
	ListMessages(ctx context.Context, token, filter string) ([]graphapi.Message, error)
	GetMessage(ctx context.Context, token, id string) (*graphapi.Message, error)
	SendMail(ctx context.Context, token string, mail *graphapi.OutgoingMail) error
}

// Register adds the Outlook components to the registry.
func Register(reg *component.Registry, client Client) error {
	defs := []*component.Definition{
		{
			Name:    "outlook_receive",
			Kind:    core.KindTrigger,
			Service: core.ServiceMicrosoft,
			ConfigSchema: schema.Schema{
				"query": {Type: schema.TypeString, Description: "OData filter narrowing watched mail"},
			},
			NewTrigger: func(cfg core.Params) (component.Trigger, error) {
				return newReceiveTrigger(client, cfg)
			},
		},
		{
			Name:    "outlook_receive",
			Kind:    core.KindAction,
			Service: core.ServiceMicrosoft,
			ConfigSchema: schema.Schema{
				"query": {Type: schema.TypeString, Default: "", Description: "OData filter selecting the mail to report"},
			},
			NewAction: func(cfg core.Params) (component.Action, error) {
				return newReceiveAction(client, cfg)
			},
		},
		{
			Name:    "send_mail",
			Kind:    core.KindReaction,
			Service: core.ServiceMicrosoft,
			ConfigSchema: schema.Schema{
				"to":      {Type: schema.TypeString, Required: true},
				"subject": {Type: schema.TypeString, Required: true},
				"body":    {Type: schema.TypeString, Required: true},
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

// cursorStamp renders epoch seconds the way Graph's receivedDateTime filter
// expects them.
func cursorStamp(epochSec float64) string {
	return time.Unix(int64(epochSec), 0).UTC().Format("2006-01-02T15:04:05Z")
}

// -----------------------------------------------------------------------------
// outlook_receive trigger
// -----------------------------------------------------------------------------

// receiveTrigger polls for mail received after the cursor, optionally
// narrowed by a user-supplied OData filter.
type receiveTrigger struct {
	client    Client
	token     string
	query     string
	lastCheck float64
}

func newReceiveTrigger(client Client, cfg core.Params) (*receiveTrigger, error) {
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	query, _ := cfg.Prop("query").(string)
	return &receiveTrigger{client: client, token: token, query: query, lastCheck: shared.Epoch(now())}, nil
}

func (t *receiveTrigger) Evaluate(ctx context.Context) (*component.TriggerResponse, error) {
	filter := fmt.Sprintf("receivedDateTime gt %s", cursorStamp(t.lastCheck))
	if t.query != "" {
		filter = fmt.Sprintf("(%s) and (%s)", filter, t.query)
	}
	messages, err := t.client.ListMessages(ctx, t.token, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}
	detail, err := t.client.GetMessage(ctx, t.token, messages[0].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", messages[0].ID, err)
	}
	stamp := shared.Epoch(now())
	t.lastCheck = stamp
	return &component.TriggerResponse{
		TriggeredAt: stamp,
		Content:     detail.Raw,
		Details:     core.Params{"event": "mail_received"},
		Fields:      mailFields(detail),
	}, nil
}

func mailFields(msg *graphapi.Message) core.Params {
	sender := msg.Sender
	if sender == "" {
		sender = "Unknown Sender"
	}
	subject := msg.Subject
	if subject == "" {
		subject = "No Subject"
	}
	return core.Params{
		"message_id":  msg.ID,
		"sender":      sender,
		"subject":     subject,
		"snippet":     msg.Preview,
		"received_at": msg.ReceivedAt,
	}
}

// -----------------------------------------------------------------------------
// outlook_receive action
// -----------------------------------------------------------------------------

// receiveAction queries the mailbox itself instead of echoing the event, so
// it reports the newest mail matching its static query at execution time. No
// match is a failed result, not a filtered one, and still reaches the
// reaction.
type receiveAction struct {
	client Client
	gate   *shared.Gate
	token  string
	query  string
	data   core.Params
}

func newReceiveAction(client Client, cfg core.Params) (*receiveAction, error) {
	gate, err := shared.GateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	query, _ := cfg.Prop("query").(string)
	return &receiveAction{client: client, gate: gate, token: token, query: query, data: cfg}, nil
}

func (a *receiveAction) Execute(ctx context.Context) (*component.ActionResponse, error) {
	ok, err := a.gate.Accept(a.data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	messages, err := a.client.ListMessages(ctx, a.token, a.query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox messages: %w", err)
	}
	if len(messages) == 0 {
		return &component.ActionResponse{
			Success: false,
			Details: core.Params{"error": "no matching messages found"},
		}, nil
	}
	detail, err := a.client.GetMessage(ctx, a.token, messages[0].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", messages[0].ID, err)
	}
	return &component.ActionResponse{
		Success: true,
		Details: core.Params{"message": "email found"},
		Fields:  mailFields(detail),
	}, nil
}

// -----------------------------------------------------------------------------
// send_mail reaction
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
	mail := &graphapi.OutgoingMail{To: str("to"), Subject: subject, Body: body}
	if err := r.client.SendMail(ctx, r.token, mail); err != nil {
		return nil, fmt.Errorf("failed to send mail: %w", err)
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{"to": mail.To, "subject": subject},
	}, nil
}
