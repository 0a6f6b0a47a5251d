// Package graphapi is a thin Microsoft Graph client covering the Outlook
// mail surface. Every call takes the OAuth token resolved for the job at
// hand.
package graphapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/hookline/hookline/engine/service/upstream"
)

const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Message is the subset of an Outlook message the mail components read.
// ReceivedAt keeps Graph's receivedDateTime form (RFC 3339).
type Message struct {
	ID         string
	Sender     string
	Subject    string
	Preview    string
	ReceivedAt string
	Raw        string
}

// OutgoingMail is a plain-text mail for the sendMail endpoint.
type OutgoingMail struct {
	To      string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
}

type graphMessage struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	BodyPreview      string `json:"bodyPreview"`
	ReceivedDateTime string `json:"receivedDateTime"`
	From             struct {
		EmailAddress struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"emailAddress"`
	} `json:"from"`
}

func (m *graphMessage) toMessage() Message {
	return Message{
		ID:         m.ID,
		Sender:     m.From.EmailAddress.Address,
		Subject:    m.Subject,
		Preview:    m.BodyPreview,
		ReceivedAt: m.ReceivedDateTime,
	}
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

// ListMessages returns the inbox newest first. A non-empty filter is passed
// through as an OData $filter expression.
func (c *Client) ListMessages(ctx context.Context, token, filter string) ([]Message, error) {
	var out struct {
		Value []graphMessage `json:"value"`
	}
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("$orderby", "receivedDateTime desc").
		SetResult(&out)
	if filter != "" {
		req.SetQueryParam("$filter", filter)
	}
	resp, err := req.Get("/me/messages")
	if err != nil {
		return nil, fmt.Errorf("failed to list outlook messages: %w", err)
	}
	if resp.IsError() {
		return nil, upstream.StatusError("outlook", resp.StatusCode(), resp.Body())
	}
	messages := make([]Message, 0, len(out.Value))
	for i := range out.Value {
		messages = append(messages, out.Value[i].toMessage())
	}
	return messages, nil
}

// GetMessage fetches one message with its raw body attached.
func (c *Client) GetMessage(ctx context.Context, token, id string) (*Message, error) {
	var out graphMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		SetPathParam("id", id).
		Get("/me/messages/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to get outlook message %s: %w", id, err)
	}
	if resp.IsError() {
		return nil, upstream.StatusError("outlook", resp.StatusCode(), resp.Body())
	}
	msg := out.toMessage()
	msg.Raw = string(resp.Body())
	return &msg, nil
}

// SendMail sends a plain-text mail. Graph replies 202 with an empty body on
// success.
func (c *Client) SendMail(ctx context.Context, token string, mail *OutgoingMail) error {
	payload := map[string]any{
		"message": map[string]any{
			"subject":       mail.Subject,
			"body":          map[string]any{"contentType": "Text", "content": mail.Body},
			"toRecipients":  recipients([]string{mail.To}),
			"ccRecipients":  recipients(mail.Cc),
			"bccRecipients": recipients(mail.Bcc),
		},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		Post("/me/sendMail")
	if err != nil {
		return fmt.Errorf("failed to send outlook mail: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return upstream.StatusError("outlook", resp.StatusCode(), resp.Body())
	}
	return nil
}

func recipients(addrs []string) []map[string]any {
	out := make([]map[string]any, 0, len(addrs))
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		out = append(out, map[string]any{"emailAddress": map[string]any{"address": addr}})
	}
	return out
}
