// Package googleapi is a thin Gmail REST client. It carries no credential
// state: every call takes the OAuth token resolved for the job at hand.
package googleapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/hookline/hookline/engine/service/upstream"
)

const DefaultBaseURL = "https://www.googleapis.com"

// MessageRef is one entry of a Gmail list response, newest first.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Message is the subset of a Gmail message the mail components read.
// ReceivedAt keeps Gmail's internalDate form: epoch milliseconds as a
// decimal string. Sender and Subject are empty when the headers are absent.
type Message struct {
	ID         string
	Sender     string
	Subject    string
	Snippet    string
	ReceivedAt string
	Raw        string
}

// SendResult identifies a mail accepted by the Gmail send endpoint.
type SendResult struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// OutgoingMessage is a plain-text mail. Cc and Bcc hold comma-separated
// address lists and may be empty.
type OutgoingMessage struct {
	To      string
	Cc      string
	Bcc     string
	Subject string
	Body    string
}

// MIME renders the message as an RFC 822 payload the Gmail send endpoint
// accepts once base64url-encoded.
func (m *OutgoingMessage) MIME() string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	if m.Cc != "" {
		fmt.Fprintf(&b, "Cc: %s\r\n", m.Cc)
	}
	if m.Bcc != "" {
		fmt.Fprintf(&b, "Bcc: %s\r\n", m.Bcc)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return b.String()
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

// ListMessages returns the message refs matching the Gmail search query,
// newest first. An empty query lists the most recent messages.
func (c *Client) ListMessages(ctx context.Context, token, query string) ([]MessageRef, error) {
	var out struct {
		Messages []MessageRef `json:"messages"`
	}
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out)
	if query != "" {
		req.SetQueryParam("q", query)
	}
	resp, err := req.Get("/gmail/v1/users/me/messages")
	if err != nil {
		return nil, fmt.Errorf("failed to list gmail messages: %w", err)
	}
	if resp.IsError() {
		return nil, upstream.StatusError("gmail", resp.StatusCode(), resp.Body())
	}
	return out.Messages, nil
}

// GetMessage fetches one message and flattens the From and Subject headers.
func (c *Client) GetMessage(ctx context.Context, token, id string) (*Message, error) {
	var out struct {
		ID           string `json:"id"`
		Snippet      string `json:"snippet"`
		InternalDate string `json:"internalDate"`
		Payload      struct {
			Headers []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"headers"`
		} `json:"payload"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		SetPathParam("id", id).
		Get("/gmail/v1/users/me/messages/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to get gmail message %s: %w", id, err)
	}
	if resp.IsError() {
		return nil, upstream.StatusError("gmail", resp.StatusCode(), resp.Body())
	}
	msg := &Message{
		ID:         out.ID,
		Snippet:    out.Snippet,
		ReceivedAt: out.InternalDate,
		Raw:        string(resp.Body()),
	}
	for _, h := range out.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			msg.Sender = h.Value
		case "subject":
			msg.Subject = h.Value
		}
	}
	return msg, nil
}

// SendMessage sends a plain-text mail through the authenticated account.
func (c *Client) SendMessage(ctx context.Context, token string, msg *OutgoingMessage) (*SendResult, error) {
	raw := base64.URLEncoding.EncodeToString([]byte(msg.MIME()))
	var sent SendResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]string{"raw": raw}).
		SetResult(&sent).
		Post("/gmail/v1/users/me/messages/send")
	if err != nil {
		return nil, fmt.Errorf("failed to send gmail message: %w", err)
	}
	if resp.IsError() {
		return nil, upstream.StatusError("gmail", resp.StatusCode(), resp.Body())
	}
	return &sent, nil
}
