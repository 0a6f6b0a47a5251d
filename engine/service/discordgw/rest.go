package discordgw

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/hookline/hookline/engine/service/upstream"
)

// DefaultRestURL is the v10 REST endpoint.
const DefaultRestURL = "https://discord.com/api/v10"

// Client calls the Discord REST API with a bot token.
type Client struct {
	http  *resty.Client
	token string
}

func NewClient(botToken string) *Client {
	return NewClientWithBaseURL(botToken, DefaultRestURL)
}

func NewClientWithBaseURL(botToken, baseURL string) *Client {
	return &Client{http: upstream.NewRestClient(baseURL), token: botToken}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bot "+c.token)
}

// SendMessage posts content to a channel and returns the new message ID.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	resp, err := c.request(ctx).
		SetPathParam("channel", channelID).
		SetBody(map[string]string{"content": content}).
		SetResult(&out).
		Post("/channels/{channel}/messages")
	if err != nil {
		return "", fmt.Errorf("failed to send discord message: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", upstream.StatusError("discord", resp.StatusCode(), resp.Body())
	}
	return out.ID, nil
}

// EditMessage replaces the content of an existing message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	resp, err := c.request(ctx).
		SetPathParam("channel", channelID).
		SetPathParam("message", messageID).
		SetBody(map[string]string{"content": content}).
		Patch("/channels/{channel}/messages/{message}")
	if err != nil {
		return fmt.Errorf("failed to edit discord message: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return upstream.StatusError("discord", resp.StatusCode(), resp.Body())
	}
	return nil
}

// DeleteMessage removes a message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	resp, err := c.request(ctx).
		SetPathParam("channel", channelID).
		SetPathParam("message", messageID).
		Delete("/channels/{channel}/messages/{message}")
	if err != nil {
		return fmt.Errorf("failed to delete discord message: %w", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return upstream.StatusError("discord", resp.StatusCode(), resp.Body())
	}
	return nil
}

// AddReaction puts an emoji reaction on a message as the bot user. The emoji
// path segment is escaped by the client, so unicode emoji pass through as-is.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	resp, err := c.request(ctx).
		SetPathParam("channel", channelID).
		SetPathParam("message", messageID).
		SetPathParam("emoji", emoji).
		Put("/channels/{channel}/messages/{message}/reactions/{emoji}/@me")
	if err != nil {
		return fmt.Errorf("failed to add discord reaction: %w", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return upstream.StatusError("discord", resp.StatusCode(), resp.Body())
	}
	return nil
}
