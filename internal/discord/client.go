// Package discord is a minimal Discord bot transport: a REST client for
// embed delivery and a gateway keepalive so the bot account presents online.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stronghold-labs/epochwatch/internal/notify"
)

const apiBase = "https://discord.com/api/v10"

const embedColor = 0x5865F2

type Client struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		token:   token,
		baseURL: apiBase,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Me validates the bot credential and returns the bot account's username.
func (c *Client) Me(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/@me", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get current user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var me struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return "", fmt.Errorf("decode current user: %w", err)
	}
	return me.Username, nil
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// SendEmbed posts a message with one embed to a channel.
func (c *Client) SendEmbed(ctx context.Context, channelID, content string, embed Embed) error {
	payload := map[string]interface{}{
		"embeds": []Embed{embed},
	}
	if content != "" {
		payload["content"] = content
	}
	body, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var errResp struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	return fmt.Errorf("discord API error %d: %s", resp.StatusCode, errResp.Message)
}

// ChannelNotifier binds the client to one channel as a notification sink.
// A field named "Reference" renders as the embed footer instead of a field;
// the mention, when set, is prepended as message content so it pings.
type ChannelNotifier struct {
	client    *Client
	channelID string
	mention   string
}

func NewChannelNotifier(client *Client, channelID, mention string) *ChannelNotifier {
	return &ChannelNotifier{client: client, channelID: channelID, mention: mention}
}

func (n *ChannelNotifier) Send(ctx context.Context, title string, fields []notify.Field) error {
	embed := Embed{
		Title:     title,
		Color:     embedColor,
		Fields:    make([]EmbedField, 0, len(fields)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range fields {
		if f.Name == "Reference" {
			embed.Footer = &EmbedFooter{Text: "Reference: " + f.Value}
			continue
		}
		embed.Fields = append(embed.Fields, EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return n.client.SendEmbed(ctx, n.channelID, n.mention, embed)
}
