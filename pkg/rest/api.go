package rest

import "context"

// GatewayBotInfo is the connection advice for a bot: where to connect, how
// many shards to run, and the identify budget.
type GatewayBotInfo struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// SessionStartLimit is the bot's identify allowance.
type SessionStartLimit struct {
	Total          int   `json:"total"`
	Remaining      int   `json:"remaining"`
	ResetAfter     int64 `json:"reset_after"`
	MaxConcurrency int   `json:"max_concurrency"`
}

// User is a platform account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Channel is a text or voice channel.
type Channel struct {
	ID      string `json:"id"`
	Type    int    `json:"type"`
	GuildID string `json:"guild_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Topic   string `json:"topic,omitempty"`
}

// Message is a message posted to a channel.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Author    User   `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// CreateMessageParams is the body for CreateMessage.
type CreateMessageParams struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce,omitempty"`
	TTS     bool   `json:"tts,omitempty"`
}

// GatewayBot fetches the gateway URL and recommended shard count for the
// authenticated bot.
func (c *Client) GatewayBot(ctx context.Context) (*GatewayBotInfo, error) {
	var info GatewayBotInfo
	if err := c.Do(ctx, GatewayBotRoute(), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetChannel fetches a channel by id.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.Do(ctx, ChannelRoute(channelID), nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateMessage posts a message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID string, params CreateMessageParams) (*Message, error) {
	var msg Message
	if err := c.Do(ctx, ChannelMessagesRoute(channelID), params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage deletes a message. Shares its rate limit bucket with other
// single-message operations on the same channel.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.Do(ctx, ChannelMessageRoute("DELETE", channelID, messageID), nil, nil)
}
