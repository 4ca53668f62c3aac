// Package telegram delivers notifications via the Telegram Bot API.
// Messages are rendered as MarkdownV2 and sent with retry logic for
// reliability.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/crossarb/internal/notify"
)

// Client handles Telegram notifications. It implements notify.Sender.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

// NewClientWithEndpoint creates a client against a custom Bot API endpoint,
// in the "https://host/bot%s/%s" form expected by tgbotapi.
func NewClientWithEndpoint(botToken, chatID, endpoint string, httpClient tgbotapi.HTTPClient, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot *tgbotapi.BotAPI, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Name returns the sender identifier.
func (c *Client) Name() string {
	return "telegram"
}

// Send delivers msg, retrying with a linearly growing delay.
func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	out := tgbotapi.NewMessage(c.chatID, formatMessage(msg))
	out.ParseMode = tgbotapi.ModeMarkdownV2
	out.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(out)
		if err == nil {
			return nil
		}
		lastErr = err

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders msg as MarkdownV2. "**bold**" spans in the
// description become Telegram bold.
func formatMessage(msg notify.Message) string {
	var b strings.Builder
	b.WriteString("*" + escapeMarkdownV2(msg.Title) + "*\n\n")

	if msg.Description != "" {
		b.WriteString(renderBold(msg.Description))
		b.WriteString("\n")
	}

	for _, f := range msg.Fields {
		b.WriteString("\n")
		value := escapeMarkdownV2(f.Value)
		if f.URL != "" {
			value = fmt.Sprintf("[%s](%s)", value, escapeURL(f.URL))
		}
		if strings.Contains(f.Value, "\n") {
			fmt.Fprintf(&b, "*%s*\n%s\n", escapeMarkdownV2(f.Name), value)
		} else {
			fmt.Fprintf(&b, "*%s:* %s\n", escapeMarkdownV2(f.Name), value)
		}
	}

	return b.String()
}

func renderBold(s string) string {
	parts := strings.Split(s, "**")
	var b strings.Builder
	for i, p := range parts {
		if i%2 == 1 && i < len(parts)-1 {
			b.WriteString("*" + escapeMarkdownV2(p) + "*")
			continue
		}
		if i%2 == 1 {
			// unbalanced marker, keep it literal
			b.WriteString(escapeMarkdownV2("**"))
		}
		b.WriteString(escapeMarkdownV2(p))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! and the escape character itself
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeURL escapes the characters MarkdownV2 requires inside a link target.
func escapeURL(u string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(u)
}
