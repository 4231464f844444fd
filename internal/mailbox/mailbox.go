// Package mailbox wraps the Gmail API for one account: candidate search,
// mark-handled, and the recent-mail listing used by the debug tool.
package mailbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const unreadLabelID = "UNREAD"

// Client wraps a Gmail service for a single account.
type Client struct {
	svc       *gmail.Service
	labelName string
	labelID   string
	log       zerolog.Logger
}

// New creates a mailbox client. labelName is the label applied to handled
// messages; empty disables labeling (messages are only marked read).
func New(ctx context.Context, labelName string, log zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailbox: create gmail service: %w", err)
	}
	return &Client{svc: svc, labelName: labelName, log: log}, nil
}

// ListCandidates returns full messages matching the search query, in the
// order the backend lists them. A failed fetch of an individual message is
// logged and skipped; a failed list aborts.
func (c *Client) ListCandidates(ctx context.Context, query string) ([]*gmail.Message, error) {
	res, err := c.svc.Users.Messages.List("me").Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("mailbox: list messages: %w", err)
	}

	msgs := make([]*gmail.Message, 0, len(res.Messages))
	for _, ref := range res.Messages {
		msg, err := c.svc.Users.Messages.Get("me", ref.Id).Context(ctx).Do()
		if err != nil {
			c.log.Error().Err(err).Str("message_id", ref.Id).Msg("Failed to fetch message")
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// MarkHandled removes the unread label and, when a processed label is
// configured, ensures it exists and applies it.
func (c *Client) MarkHandled(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{unreadLabelID}}

	if c.labelName != "" {
		labelID, err := c.ensureLabel(ctx)
		if err != nil {
			return err
		}
		req.AddLabelIds = []string{labelID}
	}

	if _, err := c.svc.Users.Messages.Modify("me", id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mailbox: mark message %s handled: %w", id, err)
	}
	return nil
}

// MarkRead removes only the unread label, leaving labels untouched.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{unreadLabelID}}
	if _, err := c.svc.Users.Messages.Modify("me", id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mailbox: mark message %s read: %w", id, err)
	}
	return nil
}

func (c *Client) ensureLabel(ctx context.Context) (string, error) {
	if c.labelID != "" {
		return c.labelID, nil
	}

	res, err := c.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("mailbox: list labels: %w", err)
	}
	for _, label := range res.Labels {
		if label.Name == c.labelName {
			c.labelID = label.Id
			return c.labelID, nil
		}
	}

	created, err := c.svc.Users.Labels.Create("me", &gmail.Label{
		Name:                  c.labelName,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("mailbox: create label %q: %w", c.labelName, err)
	}
	c.labelID = created.Id
	return c.labelID, nil
}

// Summary is the condensed view of a message for interactive listings.
type Summary struct {
	ID      string
	Subject string
	From    string
	Date    string
	Snippet string
	Payload *gmail.MessagePart
}

// Recent lists messages newer than the given range ("12h", "3d", "1w"...),
// optionally restricted to financial-looking subjects.
func (c *Client) Recent(ctx context.Context, timeRange string, maxResults int64, financialOnly bool) ([]Summary, error) {
	query := fmt.Sprintf("newer_than:%s", timeRange)
	if financialOnly {
		query += " subject:(receipt OR invoice OR payment OR transaction OR order OR purchase OR subscription)"
	}

	res, err := c.svc.Users.Messages.List("me").Q(query).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("mailbox: list recent messages: %w", err)
	}

	summaries := make([]Summary, 0, len(res.Messages))
	for _, ref := range res.Messages {
		msg, err := c.svc.Users.Messages.Get("me", ref.Id).Context(ctx).Do()
		if err != nil {
			c.log.Error().Err(err).Str("message_id", ref.Id).Msg("Failed to fetch message")
			continue
		}
		summaries = append(summaries, Summarize(msg))
	}
	return summaries, nil
}

// Summarize builds a Summary from a full message.
func Summarize(msg *gmail.Message) Summary {
	s := Summary{
		ID:      msg.Id,
		Subject: "No Subject",
		From:    "Unknown",
		Snippet: msg.Snippet,
	}
	if msg.Payload != nil {
		s.Payload = msg.Payload
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				s.Subject = h.Value
			case "from":
				s.From = h.Value
			}
		}
	}
	if msg.InternalDate > 0 {
		s.Date = time.UnixMilli(msg.InternalDate).Format("2006-01-02 15:04:05")
	}
	return s
}
