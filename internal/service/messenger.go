package service

import (
	"context"
	"fmt"
	"strings"
)

// MessageRef locates one previously posted message.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

func (r MessageRef) IsZero() bool {
	return r.ChannelID == "" || r.MessageID == ""
}

// URL renders the reference in the canonical Discord link form, which is
// what gets persisted on the task record.
func (r MessageRef) URL() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", r.GuildID, r.ChannelID, r.MessageID)
}

// ParseMessageURL inverts MessageRef.URL.
func ParseMessageURL(raw string) (MessageRef, error) {
	const prefix = "https://discord.com/channels/"
	if !strings.HasPrefix(raw, prefix) {
		return MessageRef{}, fmt.Errorf("not a message URL: %q", raw)
	}
	parts := strings.Split(strings.TrimPrefix(raw, prefix), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return MessageRef{}, fmt.Errorf("malformed message URL: %q", raw)
	}
	return MessageRef{GuildID: parts[0], ChannelID: parts[1], MessageID: parts[2]}, nil
}

// AffordanceKind names one task action button. The values double as the
// custom-id prefixes the dispatcher parses back out of interactions.
type AffordanceKind string

const (
	AffordanceOnHold   AffordanceKind = "onhold"
	AffordanceWorking  AffordanceKind = "working"
	AffordanceDone     AffordanceKind = "done"
	AffordanceReassign AffordanceKind = "reassign"
	AffordanceBacklog  AffordanceKind = "backlog"
)

// Affordance is one button attached to a task card.
type Affordance struct {
	Kind     AffordanceKind
	TaskID   string
	Disabled bool
}

// EmbedField is one name/value pair in a rendered task card.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// MessageContent is a platform-neutral rendering of a message: plain text,
// an optional embed, task action buttons and an optional link button. The
// bot package translates it into Discord payloads.
type MessageContent struct {
	Text        string
	Title       string
	Description string
	Fields      []EmbedField
	Footer      string
	Color       int
	Affordances []Affordance
	LinkURL     string
	LinkLabel   string
}

func (c MessageContent) HasEmbed() bool {
	return c.Title != "" || c.Description != "" || len(c.Fields) > 0 || c.Footer != ""
}

// Messenger is the narrow messaging-platform boundary the engine drives.
// Implementations must be safe for concurrent use.
type Messenger interface {
	Send(ctx context.Context, channelID string, content MessageContent) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, content MessageContent) error
	Delete(ctx context.Context, ref MessageRef) error
	StartThread(ctx context.Context, ref MessageRef, name string) error
	DirectMessage(ctx context.Context, userID string, content MessageContent) error
}
