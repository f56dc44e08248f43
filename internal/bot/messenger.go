package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"taskbridge/internal/service"
)

// Messenger adapts a discordgo session to the narrow messaging boundary the
// services drive.
type Messenger struct {
	session *discordgo.Session
	guildID string
}

func NewMessenger(session *discordgo.Session, guildID string) *Messenger {
	return &Messenger{session: session, guildID: guildID}
}

func (m *Messenger) Send(ctx context.Context, channelID string, content service.MessageContent) (service.MessageRef, error) {
	msg, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    content.Text,
		Embeds:     embedsFor(content),
		Components: componentsFor(content),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return service.MessageRef{}, fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return service.MessageRef{GuildID: m.guildID, ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (m *Messenger) Edit(ctx context.Context, ref service.MessageRef, content service.MessageContent) error {
	text := content.Text
	embeds := embedsFor(content)
	components := componentsFor(content)
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    ref.ChannelID,
		ID:         ref.MessageID,
		Content:    &text,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit message %s: %w", ref.URL(), err)
	}
	return nil
}

func (m *Messenger) Delete(ctx context.Context, ref service.MessageRef) error {
	if err := m.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", ref.URL(), err)
	}
	return nil
}

func (m *Messenger) StartThread(ctx context.Context, ref service.MessageRef, name string) error {
	_, err := m.session.MessageThreadStartComplex(ref.ChannelID, ref.MessageID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 10080,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("start thread on %s: %w", ref.URL(), err)
	}
	return nil
}

func (m *Messenger) DirectMessage(ctx context.Context, userID string, content service.MessageContent) error {
	channel, err := m.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", userID, err)
	}
	_, err = m.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content:    content.Text,
		Embeds:     embedsFor(content),
		Components: componentsFor(content),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("dm %s: %w", userID, err)
	}
	return nil
}
