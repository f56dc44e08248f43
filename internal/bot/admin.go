package bot

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"taskbridge/internal/model"
)

// Configuration is managed through message commands rather than slash
// commands so records can be pasted and replayed from a setup channel.
//
//	?team <name> channel|log|backlog <#channel>
//	?team <name> role <@role>
//	?team <name> lead <@user>
//	?user <@user> team <name>
//	?user <@user> channel <#channel>
//	?assign <@user> <team>
//	?role <team> <@role>
//	?admin [remove] <@user>
//	?private [remove] <#channel>
const configPrefix = "?"

var (
	mentionUserRe    = regexp.MustCompile(`^<@!?(\d+)>$`)
	mentionChannelRe = regexp.MustCompile(`^<#(\d+)>$`)
	mentionRoleRe    = regexp.MustCompile(`^<@&(\d+)>$`)
)

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != b.guildID {
		return
	}
	if !strings.HasPrefix(m.Content, configPrefix) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	reply, err := b.handleConfigCommand(ctx, m)
	if err != nil {
		log.Printf("config command %q from %s: %v", m.Content, m.Author.ID, err)
		reply = "❌ Something went wrong. Please try again."
	}
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSendReply(m.ChannelID, reply, m.Reference(), discordgo.WithContext(ctx)); err != nil {
		log.Printf("[warn] reply to config command: %v", err)
	}
}

func (b *Bot) handleConfigCommand(ctx context.Context, m *discordgo.MessageCreate) (string, error) {
	fields := strings.Fields(strings.TrimPrefix(m.Content, configPrefix))
	if len(fields) == 0 {
		return "", nil
	}

	allowed, err := b.canConfigure(ctx, m.Author.ID)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "🚫 Only admins can change the bot configuration.", nil
	}

	switch fields[0] {
	case "team":
		return b.configTeam(ctx, fields[1:])
	case "user":
		return b.configUser(ctx, fields[1:])
	case "assign":
		// Shorthand for ?user <@user> team <name>.
		if len(fields) != 3 {
			return "Usage: `?assign <@user> <team>`", nil
		}
		return b.configUser(ctx, []string{fields[1], "team", fields[2]})
	case "role":
		// Shorthand for ?team <name> role <@role>.
		if len(fields) != 3 {
			return "Usage: `?role <team> <@role>`", nil
		}
		return b.configTeam(ctx, []string{fields[1], "role", fields[2]})
	case "admin":
		return b.configAdmin(ctx, fields[1:])
	case "private":
		return b.configPrivate(ctx, fields[1:])
	}
	return "", nil
}

func (b *Bot) canConfigure(ctx context.Context, userID string) (bool, error) {
	if userID == b.ownerID {
		return true, nil
	}
	return b.cache.IsAdmin(ctx, userID)
}

func (b *Bot) configTeam(ctx context.Context, args []string) (string, error) {
	if len(args) != 3 {
		return "Usage: `?team <name> channel|log|backlog|role|lead <target>`", nil
	}
	team, kind, target := args[0], args[1], args[2]

	switch kind {
	case "channel", "log", "backlog":
		channelID, ok := parseMention(mentionChannelRe, target)
		if !ok {
			return "The last argument must be a #channel mention.", nil
		}
		recType := model.RecordTeamChannel
		switch kind {
		case "log":
			recType = model.RecordTeamLogChannel
		case "backlog":
			recType = model.RecordTeamBacklogChannel
		}
		rec := model.ConfigRecord{Type: recType, Key: team, Value: channelID}
		if err := b.store.UpsertConfigRecord(ctx, rec); err != nil {
			return "", err
		}
		b.cache.Invalidate()
		return fmt.Sprintf("✅ %s for **%s** set to <#%s>.", recType, team, channelID), nil

	case "role":
		roleID, ok := parseMention(mentionRoleRe, target)
		if !ok {
			return "The last argument must be a @role mention.", nil
		}
		rec := model.ConfigRecord{Type: model.RecordTeamRole, Key: team, Value: roleID}
		if err := b.store.UpsertConfigRecord(ctx, rec); err != nil {
			return "", err
		}
		b.cache.Invalidate()
		return fmt.Sprintf("✅ Role for team **%s** set.", team), nil

	case "lead":
		userID, ok := parseMention(mentionUserRe, target)
		if !ok {
			return "The last argument must be a @user mention.", nil
		}
		rec := model.ConfigRecord{Type: model.RecordTeamLead, Key: userID, Team: team}
		if err := b.store.UpsertConfigRecord(ctx, rec); err != nil {
			return "", err
		}
		b.cache.Invalidate()
		return fmt.Sprintf("✅ <@%s> is now a lead of team **%s**.", userID, team), nil
	}
	return "Usage: `?team <name> channel|log|backlog|role|lead <target>`", nil
}

func (b *Bot) configUser(ctx context.Context, args []string) (string, error) {
	if len(args) != 3 {
		return "Usage: `?user <@user> team <name>` or `?user <@user> channel <#channel>`", nil
	}
	userID, ok := parseMention(mentionUserRe, args[0])
	if !ok {
		return "The first argument must be a @user mention.", nil
	}

	switch args[1] {
	case "team":
		rec := model.ConfigRecord{Type: model.RecordUserTeam, Key: userID, Team: args[2]}
		if err := b.store.UpsertConfigRecord(ctx, rec); err != nil {
			return "", err
		}
		b.cache.Invalidate()
		return fmt.Sprintf("✅ <@%s> is now on team **%s**.", userID, args[2]), nil

	case "channel":
		channelID, ok := parseMention(mentionChannelRe, args[2])
		if !ok {
			return "The last argument must be a #channel mention.", nil
		}
		rec := model.ConfigRecord{Type: model.RecordPersonChannel, Key: userID, Value: channelID}
		if err := b.store.UpsertConfigRecord(ctx, rec); err != nil {
			return "", err
		}
		b.cache.Invalidate()
		return fmt.Sprintf("✅ Personal channel for <@%s> set to <#%s>.", userID, channelID), nil
	}
	return "Usage: `?user <@user> team <name>` or `?user <@user> channel <#channel>`", nil
}

func (b *Bot) configAdmin(ctx context.Context, args []string) (string, error) {
	remove := false
	if len(args) == 2 && args[0] == "remove" {
		remove = true
		args = args[1:]
	}
	if len(args) != 1 {
		return "Usage: `?admin [remove] <@user>`", nil
	}
	userID, ok := parseMention(mentionUserRe, args[0])
	if !ok {
		return "The argument must be a @user mention.", nil
	}

	if remove {
		if err := b.store.DeleteConfigRecords(ctx, userID, model.RecordAdmin); err != nil {
			return "", err
		}
		b.cache.Invalidate()
		return fmt.Sprintf("✅ <@%s> is no longer an admin.", userID), nil
	}
	rec := model.ConfigRecord{Type: model.RecordAdmin, Key: userID}
	if err := b.store.UpsertConfigRecord(ctx, rec); err != nil {
		return "", err
	}
	b.cache.Invalidate()
	return fmt.Sprintf("✅ <@%s> is now an admin.", userID), nil
}

func (b *Bot) configPrivate(ctx context.Context, args []string) (string, error) {
	remove := false
	if len(args) == 2 && args[0] == "remove" {
		remove = true
		args = args[1:]
	}
	if len(args) != 1 {
		return "Usage: `?private [remove] <#channel>`", nil
	}
	channelID, ok := parseMention(mentionChannelRe, args[0])
	if !ok {
		return "The argument must be a #channel mention.", nil
	}

	if remove {
		if err := b.store.DeleteConfigRecords(ctx, channelID, model.RecordPrivateChannel); err != nil {
			return "", err
		}
		b.cache.Invalidate()
		return fmt.Sprintf("✅ <#%s> is no longer private.", channelID), nil
	}
	rec := model.ConfigRecord{Type: model.RecordPrivateChannel, Key: channelID, Value: channelID}
	if err := b.store.UpsertConfigRecord(ctx, rec); err != nil {
		return "", err
	}
	b.cache.Invalidate()
	return fmt.Sprintf("✅ Tasks created in <#%s> will stay in that channel.", channelID), nil
}

func parseMention(re *regexp.Regexp, raw string) (string, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}
