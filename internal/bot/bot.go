package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
	"taskbridge/internal/service"
)

// handlerTimeout bounds the work done for a single gateway event.
const handlerTimeout = 30 * time.Second

type Bot struct {
	session *discordgo.Session
	msgr    *Messenger
	guildID string
	ownerID string

	store       repository.Store
	cache       *service.ConfigCache
	transitions *service.TransitionService
	reassigns   *service.ReassignService
	tasks       *service.TaskService
	boards      *service.BoardService
}

func New(session *discordgo.Session, msgr *Messenger, guildID string, store repository.Store, cache *service.ConfigCache, transitions *service.TransitionService, reassigns *service.ReassignService, tasks *service.TaskService, boards *service.BoardService) *Bot {
	return &Bot{
		session:     session,
		msgr:        msgr,
		guildID:     guildID,
		store:       store,
		cache:       cache,
		transitions: transitions,
		reassigns:   reassigns,
		tasks:       tasks,
		boards:      boards,
	}
}

// Start opens the gateway connection and registers the slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onMessage)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	guild, err := b.session.Guild(b.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch guild %s: %w", b.guildID, err)
	}
	b.ownerID = guild.OwnerID

	for _, cmd := range commandDefs {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, cmd); err != nil {
			return fmt.Errorf("register command /%s: %w", cmd.Name, err)
		}
	}

	log.Printf("[info] bot ready in guild %s, %d commands registered", b.guildID, len(commandDefs))
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[info] logged in as %s#%s", r.User.Username, r.User.Discriminator)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if err := b.handleCommand(ctx, i); err != nil {
			log.Printf("handle command /%s: %v", i.ApplicationCommandData().Name, err)
		}
	case discordgo.InteractionMessageComponent:
		if err := b.handleComponent(ctx, i); err != nil {
			log.Printf("handle component %s: %v", i.MessageComponentData().CustomID, err)
		}
	}
}

// ackDeferred claims the interaction with a deferred ephemeral response.
// Everything after a successful ack reaches the actor through followup
// edits, so an ack failure aborts the handler before any mutation.
func (b *Bot) ackDeferred(ctx context.Context, i *discordgo.InteractionCreate) error {
	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
}

// respond fills in the deferred response with the terminal reply.
func (b *Bot) respond(ctx context.Context, i *discordgo.InteractionCreate, text string) {
	_, err := b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &text,
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.Printf("[warn] edit interaction response: %v", err)
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) actorFor(i *discordgo.InteractionCreate) service.Actor {
	user := interactionUser(i)
	name := user.Username
	if i.Member != nil && i.Member.Nick != "" {
		name = i.Member.Nick
	} else if user.GlobalName != "" {
		name = user.GlobalName
	}
	return service.Actor{
		Identity: model.Identity{ID: user.ID, Name: name},
		Owner:    user.ID == b.ownerID,
	}
}

// memberName resolves a guild member's display name, falling back to a
// mention string when the member cannot be fetched.
func (b *Bot) memberName(ctx context.Context, userID string) string {
	member, err := b.session.GuildMember(b.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		log.Printf("[warn] fetch member %s: %v", userID, err)
		return fmt.Sprintf("<@%s>", userID)
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}

var kindToStatus = map[service.AffordanceKind]model.Status{
	service.AffordanceWorking: model.StatusWorking,
	service.AffordanceOnHold:  model.StatusOnHold,
	service.AffordanceDone:    model.StatusDone,
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) error {
	kind, payload, ok := parseCustomID(i.MessageComponentData().CustomID)

	// Page flips update the listing message itself instead of opening a
	// fresh ephemeral reply, so they ack differently.
	if ok && kind == affordanceHoldPage {
		return b.handleHoldPage(ctx, i, payload)
	}

	if err := b.ackDeferred(ctx, i); err != nil {
		return fmt.Errorf("ack interaction: %w", err)
	}
	if !ok {
		b.respond(ctx, i, "I don't recognize that button anymore.")
		return nil
	}
	actor := b.actorFor(i)

	switch kind {
	case service.AffordanceWorking, service.AffordanceOnHold, service.AffordanceDone:
		return b.handleTransition(ctx, i, payload, kindToStatus[kind], actor)
	case service.AffordanceReassign:
		return b.sendReassignMenu(ctx, i, payload, actor)
	case affordanceReassignSelect:
		return b.handleReassignSelect(ctx, i, payload, actor)
	case service.AffordanceBacklog:
		return b.handleBacklog(ctx, i, payload, actor)
	}
	return nil
}

func (b *Bot) handleTransition(ctx context.Context, i *discordgo.InteractionCreate, taskID string, requested model.Status, actor service.Actor) error {
	result, err := b.transitions.ApplyTransition(ctx, taskID, requested, actor)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}

	// Edit the card the actor clicked right away so the buttons flip
	// before the slower fan-out catches up.
	if i.Message != nil {
		ref := service.MessageRef{GuildID: b.guildID, ChannelID: i.ChannelID, MessageID: i.Message.ID}
		if err := b.msgr.Edit(ctx, ref, result.Content); err != nil {
			log.Printf("[warn] fast edit of interacted card: %v", err)
		}
	}

	b.respond(ctx, i, transitionReply(result))
	b.transitions.Propagate(ctx, result)
	return nil
}

func transitionReply(result *service.TransitionResult) string {
	switch result.Task.Status {
	case model.StatusWorking:
		return fmt.Sprintf("▶️ You are now working on **%s**.", result.Task.Title)
	case model.StatusOnHold:
		return fmt.Sprintf("⏸️ **%s** is on hold. Time logged: %s.", result.Task.Title, formatSeconds(result.Task.TimeSpentSeconds))
	case model.StatusDone:
		return fmt.Sprintf("✅ **%s** is done. Total time: %s.", result.Task.Title, formatSeconds(result.Task.TimeSpentSeconds))
	}
	return fmt.Sprintf("**%s** is now %s.", result.Task.Title, result.Task.Status)
}

func (b *Bot) sendReassignMenu(ctx context.Context, i *discordgo.InteractionCreate, taskID string, actor service.Actor) error {
	task, err := b.tasks.Get(ctx, taskID)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}

	// The select itself would leak team membership, so the actor's
	// authority is checked before the menu is rendered, not just when
	// they pick someone.
	if err := b.reassigns.CanReassign(ctx, task, actor); err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}

	memberIDs, err := b.cache.TeamMembers(ctx, task.Team)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}
	if len(memberIDs) == 0 {
		b.respond(ctx, i, fmt.Sprintf("No members are registered for team **%s**. An admin can add them with `?user`.", task.Team))
		return nil
	}

	members := make([]memberOption, 0, len(memberIDs))
	for _, id := range memberIDs {
		members = append(members, memberOption{ID: id, Name: b.memberName(ctx, id)})
	}
	menu := reassignMenu(taskID, members, task.Assignee.ID)

	content := fmt.Sprintf("Who should take over **%s**?", task.Title)
	_, err = b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
		Components: &[]discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send reassign menu: %w", err)
	}
	return nil
}

func (b *Bot) handleReassignSelect(ctx context.Context, i *discordgo.InteractionCreate, taskID string, actor service.Actor) error {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		b.respond(ctx, i, "No assignee selected.")
		return nil
	}
	newAssignee := model.Identity{ID: values[0], Name: b.memberName(ctx, values[0])}

	result, err := b.reassigns.Reassign(ctx, taskID, &newAssignee, actor)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}
	b.respond(ctx, i, fmt.Sprintf("🔄 **%s** is now assigned to **%s** and on hold.", result.Task.Title, newAssignee.Name))
	return nil
}

func (b *Bot) handleBacklog(ctx context.Context, i *discordgo.InteractionCreate, taskID string, actor service.Actor) error {
	result, err := b.reassigns.Reassign(ctx, taskID, nil, actor)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}
	b.respond(ctx, i, fmt.Sprintf("📋 **%s** moved to the team backlog.", result.Task.Title))
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.InteractionCreate) error {
	if err := b.ackDeferred(ctx, i); err != nil {
		return fmt.Errorf("ack interaction: %w", err)
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "create":
		return b.handleCreate(ctx, i, data)
	case "tasks":
		return b.handleTasks(ctx, i)
	case "team-tasks":
		return b.handleTeamTasks(ctx, i, data)
	case "report":
		return b.handleReport(ctx, i, data)
	case "assigned-onhold":
		return b.handleAssignedOnHold(ctx, i)
	case "status-board":
		return b.handleStatusBoard(ctx, i)
	case "help":
		b.respond(ctx, i, helpText)
		return nil
	}
	b.respond(ctx, i, "Unknown command.")
	return nil
}

func optionMap(data discordgo.ApplicationCommandInteractionData) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}
	return opts
}

func (b *Bot) handleCreate(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data)
	actor := b.actorFor(i)

	input := service.CreateInput{
		Creator:         actor.Identity,
		SourceChannelID: i.ChannelID,
	}
	if opt, ok := opts["title"]; ok {
		input.Title = opt.StringValue()
	}
	if opt, ok := opts["priority"]; ok {
		input.Priority = int(opt.IntValue())
	}
	if opt, ok := opts["description"]; ok {
		input.Description = opt.StringValue()
	}
	if opt, ok := opts["assignee"]; ok {
		user := opt.UserValue(b.session)
		input.Assignee = &model.Identity{ID: user.ID, Name: b.memberName(ctx, user.ID)}
	}
	if opt, ok := opts["team"]; ok {
		input.Team = opt.StringValue()
	}

	result, err := b.tasks.Create(ctx, input)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Created **%s**", result.Task.Title)
	if result.Task.TeamMessageURL != "" {
		fmt.Fprintf(&sb, " — %s", result.Task.TeamMessageURL)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(&sb, "\n⚠️ %s", w)
	}
	b.respond(ctx, i, sb.String())
	return nil
}

func (b *Bot) handleTasks(ctx context.Context, i *discordgo.InteractionCreate) error {
	user := interactionUser(i)
	tasks, err := b.tasks.ListActive(ctx, user.ID)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}
	if len(tasks) == 0 {
		b.respond(ctx, i, "You have no active tasks. 🎉")
		return nil
	}
	b.respond(ctx, i, renderTaskList("Your active tasks", tasks))
	return nil
}

func (b *Bot) handleTeamTasks(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data)
	team := ""
	if opt, ok := opts["team"]; ok {
		team = opt.StringValue()
	}
	if team == "" {
		var err error
		team, err = b.cache.UserTeam(ctx, interactionUser(i).ID)
		if err != nil {
			b.respond(ctx, i, userMessage(err))
			return nil
		}
	}
	if team == "" {
		b.respond(ctx, i, "You are not registered with a team. Pass the `team` option or ask an admin to add you.")
		return nil
	}

	tasks, err := b.tasks.ListTeamActive(ctx, team)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}
	if len(tasks) == 0 {
		b.respond(ctx, i, fmt.Sprintf("Team **%s** has no active tasks.", team))
		return nil
	}
	b.respond(ctx, i, renderTaskList(fmt.Sprintf("Active tasks for **%s**", team), tasks))
	return nil
}

func renderTaskList(header string, tasks []model.Task) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString(":\n")
	for _, t := range tasks {
		marker := model.TierFor(t.Priority).Marker()
		fmt.Fprintf(&sb, "%s **%s** — %s", marker, t.Title, t.Status)
		if !t.Assignee.Empty() {
			fmt.Fprintf(&sb, " (%s)", t.Assignee.Name)
		}
		if t.TeamMessageURL != "" {
			fmt.Fprintf(&sb, " %s", t.TeamMessageURL)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) handleReport(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data)

	userID := interactionUser(i).ID
	name := b.actorFor(i).Name
	if opt, ok := opts["user"]; ok {
		user := opt.UserValue(b.session)
		userID = user.ID
		name = b.memberName(ctx, user.ID)
	}
	days := 7
	if opt, ok := opts["days"]; ok {
		days = int(opt.IntValue())
	}

	until := time.Now()
	since := until.AddDate(0, 0, -days)
	report, err := b.tasks.BuildReport(ctx, userID, since, until)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Report for **%s**, last %d days:\n", name, days)
	fmt.Fprintf(&sb, "✅ Completed: %d\n", report.Completed)
	fmt.Fprintf(&sb, "▶️ Working: %d\n", report.Working)
	fmt.Fprintf(&sb, "⏸️ On hold: %d\n", report.OnHold)
	fmt.Fprintf(&sb, "📬 Remaining: %d\n", report.Remaining)
	fmt.Fprintf(&sb, "🔄 Assigned to others: %d", report.AssignedToOthers)
	b.respond(ctx, i, sb.String())
	return nil
}

func (b *Bot) handleAssignedOnHold(ctx context.Context, i *discordgo.InteractionCreate) error {
	user := interactionUser(i)
	tasks, err := b.tasks.ListAssignedOnHold(ctx, user.ID)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}
	if len(tasks) == 0 {
		b.respond(ctx, i, "✅ Great! You have no tasks assigned to others that are on hold.")
		return nil
	}

	embeds, components := assignedOnHoldPage(tasks, 0, b.actorFor(i).Name, time.Now())
	_, err = b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send on-hold listing: %w", err)
	}
	return nil
}

// handleHoldPage flips the assigned-on-hold listing to another page. The
// listing is ephemeral, so only its requester can reach these buttons.
func (b *Bot) handleHoldPage(ctx context.Context, i *discordgo.InteractionCreate, payload string) error {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ack page flip: %w", err)
	}

	page, err := strconv.Atoi(payload)
	if err != nil {
		page = 0
	}

	user := interactionUser(i)
	tasks, err := b.tasks.ListAssignedOnHold(ctx, user.ID)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}

	embeds, components := assignedOnHoldPage(tasks, page, b.actorFor(i).Name, time.Now())
	_, err = b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("flip on-hold page: %w", err)
	}
	return nil
}

func (b *Bot) handleStatusBoard(ctx context.Context, i *discordgo.InteractionCreate) error {
	user := interactionUser(i)
	allowed, err := b.canConfigure(ctx, user.ID)
	if err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}
	if !allowed {
		b.respond(ctx, i, "🚫 Only admins can publish the status board.")
		return nil
	}

	if _, err := b.boards.Publish(ctx, i.ChannelID); err != nil {
		b.respond(ctx, i, userMessage(err))
		return nil
	}
	b.respond(ctx, i, "📊 Status board created! It will update as tasks change.")
	return nil
}

// userMessage translates engine errors into the reply the actor sees.
func userMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrTaskNotFound):
		return "⚠️ This task record no longer exists. Its card is stale; create a new task instead."
	case errors.Is(err, service.ErrForbidden):
		return "🚫 You don't have permission to do that with this task."
	case errors.Is(err, service.ErrIncompleteRecord):
		return "⚠️ This task record is missing its assignee. Ask an admin to fix it."
	case errors.Is(err, service.ErrConfigurationMissing):
		return "⚠️ A required channel or team is not configured. An admin can set it up with the `?` commands."
	}
	log.Printf("[error] operation failed: %v", err)
	return "❌ Something went wrong. Please try again."
}

func formatSeconds(total int64) string {
	d := time.Duration(total) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", total)
}

const helpText = "**Task commands**\n" +
	"`/create` — create a task and post its cards\n" +
	"`/tasks` — your Working and On Hold tasks\n" +
	"`/team-tasks` — your team's active tasks\n" +
	"`/assigned-onhold` — tasks you assigned to others that are still on hold\n" +
	"`/report` — activity summary for a user\n" +
	"`/status-board` — publish a live board of who is working on what (admin)\n\n" +
	"Use the buttons on a task card to change its status, reassign it or send it to the backlog.\n" +
	"Admins configure the bot with the `?` commands:\n" +
	"`?team <name> channel|log|backlog|role|lead <target>`\n" +
	"`?user <@user> team|channel <target>` and the shorthand `?assign <@user> <team>`\n" +
	"`?role <team> <@role>` — shorthand for `?team <team> role <@role>`\n" +
	"`?admin <@user> [remove]` and `?private <#channel> [remove]`"

func float64Ptr(v float64) *float64 { return &v }

var commandDefs = []*discordgo.ApplicationCommand{
	{
		Name:        "create",
		Description: "Create a task",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "Short task title",
				Required:    true,
				MaxLength:   model.MaxTitleLen,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "priority",
				Description: "Priority from 1 (lowest) to 10 (highest)",
				Required:    true,
				MinValue:    float64Ptr(model.MinPriority),
				MaxValue:    model.MaxPriority,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "description",
				Description: "What needs doing",
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "assignee",
				Description: "Who works on it; omit to send the task to the backlog",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "team",
				Description: "Team the task belongs to; defaults to the assignee's team",
			},
		},
	},
	{
		Name:        "tasks",
		Description: "List your active tasks",
	},
	{
		Name:        "team-tasks",
		Description: "List a team's active tasks",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "team",
				Description: "Team name; defaults to your own team",
			},
		},
	},
	{
		Name:        "assigned-onhold",
		Description: "View tasks you assigned to others that are still on hold",
	},
	{
		Name:        "status-board",
		Description: "Publish a live status board showing what everyone is working on",
	},
	{
		Name:        "report",
		Description: "Activity report for a user",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Whose report; defaults to you",
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "days",
				Description: "Window in days, default 7",
				MinValue:    float64Ptr(1),
				MaxValue:    90,
			},
		},
	},
	{
		Name:        "help",
		Description: "How to use the bot",
	},
}
