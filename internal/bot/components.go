package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"taskbridge/internal/model"
	"taskbridge/internal/service"
)

// embedsFor converts platform-neutral content into Discord embeds.
func embedsFor(content service.MessageContent) []*discordgo.MessageEmbed {
	if !content.HasEmbed() {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       content.Title,
		Description: content.Description,
		Color:       content.Color,
	}
	for _, f := range content.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if content.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: content.Footer}
	}
	return []*discordgo.MessageEmbed{embed}
}

var affordanceButtons = map[service.AffordanceKind]struct {
	label string
	emoji string
	style discordgo.ButtonStyle
}{
	service.AffordanceWorking:  {"Working", "▶️", discordgo.PrimaryButton},
	service.AffordanceOnHold:   {"On Hold", "⏸️", discordgo.SecondaryButton},
	service.AffordanceDone:     {"Done", "✅", discordgo.SuccessButton},
	service.AffordanceReassign: {"Reassign", "🔄", discordgo.SecondaryButton},
	service.AffordanceBacklog:  {"Backlog", "📋", discordgo.SecondaryButton},
}

// componentsFor builds the button rows for a message. Affordance buttons share
// one row; an optional link button gets a row of its own.
func componentsFor(content service.MessageContent) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	if len(content.Affordances) > 0 {
		var buttons []discordgo.MessageComponent
		for _, a := range content.Affordances {
			spec, ok := affordanceButtons[a.Kind]
			if !ok {
				continue
			}
			buttons = append(buttons, discordgo.Button{
				Label:    spec.label,
				Style:    spec.style,
				Emoji:    &discordgo.ComponentEmoji{Name: spec.emoji},
				CustomID: customID(a.Kind, a.TaskID),
				Disabled: a.Disabled,
			})
		}
		rows = append(rows, discordgo.ActionsRow{Components: buttons})
	}
	if content.LinkURL != "" {
		label := content.LinkLabel
		if label == "" {
			label = "Open"
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: label, Style: discordgo.LinkButton, URL: content.LinkURL},
		}})
	}
	return rows
}

func customID(kind service.AffordanceKind, taskID string) string {
	return fmt.Sprintf("%s_%s", kind, taskID)
}

// parseCustomID splits a component custom id back into its affordance kind and
// task id. Task ids may themselves contain underscores, so only the first
// separator counts.
func parseCustomID(id string) (service.AffordanceKind, string, bool) {
	kind, taskID, ok := strings.Cut(id, "_")
	if !ok || taskID == "" {
		return "", "", false
	}
	switch k := service.AffordanceKind(kind); k {
	case service.AffordanceWorking, service.AffordanceOnHold, service.AffordanceDone,
		service.AffordanceReassign, service.AffordanceBacklog, affordanceReassignSelect,
		affordanceHoldPage:
		return k, taskID, true
	}
	return "", "", false
}

// affordanceReassignSelect identifies the member select menu spawned by the
// reassign button. It never appears on a card, only in the ephemeral follow-up.
const affordanceReassignSelect service.AffordanceKind = "reassignselect"

// affordanceHoldPage drives pagination of the assigned-on-hold listing. Its
// payload is a page index, not a task id.
const affordanceHoldPage service.AffordanceKind = "holdpage"

const holdTasksPerPage = 10

// assignedOnHoldPage renders one page of the assigned-on-hold listing plus
// its navigation row. Page indexes are clamped because the task set can
// shrink between clicks.
func assignedOnHoldPage(tasks []model.Task, page int, requester string, now time.Time) ([]*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	totalPages := (len(tasks) + holdTasksPerPage - 1) / holdTasksPerPage
	if page >= totalPages {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}
	start := page * holdTasksPerPage
	end := start + holdTasksPerPage
	if end > len(tasks) {
		end = len(tasks)
	}

	plural := "s"
	if len(tasks) == 1 {
		plural = ""
	}
	embed := &discordgo.MessageEmbed{
		Title:       "⏸️ Tasks Assigned to Others - On Hold",
		Color:       service.ColorRelocate,
		Description: fmt.Sprintf("You have **%d** task%s assigned to others that are currently on hold.", len(tasks), plural),
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Requested by %s • Page %d of %d", requester, page+1, totalPages)},
	}
	for idx, t := range tasks[start:end] {
		assignee := t.Assignee.Name
		if assignee == "" {
			assignee = "Unknown"
		}
		heldSince := t.CreatedAt
		if t.LastPausedAt != nil {
			heldSince = *t.LastPausedAt
		}
		days := int(now.Sub(heldSince).Hours() / 24)
		dayPlural := "s"
		if days == 1 {
			dayPlural = ""
		}
		lines := []string{
			fmt.Sprintf("👤 **Assigned to:** %s", assignee),
			fmt.Sprintf("%s **Priority:** %d", model.TierFor(t.Priority).Marker(), t.Priority),
			fmt.Sprintf("📅 **On hold for:** %d day%s", days, dayPlural),
		}
		if t.TeamMessageURL != "" {
			lines = append(lines, fmt.Sprintf("🔗 [Go to Task](%s)", t.TeamMessageURL))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d. %s", start+idx+1, t.Title),
			Value: strings.Join(lines, "\n"),
		})
	}

	var components []discordgo.MessageComponent
	if totalPages > 1 {
		components = append(components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "◀ Previous",
				Style:    discordgo.PrimaryButton,
				CustomID: customID(affordanceHoldPage, strconv.Itoa(page-1)),
				Disabled: page == 0,
			},
			discordgo.Button{
				Label:    fmt.Sprintf("Page %d/%d", page+1, totalPages),
				Style:    discordgo.SecondaryButton,
				CustomID: customID(affordanceHoldPage, "current"),
				Disabled: true,
			},
			discordgo.Button{
				Label:    "Next ▶",
				Style:    discordgo.PrimaryButton,
				CustomID: customID(affordanceHoldPage, strconv.Itoa(page+1)),
				Disabled: page >= totalPages-1,
			},
		}})
	}
	return []*discordgo.MessageEmbed{embed}, components
}

type memberOption struct {
	ID   string
	Name string
}

// reassignMenu builds a member select for picking the new assignee.
func reassignMenu(taskID string, members []memberOption, exclude string) discordgo.SelectMenu {
	options := make([]discordgo.SelectMenuOption, 0, len(members))
	for _, m := range members {
		if m.ID == exclude {
			continue
		}
		options = append(options, discordgo.SelectMenuOption{
			Label: m.Name,
			Value: m.ID,
		})
		// Discord caps select menus at 25 options.
		if len(options) == 25 {
			break
		}
	}
	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customID(affordanceReassignSelect, taskID),
		Placeholder: "Pick the new assignee",
		Options:     options,
	}
}
