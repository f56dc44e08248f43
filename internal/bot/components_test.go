package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"taskbridge/internal/model"
	"taskbridge/internal/service"
)

func TestCustomIDRoundTrip(t *testing.T) {
	for _, kind := range []service.AffordanceKind{
		service.AffordanceWorking,
		service.AffordanceOnHold,
		service.AffordanceDone,
		service.AffordanceReassign,
		service.AffordanceBacklog,
		affordanceReassignSelect,
	} {
		id := customID(kind, "task_with_underscores")
		gotKind, gotTask, ok := parseCustomID(id)
		if !ok {
			t.Fatalf("parseCustomID(%q) rejected", id)
		}
		if gotKind != kind || gotTask != "task_with_underscores" {
			t.Errorf("parseCustomID(%q) = (%s, %s)", id, gotKind, gotTask)
		}
	}
}

func TestParseCustomID_Rejects(t *testing.T) {
	for _, raw := range []string{"", "working", "working_", "unknown_task-1", "_task-1"} {
		if _, _, ok := parseCustomID(raw); ok {
			t.Errorf("parseCustomID(%q) accepted", raw)
		}
	}
}

func TestComponentsFor_ButtonRow(t *testing.T) {
	content := service.MessageContent{
		Affordances: []service.Affordance{
			{Kind: service.AffordanceOnHold, TaskID: "t1", Disabled: true},
			{Kind: service.AffordanceWorking, TaskID: "t1"},
			{Kind: service.AffordanceDone, TaskID: "t1"},
		},
		LinkURL:   "https://discord.com/channels/g/c/m",
		LinkLabel: "Go to Thread",
	}

	rows := componentsFor(content)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want a button row plus a link row", len(rows))
	}

	buttons := rows[0].(discordgo.ActionsRow).Components
	if len(buttons) != 3 {
		t.Fatalf("buttons = %d, want 3", len(buttons))
	}
	first := buttons[0].(discordgo.Button)
	if !first.Disabled {
		t.Error("disabled affordance rendered enabled")
	}
	if first.CustomID != "onhold_t1" {
		t.Errorf("custom id = %q", first.CustomID)
	}
	done := buttons[2].(discordgo.Button)
	if done.Style != discordgo.SuccessButton {
		t.Errorf("done style = %v, want success", done.Style)
	}

	link := rows[1].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	if link.Style != discordgo.LinkButton || link.URL == "" || link.CustomID != "" {
		t.Errorf("link button malformed: %+v", link)
	}
}

func TestEmbedsFor_PlainTextHasNoEmbed(t *testing.T) {
	if got := embedsFor(service.MessageContent{Text: "just text"}); got != nil {
		t.Errorf("embeds = %v, want none", got)
	}

	embeds := embedsFor(service.MessageContent{Title: "card", Footer: "f"})
	if len(embeds) != 1 || embeds[0].Title != "card" || embeds[0].Footer.Text != "f" {
		t.Errorf("embeds = %+v", embeds)
	}
}

func TestReassignMenu_ExcludesCurrentAssigneeAndCaps(t *testing.T) {
	members := make([]memberOption, 0, 30)
	for i := 0; i < 30; i++ {
		members = append(members, memberOption{ID: string(rune('a' + i)), Name: "m"})
	}
	menu := reassignMenu("t1", members, "a")

	if len(menu.Options) != 25 {
		t.Errorf("options = %d, want the 25-option cap", len(menu.Options))
	}
	for _, opt := range menu.Options {
		if opt.Value == "a" {
			t.Error("current assignee offered as a reassignment target")
		}
	}
	if menu.CustomID != "reassignselect_t1" {
		t.Errorf("custom id = %q", menu.CustomID)
	}
}

func TestAssignedOnHoldPage_Pagination(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	held := now.AddDate(0, 0, -3)
	tasks := make([]model.Task, 23)
	for i := range tasks {
		tasks[i] = model.Task{
			Title:          fmt.Sprintf("Task %02d", i+1),
			Priority:       5,
			Status:         model.StatusOnHold,
			Assignee:       model.Identity{ID: "u", Name: "Someone"},
			LastPausedAt:   &held,
			TeamMessageURL: "https://discord.com/channels/g/c/m",
		}
	}

	embeds, components := assignedOnHoldPage(tasks, 1, "Creator", now)
	if len(embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(embeds))
	}
	embed := embeds[0]
	if len(embed.Fields) != 10 {
		t.Errorf("fields = %d, want 10 on the middle page", len(embed.Fields))
	}
	if embed.Fields[0].Name != "11. Task 11" {
		t.Errorf("first field = %q, want numbering to continue across pages", embed.Fields[0].Name)
	}
	if !strings.Contains(embed.Fields[0].Value, "On hold for:** 3 days") {
		t.Errorf("field value = %q, want hold duration", embed.Fields[0].Value)
	}
	if embed.Footer.Text != "Requested by Creator • Page 2 of 3" {
		t.Errorf("footer = %q", embed.Footer.Text)
	}

	if len(components) != 1 {
		t.Fatalf("components = %d, want one nav row", len(components))
	}
	row := components[0].(discordgo.ActionsRow)
	prev := row.Components[0].(discordgo.Button)
	next := row.Components[2].(discordgo.Button)
	if prev.CustomID != "holdpage_0" || prev.Disabled {
		t.Errorf("prev button = %+v", prev)
	}
	if next.CustomID != "holdpage_2" || next.Disabled {
		t.Errorf("next button = %+v", next)
	}
}

func TestAssignedOnHoldPage_ClampsAndHidesNav(t *testing.T) {
	now := time.Now()
	tasks := []model.Task{{Title: "Only one", Priority: 2, Status: model.StatusOnHold}}

	// A stale page index lands on the last real page.
	embeds, components := assignedOnHoldPage(tasks, 7, "Creator", now)
	if got := embeds[0].Fields[0].Name; got != "1. Only one" {
		t.Errorf("field = %q, want the single task", got)
	}
	if len(components) != 0 {
		t.Errorf("nav row present for a single page: %v", components)
	}
}

func TestHelpTextListsConfigGrammar(t *testing.T) {
	for _, cmd := range []string{"?team", "?user", "?assign", "?role", "?admin", "?private",
		"/assigned-onhold", "/status-board"} {
		if !strings.Contains(helpText, cmd) {
			t.Errorf("help text misses %s", cmd)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{45, "45s"},
		{90, "1m"},
		{3600, "1h 0m"},
		{5400, "1h 30m"},
	}
	for _, tc := range cases {
		if got := formatSeconds(tc.seconds); got != tc.want {
			t.Errorf("formatSeconds(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestParseMention(t *testing.T) {
	if id, ok := parseMention(mentionUserRe, "<@123>"); !ok || id != "123" {
		t.Errorf("user mention = %q, %v", id, ok)
	}
	if id, ok := parseMention(mentionUserRe, "<@!456>"); !ok || id != "456" {
		t.Errorf("nick mention = %q, %v", id, ok)
	}
	if id, ok := parseMention(mentionChannelRe, "<#789>"); !ok || id != "789" {
		t.Errorf("channel mention = %q, %v", id, ok)
	}
	if id, ok := parseMention(mentionRoleRe, "<@&321>"); !ok || id != "321" {
		t.Errorf("role mention = %q, %v", id, ok)
	}
	if _, ok := parseMention(mentionUserRe, "plain"); ok {
		t.Error("plain text accepted as mention")
	}
}
