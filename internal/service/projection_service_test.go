package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskbridge/internal/model"
)

func TestRender_CardShape(t *testing.T) {
	p := NewProjectionService(newFakeMessenger())
	task := model.Task{
		ID:          "task-1",
		Title:       "Fix login flow",
		Description: "Session cookies expire too early",
		Team:        teamAlpha,
		Priority:    9,
		Status:      model.StatusWorking,
		Assignee:    alice,
		Creator:     creat,
	}

	content := p.Render(task)
	if !strings.HasPrefix(content.Title, "🔴 ") {
		t.Errorf("title = %q, want critical marker prefix", content.Title)
	}
	if len(content.Fields) != 3 {
		t.Fatalf("fields = %d, want Assignee/Team/Status", len(content.Fields))
	}
	if content.Fields[2].Value != "▶️ Working" {
		t.Errorf("status field = %q", content.Fields[2].Value)
	}
	if !strings.Contains(content.Footer, creat.Name) {
		t.Errorf("footer = %q, want creator credit", content.Footer)
	}
}

func TestRender_TruncatesLongDescription(t *testing.T) {
	p := NewProjectionService(newFakeMessenger())
	task := model.Task{
		Title:       "Long one",
		Description: strings.Repeat("я", model.DescriptionPreview+100),
		Priority:    5,
		Status:      model.StatusOnHold,
		Assignee:    alice,
	}

	content := p.Render(task)
	runes := []rune(content.Description)
	if len(runes) != model.DescriptionPreview {
		t.Errorf("description length = %d runes, want %d", len(runes), model.DescriptionPreview)
	}
	if runes[len(runes)-1] != '…' {
		t.Error("truncated description missing ellipsis")
	}
}

func TestRender_UnassignedShowsPlaceholder(t *testing.T) {
	p := NewProjectionService(newFakeMessenger())
	content := p.Render(model.Task{Title: "t", Priority: 1, Status: model.StatusBacklog})
	if content.Fields[0].Value != "—" {
		t.Errorf("assignee field = %q, want placeholder", content.Fields[0].Value)
	}
}

func TestAffordancesFor_PerStatus(t *testing.T) {
	kinds := func(task model.Task) []AffordanceKind {
		var out []AffordanceKind
		for _, a := range AffordancesFor(task) {
			out = append(out, a.Kind)
		}
		return out
	}

	backlog := kinds(model.Task{ID: "t", Status: model.StatusBacklog})
	if len(backlog) != 1 || backlog[0] != AffordanceReassign {
		t.Errorf("backlog affordances = %v, want reassign only", backlog)
	}

	working := kinds(model.Task{ID: "t", Status: model.StatusWorking})
	if len(working) != 4 {
		t.Errorf("working affordances = %v, want 4 without a working button", working)
	}
	for _, k := range working {
		if k == AffordanceWorking {
			t.Error("working card offers its own status")
		}
	}

	for _, status := range []model.Status{model.StatusOnHold, model.StatusDone} {
		affs := AffordancesFor(model.Task{ID: "t", Status: status})
		if len(affs) != 5 {
			t.Fatalf("%s affordances = %d, want 5", status, len(affs))
		}
		for _, a := range affs {
			wantDisabled := (status == model.StatusOnHold && a.Kind == AffordanceOnHold) ||
				(status == model.StatusDone && a.Kind == AffordanceDone)
			if a.Disabled != wantDisabled {
				t.Errorf("%s: %s disabled = %v, want %v", status, a.Kind, a.Disabled, wantDisabled)
			}
		}
	}
}

func TestParseMessageURL(t *testing.T) {
	ref := MessageRef{GuildID: "g1", ChannelID: "c1", MessageID: "m1"}
	parsed, err := ParseMessageURL(ref.URL())
	if err != nil {
		t.Fatalf("ParseMessageURL: %v", err)
	}
	if parsed != ref {
		t.Errorf("parsed = %+v, want %+v", parsed, ref)
	}

	for _, bad := range []string{
		"",
		"https://example.com/channels/g/c/m",
		"https://discord.com/channels/g/c",
		"https://discord.com/channels/g//m",
	} {
		if _, err := ParseMessageURL(bad); err == nil {
			t.Errorf("ParseMessageURL(%q) accepted", bad)
		}
	}
}

func TestUpdateLocation_ToleratesMissingMessage(t *testing.T) {
	msgr := newFakeMessenger()
	msgr.editErr = errors.New("unknown message")
	p := NewProjectionService(msgr)

	// Must not panic or propagate the failure.
	p.UpdateLocation(context.Background(), "https://discord.com/channels/g/c/m", MessageContent{Text: "x"})
	p.UpdateLocation(context.Background(), "", MessageContent{Text: "x"})
	p.UpdateLocation(context.Background(), "not-a-url", MessageContent{Text: "x"})
}

func TestRelocate_PostsBeforeDeleting(t *testing.T) {
	msgr := newFakeMessenger()
	p := NewProjectionService(msgr)
	from := "https://discord.com/channels/g/old-chan/old-msg"

	ref, err := p.Relocate(context.Background(), from, "new-chan", MessageContent{Text: "card"})
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if ref.ChannelID != "new-chan" {
		t.Errorf("new channel = %s", ref.ChannelID)
	}
	if len(msgr.ops) != 2 || !strings.HasPrefix(msgr.ops[0], "send:") || !strings.HasPrefix(msgr.ops[1], "delete:") {
		t.Errorf("ops = %v, want send then delete", msgr.ops)
	}
}

func TestRelocate_SendFailureKeepsOldCard(t *testing.T) {
	msgr := newFakeMessenger()
	msgr.sendErr["new-chan"] = errors.New("no access")
	p := NewProjectionService(msgr)

	_, err := p.Relocate(context.Background(), "https://discord.com/channels/g/c/m", "new-chan", MessageContent{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(msgr.deletes) != 0 {
		t.Error("old card deleted although the new post failed")
	}
}
