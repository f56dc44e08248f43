package service

import (
	"context"
	"fmt"
	"log"

	"taskbridge/internal/model"
)

// Embed accent colors.
const (
	ColorDefault  = 0x5865F2
	ColorDone     = 0x57F287
	ColorRelocate = 0xFFA500
)

// ProjectionService keeps every posted rendering of a task in sync with the
// record it was rendered from. Renders are pure; message operations are
// tolerant of remote state having been deleted out from under us.
type ProjectionService struct {
	msgr Messenger
}

func NewProjectionService(msgr Messenger) *ProjectionService {
	return &ProjectionService{msgr: msgr}
}

// Render produces the card for a task from its current record state alone.
func (p *ProjectionService) Render(task model.Task) MessageContent {
	tier := model.TierFor(task.Priority)

	assignee := task.Assignee.Name
	if task.Assignee.Empty() {
		assignee = "—"
	}

	return MessageContent{
		Title:       fmt.Sprintf("%s %s", tier.Marker(), task.Title),
		Description: truncate(task.Description, model.DescriptionPreview),
		Fields: []EmbedField{
			{Name: "Assignee", Value: assignee, Inline: true},
			{Name: "Team", Value: task.Team, Inline: true},
			{Name: "Status", Value: statusLabel(task.Status), Inline: true},
		},
		Footer:      fmt.Sprintf("%s %s • %s", tier.Marker(), tier.Label(), task.Creator.Name),
		Color:       statusColor(task.Status),
		Affordances: AffordancesFor(task),
	}
}

// AffordancesFor returns the button set a task card carries in its current
// status. Backlog cards collapse to reassign-only; elsewhere the current
// status button is disabled (Working omits its own button entirely).
func AffordancesFor(task model.Task) []Affordance {
	id := task.ID
	switch task.Status {
	case model.StatusBacklog:
		return []Affordance{
			{Kind: AffordanceReassign, TaskID: id},
		}
	case model.StatusWorking:
		return []Affordance{
			{Kind: AffordanceOnHold, TaskID: id},
			{Kind: AffordanceDone, TaskID: id},
			{Kind: AffordanceReassign, TaskID: id},
			{Kind: AffordanceBacklog, TaskID: id},
		}
	default: // On Hold, Done
		return []Affordance{
			{Kind: AffordanceOnHold, TaskID: id, Disabled: task.Status == model.StatusOnHold},
			{Kind: AffordanceWorking, TaskID: id},
			{Kind: AffordanceDone, TaskID: id, Disabled: task.Status == model.StatusDone},
			{Kind: AffordanceReassign, TaskID: id},
			{Kind: AffordanceBacklog, TaskID: id},
		}
	}
}

// UpdateLocation edits the message behind a stored location reference. A
// missing message or channel is a logged miss, never an error: remote UI
// state may legitimately have been deleted by an earlier operation or a
// user.
func (p *ProjectionService) UpdateLocation(ctx context.Context, rawURL string, content MessageContent) {
	if rawURL == "" {
		return
	}
	ref, err := ParseMessageURL(rawURL)
	if err != nil {
		log.Printf("[warn] skip update of unparseable location %q: %v", rawURL, err)
		return
	}
	if err := p.msgr.Edit(ctx, ref, content); err != nil {
		log.Printf("[warn] update message at %s: %v", rawURL, err)
	}
}

// DeleteLocation removes the message behind a stored location reference,
// with the same miss tolerance as UpdateLocation.
func (p *ProjectionService) DeleteLocation(ctx context.Context, rawURL string) {
	if rawURL == "" {
		return
	}
	ref, err := ParseMessageURL(rawURL)
	if err != nil {
		log.Printf("[warn] skip delete of unparseable location %q: %v", rawURL, err)
		return
	}
	if err := p.msgr.Delete(ctx, ref); err != nil {
		log.Printf("[warn] delete message at %s: %v", rawURL, err)
	}
}

// Relocate moves a task's home card: post the new rendering first, then
// best-effort delete the old one. The returned reference must be persisted
// on the record before the caller considers the move complete.
func (p *ProjectionService) Relocate(ctx context.Context, fromURL, toChannelID string, content MessageContent) (MessageRef, error) {
	ref, err := p.msgr.Send(ctx, toChannelID, content)
	if err != nil {
		return MessageRef{}, fmt.Errorf("post relocated card: %w", err)
	}
	p.DeleteLocation(ctx, fromURL)
	return ref, nil
}

func statusLabel(s model.Status) string {
	switch s {
	case model.StatusWorking:
		return "▶️ Working"
	case model.StatusOnHold:
		return "⏸️ On Hold"
	case model.StatusDone:
		return "✅ Done"
	case model.StatusBacklog:
		return "📋 Backlog"
	default:
		return string(s)
	}
}

func statusColor(s model.Status) int {
	switch s {
	case model.StatusDone:
		return ColorDone
	case model.StatusBacklog:
		return ColorRelocate
	default:
		return ColorDefault
	}
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
