package service

import (
	"context"
	"fmt"
	"log"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// ReassignResult reports a committed reassignment or backlog move.
type ReassignResult struct {
	Task     model.Task
	Previous model.Identity
	Backlog  bool
}

// ReassignService moves a task between assignees, or into the team backlog
// when the assignee is cleared. It relocates the task's home card and
// notifies the people involved.
type ReassignService struct {
	tasks      repository.TaskStore
	cache      *ConfigCache
	projection *ProjectionService
	msgr       Messenger
}

func NewReassignService(tasks repository.TaskStore, cache *ConfigCache, projection *ProjectionService, msgr Messenger) *ReassignService {
	return &ReassignService{
		tasks:      tasks,
		cache:      cache,
		projection: projection,
		msgr:       msgr,
	}
}

// Reassign hands a task to newAssignee, or clears it to the team backlog
// when newAssignee is nil. A cleared task needs a configured backlog
// channel; without one the call fails before any mutation, because there
// would be nowhere to put the task's home card. Everything after the record
// write is independent best-effort.
func (s *ReassignService) Reassign(ctx context.Context, taskID string, newAssignee *model.Identity, actor Actor) (*ReassignResult, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.checkPermission(ctx, task, actor); err != nil {
		return nil, err
	}

	toBacklog := newAssignee == nil || newAssignee.Empty()

	// Resolve the destination before mutating anything: a missing backlog
	// channel blocks the whole operation, a missing personal channel only
	// skips the posting step later.
	var destChannel string
	if toBacklog {
		destChannel, err = s.cache.TeamBacklogChannel(ctx, task.Team)
		if err != nil {
			return nil, err
		}
		if destChannel == "" {
			return nil, fmt.Errorf("%w: no backlog channel for team %q", ErrConfigurationMissing, task.Team)
		}
	} else {
		destChannel, err = s.cache.PersonChannel(ctx, newAssignee.ID)
		if err != nil {
			return nil, err
		}
	}

	status := model.StatusOnHold
	assignee := model.Identity{}
	if toBacklog {
		status = model.StatusBacklog
	} else {
		assignee = *newAssignee
	}
	patch := repository.TaskPatch{Status: &status, Assignee: &assignee}

	if err := s.tasks.UpdateTask(ctx, task.ID, patch); err != nil {
		return nil, fmt.Errorf("commit reassignment: %w", err)
	}

	previous := task.Assignee
	updated := *task
	applyPatch(&updated, patch)

	s.propagateReassign(ctx, updated, previous, actor, destChannel)

	if toBacklog {
		log.Printf("[info] task %s moved to backlog by %s (was %s)", task.ID, actor.ID, previous.ID)
	} else {
		log.Printf("[info] task %s reassigned %s -> %s by %s", task.ID, previous.ID, assignee.ID, actor.ID)
	}

	return &ReassignResult{Task: updated, Previous: previous, Backlog: toBacklog}, nil
}

// CanReassign reports whether actor may reassign the task, so callers can
// withhold the member picker from people who could not complete it anyway.
func (s *ReassignService) CanReassign(ctx context.Context, task *model.Task, actor Actor) error {
	return s.checkPermission(ctx, task, actor)
}

// checkPermission: reassignment is a lead/admin operation, with a
// guild-owner override distinct from both.
func (s *ReassignService) checkPermission(ctx context.Context, task *model.Task, actor Actor) error {
	if actor.Owner {
		return nil
	}
	isLead, err := s.cache.IsTeamLead(ctx, actor.ID, task.Team)
	if err != nil {
		return err
	}
	if isLead {
		return nil
	}
	isAdmin, err := s.cache.IsAdmin(ctx, actor.ID)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}
	return fmt.Errorf("%w: only a team lead, an admin or the owner can reassign tasks", ErrForbidden)
}

func (s *ReassignService) propagateReassign(ctx context.Context, task model.Task, previous model.Identity, actor Actor, destChannel string) {
	steps := []propagationStep{
		{name: "team card", run: func(ctx context.Context) error {
			content := s.projection.Render(task)
			if task.Status == model.StatusBacklog {
				content.Footer = fmt.Sprintf("was: %s • assigned by: %s", previous.Name, task.Creator.Name)
			}
			s.projection.UpdateLocation(ctx, task.TeamMessageURL, content)
			return nil
		}},
		{name: "home card relocation", run: func(ctx context.Context) error {
			return s.relocateHome(ctx, task, previous, actor, destChannel)
		}},
	}

	if !previous.Empty() {
		steps = append(steps, propagationStep{name: "previous assignee dm", run: func(ctx context.Context) error {
			return s.notifyPrevious(ctx, task, previous, actor)
		}})
	}
	steps = append(steps, propagationStep{name: "creator dm", run: func(ctx context.Context) error {
		return s.notifyCreator(ctx, task, previous, actor)
	}})

	propagate(ctx, steps)
}

// relocateHome moves the home card to the new assignee's channel or the
// backlog channel, then persists the new location so later transitions can
// find it. A new assignee without a configured channel only loses the card,
// not the reassignment.
func (s *ReassignService) relocateHome(ctx context.Context, task model.Task, previous model.Identity, actor Actor, destChannel string) error {
	if destChannel == "" {
		log.Printf("[warn] no personal channel for %s; home card for task %s dropped", task.Assignee.ID, task.ID)
		s.projection.DeleteLocation(ctx, task.PersonalMessageURL)
		cleared := ""
		return s.tasks.UpdateTask(ctx, task.ID, repository.TaskPatch{PersonalMessageURL: &cleared})
	}

	content := s.projection.Render(task)
	if task.Status == model.StatusBacklog {
		content.Footer = fmt.Sprintf("was: %s • assigned by: %s", previous.Name, task.Creator.Name)
		// Ping the team role so someone picks the task up.
		if roleID, err := s.cache.TeamRole(ctx, task.Team); err == nil && roleID != "" {
			content.Text = fmt.Sprintf("<@&%s> **%s** needs an owner", roleID, task.Title)
		}
	} else {
		content.Text = fmt.Sprintf("📋 **New Task Assigned** (reassigned by %s)", actor.Name)
		if task.TeamMessageURL != "" {
			content.LinkURL = task.TeamMessageURL
			content.LinkLabel = "Go to Thread"
		}
	}

	ref, err := s.projection.Relocate(ctx, task.PersonalMessageURL, destChannel, content)
	if err != nil {
		return err
	}

	url := ref.URL()
	return s.tasks.UpdateTask(ctx, task.ID, repository.TaskPatch{PersonalMessageURL: &url})
}

func (s *ReassignService) notifyPrevious(ctx context.Context, task model.Task, previous model.Identity, actor Actor) error {
	var text string
	if task.Status == model.StatusBacklog {
		text = fmt.Sprintf("ℹ️ Task **%s** has been moved to the backlog by %s", task.Title, actor.Name)
	} else {
		text = fmt.Sprintf("ℹ️ Task **%s** has been reassigned to %s by %s", task.Title, task.Assignee.Name, actor.Name)
	}
	return s.msgr.DirectMessage(ctx, previous.ID, MessageContent{Text: text})
}

func (s *ReassignService) notifyCreator(ctx context.Context, task model.Task, previous model.Identity, actor Actor) error {
	if task.Creator.Empty() {
		return nil
	}
	var text string
	if task.Status == model.StatusBacklog {
		text = fmt.Sprintf("🔄 Task **%s** was moved from %s to the backlog by %s", task.Title, previous.Name, actor.Name)
	} else {
		text = fmt.Sprintf("🔄 Task **%s** has been reassigned from %s to %s by %s", task.Title, previous.Name, task.Assignee.Name, actor.Name)
	}
	return s.msgr.DirectMessage(ctx, task.Creator.ID, MessageContent{Text: text})
}
