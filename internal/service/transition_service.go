package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// TransitionResult reports a committed status change. Content carries the
// re-rendered card so the dispatcher can update the interacted message
// without a second store read.
type TransitionResult struct {
	Task     model.Task
	Previous model.Status
	Accrued  time.Duration
	Content  MessageContent
}

// TransitionService owns the status state machine: it decides whether an
// actor may move a task to a requested status, applies the record mutation
// with its timestamp and accrual side effects, and drives best-effort
// propagation to every dependent surface.
type TransitionService struct {
	tasks      repository.TaskStore
	cache      *ConfigCache
	projection *ProjectionService
	msgr       Messenger
	board      *BoardService
	now        func() time.Time
}

func NewTransitionService(tasks repository.TaskStore, cache *ConfigCache, projection *ProjectionService, msgr Messenger, board *BoardService) *TransitionService {
	return &TransitionService{
		tasks:      tasks,
		cache:      cache,
		projection: projection,
		msgr:       msgr,
		board:      board,
		now:        time.Now,
	}
}

// ApplyTransition moves a task to the requested status on behalf of actor.
// Backlog is not reachable here; it belongs to the reassignment workflow.
// The record write is the only must-succeed step: once it commits, every
// downstream surface update is independent and best-effort.
func (s *TransitionService) ApplyTransition(ctx context.Context, taskID string, requested model.Status, actor Actor) (*TransitionResult, error) {
	switch requested {
	case model.StatusOnHold, model.StatusWorking, model.StatusDone:
	default:
		return nil, fmt.Errorf("status %q is not reachable via a direct transition", requested)
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Assignee.Empty() {
		return nil, fmt.Errorf("%w: task %s has no assignee id", ErrIncompleteRecord, taskID)
	}

	if err := s.checkPermission(ctx, task, requested, actor); err != nil {
		return nil, err
	}

	now := s.now()
	patch, accrued := transitionPatch(task, requested, actor, now)

	if err := s.tasks.UpdateTask(ctx, task.ID, patch); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}

	updated := *task
	applyPatch(&updated, patch)

	result := &TransitionResult{
		Task:     updated,
		Previous: task.Status,
		Accrued:  accrued,
		Content:  s.projection.Render(updated),
	}

	log.Printf("[info] task %s: %s -> %s by %s (accrued %s)", task.ID, task.Status, requested, actor.ID, accrued)
	return result, nil
}

// checkPermission enforces the authority model: the assignee, a lead of the
// task's team, or an admin may change status, but only the assignee may
// mark a task Done.
func (s *TransitionService) checkPermission(ctx context.Context, task *model.Task, requested model.Status, actor Actor) error {
	isAssignee := actor.ID == task.Assignee.ID

	if requested == model.StatusDone && !isAssignee {
		return fmt.Errorf("%w: only the assignee can mark a task done", ErrForbidden)
	}
	if isAssignee {
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

	return fmt.Errorf("%w: only the assignee, a team lead or an admin can change task status", ErrForbidden)
}

// transitionPatch computes the record mutation for a transition. Elapsed
// working time accrues exactly once, on the Working -> {On Hold, Done}
// edge, and is never recomputed retroactively.
func transitionPatch(task *model.Task, requested model.Status, actor Actor, now time.Time) (repository.TaskPatch, time.Duration) {
	status := requested
	patch := repository.TaskPatch{Status: &status}

	var accrued time.Duration
	leavingWorking := task.Status == model.StatusWorking && requested != model.StatusWorking
	if leavingWorking && task.LastStartedAt != nil {
		accrued = now.Sub(*task.LastStartedAt)
		if accrued < 0 {
			accrued = 0
		}
		total := task.TimeSpentSeconds + int64(accrued.Seconds())
		patch.TimeSpentSeconds = &total
	}

	switch requested {
	case model.StatusWorking:
		started := now
		patch.LastStartedAt = &started
	case model.StatusOnHold:
		paused := now
		patch.LastPausedAt = &paused
	case model.StatusDone:
		completed := now
		patch.CompletedAt = &completed
		completer := actor.Identity
		patch.CompletedBy = &completer
	}

	return patch, accrued
}

// applyPatch folds a committed patch back into an in-memory copy so
// projection renders post-mutation state without a second store read.
func applyPatch(task *model.Task, patch repository.TaskPatch) {
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Assignee != nil {
		task.Assignee = *patch.Assignee
	}
	if patch.CompletedBy != nil {
		task.CompletedBy = *patch.CompletedBy
	}
	if patch.LastStartedAt != nil {
		t := *patch.LastStartedAt
		task.LastStartedAt = &t
	}
	if patch.LastPausedAt != nil {
		t := *patch.LastPausedAt
		task.LastPausedAt = &t
	}
	if patch.CompletedAt != nil {
		t := *patch.CompletedAt
		task.CompletedAt = &t
	}
	if patch.TimeSpentSeconds != nil {
		task.TimeSpentSeconds = *patch.TimeSpentSeconds
	}
	if patch.PersonalMessageURL != nil {
		task.PersonalMessageURL = *patch.PersonalMessageURL
	}
	if patch.TeamMessageURL != nil {
		task.TeamMessageURL = *patch.TeamMessageURL
	}
}

// Propagate fans a committed change out to every dependent surface. The
// dispatcher calls it after the actor has been answered, so none of these
// steps sit on the interaction's response path. Each step fails
// independently; none can undo the record write.
func (s *TransitionService) Propagate(ctx context.Context, result *TransitionResult) {
	task := result.Task
	content := result.Content

	steps := []propagationStep{
		{name: "team card", run: func(ctx context.Context) error {
			s.projection.UpdateLocation(ctx, task.TeamMessageURL, content)
			return nil
		}},
	}

	if task.Status == model.StatusDone {
		steps = append(steps,
			propagationStep{name: "home card cleanup", run: func(ctx context.Context) error {
				s.projection.DeleteLocation(ctx, task.PersonalMessageURL)
				cleared := ""
				return s.tasks.UpdateTask(ctx, task.ID, repository.TaskPatch{PersonalMessageURL: &cleared})
			}},
			propagationStep{name: "creator dm", run: func(ctx context.Context) error {
				return s.notifyCreatorDone(ctx, task)
			}},
			propagationStep{name: "team log", run: func(ctx context.Context) error {
				return s.logCompletion(ctx, task)
			}},
		)
	} else {
		steps = append(steps, propagationStep{name: "home card", run: func(ctx context.Context) error {
			s.projection.UpdateLocation(ctx, task.PersonalMessageURL, content)
			return nil
		}})
	}

	if s.board != nil {
		steps = append(steps, propagationStep{name: "status board", run: func(ctx context.Context) error {
			return s.board.Refresh(ctx)
		}})
	}

	propagate(ctx, steps)
}

func (s *TransitionService) notifyCreatorDone(ctx context.Context, task model.Task) error {
	if task.Creator.Empty() {
		return nil
	}
	return s.msgr.DirectMessage(ctx, task.Creator.ID, MessageContent{
		Text:      fmt.Sprintf("✅ %s completed: **%s**", task.Assignee.Name, task.Title),
		LinkURL:   task.TeamMessageURL,
		LinkLabel: "Go to Thread",
	})
}

func (s *TransitionService) logCompletion(ctx context.Context, task model.Task) error {
	logChannel, err := s.cache.TeamLogChannel(ctx, task.Team)
	if err != nil {
		return err
	}
	if logChannel == "" {
		return nil
	}
	_, err = s.msgr.Send(ctx, logChannel, MessageContent{
		Title: "✅ Task Completed",
		Color: ColorDone,
		Fields: []EmbedField{
			{Name: "Task", Value: task.Title, Inline: true},
			{Name: "Completed By", Value: task.CompletedBy.Name, Inline: true},
			{Name: "Team", Value: task.Team, Inline: true},
		},
		LinkURL:   task.TeamMessageURL,
		LinkLabel: "View Thread",
	})
	return err
}
