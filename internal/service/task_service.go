package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// CreateInput is everything needed to create a task. A nil Assignee sends
// the task straight to the team backlog, which then requires Team to be set
// explicitly (there is no user to derive it from).
type CreateInput struct {
	Title       string
	Description string
	Priority    int
	Assignee    *model.Identity
	Creator     model.Identity
	Team        string
	// SourceChannelID is where the command was issued; if it is a
	// registered private channel the card is posted there instead of the
	// team channel.
	SourceChannelID string
}

// CreateResult reports the created record plus any destinations that were
// skipped because no channel was configured for them.
type CreateResult struct {
	Task     model.Task
	Warnings []string
}

// TaskService covers task creation and the read-side flows: per-user task
// lists and activity reports.
type TaskService struct {
	tasks      repository.TaskStore
	cache      *ConfigCache
	projection *ProjectionService
	msgr       Messenger
}

func NewTaskService(tasks repository.TaskStore, cache *ConfigCache, projection *ProjectionService, msgr Messenger) *TaskService {
	return &TaskService{
		tasks:      tasks,
		cache:      cache,
		projection: projection,
		msgr:       msgr,
	}
}

// Create validates and persists a new task, then posts its cards. The
// record write is the only must-succeed step; a missing team or personal
// channel downgrades to a warning, matching how the record outlives any of
// its message renderings.
func (s *TaskService) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	team := teamKey(input.Team)
	if team == "" && input.Assignee != nil {
		var err error
		team, err = s.cache.UserTeam(ctx, input.Assignee.ID)
		if err != nil {
			return nil, err
		}
	}
	if team == "" {
		return nil, fmt.Errorf("%w: no team mapping for the assignee; map them with ?user first", ErrConfigurationMissing)
	}

	task := model.Task{
		Title:       input.Title,
		Description: input.Description,
		Team:        team,
		Priority:    input.Priority,
		Creator:     input.Creator,
		Status:      model.StatusOnHold,
	}
	if input.Assignee != nil {
		task.Assignee = *input.Assignee
	} else {
		task.Status = model.StatusBacklog
	}

	// An unassigned task's home is the backlog channel; creating one
	// without that channel configured would leave the task invisible.
	var backlogChannel string
	if task.Status == model.StatusBacklog {
		var err error
		backlogChannel, err = s.cache.TeamBacklogChannel(ctx, team)
		if err != nil {
			return nil, err
		}
		if backlogChannel == "" {
			return nil, fmt.Errorf("%w: no backlog channel for team %q", ErrConfigurationMissing, team)
		}
	}

	if err := s.tasks.CreateTask(ctx, &task); err != nil {
		return nil, fmt.Errorf("create task record: %w", err)
	}

	result := &CreateResult{}
	s.postCards(ctx, &task, backlogChannel, input.SourceChannelID, result)
	result.Task = task

	log.Printf("[info] task %s created: %q team=%s priority=%d status=%s", task.ID, task.Title, task.Team, task.Priority, task.Status)
	return result, nil
}

// postCards posts the team card (with discussion thread) and the home card,
// then persists both location references. Every step is best-effort.
func (s *TaskService) postCards(ctx context.Context, task *model.Task, backlogChannel, sourceChannelID string, result *CreateResult) {
	content := s.projection.Render(*task)

	teamChannel, err := s.cache.TeamChannel(ctx, task.Team)
	if err != nil {
		log.Printf("[warn] resolve team channel: %v", err)
	}
	if isPrivate, perr := s.cache.IsPrivateChannel(ctx, sourceChannelID); perr == nil && isPrivate {
		// Private flow: the card lives in the channel the command came from.
		teamChannel = sourceChannelID
	}

	var teamURL string
	if teamChannel == "" {
		warn := fmt.Sprintf("no channel configured for team %q", task.Team)
		result.Warnings = append(result.Warnings, warn)
		log.Printf("[warn] task %s: %s", task.ID, warn)
	} else {
		ref, err := s.msgr.Send(ctx, teamChannel, content)
		if err != nil {
			log.Printf("[warn] post team card for task %s: %v", task.ID, err)
		} else {
			teamURL = ref.URL()
			if err := s.msgr.StartThread(ctx, ref, truncate(task.Title, model.MaxTitleLen)); err != nil {
				log.Printf("[warn] start thread for task %s: %v", task.ID, err)
			}
		}
	}

	homeChannel := backlogChannel
	if !task.Assignee.Empty() {
		homeChannel, err = s.cache.PersonChannel(ctx, task.Assignee.ID)
		if err != nil {
			log.Printf("[warn] resolve personal channel: %v", err)
		}
	}

	var homeURL string
	if homeChannel == "" {
		warn := fmt.Sprintf("no personal channel configured for %s", task.Assignee.ID)
		result.Warnings = append(result.Warnings, warn)
		log.Printf("[warn] task %s: %s", task.ID, warn)
	} else {
		homeContent := content
		if teamURL != "" {
			homeContent.LinkURL = teamURL
			homeContent.LinkLabel = "Go to Thread"
		}
		if task.Status == model.StatusBacklog {
			if roleID, err := s.cache.TeamRole(ctx, task.Team); err == nil && roleID != "" {
				homeContent.Text = fmt.Sprintf("<@&%s> **%s** needs an owner", roleID, task.Title)
			}
		}
		ref, err := s.msgr.Send(ctx, homeChannel, homeContent)
		if err != nil {
			log.Printf("[warn] post home card for task %s: %v", task.ID, err)
		} else {
			homeURL = ref.URL()
		}
	}

	task.TeamMessageURL = teamURL
	task.PersonalMessageURL = homeURL
	patch := repository.TaskPatch{TeamMessageURL: &teamURL, PersonalMessageURL: &homeURL}
	if err := s.tasks.UpdateTask(ctx, task.ID, patch); err != nil {
		log.Printf("[warn] persist message urls for task %s: %v", task.ID, err)
	}

	s.logCreation(ctx, *task, teamURL)
}

func (s *TaskService) logCreation(ctx context.Context, task model.Task, teamURL string) {
	logChannel, err := s.cache.TeamLogChannel(ctx, task.Team)
	if err != nil || logChannel == "" {
		return
	}
	assignee := task.Assignee.Name
	if task.Assignee.Empty() {
		assignee = "the backlog"
	}
	_, err = s.msgr.Send(ctx, logChannel, MessageContent{
		Text:      fmt.Sprintf("✅ **Task Created!**\nAssigned to %s in **%s** team.", assignee, task.Team),
		LinkURL:   teamURL,
		LinkLabel: "Go to Task",
	})
	if err != nil {
		log.Printf("[warn] log creation of task %s: %v", task.ID, err)
	}
}

// Get fetches one task record.
func (s *TaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	return s.tasks.GetTask(ctx, id)
}

// ListActive returns a user's Working and On Hold tasks, sorted by status.
func (s *TaskService) ListActive(ctx context.Context, userID string) ([]model.Task, error) {
	return s.tasks.QueryTasks(ctx, repository.TaskFilter{
		AssigneeID: userID,
		Statuses:   []model.Status{model.StatusWorking, model.StatusOnHold},
	})
}

// ListTeamActive returns a team's Working and On Hold tasks.
func (s *TaskService) ListTeamActive(ctx context.Context, team string) ([]model.Task, error) {
	return s.tasks.QueryTasks(ctx, repository.TaskFilter{
		Team:     teamKey(team),
		Statuses: []model.Status{model.StatusWorking, model.StatusOnHold},
	})
}

// ListAssignedOnHold returns On Hold tasks the user created for other
// people. Tasks the user assigned to themselves are their own problem and
// are left out.
func (s *TaskService) ListAssignedOnHold(ctx context.Context, userID string) ([]model.Task, error) {
	tasks, err := s.tasks.QueryTasks(ctx, repository.TaskFilter{
		CreatorID: userID,
		Statuses:  []model.Status{model.StatusOnHold},
	})
	if err != nil {
		return nil, err
	}
	others := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Assignee.ID != userID {
			others = append(others, t)
		}
	}
	return others, nil
}

// Report summarizes one user's task activity over a time window.
type Report struct {
	Completed        int
	AssignedToOthers int
	Remaining        int
	Working          int
	OnHold           int
	TotalReceived    int
}

// BuildReport counts completions inside [since, until], what the user
// handed to others in that window, and what is still open.
func (s *TaskService) BuildReport(ctx context.Context, userID string, since, until time.Time) (*Report, error) {
	received, err := s.tasks.QueryTasks(ctx, repository.TaskFilter{AssigneeID: userID})
	if err != nil {
		return nil, err
	}
	created, err := s.tasks.QueryTasks(ctx, repository.TaskFilter{CreatorID: userID})
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, task := range received {
		report.TotalReceived++
		if task.Status == model.StatusDone {
			if task.CompletedAt != nil && !task.CompletedAt.Before(since) && !task.CompletedAt.After(until) {
				report.Completed++
			}
			continue
		}
		report.Remaining++
		switch task.Status {
		case model.StatusWorking:
			report.Working++
		case model.StatusOnHold:
			report.OnHold++
		}
	}
	for _, task := range created {
		if task.Assignee.ID == userID {
			continue
		}
		if !task.CreatedAt.Before(since) && !task.CreatedAt.After(until) {
			report.AssignedToOthers++
		}
	}
	return report, nil
}

func validateCreateInput(input CreateInput) error {
	if input.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len([]rune(input.Title)) > model.MaxTitleLen {
		return fmt.Errorf("title exceeds %d characters", model.MaxTitleLen)
	}
	if input.Priority < model.MinPriority || input.Priority > model.MaxPriority {
		return fmt.Errorf("priority must be between %d and %d", model.MinPriority, model.MaxPriority)
	}
	if input.Creator.Empty() {
		return fmt.Errorf("creator is required")
	}
	return nil
}
