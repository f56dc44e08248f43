package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// statusBoardKey is the config record key the single board location lives
// under. Publishing again replaces the record, not the old message.
const statusBoardKey = "board"

// BoardService maintains the live status board: one pinned-style message
// summarizing what every registered user is working on right now.
type BoardService struct {
	tasks  repository.TaskStore
	config repository.ConfigStore
	cache  *ConfigCache
	msgr   Messenger
}

func NewBoardService(tasks repository.TaskStore, config repository.ConfigStore, cache *ConfigCache, msgr Messenger) *BoardService {
	return &BoardService{
		tasks:  tasks,
		config: config,
		cache:  cache,
		msgr:   msgr,
	}
}

// Publish posts a fresh board to the channel and records its location so
// status changes keep it current. A previously published board message is
// left behind; only the recorded location moves.
func (s *BoardService) Publish(ctx context.Context, channelID string) (MessageRef, error) {
	content, err := s.render(ctx)
	if err != nil {
		return MessageRef{}, err
	}
	ref, err := s.msgr.Send(ctx, channelID, content)
	if err != nil {
		return MessageRef{}, fmt.Errorf("post status board: %w", err)
	}

	rec := model.ConfigRecord{Type: model.RecordStatusBoard, Key: statusBoardKey, Value: ref.URL()}
	if err := s.config.UpsertConfigRecord(ctx, rec); err != nil {
		return MessageRef{}, fmt.Errorf("persist status board location: %w", err)
	}
	s.cache.Invalidate()

	log.Printf("[info] status board published in channel %s", channelID)
	return ref, nil
}

// Refresh re-renders the board in place. It is a no-op when no board has
// been published and miss-tolerant when the board message was deleted.
func (s *BoardService) Refresh(ctx context.Context) error {
	url, err := s.cache.StatusBoardURL(ctx)
	if err != nil {
		return err
	}
	if url == "" {
		return nil
	}
	ref, err := ParseMessageURL(url)
	if err != nil {
		return fmt.Errorf("stored status board location: %w", err)
	}

	content, err := s.render(ctx)
	if err != nil {
		return err
	}
	if err := s.msgr.Edit(ctx, ref, content); err != nil {
		log.Printf("[warn] status board at %s not updated: %v", url, err)
	}
	return nil
}

func (s *BoardService) render(ctx context.Context) (MessageContent, error) {
	content := MessageContent{Title: "📊 Team Status Board", Color: ColorDefault}

	users, err := s.cache.PersonChannelUsers(ctx)
	if err != nil {
		return MessageContent{}, err
	}
	if len(users) == 0 {
		content.Description = "No team members configured yet."
		return content, nil
	}

	working, err := s.tasks.QueryTasks(ctx, repository.TaskFilter{
		Statuses: []model.Status{model.StatusWorking},
	})
	if err != nil {
		return MessageContent{}, err
	}
	byAssignee := make(map[string][]model.Task)
	for _, t := range working {
		byAssignee[t.Assignee.ID] = append(byAssignee[t.Assignee.ID], t)
	}

	var sb strings.Builder
	for _, userID := range users {
		tasks := byAssignee[userID]
		if len(tasks) == 0 {
			fmt.Fprintf(&sb, "**<@%s>** ⚪ Idle\n\n", userID)
			continue
		}
		fmt.Fprintf(&sb, "**<@%s>** 🔵 Working\n", userID)
		for _, t := range tasks {
			if t.TeamMessageURL != "" {
				fmt.Fprintf(&sb, "• [%s](%s)\n", t.Title, t.TeamMessageURL)
			} else {
				fmt.Fprintf(&sb, "• %s\n", t.Title)
			}
		}
		sb.WriteString("\n")
	}
	content.Description = strings.TrimRight(sb.String(), "\n")
	return content, nil
}
