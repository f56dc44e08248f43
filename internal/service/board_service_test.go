package service

import (
	"context"
	"strings"
	"testing"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

func TestBoardPublishPostsAndRecordsLocation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedTask(model.StatusWorking, alice)

	ref, err := f.boards.Publish(ctx, "chan-board")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	sent := f.msgr.sends["chan-board"]
	if len(sent) != 1 {
		t.Fatalf("sends to board channel = %d, want 1", len(sent))
	}
	board := sent[0]
	if board.Title != "📊 Team Status Board" {
		t.Errorf("title = %q", board.Title)
	}
	if !strings.Contains(board.Description, "**<@alice>** 🔵 Working") {
		t.Errorf("description misses alice's working entry:\n%s", board.Description)
	}
	if !strings.Contains(board.Description, "[Ship the release](") {
		t.Errorf("description misses the task link:\n%s", board.Description)
	}
	if !strings.Contains(board.Description, "**<@bob>** ⚪ Idle") {
		t.Errorf("description misses bob's idle entry:\n%s", board.Description)
	}

	url, err := f.cache.StatusBoardURL(ctx)
	if err != nil {
		t.Fatalf("board url: %v", err)
	}
	if url != ref.URL() {
		t.Errorf("recorded board url = %q, want %q", url, ref.URL())
	}
}

func TestBoardPublishWithoutMembers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.records = f.store.records[:0]
	f.cache.Invalidate()

	if _, err := f.boards.Publish(ctx, "chan-board"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	board := f.msgr.sends["chan-board"][0]
	if board.Description != "No team members configured yet." {
		t.Errorf("description = %q", board.Description)
	}
}

func TestBoardRefreshEditsInPlace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	taskID := f.seedTask(model.StatusWorking, alice)

	ref, err := f.boards.Publish(ctx, "chan-board")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	status := model.StatusOnHold
	if err := f.store.UpdateTask(ctx, taskID, repository.TaskPatch{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.boards.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	edited, ok := f.msgr.edits[ref.URL()]
	if !ok {
		t.Fatalf("board message was not edited, edits = %v", f.msgr.edits)
	}
	if !strings.Contains(edited.Description, "**<@alice>** ⚪ Idle") {
		t.Errorf("refreshed board still shows alice working:\n%s", edited.Description)
	}
}

func TestBoardRefreshWithoutBoardIsNoop(t *testing.T) {
	f := newFixture()

	if err := f.boards.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(f.msgr.ops) != 0 {
		t.Errorf("unexpected messaging calls: %v", f.msgr.ops)
	}
}

func TestPropagateRefreshesBoard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	taskID := f.seedTask(model.StatusWorking, alice)

	ref, err := f.boards.Publish(ctx, "chan-board")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	result, err := f.transitions.ApplyTransition(ctx, taskID, model.StatusOnHold, actorFor(alice))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	f.transitions.Propagate(ctx, result)

	edited, ok := f.msgr.edits[ref.URL()]
	if !ok {
		t.Fatalf("board not refreshed after transition, edits = %v", f.msgr.edits)
	}
	if !strings.Contains(edited.Description, "**<@alice>** ⚪ Idle") {
		t.Errorf("board still lists the paused task:\n%s", edited.Description)
	}
}
