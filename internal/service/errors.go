package service

import (
	"errors"

	"taskbridge/internal/model"
)

var (
	// ErrForbidden reports an actor lacking the required relationship to
	// the task or team. Nothing is mutated; no retry will help.
	ErrForbidden = errors.New("forbidden")

	// ErrIncompleteRecord reports a record missing a field that should
	// always be present (typically the assignee id). Treated as upstream
	// data corruption, not retried.
	ErrIncompleteRecord = errors.New("task record incomplete")

	// ErrConfigurationMissing reports an unconfigured destination that a
	// step needs. Most flows degrade gracefully; clearing a task to the
	// backlog fails outright because there is nowhere to put its card.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// Actor is the caller of an engine operation. Owner marks the guild-owner
// override, which is honored by reassignment only.
type Actor struct {
	model.Identity
	Owner bool
}
