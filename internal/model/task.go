package model

import (
	"fmt"
	"time"
)

// Status is a task lifecycle state.
type Status string

const (
	StatusBacklog Status = "Backlog"
	StatusOnHold  Status = "On Hold"
	StatusWorking Status = "Working"
	StatusDone    Status = "Done"
)

// ParseStatus maps a raw status string to a known Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusBacklog, StatusOnHold, StatusWorking, StatusDone:
		return Status(raw), nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Identity is a Discord user reference. The zero value means "nobody"
// (an unassigned/backlog task).
type Identity struct {
	ID   string
	Name string
}

func (i Identity) Empty() bool {
	return i.ID == ""
}

// Task is the authoritative record of one unit of work. Message URLs point
// at the two places a task is rendered: the team channel card (with its
// discussion thread) and the "home" card in a personal or backlog channel.
type Task struct {
	ID          string
	Title       string
	Description string
	Team        string
	Priority    int
	Status      Status

	Assignee    Identity
	Creator     Identity
	CompletedBy Identity

	CreatedAt     time.Time
	LastStartedAt *time.Time
	LastPausedAt  *time.Time
	CompletedAt   *time.Time

	// TimeSpentSeconds only ever grows; it accrues once per exit from Working.
	TimeSpentSeconds int64

	PersonalMessageURL string
	TeamMessageURL     string
}

const (
	MaxTitleLen        = 100
	MinPriority        = 1
	MaxPriority        = 10
	DescriptionPreview = 500
)

// PriorityTier buckets the 1-10 priority scale into five display tiers.
type PriorityTier int

const (
	TierMinimal PriorityTier = iota
	TierLow
	TierMedium
	TierHigh
	TierCritical
)

func TierFor(priority int) PriorityTier {
	switch {
	case priority >= 9:
		return TierCritical
	case priority >= 7:
		return TierHigh
	case priority >= 5:
		return TierMedium
	case priority >= 3:
		return TierLow
	default:
		return TierMinimal
	}
}

// Marker returns the colored dot shown next to a task title.
func (t PriorityTier) Marker() string {
	switch t {
	case TierCritical:
		return "🔴"
	case TierHigh:
		return "🟠"
	case TierMedium:
		return "🟡"
	case TierLow:
		return "🟢"
	default:
		return "🔵"
	}
}

func (t PriorityTier) Label() string {
	switch t {
	case TierCritical:
		return "Critical"
	case TierHigh:
		return "High"
	case TierMedium:
		return "Medium"
	case TierLow:
		return "Low"
	default:
		return "Minimal"
	}
}
