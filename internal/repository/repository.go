package repository

import (
	"context"
	"errors"
	"time"

	"taskbridge/internal/model"
)

// ErrTaskNotFound reports a task id with no backing record. Callers surface
// this distinctly: the record is presumed permanently gone and the user
// should create a new task rather than retry.
var ErrTaskNotFound = errors.New("task not found")

// TaskFilter is a conjunction of equality filters for QueryTasks. Zero
// fields are ignored; an empty Statuses slice matches every status.
type TaskFilter struct {
	AssigneeID string
	CreatorID  string
	Team       string
	Statuses   []model.Status
	Priority   int
}

// TaskPatch names the subset of fields an update touches. Nil fields are
// left alone; a pointer to a zero value clears the field.
type TaskPatch struct {
	Status             *model.Status
	Assignee           *model.Identity
	CompletedBy        *model.Identity
	LastStartedAt      *time.Time
	LastPausedAt       *time.Time
	CompletedAt        *time.Time
	TimeSpentSeconds   *int64
	PersonalMessageURL *string
	TeamMessageURL     *string
}

// TaskStore is the record-store boundary for task records.
type TaskStore interface {
	// CreateTask persists a new record and fills in ID and CreatedAt.
	CreateTask(ctx context.Context, task *model.Task) error
	// GetTask returns ErrTaskNotFound when the id has no backing record.
	GetTask(ctx context.Context, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) error
	// QueryTasks returns matches sorted ascending by status.
	QueryTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
}

// ConfigStore is the record-store boundary for configuration records.
type ConfigStore interface {
	ListConfigRecords(ctx context.Context) ([]model.ConfigRecord, error)
	// UpsertConfigRecord matches on (type, key) and creates or overwrites.
	UpsertConfigRecord(ctx context.Context, rec model.ConfigRecord) error
	DeleteConfigRecords(ctx context.Context, key string, types ...model.RecordType) error
}

// Store is the full record-store surface the bot composes over.
type Store interface {
	TaskStore
	ConfigStore
}
