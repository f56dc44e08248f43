package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskbridge/internal/model"
)

type taskRow struct {
	ID               uint   `gorm:"primaryKey"`
	Title            string `gorm:"size:100"`
	Description      string
	Team             string `gorm:"index"`
	Priority         int
	Status           string `gorm:"index"`
	AssigneeID       string `gorm:"index"`
	AssigneeName     string
	CreatorID        string `gorm:"index"`
	CreatorName      string
	CompletedByID    string
	CompletedByName  string
	LastStartedAt    *time.Time
	LastPausedAt     *time.Time
	CompletedAt      *time.Time
	TimeSpentSeconds int64
	PersonalURL      string
	TeamURL          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type configRow struct {
	ID        uint   `gorm:"primaryKey"`
	Type      string `gorm:"index:idx_config_type_key"`
	Key       string `gorm:"index:idx_config_type_key"`
	Value     string
	Team      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LocalStore implements Store over a SQLite database. It backs offline
// development and the test suite; the production deployment uses NotionStore.
type LocalStore struct {
	db *gorm.DB
}

// NewLocalStore opens a SQLite database and runs migrations.
func NewLocalStore(dsn string) (*LocalStore, error) {
	if dsn == "" {
		dsn = "taskbridge.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&taskRow{}, &configRow{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// Close releases the underlying SQL connection pool.
func (s *LocalStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *LocalStore) CreateTask(ctx context.Context, task *model.Task) error {
	row := rowFromTask(task)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	task.ID = strconv.FormatUint(uint64(row.ID), 10)
	task.CreatedAt = row.CreatedAt
	return nil
}

func (s *LocalStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	rowID, err := parseRowID(id)
	if err != nil {
		return nil, ErrTaskNotFound
	}

	var row taskRow
	if err := s.db.WithContext(ctx).First(&row, rowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	task := taskFromRow(row)
	return &task, nil
}

func (s *LocalStore) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	rowID, err := parseRowID(id)
	if err != nil {
		return ErrTaskNotFound
	}

	db := s.db.WithContext(ctx)
	var row taskRow
	if err := db.First(&row, rowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("find task: %w", err)
	}

	if patch.Status != nil {
		row.Status = string(*patch.Status)
	}
	if patch.Assignee != nil {
		row.AssigneeID = patch.Assignee.ID
		row.AssigneeName = patch.Assignee.Name
	}
	if patch.CompletedBy != nil {
		row.CompletedByID = patch.CompletedBy.ID
		row.CompletedByName = patch.CompletedBy.Name
	}
	if patch.LastStartedAt != nil {
		t := *patch.LastStartedAt
		row.LastStartedAt = &t
	}
	if patch.LastPausedAt != nil {
		t := *patch.LastPausedAt
		row.LastPausedAt = &t
	}
	if patch.CompletedAt != nil {
		t := *patch.CompletedAt
		row.CompletedAt = &t
	}
	if patch.TimeSpentSeconds != nil {
		row.TimeSpentSeconds = *patch.TimeSpentSeconds
	}
	if patch.PersonalMessageURL != nil {
		row.PersonalURL = *patch.PersonalMessageURL
	}
	if patch.TeamMessageURL != nil {
		row.TeamURL = *patch.TeamMessageURL
	}

	if err := db.Save(&row).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *LocalStore) QueryTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	db := s.db.WithContext(ctx).Model(&taskRow{})

	if filter.AssigneeID != "" {
		db = db.Where("assignee_id = ?", filter.AssigneeID)
	}
	if filter.CreatorID != "" {
		db = db.Where("creator_id = ?", filter.CreatorID)
	}
	if filter.Team != "" {
		db = db.Where("team = ?", filter.Team)
	}
	if filter.Priority != 0 {
		db = db.Where("priority = ?", filter.Priority)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		db = db.Where("status IN ?", statuses)
	}

	var rows []taskRow
	if err := db.Order("status ASC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, taskFromRow(row))
	}
	return tasks, nil
}

func (s *LocalStore) ListConfigRecords(ctx context.Context) ([]model.ConfigRecord, error) {
	var rows []configRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list config records: %w", err)
	}

	records := make([]model.ConfigRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.ConfigRecord{
			ID:    strconv.FormatUint(uint64(row.ID), 10),
			Type:  model.RecordType(row.Type),
			Key:   row.Key,
			Value: row.Value,
			Team:  row.Team,
		})
	}
	return records, nil
}

func (s *LocalStore) UpsertConfigRecord(ctx context.Context, rec model.ConfigRecord) error {
	db := s.db.WithContext(ctx)

	var row configRow
	err := db.Where("type = ? AND key = ?", string(rec.Type), rec.Key).First(&row).Error
	switch {
	case err == nil:
		row.Value = rec.Value
		row.Team = rec.Team
		if err := db.Save(&row).Error; err != nil {
			return fmt.Errorf("update config record: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = configRow{
			Type:  string(rec.Type),
			Key:   rec.Key,
			Value: rec.Value,
			Team:  rec.Team,
		}
		if err := db.Create(&row).Error; err != nil {
			return fmt.Errorf("create config record: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("find config record: %w", err)
	}
}

func (s *LocalStore) DeleteConfigRecords(ctx context.Context, key string, types ...model.RecordType) error {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	if err := s.db.WithContext(ctx).
		Where("key = ? AND type IN ?", key, names).
		Delete(&configRow{}).Error; err != nil {
		return fmt.Errorf("delete config records: %w", err)
	}
	return nil
}

func rowFromTask(task *model.Task) taskRow {
	return taskRow{
		Title:            task.Title,
		Description:      task.Description,
		Team:             task.Team,
		Priority:         task.Priority,
		Status:           string(task.Status),
		AssigneeID:       task.Assignee.ID,
		AssigneeName:     task.Assignee.Name,
		CreatorID:        task.Creator.ID,
		CreatorName:      task.Creator.Name,
		CompletedByID:    task.CompletedBy.ID,
		CompletedByName:  task.CompletedBy.Name,
		LastStartedAt:    task.LastStartedAt,
		LastPausedAt:     task.LastPausedAt,
		CompletedAt:      task.CompletedAt,
		TimeSpentSeconds: task.TimeSpentSeconds,
		PersonalURL:      task.PersonalMessageURL,
		TeamURL:          task.TeamMessageURL,
	}
}

func taskFromRow(row taskRow) model.Task {
	status, _ := model.ParseStatus(row.Status)
	return model.Task{
		ID:                 strconv.FormatUint(uint64(row.ID), 10),
		Title:              row.Title,
		Description:        row.Description,
		Team:               row.Team,
		Priority:           row.Priority,
		Status:             status,
		Assignee:           model.Identity{ID: row.AssigneeID, Name: row.AssigneeName},
		Creator:            model.Identity{ID: row.CreatorID, Name: row.CreatorName},
		CompletedBy:        model.Identity{ID: row.CompletedByID, Name: row.CompletedByName},
		CreatedAt:          row.CreatedAt,
		LastStartedAt:      row.LastStartedAt,
		LastPausedAt:       row.LastPausedAt,
		CompletedAt:        row.CompletedAt,
		TimeSpentSeconds:   row.TimeSpentSeconds,
		PersonalMessageURL: row.PersonalURL,
		TeamMessageURL:     row.TeamURL,
	}
}

func parseRowID(id string) (uint, error) {
	value, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// ensureDirForSQLite creates the parent dir for a SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
