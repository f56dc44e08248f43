package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// fakeStore is an in-memory repository.Store for service tests.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	tasks   map[string]*model.Task
	records []model.ConfigRecord

	createErr error
	updateErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]*model.Task)}
}

// seed inserts a task directly, bypassing CreateTask side effects.
func (f *fakeStore) seed(task model.Task) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "task-" + strconv.Itoa(f.nextID)
	task.ID = id
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	f.tasks[id] = &task
	return id
}

func (f *fakeStore) get(id string) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.tasks[id]
}

func (f *fakeStore) CreateTask(_ context.Context, task *model.Task) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	task.ID = "task-" + strconv.Itoa(f.nextID)
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeStore) GetTask(_ context.Context, id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, id string, patch repository.TaskPatch) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return repository.ErrTaskNotFound
	}
	applyPatch(task, patch)
	return nil
}

func (f *fakeStore) QueryTasks(_ context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, task := range f.tasks {
		if filter.AssigneeID != "" && task.Assignee.ID != filter.AssigneeID {
			continue
		}
		if filter.CreatorID != "" && task.Creator.ID != filter.CreatorID {
			continue
		}
		if filter.Team != "" && task.Team != filter.Team {
			continue
		}
		if filter.Priority != 0 && task.Priority != filter.Priority {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				if task.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *task)
	}
	return out, nil
}

func (f *fakeStore) ListConfigRecords(_ context.Context) ([]model.ConfigRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ConfigRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) UpsertConfigRecord(_ context.Context, rec model.ConfigRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.records {
		if existing.Type == rec.Type && existing.Key == rec.Key {
			f.records[i] = rec
			return nil
		}
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) DeleteConfigRecords(_ context.Context, key string, types ...model.RecordType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	for _, rec := range f.records {
		drop := rec.Key == key
		if drop && len(types) > 0 {
			drop = false
			for _, t := range types {
				if rec.Type == t {
					drop = true
					break
				}
			}
		}
		if !drop {
			kept = append(kept, rec)
		}
	}
	f.records = kept
	return nil
}

// fakeMessenger records every messaging call, with injectable per-channel
// failures. The ops slice preserves call order across methods.
type fakeMessenger struct {
	mu      sync.Mutex
	nextMsg int

	ops     []string
	sends   map[string][]MessageContent
	edits   map[string]MessageContent
	deletes []MessageRef
	threads map[string]string
	dms     map[string][]MessageContent

	sendErr   map[string]error
	editErr   error
	deleteErr error
	dmErr     map[string]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		sends:   make(map[string][]MessageContent),
		edits:   make(map[string]MessageContent),
		threads: make(map[string]string),
		dms:     make(map[string][]MessageContent),
		sendErr: make(map[string]error),
		dmErr:   make(map[string]error),
	}
}

func (f *fakeMessenger) Send(_ context.Context, channelID string, content MessageContent) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[channelID]; err != nil {
		return MessageRef{}, err
	}
	f.nextMsg++
	ref := MessageRef{GuildID: "guild", ChannelID: channelID, MessageID: fmt.Sprintf("msg-%d", f.nextMsg)}
	f.ops = append(f.ops, "send:"+channelID)
	f.sends[channelID] = append(f.sends[channelID], content)
	return ref, nil
}

func (f *fakeMessenger) Edit(_ context.Context, ref MessageRef, content MessageContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.ops = append(f.ops, "edit:"+ref.URL())
	f.edits[ref.URL()] = content
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.ops = append(f.ops, "delete:"+ref.URL())
	f.deletes = append(f.deletes, ref)
	return nil
}

func (f *fakeMessenger) StartThread(_ context.Context, ref MessageRef, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "thread:"+ref.URL())
	f.threads[ref.URL()] = name
	return nil
}

func (f *fakeMessenger) DirectMessage(_ context.Context, userID string, content MessageContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.dmErr[userID]; err != nil {
		return err
	}
	f.ops = append(f.ops, "dm:"+userID)
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakeMessenger) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deletes))
	for i, ref := range f.deletes {
		out[i] = ref.URL()
	}
	return out
}

// Test guild fixtures: team "alpha" is fully configured, alice and bob are
// its members, lead leads it, admin is a global admin. carol has a team but
// no personal channel.
const (
	teamAlpha = "alpha"

	chanTeam    = "chan-team"
	chanLog     = "chan-log"
	chanBacklog = "chan-backlog"
	chanAlice   = "chan-alice"
	chanBob     = "chan-bob"
	chanPrivate = "chan-private"
)

var (
	alice = model.Identity{ID: "alice", Name: "Alice"}
	bob   = model.Identity{ID: "bob", Name: "Bob"}
	carol = model.Identity{ID: "carol", Name: "Carol"}
	lead  = model.Identity{ID: "lead", Name: "Lead"}
	admin = model.Identity{ID: "admin", Name: "Admin"}
	creat = model.Identity{ID: "creator", Name: "Creator"}
)

func seedConfig(store *fakeStore) {
	store.records = []model.ConfigRecord{
		{Type: model.RecordTeamRole, Key: teamAlpha, Value: "role-alpha"},
		{Type: model.RecordTeamChannel, Key: teamAlpha, Value: chanTeam},
		{Type: model.RecordTeamLogChannel, Key: teamAlpha, Value: chanLog},
		{Type: model.RecordTeamBacklogChannel, Key: teamAlpha, Value: chanBacklog},
		{Type: model.RecordTeamLead, Key: lead.ID, Team: teamAlpha},
		{Type: model.RecordAdmin, Key: admin.ID},
		{Type: model.RecordUserTeam, Key: alice.ID, Team: teamAlpha},
		{Type: model.RecordUserTeam, Key: bob.ID, Team: teamAlpha},
		{Type: model.RecordUserTeam, Key: carol.ID, Team: teamAlpha},
		{Type: model.RecordPersonChannel, Key: alice.ID, Value: chanAlice},
		{Type: model.RecordPersonChannel, Key: bob.ID, Value: chanBob},
		{Type: model.RecordPrivateChannel, Key: chanPrivate, Value: chanPrivate},
	}
}

type fixture struct {
	store       *fakeStore
	msgr        *fakeMessenger
	cache       *ConfigCache
	projection  *ProjectionService
	transitions *TransitionService
	reassigns   *ReassignService
	tasks       *TaskService
	boards      *BoardService
	now         time.Time
}

func newFixture() *fixture {
	store := newFakeStore()
	seedConfig(store)
	msgr := newFakeMessenger()
	cache := NewConfigCache(store, time.Hour)
	projection := NewProjectionService(msgr)

	boards := NewBoardService(store, store, cache, msgr)

	f := &fixture{
		store:       store,
		msgr:        msgr,
		cache:       cache,
		projection:  projection,
		transitions: NewTransitionService(store, cache, projection, msgr, boards),
		reassigns:   NewReassignService(store, cache, projection, msgr),
		tasks:       NewTaskService(store, cache, projection, msgr),
		boards:      boards,
		now:         time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	f.transitions.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// seedTask inserts a task with sensible defaults and both card locations set.
func (f *fixture) seedTask(status model.Status, assignee model.Identity) string {
	started := f.now.Add(-time.Hour)
	task := model.Task{
		Title:              "Ship the release",
		Description:        "Cut and publish the release build",
		Team:               teamAlpha,
		Priority:           7,
		Status:             status,
		Assignee:           assignee,
		Creator:            creat,
		TeamMessageURL:     "https://discord.com/channels/guild/chan-team/team-msg",
		PersonalMessageURL: "https://discord.com/channels/guild/chan-alice/home-msg",
	}
	if status == model.StatusWorking {
		task.LastStartedAt = &started
	}
	return f.store.seed(task)
}

func actorFor(id model.Identity) Actor {
	return Actor{Identity: id}
}
