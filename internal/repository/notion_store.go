package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"taskbridge/internal/model"
)

// Notion property names of the task database.
const (
	propTitle         = "Task"
	propDescription   = "Description"
	propTeam          = "Team"
	propPriority      = "Priority"
	propStatus        = "Status"
	propAssignee      = "Assigned To"
	propAssigneeID    = "Assigned To ID"
	propCreator       = "Assigned By"
	propCreatorID     = "Assigned By ID"
	propCompletedBy   = "Done By"
	propCompletedByID = "Done By ID"
	propLastStarted   = "Last Started Time"
	propLastPaused    = "Last Paused Time"
	propCompletedAt   = "Done Working On"
	propTimeSpent     = "Time Spent (Seconds)"
	propTeamURL       = "Discord Thread"
	propPersonalURL   = "Personal Message URL"
)

// Config property names of the configuration database.
const (
	confPropType  = "Type"
	confPropKey   = "Key"
	confPropValue = "Value"
	confPropTeam  = "Team"
)

// NotionStore implements Store over two Notion databases: one for task
// records and one for key/type/value configuration records.
type NotionStore struct {
	client   *notionapi.Client
	tasksDB  notionapi.DatabaseID
	configDB notionapi.DatabaseID
}

func NewNotionStore(token, tasksDB, configDB string) *NotionStore {
	return &NotionStore{
		client:   notionapi.NewClient(notionapi.Token(token)),
		tasksDB:  notionapi.DatabaseID(tasksDB),
		configDB: notionapi.DatabaseID(configDB),
	}
}

func (s *NotionStore) CreateTask(ctx context.Context, task *model.Task) error {
	props := notionapi.Properties{
		propTitle:       notionapi.TitleProperty{Title: richText(task.Title)},
		propDescription: notionapi.RichTextProperty{RichText: richText(task.Description)},
		propTeam:        selectProp(task.Team),
		propPriority:    selectProp(strconv.Itoa(task.Priority)),
		propStatus:      selectProp(string(task.Status)),
		propAssignee:    notionapi.RichTextProperty{RichText: richText(task.Assignee.Name)},
		propAssigneeID:  notionapi.RichTextProperty{RichText: richText(task.Assignee.ID)},
		propCreator:     notionapi.RichTextProperty{RichText: richText(task.Creator.Name)},
		propCreatorID:   notionapi.RichTextProperty{RichText: richText(task.Creator.ID)},
		propTimeSpent:   notionapi.NumberProperty{Number: 0},
	}

	page, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.tasksDB,
		},
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("create task page: %w", err)
	}

	task.ID = string(page.ID)
	task.CreatedAt = page.CreatedTime
	return nil
}

func (s *NotionStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	page, err := s.client.Page.Get(ctx, notionapi.PageID(normalizePageID(id)))
	if err != nil {
		if isNotionNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("retrieve task page: %w", err)
	}
	task := taskFromPage(page)
	return &task, nil
}

func (s *NotionStore) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	props := notionapi.Properties{}

	if patch.Status != nil {
		props[propStatus] = selectProp(string(*patch.Status))
	}
	if patch.Assignee != nil {
		props[propAssignee] = notionapi.RichTextProperty{RichText: richText(patch.Assignee.Name)}
		props[propAssigneeID] = notionapi.RichTextProperty{RichText: richText(patch.Assignee.ID)}
	}
	if patch.CompletedBy != nil {
		props[propCompletedBy] = notionapi.RichTextProperty{RichText: richText(patch.CompletedBy.Name)}
		props[propCompletedByID] = notionapi.RichTextProperty{RichText: richText(patch.CompletedBy.ID)}
	}
	if patch.LastStartedAt != nil {
		props[propLastStarted] = dateProp(*patch.LastStartedAt)
	}
	if patch.LastPausedAt != nil {
		props[propLastPaused] = dateProp(*patch.LastPausedAt)
	}
	if patch.CompletedAt != nil {
		props[propCompletedAt] = dateProp(*patch.CompletedAt)
	}
	if patch.TimeSpentSeconds != nil {
		props[propTimeSpent] = notionapi.NumberProperty{Number: float64(*patch.TimeSpentSeconds)}
	}
	if patch.PersonalMessageURL != nil {
		props[propPersonalURL] = notionapi.URLProperty{URL: *patch.PersonalMessageURL}
	}
	if patch.TeamMessageURL != nil {
		props[propTeamURL] = notionapi.URLProperty{URL: *patch.TeamMessageURL}
	}

	if len(props) == 0 {
		return nil
	}

	_, err := s.client.Page.Update(ctx, notionapi.PageID(normalizePageID(id)), &notionapi.PageUpdateRequest{
		Properties: props,
	})
	if err != nil {
		if isNotionNotFound(err) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("update task page: %w", err)
	}
	return nil
}

func (s *NotionStore) QueryTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var and notionapi.AndCompoundFilter

	if filter.AssigneeID != "" {
		and = append(and, notionapi.PropertyFilter{
			Property: propAssigneeID,
			RichText: &notionapi.TextFilterCondition{Equals: filter.AssigneeID},
		})
	}
	if filter.CreatorID != "" {
		and = append(and, notionapi.PropertyFilter{
			Property: propCreatorID,
			RichText: &notionapi.TextFilterCondition{Equals: filter.CreatorID},
		})
	}
	if filter.Team != "" {
		and = append(and, notionapi.PropertyFilter{
			Property: propTeam,
			Select:   &notionapi.SelectFilterCondition{Equals: filter.Team},
		})
	}
	if filter.Priority != 0 {
		and = append(and, notionapi.PropertyFilter{
			Property: propPriority,
			Select:   &notionapi.SelectFilterCondition{Equals: strconv.Itoa(filter.Priority)},
		})
	}
	if len(filter.Statuses) > 0 {
		var or notionapi.OrCompoundFilter
		for _, st := range filter.Statuses {
			or = append(or, notionapi.PropertyFilter{
				Property: propStatus,
				Select:   &notionapi.SelectFilterCondition{Equals: string(st)},
			})
		}
		and = append(and, or)
	}

	req := &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: propStatus, Direction: notionapi.SortOrderASC},
		},
	}
	if len(and) > 0 {
		req.Filter = and
	}

	var tasks []model.Task
	for {
		resp, err := s.client.Database.Query(ctx, s.tasksDB, req)
		if err != nil {
			return nil, fmt.Errorf("query tasks: %w", err)
		}
		for i := range resp.Results {
			tasks = append(tasks, taskFromPage(&resp.Results[i]))
		}
		if !resp.HasMore {
			break
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
	return tasks, nil
}

func (s *NotionStore) ListConfigRecords(ctx context.Context) ([]model.ConfigRecord, error) {
	req := &notionapi.DatabaseQueryRequest{}

	var records []model.ConfigRecord
	for {
		resp, err := s.client.Database.Query(ctx, s.configDB, req)
		if err != nil {
			return nil, fmt.Errorf("query config records: %w", err)
		}
		for i := range resp.Results {
			page := &resp.Results[i]
			records = append(records, model.ConfigRecord{
				ID:    string(page.ID),
				Type:  model.RecordType(readSelect(page.Properties[confPropType])),
				Key:   readRichText(page.Properties[confPropKey]),
				Value: readRichText(page.Properties[confPropValue]),
				Team:  readSelect(page.Properties[confPropTeam]),
			})
		}
		if !resp.HasMore {
			break
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
	return records, nil
}

func (s *NotionStore) UpsertConfigRecord(ctx context.Context, rec model.ConfigRecord) error {
	existing, err := s.findConfigRecord(ctx, rec.Type, rec.Key)
	if err != nil {
		return err
	}

	props := notionapi.Properties{
		confPropType: selectProp(string(rec.Type)),
		confPropKey:  notionapi.RichTextProperty{RichText: richText(rec.Key)},
	}
	if rec.Value != "" {
		props[confPropValue] = notionapi.RichTextProperty{RichText: richText(rec.Value)}
	}
	if rec.Team != "" {
		props[confPropTeam] = selectProp(rec.Team)
	}

	if existing != "" {
		_, err = s.client.Page.Update(ctx, notionapi.PageID(existing), &notionapi.PageUpdateRequest{
			Properties: props,
		})
		if err != nil {
			return fmt.Errorf("update config record: %w", err)
		}
		return nil
	}

	_, err = s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.configDB,
		},
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("create config record: %w", err)
	}
	return nil
}

func (s *NotionStore) DeleteConfigRecords(ctx context.Context, key string, types ...model.RecordType) error {
	var typeFilter notionapi.OrCompoundFilter
	for _, t := range types {
		typeFilter = append(typeFilter, notionapi.PropertyFilter{
			Property: confPropType,
			Select:   &notionapi.SelectFilterCondition{Equals: string(t)},
		})
	}

	resp, err := s.client.Database.Query(ctx, s.configDB, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.AndCompoundFilter{
			notionapi.PropertyFilter{
				Property: confPropKey,
				RichText: &notionapi.TextFilterCondition{Equals: key},
			},
			typeFilter,
		},
	})
	if err != nil {
		return fmt.Errorf("query config records for delete: %w", err)
	}

	for i := range resp.Results {
		// Notion has no hard delete; archiving removes the page from queries.
		_, err := s.client.Page.Update(ctx, notionapi.PageID(resp.Results[i].ID), &notionapi.PageUpdateRequest{
			Properties: notionapi.Properties{},
			Archived:   true,
		})
		if err != nil {
			return fmt.Errorf("archive config record: %w", err)
		}
	}
	return nil
}

func (s *NotionStore) findConfigRecord(ctx context.Context, typ model.RecordType, key string) (string, error) {
	resp, err := s.client.Database.Query(ctx, s.configDB, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.AndCompoundFilter{
			notionapi.PropertyFilter{
				Property: confPropType,
				Select:   &notionapi.SelectFilterCondition{Equals: string(typ)},
			},
			notionapi.PropertyFilter{
				Property: confPropKey,
				RichText: &notionapi.TextFilterCondition{Equals: key},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("find config record: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

func taskFromPage(page *notionapi.Page) model.Task {
	priority, _ := strconv.Atoi(readSelect(page.Properties[propPriority]))
	status, _ := model.ParseStatus(readSelect(page.Properties[propStatus]))

	return model.Task{
		ID:          string(page.ID),
		Title:       readTitle(page.Properties[propTitle]),
		Description: readRichText(page.Properties[propDescription]),
		Team:        readSelect(page.Properties[propTeam]),
		Priority:    priority,
		Status:      status,
		Assignee: model.Identity{
			ID:   readRichText(page.Properties[propAssigneeID]),
			Name: readRichText(page.Properties[propAssignee]),
		},
		Creator: model.Identity{
			ID:   readRichText(page.Properties[propCreatorID]),
			Name: readRichText(page.Properties[propCreator]),
		},
		CompletedBy: model.Identity{
			ID:   readRichText(page.Properties[propCompletedByID]),
			Name: readRichText(page.Properties[propCompletedBy]),
		},
		CreatedAt:          page.CreatedTime,
		LastStartedAt:      readDate(page.Properties[propLastStarted]),
		LastPausedAt:       readDate(page.Properties[propLastPaused]),
		CompletedAt:        readDate(page.Properties[propCompletedAt]),
		TimeSpentSeconds:   int64(readNumber(page.Properties[propTimeSpent])),
		PersonalMessageURL: readURL(page.Properties[propPersonalURL]),
		TeamMessageURL:     readURL(page.Properties[propTeamURL]),
	}
}

func richText(content string) []notionapi.RichText {
	if content == "" {
		return []notionapi.RichText{}
	}
	return []notionapi.RichText{{Text: &notionapi.Text{Content: content}}}
}

func selectProp(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

func dateProp(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

func readTitle(prop notionapi.Property) string {
	p, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(p.Title) == 0 {
		return ""
	}
	return p.Title[0].PlainText
}

func readRichText(prop notionapi.Property) string {
	p, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(p.RichText) == 0 {
		return ""
	}
	return p.RichText[0].PlainText
}

func readSelect(prop notionapi.Property) string {
	p, ok := prop.(*notionapi.SelectProperty)
	if !ok {
		return ""
	}
	return p.Select.Name
}

func readNumber(prop notionapi.Property) float64 {
	p, ok := prop.(*notionapi.NumberProperty)
	if !ok {
		return 0
	}
	return p.Number
}

func readDate(prop notionapi.Property) *time.Time {
	p, ok := prop.(*notionapi.DateProperty)
	if !ok || p.Date == nil || p.Date.Start == nil {
		return nil
	}
	t := time.Time(*p.Date.Start)
	return &t
}

func readURL(prop notionapi.Property) string {
	p, ok := prop.(*notionapi.URLProperty)
	if !ok {
		return ""
	}
	return p.URL
}

// normalizePageID accepts page ids with or without hyphens and returns the
// hyphenated UUID form the API expects.
func normalizePageID(id string) string {
	clean := strings.ReplaceAll(id, "-", "")
	if len(clean) != 32 {
		return id
	}
	return clean[0:8] + "-" + clean[8:12] + "-" + clean[12:16] + "-" + clean[16:20] + "-" + clean[20:]
}

func isNotionNotFound(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 404 || apiErr.Code == "object_not_found"
	}
	return false
}
