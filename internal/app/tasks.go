package app

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/ChelseaChanu/taskSync/internal/dashboard"
	"github.com/ChelseaChanu/taskSync/internal/export"
	"github.com/ChelseaChanu/taskSync/internal/filehost"
	"github.com/ChelseaChanu/taskSync/internal/rbac"
	"github.com/ChelseaChanu/taskSync/internal/search"
	"github.com/ChelseaChanu/taskSync/internal/store"
	"github.com/ChelseaChanu/taskSync/internal/tasks"
	"github.com/ChelseaChanu/taskSync/internal/validate"
	"go.uber.org/zap"
)

// TaskItem is a task together with the control its viewer gets.
type TaskItem struct {
	store.Task
	Action rbac.Action `json:"action"`
}

type SubmissionItem struct {
	store.Submission
	SubmittedByName string `json:"submittedByName"`
}

type Me struct {
	User store.User           `json:"user"`
	View dashboard.ViewConfig `json:"view"`
}

type TaskList struct {
	User  store.User `json:"user"`
	View  string     `json:"view"`
	Tasks []TaskItem `json:"tasks"`
}

type UserTasks struct {
	User     store.User           `json:"user"`
	Assigned []TaskItem           `json:"assigned"`
	Received []TaskItem           `json:"received"`
	Summary  dashboard.UserCounts `json:"summary"`
}

type Dashboard struct {
	User    store.User           `json:"user"`
	View    dashboard.ViewConfig `json:"view"`
	Cards   []dashboard.Card     `json:"cards"`
	Summary dashboard.Summary    `json:"summary"`
}

type TaskDetail struct {
	Task        store.Task       `json:"task"`
	Action      rbac.Action      `json:"action"`
	Submissions []SubmissionItem `json:"submissions"`
}

type CreateTaskInput struct {
	tasks.TaskFields
	AssigneeUIDs []string `json:"assignedToUids"`
}

type UploadFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type UploadResult struct {
	Uploaded []store.Attachment `json:"uploaded"`
	Failed   []UploadFailure    `json:"failed"`
}

func (s *Service) Me(sess Session) Me {
	return Me{User: sess.User, View: dashboard.ViewConfigFor(rbac.Normalize(sess.User.Designation))}
}

// Subordinates lists everyone below viewer, narrowed by term when given.
func (s *Service) Subordinates(ctx context.Context, viewer store.User, term string) ([]store.User, error) {
	designation := rbac.Normalize(viewer.Designation)
	if strings.TrimSpace(term) == "" {
		return s.directory.ListSubordinates(ctx, designation)
	}
	return s.directory.Search(ctx, designation, term)
}

// inspect resolves the user whose activity viewer asked to see. An empty uid
// means the viewer.
func (s *Service) inspect(ctx context.Context, viewer store.User, uid string) (store.User, error) {
	if uid == "" || uid == viewer.UID {
		return viewer, nil
	}
	target, err := s.directory.Get(ctx, uid)
	if err != nil {
		return store.User{}, err
	}
	if !rbac.CanInspect(viewer, target) {
		return store.User{}, errForbidden
	}
	return target, nil
}

// contextOwner is like inspect, but an empty uid leaves the owner unset so
// the task creator is used.
func (s *Service) contextOwner(ctx context.Context, viewer store.User, uid string) (store.User, error) {
	if uid == "" {
		return store.User{}, nil
	}
	return s.inspect(ctx, viewer, uid)
}

func decorate(viewer, owner store.User, list []store.Task) []TaskItem {
	items := make([]TaskItem, 0, len(list))
	for _, t := range list {
		items = append(items, TaskItem{Task: t, Action: rbac.Decide(viewer, t, owner)})
	}
	return items
}

func resolveView(target store.User, view string) (string, error) {
	switch view {
	case "":
		return dashboard.ViewConfigFor(rbac.Normalize(target.Designation)).DefaultTab, nil
	case dashboard.TabReceived, dashboard.TabAssigned:
		return view, nil
	}
	return "", badRequest("INVALID_VIEW", "view must be received or assigned")
}

// ListTasks returns uid's received or assigned tasks as seen by viewer.
func (s *Service) ListTasks(ctx context.Context, viewer store.User, view, uid string) (TaskList, error) {
	target, err := s.inspect(ctx, viewer, uid)
	if err != nil {
		return TaskList{}, err
	}
	view, err = resolveView(target, view)
	if err != nil {
		return TaskList{}, err
	}

	var list []store.Task
	if view == dashboard.TabAssigned {
		list, err = s.tasks.ListCreatedBy(ctx, target.UID)
	} else {
		list, err = s.tasks.ListAssignedTo(ctx, target.UID)
	}
	if err != nil {
		return TaskList{}, err
	}
	return TaskList{User: target, View: view, Tasks: decorate(viewer, target, list)}, nil
}

// WatchTasks opens a live version of ListTasks. The caller closes the feed.
func (s *Service) WatchTasks(ctx context.Context, viewer store.User, view, uid string) (*tasks.Feed, store.User, string, error) {
	target, err := s.inspect(ctx, viewer, uid)
	if err != nil {
		return nil, store.User{}, "", err
	}
	view, err = resolveView(target, view)
	if err != nil {
		return nil, store.User{}, "", err
	}

	var feed *tasks.Feed
	if view == dashboard.TabAssigned {
		feed, err = s.tasks.WatchCreatedBy(ctx, target.UID)
	} else {
		feed, err = s.tasks.WatchAssignedTo(ctx, target.UID)
	}
	if err != nil {
		return nil, store.User{}, "", err
	}
	return feed, target, view, nil
}

// UserTasks is the per-user overview opened from the directory.
func (s *Service) UserTasks(ctx context.Context, viewer store.User, uid string) (UserTasks, error) {
	target, err := s.inspect(ctx, viewer, uid)
	if err != nil {
		return UserTasks{}, err
	}
	assigned, err := s.tasks.ListCreatedBy(ctx, target.UID)
	if err != nil {
		return UserTasks{}, err
	}
	received, err := s.tasks.ListAssignedTo(ctx, target.UID)
	if err != nil {
		return UserTasks{}, err
	}
	return UserTasks{
		User:     target,
		Assigned: decorate(viewer, target, assigned),
		Received: decorate(viewer, target, received),
		Summary:  dashboard.UserSummary(assigned, received, s.now(), s.loc),
	}, nil
}

func (s *Service) Dashboard(ctx context.Context, viewer store.User, uid string) (Dashboard, error) {
	target, err := s.inspect(ctx, viewer, uid)
	if err != nil {
		return Dashboard{}, err
	}
	assigned, err := s.tasks.ListCreatedBy(ctx, target.UID)
	if err != nil {
		return Dashboard{}, err
	}
	received, err := s.tasks.ListAssignedTo(ctx, target.UID)
	if err != nil {
		return Dashboard{}, err
	}

	ids := make([]string, 0, len(assigned))
	for _, t := range assigned {
		ids = append(ids, t.ID)
	}
	submissions, err := s.tasks.ListSubmissionsForTasks(ctx, ids)
	if err != nil {
		return Dashboard{}, err
	}
	own, err := s.tasks.ListSubmittedBy(ctx, target.UID)
	if err != nil {
		return Dashboard{}, err
	}
	submissions = append(submissions, own...)

	names, err := s.submitterNames(ctx, submissions)
	if err != nil {
		return Dashboard{}, err
	}

	summary := dashboard.Build(dashboard.Input{
		UserID:      target.UID,
		Assigned:    assigned,
		Received:    received,
		Submissions: submissions,
		Names:       names,
		AsOf:        s.now(),
		Location:    s.loc,
	})
	view := dashboard.ViewConfigFor(rbac.Normalize(target.Designation))
	return Dashboard{
		User:    target,
		View:    view,
		Cards:   dashboard.Cards(view, summary.Counts),
		Summary: summary,
	}, nil
}

func (s *Service) submitterNames(ctx context.Context, submissions []store.Submission) (map[string]string, error) {
	uids := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		uids = append(uids, sub.SubmittedBy)
	}
	return s.directory.Names(ctx, uids)
}

func (s *Service) SearchTasks(ctx context.Context, viewer store.User, text string, limit, offset int) search.Response {
	return s.search.Search(ctx, search.Query{Text: text, ViewerID: viewer.UID, Limit: limit, Offset: offset})
}

// CreateTask stores a task from creator to the named assignees.
func (s *Service) CreateTask(ctx context.Context, creator store.User, in CreateTaskInput) (store.Task, error) {
	uids := make([]string, 0, len(in.AssigneeUIDs))
	seen := make(map[string]bool, len(in.AssigneeUIDs))
	for _, uid := range in.AssigneeUIDs {
		uid = strings.TrimSpace(uid)
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		uids = append(uids, uid)
	}

	assignees, err := s.directory.Lookup(ctx, uids)
	if errors.Is(err, store.ErrNotFound) {
		verr := &validate.Error{}
		verr.Add("assignedToUids", "unknown user")
		return store.Task{}, verr
	}
	if err != nil {
		return store.Task{}, err
	}

	task, err := s.tasks.CreateTask(ctx, creator, in.TaskFields, assignees)
	if err != nil {
		return store.Task{}, err
	}
	s.log.Info("task created", zap.String("task", task.ID), zap.String("creator", creator.UID), zap.Int("assignees", len(assignees)))
	s.search.IndexTask(search.RecordFor(task))
	return task, nil
}

// authorize loads the task and decides viewer's action on it, failing when
// viewer gets no action at all.
func (s *Service) authorize(ctx context.Context, viewer store.User, taskID, contextUID string) (store.Task, rbac.Action, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return store.Task{}, rbac.ActionNone, err
	}
	owner, err := s.contextOwner(ctx, viewer, contextUID)
	if err != nil {
		return store.Task{}, rbac.ActionNone, err
	}
	action := rbac.Decide(viewer, task, owner)
	if action == rbac.ActionNone {
		return store.Task{}, rbac.ActionNone, errForbidden
	}
	return task, action, nil
}

func (s *Service) GetTask(ctx context.Context, viewer store.User, taskID, contextUID string) (TaskDetail, error) {
	task, action, err := s.authorize(ctx, viewer, taskID, contextUID)
	if err != nil {
		return TaskDetail{}, err
	}
	submissions, err := s.visibleSubmissions(ctx, viewer, task.ID, action)
	if err != nil {
		return TaskDetail{}, err
	}
	return TaskDetail{Task: task, Action: action, Submissions: submissions}, nil
}

func (s *Service) ListSubmissions(ctx context.Context, viewer store.User, taskID, contextUID string) ([]SubmissionItem, error) {
	task, action, err := s.authorize(ctx, viewer, taskID, contextUID)
	if err != nil {
		return nil, err
	}
	return s.visibleSubmissions(ctx, viewer, task.ID, action)
}

// visibleSubmissions returns every submission to reviewers and only their own
// to assignees, newest first.
func (s *Service) visibleSubmissions(ctx context.Context, viewer store.User, taskID string, action rbac.Action) ([]SubmissionItem, error) {
	all, err := s.tasks.ListSubmissions(ctx, taskID)
	if err != nil {
		return nil, err
	}
	visible := make([]store.Submission, 0, len(all))
	for _, sub := range all {
		if action == rbac.ActionViewSubmissions || sub.SubmittedBy == viewer.UID {
			visible = append(visible, sub)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].SubmittedAt.After(visible[j].SubmittedAt)
	})

	names, err := s.submitterNames(ctx, visible)
	if err != nil {
		return nil, err
	}
	items := make([]SubmissionItem, 0, len(visible))
	for _, sub := range visible {
		items = append(items, SubmissionItem{Submission: sub, SubmittedByName: names[sub.SubmittedBy]})
	}
	return items, nil
}

func (s *Service) Submit(ctx context.Context, viewer store.User, taskID string, in tasks.SubmissionInput) (store.Submission, error) {
	sub, err := s.tasks.RecordSubmission(ctx, &viewer, taskID, in)
	if err != nil {
		return store.Submission{}, err
	}
	s.log.Info("task submitted", zap.String("task", taskID), zap.String("user", viewer.UID))
	return sub, nil
}

// SetStatus lets the creator or an assignee mark the task pending or completed.
func (s *Service) SetStatus(ctx context.Context, viewer store.User, taskID, status string) (store.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if task.CreatedBy != viewer.UID && !task.IsAssignee(viewer.UID) {
		return store.Task{}, errForbidden
	}
	task, err = s.tasks.SetStatus(ctx, taskID, status)
	if err != nil {
		return store.Task{}, err
	}
	s.search.IndexTask(search.RecordFor(task))
	return task, nil
}

func (s *Service) RequestExtension(ctx context.Context, viewer store.User, taskID string) (store.Task, error) {
	return s.tasks.RequestExtension(ctx, taskID, viewer.UID)
}

// Export renders the task report for reviewers of its submissions.
func (s *Service) Export(ctx context.Context, viewer store.User, taskID, format, contextUID string) (*export.Result, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	_, action, err := s.authorize(ctx, viewer, taskID, contextUID)
	if err != nil {
		return nil, err
	}
	if action != rbac.ActionViewSubmissions {
		return nil, errForbidden
	}
	return s.exporter.Export(ctx, export.Request{TaskID: taskID, Format: parsed, Location: s.loc})
}

// UploadLimit bounds the whole attachment request body: every allowed file at
// its largest plus room for the multipart framing.
func (s *Service) UploadLimit() int64 {
	if s.files == nil {
		return multipartOverhead
	}
	files := s.cfg.MaxUploadFiles
	if files <= 0 {
		files = defaultUploadFiles
	}
	return int64(files)*s.files.MaxBytes() + multipartOverhead
}

// Upload stores a batch of attachments. Rejected files are reported, not fatal.
func (s *Service) Upload(ctx context.Context, files []filehost.File) (UploadResult, error) {
	if s.files == nil {
		return UploadResult{}, errStorageUnavailable
	}
	result := UploadResult{Uploaded: []store.Attachment{}, Failed: []UploadFailure{}}
	for _, r := range s.files.Upload(ctx, files) {
		if r.Err != nil {
			result.Failed = append(result.Failed, UploadFailure{Name: r.Name, Error: r.Err.Error()})
			continue
		}
		result.Uploaded = append(result.Uploaded, store.Attachment{Name: r.Name, URL: r.URL})
	}
	return result, nil
}
