// Package tasks stores tasks and their submissions.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/rbac"
	"github.com/ChelseaChanu/taskSync/internal/store"
	"github.com/ChelseaChanu/taskSync/internal/validate"
	"go.uber.org/zap"
)

var (
	ErrUnauthenticated        = errors.New("not signed in")
	ErrNotAssignee            = errors.New("user is not assigned to this task")
	ErrAlreadySubmitted       = errors.New("task already submitted by this user")
	ErrAssigneeNotSubordinate = errors.New("assignee is not below the creator")
)

// ValidationError lists the task fields that failed validation.
type ValidationError = validate.Error

// DateLayout is the dd/mm/yyyy form used for assign and due dates.
const DateLayout = "2/1/2006"

var priorities = []string{"High", "Medium", "Low"}

// ParseDate parses a dd/mm/yyyy date as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
}

// Store is a document store that also serves live queries.
type Store interface {
	store.DocumentStore
	Watch(ctx context.Context, collection string, filters ...store.Filter) (*store.Subscription, error)
}

type Repository struct {
	docs              Store
	allowResubmission bool
	log               *zap.Logger
}

type Option func(*Repository)

// WithResubmission controls whether an assignee may submit more than once.
func WithResubmission(allow bool) Option {
	return func(r *Repository) {
		r.allowResubmission = allow
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Repository) {
		r.log = log
	}
}

func New(docs Store, opts ...Option) *Repository {
	r := &Repository{docs: docs, allowResubmission: true, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TaskFields is the user-entered part of a new task.
type TaskFields struct {
	Title       string             `json:"title" validate:"required"`
	Description string             `json:"description" validate:"required"`
	AssignDate  string             `json:"assignDate" validate:"required"`
	DueDate     string             `json:"dueDate" validate:"required"`
	Priority    string             `json:"priority" validate:"required"`
	Attachments []store.Attachment `json:"attachments"`
}

func (f TaskFields) check(assignees []store.User) error {
	verr := &ValidationError{}
	if len(assignees) == 0 {
		verr.Add("assignees", "select at least one assignee")
	}
	if f.Priority != "" && !validPriority(f.Priority) {
		verr.Add("priority", "must be one of High, Medium, Low")
	}
	if f.AssignDate != "" {
		if _, err := ParseDate(f.AssignDate, nil); err != nil {
			verr.Add("assignDate", "must be a dd/mm/yyyy date")
		}
	}
	if f.DueDate != "" {
		if _, err := ParseDate(f.DueDate, nil); err != nil {
			verr.Add("dueDate", "must be a dd/mm/yyyy date")
		}
	}
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	return validate.Into(verr, f)
}

func validPriority(p string) bool {
	for _, candidate := range priorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// CreateTask validates fields, checks every assignee ranks below creator and
// stores the task with creator and assignee details copied in.
func (r *Repository) CreateTask(ctx context.Context, creator store.User, fields TaskFields, assignees []store.User) (store.Task, error) {
	if err := fields.check(assignees); err != nil {
		return store.Task{}, err
	}

	creatorRank := rbac.Normalize(creator.Designation)
	seen := make(map[string]bool, len(assignees))
	uids := make([]string, 0, len(assignees))
	objects := make([]store.Assignee, 0, len(assignees))
	for _, a := range assignees {
		if seen[a.UID] {
			continue
		}
		seen[a.UID] = true
		if !rbac.CanAssign(creatorRank, rbac.Normalize(a.Designation)) {
			return store.Task{}, fmt.Errorf("%w: %s (%s)", ErrAssigneeNotSubordinate, a.FullName(), a.Designation)
		}
		uids = append(uids, a.UID)
		objects = append(objects, store.Assignee{
			UID:         a.UID,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Designation: a.Designation,
		})
	}

	attachments := fields.Attachments
	if attachments == nil {
		attachments = []store.Attachment{}
	}
	task := store.Task{
		Title:                strings.TrimSpace(fields.Title),
		Description:          strings.TrimSpace(fields.Description),
		AssignDate:           strings.TrimSpace(fields.AssignDate),
		DueDate:              strings.TrimSpace(fields.DueDate),
		Priority:             fields.Priority,
		CreatedBy:            creator.UID,
		CreatedByName:        creator.FullName(),
		CreatedByDesignation: creator.Designation,
		AssignedToUIDs:       uids,
		AssignedToObjects:    objects,
		Attachments:          attachments,
		Status:               store.StatusPending,
	}
	doc, err := r.docs.Create(ctx, store.CollectionTasks, task)
	if err != nil {
		return store.Task{}, fmt.Errorf("create task: %w", err)
	}
	return decodeTask(doc)
}

func (r *Repository) Get(ctx context.Context, id string) (store.Task, error) {
	doc, err := r.docs.Get(ctx, store.CollectionTasks, id)
	if err != nil {
		return store.Task{}, err
	}
	return decodeTask(doc)
}

// ListCreatedBy returns tasks created by uid, newest first.
func (r *Repository) ListCreatedBy(ctx context.Context, uid string) ([]store.Task, error) {
	return r.list(ctx, store.Equal("createdBy", uid))
}

// ListAssignedTo returns tasks naming uid as an assignee, newest first.
func (r *Repository) ListAssignedTo(ctx context.Context, uid string) ([]store.Task, error) {
	return r.list(ctx, store.ArrayContains("assignedToUids", uid))
}

// ListAll returns every task, newest first. Used to rebuild the search index.
func (r *Repository) ListAll(ctx context.Context) ([]store.Task, error) {
	return r.list(ctx)
}

func (r *Repository) list(ctx context.Context, filters ...store.Filter) ([]store.Task, error) {
	docs, err := r.docs.Query(ctx, store.CollectionTasks, filters...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return decodeTasks(docs)
}

func (r *Repository) WatchCreatedBy(ctx context.Context, uid string) (*Feed, error) {
	return r.watch(ctx, store.Equal("createdBy", uid))
}

func (r *Repository) WatchAssignedTo(ctx context.Context, uid string) (*Feed, error) {
	return r.watch(ctx, store.ArrayContains("assignedToUids", uid))
}

// SetStatus moves a task between pending and completed.
func (r *Repository) SetStatus(ctx context.Context, taskID, status string) (store.Task, error) {
	if status != store.StatusPending && status != store.StatusCompleted {
		verr := &ValidationError{}
		verr.Add("status", "must be pending or completed")
		return store.Task{}, verr
	}
	doc, err := r.docs.Update(ctx, store.CollectionTasks, taskID, map[string]any{"status": status})
	if err != nil {
		return store.Task{}, fmt.Errorf("set status: %w", err)
	}
	return decodeTask(doc)
}

// RequestExtension flags the task on behalf of one of its assignees.
func (r *Repository) RequestExtension(ctx context.Context, taskID, uid string) (store.Task, error) {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if !task.IsAssignee(uid) {
		return store.Task{}, ErrNotAssignee
	}
	doc, err := r.docs.Update(ctx, store.CollectionTasks, taskID, map[string]any{"extensionRequested": true})
	if err != nil {
		return store.Task{}, fmt.Errorf("request extension: %w", err)
	}
	return decodeTask(doc)
}

// SubmissionInput is what an assignee hands in.
type SubmissionInput struct {
	Description string             `json:"description"`
	Attachments []store.Attachment `json:"attachments"`
}

// RecordSubmission stores submitter's work for taskID. A nil submitter means
// no signed-in user.
func (r *Repository) RecordSubmission(ctx context.Context, submitter *store.User, taskID string, input SubmissionInput) (store.Submission, error) {
	if submitter == nil || submitter.UID == "" {
		return store.Submission{}, ErrUnauthenticated
	}

	task, err := r.Get(ctx, taskID)
	if err != nil {
		return store.Submission{}, err
	}
	if !task.IsAssignee(submitter.UID) {
		return store.Submission{}, ErrNotAssignee
	}

	if !r.allowResubmission {
		previous, err := r.docs.Query(ctx, store.CollectionSubmissions,
			store.Equal("taskId", taskID),
			store.Equal("submittedBy", submitter.UID),
		)
		if err != nil {
			return store.Submission{}, fmt.Errorf("check previous submissions: %w", err)
		}
		if len(previous) > 0 {
			return store.Submission{}, ErrAlreadySubmitted
		}
	}

	attachments := input.Attachments
	if attachments == nil {
		attachments = []store.Attachment{}
	}
	doc, err := r.docs.Create(ctx, store.CollectionSubmissions, store.Submission{
		TaskID:      taskID,
		SubmittedBy: submitter.UID,
		Description: strings.TrimSpace(input.Description),
		Attachments: attachments,
		AssignedBy:  task.CreatedByName,
	})
	if err != nil {
		return store.Submission{}, fmt.Errorf("record submission: %w", err)
	}
	return decodeSubmission(doc)
}

// ListSubmissions returns taskID's submissions in storage order.
func (r *Repository) ListSubmissions(ctx context.Context, taskID string) ([]store.Submission, error) {
	return r.submissions(ctx, store.Equal("taskId", taskID))
}

func (r *Repository) ListSubmittedBy(ctx context.Context, uid string) ([]store.Submission, error) {
	return r.submissions(ctx, store.Equal("submittedBy", uid))
}

// ListSubmissionsForTasks gathers the submissions of every task in taskIDs.
func (r *Repository) ListSubmissionsForTasks(ctx context.Context, taskIDs []string) ([]store.Submission, error) {
	out := make([]store.Submission, 0)
	for _, id := range taskIDs {
		items, err := r.ListSubmissions(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (r *Repository) submissions(ctx context.Context, filter store.Filter) ([]store.Submission, error) {
	docs, err := r.docs.Query(ctx, store.CollectionSubmissions, filter)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out := make([]store.Submission, 0, len(docs))
	for _, doc := range docs {
		s, err := decodeSubmission(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeTask(doc store.Document) (store.Task, error) {
	var task store.Task
	if err := doc.Decode(&task); err != nil {
		return store.Task{}, fmt.Errorf("decode task %s: %w", doc.ID, err)
	}
	task.ID = doc.ID
	task.CreatedAt = doc.CreatedAt
	task.UpdatedAt = doc.UpdatedAt
	return task, nil
}

// decodeTasks decodes docs and orders them newest first. Documents arrive in
// insertion order, so equal timestamps keep the later write first.
func decodeTasks(docs []store.Document) ([]store.Task, error) {
	out := make([]store.Task, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		task, err := decodeTask(docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func decodeSubmission(doc store.Document) (store.Submission, error) {
	var s store.Submission
	if err := doc.Decode(&s); err != nil {
		return store.Submission{}, fmt.Errorf("decode submission %s: %w", doc.ID, err)
	}
	s.ID = doc.ID
	s.SubmittedAt = doc.CreatedAt
	return s, nil
}
