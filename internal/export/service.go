package export

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	Get(ctx context.Context, taskID string) (store.Task, error)
	ListSubmissions(ctx context.Context, taskID string) ([]store.Submission, error)
}

// NameResolver maps user ids to display names.
type NameResolver interface {
	Names(ctx context.Context, uids []string) (map[string]string, error)
}

type renderFunc func(ctx context.Context, html, title string) (*Result, error)

// Service provides task report export functionality
type Service struct {
	store     DataStore
	names     NameResolver
	now       func() time.Time
	renderers map[Format]renderFunc
}

// NewService creates a new export service
func NewService(store DataStore, names NameResolver) *Service {
	return &Service{
		store: store,
		names: names,
		now:   time.Now,
		renderers: map[Format]renderFunc{
			FormatPDF:  exportPDF,
			FormatDOCX: exportDOCX,
			FormatHTML: exportHTML,
		},
	}
}

// Export generates a report in the requested format. Callers decide whether
// the viewer may see the task's submissions.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	render, ok := s.renderers[req.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	task, err := s.store.Get(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	submissions, err := s.store.ListSubmissions(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	uids := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		uids = append(uids, sub.SubmittedBy)
	}
	names, err := s.names.Names(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("resolve names: %w", err)
	}

	html, err := RenderReportHTML(s.templateData(task, submissions, names, req.Location))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return render(ctx, html, task.Title)
}

func (s *Service) templateData(task store.Task, submissions []store.Submission, names map[string]string, loc *time.Location) TemplateData {
	if loc == nil {
		loc = time.UTC
	}
	data := TemplateData{
		Title:                task.Title,
		DescriptionHTML:      paragraphs(task.Description),
		CreatedByName:        task.CreatedByName,
		CreatedByDesignation: task.CreatedByDesignation,
		AssignDate:           task.AssignDate,
		DueDate:              task.DueDate,
		Priority:             task.Priority,
		Status:               task.Status,
		Attachments:          attachments(task.Attachments),
		GeneratedAt:          s.now().In(loc),
	}
	for _, a := range task.AssignedToObjects {
		data.Assignees = append(data.Assignees, TemplateAssignee{
			Name:        strings.TrimSpace(a.FirstName + " " + a.LastName),
			Designation: a.Designation,
		})
	}

	sorted := append([]store.Submission(nil), submissions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
	})
	for _, sub := range sorted {
		by := names[sub.SubmittedBy]
		if by == "" {
			by = sub.SubmittedBy
		}
		data.Submissions = append(data.Submissions, TemplateSubmission{
			By:              by,
			At:              sub.SubmittedAt.In(loc),
			DescriptionHTML: paragraphs(sub.Description),
			Attachments:     attachments(sub.Attachments),
		})
	}
	return data
}

func attachments(in []store.Attachment) []TemplateAttachment {
	out := make([]TemplateAttachment, 0, len(in))
	for _, a := range in {
		out = append(out, TemplateAttachment{Name: a.Name, URL: a.URL})
	}
	return out
}

func exportHTML(_ context.Context, html, title string) (*Result, error) {
	return &Result{
		Data:     []byte(html),
		Filename: sanitizeFilename(title) + ".html",
		MimeType: "text/html; charset=utf-8",
	}, nil
}
