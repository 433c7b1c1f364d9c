// Package search finds tasks a user created or received.
package search

import (
	"context"
	"strings"

	"github.com/ChelseaChanu/taskSync/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	Status        string `json:"status"`
	DueDate       string `json:"dueDate"`
	CreatedByName string `json:"createdByName"`
}

// Query describes a search request. Only tasks ViewerID created or received
// are ever returned.
type Query struct {
	Text     string
	ViewerID string
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a task search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	Status         string   `json:"status"`
	DueDate        string   `json:"dueDate"`
	CreatedBy      string   `json:"createdBy"`
	CreatedByName  string   `json:"createdByName"`
	AssignedToUIDs []string `json:"assignedToUids"`
	AssigneeNames  []string `json:"assigneeNames"`
}

// RecordFor flattens a task into its index record.
func RecordFor(t store.Task) TaskRecord {
	names := make([]string, 0, len(t.AssignedToObjects))
	for _, a := range t.AssignedToObjects {
		names = append(names, strings.TrimSpace(a.FirstName+" "+a.LastName))
	}
	uids := t.AssignedToUIDs
	if uids == nil {
		uids = []string{}
	}
	return TaskRecord{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Priority:       t.Priority,
		Status:         t.Status,
		DueDate:        t.DueDate,
		CreatedBy:      t.CreatedBy,
		CreatedByName:  t.CreatedByName,
		AssignedToUIDs: uids,
		AssigneeNames:  names,
	}
}

const defaultLimit = 20
