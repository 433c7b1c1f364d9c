// Package dashboard turns a user's task lists into dashboard counts and feeds.
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/store"
	"github.com/ChelseaChanu/taskSync/internal/tasks"
	"github.com/dustin/go-humanize"
)

const (
	// Window bounds notifications and recent activity.
	Window = 7 * 24 * time.Hour
	// UpcomingDays is how far ahead a due date counts as upcoming.
	UpcomingDays = 3
)

type Counts struct {
	AssignedByMe int `json:"assignedByMe"`
	Received     int `json:"received"`
	Completed    int `json:"completed"`
	Overdue      int `json:"overdue"`
}

type Upcoming struct {
	TaskID  string    `json:"taskId"`
	Title   string    `json:"title"`
	DueDate string    `json:"dueDate"`
	Due     time.Time `json:"due"`
	Label   string    `json:"label"`
}

type Event struct {
	TaskID   string    `json:"taskId"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
	Relative string    `json:"relative"`
}

type Summary struct {
	Counts         Counts     `json:"counts"`
	Upcoming       []Upcoming `json:"upcoming"`
	Notifications  []Event    `json:"notifications"`
	RecentActivity []Event    `json:"recentActivity"`
}

// Input is everything Build needs about one user.
type Input struct {
	UserID string
	// Assigned holds the tasks the user created.
	Assigned []store.Task
	// Received holds the tasks naming the user as an assignee.
	Received []store.Task
	// Submissions holds submissions on Assigned tasks and the user's own.
	Submissions []store.Submission
	// Names maps submitter uids to display names.
	Names map[string]string
	AsOf  time.Time
	// Location decides where calendar days start; nil means UTC.
	Location *time.Location
}

// Build computes the dashboard for in.UserID as of in.AsOf.
func Build(in Input) Summary {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	asOf := in.AsOf.In(loc)
	today := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, loc)
	cutoff := in.AsOf.Add(-Window)

	summary := Summary{
		Counts: Counts{
			AssignedByMe: len(in.Assigned),
			Received:     len(in.Received),
		},
		Upcoming:       []Upcoming{},
		Notifications:  []Event{},
		RecentActivity: []Event{},
	}

	for _, t := range in.Received {
		completed := t.Status == store.StatusCompleted
		if completed {
			summary.Counts.Completed++
		}
		due, err := tasks.ParseDate(t.DueDate, loc)
		if err != nil || completed {
			continue
		}
		days := daysBetween(today, due)
		if days < 0 {
			summary.Counts.Overdue++
		}
		if days >= 0 && days <= UpcomingDays {
			summary.Upcoming = append(summary.Upcoming, Upcoming{
				TaskID:  t.ID,
				Title:   t.Title,
				DueDate: t.DueDate,
				Due:     due,
				Label:   fmt.Sprintf("%s → %s", due.Format("Jan 2"), t.Title),
			})
		}
	}
	sort.SliceStable(summary.Upcoming, func(i, j int) bool {
		return summary.Upcoming[i].Due.Before(summary.Upcoming[j].Due)
	})

	titles := make(map[string]string, len(in.Assigned)+len(in.Received))
	created := make(map[string]bool, len(in.Assigned))
	for _, t := range in.Received {
		titles[t.ID] = t.Title
	}
	for _, t := range in.Assigned {
		titles[t.ID] = t.Title
		created[t.ID] = true
	}
	titleOf := func(taskID string) string {
		if title, ok := titles[taskID]; ok {
			return title
		}
		return taskID
	}
	inWindow := func(at time.Time) bool {
		return !at.IsZero() && !at.Before(cutoff)
	}

	var notifications, activity []Event
	add := func(list *[]Event, taskID, text string, at time.Time) {
		if !inWindow(at) {
			return
		}
		*list = append(*list, Event{
			TaskID:   taskID,
			Text:     text,
			At:       at,
			Relative: humanize.RelTime(at, in.AsOf, "ago", "from now"),
		})
	}

	for _, t := range in.Received {
		add(&notifications, t.ID, "You received task: "+t.Title, t.CreatedAt)
		add(&activity, t.ID, fmt.Sprintf("Created task %q", t.Title), t.CreatedAt)
		if t.Status == store.StatusCompleted {
			add(&activity, t.ID, fmt.Sprintf("Marked %q as completed", t.Title), t.UpdatedAt)
		}
		if t.ExtensionRequested {
			add(&activity, t.ID, fmt.Sprintf("Extension requested for %q", t.Title), t.UpdatedAt)
		}
	}

	for _, s := range in.Submissions {
		if created[s.TaskID] {
			name := in.Names[s.SubmittedBy]
			if name == "" {
				name = s.SubmittedBy
			}
			add(&notifications, s.TaskID, fmt.Sprintf("Task %q was submitted by %s", titleOf(s.TaskID), name), s.SubmittedAt)
		}
		if s.SubmittedBy == in.UserID {
			add(&activity, s.TaskID, fmt.Sprintf("You submitted task %q", titleOf(s.TaskID)), s.SubmittedAt)
		}
	}

	summary.Notifications = newestFirst(notifications)
	summary.RecentActivity = newestFirst(activity)
	return summary
}

func newestFirst(events []Event) []Event {
	if events == nil {
		return []Event{}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.After(events[j].At)
	})
	return events
}

// daysBetween counts calendar days from a to b, both midnights in one zone.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// UserCounts summarises another user's tasks for the directory view.
type UserCounts struct {
	Assigned  int `json:"assigned"`
	Received  int `json:"received"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

// UserSummary counts completed and overdue tasks across both lists. Due dates
// carry no time of day, so a task only becomes overdue once its due day has
// passed in loc, the same rule Build applies. A task due today is not overdue.
func UserSummary(assigned, received []store.Task, asOf time.Time, loc *time.Location) UserCounts {
	if loc == nil {
		loc = time.UTC
	}
	local := asOf.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	counts := UserCounts{Assigned: len(assigned), Received: len(received)}
	for _, list := range [][]store.Task{assigned, received} {
		for _, t := range list {
			if t.Status == store.StatusCompleted {
				counts.Completed++
				continue
			}
			due, err := tasks.ParseDate(t.DueDate, loc)
			if err == nil && due.Before(today) {
				counts.Overdue++
			}
		}
	}
	return counts
}
