package store

import (
	"encoding/json"
	"errors"
	"time"
)

// Collection names shared by every DocumentStore implementation.
const (
	CollectionUsers           = "users"
	CollectionTasks           = "tasks"
	CollectionSubmissions     = "taskSubmissions"
	CollectionAccounts        = "accounts"
	CollectionRefreshSessions = "refreshSessions"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

var ErrNotFound = errors.New("document not found")

// Document is the raw stored record. CreatedAt and UpdatedAt are assigned by the store.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the document payload into target.
func (d Document) Decode(target any) error {
	return json.Unmarshal(d.Data, target)
}

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter is a single query predicate over a top-level JSON field.
type Filter struct {
	Field string
	Op    Op
	Value string
}

func Equal(field, value string) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func ArrayContains(field, value string) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

type User struct {
	UID         string    `json:"uid"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Designation string    `json:"designation"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Assignee is the snapshot of a user copied into a task at creation time.
type Assignee struct {
	UID         string `json:"uid"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Designation string `json:"designation"`
}

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Task struct {
	ID                   string       `json:"id"`
	Title                string       `json:"title"`
	Description          string       `json:"description"`
	AssignDate           string       `json:"assignDate"`
	DueDate              string       `json:"dueDate"`
	Priority             string       `json:"priority"`
	CreatedBy            string       `json:"createdBy"`
	CreatedByName        string       `json:"createdByName"`
	CreatedByDesignation string       `json:"createdByDesignation"`
	AssignedToUIDs       []string     `json:"assignedToUids"`
	AssignedToObjects    []Assignee   `json:"assignedToObjects"`
	Attachments          []Attachment `json:"attachments"`
	Status               string       `json:"status"`
	ExtensionRequested   bool         `json:"extensionRequested"`
	CreatedAt            time.Time    `json:"createdAt,omitzero"`
	UpdatedAt            time.Time    `json:"updatedAt,omitzero"`
}

// IsAssignee reports whether uid is among the task's assignees.
func (t Task) IsAssignee(uid string) bool {
	for _, assigned := range t.AssignedToUIDs {
		if assigned == uid {
			return true
		}
	}
	return false
}

type Submission struct {
	ID          string       `json:"id"`
	TaskID      string       `json:"taskId"`
	SubmittedBy string       `json:"submittedBy"`
	SubmittedAt time.Time    `json:"submittedAt,omitzero"`
	Description string       `json:"description"`
	Attachments []Attachment `json:"attachments"`
	AssignedBy  string       `json:"assignBy"`
}

// Account holds identity-provider state. It is never returned by the API.
type Account struct {
	UID                   string     `json:"uid"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"passwordHash"`
	EmailVerified         bool       `json:"emailVerified"`
	VerificationToken     string     `json:"verificationToken,omitempty"`
	VerificationExpiresAt *time.Time `json:"verificationExpiresAt,omitempty"`
	ResetToken            string     `json:"resetToken,omitempty"`
	ResetExpiresAt        *time.Time `json:"resetExpiresAt,omitempty"`
}

type RefreshSession struct {
	UserID    string     `json:"userId"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}
