package rbac

import "github.com/ChelseaChanu/taskSync/internal/store"

type Designation string
type Action string

const (
	Principal     Designation = "Principal"
	VicePrincipal Designation = "Vice-Principal"
	Headmistress  Designation = "Headmistress"
	Teacher       Designation = "Teacher"
)

const (
	ActionSubmit          Action = "can-submit"
	ActionViewSubmissions Action = "can-view-submissions"
	ActionNone            Action = "none"
)

// Hierarchy lists designations from highest to lowest authority.
var Hierarchy = []Designation{Principal, VicePrincipal, Headmistress, Teacher}

// Rank returns the hierarchy index; lower means more authority.
// Unknown designations rank with the lowest designation.
func Rank(d Designation) int {
	for i, candidate := range Hierarchy {
		if candidate == d {
			return i
		}
	}
	return len(Hierarchy) - 1
}

func Valid(value string) bool {
	for _, candidate := range Hierarchy {
		if string(candidate) == value {
			return true
		}
	}
	return false
}

func Normalize(value string) Designation {
	if Valid(value) {
		return Designation(value)
	}
	return Teacher
}

// Outranks reports whether a holds strictly more authority than b.
func Outranks(a, b Designation) bool {
	return Rank(a) < Rank(b)
}

// Subordinates returns every designation strictly below d.
func Subordinates(d Designation) []Designation {
	below := Hierarchy[Rank(d)+1:]
	return append(make([]Designation, 0, len(below)), below...)
}

// CanAssign reports whether creator may name assignee on a new task.
func CanAssign(creator, assignee Designation) bool {
	return Outranks(creator, assignee)
}

// CanInspect reports whether viewer may open target's task lists and dashboard.
func CanInspect(viewer, target store.User) bool {
	if viewer.UID == target.UID {
		return true
	}
	return Outranks(Normalize(viewer.Designation), Normalize(target.Designation))
}

// Decide picks the action control shown to viewer for task while inspecting
// contextOwner's activity. An empty contextOwner falls back to the task creator.
func Decide(viewer store.User, task store.Task, contextOwner store.User) Action {
	if task.IsAssignee(viewer.UID) {
		return ActionSubmit
	}
	if contextOwner.UID == "" {
		contextOwner = store.User{UID: task.CreatedBy, Designation: task.CreatedByDesignation}
	}
	if Rank(Normalize(viewer.Designation)) > Rank(Normalize(contextOwner.Designation)) {
		return ActionNone
	}
	if task.CreatedBy == contextOwner.UID || task.IsAssignee(contextOwner.UID) {
		return ActionViewSubmissions
	}
	return ActionNone
}
