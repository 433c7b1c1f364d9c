package rbac

import (
	"testing"

	"github.com/ChelseaChanu/taskSync/internal/store"
)

func TestSubordinates(t *testing.T) {
	cases := []struct {
		name string
		in   Designation
		want []Designation
	}{
		{name: "principal", in: Principal, want: []Designation{VicePrincipal, Headmistress, Teacher}},
		{name: "vice principal", in: VicePrincipal, want: []Designation{Headmistress, Teacher}},
		{name: "headmistress", in: Headmistress, want: []Designation{Teacher}},
		{name: "teacher", in: Teacher, want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Subordinates(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("Subordinates(%q) = %v, want %v", tc.in, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Subordinates(%q) = %v, want %v", tc.in, got, tc.want)
				}
			}
		})
	}
}

func TestNormalizeUnknownRanksLowest(t *testing.T) {
	if got := Normalize("Janitor"); got != Teacher {
		t.Fatalf("Normalize(Janitor) = %q, want %q", got, Teacher)
	}
	if got := Rank("Janitor"); got != Rank(Teacher) {
		t.Fatalf("Rank(Janitor) = %d, want %d", got, Rank(Teacher))
	}
	if got := Normalize("Headmistress"); got != Headmistress {
		t.Fatalf("Normalize(Headmistress) = %q", got)
	}
}

func TestCanAssign(t *testing.T) {
	cases := []struct {
		name     string
		creator  Designation
		assignee Designation
		allow    bool
	}{
		{name: "principal to teacher", creator: Principal, assignee: Teacher, allow: true},
		{name: "principal to vice principal", creator: Principal, assignee: VicePrincipal, allow: true},
		{name: "headmistress to headmistress", creator: Headmistress, assignee: Headmistress, allow: false},
		{name: "teacher to principal", creator: Teacher, assignee: Principal, allow: false},
		{name: "teacher to teacher", creator: Teacher, assignee: Teacher, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAssign(tc.creator, tc.assignee); got != tc.allow {
				t.Fatalf("CanAssign(%q, %q) = %v, want %v", tc.creator, tc.assignee, got, tc.allow)
			}
		})
	}
}

func TestCanInspect(t *testing.T) {
	principal := store.User{UID: "p1", Designation: "Principal"}
	teacher := store.User{UID: "t1", Designation: "Teacher"}
	otherTeacher := store.User{UID: "t2", Designation: "Teacher"}

	if !CanInspect(principal, teacher) {
		t.Fatal("principal should inspect teacher")
	}
	if CanInspect(teacher, principal) {
		t.Fatal("teacher must not inspect principal")
	}
	if CanInspect(teacher, otherTeacher) {
		t.Fatal("peers must not inspect each other")
	}
	if !CanInspect(teacher, teacher) {
		t.Fatal("users always inspect themselves")
	}
}

func TestDecide(t *testing.T) {
	principal := store.User{UID: "p1", Designation: "Principal"}
	vice := store.User{UID: "v1", Designation: "Vice-Principal"}
	teacher := store.User{UID: "t1", Designation: "Teacher"}
	otherTeacher := store.User{UID: "t2", Designation: "Teacher"}

	receivedByTeacher := store.Task{
		ID:                   "task-1",
		CreatedBy:            vice.UID,
		CreatedByDesignation: vice.Designation,
		AssignedToUIDs:       []string{teacher.UID},
	}
	createdByTeacher := store.Task{
		ID:                   "task-2",
		CreatedBy:            teacher.UID,
		CreatedByDesignation: teacher.Designation,
		AssignedToUIDs:       []string{"x"},
	}
	createdByPrincipal := store.Task{
		ID:                   "task-3",
		CreatedBy:            principal.UID,
		CreatedByDesignation: principal.Designation,
		AssignedToUIDs:       []string{vice.UID},
	}

	cases := []struct {
		name    string
		viewer  store.User
		task    store.Task
		context store.User
		want    Action
	}{
		{name: "assignee submits", viewer: teacher, task: receivedByTeacher, context: teacher, want: ActionSubmit},
		{name: "principal inspects teacher's created task", viewer: principal, task: createdByTeacher, context: teacher, want: ActionViewSubmissions},
		{name: "principal inspects teacher's received task", viewer: principal, task: receivedByTeacher, context: teacher, want: ActionViewSubmissions},
		{name: "teacher inspects principal's task", viewer: teacher, task: createdByPrincipal, context: principal, want: ActionNone},
		{name: "unrelated context owner", viewer: principal, task: createdByPrincipal, context: otherTeacher, want: ActionNone},
		{name: "peer context owner", viewer: otherTeacher, task: createdByTeacher, context: teacher, want: ActionViewSubmissions},
		{name: "default context is creator", viewer: principal, task: createdByTeacher, context: store.User{}, want: ActionViewSubmissions},
		{name: "default context above viewer", viewer: teacher, task: createdByPrincipal, context: store.User{}, want: ActionNone},
		{name: "unknown viewer ranks lowest", viewer: store.User{UID: "z", Designation: "Janitor"}, task: createdByPrincipal, context: principal, want: ActionNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.viewer, tc.task, tc.context); got != tc.want {
				t.Fatalf("Decide() = %q, want %q", got, tc.want)
			}
		})
	}
}
