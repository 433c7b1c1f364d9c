package validate

import (
	"errors"
	"testing"
)

type signUp struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Nick     string `json:"-"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(signUp{Email: "not-an-email"})

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("Struct() error = %v, want *Error", err)
	}
	if _, ok := verr.Fields["email"]; !ok {
		t.Fatalf("Fields = %v, want email", verr.Fields)
	}
	if got := verr.Fields["password"]; got != requiredText {
		t.Fatalf("Fields[password] = %q, want %q", got, requiredText)
	}
}

func TestStructAcceptsValid(t *testing.T) {
	if err := Struct(signUp{Email: "asha@school.test", Password: "secret1"}); err != nil {
		t.Fatalf("Struct() error = %v", err)
	}
}

func TestIntoMergesExtraFields(t *testing.T) {
	verr := &Error{}
	verr.Add("assignees", "select at least one assignee")
	err := Into(verr, signUp{Email: "asha@school.test", Password: "secret1"})
	if err == nil {
		t.Fatal("Into() = nil, want error carrying earlier field")
	}
	if len(verr.Fields) != 1 {
		t.Fatalf("Fields = %v, want only assignees", verr.Fields)
	}
}

func TestErrorMessageListsFields(t *testing.T) {
	verr := &Error{}
	verr.Add("title", "x")
	verr.Add("dueDate", "y")
	verr.Add("title", "ignored")
	if got, want := verr.Error(), "invalid fields: dueDate, title"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if verr.Fields["title"] != "x" {
		t.Fatalf("Add() overwrote first message: %v", verr.Fields)
	}
}
