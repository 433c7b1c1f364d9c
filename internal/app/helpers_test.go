package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/config"
	"github.com/ChelseaChanu/taskSync/internal/filehost"
	"github.com/ChelseaChanu/taskSync/internal/live"
	"github.com/ChelseaChanu/taskSync/internal/store"
)

type urlUploader struct{}

func (urlUploader) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://files.example.test/" + key, nil
}

type testEnv struct {
	t       *testing.T
	svc     *Service
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	docs, err := store.NewSQLiteStore(ctx, db)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	hub := live.NewMemoryHub()
	t.Cleanup(func() {
		_ = hub.Close()
		_ = docs.Close()
	})

	cfg := config.Config{
		JWTSecret:         "test-secret",
		AccessTTL:         time.Hour,
		RefreshTTL:        24 * time.Hour,
		Timezone:          "UTC",
		AllowResubmission: true,
		VerifyWaitTimeout: time.Second,
	}
	svc := New(cfg, store.NewLive(docs, hub, nil), Deps{Files: filehost.New(urlUploader{})})
	return &testEnv{t: t, svc: svc, handler: NewHTTPServer(svc, "*").Handler()}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d body=%s", rr.Code, want, rr.Body.String())
	}
}

type member struct {
	UID          string
	Token        string
	RefreshToken string
}

// register signs up, verifies and signs in a user.
func (e *testEnv) register(first, last, designation string) member {
	e.t.Helper()
	email := strings.ToLower(first) + "@school.test"
	rr := e.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":       email,
		"password":    "secret123",
		"firstName":   first,
		"lastName":    last,
		"designation": designation,
	})
	expectStatus(e.t, rr, http.StatusCreated)
	var signup struct {
		UserID string `json:"userId"`
		Token  string `json:"devVerificationToken"`
	}
	decodeJSON(e.t, rr, &signup)

	expectStatus(e.t, e.do(http.MethodPost, "/api/auth/verify-email", "", map[string]string{"token": signup.Token}), http.StatusOK)

	rr = e.do(http.MethodPost, "/api/auth/signin", "", map[string]string{"email": email, "password": "secret123"})
	expectStatus(e.t, rr, http.StatusOK)
	var signin struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		UserID       string `json:"userId"`
	}
	decodeJSON(e.t, rr, &signin)
	if signin.UserID != signup.UserID {
		e.t.Fatalf("signin userId = %q, want %q", signin.UserID, signup.UserID)
	}
	return member{UID: signin.UserID, Token: signin.AccessToken, RefreshToken: signin.RefreshToken}
}

func (e *testEnv) createTask(creator member, title, due string, assignees ...member) string {
	e.t.Helper()
	uids := make([]string, 0, len(assignees))
	for _, a := range assignees {
		uids = append(uids, a.UID)
	}
	rr := e.do(http.MethodPost, "/api/tasks", creator.Token, taskBody(title, due, uids))
	expectStatus(e.t, rr, http.StatusCreated)
	var task store.Task
	decodeJSON(e.t, rr, &task)
	if task.ID == "" {
		e.t.Fatalf("created task has no id: %s", rr.Body.String())
	}
	return task.ID
}

func taskBody(title, due string, uids []string) map[string]any {
	return map[string]any{
		"title":          title,
		"description":    "Details for " + title,
		"assignDate":     "01/06/2025",
		"dueDate":        due,
		"priority":       "High",
		"assignedToUids": uids,
	}
}
