package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/filehost"
	"github.com/ChelseaChanu/taskSync/internal/tasks"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	multipartMemory    = 32 << 20
	multipartOverhead  = 1 << 20
	defaultUploadFiles = 10
	// keepAlive spaces the comments that hold idle event streams open.
	keepAlive = 25 * time.Second
)

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Me(sessionFrom(r)))
}

func (s *HTTPServer) handleSubordinates(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.Subordinates(r.Context(), sessionFrom(r).User, r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleUserTasks(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.UserTasks(r.Context(), sessionFrom(r).User, chi.URLParam(r, "uid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Dashboard(r.Context(), sessionFrom(r).User, r.URL.Query().Get("user"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := s.service.ListTasks(r.Context(), sessionFrom(r).User, query.Get("view"), query.Get("user"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTaskStream sends the task list as a server-sent event now and after
// every change, until the client goes away.
func (s *HTTPServer) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	viewer := sessionFrom(r).User
	query := r.URL.Query()
	feed, target, view, err := s.service.WatchTasks(r.Context(), viewer, query.Get("view"), query.Get("user"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer feed.Close()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case list, ok := <-feed.Updates():
			if !ok {
				return
			}
			payload, err := json.Marshal(TaskList{User: target, View: view, Tasks: decorate(viewer, target, list)})
			if err != nil {
				s.log.Error("stream: encode tasks", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: tasks\ndata: %s\n\n", payload); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

func (s *HTTPServer) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	writeJSON(w, http.StatusOK, s.service.SearchTasks(r.Context(), sessionFrom(r).User, query.Get("q"), limit, offset))
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body CreateTaskInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	task, err := s.service.CreateTask(r.Context(), sessionFrom(r).User, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetTask(r.Context(), sessionFrom(r).User, chi.URLParam(r, "id"), r.URL.Query().Get("context"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	task, err := s.service.SetStatus(r.Context(), sessionFrom(r).User, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleRequestExtension(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.RequestExtension(r.Context(), sessionFrom(r).User, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	submissions, err := s.service.ListSubmissions(r.Context(), sessionFrom(r).User, chi.URLParam(r, "id"), r.URL.Query().Get("context"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": submissions})
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body tasks.SubmissionInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	submission, err := s.service.Submit(r.Context(), sessionFrom(r).User, chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, submission)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := s.service.Export(r.Context(), sessionFrom(r).User, chi.URLParam(r, "id"), query.Get("format"), query.Get("context"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// handleUpload accepts a multipart form with one or more "files" parts.
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.service.UploadLimit()
	if r.ContentLength > limit {
		s.fail(w, r, tooLarge(limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, r, tooLarge(limit))
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form data", nil)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "NO_FILES", "attach at least one file", nil)
		return
	}
	files := make([]filehost.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, formFile(fh))
	}

	result, err := s.service.Upload(r.Context(), files)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func formFile(fh *multipart.FileHeader) filehost.File {
	return filehost.File{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
