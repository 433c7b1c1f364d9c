package filehost

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

type fakeUploader struct {
	mu    sync.Mutex
	keys  []string
	sizes map[string]int
	fail  map[string]bool
}

func (f *fakeUploader) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for prefix := range f.fail {
		if strings.Contains(key, prefix) {
			return "", errors.New("bucket unavailable")
		}
	}
	if contentType == "" {
		return "", errors.New("missing content type")
	}
	f.keys = append(f.keys, key)
	if f.sizes == nil {
		f.sizes = map[string]int{}
	}
	f.sizes[key] = len(data)
	return "https://files.example.test/" + key, nil
}

func (f *fakeUploader) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

func memFile(name string, size int) File {
	data := bytes.Repeat([]byte("x"), size)
	return File{
		Name: name,
		Size: int64(size),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func TestValidate(t *testing.T) {
	svc := New(&fakeUploader{})
	cases := []struct {
		name string
		size int64
		want error
	}{
		{name: "plan.pdf", size: 4 << 20, want: nil},
		{name: "Photo.JPG", size: 1024, want: nil},
		{name: "exact.docx", size: DefaultMaxBytes, want: nil},
		{name: "big.pdf", size: 6 << 20, want: ErrTooLarge},
		{name: "script.exe", size: 10, want: ErrUnsupportedType},
		{name: "noext", size: 10, want: ErrUnsupportedType},
		{name: "empty.pdf", size: 0, want: ErrEmptyFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Validate(tc.name, tc.size)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
			var uploadErr *UploadError
			if !errors.As(err, &uploadErr) || uploadErr.Name != tc.name {
				t.Fatalf("Validate() = %#v, want *UploadError for %s", err, tc.name)
			}
		})
	}
}

func TestValidateMessageNamesLimit(t *testing.T) {
	err := New(&fakeUploader{}).Validate("big.pdf", 6<<20)
	if err == nil || !strings.Contains(err.Error(), "5.0 MiB") {
		t.Fatalf("Validate() = %v, want the 5.0 MiB limit in the message", err)
	}
}

func TestUploadRejectsOversizeBeforeNetwork(t *testing.T) {
	backend := &fakeUploader{}
	opened := false
	big := memFile("big.pdf", 6<<20)
	open := big.Open
	big.Open = func() (io.ReadCloser, error) {
		opened = true
		return open()
	}

	results := New(backend).Upload(context.Background(), []File{big})
	if len(results) != 1 || !errors.Is(results[0].Err, ErrTooLarge) {
		t.Fatalf("Upload() = %+v, want one ErrTooLarge result", results)
	}
	if opened || backend.calls() != 0 {
		t.Fatalf("oversize file reached the backend (opened=%v, calls=%d)", opened, backend.calls())
	}
}

func TestUploadSinglePDF(t *testing.T) {
	backend := &fakeUploader{}
	results := New(backend).Upload(context.Background(), []File{memFile("Lesson Plan.pdf", 4<<20)})

	if len(results) != 1 {
		t.Fatalf("Upload() returned %d results, want 1", len(results))
	}
	got := results[0]
	if got.Err != nil || got.Name != "Lesson Plan.pdf" {
		t.Fatalf("Upload() = %+v, want success", got)
	}
	if !strings.HasPrefix(got.URL, "https://files.example.test/attachments/lesson-plan_") || !strings.HasSuffix(got.URL, ".pdf") {
		t.Fatalf("URL = %q", got.URL)
	}
	if backend.sizes[backend.keys[0]] != 4<<20 {
		t.Fatalf("stored %d bytes, want %d", backend.sizes[backend.keys[0]], 4<<20)
	}
}

func TestUploadPartialFailureKeepsOrder(t *testing.T) {
	backend := &fakeUploader{fail: map[string]bool{"broken": true}}
	files := []File{
		memFile("a.png", 10),
		memFile("broken.pdf", 10),
		memFile("huge.xlsx", 6<<20),
		memFile("b.pptx", 10),
	}

	results := New(backend, WithConcurrency(2)).Upload(context.Background(), files)
	if len(results) != len(files) {
		t.Fatalf("Upload() returned %d results, want %d", len(results), len(files))
	}
	for i, f := range files {
		if results[i].Name != f.Name {
			t.Fatalf("results[%d].Name = %q, want %q", i, results[i].Name, f.Name)
		}
	}
	if results[0].URL == "" || results[3].URL == "" {
		t.Fatalf("healthy files failed: %+v", results)
	}
	if results[1].Err == nil || results[1].URL != "" {
		t.Fatalf("broken.pdf = %+v, want an error", results[1])
	}
	if !errors.Is(results[2].Err, ErrTooLarge) {
		t.Fatalf("huge.xlsx = %+v, want ErrTooLarge", results[2])
	}
	if backend.calls() != 2 {
		t.Fatalf("backend stored %d objects, want 2", backend.calls())
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Lesson Plan":    "lesson-plan",
		"report_card v2": "report-card-v2",
		"***":            "file",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
