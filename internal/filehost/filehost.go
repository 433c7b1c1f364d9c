// Package filehost validates and uploads task attachments to object storage.
package filehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/util"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxBytes    = 5 * 1024 * 1024
	defaultConcurrency = 4
	keyPrefix          = "attachments"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// Uploader stores one object and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// File is one attachment waiting to be uploaded.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Result reports the outcome for one file. Exactly one of URL and Err is set.
type Result struct {
	Name string
	URL  string
	Err  error
}

// UploadError wraps the reason a single file was not stored.
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

type Service struct {
	backend     Uploader
	maxBytes    int64
	concurrency int
	now         func() time.Time
	log         *zap.Logger
}

type Option func(*Service)

func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func New(backend Uploader, opts ...Option) *Service {
	s := &Service{
		backend:     backend,
		maxBytes:    DefaultMaxBytes,
		concurrency: defaultConcurrency,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBytes is the largest single file Validate accepts.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Validate checks size and extension without touching the network.
func (s *Service) Validate(name string, size int64) error {
	if size <= 0 {
		return &UploadError{Name: name, Err: ErrEmptyFile}
	}
	if size > s.maxBytes {
		return &UploadError{
			Name: name,
			Err:  fmt.Errorf("%w (max %s)", ErrTooLarge, humanize.IBytes(uint64(s.maxBytes))),
		}
	}
	if _, ok := contentType(name); !ok {
		return &UploadError{Name: name, Err: fmt.Errorf("%w %q", ErrUnsupportedType, filepath.Ext(name))}
	}
	return nil
}

// Upload stores every valid file concurrently. Results keep the input order
// and a failed file never stops the others.
func (s *Service) Upload(ctx context.Context, files []File) []Result {
	results := make([]Result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, f := range files {
		i, f := i, f
		results[i].Name = f.Name
		if err := s.Validate(f.Name, f.Size); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			url, err := s.put(ctx, f)
			if err != nil {
				s.log.Warn("filehost: upload failed", zap.String("name", f.Name), zap.Error(err))
				results[i].Err = &UploadError{Name: f.Name, Err: err}
				return nil
			}
			results[i].URL = url
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) put(ctx context.Context, f File) (string, error) {
	body, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer body.Close()

	ct, _ := contentType(f.Name)
	return s.backend.Put(ctx, s.objectKey(f.Name), body, f.Size, ct)
}

func (s *Service) objectKey(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := slugify(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	return fmt.Sprintf("%s/%s_%s_%s%s", keyPrefix, base, s.now().UTC().Format("20060102_150405"), util.NewID()[:8], ext)
}

func contentType(name string) (string, bool) {
	ct, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ct, ok
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		return "file"
	}
	return s
}
