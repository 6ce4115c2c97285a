// Package artifact persists run outputs (transcripts, reports, generated
// files) under a local directory, with an optional S3 backup.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultBaseDir is used when ONEAGENT_ARTIFACT_DIR is not set.
const DefaultBaseDir = "./.oneagent/artifacts"

// BackupInfo records where a saved artifact was copied off-host.
type BackupInfo struct {
	Provider string `json:"provider,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
	Key      string `json:"key,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SaveResult describes one persisted artifact.
type SaveResult struct {
	Path   string      `json:"path"`
	Bytes  int         `json:"bytes"`
	Backup *BackupInfo `json:"backup,omitempty"`
}

// Uploader copies a saved file to a backup location.
type Uploader interface {
	UploadFile(ctx context.Context, localPath string) (*BackupInfo, error)
}

// Store saves artifacts under a base directory.
type Store struct {
	baseDir  string
	uploader Uploader
}

var (
	defaultStore *Store
	defaultOnce  sync.Once
)

// Default returns the process-wide store, built from the environment on
// first use.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = NewFromEnv()
	})
	return defaultStore
}

// New builds a store over baseDir. The uploader may be nil.
func New(baseDir string, uploader Uploader) *Store {
	return &Store{baseDir: baseDir, uploader: uploader}
}

// NewFromEnv reads ONEAGENT_ARTIFACT_DIR and the S3 backup settings.
func NewFromEnv() *Store {
	baseDir := strings.TrimSpace(os.Getenv("ONEAGENT_ARTIFACT_DIR"))
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	s := &Store{baseDir: baseDir}
	if uploader, err := newS3UploaderFromEnv(baseDir); err == nil {
		s.uploader = uploader
	}
	return s
}

// BaseDir returns the resolved artifact directory.
func (s *Store) BaseDir() string {
	if s == nil || strings.TrimSpace(s.baseDir) == "" {
		return DefaultBaseDir
	}
	return s.baseDir
}

// SaveBytes writes content under the base directory. A blank or escaping
// requestedPath falls back to the sanitized default name.
func (s *Store) SaveBytes(ctx context.Context, requestedPath, defaultName string, content []byte) (SaveResult, error) {
	path := s.resolvePath(requestedPath, defaultName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return SaveResult{}, fmt.Errorf("write artifact: %w", err)
	}
	result := SaveResult{Path: path, Bytes: len(content)}
	if s != nil && s.uploader != nil {
		backup, err := s.uploader.UploadFile(ctx, path)
		if err != nil {
			result.Backup = &BackupInfo{Provider: "s3", Error: err.Error()}
		} else {
			result.Backup = backup
		}
	}
	return result, nil
}

// SaveJSON marshals v with indentation and saves it.
func (s *Store) SaveJSON(ctx context.Context, requestedPath, defaultName string, v any) (SaveResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return SaveResult{}, fmt.Errorf("encode artifact: %w", err)
	}
	return s.SaveBytes(ctx, requestedPath, defaultName, data)
}

// SaveRunRecord persists a run record under runs/<runID>/, named by the
// completion time.
func (s *Store) SaveRunRecord(ctx context.Context, runID string, record any) (SaveResult, error) {
	if strings.TrimSpace(runID) == "" {
		return SaveResult{}, fmt.Errorf("run id is required")
	}
	name := time.Now().UTC().Format("20060102T150405Z") + ".json"
	rel := filepath.Join("runs", sanitizeName(runID), name)
	return s.SaveJSON(ctx, rel, name, record)
}

func (s *Store) resolvePath(requestedPath, defaultName string) string {
	base := s.BaseDir()
	requested := strings.TrimSpace(requestedPath)
	if requested == "" {
		return filepath.Join(base, sanitizeName(defaultName))
	}
	if filepath.IsAbs(requested) {
		return requested
	}
	clean := filepath.Clean(strings.TrimPrefix(requested, "./"))
	if clean == "." || clean == "" || strings.HasPrefix(clean, "..") {
		return filepath.Join(base, sanitizeName(defaultName))
	}
	return filepath.Join(base, clean)
}

var nameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeName(name string) string {
	v := strings.TrimSpace(name)
	if v == "" {
		return "artifact.txt"
	}
	v = strings.ReplaceAll(v, " ", "-")
	v = nameSanitizer.ReplaceAllString(v, "-")
	v = strings.Trim(v, "-._")
	if v == "" {
		return "artifact.txt"
	}
	if len(v) > 120 {
		v = v[:120]
	}
	return v
}
