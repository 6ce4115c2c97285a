package artifact

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeUploader struct {
	uploaded []string
	info     *BackupInfo
	err      error
}

func (u *fakeUploader) UploadFile(_ context.Context, localPath string) (*BackupInfo, error) {
	u.uploaded = append(u.uploaded, localPath)
	return u.info, u.err
}

func TestSaveBytes_WritesUnderBaseDir(t *testing.T) {
	base := t.TempDir()
	s := New(base, nil)

	result, err := s.SaveBytes(context.Background(), "reports/out.txt", "fallback.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := filepath.Join(base, "reports", "out.txt")
	if result.Path != want {
		t.Errorf("unexpected path %q, want %q", result.Path, want)
	}
	data, err := os.ReadFile(result.Path)
	if err != nil || string(data) != "hello" {
		t.Errorf("content mismatch: %q, %v", data, err)
	}
	if result.Bytes != 5 || result.Backup != nil {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSaveBytes_EscapingPathFallsBack(t *testing.T) {
	base := t.TempDir()
	s := New(base, nil)

	tests := []struct {
		name      string
		requested string
	}{
		{name: "parent escape", requested: "../outside.txt"},
		{name: "blank", requested: "   "},
		{name: "dot", requested: "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.SaveBytes(context.Background(), tt.requested, "safe name!.txt", []byte("x"))
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if !strings.HasPrefix(result.Path, base) {
				t.Errorf("artifact escaped base dir: %q", result.Path)
			}
			if strings.Contains(result.Path, "..") {
				t.Errorf("path retains traversal: %q", result.Path)
			}
		})
	}
}

func TestSaveBytes_BackupRecorded(t *testing.T) {
	base := t.TempDir()
	uploader := &fakeUploader{info: &BackupInfo{Provider: "s3", Bucket: "b", Key: "k"}}
	s := New(base, uploader)

	result, err := s.SaveBytes(context.Background(), "a.txt", "a.txt", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(uploader.uploaded) != 1 {
		t.Fatalf("uploader not called: %v", uploader.uploaded)
	}
	if result.Backup == nil || result.Backup.Bucket != "b" {
		t.Errorf("backup info missing: %+v", result.Backup)
	}
}

func TestSaveBytes_BackupFailureIsNonFatal(t *testing.T) {
	base := t.TempDir()
	uploader := &fakeUploader{err: os.ErrPermission}
	s := New(base, uploader)

	result, err := s.SaveBytes(context.Background(), "a.txt", "a.txt", []byte("x"))
	if err != nil {
		t.Fatalf("backup failure must not fail the save: %v", err)
	}
	if result.Backup == nil || result.Backup.Error == "" {
		t.Errorf("backup error not surfaced: %+v", result.Backup)
	}
}

func TestSaveRunRecord(t *testing.T) {
	base := t.TempDir()
	s := New(base, nil)

	record := map[string]any{"output": "done", "iterations": 2}
	result, err := s.SaveRunRecord(context.Background(), "run-123", record)
	if err != nil {
		t.Fatalf("save run record: %v", err)
	}
	if !strings.Contains(result.Path, filepath.Join("runs", "run-123")) {
		t.Errorf("record not under runs/<id>: %q", result.Path)
	}
	data, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if decoded["output"] != "done" {
		t.Errorf("unexpected record: %v", decoded)
	}

	if _, err := s.SaveRunRecord(context.Background(), "  ", record); err == nil {
		t.Error("blank run id must fail")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "artifact.txt"},
		{in: "my report.txt", want: "my-report.txt"},
		{in: "../../etc/passwd", want: "etc-passwd"},
		{in: "---", want: "artifact.txt"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
