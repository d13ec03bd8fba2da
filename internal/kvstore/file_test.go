package kvstore

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(t.TempDir(), zap.NewNop())
}

func TestFileStore_SetAndGet(t *testing.T) {
	s := newTestFileStore(t)

	type state struct {
		Count   int  `json:"count"`
		Offline bool `json:"offline"`
	}
	s.Set("sync_state", state{Count: 42, Offline: true})

	var got state
	if !s.Get("sync_state", &got) {
		t.Fatal("Get() = false after Set")
	}
	if got.Count != 42 || !got.Offline {
		t.Errorf("Get() = %+v, want stored value", got)
	}
}

func TestFileStore_GetMissingKey(t *testing.T) {
	s := newTestFileStore(t)
	var out int
	if s.Get("nope", &out) {
		t.Error("Get() = true for missing key, want false")
	}
}

func TestFileStore_CorruptEntryReadsAsAbsent(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	var out map[string]any
	if s.Get("broken", &out) {
		t.Error("Get() = true for corrupt entry, want false")
	}
}

func TestFileStore_HasAndRemove(t *testing.T) {
	s := newTestFileStore(t)
	s.Set("api_request_count", 7)

	if !s.Has("api_request_count") {
		t.Error("Has() = false after Set")
	}
	s.Remove("api_request_count")
	if s.Has("api_request_count") {
		t.Error("Has() = true after Remove")
	}
	// Removing again must be a no-op, not a panic or error log storm.
	s.Remove("api_request_count")
}

func TestFileStore_Clear(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	s.Set("a", 1)
	s.Set("b", 2)
	unrelated := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(unrelated, []byte("x"), 0o644); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}

	s.Clear()

	if s.Has("a") || s.Has("b") {
		t.Error("entries survived Clear")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("Clear removed a file it does not own")
	}
}

func TestFileStore_UnavailableDirDegradesToNoOp(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	parent := t.TempDir()
	if err := os.Chmod(parent, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(parent, 0o755)

	s := NewFileStore(filepath.Join(parent, "data"), zap.NewNop())
	if s.Available() {
		t.Fatal("Available() = true for unwritable directory")
	}

	// All operations must silently no-op.
	s.Set("k", 1)
	var out int
	if s.Get("k", &out) {
		t.Error("Get() = true on unavailable store")
	}
	s.Remove("k")
	s.Clear()
}

func TestFileStore_KeySanitization(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	s.Set("../escape/attempt", "value")

	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry inside the store dir, got %v", entries)
	}
	var got string
	if !s.Get("../escape/attempt", &got) || got != "value" {
		t.Error("sanitized key did not round-trip")
	}
}
