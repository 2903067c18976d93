package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSPut(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, "/avatars/")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	url, err := s.Put(context.Background(), "avatar-1.png", strings.NewReader("png bytes"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/avatars/avatar-1.png" {
		t.Errorf("url = %q", url)
	}

	b, err := os.ReadFile(filepath.Join(dir, "avatar-1.png"))
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	if string(b) != "png bytes" {
		t.Errorf("content = %q", b)
	}

	// No leftover temp files after a successful publish.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestFSPutOverwrites(t *testing.T) {
	s, err := NewFS(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	if _, err := s.Put(context.Background(), "k.png", strings.NewReader("old"), ""); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := s.Put(context.Background(), "k.png", strings.NewReader("new"), ""); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(s.Dir(), "k.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "new" {
		t.Errorf("content = %q, want new", b)
	}
}

func TestFSPutRejectsBadKeys(t *testing.T) {
	s, err := NewFS(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	for _, key := range []string{"", "a/b.png", "../escape.png"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), ""); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}

func TestNewFSRequiresDir(t *testing.T) {
	if _, err := NewFS("", "/avatars"); err == nil {
		t.Error("empty directory accepted")
	}
}

func TestMemoryPutGet(t *testing.T) {
	s := NewMemory()

	url, err := s.Put(context.Background(), "k", strings.NewReader("data"), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "memory://k" {
		t.Errorf("url = %q", url)
	}

	b, ok := s.Get("k")
	if !ok || string(b) != "data" {
		t.Errorf("Get = %q, %v", b, ok)
	}

	// Get hands out a copy.
	b[0] = 'X'
	b2, _ := s.Get("k")
	if string(b2) != "data" {
		t.Errorf("stored blob mutated: %q", b2)
	}

	if _, ok := s.Get("missing"); ok {
		t.Error("Get returned a blob for a missing key")
	}
}

func TestNewSelectsDriver(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("New(memory): %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("driver = %T, want *Memory", s)
	}

	s, err = New(ctx, Config{Driver: "fs", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New(fs): %v", err)
	}
	if _, ok := s.(*FS); !ok {
		t.Errorf("driver = %T, want *FS", s)
	}

	// Empty driver defaults to fs.
	s, err = New(ctx, Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New(default): %v", err)
	}
	if _, ok := s.(*FS); !ok {
		t.Errorf("default driver = %T, want *FS", s)
	}

	if _, err := New(ctx, Config{Driver: "ftp"}); err == nil {
		t.Error("unknown driver accepted")
	}
}
