package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vectordb")
	s := NewFS(dir)

	ok, err := s.Exists(ctx, "internships.index")
	if err != nil || ok {
		t.Fatalf("Exists before write = %v, %v", ok, err)
	}
	if _, err := s.Read(ctx, "internships.index"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Read missing = %v, want ErrNotExist", err)
	}

	if err := s.Write(ctx, "internships.index", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "internships.index", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read(ctx, "internships.index")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("Read = %q, want v2", got)
	}
	if ok, _ := s.Exists(ctx, "internships.index"); !ok {
		t.Error("expected artifact to exist")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
	if s.Location("internships.index") != filepath.Join(dir, "internships.index") {
		t.Errorf("Location = %q", s.Location("internships.index"))
	}
}

func TestFSCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewFS(t.TempDir()).Write(ctx, "a", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
