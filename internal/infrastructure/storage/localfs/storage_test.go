package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "file-1_tender.pdf", strings.NewReader("content")); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	rc, err := s.Open(ctx, "file-1_tender.pdf")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("unexpected content: %q", data)
	}

	if err := s.Delete(ctx, "file-1_tender.pdf"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Open(ctx, "file-1_tender.pdf"); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestDeleteMissingKeyIsIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := s.Delete(context.Background(), "never-existed"); err != nil {
		t.Fatalf("delete of a missing key must not fail: %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../escape", "/etc/passwd", "a/../../b", "."} {
		if err := s.Save(ctx, key, strings.NewReader("x")); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestOverwriteExistingKey(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "k", strings.NewReader("old")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := s.Save(ctx, "k", strings.NewReader("new")); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}

	rc, err := s.Open(ctx, "k")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "new" {
		t.Fatalf("expected overwritten content, got %q", data)
	}
}
