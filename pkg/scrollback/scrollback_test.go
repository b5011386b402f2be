package scrollback

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, limit int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scrollback.db"), limit)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"one", "two", "three"} {
		if err := s.Append(ctx, base.Add(time.Duration(i)*time.Second), text); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	lines, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(lines) != 2 || lines[0].Text != "two" || lines[1].Text != "three" {
		t.Errorf("lines = %+v, want the newest two oldest-first", lines)
	}
	if !lines[1].When.Equal(base.Add(2 * time.Second)) {
		t.Errorf("timestamp = %v", lines[1].When)
	}
}

func TestSearch(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	now := time.Now()
	for _, text := range []string{"a goblin arrives", "you rest", "A GOBLIN dies"} {
		if err := s.Append(ctx, now, text); err != nil {
			t.Fatal(err)
		}
	}

	lines, err := s.Search(ctx, "goblin", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("found %d lines, want 2 (case-insensitive)", len(lines))
	}
}

func TestRetentionLimit(t *testing.T) {
	s := openTestStore(t, 3)
	ctx := context.Background()
	now := time.Now()
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		if err := s.Append(ctx, now, text); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	lines, _ := s.Recent(ctx, 10)
	if len(lines) != 3 || lines[0].Text != "3" {
		t.Errorf("lines = %+v", lines)
	}
}
