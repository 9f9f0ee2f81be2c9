package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/malaga-quest/internal/domain"
)

func TestLoggerWritesPerGroupNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	score := 500
	l.Log(Event{Group: "Los Boquerones", Channel: "http", Role: domain.RoleUser, Content: "1865"})
	l.Log(Event{
		Group:           "Los Boquerones",
		Channel:         "http",
		Role:            domain.RoleAssistant,
		Content:         "Puntuación total: 500/6000",
		Source:          "fallback",
		Score:           &score,
		PuzzleCompleted: true,
	})
	l.Log(Event{Group: "otro", Channel: "ws", Role: domain.RoleUser, Content: "hola"})

	// Close drains the queue, so the files are complete afterwards.
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, FileName("Los Boquerones")))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var got Event
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Role != domain.RoleAssistant || got.Score == nil || *got.Score != 500 || !got.PuzzleCompleted {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be populated")
	}

	if lines := readLines(t, filepath.Join(dir, FileName("otro"))); len(lines) != 1 {
		t.Fatalf("expected 1 line for second group, got %d", len(lines))
	}
}

func TestLoggerIgnoresEventsAfterClose(t *testing.T) {
	t.Parallel()

	l, err := New(Config{Enabled: true, Dir: t.TempDir(), QueueSize: 1}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_ = l.Close()
	l.Log(Event{Group: "g", Role: domain.RoleUser, Content: "late"})
	if err := l.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestNewDisabledReturnsNoop(t *testing.T) {
	t.Parallel()

	l, err := New(Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := l.(Noop); !ok {
		t.Fatalf("expected Noop logger, got %T", l)
	}
}

func TestFileNameStaysInsideDir(t *testing.T) {
	t.Parallel()

	for _, group := range []string{"..", "a/b", "Grupo Ñ"} {
		name := FileName(group)
		if strings.Contains(name, "/") || filepath.Base(name) != name {
			t.Errorf("FileName(%q) = %q escapes the directory", group, name)
		}
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot count open files: %v", err)
	}
	return len(entries)
}

func TestLoggerDoesNotHoldFilesPerGroup(t *testing.T) {
	const groups = 200

	dir := t.TempDir()
	before := openFDs(t)

	l, err := New(Config{Enabled: true, Dir: dir, QueueSize: groups}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer l.Close()

	for i := 0; i < groups; i++ {
		l.Log(Event{Group: fmt.Sprintf("grupo-%03d", i), Channel: "ws", Role: domain.RoleUser, Content: "hola"})
	}

	// Events are written in order, so the last file appearing means the rest are done.
	last := filepath.Join(dir, FileName(fmt.Sprintf("grupo-%03d", groups-1)))
	deadline := time.Now().Add(5 * time.Second)
	for {
		if data, err := os.ReadFile(last); err == nil && strings.HasSuffix(string(data), "\n") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for transcript writes")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if grown := openFDs(t) - before; grown > 10 {
		t.Fatalf("open files grew by %d after logging %d groups", grown, groups)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != groups {
		t.Fatalf("expected %d transcript files, got %d", groups, len(entries))
	}
}
