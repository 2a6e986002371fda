package toolsrt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	res := r.Execute(context.Background(), "nope", nil)
	if !res.Unknown {
		t.Fatalf("expected unknown tool result")
	}
	if res.Content != "Unknown tool: nope" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}

func TestRegistryExecutesFileTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "note.txt")

	r := NewRegistry()
	must(t, r.Register(FileWriteTool{}))
	must(t, r.Register(FileReadTool{}))
	must(t, r.Register(FileEditTool{}))

	writeRes := r.Execute(context.Background(), "file_write", map[string]any{
		"path": path, "content": "hello world",
	})
	if writeRes.Unknown {
		t.Fatalf("unexpected unknown tool")
	}

	readRes := r.Execute(context.Background(), "file_read", map[string]any{"path": path})
	if readRes.Content != "hello world" {
		t.Fatalf("expected round-tripped content, got %q", readRes.Content)
	}

	editRes := r.Execute(context.Background(), "file_edit", map[string]any{
		"path": path, "old_string": "world", "new_string": "there",
	})
	if editRes.Content == "" {
		t.Fatalf("expected edit confirmation")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello there" {
		t.Fatalf("expected edited content, got %q", data)
	}
}

func TestFileEditRejectsNonUniqueMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.txt")
	must(t, os.WriteFile(path, []byte("foo foo"), 0o644))

	tool := FileEditTool{}
	res, err := tool.Execute(context.Background(), map[string]any{
		"path": path, "old_string": "foo", "new_string": "bar",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == "" || res[:6] != "ERROR:" {
		t.Fatalf("expected error result for non-unique match, got %q", res)
	}
}

func TestFileEditRejectsIdenticalStrings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "same.txt")
	must(t, os.WriteFile(path, []byte("foo"), 0o644))

	tool := FileEditTool{}
	res, _ := tool.Execute(context.Background(), map[string]any{
		"path": path, "old_string": "foo", "new_string": "foo",
	})
	if res[:6] != "ERROR:" {
		t.Fatalf("expected error for identical old/new strings, got %q", res)
	}
}

type fakeRuntime struct {
	out string
	err error
}

func (f fakeRuntime) Run(ctx context.Context, cmd, stdin string, timeout time.Duration) (string, error) {
	return f.out, f.err
}

func TestBashToolReturnsRuntimeOutput(t *testing.T) {
	tool := NewBashTool(fakeRuntime{out: "hi\n"})
	out, err := tool.Execute(context.Background(), map[string]any{"command": "echo hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hi\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestBashToolTimeout(t *testing.T) {
	tool := NewBashTool(fakeRuntime{err: ErrTimeout})
	out, err := tool.Execute(context.Background(), map[string]any{"command": "sleep 100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[:6] != "ERROR:" {
		t.Fatalf("expected timeout error string, got %q", out)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
