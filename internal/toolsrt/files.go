package toolsrt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileReadTool implements file_read(path) -> file contents or a
// structured error string. Grounded on
// original_source/agent/src/agent/tools/file_read.py.
type FileReadTool struct{}

func (FileReadTool) Name() string        { return "file_read" }
func (FileReadTool) Description() string { return "Read the contents of a file at the given path." }

func (FileReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"required": ["path"]
	}`)
}

func (FileReadTool) Execute(ctx context.Context, arguments map[string]any) (string, error) {
	path, _ := arguments["path"].(string)
	if path == "" {
		return "ERROR: path is required", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("ERROR: could not read %s: %v", path, err), nil
	}
	return string(data), nil
}

// FileWriteTool implements file_write(path, content), creating parent
// directories as needed. Grounded on
// original_source/agent/src/agent/tools/file_write.py.
type FileWriteTool struct{}

func (FileWriteTool) Name() string        { return "file_write" }
func (FileWriteTool) Description() string { return "Write content to a file, creating parent directories as needed." }

func (FileWriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"content": {"type": "string"}
		},
		"required": ["path", "content"]
	}`)
}

func (FileWriteTool) Execute(ctx context.Context, arguments map[string]any) (string, error) {
	path, _ := arguments["path"].(string)
	content, _ := arguments["content"].(string)
	if path == "" {
		return "ERROR: path is required", nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("ERROR: could not create directory for %s: %v", path, err), nil
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("ERROR: could not write %s: %v", path, err), nil
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// FileEditTool implements file_edit(path, old_string, new_string): a
// single, uniquely-anchored in-place replacement. Grounded on
// original_source/agent/src/agent/tools/file_edit.py.
type FileEditTool struct{}

func (FileEditTool) Name() string        { return "file_edit" }
func (FileEditTool) Description() string {
	return "Replace a single, uniquely-occurring string in a file with a new string."
}

func (FileEditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"old_string": {"type": "string"},
			"new_string": {"type": "string"}
		},
		"required": ["path", "old_string", "new_string"]
	}`)
}

func (FileEditTool) Execute(ctx context.Context, arguments map[string]any) (string, error) {
	path, _ := arguments["path"].(string)
	oldString, _ := arguments["old_string"].(string)
	newString, _ := arguments["new_string"].(string)

	if path == "" {
		return "ERROR: path is required", nil
	}
	if oldString == newString {
		return "ERROR: old_string and new_string must differ", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("ERROR: could not read %s: %v", path, err), nil
	}
	content := string(data)

	count := strings.Count(content, oldString)
	if count == 0 {
		return "ERROR: old_string not found in file", nil
	}
	if count > 1 {
		return fmt.Sprintf("ERROR: old_string is not unique in file (%d occurrences); provide more context", count), nil
	}

	updated := strings.Replace(content, oldString, newString, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Sprintf("ERROR: could not write %s: %v", path, err), nil
	}
	return fmt.Sprintf("Edited %s", path), nil
}
