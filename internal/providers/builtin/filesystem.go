package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/lilybot/internal/core"
)

const maxReadSize = 64 << 10

const ReadFileSchema = `
{
  "type": "object",
  "properties": {
    "file_path": { "type": "string", "description": "Path of the file to read, relative to the workspace" }
  },
  "required": ["file_path"]
}
`

const WriteFileSchema = `
{
  "type": "object",
  "properties": {
    "file_path": { "type": "string", "description": "Path of the file to write, relative to the workspace" },
    "content": { "type": "string", "description": "Full content to write to the file" }
  },
  "required": ["file_path", "content"]
}
`

var errOutsideWorkspace = errors.New("path is outside the workspace")

// Filesystem gives tools access to files under a single workspace directory.
type Filesystem struct {
	BasePath string
}

func NewFilesystem(basePath string) *Filesystem {
	if basePath == "" {
		basePath, _ = os.Getwd()
	}
	return &Filesystem{BasePath: basePath}
}

func (fs *Filesystem) resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: file_path is empty", core.ErrInvalidArguments)
	}

	base, err := filepath.Abs(fs.BasePath)
	if err != nil {
		return "", err
	}
	path := p
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideWorkspace, p)
	}
	return path, nil
}

func (fs *Filesystem) ReadFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"file_path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidArguments, err)
	}

	path, err := fs.resolvePath(input.Path)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxReadSize))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%s is not a text file", input.Path)
	}
	if len(content) == 0 {
		return fmt.Sprintf("%s is empty.", input.Path), nil
	}
	return string(content), nil
}

func (fs *Filesystem) WriteFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path    string `json:"file_path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidArguments, err)
	}

	path, err := fs.resolvePath(input.Path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(path, []byte(input.Content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(input.Content), input.Path), nil
}
