package config

import (
	"os"
	"path/filepath"
)

// GetRuntimePath is usable before any config is parsed, e.g. to locate .env.
func GetRuntimePath() string {
	return resolveRuntimePath(os.Getenv("LILY_RUNTIME_PATH"))
}

// Relative paths are anchored in the user's home directory.
func resolveRuntimePath(path string) string {
	if path == "" {
		path = ".lily"
	}
	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}

func GetEnvPath() string {
	return filepath.Join(GetRuntimePath(), ".env")
}
