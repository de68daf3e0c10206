package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultWatchFile is the default watch file name.
const DefaultWatchFile = ".sitewatch"

// ErrWatchFileNotFound is returned when the watch file does not exist.
var ErrWatchFileNotFound = errors.New("watch file not found")

// LoadWatchFile loads domain configurations from a YAML watch file.
// If the file does not exist, it returns ErrWatchFileNotFound; callers
// decide whether that is fatal based on whether the path was explicit.
func LoadWatchFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrWatchFileNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	if f.Domains == nil {
		f.Domains = make(map[string]DomainConfig)
	}

	return &f, nil
}

// FindWatchFile searches for the watch file in the following order:
// 1. If watchPath is specified, use it directly
// 2. Look for .sitewatch in the current directory
// 3. Look for .sitewatch in the user's home directory
//
// Returns the path if found, or empty string if not found.
func FindWatchFile(watchPath string) string {
	if watchPath != "" {
		if _, err := os.Stat(watchPath); err == nil {
			return watchPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdFile := filepath.Join(cwd, DefaultWatchFile)
		if _, err := os.Stat(cwdFile); err == nil {
			return cwdFile
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeFile := filepath.Join(home, DefaultWatchFile)
		if _, err := os.Stat(homeFile); err == nil {
			return homeFile
		}
	}

	return ""
}
