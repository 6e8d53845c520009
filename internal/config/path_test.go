package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDGOverride(t *testing.T) {
	original := os.Getenv("XDG_DATA_HOME")
	t.Cleanup(func() {
		if original != "" {
			os.Setenv("XDG_DATA_HOME", original)
		} else {
			os.Unsetenv("XDG_DATA_HOME")
		}
	})
	os.Setenv("XDG_DATA_HOME", "/custom/data")

	if got := DefaultDataDir(); got != filepath.Join("/custom/data", appDir) {
		t.Errorf("DefaultDataDir() = %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	originalHome := os.Getenv("HOME")
	os.Unsetenv("HOME")
	t.Cleanup(func() {
		if originalHome != "" {
			os.Setenv("HOME", originalHome)
		}
	})

	// UserHomeDir cannot be mocked; with HOME unset the function must
	// still return the local fallback rather than panic.
	if got := DefaultDataDir(); got != "./data" {
		t.Errorf("expected ./data fallback, got %s", got)
	}
}

func TestDefaultDataDirCrossPlatform(t *testing.T) {
	got := DefaultDataDir()
	if got == "" {
		t.Fatal("DefaultDataDir returned empty string")
	}
	if !filepath.IsAbs(got) && !strings.HasPrefix(got, "./") {
		t.Errorf("expected absolute path or ./ prefix, got %s", got)
	}
	if !strings.Contains(got, appDir) && got != "./data" {
		t.Errorf("expected %q in path, got %s", appDir, got)
	}
}

func TestDefaultConfigDirXDGOverride(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	t.Cleanup(func() {
		if original != "" {
			os.Setenv("XDG_CONFIG_HOME", original)
		} else {
			os.Unsetenv("XDG_CONFIG_HOME")
		}
	})
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if got := DefaultConfigDir(); got != filepath.Join("/custom/config", appDir) {
		t.Errorf("DefaultConfigDir() = %s", got)
	}
}

func TestIsDir(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"existing directory", ".", true},
		{"non-existent path", "/non/existent/path/that/does/not/exist", false},
		{"file instead of directory", os.Args[0], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDir(tt.path); got != tt.expected {
				t.Errorf("isDir(%s) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}
