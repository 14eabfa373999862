package fileutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how WriteFile encodes its value.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml", "":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// FileExists checks if a file exists at the given path
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// WriteFileWithOverwrite writes data to a file, respecting the overwrite flag.
// Returns true if the file was written, false if it was skipped.
func WriteFileWithOverwrite(filePath string, data []byte, perm os.FileMode, overwrite bool) (bool, error) {
	if FileExists(filePath) && !overwrite {
		slog.Info("File already exists, skipping", "filename", filePath)
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, perm); err != nil {
		return false, fmt.Errorf("failed to write file: %w", err)
	}
	return true, nil
}

// Marshal encodes v in the given format.
func Marshal(v any, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML, "":
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// WriteJSONFile writes data as indented JSON, respecting the overwrite flag.
func WriteJSONFile(data any, filePath string, overwrite bool) (bool, error) {
	return WriteFile(data, filePath, FormatJSON, overwrite)
}

// WriteYAMLFile writes data as YAML, respecting the overwrite flag.
func WriteYAMLFile(data any, filePath string, overwrite bool) (bool, error) {
	return WriteFile(data, filePath, FormatYAML, overwrite)
}

// WriteFile encodes data in format and writes it, respecting the overwrite flag.
func WriteFile(data any, filePath string, format Format, overwrite bool) (bool, error) {
	if FileExists(filePath) && !overwrite {
		slog.Info("Output file already exists, skipping", "filename", filePath, "overwrite", overwrite)
		return false, nil
	}

	encoded, err := Marshal(data, format)
	if err != nil {
		return false, err
	}

	slog.Info("Writing output file", "filename", filePath, "format", format)
	return WriteFileWithOverwrite(filePath, encoded, 0644, true)
}
