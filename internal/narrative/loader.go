package narrative

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a graph document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported graph file extension: %s", path)
	}
}

// ParseGraph decodes and validates a graph document.
// defaultID is used when the document does not name itself.
func ParseGraph(data []byte, format Format, defaultID string) (*Graph, error) {
	g, err := DecodeGraph(data, format)
	if err != nil {
		return nil, err
	}
	if g.ID == "" {
		g.ID = defaultID
	}

	if result := g.Validate(); !result.Valid {
		return nil, fmt.Errorf("invalid graph %s: %s", g.ID, strings.Join(result.Errors, "; "))
	}

	return g, nil
}

// DecodeGraph decodes a graph document and checks its version without
// validating its nodes.
func DecodeGraph(data []byte, format Format) (*Graph, error) {
	var g Graph
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to parse graph YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported graph format: %s", format)
	}

	if g.Version != 1 {
		return nil, fmt.Errorf("unsupported graph version: %d", g.Version)
	}
	return &g, nil
}

// LoadGraph loads a graph from a YAML or JSON file.
func LoadGraph(path string) (*Graph, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseGraph(data, format, id)
}
