package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StoryConfig is the story.yaml file describing one playable story.
type StoryConfig struct {
	Version int `yaml:"version"`
	Story   struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"story"`
	Graphs struct {
		// Root is resolved relative to the story.yaml directory.
		Root         string   `yaml:"root"`
		EndingPrefix string   `yaml:"ending_prefix"`
		Chapters     []string `yaml:"chapters"`
		// ResolveOutcome picks the final ending when the last chapter completes.
		ResolveOutcome bool `yaml:"resolve_outcome"`
	} `yaml:"graphs"`
	Characters []string                  `yaml:"characters"`
	MiniGames  map[string]MiniGameConfig `yaml:"minigames"`
	Network    struct {
		UIPort int `yaml:"ui_port"`
	} `yaml:"network"`

	dir string
}

// MiniGameConfig describes a minigame the story expects a host to provide.
type MiniGameConfig struct {
	Kind     string `yaml:"kind"`
	Required bool   `yaml:"required"`
}

// UIPort returns the configured UI port, defaulting to 8080 if not set.
func (c *StoryConfig) UIPort() int {
	if c.Network.UIPort == 0 {
		return 8080
	}
	return c.Network.UIPort
}

// GraphRoot returns the graph directory. Relative roots are resolved
// against the directory story.yaml was loaded from.
func (c *StoryConfig) GraphRoot() string {
	root := c.Graphs.Root
	if root == "" {
		root = "."
	}
	if filepath.IsAbs(root) || c.dir == "" {
		return root
	}
	return filepath.Join(c.dir, root)
}

// EndingPrefix returns the graph id prefix for ending graphs.
func (c *StoryConfig) EndingPrefix() string {
	if c.Graphs.EndingPrefix == "" {
		return "NarrativeGraphs/"
	}
	return c.Graphs.EndingPrefix
}

func LoadStoryConfig(path string) (*StoryConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseStoryConfig(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// ParseStoryConfig decodes and checks a story.yaml document.
func ParseStoryConfig(b []byte) (*StoryConfig, error) {
	var cfg StoryConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported story.yaml version: %d", cfg.Version)
	}
	if cfg.Story.ID == "" {
		return nil, fmt.Errorf("story.id is required")
	}
	if len(cfg.Graphs.Chapters) == 0 {
		return nil, fmt.Errorf("graphs.chapters must list at least one graph")
	}

	seen := make(map[string]bool, len(cfg.Characters))
	for _, name := range cfg.Characters {
		if name == "" {
			return nil, fmt.Errorf("characters: empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("characters: duplicate name %q", name)
		}
		seen[name] = true
	}

	return &cfg, nil
}
