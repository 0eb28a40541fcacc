// Package config loads the opsbot configuration file.
//
// The file (opsbot.yaml) carries the non-secret knobs the bot serves from
// chat: the team link directory, the OS image map, and the instance size
// catalogue. It is validated against an embedded JSON schema at load time;
// a malformed file is a startup-fatal condition.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// TeamLink is one named link in the team directory.
type TeamLink struct {
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// Size describes one instance size offered by the compute provider.
type Size struct {
	Name   string `yaml:"name" json:"name"`
	CPUs   int    `yaml:"cpus" json:"cpus"`
	Memory string `yaml:"memory" json:"memory"`
}

// Config is the parsed opsbot.yaml.
type Config struct {
	// Images maps OS names (fedora, centos, ...) to container images the
	// compute provider boots.
	Images map[string]string `yaml:"images" json:"images"`
	// DefaultImage is the OS name used when create-vm gets no --os_name.
	DefaultImage string `yaml:"default_image" json:"default_image"`
	Sizes        []Size `yaml:"sizes" json:"sizes"`
	// DefaultSize is the size name used when create-vm gets no --size.
	DefaultSize string     `yaml:"default_size" json:"default_size"`
	TeamLinks   []TeamLink `yaml:"team_links" json:"team_links"`
}

// Load reads, parses, and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document and validates it against the embedded schema.
func Parse(data []byte) (*Config, error) {
	// The schema validator works on generic values, so decode twice: once
	// into interface{} for validation, once into the typed struct.
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	schema, err := jsonschema.CompileString("opsbot-config.schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	if err := schema.Validate(normalizeYAML(generic)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// check enforces the cross-field rules the schema cannot express.
func (c *Config) check() error {
	if c.DefaultImage != "" {
		if _, ok := c.Images[c.DefaultImage]; !ok {
			return fmt.Errorf("default_image %q is not in the images map", c.DefaultImage)
		}
	}
	if c.DefaultSize != "" {
		found := false
		for _, s := range c.Sizes {
			if s.Name == c.DefaultSize {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("default_size %q is not in the sizes list", c.DefaultSize)
		}
	}
	return nil
}

// ImageNames returns the OS names of the image map, sorted.
func (c *Config) ImageNames() []string {
	names := make([]string, 0, len(c.Images))
	for name := range c.Images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SizeNames returns the size names in declaration order.
func (c *Config) SizeNames() []string {
	names := make([]string, 0, len(c.Sizes))
	for _, s := range c.Sizes {
		names = append(names, s.Name)
	}
	return names
}

// FormatTeamLinks renders the team link directory as a chat message body.
func (c *Config) FormatTeamLinks() string {
	if len(c.TeamLinks) == 0 {
		return "No team links configured."
	}
	var sb strings.Builder
	sb.WriteString("*Team Links:*\n")
	for _, link := range c.TeamLinks {
		fmt.Fprintf(&sb, "• %s: %s\n", link.Title, link.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// normalizeYAML converts yaml.v3's decoded trees into the shape the
// JSON-schema validator expects: string-keyed maps and float64 numbers, the
// same shapes encoding/json produces. yaml.v3 decodes integers as int and can
// still produce map[interface{}]interface{} for unusual keys.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
