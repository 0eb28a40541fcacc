package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bdobrica/opsbot/internal/opsbot/config"
)

const validYAML = `
images:
  fedora: registry.fedoraproject.org/fedora:42
  centos: quay.io/centos/centos:stream9
default_image: fedora
sizes:
  - name: small
    cpus: 1
    memory: 1g
  - name: large
    cpus: 4
    memory: 8g
default_size: small
team_links:
  - title: Runbook
    url: https://wiki.example.com/runbook
  - title: On-call
    url: https://pager.example.com
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := cfg.Images["fedora"]; got != "registry.fedoraproject.org/fedora:42" {
		t.Errorf("Images[fedora] = %q", got)
	}
	if cfg.DefaultImage != "fedora" || cfg.DefaultSize != "small" {
		t.Errorf("defaults = %q / %q", cfg.DefaultImage, cfg.DefaultSize)
	}
	if len(cfg.Sizes) != 2 || cfg.Sizes[1].CPUs != 4 {
		t.Errorf("sizes = %+v", cfg.Sizes)
	}
	if len(cfg.TeamLinks) != 2 {
		t.Errorf("team links = %+v", cfg.TeamLinks)
	}
}

func TestParse_SchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown top-level key", "imagez:\n  fedora: f\n"},
		{"empty image reference", "images:\n  fedora: \"\"\n"},
		{"size without name", "sizes:\n  - cpus: 2\n"},
		{"zero cpus", "sizes:\n  - name: small\n    cpus: 0\n"},
		{"team link without url", "team_links:\n  - title: Runbook\n"},
		{"wrong type", "images: 42\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := config.Parse([]byte(tc.yaml)); err == nil {
				t.Errorf("Parse accepted:\n%s", tc.yaml)
			}
		})
	}
}

func TestParse_CrossFieldChecks(t *testing.T) {
	badImage := "images:\n  fedora: f\ndefault_image: debian\n"
	if _, err := config.Parse([]byte(badImage)); err == nil || !strings.Contains(err.Error(), "default_image") {
		t.Errorf("default_image check: err = %v", err)
	}

	badSize := "sizes:\n  - name: small\ndefault_size: huge\n"
	if _, err := config.Parse([]byte(badSize)); err == nil || !strings.Contains(err.Error(), "default_size") {
		t.Errorf("default_size check: err = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsbot.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultImage != "fedora" {
		t.Errorf("DefaultImage = %q", cfg.DefaultImage)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestImageAndSizeNames(t *testing.T) {
	cfg, err := config.Parse([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}

	images := cfg.ImageNames()
	if len(images) != 2 || images[0] != "centos" || images[1] != "fedora" {
		t.Errorf("ImageNames = %v, want sorted [centos fedora]", images)
	}

	sizes := cfg.SizeNames()
	if len(sizes) != 2 || sizes[0] != "small" || sizes[1] != "large" {
		t.Errorf("SizeNames = %v, want declaration order [small large]", sizes)
	}
}

func TestFormatTeamLinks(t *testing.T) {
	cfg, err := config.Parse([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}

	got := cfg.FormatTeamLinks()
	if !strings.HasPrefix(got, "*Team Links:*") {
		t.Errorf("FormatTeamLinks = %q", got)
	}
	if !strings.Contains(got, "• Runbook: https://wiki.example.com/runbook") {
		t.Errorf("FormatTeamLinks = %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("FormatTeamLinks should not end with a newline")
	}

	empty := &config.Config{}
	if got := empty.FormatTeamLinks(); got != "No team links configured." {
		t.Errorf("empty FormatTeamLinks = %q", got)
	}
}
