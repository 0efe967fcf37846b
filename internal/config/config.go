// Package config loads the YAML configuration for the pcie-monitor core
// (§6 External Interfaces) and translates it into pcie.Options. It plays
// the role of the host framework's configuration-file lexer, which the
// spec places out of scope for the core itself (§1).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pcie-monitor/pkg/pcie"
)

// Match is one pattern block's YAML shape.
type Match struct {
	Name         string `yaml:"name"`
	Regex        string `yaml:"regex"`
	SubmatchIdx  int    `yaml:"submatch_idx"`
	ExcludeRegex string `yaml:"exclude_regex"`
	IsMandatory  bool   `yaml:"is_mandatory"`
}

// Parser is one named ordered pattern list's YAML shape.
type Parser struct {
	Name    string  `yaml:"name"`
	Matches []Match `yaml:"matches"`
}

// Config is the on-disk YAML configuration (§6).
type Config struct {
	Source                  string   `yaml:"source"`
	AccessDir               string   `yaml:"access_dir"`
	ReportMasked            bool     `yaml:"report_masked"`
	PersistentNotifications bool     `yaml:"persistent_notifications"`
	LogFile                 string   `yaml:"log_file"`
	ReadLog                 bool     `yaml:"read_log"`
	FirstFullRead           bool     `yaml:"first_full_read"`
	Patterns                []Parser `yaml:"patterns"`
}

// Load reads and parses path, applying the spec's defaults for any key
// left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := &Config{
		Source:  "sysfs",
		LogFile: "/var/log/syslog",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	for pi, parser := range c.Patterns {
		if parser.Name == "" {
			return fmt.Errorf("pattern block %d: name is required", pi)
		}
		for mi, m := range parser.Matches {
			if m.Regex == "" {
				return fmt.Errorf("parser %q match %d: regex is required", parser.Name, mi)
			}
		}
	}
	return nil
}

// ToOptions translates the parsed config into pcie.Options. host is
// supplied by the caller (host-name discovery is out of scope for the
// core, §1); resolver is optional interface enrichment (§4.A expansion).
func (c *Config) ToOptions(host string, resolver pcie.InterfaceResolver) pcie.Options {
	opts := pcie.Options{
		Source:                  c.Source,
		AccessDir:               c.AccessDir,
		ReportMasked:            c.ReportMasked,
		PersistentNotifications: c.PersistentNotifications,
		ReadLog:                 c.ReadLog,
		LogFile:                 c.LogFile,
		FirstFullRead:           c.FirstFullRead,
		Host:                    host,
		InterfaceResolver:       resolver,
	}

	for _, p := range c.Patterns {
		pc := pcie.ParserConfig{Name: p.Name}
		for _, m := range p.Matches {
			pc.Matches = append(pc.Matches, pcie.PatternConfig{
				Name:         m.Name,
				Regex:        m.Regex,
				SubmatchIdx:  m.SubmatchIdx,
				ExcludeRegex: m.ExcludeRegex,
				IsMandatory:  m.IsMandatory,
			})
		}
		opts.Parsers = append(opts.Parsers, pc)
	}

	return opts
}
