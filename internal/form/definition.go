package form

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed definition.yaml
var defaultDefinition []byte

type Section struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// AttachmentRule constrains what a file-bearing field accepts.
type AttachmentRule struct {
	Section   string   `yaml:"section" json:"section,omitempty"`
	MaxFiles  int      `yaml:"maxFiles" json:"maxFiles"`
	MaxSizeMB int      `yaml:"maxSizeMB" json:"maxSizeMB"`
	Accept    []string `yaml:"accept" json:"accept"`
}

func (r AttachmentRule) MaxBytes() int64 {
	return int64(r.MaxSizeMB) * 1024 * 1024
}

type Definition struct {
	Sections    []Section `yaml:"sections" json:"sections"`
	Attachments struct {
		Defaults AttachmentRule            `yaml:"defaults" json:"defaults"`
		Fields   map[string]AttachmentRule `yaml:"fields" json:"fields"`
	} `yaml:"attachments" json:"attachments"`
}

// DefaultDefinition parses the embedded definition. It panics only if the
// embedded file is broken, which the package tests guard against.
func DefaultDefinition() *Definition {
	def, err := ParseDefinition(defaultDefinition)
	if err != nil {
		panic(fmt.Sprintf("embedded form definition: %v", err))
	}
	return def
}

// LoadDefinition reads a YAML definition from path, or returns the embedded
// one when path is empty.
func LoadDefinition(path string) (*Definition, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDefinition(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form definition: %w", err)
	}
	return ParseDefinition(raw)
}

func ParseDefinition(raw []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse form definition: %w", err)
	}
	if err := def.resolve(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) resolve() error {
	if len(d.Sections) == 0 {
		return errors.New("form definition: no sections")
	}
	seen := make(map[string]struct{}, len(d.Sections))
	for _, section := range d.Sections {
		if strings.TrimSpace(section.ID) == "" {
			return errors.New("form definition: section without id")
		}
		if _, ok := seen[section.ID]; ok {
			return fmt.Errorf("form definition: duplicate section %q", section.ID)
		}
		seen[section.ID] = struct{}{}
	}

	defaults := d.Attachments.Defaults
	if d.Attachments.Fields == nil {
		d.Attachments.Fields = map[string]AttachmentRule{}
	}
	var probe Record
	for name, rule := range d.Attachments.Fields {
		if _, ok := probe.AttachmentField(name); !ok {
			return fmt.Errorf("form definition: %q is not a file field", name)
		}
		if rule.Section != "" {
			if _, ok := seen[rule.Section]; !ok {
				return fmt.Errorf("form definition: field %q references unknown section %q", name, rule.Section)
			}
		}
		if rule.MaxFiles <= 0 {
			rule.MaxFiles = defaults.MaxFiles
		}
		if rule.MaxSizeMB <= 0 {
			rule.MaxSizeMB = defaults.MaxSizeMB
		}
		if len(rule.Accept) == 0 {
			rule.Accept = defaults.Accept
		}
		d.Attachments.Fields[name] = rule
	}
	for _, name := range AttachmentFields {
		if _, ok := d.Attachments.Fields[name]; !ok {
			d.Attachments.Fields[name] = defaults
		}
	}
	return nil
}

func (d *Definition) SectionCount() int { return len(d.Sections) }

func (d *Definition) LastSection() int { return len(d.Sections) - 1 }

func (d *Definition) Rule(field string) (AttachmentRule, bool) {
	rule, ok := d.Attachments.Fields[field]
	return rule, ok
}
