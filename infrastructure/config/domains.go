package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brandpilot/brandpilot/domain/entity"
)

// DomainSpec is one entry of the domains file
type DomainSpec struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	WeeklyBudget float64 `yaml:"weekly_budget"`
}

type domainsFile struct {
	Domains []DomainSpec `yaml:"domains"`
}

// LoadDomains reads the YAML domains file at path
func LoadDomains(path string) ([]DomainSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domains file: %w", err)
	}
	return ParseDomains(data)
}

// ParseDomains decodes and validates a domains document
func ParseDomains(data []byte) ([]DomainSpec, error) {
	var file domainsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse domains file: %w", err)
	}

	seen := make(map[string]bool, len(file.Domains))
	for i, d := range file.Domains {
		if strings.TrimSpace(d.ID) == "" {
			return nil, fmt.Errorf("domains[%d]: id is required", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("domains[%d]: duplicate id %q", i, d.ID)
		}
		if d.WeeklyBudget < 0 {
			return nil, fmt.Errorf("domains[%d]: weekly_budget must not be negative", i)
		}
		seen[d.ID] = true
	}
	return file.Domains, nil
}

// Entity converts the spec into a domain account created at now
func (d DomainSpec) Entity(now time.Time) *entity.Domain {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	return &entity.Domain{
		ID:           d.ID,
		Name:         name,
		WeeklyBudget: d.WeeklyBudget,
		CreatedAt:    now,
	}
}
