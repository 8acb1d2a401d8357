package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	escalation "dtr-monitor/internal/escalation/domain"
)

// DefaultLevels is the bundled contact chain used when no YAML file is
// configured. Level 0 alerts the site crew immediately; later tiers bring
// in progressively senior engineers if the fault is still present.
func DefaultLevels() []escalation.Level {
	return []escalation.Level{
		{
			Level: 0,
			Name:  "Site Crew",
			Contacts: []escalation.Contact{
				{Role: "Lineman", Name: "Site Lineman", Phone: "+910000000001"},
			},
		},
		{
			Level:        1,
			Name:         "Junior Engineer",
			DelayMinutes: 15,
			Contacts: []escalation.Contact{
				{Role: "JE", Name: "Section JE", Phone: "+910000000002"},
			},
		},
		{
			Level:        2,
			Name:         "Assistant Engineer",
			DelayMinutes: 30,
			Contacts: []escalation.Contact{
				{Role: "AE", Name: "Sub-division AE", Phone: "+910000000003"},
			},
		},
		{
			Level:        3,
			Name:         "Executive Engineer",
			DelayMinutes: 60,
			Contacts: []escalation.Contact{
				{Role: "EE", Name: "Division EE", Phone: "+910000000004"},
			},
		},
	}
}

type levelsFile struct {
	Levels []escalation.Level `yaml:"levels"`
}

// LoadLevels returns the escalation table from a YAML file, or the bundled
// defaults when path is empty. The table is validated either way.
func LoadLevels(path string) ([]escalation.Level, error) {
	levels := DefaultLevels()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("escalation levels: read %s: %w", path, err)
		}
		var file levelsFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("escalation levels: parse %s: %w", path, err)
		}
		levels = file.Levels
	}
	if err := escalation.ValidateLevels(levels); err != nil {
		return nil, err
	}
	return levels, nil
}
