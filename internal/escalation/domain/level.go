package escalation

import (
	"errors"
	"fmt"
	"time"
)

// Contact is one recipient in an escalation tier.
type Contact struct {
	Role  string `yaml:"role" json:"role"`
	Name  string `yaml:"name" json:"name"`
	Phone string `yaml:"phone" json:"phone"`
}

// Level is one tier in the ordered contact chain. Level 0 fires immediately;
// higher levels fire after their delay if the fault is still present.
type Level struct {
	Level        int       `yaml:"level" json:"level"`
	Name         string    `yaml:"name" json:"name"`
	DelayMinutes int       `yaml:"delay_minutes" json:"delay_minutes"`
	Contacts     []Contact `yaml:"contacts" json:"contacts"`
}

// Delay returns the level delay as a duration.
func (l Level) Delay() time.Duration {
	return time.Duration(l.DelayMinutes) * time.Minute
}

// ValidateLevels checks the static escalation table invariants: at least
// one level, levels numbered 0..n-1 in order, level 0 with zero delay,
// non-negative delays, and every contact carrying a phone number.
func ValidateLevels(levels []Level) error {
	if len(levels) == 0 {
		return errors.New("escalation levels: empty table")
	}
	for i, level := range levels {
		if level.Level != i {
			return fmt.Errorf("escalation levels: expected level %d at position %d, got %d", i, i, level.Level)
		}
		if level.DelayMinutes < 0 {
			return fmt.Errorf("escalation levels: level %d has negative delay", level.Level)
		}
		if level.Level == 0 && level.DelayMinutes != 0 {
			return errors.New("escalation levels: level 0 must have zero delay")
		}
		if len(level.Contacts) == 0 {
			return fmt.Errorf("escalation levels: level %d has no contacts", level.Level)
		}
		for _, contact := range level.Contacts {
			if contact.Phone == "" {
				return fmt.Errorf("escalation levels: level %d contact %q has no phone", level.Level, contact.Name)
			}
		}
	}
	return nil
}
