package abnormality

import (
	"sort"

	telemetry "dtr-monitor/internal/telemetry/domain"
)

// Flags maps fault flag names to whether the fault is present in a reading.
type Flags map[string]bool

// Analyze evaluates every rule against a reading. Pure function: the same
// reading always produces the same flag set.
func Analyze(reading telemetry.MeterReading) Flags {
	flags := make(Flags, len(rules))
	for _, rule := range rules {
		flags[rule.Flag] = rule.Detect(reading)
	}
	return flags
}

// Any reports whether at least one fault flag is raised.
func (f Flags) Any() bool {
	for _, raised := range f {
		if raised {
			return true
		}
	}
	return false
}

// Active returns the raised flag names in lexicographic order.
func (f Flags) Active() []string {
	var active []string
	for flag, raised := range f {
		if raised {
			active = append(active, flag)
		}
	}
	sort.Strings(active)
	return active
}
