package abnormality

import (
	"fmt"
	"strings"

	telemetry "dtr-monitor/internal/telemetry/domain"
)

// Signature fingerprints the active fault combination of a reading. Raised
// flags are rendered in lexicographic order as "name:value;", the value
// taken from the rule table field that triggered the flag. Two signatures
// are equal exactly when the same faults are active with the same
// triggering values, which is what alert deduplication keys on.
func Signature(flags Flags, reading telemetry.MeterReading) string {
	var b strings.Builder
	for _, flag := range flags.Active() {
		rule, ok := ruleByFlag[flag]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s:%.3f;", flag, rule.Value(reading))
	}
	return b.String()
}
