package escalation

import "time"

// Filter narrows notification queries. Zero fields are ignored; OnlyOpen
// restricts to the unresolved active/sent rows that form open batches.
type Filter struct {
	MeterID  string
	Status   Status
	OnlyOpen bool
	From     time.Time
	To       time.Time
}
