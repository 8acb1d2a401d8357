package escalation

import "errors"

// ErrNotFound indicates a missing notification record.
var ErrNotFound = errors.New("escalation: notification not found")
