// Package clock abstracts time so pipeline stages can be tested with a
// fixed extraction date.
package clock

import "time"

// Clock supplies the current instant and the current civil date.
type Clock interface {
	Now() time.Time
	// Today returns the current date truncated to midnight UTC. Raw offer
	// rows and KPI rows are keyed by this value.
	Today() time.Time
}
