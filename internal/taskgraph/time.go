package taskgraph

import "time"

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now

// timestamp format for CreatedAt/StartedAt/CompletedAt fields.
const timeLayout = time.RFC3339

// nowStamp returns the current time as an RFC3339 string.
func nowStamp() string {
	return timeNow().UTC().Format(timeLayout)
}
