package storage

import "time"

// unixToTime converts a unix-nanosecond timestamp into a time.Time, the
// representation the actor_state table's updated_at column stores.
func unixToTime(unixNano int64) time.Time {
	return time.Unix(0, unixNano).UTC()
}
