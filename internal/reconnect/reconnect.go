package reconnect

import "time"

// Schedule defines the backoff durations before successive restarts of a
// crashed worker process.
var Schedule = []time.Duration{
	0, 250 * time.Millisecond, 500 * time.Millisecond,
	time.Second, time.Second, 2 * time.Second,
	5 * time.Second, 5 * time.Second, 10 * time.Second,
}

// Delay returns the backoff duration for the given attempt.
// Attempts beyond the length of the schedule default to 30 seconds.
func Delay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	if attempt < len(Schedule) {
		return Schedule[attempt]
	}
	return 30 * time.Second
}
