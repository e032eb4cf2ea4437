package extract

import "time"

// time1 returns 2024-01-01 10:00:<sec> UTC.
func time1(sec int) time.Time {
	return time.Date(2024, 1, 1, 10, 0, sec, 0, time.UTC)
}
