package app

import "time"

// RefLayout renders the reference month in the ano_mes_ref column.
const RefLayout = "02/01/2006"

// ReferenceMonth is the first day of the month before now.
func ReferenceMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m-1, 1, 0, 0, 0, 0, now.Location())
}

// AlertWindow is the previous calendar month in UTC, ending one second
// before the current month starts.
func AlertWindow(now time.Time) (from, to time.Time) {
	y, m, _ := now.UTC().Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return start.AddDate(0, -1, 0), start.Add(-time.Second)
}
