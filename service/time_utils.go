package service

import (
	"time"
)

// StartOfUTCDay returns midnight UTC of the calendar day containing t
func StartOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextUTCDay returns the next UTC midnight after t, when a new daily claim opens
func NextUTCDay(t time.Time) time.Time {
	return StartOfUTCDay(t).AddDate(0, 0, 1)
}
