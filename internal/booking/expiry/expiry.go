// Package expiry computes when an unaccepted booking stops being offered to translators.
package expiry

import "time"

const (
	// ShortNotice bookings expire at their due time
	ShortNotice = 90 * time.Minute
	// SameDay bookings get 90 minutes from creation
	SameDay = 24 * time.Hour
	// FewDays bookings get 16 hours from creation
	FewDays = 72 * time.Hour

	sameDayGrace = 90 * time.Minute
	fewDaysGrace = 16 * time.Hour
	longLead     = 48 * time.Hour
)

// WillExpireAt returns the expiration deadline of a booking due at due and created at createdAt.
//
//	lead <= 90m        -> due
//	hours <= 24        -> createdAt + 90m
//	hours <= 72        -> createdAt + 16h
//	otherwise          -> due - 48h
//
// lead is the absolute distance between due and createdAt and hours is lead
// in whole hours, truncated.
func WillExpireAt(due, createdAt time.Time) time.Time {
	lead := due.Sub(createdAt)
	if lead < 0 {
		lead = -lead
	}
	hours := lead.Truncate(time.Hour)

	switch {
	case lead <= ShortNotice:
		return due
	case hours <= SameDay:
		return createdAt.Add(sameDayGrace)
	case hours <= FewDays:
		return createdAt.Add(fewDaysGrace)
	default:
		return due.Add(-longLead)
	}
}
