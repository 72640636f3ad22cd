package rag

import "strings"

// bookingKeywords trigger the scheduling short-circuit. Matching is a
// case-insensitive substring scan, so "schedule an interview" and
// "When can we meet?" both trip it.
var bookingKeywords = []string{
	"schedule",
	"book",
	"interview",
	"appointment",
	"meeting",
	"available",
	"time",
	"date",
	"calendar",
	"when can",
}

func detectBookingIntent(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range bookingKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
