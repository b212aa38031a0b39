// Package schedule converts a self-rated confidence score into the date a
// problem should next be reviewed.
package schedule

import "time"

// intervalDays maps a confidence rating to the number of days until the
// next review.
var intervalDays = map[int]int{
	1: 1,  // review tomorrow
	2: 3,  // review in 3 days
	3: 7,  // review in a week
	4: 14, // review in 2 weeks
	5: 30, // review in a month
}

// DefaultIntervalDays is used for any confidence value outside 1-5.
const DefaultIntervalDays = 7

// IntervalDays returns the review interval for a confidence rating.
func IntervalDays(confidence int) int {
	if days, ok := intervalDays[confidence]; ok {
		return days
	}
	return DefaultIntervalDays
}

// NextReview returns now advanced by the interval for the given confidence.
// Calendar-day arithmetic; the caller's clock decides the timezone.
func NextReview(now time.Time, confidence int) time.Time {
	return now.AddDate(0, 0, IntervalDays(confidence))
}
