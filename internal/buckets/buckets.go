// Package buckets maps exact minute counts to the approximate duration
// labels used across rollups and exports.
package buckets

// Label returns the bucket label for a minute count, or nil when the
// duration is unknown (in-progress blocks). Values at or below zero fall
// into the smallest bucket.
func Label(minutes *int) *string {
	if minutes == nil {
		return nil
	}
	var label string
	switch m := *minutes; {
	case m <= 15:
		label = "~15 mins"
	case m <= 30:
		label = "~30 mins"
	case m <= 60:
		label = "~1 hour"
	case m <= 120:
		label = "~2 hours"
	case m <= 180:
		label = "~½ day"
	case m <= 360:
		label = "~1 day"
	default:
		label = "> 1 day"
	}
	return &label
}

// TotalLabel is Label for aggregate totals, which are never unknown. A
// zero-activity total still renders the smallest bucket.
func TotalLabel(minutes int) string {
	return *Label(&minutes)
}

// RecoveryTotalLabel renders aggregate recovery time, which reports an
// explicit "~0 mins" instead of the smallest bucket when nothing happened.
func RecoveryTotalLabel(minutes int) string {
	if minutes == 0 {
		return "~0 mins"
	}
	return TotalLabel(minutes)
}
