package recurrence

import "time"

// todDuration returns the time-of-day component of t as a Duration since
// midnight. The sub-day ceilings and the Hour/Minute/Second leaves work in
// this space; ceilDay and ceilMonth work on the calendar date.
func todDuration(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// ceilSecond rounds t up to the next second boundary. If t already lies on a
// second boundary and forceCarry is false, t is returned unchanged.
func ceilSecond(t time.Time, forceCarry bool) time.Time {
	rem := time.Duration(t.Nanosecond())
	if !forceCarry && rem == 0 {
		return t
	}
	return t.Add(time.Second - rem)
}

// ceilMinute rounds t up to the next minute boundary.
func ceilMinute(t time.Time, forceCarry bool) time.Time {
	rem := time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	if !forceCarry && rem == 0 {
		return t
	}
	return t.Add(time.Minute - rem)
}

// ceilHour rounds t up to the next hour boundary.
func ceilHour(t time.Time, forceCarry bool) time.Time {
	rem := time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	if !forceCarry && rem == 0 {
		return t
	}
	return t.Add(time.Hour - rem)
}

// ceilDay zeroes the time-of-day component. If t is already at midnight and
// forceCarry is false, t is returned unchanged; otherwise the result is
// midnight of the following day.
func ceilDay(t time.Time, forceCarry bool) time.Time {
	if !forceCarry && todDuration(t) == 0 {
		return t
	}
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, 1)
}

// ceilMonth zeroes the time-of-day and day-of-month components. If t is
// already the first instant of its month and forceCarry is false, t is
// returned unchanged; otherwise the result is the first instant of the
// following month.
func ceilMonth(t time.Time, forceCarry bool) time.Time {
	y, m, d := t.Date()
	if !forceCarry && todDuration(t) == 0 && d == 1 {
		return t
	}
	firstOfMonth := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return firstOfMonth.AddDate(0, 1, 0)
}
