package timetable

import "time"

// WeekKey identifies one ISO-8601 week. Week numbers are Thursday-anchored,
// so the first week of a year is the one containing its first Thursday.
type WeekKey struct {
	Week int `json:"week"`
	Year int `json:"year"`
}

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) WeekKey {
	year, week := t.ISOWeek()
	return WeekKey{Week: week, Year: year}
}

// CurrentWeek returns the ISO week containing now.
func CurrentWeek(now time.Time) WeekKey {
	return WeekOf(now)
}

// WeeksInYear returns the number of ISO weeks in the given year (52 or 53).
// December 28th always falls in the last week of its ISO year.
func WeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// Next returns the following week, rolling over to week 1 of the next year.
func (k WeekKey) Next() WeekKey {
	if k.Week >= WeeksInYear(k.Year) {
		return WeekKey{Week: 1, Year: k.Year + 1}
	}
	return WeekKey{Week: k.Week + 1, Year: k.Year}
}

// Previous returns the preceding week, rolling back to the last week of the
// previous year.
func (k WeekKey) Previous() WeekKey {
	if k.Week <= 1 {
		return WeekKey{Week: WeeksInYear(k.Year - 1), Year: k.Year - 1}
	}
	return WeekKey{Week: k.Week - 1, Year: k.Year}
}

// Matches reports whether the key equals the given week/year pair.
func (k WeekKey) Matches(week, year int) bool {
	return k.Week == week && k.Year == year
}

// IsZero reports whether the key is unset.
func (k WeekKey) IsZero() bool {
	return k.Week == 0 && k.Year == 0
}
