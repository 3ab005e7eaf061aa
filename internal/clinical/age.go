package clinical

import "time"

// AgeOnDate returns the whole-year age on the given date, with month/day
// borrow semantics: the year difference is reduced by one when the date's
// month/day precedes the birth month/day. A birthday falling exactly on the
// date counts as already had.
func AgeOnDate(dob, on time.Time) int {
	years := on.Year() - dob.Year()
	if beforeMonthDay(on, dob) {
		years--
	}
	return years
}

// AgeOnNextBirthday returns the age the patient turns on their next birthday
// on or after the given date. A birthday falling exactly on the date is that
// next birthday; one that has already passed this year rolls to next year.
func AgeOnNextBirthday(dob, on time.Time) int {
	if beforeMonthDay(on, dob) || sameMonthDay(on, dob) {
		return on.Year() - dob.Year()
	}
	return on.Year() + 1 - dob.Year()
}

func beforeMonthDay(date, ref time.Time) bool {
	if date.Month() != ref.Month() {
		return date.Month() < ref.Month()
	}
	return date.Day() < ref.Day()
}

func sameMonthDay(a, b time.Time) bool {
	return a.Month() == b.Month() && a.Day() == b.Day()
}
