package appointments

import (
	"strings"
	"time"
)

// MatchAppointments filters appointments to those matching the customer's
// name, date, and service. Name matching is flexible: containment in
// either direction, compared both with and without spaces. Service
// matching is substring containment in either direction against the
// event summary. Dates compare by calendar day in loc.
func MatchAppointments(appts []Appointment, firstName, lastName string, date time.Time, service string, loc *time.Location) []Appointment {
	fullName := strings.ToLower(strings.TrimSpace(firstName + " " + lastName))
	fullNameNoSpace := strings.ReplaceAll(fullName, " ", "")
	serviceLower := strings.ToLower(service)

	targetYear, targetMonth, targetDay := date.In(loc).Date()

	var matched []Appointment
	for _, appt := range appts {
		name := strings.ToLower(appt.AttendeeName)
		nameNoSpace := strings.ReplaceAll(name, " ", "")
		summary := strings.ToLower(appt.Summary)

		nameMatch := containsEither(fullName, name) || containsEither(fullNameNoSpace, nameNoSpace)

		y, m, d := appt.Start.In(loc).Date()
		dateMatch := y == targetYear && m == targetMonth && d == targetDay

		serviceMatch := containsEither(serviceLower, summary)

		if nameMatch && dateMatch && serviceMatch {
			matched = append(matched, appt)
		}
	}

	return matched
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
