// Package appointments retrieves and matches calendar-based appointments
// across multiple tenant calendars, each with its own service-account
// credential. The classification core never touches this package; it is
// a thin adapter over the Google Calendar API.
package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Appointment is one attendee slot on a calendar event.
type Appointment struct {
	EventID       string    `json:"event_id"`
	CalendarID    string    `json:"calendar_id"`
	Summary       string    `json:"event_summary"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
	AttendeeName  string    `json:"attendee_name"`
	Start         time.Time `json:"start"`
}

// Directory looks up appointments across a set of calendars. Credentials
// are keyed by calendar id; calendars without a credential are skipped,
// and per-calendar API failures are logged, never fatal.
type Directory struct {
	calendarIDs []string
	creds       map[string]json.RawMessage
	loc         *time.Location
	logger      *slog.Logger

	// newService is swappable for tests.
	newService func(ctx context.Context, credJSON []byte) (*calendar.Service, error)
}

// New builds a directory from a JSON credential map (calendar id to
// service-account key) and a list of calendar ids. An empty credentials
// string yields a directory where every calendar is skipped.
func New(credentialsJSON string, calendarIDs []string, timezone string, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	creds := make(map[string]json.RawMessage)
	if credentialsJSON != "" {
		if err := json.Unmarshal([]byte(credentialsJSON), &creds); err != nil {
			return nil, fmt.Errorf("failed to parse calendar credentials: %w", err)
		}
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", timezone, err)
	}

	return &Directory{
		calendarIDs: calendarIDs,
		creds:       creds,
		loc:         loc,
		logger:      logger,
		newService:  newCalendarService,
	}, nil
}

func newCalendarService(ctx context.Context, credJSON []byte) (*calendar.Service, error) {
	cfg, err := google.JWTConfigFromJSON(credJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service-account key: %w", err)
	}
	return calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
}

// calendarIDsFile is the shape of the calendars.json config document.
type calendarIDsFile struct {
	Calendars []struct {
		ID string `json:"id"`
	} `json:"calendars"`
}

// LoadCalendarIDs reads the calendar id list from a JSON file. A missing
// file is not an error; it yields an empty list.
func LoadCalendarIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read calendar config %s: %w", path, err)
	}

	var doc calendarIDsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse calendar config %s: %w", path, err)
	}

	ids := make([]string, 0, len(doc.Calendars))
	for _, cal := range doc.Calendars {
		if cal.ID != "" {
			ids = append(ids, cal.ID)
		}
	}
	return ids, nil
}

// ListByDate returns every appointment on the target date across all
// configured calendars, sorted by start time. Events without attendees
// are included with a placeholder attendee for admin viewing.
func (d *Directory) ListByDate(ctx context.Context, targetDate time.Time) ([]Appointment, error) {
	dayStart := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, d.loc)
	appts := d.collect(ctx, dayStart, dayStart.AddDate(0, 0, 1), true)

	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].Start.Before(appts[j].Start)
	})
	return appts, nil
}

// Match returns appointments within the next 90 days whose attendee name,
// date, and event summary match the given customer details.
func (d *Directory) Match(ctx context.Context, firstName, lastName string, date time.Time, service string) ([]Appointment, error) {
	now := time.Now().In(d.loc)
	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc)
	appts := d.collect(ctx, windowStart, windowStart.AddDate(0, 0, 90), false)

	return MatchAppointments(appts, firstName, lastName, date, service, d.loc), nil
}

// collect queries every configured calendar for events in [timeMin,
// timeMax), fanning each event out to one appointment per attendee.
func (d *Directory) collect(ctx context.Context, timeMin, timeMax time.Time, includeUnattended bool) []Appointment {
	var appts []Appointment

	for _, calendarID := range d.calendarIDs {
		credJSON, ok := d.creds[calendarID]
		if !ok {
			d.logger.Warn("no credentials for calendar, skipping", slog.String("calendar_id", calendarID))
			continue
		}

		svc, err := d.newService(ctx, credJSON)
		if err != nil {
			d.logger.Warn("failed to create calendar service",
				slog.String("calendar_id", calendarID),
				slog.String("error", err.Error()),
			)
			continue
		}

		events, err := svc.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if err != nil {
			d.logger.Warn("failed to poll calendar",
				slog.String("calendar_id", calendarID),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, event := range events.Items {
			start, err := d.parseEventStart(event)
			if err != nil {
				d.logger.Warn("skipping event with unparseable start",
					slog.String("calendar_id", calendarID),
					slog.String("event_id", event.Id),
				)
				continue
			}

			if len(event.Attendees) == 0 {
				if includeUnattended {
					appts = append(appts, Appointment{
						EventID:      event.Id,
						CalendarID:   calendarID,
						Summary:      event.Summary,
						AttendeeName: "No attendee",
						Start:        start,
					})
				}
				continue
			}

			for _, attendee := range event.Attendees {
				name := attendee.DisplayName
				if name == "" {
					name = attendee.Email
				}
				appts = append(appts, Appointment{
					EventID:       event.Id,
					CalendarID:    calendarID,
					Summary:       event.Summary,
					AttendeeEmail: attendee.Email,
					AttendeeName:  name,
					Start:         start,
				})
			}
		}
	}

	return appts
}

func (d *Directory) parseEventStart(event *calendar.Event) (time.Time, error) {
	if event.Start == nil {
		return time.Time{}, fmt.Errorf("event has no start")
	}
	if event.Start.DateTime != "" {
		return time.Parse(time.RFC3339, event.Start.DateTime)
	}
	return time.ParseInLocation("2006-01-02", event.Start.Date, d.loc)
}
