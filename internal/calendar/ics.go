// Package calendar converts calendar events to and from iCalendar (RFC 5545).
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
)

const (
	productID = "-//bizpilot//calendar//EN"
	uidDomain = "bizpilot"
)

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, `,`, `\;`, `;`, `\n`, "\n", `\N`, "\n")

// Export renders events as a PUBLISH calendar. stamp is written as DTSTAMP
// on every event.
func Export(name string, events []model.CalendarEvent, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, event := range events {
		vevent := cal.AddEvent(event.ID + "@" + uidDomain)
		vevent.SetDtStampTime(stamp.UTC())
		if !event.CreatedAt.IsZero() {
			vevent.SetCreatedTime(event.CreatedAt.UTC())
		}
		vevent.SetStartAt(event.StartTime.UTC())
		vevent.SetEndAt(event.EndTime.UTC())
		vevent.SetSummary(event.Title)
		if event.Description != "" {
			vevent.SetDescription(event.Description)
		}
		if event.Location != "" {
			vevent.SetLocation(event.Location)
		}
	}
	return cal.Serialize()
}

// Parse reads every VEVENT in r. Events without a start time are skipped and
// counted in skipped.
func Parse(r io.Reader) (inputs []model.CalendarEventInput, skipped int, err error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to parse calendar: %w", common.ErrValidation, err)
	}

	for _, vevent := range cal.Events() {
		start, err := vevent.GetStartAt()
		if err != nil {
			skipped++
			continue
		}

		input := model.CalendarEventInput{
			StartTime:   model.Date{Time: start.UTC()},
			Title:       property(vevent, ics.ComponentPropertySummary),
			Description: property(vevent, ics.ComponentPropertyDescription),
			Location:    property(vevent, ics.ComponentPropertyLocation),
		}
		if input.Title == "" {
			input.Title = "Untitled event"
		}
		if end, err := vevent.GetEndAt(); err == nil && !end.Before(start) {
			input.EndTime = &model.Date{Time: end.UTC()}
		}
		inputs = append(inputs, input)
	}
	return inputs, skipped, nil
}

func property(vevent *ics.VEvent, name ics.ComponentProperty) string {
	prop := vevent.GetProperty(name)
	if prop == nil {
		return ""
	}
	return strings.TrimSpace(textUnescaper.Replace(prop.Value))
}
