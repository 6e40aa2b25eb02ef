package booking

import (
	"context"
	"time"

	"catnanny-backend/internal/dates"
)

// Event is one all-day calendar entry. End is exclusive, the convention
// full-calendar style clients expect.
type Event struct {
	BookingID string    `json:"_id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	AllDay    bool      `json:"allDay"`
	Client    string    `json:"client"`
	Notes     string    `json:"notes"`
	Status    string    `json:"status"`
}

// CalendarEvents expands approved bookings into calendar events, one per
// run of consecutive dates.
func (s *Service) CalendarEvents(ctx context.Context) ([]Event, error) {
	approved, err := s.repo.ListApproved(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(approved))
	for _, b := range approved {
		expanded, err := expandBooking(b, s.location)
		if err != nil {
			// A booking with unparseable dates should not take the whole
			// calendar down; skip it.
			continue
		}
		events = append(events, expanded...)
	}
	return events, nil
}

func expandBooking(b Booking, loc *time.Location) ([]Event, error) {
	if len(b.Dates) == 0 {
		return nil, nil
	}
	ranges, err := dates.Ranges(b.Dates, loc)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(ranges))
	for _, r := range ranges {
		events = append(events, Event{
			BookingID: b.ID,
			Title:     b.Name,
			Start:     r.Start,
			End:       r.End,
			AllDay:    true,
			Client:    b.Name,
			Notes:     b.Notes,
			Status:    b.Status,
		})
	}
	return events, nil
}
