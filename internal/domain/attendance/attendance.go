// Package attendance aggregates the attendance table for one event.
package attendance

import "github.com/okian/turnout/internal/domain/model"

// Summary is the read-only view of one event's submissions.
type Summary struct {
	EventID                string                   `json:"event_id"`
	Total                  int                      `json:"total"`
	Companions             int                      `json:"companions"`
	AfterpartyAttending    int                      `json:"afterparty_attending"`
	AfterpartyNotAttending int                      `json:"afterparty_not_attending"`
	Rows                   []model.AttendanceRecord `json:"rows"`
}

// Summarize filters table to eventID and counts it. Companion rows count
// towards every total. An event with no rows yields an empty summary.
func Summarize(table []model.AttendanceRecord, eventID string) Summary {
	s := Summary{EventID: eventID, Rows: []model.AttendanceRecord{}}
	for _, r := range table {
		if r.EventID != eventID {
			continue
		}
		s.Rows = append(s.Rows, r)
		s.Total++
		if r.IsCompanion() {
			s.Companions++
		}
		switch r.Afterparty {
		case model.AfterpartyAttending:
			s.AfterpartyAttending++
		case model.AfterpartyNotAttending:
			s.AfterpartyNotAttending++
		}
	}
	return s
}
