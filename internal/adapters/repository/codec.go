package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/turnout/internal/domain/model"
)

// Canonical column names written on every sheet.
const (
	colDate         = "date"
	colOpponent     = "opponent"
	colStartTime    = "start_time"
	colLocation     = "location"
	colVoteDeadline = "vote_deadline"

	colEventID     = "event_id"
	colSubmittedAt = "submitted_at"
	colName        = "name"
	colPhone       = "phone"
	colAttending   = "attending"
	colAfterparty  = "afterparty"
	colCompanion   = "companion"
	colBatchID     = "batch_id"
)

// companionTimestamp is written in the submitted_at cell of companion rows.
const companionTimestamp = "-"

var (
	eventHeader      = Row{colDate, colOpponent, colStartTime, colLocation, colVoteDeadline}
	attendanceHeader = Row{colEventID, colSubmittedAt, colName, colPhone, colAttending, colAfterparty, colCompanion, colBatchID}
	adminHeader      = Row{colName, colPhone}
)

// headerAliases maps alternative header spellings found in hand-maintained
// sheets to canonical names.
var headerAliases = map[string]string{
	"경기날짜":         colDate,
	"상대팀":          colOpponent,
	"경기시간":         colStartTime,
	"장소":           colLocation,
	"투표마감":         colVoteDeadline,
	"이름":           colName,
	"연락처":          colPhone,
	"voter_name":   colName,
	"voter_phone":  colPhone,
	"is_companion": colCompanion,
}

// columns maps canonical column names to cell indexes.
type columns map[string]int

func parseHeader(r Row) columns {
	c := make(columns, len(r))
	for i, cell := range r {
		name := strings.ToLower(strings.TrimSpace(cell))
		if alias, ok := headerAliases[strings.TrimSpace(cell)]; ok {
			name = alias
		}
		if _, dup := c[name]; !dup {
			c[name] = i
		}
	}
	return c
}

func (c columns) require(sheet Sheet, names ...string) error {
	for _, n := range names {
		if _, ok := c[n]; !ok {
			return fmt.Errorf("%w: %s has no %q column", ErrMalformedSheet, sheet, n)
		}
	}
	return nil
}

func (c columns) get(r Row, name string) string {
	i, ok := c[name]
	if !ok || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

func blank(r Row) bool {
	for _, cell := range r {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// decodeEvents returns the event rows of a sheet, normalised. Ids are not
// deduplicated here.
func decodeEvents(rows []Row) ([]model.Event, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	c := parseHeader(rows[0])
	if err := c.require(SheetEvents, colDate, colOpponent); err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		out = append(out, model.Event{
			Date:         c.get(r, colDate),
			Opponent:     c.get(r, colOpponent),
			StartTime:    c.get(r, colStartTime),
			Location:     c.get(r, colLocation),
			VoteDeadline: c.get(r, colVoteDeadline),
		}.Normalize())
	}
	return out, nil
}

func encodeEvents(events []model.Event) []Row {
	rows := make([]Row, 0, len(events)+1)
	rows = append(rows, append(Row(nil), eventHeader...))
	for _, e := range events {
		rows = append(rows, Row{e.Date, e.Opponent, e.StartTime, e.Location, e.VoteDeadline})
	}
	return rows
}

func decodeAttendance(rows []Row) ([]model.AttendanceRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	c := parseHeader(rows[0])
	if err := c.require(SheetAttendance, colEventID, colName, colPhone); err != nil {
		return nil, err
	}
	out := make([]model.AttendanceRecord, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		out = append(out, model.AttendanceRecord{
			EventID:     c.get(r, colEventID),
			SubmittedAt: parseTimestamp(c.get(r, colSubmittedAt)),
			VoterName:   c.get(r, colName),
			VoterPhone:  c.get(r, colPhone),
			Attending:   parseBool(c.get(r, colAttending)),
			Afterparty:  parseAfterparty(c.get(r, colAfterparty)),
			Companion:   parseBool(c.get(r, colCompanion)),
			BatchID:     c.get(r, colBatchID),
		})
	}
	return out, nil
}

func encodeAttendance(records []model.AttendanceRecord) []Row {
	rows := make([]Row, 0, len(records)+1)
	rows = append(rows, append(Row(nil), attendanceHeader...))
	for _, rec := range records {
		ts := companionTimestamp
		if !rec.SubmittedAt.IsZero() {
			ts = rec.SubmittedAt.Format(time.RFC3339)
		}
		rows = append(rows, Row{
			rec.EventID,
			ts,
			rec.VoterName,
			rec.VoterPhone,
			strconv.FormatBool(rec.Attending),
			string(rec.Afterparty),
			strconv.FormatBool(rec.IsCompanion()),
			rec.BatchID,
		})
	}
	return rows
}

func decodeAdmins(rows []Row) ([]model.Admin, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	c := parseHeader(rows[0])
	if err := c.require(SheetAdmins, colName, colPhone); err != nil {
		return nil, err
	}
	out := make([]model.Admin, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		out = append(out, model.Admin{Name: c.get(r, colName), Phone: c.get(r, colPhone)})
	}
	return out, nil
}

func encodeAdmins(admins []model.Admin) []Row {
	rows := make([]Row, 0, len(admins)+1)
	rows = append(rows, append(Row(nil), adminHeader...))
	for _, a := range admins {
		rows = append(rows, Row{a.Name, a.Phone})
	}
	return rows
}

// parseBool accepts strconv booleans plus the Korean attend/absent words.
// Anything else reads as false.
func parseBool(s string) bool {
	switch s {
	case "참석", "O", "o":
		return true
	case "불참", "X", "x":
		return false
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func parseAfterparty(s string) model.Afterparty {
	switch strings.ToLower(s) {
	case string(model.AfterpartyAttending), "참석", "yes":
		return model.AfterpartyAttending
	case string(model.AfterpartyNotAttending), "불참", "no":
		return model.AfterpartyNotAttending
	}
	return model.Afterparty(s)
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04"}

// parseTimestamp reads submitted_at. The companion placeholder and
// unreadable values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" || s == companionTimestamp {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
