package loadtest

import (
	"errors"
	"fmt"

	"github.com/okian/turnout/internal/domain/attendance"
	"github.com/okian/turnout/internal/domain/model"
)

// verifyResults checks the summary against the final ballot of every
// successful voter: one primary row with the chosen afterparty, a companion
// row tied to the final batch only when requested, and nothing left from
// superseded batches. Rows of other voters are ignored.
func verifyResults(results []Result, summary attendance.Summary) error {
	primaries := map[model.IdentityKey][]model.AttendanceRecord{}
	companions := map[string]int{}
	for _, r := range summary.Rows {
		if r.IsCompanion() {
			companions[r.BatchID]++
			continue
		}
		primaries[r.Key()] = append(primaries[r.Key()], r)
	}

	var problems []error
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		v := res.Voter
		key := model.IdentityKey{
			EventID: summary.EventID,
			Name:    model.NormalizeName(v.Name),
			Phone:   model.NormalizePhone(v.Phone),
		}
		rows := primaries[key]
		switch {
		case len(rows) != 1:
			problems = append(problems, fmt.Errorf("%s: %d primary rows", v.Name, len(rows)))
			continue
		case rows[0].BatchID != res.BatchID:
			problems = append(problems, fmt.Errorf("%s: primary from batch %s, want %s", v.Name, rows[0].BatchID, res.BatchID))
		case rows[0].Afterparty != v.Afterparty:
			problems = append(problems, fmt.Errorf("%s: afterparty %s, want %s", v.Name, rows[0].Afterparty, v.Afterparty))
		}

		want := 0
		if v.Companion {
			want = 1
		}
		if got := companions[res.BatchID]; got != want {
			problems = append(problems, fmt.Errorf("%s: %d companion rows, want %d", v.Name, got, want))
		}
		for _, stale := range res.Stale {
			if companions[stale] > 0 {
				problems = append(problems, fmt.Errorf("%s: companion of superseded batch %s survived", v.Name, stale))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(problems...))
	}
	return nil
}
