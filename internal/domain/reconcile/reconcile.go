// Package reconcile merges a submission into the attendance table.
//
// Reconcile is a pure function of its inputs: it never touches the store and
// never mutates the table it is given. Serialising concurrent writers is the
// caller's job.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/model"
)

// Reconcile removes the submitter's previous primary row and the companion
// rows tied to it, then appends the new primary and, when requested, one
// companion. The result is a fresh slice.
func Reconcile(table []model.AttendanceRecord, catalog model.Catalog, sub model.Submission) ([]model.AttendanceRecord, error) {
	if err := validate(catalog, sub); err != nil {
		return nil, err
	}

	key := sub.Key()

	// Batches whose primary is being replaced. The submission's own batch is
	// included so that replaying the same batch never leaves a stale companion.
	batches := map[string]struct{}{sub.BatchID: {}}
	legacyPrimaryRemoved := false
	for _, r := range table {
		if r.IsCompanion() || r.Key() != key {
			continue
		}
		if r.BatchID == "" {
			legacyPrimaryRemoved = true
			continue
		}
		batches[r.BatchID] = struct{}{}
	}

	out := make([]model.AttendanceRecord, 0, len(table)+2)
	for _, r := range table {
		if dropped(r, key, batches, legacyPrimaryRemoved) {
			continue
		}
		out = append(out, r)
	}

	out = append(out, sub.Primary())
	if sub.Companion {
		out = append(out, sub.CompanionRecord())
	}
	return out, nil
}

func dropped(r model.AttendanceRecord, key model.IdentityKey, batches map[string]struct{}, legacyPrimaryRemoved bool) bool {
	if r.EventID != key.EventID {
		return false
	}
	if !r.IsCompanion() {
		return r.Key() == key
	}
	if r.BatchID == "" {
		// Rows written before batch ids existed can only be matched by their
		// sentinel identity; this cannot tell two submitters' companions apart.
		return legacyPrimaryRemoved
	}
	_, ok := batches[r.BatchID]
	return ok
}

func validate(catalog model.Catalog, sub model.Submission) error {
	if strings.TrimSpace(sub.EventID) == "" {
		return fmt.Errorf("%w: missing event id", domain.ErrInvalidSubmission)
	}
	if _, ok := catalog.Lookup(sub.EventID); !ok {
		return fmt.Errorf("%w: %q", domain.ErrEventNotFound, sub.EventID)
	}
	key := sub.Key()
	switch {
	case key.Name == "":
		return fmt.Errorf("%w: missing voter name", domain.ErrInvalidSubmission)
	case key.Phone == "":
		return fmt.Errorf("%w: missing voter phone", domain.ErrInvalidSubmission)
	case key.Name == model.CompanionName && key.Phone == model.CompanionPhone:
		return fmt.Errorf("%w: reserved companion identity", domain.ErrInvalidSubmission)
	case strings.TrimSpace(sub.BatchID) == "":
		return fmt.Errorf("%w: missing batch id", domain.ErrInvalidSubmission)
	case !sub.Afterparty.Valid():
		return fmt.Errorf("%w: afterparty %q", domain.ErrInvalidSubmission, sub.Afterparty)
	}
	return nil
}
