package repository

import (
	"context"

	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/pkg/logger"
)

// CatalogRepository reads and writes the event sheet.
type CatalogRepository struct {
	store TabularStore
	log   logger.Logger
}

// NewCatalogRepository returns a catalog view over store.
func NewCatalogRepository(store TabularStore) *CatalogRepository {
	return &CatalogRepository{store: store, log: logger.Named("catalog")}
}

// Load returns the events in sheet order. When several rows share an id the
// first one is kept and the rest are logged and dropped.
func (r *CatalogRepository) Load(ctx context.Context) ([]model.Event, Version, error) {
	snap, err := r.store.Read(ctx, SheetEvents)
	if err != nil {
		return nil, 0, err
	}
	events, err := decodeEvents(snap.Rows)
	if err != nil {
		return nil, 0, err
	}
	seen := make(map[string]bool, len(events))
	out := events[:0]
	for _, ev := range events {
		if seen[ev.ID] {
			r.log.Warn(ctx, "duplicate event id ignored", logger.String("event_id", ev.ID))
			continue
		}
		seen[ev.ID] = true
		out = append(out, ev)
	}
	return out, snap.Version, nil
}

// Save replaces the event sheet.
func (r *CatalogRepository) Save(ctx context.Context, events []model.Event, expected Version) (Version, error) {
	return r.store.Write(ctx, SheetEvents, encodeEvents(events), expected)
}

// AttendanceRepository reads and writes the attendance sheet.
type AttendanceRepository struct {
	store TabularStore
}

// NewAttendanceRepository returns an attendance view over store.
func NewAttendanceRepository(store TabularStore) *AttendanceRepository {
	return &AttendanceRepository{store: store}
}

// Load returns every attendance record and the snapshot version.
func (r *AttendanceRepository) Load(ctx context.Context) ([]model.AttendanceRecord, Version, error) {
	snap, err := r.store.Read(ctx, SheetAttendance)
	if err != nil {
		return nil, 0, err
	}
	records, err := decodeAttendance(snap.Rows)
	if err != nil {
		return nil, 0, err
	}
	return records, snap.Version, nil
}

// Save replaces the attendance sheet if it is still at expected.
func (r *AttendanceRepository) Save(ctx context.Context, records []model.AttendanceRecord, expected Version) (Version, error) {
	return r.store.Write(ctx, SheetAttendance, encodeAttendance(records), expected)
}

// AdminRepository reads and writes the administrator roster.
type AdminRepository struct {
	store TabularStore
}

// NewAdminRepository returns a roster view over store.
func NewAdminRepository(store TabularStore) *AdminRepository {
	return &AdminRepository{store: store}
}

// Load returns the roster and its version.
func (r *AdminRepository) Load(ctx context.Context) ([]model.Admin, Version, error) {
	snap, err := r.store.Read(ctx, SheetAdmins)
	if err != nil {
		return nil, 0, err
	}
	admins, err := decodeAdmins(snap.Rows)
	if err != nil {
		return nil, 0, err
	}
	return admins, snap.Version, nil
}

// Save replaces the roster if it is still at expected.
func (r *AdminRepository) Save(ctx context.Context, admins []model.Admin, expected Version) (Version, error) {
	return r.store.Write(ctx, SheetAdmins, encodeAdmins(admins), expected)
}
