package repository

import "time"

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSheet seeds sheet with rows.
func WithSheet(sheet Sheet, rows []Row) MemoryOption {
	return func(s *MemoryStore) {
		s.sheets[sheet] = cloneRows(rows)
	}
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithBusyTimeout sets how long sqlite waits on a locked database.
func WithBusyTimeout(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}
