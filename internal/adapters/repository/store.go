// Package repository stores the catalog, attendance and admin sheets.
//
// Every sheet is a flat list of string rows whose first row is a header.
// Backends only offer whole-sheet reads and writes; a write names the version
// it was computed from so a changed sheet is rejected instead of overwritten.
package repository

import (
	"context"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Sheet names a logical table.
type Sheet string

// Known sheets.
const (
	SheetEvents     Sheet = "events"
	SheetAttendance Sheet = "attendance"
	SheetAdmins     Sheet = "admins"
)

// Sheets lists every sheet a backend must serve.
var Sheets = []Sheet{SheetEvents, SheetAttendance, SheetAdmins}

// Row is one line of a sheet.
type Row []string

// Version identifies sheet content. It is derived from the rows themselves,
// so two snapshots with equal rows have equal versions.
type Version uint64

// AnyVersion skips the optimistic check on Write.
const AnyVersion Version = 0

// Snapshot is the content of a sheet at one instant.
type Snapshot struct {
	Rows    []Row
	Version Version
}

// TabularStore is the whole-sheet read/write port.
type TabularStore interface {
	// Read returns every row of sheet, header included. A sheet that was
	// never written reads as empty.
	Read(ctx context.Context, sheet Sheet) (Snapshot, error)

	// Write replaces sheet with rows if its current version equals expected,
	// or unconditionally for AnyVersion. A mismatch returns domain.ErrConflict.
	Write(ctx context.Context, sheet Sheet, rows []Row, expected Version) (Version, error)

	Close() error
}

// VersionOf hashes rows. Cells are length-prefixed so that splitting a
// value across cells changes the hash.
func VersionOf(rows []Row) Version {
	d := xxhash.New()
	var buf [8]byte
	putLen := func(n int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		_, _ = d.Write(buf[:])
	}
	putLen(len(rows))
	for _, r := range rows {
		putLen(len(r))
		for _, cell := range r {
			putLen(len(cell))
			_, _ = d.WriteString(cell)
		}
	}
	v := Version(d.Sum64())
	if v == AnyVersion {
		v = 1
	}
	return v
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = append(Row(nil), r...)
	}
	return out
}

func knownSheet(s Sheet) bool {
	for _, k := range Sheets {
		if k == s {
			return true
		}
	}
	return false
}
