package model

import (
	"strings"
	"time"
	"unicode"
)

// Sentinel identity written on companion rows.
const (
	CompanionName  = "+1"
	CompanionPhone = "-"
)

// Afterparty is the voter's after-game gathering choice.
type Afterparty string

const (
	AfterpartyAttending    Afterparty = "attending"
	AfterpartyNotAttending Afterparty = "not_attending"
)

// Valid reports whether a is one of the known choices.
func (a Afterparty) Valid() bool {
	return a == AfterpartyAttending || a == AfterpartyNotAttending
}

// AttendanceRecord is one row of the attendance sheet.
type AttendanceRecord struct {
	EventID     string     `json:"event_id"`
	SubmittedAt time.Time  `json:"submitted_at"` // zero on companion rows
	VoterName   string     `json:"voter_name"`
	VoterPhone  string     `json:"voter_phone"`
	Attending   bool       `json:"attending"`
	Afterparty  Afterparty `json:"afterparty"`
	Companion   bool       `json:"is_companion"`
	BatchID     string     `json:"batch_id,omitempty"`
}

// IdentityKey identifies a primary record.
type IdentityKey struct {
	EventID string
	Name    string
	Phone   string
}

// Key returns the identity key of r using normalised name and phone.
func (r AttendanceRecord) Key() IdentityKey {
	return IdentityKey{
		EventID: r.EventID,
		Name:    NormalizeName(r.VoterName),
		Phone:   NormalizePhone(r.VoterPhone),
	}
}

// IsCompanion reports whether r is a "+1" row. Rows written before the
// companion column existed are recognised by their sentinel identity.
func (r AttendanceRecord) IsCompanion() bool {
	return r.Companion || (r.VoterName == CompanionName && r.VoterPhone == CompanionPhone)
}

// NormalizeName trims surrounding whitespace.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// NormalizePhone strips formatting characters. The result is compared as an
// exact string, so leading zeros and a "+" prefix stay significant.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '-', '.', '(', ')':
			return -1
		}
		return r
	}, phone)
}
