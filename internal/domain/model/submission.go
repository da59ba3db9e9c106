package model

import "time"

// Draft accumulates a voter's answers while the wizard runs. It never reaches
// the store on its own.
type Draft struct {
	EventID    string     `json:"event_id"`
	BatchID    string     `json:"batch_id"`
	VoterName  string     `json:"voter_name,omitempty"`
	VoterPhone string     `json:"voter_phone,omitempty"`
	Attending  bool       `json:"attending"`
	Afterparty Afterparty `json:"afterparty,omitempty"`
	Companion  bool       `json:"companion"`
}

// Submission is a completed draft stamped with its submission time.
type Submission struct {
	Draft
	SubmittedAt time.Time `json:"submitted_at"`
}

// Submit stamps d with at.
func (d Draft) Submit(at time.Time) Submission {
	return Submission{Draft: d, SubmittedAt: at}
}

// Key returns the identity key the submission upserts.
func (s Submission) Key() IdentityKey {
	return IdentityKey{
		EventID: s.EventID,
		Name:    NormalizeName(s.VoterName),
		Phone:   NormalizePhone(s.VoterPhone),
	}
}

// Primary builds the primary row for s.
func (s Submission) Primary() AttendanceRecord {
	k := s.Key()
	return AttendanceRecord{
		EventID:     s.EventID,
		SubmittedAt: s.SubmittedAt,
		VoterName:   k.Name,
		VoterPhone:  k.Phone,
		Attending:   s.Attending,
		Afterparty:  s.Afterparty,
		BatchID:     s.BatchID,
	}
}

// CompanionRecord builds the "+1" row that accompanies the primary.
func (s Submission) CompanionRecord() AttendanceRecord {
	return AttendanceRecord{
		EventID:    s.EventID,
		VoterName:  CompanionName,
		VoterPhone: CompanionPhone,
		Attending:  true,
		Afterparty: s.Afterparty,
		Companion:  true,
		BatchID:    s.BatchID,
	}
}
