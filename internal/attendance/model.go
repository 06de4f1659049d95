package attendance

import (
	"fmt"
	"time"
)

// Kind is the type of a check-in attempt.
type Kind string

const (
	KindLive    Kind = "live"
	KindExcused Kind = "excused"
)

// ParseKind validates a wire value.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLive, KindExcused:
		return k, nil
	}
	return "", fmt.Errorf("unknown attempt kind %q", s)
}

// Classification is the outcome recorded for an accepted attempt. Its
// value doubles as the session counter field name.
type Classification string

const (
	Present Classification = "present"
	Late    Classification = "late"
	Excused Classification = "excused"
)

// Session is a scheduled meeting members check into.
type Session struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Present     int       `json:"present"`
	Late        int       `json:"late"`
	Excused     int       `json:"excused"`
}

// Count returns the stored counter for c.
func (s Session) Count(c Classification) int {
	switch c {
	case Present:
		return s.Present
	case Late:
		return s.Late
	case Excused:
		return s.Excused
	}
	return 0
}

// Entry is one identity's check-in or excusal for one session. It is
// written once and never modified.
type Entry struct {
	SubjectID       string    `json:"subject_id"`
	StudentNumber   string    `json:"student_number"`
	DisplayName     string    `json:"display_name,omitempty"`
	PhotoURL        string    `json:"photo_url,omitempty"`
	IPAddress       string    `json:"ip_addr"`
	IsAllowlistedIP bool      `json:"is_good_ip"`
	CheckedInAt     time.Time `json:"checked_in_at"`
	IsLate          bool      `json:"is_late"`
	IsExcused       bool      `json:"is_excused"`
	ExcusedReason   string    `json:"excused_reason,omitempty"`
}

// Classification derives the class the entry was counted under.
func (e Entry) Classification() Classification {
	switch {
	case e.IsExcused:
		return Excused
	case e.IsLate:
		return Late
	}
	return Present
}

// Summary is the admin view of a session.
type Summary struct {
	Session
	Entries []Entry `json:"entries"`
}

// Status is the public view of a session's open windows.
type Status struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	CheckInOpen bool      `json:"check_in_open"`
	ExcusedOpen bool      `json:"excused_open"`
}
