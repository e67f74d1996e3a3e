package domain

import (
	"strings"
	"time"
)

// MeetingKind is the onboarding meeting type recorded in the CRM.
type MeetingKind string

const (
	MeetingClarify MeetingKind = "Clarify"
	MeetingKickOff MeetingKind = "Kick Off"
	MeetingOther   MeetingKind = "Other"
)

// Meeting is a booked onboarding meeting. Only Clarify and Kick Off
// meetings are relevant to the capacity model; Clarify alone counts
// toward occupancy.
type Meeting struct {
	AdviserID string      `json:"adviser_id"`
	Kind      MeetingKind `json:"kind"`
	StartDate time.Time   `json:"start_date"` // civil date
	DealID    string      `json:"deal_id,omitempty"`
}

// ParseMeetingKind maps a CRM activity-type string to a MeetingKind.
func ParseMeetingKind(raw string) MeetingKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "clarify":
		return MeetingClarify
	case "kick off", "kickoff":
		return MeetingKickOff
	default:
		return MeetingOther
	}
}

func containsFold(haystack []string, needle string) bool {
	needle = strings.TrimSpace(needle)
	for _, v := range haystack {
		if strings.EqualFold(strings.TrimSpace(v), needle) {
			return true
		}
	}
	return false
}
