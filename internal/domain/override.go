package domain

import "time"

// CapacityOverride replaces an adviser's base monthly client limit from
// EffectiveDate forward. The override with the greatest effective date not
// after the week being evaluated wins.
type CapacityOverride struct {
	ID                 string    `json:"id" db:"override_id"`
	AdviserEmail       string    `json:"adviser_email" db:"adviser_email"`
	EffectiveDate      time.Time `json:"effective_date" db:"effective_date"` // civil date
	ClientLimitMonthly int       `json:"client_limit_monthly" db:"client_limit_monthly"`
	PodType            string    `json:"pod_type,omitempty" db:"pod_type"`
	Notes              string    `json:"notes,omitempty" db:"notes"`
}
