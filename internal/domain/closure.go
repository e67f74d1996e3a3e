package domain

import "time"

// OfficeClosure is an admin-authored closure period. A closure with an
// empty AdviserEmail is global (office-wide); otherwise it applies to the
// named adviser only.
type OfficeClosure struct {
	ID          string    `json:"id" db:"closure_id"`
	StartDate   time.Time `json:"start_date" db:"start_date"` // civil date, inclusive
	EndDate     time.Time `json:"end_date" db:"end_date"`     // civil date, inclusive, >= StartDate
	Description string    `json:"description" db:"description"`
	Tags        []string  `json:"tags,omitempty" db:"tags"`
	AdviserEmail string   `json:"adviser_email,omitempty" db:"adviser_email"` // empty = global
}

// Global reports whether the closure applies office-wide.
func (c OfficeClosure) Global() bool {
	return c.AdviserEmail == ""
}
