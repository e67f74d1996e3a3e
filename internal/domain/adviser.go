package domain

import "time"

// Adviser profile as synced from the CRM. Immutable within one allocation.
type Adviser struct {
	// Identity
	ID    string `json:"id"`
	Email string `json:"email"`

	// Matching profile
	ServicePackages []string `json:"service_packages"`
	HouseholdTypes  []string `json:"household_types"`

	// Capacity profile
	PodType            string     `json:"pod_type"` // e.g. "Solo Adviser", "Full Pod"
	ClientLimitMonthly int        `json:"client_limit_monthly"`
	AdviserStartDate   *time.Time `json:"adviser_start_date,omitempty"` // civil date, nullable
	TakingOnClients    bool       `json:"taking_on_clients"`
}

// SupportsServicePackage reports whether the adviser services the package.
// Matching is case-insensitive on the normalised token.
func (a Adviser) SupportsServicePackage(pkg string) bool {
	return containsFold(a.ServicePackages, pkg)
}

// SupportsHouseholdType reports whether the adviser services the household
// type. Advisers with no household preferences accept any household.
func (a Adviser) SupportsHouseholdType(household string) bool {
	if len(a.HouseholdTypes) == 0 {
		return true
	}
	return containsFold(a.HouseholdTypes, household)
}
