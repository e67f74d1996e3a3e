package domain

import "time"

// Deal is an inbound client deal from the CRM onboarding pipeline.
// HasClarify is derived from the deal's meetings: a deal without a Clarify
// booked or held counts toward the owning adviser's backlog.
type Deal struct {
	ID                 string     `json:"id"`
	ServicePackage     string     `json:"service_package"`
	HouseholdType      string     `json:"household_type,omitempty"`
	AgreementStartDate *time.Time `json:"agreement_start_date,omitempty"` // civil date, nullable
	OwnerID            string     `json:"owner_id,omitempty"`
	HasClarify         bool       `json:"has_clarify"`
}
