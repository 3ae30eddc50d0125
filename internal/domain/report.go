// Package domain contains core business entities and types for adverse-event
// disproportionality analysis over spontaneous reporting data (FAERS-style).
//
// Reference: Evans SJ, Waller PC, Davis S. (2001) Use of proportional reporting
// ratios (PRRs) for signal generation from spontaneous adverse drug reaction
// reports. Pharmacoepidemiol Drug Saf. 10(6):483-6. doi: 10.1002/pds.677
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DrugRole represents the reported role of a drug within an adverse-event case.
// Values mirror the FAERS role_cod coding.
type DrugRole string

const (
	PRIMARY_SUSPECT   DrugRole = "PS"
	SECONDARY_SUSPECT DrugRole = "SS"
	CONCOMITANT       DrugRole = "C"
	INTERACTING       DrugRole = "I"
)

// OutcomeCode represents a reported case outcome (FAERS outc_cod coding).
type OutcomeCode string

const (
	DEATH                 OutcomeCode = "DE"
	LIFE_THREATENING      OutcomeCode = "LT"
	HOSPITALIZATION       OutcomeCode = "HO"
	DISABILITY            OutcomeCode = "DS"
	CONGENITAL_ANOMALY    OutcomeCode = "CA"
	REQUIRED_INTERVENTION OutcomeCode = "RI"
	OTHER_SERIOUS         OutcomeCode = "OT"
)

// Validation errors for report data integrity
var (
	ErrInvalidDrugRole    = errors.New("invalid drug role code")
	ErrInvalidOutcomeCode = errors.New("invalid outcome code")
)

// IsValid validates the drug role against the FAERS role coding.
func (r DrugRole) IsValid() bool {
	switch r {
	case PRIMARY_SUSPECT, SECONDARY_SUSPECT, CONCOMITANT, INTERACTING:
		return true
	default:
		return false
	}
}

// String returns the FAERS role code.
func (r DrugRole) String() string {
	return string(r)
}

// Description returns a human-readable description of the drug role.
func (r DrugRole) Description() string {
	switch r {
	case PRIMARY_SUSPECT:
		return "Primary Suspect"
	case SECONDARY_SUSPECT:
		return "Secondary Suspect"
	case CONCOMITANT:
		return "Concomitant"
	case INTERACTING:
		return "Interacting"
	default:
		return "Unknown role"
	}
}

// ParseDrugRole converts a configuration or wire value into a DrugRole.
// Accepts both the FAERS role code ("PS") and the descriptive spelling
// ("primary-suspect") so configuration files can use either.
func ParseDrugRole(s string) (DrugRole, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PS", "PRIMARY-SUSPECT", "PRIMARY_SUSPECT":
		return PRIMARY_SUSPECT, nil
	case "SS", "SECONDARY-SUSPECT", "SECONDARY_SUSPECT":
		return SECONDARY_SUSPECT, nil
	case "C", "CONCOMITANT":
		return CONCOMITANT, nil
	case "I", "INTERACTING":
		return INTERACTING, nil
	default:
		return "", fmt.Errorf("parsing drug role %q: %w", s, ErrInvalidDrugRole)
	}
}

// IsValid validates the outcome code against the FAERS outcome coding.
func (o OutcomeCode) IsValid() bool {
	switch o {
	case DEATH, LIFE_THREATENING, HOSPITALIZATION, DISABILITY,
		CONGENITAL_ANOMALY, REQUIRED_INTERVENTION, OTHER_SERIOUS:
		return true
	default:
		return false
	}
}

// String returns the FAERS outcome code.
func (o OutcomeCode) String() string {
	return string(o)
}

// DrugEntry is one drug named on a report together with its reported role.
type DrugEntry struct {
	Name string   `json:"name" validate:"required"`
	Role DrugRole `json:"role" validate:"required"`
}

// Reaction is one coded reaction term on a report. Term carries the MedDRA
// preferred-term display name; Code the numeric MedDRA code when available.
type Reaction struct {
	Term string `json:"term" validate:"required"`
	Code string `json:"code,omitempty"`
}

// Report represents a single adverse-event case version. Reports are created
// by the ingestion pipeline and are immutable afterwards; the analytic core
// only ever reads them. Case-version deduplication (keep the latest
// CaseVersion per CaseID) is an upstream guarantee.
type Report struct {
	ReportID    string        `json:"report_id" validate:"required"`
	CaseID      string        `json:"case_id" validate:"required"`
	CaseVersion int           `json:"case_version" validate:"min=1"`
	Drugs       []DrugEntry   `json:"drugs"`
	Reactions   []Reaction    `json:"reactions"`
	Outcomes    []OutcomeCode `json:"outcomes,omitempty"`
	ReceivedAt  time.Time     `json:"received_at,omitempty"`
}

// Validate ensures the report meets the integrity requirements of the
// analysis core. Invalid reports must be rejected at the ingestion boundary,
// not discovered mid-computation.
func (r *Report) Validate() error {
	if r.ReportID == "" {
		return fmt.Errorf("report validation: %w", errors.New("report ID is required"))
	}

	if r.CaseID == "" {
		return fmt.Errorf("report validation: %w", errors.New("case ID is required"))
	}

	if r.CaseVersion < 1 {
		return fmt.Errorf("report validation: %w", errors.New("case version must be positive"))
	}

	for _, d := range r.Drugs {
		if d.Name == "" {
			return fmt.Errorf("report validation: %w", errors.New("drug name is required"))
		}
		if !d.Role.IsValid() {
			return fmt.Errorf("report validation: %w", ErrInvalidDrugRole)
		}
	}

	for _, rx := range r.Reactions {
		if rx.Term == "" {
			return fmt.Errorf("report validation: %w", errors.New("reaction term is required"))
		}
	}

	for _, o := range r.Outcomes {
		if !o.IsValid() {
			return fmt.Errorf("report validation: %w", ErrInvalidOutcomeCode)
		}
	}

	return nil
}

// HasDrugWithRole reports whether the report names the substance with one of
// the given roles. Substance matching is case-insensitive.
func (r *Report) HasDrugWithRole(substance string, roles []DrugRole) bool {
	for _, d := range r.Drugs {
		if !strings.EqualFold(d.Name, substance) {
			continue
		}
		for _, role := range roles {
			if d.Role == role {
				return true
			}
		}
	}
	return false
}

// HasReaction reports whether the report lists the reaction term.
// Matching is case-insensitive on the preferred-term display name.
func (r *Report) HasReaction(term string) bool {
	for _, rx := range r.Reactions {
		if strings.EqualFold(rx.Term, term) {
			return true
		}
	}
	return false
}
