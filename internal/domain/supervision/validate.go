package supervision

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

const (
	MinConcurrencyCap = 1
	MaxConcurrencyCap = 100
)

// ValidationError carries every rule the candidate broke.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid supervision relationship: " + strings.Join(e.Errors, "; ")
}

// Validate checks a candidate against the resident's existing relationships
// and returns every violation found. An empty result means the candidate is
// valid. Inactive relationships, other residents' relationships and the
// relationship being edited are ignored.
func Validate(c Candidate, existing []*Relationship) []string {
	errs := []string{}

	residentMissing := c.ResidentProviderID == uuid.Nil
	attendingMissing := c.AttendingProviderID == uuid.Nil
	if residentMissing {
		errs = append(errs, "resident provider is required")
	}
	if attendingMissing {
		errs = append(errs, "attending provider is required")
	}

	if !residentMissing && c.ResidentProviderID == c.AttendingProviderID {
		errs = append(errs, "a provider cannot supervise themselves")
	}

	if !residentMissing && !c.EffectiveDate.IsZero() {
		for _, ex := range existing {
			if !relevant(c, ex) {
				continue
			}
			if overlaps(c.EffectiveDate, c.ExpirationDate, ex.EffectiveDate, ex.ExpirationDate) {
				errs = append(errs, fmt.Sprintf(
					"overlaps the %s supervision by attending %s from %s to %s",
					ex.Designation, ex.AttendingProviderID, ex.EffectiveDate, endLabel(ex.ExpirationDate)))
			}
		}
	}

	if c.Designation == DesignationPrimary && !residentMissing {
		for _, ex := range existing {
			if relevant(c, ex) && ex.Designation == DesignationPrimary {
				errs = append(errs, "resident already has an active primary supervisor")
				break
			}
		}
	}

	if c.ConcurrencyCap != nil && (*c.ConcurrencyCap < MinConcurrencyCap || *c.ConcurrencyCap > MaxConcurrencyCap) {
		errs = append(errs, fmt.Sprintf("concurrency cap must be between %d and %d", MinConcurrencyCap, MaxConcurrencyCap))
	}

	if c.EffectiveDate.IsZero() {
		errs = append(errs, "effective date is required")
	} else if c.ExpirationDate != nil && !c.ExpirationDate.After(c.EffectiveDate) {
		errs = append(errs, "expiration date must be after the effective date")
	}
	if !c.Designation.Valid() {
		errs = append(errs, fmt.Sprintf("designation must be %q or %q", DesignationPrimary, DesignationSecondary))
	}

	return errs
}

func relevant(c Candidate, ex *Relationship) bool {
	if !ex.IsActive || ex.ResidentProviderID != c.ResidentProviderID {
		return false
	}
	return c.EditingID == nil || ex.ID != *c.EditingID
}

// overlaps tests [cStart, cEnd) against [exStart, exEnd) with nil ends
// unbounded. It is true when the candidate starts inside the existing range,
// ends inside it, or spans it.
func overlaps(cStart date.Date, cEnd *date.Date, exStart date.Date, exEnd *date.Date) bool {
	startInside := !cStart.Before(exStart) && (exEnd == nil || cStart.Before(*exEnd))
	endInside := cEnd != nil && exStart.Before(*cEnd) && (exEnd == nil || !cEnd.After(*exEnd))
	spans := !cStart.After(exStart) && (cEnd == nil || (exEnd != nil && !exEnd.After(*cEnd)))
	return startInside || endInside || spans
}

func endLabel(d *date.Date) string {
	if d == nil {
		return "open-ended"
	}
	return d.String()
}
