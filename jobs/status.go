package jobs

import (
	"strings"

	"github.com/teranos/jobtrail/errors"
)

// Status is a stage of the hiring funnel
type Status string

const (
	StatusSaved        Status = "Saved"
	StatusApplied      Status = "Applied"
	StatusInterviewing Status = "Interviewing"
	StatusOffer        Status = "Offer"
	StatusHired        Status = "Hired"
	StatusRejected     Status = "Rejected"
	StatusWithdrawn    Status = "Withdrawn"
)

// AllStatuses is the fixed, ordered status set
var AllStatuses = []Status{
	StatusSaved,
	StatusApplied,
	StatusInterviewing,
	StatusOffer,
	StatusHired,
	StatusRejected,
	StatusWithdrawn,
}

// transitions lists the legal targets of each status. Terminal statuses have none.
var transitions = map[Status][]Status{
	StatusSaved:        {StatusApplied, StatusWithdrawn},
	StatusApplied:      {StatusInterviewing, StatusWithdrawn},
	StatusInterviewing: {StatusOffer, StatusRejected, StatusWithdrawn},
	StatusOffer:        {StatusHired, StatusRejected, StatusWithdrawn},
	StatusHired:        nil,
	StatusRejected:     nil,
	StatusWithdrawn:    nil,
}

// ParseStatus matches s case-insensitively against the status set
func ParseStatus(s string) (Status, error) {
	want := strings.TrimSpace(s)
	for _, st := range AllStatuses {
		if strings.EqualFold(string(st), want) {
			return st, nil
		}
	}
	return "", errors.WithHintf(
		errors.NewValidationError("unknown status %q", s),
		"valid statuses: %s", joinStatuses(AllStatuses))
}

// Valid reports whether s is a member of the status set
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s
func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// IsActive reports whether s is a non-terminal status
func (s Status) IsActive() bool {
	return s.Valid() && len(transitions[s]) > 0
}

// AllowedTargets returns the statuses reachable from s in one step
func AllowedTargets(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// CanTransition reports whether from -> to is a legal status change
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// checkTransition returns ErrInvalidTransition naming the record, both
// statuses and the legal targets
func checkTransition(id string, from, to Status) error {
	if !to.Valid() {
		return errors.NewValidationError("unknown status %q", to)
	}
	if CanTransition(from, to) {
		return nil
	}

	allowed := "none, " + string(from) + " is terminal"
	if targets := transitions[from]; len(targets) > 0 {
		allowed = joinStatuses(targets)
	}
	return errors.WithHintf(
		errors.Wrapf(errors.ErrInvalidTransition, "job %s: %s -> %s", id, from, to),
		"allowed from %s: %s", from, allowed)
}

func joinStatuses(statuses []Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
