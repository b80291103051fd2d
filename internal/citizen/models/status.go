package models

import dErrors "civreg/pkg/domain-errors"

// Status is the approval state of a citizen record.
//
// State machine: pending → approved | rejected. Both outcomes are terminal
// and only an administrator triggers the transition; there is no reversal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeValidation, "invalid citizen status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool { return validStatuses[s] }

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

// CanTransitionTo reports whether the single admin-driven transition from s
// to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	return s == StatusPending && (target == StatusApproved || target == StatusRejected)
}
