package models

import dErrors "civreg/pkg/domain-errors"

// Status is the certificate lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusIssued   Status = "issued"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
	StatusIssued:   true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported certificate status")
	}
	return st, nil
}

func (s Status) IsValid() bool { return validStatuses[s] }

// IsTerminal reports whether the status admits no further transitions.
// Issued and rejected certificates never change again.
func (s Status) IsTerminal() bool {
	return s == StatusIssued || s == StatusRejected
}

// CanTransitionTo encodes the workflow: pending moves to approved or
// rejected, approved moves to issued. Nothing else.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusApproved || target == StatusRejected
	case StatusApproved:
		return target == StatusIssued
	}
	return false
}
