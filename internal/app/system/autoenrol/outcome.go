package autoenrol

import "time"

// Reason explains why a user was not enrolled.
type Reason string

const (
	ReasonGuestUser          Reason = "guest_user"
	ReasonMissingCapability  Reason = "missing_capability"
	ReasonStrategyDisabled   Reason = "strategy_disabled"
	ReasonInstanceAbsent     Reason = "instance_absent"
	ReasonInstanceDisabled   Reason = "instance_disabled"
	ReasonInstanceExpired    Reason = "instance_expired"
	ReasonEnrolmentSuspended Reason = "enrolment_suspended"
)

// Outcome is the result of an enrolment attempt. Exactly one of the two
// shapes is populated: Enrolled with NextCheckAt, or not enrolled with Reason.
type Outcome struct {
	Enrolled    bool       `json:"enrolled"`
	NextCheckAt *time.Time `json:"next_check_at,omitempty"`
	Reason      Reason     `json:"reason,omitempty"`

	// Created is true only when this attempt wrote the enrolment.
	Created bool `json:"created,omitempty"`
}

// Enrolled builds a successful outcome.
func Enrolled(nextCheckAt time.Time) Outcome {
	return Outcome{Enrolled: true, NextCheckAt: &nextCheckAt}
}

// NotEligible builds a refusal outcome.
func NotEligible(r Reason) Outcome {
	return Outcome{Reason: r}
}
