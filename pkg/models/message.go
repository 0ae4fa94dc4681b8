package models

import "time"

// Message is the enriched unit forwarded to the knowledge-graph sink.
// Content is never empty: without context it is the bare action sentence.
type Message struct {
	Content           string    `yaml:"content" json:"content"`
	RoleType          string    `yaml:"role_type" json:"role_type"`
	Role              string    `yaml:"role" json:"role"`
	Name              string    `yaml:"name" json:"name"`
	SourceDescription string    `yaml:"source_description" json:"source_description"`
	Timestamp         time.Time `yaml:"timestamp" json:"timestamp"`
	GroupID           string    `yaml:"group_id" json:"group_id"`
}

// OutcomeStatus is the result of handling one event.
type OutcomeStatus string

const (
	OutcomeDelivered   OutcomeStatus = "delivered"
	OutcomeRejected    OutcomeStatus = "rejected"
	OutcomeUnreachable OutcomeStatus = "unreachable"
	OutcomeSuppressed  OutcomeStatus = "suppressed"
	OutcomeSkipped     OutcomeStatus = "skipped"
)

// SubmissionOutcome describes how a submission (or its absence) ended.
type SubmissionOutcome struct {
	Status     OutcomeStatus `yaml:"status" json:"status"`
	Reason     string        `yaml:"reason,omitempty" json:"reason,omitempty"`
	Attempts   int           `yaml:"attempts" json:"attempts"`
	StatusCode int           `yaml:"status_code,omitempty" json:"status_code,omitempty"`
	Endpoint   string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// Delivered reports whether the sink accepted the message.
func (o SubmissionOutcome) Delivered() bool {
	return o.Status == OutcomeDelivered
}
