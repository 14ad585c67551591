package statemachine

// Submission/action states, per the governance core's closed transition
// table. There is no SubmissionState type distinct from string: the
// table itself is the source of truth, and nothing outside this file
// should construct states by any means other than these constants.
const (
	SubmissionPending      = "PENDING"
	SubmissionConfirmed    = "CONFIRMED"
	SubmissionSubmitted    = "SUBMITTED"
	SubmissionAcknowledged = "ACKNOWLEDGED"
	SubmissionRejected     = "REJECTED"
	SubmissionFailed       = "FAILED"
)

var submissionTable = NewTable(
	map[string][]string{
		SubmissionPending:   {SubmissionConfirmed},
		SubmissionConfirmed: {SubmissionSubmitted, SubmissionFailed},
		SubmissionSubmitted: {SubmissionAcknowledged, SubmissionRejected},
	},
	[]string{SubmissionAcknowledged, SubmissionRejected, SubmissionFailed},
)

// NewSubmissionMachine starts a submission/action lifecycle at PENDING.
func NewSubmissionMachine() *Machine {
	return New(submissionTable, SubmissionPending)
}
