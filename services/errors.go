package services

import "errors"

var (
	// ErrTopicNotFound is returned when the referenced topic does not exist.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrSessionNotFound is returned when the referenced session does not exist.
	ErrSessionNotFound = errors.New("debate session not found")
	// ErrJoinFailed is returned when the pairing transaction kept conflicting
	// and gave up. The caller may retry the same signalInterest call.
	ErrJoinFailed = errors.New("join failed")
	// ErrSendFailed is returned when the message transaction kept conflicting
	// and gave up. The caller may retry the same submit call.
	ErrSendFailed = errors.New("send failed")
)

// RejectReason is a stable code identifying why an operation was refused.
type RejectReason string

const (
	RejectNotParticipant RejectReason = "not_a_participant"
	RejectSessionClosed  RejectReason = "session_concluded"
	RejectNotYourTurn    RejectReason = "not_your_turn"
	RejectAlreadyExited  RejectReason = "already_exited"
	RejectEmptyMessage   RejectReason = "empty_message"
	RejectReplyTooLong   RejectReason = "reply_too_long"
	RejectBudgetExceeded RejectReason = "word_budget_exceeded"
)

// RejectedError reports a precondition violation. The operation did not
// mutate anything; repeating the same call yields the same reason.
type RejectedError struct {
	Reason RejectReason
}

func (e *RejectedError) Error() string {
	return "rejected: " + string(e.Reason)
}

// AsRejected unwraps a RejectedError if err carries one.
func AsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
