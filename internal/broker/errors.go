package broker

import "errors"

var (
	// ErrOrderSubmissionFailed marks an order the broker rejected or errored.
	// The position state of the caller must be left untouched when this is
	// returned.
	ErrOrderSubmissionFailed = errors.New("order submission failed")

	// ErrBrokerUnavailable marks a failed read call (account, order lookup).
	ErrBrokerUnavailable = errors.New("broker unavailable")
)
