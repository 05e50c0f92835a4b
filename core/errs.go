package core

import "errors"

var (
	// ErrRecipientBlocked signals the destination blocked the bot. The
	// subscriber is removed permanently, never retried.
	ErrRecipientBlocked = errors.New("recipient blocked the sender")

	// ErrRecipientNotFound signals the destination no longer exists.
	ErrRecipientNotFound = errors.New("recipient not found")

	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrInvalidThreshold   = errors.New("threshold percent out of range")
	ErrInvalidWindowSize  = errors.New("window size out of range")
)

// IsPermanentDeliveryFailure reports whether a send error must trigger
// subscriber removal instead of a retry.
func IsPermanentDeliveryFailure(err error) bool {
	return errors.Is(err, ErrRecipientBlocked) || errors.Is(err, ErrRecipientNotFound)
}
