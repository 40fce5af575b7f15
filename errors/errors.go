package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyTarget        = fmt.Errorf("empty event target")
	ErrUnknownPriority    = fmt.Errorf("unknown priority")
	ErrUnknownCategory    = fmt.Errorf("unknown category")
	ErrUnknownMessageType = fmt.Errorf("unknown chat message type")
	ErrNotificationGone   = fmt.Errorf("notification not found or expired")
	ErrOutletClosed       = fmt.Errorf("outlet closed")
	ErrInvalidToken       = fmt.Errorf("invalid token")
	ErrEmptyUserID        = fmt.Errorf("empty user id")
)
