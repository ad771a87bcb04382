package protocol

import (
	"errors"
	"fmt"
)

// Error is a protocol-level failure reported back to the client. The
// connection stays open and the client decides whether to retry.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Description
}

// Is matches protocol errors by code so wrapped variants with a more
// specific description still satisfy errors.Is against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrAlreadyInRoom   = &Error{Code: "AlreadyInRoom", Description: "connection already belongs to a room"}
	ErrRoomNotFound    = &Error{Code: "RoomNotFound", Description: "room not found"}
	ErrNotLeader       = &Error{Code: "NotLeader", Description: "only the leader can do that"}
	ErrUserNotFound    = &Error{Code: "UserNotFound", Description: "user not found"}
	ErrNoActiveGame    = &Error{Code: "NoActiveGame", Description: "no game in progress"}
	ErrUnknownCommand  = &Error{Code: "UnknownCommand", Description: "command not recognized"}
	ErrInvalidUsername = &Error{Code: "InvalidUsername", Description: "username must not be empty"}
	ErrGameInProgress  = &Error{Code: "GameInProgress", Description: "a game is already running"}
)

// Errorf returns a copy of base with a formatted description.
func Errorf(base *Error, format string, args ...any) *Error {
	return &Error{Code: base.Code, Description: fmt.Sprintf(format, args...)}
}

// FailureReply renders err as a failing reply. Errors that are not protocol
// errors are reported as UnknownCommand without leaking their text.
func FailureReply(err error) string {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = ErrUnknownCommand
	}
	return StatusFailure + pe.Error()
}
