package core

import "errors"

var (
	ErrAlreadyExists       = errors.New("already exists")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyInRoom       = errors.New("already in room")
	ErrUserInAnotherRoom   = errors.New("user in another room")
	ErrNotInRoom           = errors.New("not in room")
	ErrRoomFull            = errors.New("room full")
	ErrGenerationExhausted = errors.New("room code generation exhausted")
	ErrNoSuchUser          = errors.New("no such user")
	ErrNotHost             = errors.New("not host")

	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
	ErrSessionLive  = errors.New("session still live")
)

var ackCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyInRoom, "already-in-room"},
	{ErrUserInAnotherRoom, "already-in-room"},
	{ErrNotFound, "no-such-room"},
	{ErrRoomFull, "room-full"},
	{ErrNotInRoom, "not-in-room"},
	{ErrNoSuchUser, "no-such-user"},
	{ErrNotHost, "not-host"},
	{ErrGenerationExhausted, "generation-exhausted"},
	{ErrAlreadyExists, "already-exists"},
}

// AckCode maps an error to the code sent back in an acknowledgement.
// Unknown errors collapse to "internal".
func AckCode(err error) string {
	for _, c := range ackCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
