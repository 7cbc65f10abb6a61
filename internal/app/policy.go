package app

import (
	"github.com/dkeye/Lobby/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	CloseSession
)

// Policy decides what happens to a peer that could not take a broadcast frame.
type Policy interface {
	OnBackPressure(room domain.RoomID, user domain.UserID, err error) BackpressureAction
}

// DropPolicy loses the frame and keeps the peer.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomID, domain.UserID, error) BackpressureAction {
	return DropFrame
}

// ClosePolicy drops the peer's session; the transport then reports the loss
// and the peer goes through the normal disconnect path.
type ClosePolicy struct{}

func (ClosePolicy) OnBackPressure(domain.RoomID, domain.UserID, error) BackpressureAction {
	return CloseSession
}

// PolicyFor maps a config name to a Policy. Unknown names fall back to drop.
func PolicyFor(name string) Policy {
	if name == "close" {
		return ClosePolicy{}
	}
	return DropPolicy{}
}
