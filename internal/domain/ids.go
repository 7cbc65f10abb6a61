package domain

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

const (
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	RoomCodeLength   = 5
)

func NewUserID() UserID {
	return UserID(uuid.NewString())
}

// NewRoomCode draws length characters uniformly from RoomCodeAlphabet.
func NewRoomCode(length int) RoomID {
	if length <= 0 {
		length = RoomCodeLength
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = RoomCodeAlphabet[rand.IntN(len(RoomCodeAlphabet))]
	}
	return RoomID(b)
}
