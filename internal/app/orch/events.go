package orch

import "github.com/dkeye/Lobby/internal/domain"

type MemberJoined struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name"`
}

type MemberRef struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name,omitempty"`
}

type MemberLeft struct {
	User   MemberRef `json:"user"`
	Reason string    `json:"reason"`
}

type Kicked struct {
	Reason string `json:"reason"`
}

type PeerDisconnected struct {
	ID     domain.UserID `json:"id"`
	Reason string        `json:"reason"`
}

type PeerReconnected struct {
	ID domain.UserID `json:"id"`
}

type NameChanged struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name"`
}
