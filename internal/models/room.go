package models

import "time"

// Room is the durable record of an audio session.
//
// Invariant: an identity appears in at most one of Participants and
// WaitingRoom at any time.
type Room struct {
	Code      string    `json:"code"`   // short, shareable room code
	HostID    string    `json:"hostId"` // identity that created the room
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`

	// Membership sets, persisted as idempotent set fields.
	Participants     []string `json:"participants"`
	WaitingRoom      []string `json:"waitingRoom"`
	WhiteboardAccess []string `json:"whiteboardAccess"`
}

// IsHost reports whether the given identity owns the room. Host role is
// always derived from the room record, never cached per session.
func (r *Room) IsHost(identityID string) bool {
	return r.HostID == identityID
}

// IsParticipant reports whether the identity is an admitted member.
func (r *Room) IsParticipant(identityID string) bool {
	return contains(r.Participants, identityID)
}

// IsWaiting reports whether the identity sits in the waiting room.
func (r *Room) IsWaiting(identityID string) bool {
	return contains(r.WaitingRoom, identityID)
}

// CanWriteWhiteboard reports whether the identity may submit draw or
// erase events: the host always can, everyone else needs an explicit
// grant.
func (r *Room) CanWriteWhiteboard(identityID string) bool {
	return r.IsHost(identityID) || contains(r.WhiteboardAccess, identityID)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// CreateRoomResponse is the response for creating a room.
type CreateRoomResponse struct {
	Code string `json:"code"`
}
