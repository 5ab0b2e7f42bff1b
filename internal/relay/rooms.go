package relay

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/liteclass/liteclass/internal/store"
)

// handleJoinRoom admits hosts and existing members directly; everyone
// else lands in the waiting room until the host decides.
func (r *Relay) handleJoinRoom(ctx context.Context, s *Session, roomID string) {
	room, err := r.stores.Rooms.FindByCode(ctx, roomID)
	if err != nil || !room.Active {
		s.enqueue(errorEvent("Room not found or inactive"))
		return
	}

	identity := s.Identity.ID
	isHost := room.IsHost(identity)

	if !isHost && !room.IsParticipant(identity) {
		// Waiting room: persist the identity, park the transport in the
		// room-scoped waiting group and tell the host.
		if err := r.stores.Rooms.AddWaiting(ctx, roomID, identity); err != nil {
			r.log.WithError(err).Warn("failed to persist waiting entry")
		}
		r.joinGroup(r.waiting, roomID, s)
		s.setWaiting(roomID)
		s.enqueue(mustEvent(EvtWaitingForApproval, nil))
		r.notifyHostWaitingList(ctx, roomID)

		r.log.WithFields(logrus.Fields{
			"room":     roomID,
			"identity": identity,
		}).Info("identity added to waiting room")
		return
	}

	// Standard join. The membership add is idempotent; re-joins after a
	// reconnect are no-ops on the persisted set.
	if room.IsWaiting(identity) {
		if err := r.stores.Rooms.RemoveWaiting(ctx, roomID, identity); err != nil {
			r.log.WithError(err).Warn("failed to clear waiting entry on join")
		}
	}
	if err := r.stores.Rooms.AddParticipant(ctx, roomID, identity); err != nil {
		r.log.WithError(err).Warn("failed to persist participant")
	}

	if waitingID := s.waiting(); waitingID != "" {
		r.leaveGroup(r.waiting, waitingID, s.ID)
	}
	// Switching rooms on one transport: leave the old broadcast group
	// first so the old room stops seeing this session.
	if prev := s.room(); prev != "" && prev != roomID {
		r.leaveGroup(r.rooms, prev, s.ID)
		r.broadcastRoom(prev, mustEvent(EvtUserDisconnected, s.ID), "")
		r.broadcastParticipants(ctx, prev)
	}
	r.joinGroup(r.rooms, roomID, s)
	s.setRoom(roomID)

	// Existing members learn about the new peer and become the offering
	// side of each new connection.
	r.broadcastRoom(roomID, mustEvent(EvtUserConnected, userConnectedBroadcast{
		UserID: s.ID,
		User:   s.Identity,
		IsHost: isHost,
	}), s.ID)

	s.enqueue(mustEvent(EvtWbPermissions, wbPermissionsPayload{
		CanWrite: room.CanWriteWhiteboard(identity),
	}))

	r.broadcastParticipants(ctx, roomID)

	r.log.WithFields(logrus.Fields{
		"room":     roomID,
		"identity": identity,
		"isHost":   isHost,
	}).Info("identity joined room")
}

// broadcastParticipants sends the full membership view to the room. Host
// role and whiteboard permission are computed from the room record at
// broadcast time, never from cached session state.
func (r *Relay) broadcastParticipants(ctx context.Context, roomID string) {
	room, err := r.stores.Rooms.FindByCode(ctx, roomID)
	if err != nil {
		if err != store.ErrRoomNotFound {
			r.log.WithError(err).Warn("failed to load room for rebroadcast")
		}
		return
	}

	sessions := r.roomSessions(roomID)
	participants := make([]participantEntry, 0, len(sessions))
	for _, s := range sessions {
		participants = append(participants, participantEntry{
			SessionID:  s.ID,
			User:       s.Identity,
			IsHost:     room.IsHost(s.Identity.ID),
			IsMuted:    s.muted(),
			CanWriteWb: room.CanWriteWhiteboard(s.Identity.ID),
		})
	}

	r.broadcastRoom(roomID, mustEvent(EvtParticipants, participants), "")
}

// notifyHostWaitingList sends the current waiting list to the host's
// session, if the host is connected.
func (r *Relay) notifyHostWaitingList(ctx context.Context, roomID string) {
	room, err := r.stores.Rooms.FindByCode(ctx, roomID)
	if err != nil {
		return
	}

	waiting := r.waitingSessions(roomID)
	list := make([]waitingEntry, 0, len(waiting))
	for _, s := range waiting {
		list = append(list, waitingEntry{SessionID: s.ID, User: s.Identity})
	}

	host := findByIdentity(r.roomSessions(roomID), room.HostID)
	if host == nil {
		return
	}
	host.enqueue(mustEvent(EvtWaitingList, list))
}
