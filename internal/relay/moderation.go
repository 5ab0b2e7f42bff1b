package relay

import (
	"context"

	"github.com/sirupsen/logrus"
)

// handleHostAction executes a moderation command. Only the room's host
// identity is authorized; everyone else gets an error reply and no state
// changes.
func (r *Relay) handleHostAction(ctx context.Context, s *Session, p hostActionPayload) {
	room, err := r.stores.Rooms.FindByCode(ctx, p.RoomID)
	if err != nil || !room.IsHost(s.Identity.ID) {
		s.enqueue(errorEvent("Unauthorized host action"))
		return
	}

	log := r.log.WithFields(logrus.Fields{
		"room":   p.RoomID,
		"action": p.Action,
		"target": p.TargetEmail,
	})

	switch p.Action {
	case ActionApproveUser:
		if err := r.stores.Rooms.RemoveWaiting(ctx, p.RoomID, p.TargetEmail); err != nil {
			log.WithError(err).Warn("failed to clear waiting entry")
		}
		if err := r.stores.Rooms.AddParticipant(ctx, p.RoomID, p.TargetEmail); err != nil {
			log.WithError(err).Warn("failed to persist participant")
		}

		// The approved transport is parked in the waiting group. Granting
		// access tells it to re-join; admission then runs the normal path.
		if target := findByIdentity(r.waitingSessions(p.RoomID), p.TargetEmail); target != nil {
			r.leaveGroup(r.waiting, p.RoomID, target.ID)
			target.setWaiting("")
			target.enqueue(mustEvent(EvtAccessGranted, nil))
		}
		r.notifyHostWaitingList(ctx, p.RoomID)

	case ActionDenyUser:
		if err := r.stores.Rooms.RemoveWaiting(ctx, p.RoomID, p.TargetEmail); err != nil {
			log.WithError(err).Warn("failed to clear waiting entry")
		}
		if target := findByIdentity(r.waitingSessions(p.RoomID), p.TargetEmail); target != nil {
			r.leaveGroup(r.waiting, p.RoomID, target.ID)
			target.setWaiting("")
			target.enqueue(mustEvent(EvtAccessDenied, nil))
			target.shutdown()
		}
		r.notifyHostWaitingList(ctx, p.RoomID)

	case ActionKickUser:
		if err := r.stores.Rooms.RemoveParticipant(ctx, p.RoomID, p.TargetEmail); err != nil {
			log.WithError(err).Warn("failed to remove participant")
		}
		if err := r.stores.Rooms.RevokeWhiteboard(ctx, p.RoomID, p.TargetEmail); err != nil {
			log.WithError(err).Warn("failed to revoke whiteboard access")
		}

		target := r.findRoomTarget(p.RoomID, p.TargetID, p.TargetEmail)
		if target != nil {
			r.leaveGroup(r.rooms, p.RoomID, target.ID)
			target.setRoom("")
			target.enqueue(mustEvent(EvtKicked, nil))
			target.shutdown()
			r.broadcastRoom(p.RoomID, mustEvent(EvtUserDisconnected, target.ID), "")
		}
		r.broadcastParticipants(ctx, p.RoomID)

	case ActionToggleWbAccess:
		allowed := room.CanWriteWhiteboard(p.TargetEmail) && !room.IsHost(p.TargetEmail)
		if allowed {
			err = r.stores.Rooms.RevokeWhiteboard(ctx, p.RoomID, p.TargetEmail)
		} else {
			err = r.stores.Rooms.GrantWhiteboard(ctx, p.RoomID, p.TargetEmail)
		}
		if err != nil {
			log.WithError(err).Warn("failed to toggle whiteboard access")
		}

		if target := findByIdentity(r.roomSessions(p.RoomID), p.TargetEmail); target != nil {
			target.enqueue(mustEvent(EvtWbPermissions, wbPermissionsPayload{CanWrite: !allowed}))
		}
		r.broadcastParticipants(ctx, p.RoomID)

	case ActionMuteUser:
		// Force-mute: the target disables its own track and acknowledges
		// through the regular toggle-mute path; the broadcast here keeps
		// everyone's view consistent immediately.
		target := r.findRoomTarget(p.RoomID, p.TargetID, p.TargetEmail)
		if target == nil {
			return
		}
		target.setMuted(true)
		target.enqueue(mustEvent(EvtForceMute, nil))
		r.broadcastRoom(p.RoomID, mustEvent(EvtUserToggledMute, muteBroadcast{
			SessionID: target.ID,
			IsMuted:   true,
		}), "")

	default:
		log.Debug("unknown host action")
	}
}

// findRoomTarget locates a room session by session id first, falling
// back to identity.
func (r *Relay) findRoomTarget(roomID, sessionID, identityID string) *Session {
	sessions := r.roomSessions(roomID)
	if sessionID != "" {
		for _, s := range sessions {
			if s.ID == sessionID {
				return s
			}
		}
	}
	return findByIdentity(sessions, identityID)
}

// handleEndMeeting deletes the room and every room-scoped artifact,
// broadcasts the terminal event and forcibly disconnects every transport
// in the room. Host only.
func (r *Relay) handleEndMeeting(ctx context.Context, s *Session, roomID string) {
	room, err := r.stores.Rooms.FindByCode(ctx, roomID)
	if err != nil {
		return
	}
	if !room.IsHost(s.Identity.ID) {
		s.enqueue(errorEvent("Unauthorized to end meeting"))
		return
	}

	if err := r.stores.Rooms.Delete(ctx, roomID); err != nil {
		r.log.WithError(err).Warn("failed to delete room")
	}
	if err := r.stores.Whiteboard.Clear(ctx, roomID); err != nil {
		r.log.WithError(err).Warn("failed to delete whiteboard log")
	}
	if err := r.stores.Materials.DeleteForRoom(ctx, roomID); err != nil {
		r.log.WithError(err).Warn("failed to delete materials")
	}
	if err := r.stores.Polls.DeleteForRoom(ctx, roomID); err != nil {
		r.log.WithError(err).Warn("failed to delete poll")
	}

	sessions := r.roomSessions(roomID)
	r.broadcastRoom(roomID, mustEvent(EvtMeetingEnded, nil), "")
	for _, member := range sessions {
		r.leaveGroup(r.rooms, roomID, member.ID)
		member.setRoom("")
		member.shutdown()
	}

	r.log.WithField("room", roomID).Info("meeting ended by host")
}
