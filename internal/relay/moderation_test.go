package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclass/liteclass/internal/store"
)

// joinedPair seeds a room with a connected host and one admitted member,
// with their queues drained.
func joinedPair(t *testing.T, r *Relay, stores store.Stores) (host, member *Session) {
	t.Helper()
	seedRoom(t, stores, "ROOM01", "host@example.com")
	host = newTestSession(r, "sess-h", "host@example.com", "Host")
	member = newTestSession(r, "sess-m", "member@example.com", "Member")
	r.handleJoinRoom(context.Background(), host, "ROOM01")
	require.NoError(t, stores.Rooms.AddParticipant(context.Background(), "ROOM01", member.Identity.ID))
	r.handleJoinRoom(context.Background(), member, "ROOM01")
	drainEvents(t, host)
	drainEvents(t, member)
	return host, member
}

func TestHostActionRejectedForNonHost(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)

	r.handleEvent(member, mustEvent(EvtHostAction, hostActionPayload{
		Action:      ActionKickUser,
		RoomID:      "ROOM01",
		TargetEmail: host.Identity.ID,
	}))

	requireEvent(t, drainEvents(t, member), EvtError)
	assert.Empty(t, drainEvents(t, host), "no state change, no broadcast")

	room, err := stores.Rooms.FindByCode(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Contains(t, room.Participants, host.Identity.ID)
}

func TestDenyUserDisconnectsGuest(t *testing.T) {
	r, stores := newTestRelay(Options{})
	seedRoom(t, stores, "ROOM01", "host@example.com")
	host := newTestSession(r, "sess-h", "host@example.com", "Host")
	guest := newTestSession(r, "sess-g", "guest@example.com", "Guest")
	r.handleJoinRoom(context.Background(), host, "ROOM01")
	r.handleJoinRoom(context.Background(), guest, "ROOM01")
	drainEvents(t, host)
	drainEvents(t, guest)

	r.handleEvent(host, mustEvent(EvtHostAction, hostActionPayload{
		Action:      ActionDenyUser,
		RoomID:      "ROOM01",
		TargetEmail: "guest@example.com",
	}))

	// The terminal event is queued before the transport is shut down, so
	// the guest still sees it.
	requireEvent(t, drainEvents(t, guest), EvtAccessDenied)
	_, open := <-guest.send
	assert.False(t, open, "denied transport is closed")

	room, err := stores.Rooms.FindByCode(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Empty(t, room.WaitingRoom)
	assert.NotContains(t, room.Participants, "guest@example.com")
}

func TestKickRemovesParticipantEverywhere(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)
	require.NoError(t, stores.Rooms.GrantWhiteboard(context.Background(), "ROOM01", member.Identity.ID))

	r.handleEvent(host, mustEvent(EvtHostAction, hostActionPayload{
		Action:      ActionKickUser,
		RoomID:      "ROOM01",
		TargetID:    member.ID,
		TargetEmail: member.Identity.ID,
	}))

	requireEvent(t, drainEvents(t, member), EvtKicked)
	_, open := <-member.send
	assert.False(t, open, "kicked transport is closed")

	hostEvents := drainEvents(t, host)
	ud := requireEvent(t, hostEvents, EvtUserDisconnected)
	var sessionID string
	require.NoError(t, json.Unmarshal(ud.Data, &sessionID))
	assert.Equal(t, member.ID, sessionID)

	parts := requireEvent(t, hostEvents, EvtParticipants)
	var entries []participantEntry
	require.NoError(t, json.Unmarshal(parts.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, host.ID, entries[0].SessionID)

	room, err := stores.Rooms.FindByCode(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.NotContains(t, room.Participants, member.Identity.ID)
	assert.NotContains(t, room.WhiteboardAccess, member.Identity.ID, "kick revokes the whiteboard grant")
}

func TestToggleWhiteboardAccessRoundTrip(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)

	toggle := mustEvent(EvtHostAction, hostActionPayload{
		Action:      ActionToggleWbAccess,
		RoomID:      "ROOM01",
		TargetEmail: member.Identity.ID,
	})

	r.handleEvent(host, toggle)
	perms := requireEvent(t, drainEvents(t, member), EvtWbPermissions)
	var wp wbPermissionsPayload
	require.NoError(t, json.Unmarshal(perms.Data, &wp))
	assert.True(t, wp.CanWrite)

	room, err := stores.Rooms.FindByCode(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Contains(t, room.WhiteboardAccess, member.Identity.ID)

	r.handleEvent(host, toggle)
	perms = requireEvent(t, drainEvents(t, member), EvtWbPermissions)
	require.NoError(t, json.Unmarshal(perms.Data, &wp))
	assert.False(t, wp.CanWrite)

	room, err = stores.Rooms.FindByCode(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.NotContains(t, room.WhiteboardAccess, member.Identity.ID)
}

func TestForceMuteTargetsOneParticipant(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)

	r.handleEvent(host, mustEvent(EvtHostAction, hostActionPayload{
		Action:   ActionMuteUser,
		RoomID:   "ROOM01",
		TargetID: member.ID,
	}))

	memberEvents := drainEvents(t, member)
	requireEvent(t, memberEvents, EvtForceMute)
	assert.True(t, member.muted())

	mute := requireEvent(t, memberEvents, EvtUserToggledMute)
	var mb muteBroadcast
	require.NoError(t, json.Unmarshal(mute.Data, &mb))
	assert.Equal(t, member.ID, mb.SessionID)
	assert.True(t, mb.IsMuted)

	requireEvent(t, drainEvents(t, host), EvtUserToggledMute)
	assert.False(t, host.muted())
}

func TestEndMeetingRequiresHost(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)

	r.handleEvent(member, mustEvent(EvtEndMeeting, roomScopedPayload{RoomID: "ROOM01"}))

	requireEvent(t, drainEvents(t, member), EvtError)
	assert.Empty(t, drainEvents(t, host))
	_, err := stores.Rooms.FindByCode(context.Background(), "ROOM01")
	require.NoError(t, err)
}

func TestEndMeetingIsTerminal(t *testing.T) {
	r, stores := newTestRelay(Options{})
	host, member := joinedPair(t, r, stores)
	require.NoError(t, stores.Whiteboard.Append(context.Background(), wbEntry("ROOM01", "host@example.com", `{"id":"s1","points":[]}`)))

	r.handleEvent(host, mustEvent(EvtEndMeeting, roomScopedPayload{RoomID: "ROOM01"}))

	for _, s := range []*Session{host, member} {
		events := drainEvents(t, s)
		require.Len(t, eventsOfType(events, EvtMeetingEnded), 1, "exactly one terminal notification")
		_, open := <-s.send
		assert.False(t, open, "every transport is closed")
	}

	_, err := stores.Rooms.FindByCode(context.Background(), "ROOM01")
	assert.ErrorIs(t, err, store.ErrRoomNotFound)

	entries, err := stores.Whiteboard.History(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Empty(t, entries, "room artifacts are deleted with the room")

	// The room code is dead: a fresh transport cannot join it.
	late := newTestSession(r, "sess-l", "member@example.com", "Member")
	r.handleEvent(late, mustEvent(EvtJoinRoom, joinRoomPayload{RoomID: "ROOM01"}))
	requireEvent(t, drainEvents(t, late), EvtError)
}
