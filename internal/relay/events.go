package relay

import (
	"encoding/json"

	"github.com/liteclass/liteclass/internal/models"
)

// Event is the wire envelope for every websocket message in both
// directions.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client-to-server event types.
const (
	EvtJoinRoom         = "join-room"
	EvtSignal           = "signal"
	EvtHostAction       = "host-action"
	EvtToggleMute       = "toggle-mute"
	EvtSendReaction     = "send-reaction"
	EvtSendMessage      = "send-message"
	EvtRefreshMaterials = "refresh-materials"
	EvtWbJoin           = "wb-join"
	EvtWbEvent          = "wb-event"
	EvtWbClear          = "wb-clear"
	EvtWbSaveClear      = "wb-save-clear"
	EvtCreatePoll       = "create-poll"
	EvtSubmitVote       = "submit-vote"
	EvtEndPollManual    = "end-poll-manual"
	EvtGetActivePoll    = "get-active-poll"
	EvtEndMeeting       = "end-meeting"
)

// Server-to-client event types.
const (
	EvtError              = "error"
	EvtUserConnected      = "user-connected"
	EvtUserDisconnected   = "user-disconnected"
	EvtWaitingForApproval = "waiting-for-approval"
	EvtAccessGranted      = "access-granted"
	EvtAccessDenied       = "access-denied"
	EvtKicked             = "kicked"
	EvtForceMute          = "force-mute"
	EvtWbPermissions      = "wb-permissions-update"
	EvtParticipants       = "participants-update"
	EvtWaitingList        = "waiting-list-update"
	EvtUserToggledMute    = "user-toggled-mute"
	EvtReactionReceived   = "reaction-received"
	EvtReceiveMessage     = "receive-message"
	EvtMaterialsUpdated   = "materials-updated"
	EvtWbHistory          = "wb-history"
	EvtPollStarted        = "poll-started"
	EvtPollEnded          = "poll-ended"
	EvtMeetingEnded       = "meeting-ended"
)

// Host moderation actions.
const (
	ActionApproveUser    = "approve-user"
	ActionDenyUser       = "deny-user"
	ActionKickUser       = "kick-user"
	ActionToggleWbAccess = "toggle-wb-access"
	ActionMuteUser       = "mute-user"
)

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// signalPayload is relayed verbatim: the relay addresses it and tags the
// sender, but never parses Signal itself.
type signalPayload struct {
	Target   string          `json:"target,omitempty"`
	Signal   json.RawMessage `json:"signal"`
	CallerID string          `json:"callerID,omitempty"`
}

type hostActionPayload struct {
	Action      string `json:"action"`
	RoomID      string `json:"roomId"`
	TargetID    string `json:"targetId,omitempty"`    // session id, when known
	TargetEmail string `json:"targetEmail,omitempty"` // identity, for store ops
}

type toggleMutePayload struct {
	RoomID  string `json:"roomId"`
	IsMuted bool   `json:"isMuted"`
}

type muteBroadcast struct {
	SessionID string `json:"socketId"`
	IsMuted   bool   `json:"isMuted"`
}

type reactionPayload struct {
	RoomID   string `json:"roomId"`
	Reaction string `json:"reaction"`
}

type reactionBroadcast struct {
	SessionID string           `json:"socketId"`
	Reaction  string           `json:"reaction"`
	User      *models.Identity `json:"user,omitempty"`
}

type roomScopedPayload struct {
	RoomID string `json:"roomId"`
}

type userConnectedBroadcast struct {
	UserID string          `json:"userId"`
	User   models.Identity `json:"user"`
	IsHost bool            `json:"isHost"`
}

type wbPermissionsPayload struct {
	CanWrite bool `json:"canWrite"`
}

// participantEntry is one row of the full membership rebroadcast. Role
// and whiteboard permission are looked up from the room record at
// broadcast time.
type participantEntry struct {
	SessionID  string          `json:"socketId"`
	User       models.Identity `json:"user"`
	IsHost     bool            `json:"isHost"`
	IsMuted    bool            `json:"isMuted"`
	CanWriteWb bool            `json:"canWriteWb"`
}

type waitingEntry struct {
	SessionID string          `json:"socketId"`
	User      models.Identity `json:"user"`
}

type wbEventPayload struct {
	RoomID string          `json:"roomId"`
	UserID string          `json:"userId,omitempty"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

type createPollPayload struct {
	RoomID             string   `json:"roomId"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	Duration           int      `json:"duration"`
	CorrectOptionIndex *int     `json:"correctOptionIndex,omitempty"`
}

type pollStartedBroadcast struct {
	ID                 string   `json:"id"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	Duration           float64  `json:"duration"` // seconds; remaining for late joiners
	CorrectOptionIndex *int     `json:"correctOptionIndex,omitempty"`
}

type submitVotePayload struct {
	PollID      string `json:"pollId"`
	OptionIndex int    `json:"optionIndex"`
}

type endPollPayload struct {
	PollID string `json:"pollId"`
	RoomID string `json:"roomId"`
}

type pollEndedBroadcast struct {
	ID         string `json:"id"`
	Results    []int  `json:"results"`
	TotalVotes int    `json:"totalVotes"`
}

func mustEvent(eventType string, payload any) Event {
	if payload == nil {
		return Event{Type: eventType}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload structs are plain data; marshaling cannot fail at runtime.
		panic(err)
	}
	return Event{Type: eventType, Data: data}
}

func errorEvent(message string) Event {
	return mustEvent(EvtError, message)
}
