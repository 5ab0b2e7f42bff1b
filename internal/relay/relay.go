package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/liteclass/liteclass/internal/auth"
	"github.com/liteclass/liteclass/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware.
		return true
	},
}

// Options tune relay behavior beyond the stores it persists through.
type Options struct {
	// KeepWaitingOnDisconnect leaves a disconnecting participant in the
	// persisted waiting set, preserving their place in the queue.
	KeepWaitingOnDisconnect bool
}

// Relay authenticates transports, manages room and waiting-room
// membership, forwards opaque negotiation payloads and fans out
// collaboration events. It never interprets media or signaling payloads.
type Relay struct {
	stores store.Stores
	opts   Options
	log    *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session // room code -> session id -> session
	waiting  map[string]map[string]*Session
}

func New(stores store.Stores, opts Options, log *logrus.Logger) *Relay {
	return &Relay{
		stores:   stores,
		opts:     opts,
		log:      log,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
		waiting:  make(map[string]map[string]*Session),
	}
}

// HandleWS upgrades an authenticated request to a websocket transport.
// Transports without a valid identity credential are rejected before any
// room operation is accepted.
func (r *Relay) HandleWS(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := credentialFromRequest(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		identity, err := auth.VerifyToken(jwtSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			r.log.WithError(err).Warn("failed to upgrade connection")
			return
		}

		s := &Session{
			ID:       uuid.New().String(),
			Identity: *identity,
			conn:     conn,
			send:     make(chan []byte, 256),
		}

		r.mu.Lock()
		r.sessions[s.ID] = s
		r.mu.Unlock()

		r.log.WithFields(logrus.Fields{
			"session":  s.ID,
			"identity": identity.ID,
		}).Info("transport connected")

		go s.writePump()
		go s.readPump(r)
	}
}

func credentialFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// handleEvent routes one inbound transport event. Each event is handled
// independently as it arrives.
func (r *Relay) handleEvent(s *Session, evt Event) {
	ctx := context.Background()

	switch evt.Type {
	case EvtJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleJoinRoom(ctx, s, p.RoomID)
		}
	case EvtSignal:
		r.handleSignal(s, evt.Data)
	case EvtHostAction:
		var p hostActionPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleHostAction(ctx, s, p)
		}
	case EvtToggleMute:
		var p toggleMutePayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleToggleMute(s, p)
		}
	case EvtSendReaction:
		var p reactionPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleReaction(s, p)
		}
	case EvtSendMessage:
		// Chat is relay-only: fan out to the room, excluding the sender,
		// with no interpretation or persistence.
		r.broadcastRoom(s.room(), Event{Type: EvtReceiveMessage, Data: evt.Data}, s.ID)
	case EvtRefreshMaterials:
		r.broadcastRoom(s.room(), mustEvent(EvtMaterialsUpdated, nil), "")
	case EvtWbJoin:
		var p roomScopedPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleWbJoin(ctx, s, p.RoomID)
		}
	case EvtWbEvent:
		var p wbEventPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleWbEvent(ctx, s, p)
		}
	case EvtWbClear:
		var p roomScopedPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleWbClear(ctx, s, p.RoomID)
		}
	case EvtWbSaveClear:
		var p roomScopedPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleWbSaveClear(ctx, s, p.RoomID)
		}
	case EvtCreatePoll:
		var p createPollPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleCreatePoll(ctx, s, p)
		}
	case EvtSubmitVote:
		var p submitVotePayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleSubmitVote(ctx, s, p)
		}
	case EvtEndPollManual:
		var p endPollPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleEndPollManual(ctx, s, p)
		}
	case EvtGetActivePoll:
		var p roomScopedPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleGetActivePoll(ctx, s, p.RoomID)
		}
	case EvtEndMeeting:
		var p roomScopedPayload
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			r.handleEndMeeting(ctx, s, p.RoomID)
		}
	default:
		r.log.WithFields(logrus.Fields{
			"session": s.ID,
			"type":    evt.Type,
		}).Debug("unknown event type")
	}
}

// handleSignal forwards the payload verbatim to exactly one target
// transport, tagged with the sender's session id.
func (r *Relay) handleSignal(s *Session, data json.RawMessage) {
	var p signalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	r.sendTo(p.Target, mustEvent(EvtSignal, signalPayload{
		Signal:   p.Signal,
		CallerID: s.ID,
	}))
}

func (r *Relay) handleToggleMute(s *Session, p toggleMutePayload) {
	s.setMuted(p.IsMuted)
	r.broadcastRoom(p.RoomID, mustEvent(EvtUserToggledMute, muteBroadcast{
		SessionID: s.ID,
		IsMuted:   p.IsMuted,
	}), s.ID)
}

func (r *Relay) handleReaction(s *Session, p reactionPayload) {
	user := s.Identity
	r.broadcastRoom(p.RoomID, mustEvent(EvtReactionReceived, reactionBroadcast{
		SessionID: s.ID,
		Reaction:  p.Reaction,
		User:      &user,
	}), "")
}

// disconnect tears down a session on transport close: it leaves every
// room and waiting group, notifies remaining members and triggers a
// membership rebroadcast.
func (r *Relay) disconnect(s *Session) {
	ctx := context.Background()

	if roomID := s.room(); roomID != "" {
		r.leaveGroup(r.rooms, roomID, s.ID)
		r.broadcastRoom(roomID, mustEvent(EvtUserDisconnected, s.ID), "")
		r.broadcastParticipants(ctx, roomID)
	}

	if waitingID := s.waiting(); waitingID != "" {
		r.leaveGroup(r.waiting, waitingID, s.ID)
		if !r.opts.KeepWaitingOnDisconnect {
			if err := r.stores.Rooms.RemoveWaiting(ctx, waitingID, s.Identity.ID); err != nil {
				r.log.WithError(err).Warn("failed to clear waiting entry on disconnect")
			}
		}
		r.notifyHostWaitingList(ctx, waitingID)
	}

	r.mu.Lock()
	delete(r.sessions, s.ID)
	r.mu.Unlock()

	s.shutdown()

	r.log.WithFields(logrus.Fields{
		"session":  s.ID,
		"identity": s.Identity.ID,
	}).Info("transport disconnected")
}

// --- registry helpers ---

func (r *Relay) joinGroup(groups map[string]map[string]*Session, key string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := groups[key]
	if !ok {
		group = make(map[string]*Session)
		groups[key] = group
	}
	group[s.ID] = s
}

func (r *Relay) leaveGroup(groups map[string]map[string]*Session, key, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group, ok := groups[key]; ok {
		delete(group, sessionID)
		if len(group) == 0 {
			delete(groups, key)
		}
	}
}

func (r *Relay) roomSessions(roomID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.rooms[roomID]))
	for _, s := range r.rooms[roomID] {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Relay) waitingSessions(roomID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.waiting[roomID]))
	for _, s := range r.waiting[roomID] {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Relay) broadcastRoom(roomID string, evt Event, excludeSessionID string) {
	if roomID == "" {
		return
	}
	for _, s := range r.roomSessions(roomID) {
		if s.ID == excludeSessionID {
			continue
		}
		if !s.enqueue(evt) {
			r.log.WithField("session", s.ID).Debug("dropping event, send buffer full")
		}
	}
}

func (r *Relay) sendTo(sessionID string, evt Event) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		r.log.WithField("session", sessionID).Debug("target session not found")
		return
	}
	s.enqueue(evt)
}

// findByIdentity locates a session in the given group by identity.
func findByIdentity(sessions []*Session, identityID string) *Session {
	for _, s := range sessions {
		if s.Identity.ID == identityID {
			return s
		}
	}
	return nil
}

// now is stubbed in poll tests.
var now = time.Now
