package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liteclass/liteclass/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; SDP payloads and whiteboard
	// strokes both fit comfortably.
	maxMessageSize = 64 * 1024
)

// Session is the relay's record of one live transport: the verified
// identity, the room (or waiting group) it currently belongs to, and the
// mute flag. It is destroyed on transport disconnect.
type Session struct {
	ID       string
	Identity models.Identity

	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	roomID    string // joined room code, empty when not admitted
	waitingIn string // room code whose waiting group we sit in
	isMuted   bool
	closed    bool
}

// shutdown closes the send channel exactly once; the write pump drains
// queued events, sends a close frame and tears the connection down.
func (s *Session) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.send)
}

func (s *Session) setRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.waitingIn = ""
}

func (s *Session) setWaiting(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitingIn = roomID
}

func (s *Session) room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) waiting() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingIn
}

func (s *Session) setMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isMuted = muted
}

func (s *Session) muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMuted
}

// enqueue hands an event to the write pump. A slow consumer loses
// events rather than blocking the relay.
func (s *Session) enqueue(evt Event) bool {
	data, err := json.Marshal(evt)
	if err != nil {
		return false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	defer s.mu.Unlock()
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// readPump pumps events from the websocket connection to the relay.
// There is at most one reader per connection.
func (s *Session) readPump(r *Relay) {
	defer func() {
		r.disconnect(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				r.log.WithField("session", s.ID).WithError(err).Debug("websocket read error")
			}
			break
		}

		var evt Event
		if err := json.Unmarshal(message, &evt); err != nil {
			r.log.WithField("session", s.ID).WithError(err).Warn("failed to parse event")
			continue
		}

		r.handleEvent(s, evt)
	}
}

// writePump pumps events from the send channel to the websocket
// connection. There is at most one writer per connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
