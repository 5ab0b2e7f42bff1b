// Package client implements the websocket side of a participant: it
// dials the relay, keeps the connection alive, and exposes typed send
// helpers plus a channel of inbound events for the caller to fold.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/liteclass/liteclass/internal/relay"
)

const (
	writeWait = 10 * time.Second
	sendDepth = 64
)

// Client is one authenticated websocket connection to the relay.
type Client struct {
	conn *websocket.Conn
	log  *logrus.Logger

	send    chan relay.Event
	events  chan relay.Event
	done    chan struct{}
	closing chan struct{}

	closeOnce sync.Once
}

// Dial connects and authenticates against the relay. serverURL is the
// http(s) base address; the token rides the query string the same way a
// browser client would send it.
func Dial(ctx context.Context, serverURL, token string, log *logrus.Logger) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{
		conn:    conn,
		log:     log,
		send:    make(chan relay.Event, sendDepth),
		events:  make(chan relay.Event, sendDepth),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Events delivers inbound relay events in arrival order. The channel is
// closed when the connection drops.
func (c *Client) Events() <-chan relay.Event {
	return c.events
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		close(c.events)
		close(c.done)
		c.Close()
	}()
	for {
		var evt relay.Event
		if err := c.conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).Warn("relay connection lost")
			}
			return
		}
		// A consumer that stopped draining must not pin this goroutine
		// once the buffer fills; Close unblocks it.
		select {
		case c.events <- evt:
		case <-c.closing:
			return
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case evt := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				c.log.WithError(err).Debug("relay write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send queues one outbound event. Returns false when the connection is
// gone or the queue is saturated.
func (c *Client) Send(eventType string, payload any) bool {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.log.WithError(err).Error("encode outbound event")
			return false
		}
		data = b
	}
	select {
	case c.send <- relay.Event{Type: eventType, Data: data}:
		return true
	case <-c.done:
		return false
	default:
		c.log.WithField("type", eventType).Warn("outbound queue full, dropping event")
		return false
	}
}

// Outbound payload shapes. These mirror what the relay decodes; the
// relay owns the wire contract.

// JoinRoom asks to enter a room. A non-member lands in the waiting room
// and sees waiting-for-approval instead of the join broadcasts.
func (c *Client) JoinRoom(roomID string) {
	c.Send(relay.EvtJoinRoom, map[string]string{"roomId": roomID})
}

// SendSignal forwards one opaque negotiation payload to a single peer.
func (c *Client) SendSignal(targetID string, signal json.RawMessage) {
	c.Send(relay.EvtSignal, map[string]any{
		"target": targetID,
		"signal": signal,
	})
}

// ToggleMute announces this participant's own mute state.
func (c *Client) ToggleMute(roomID string, muted bool) {
	c.Send(relay.EvtToggleMute, map[string]any{
		"roomId":  roomID,
		"isMuted": muted,
	})
}

// SendReaction publishes a transient reaction to the room.
func (c *Client) SendReaction(roomID, reaction string) {
	c.Send(relay.EvtSendReaction, map[string]string{
		"roomId":   roomID,
		"reaction": reaction,
	})
}

// SendChat publishes a chat message to the room.
func (c *Client) SendChat(roomID string, payload any) {
	c.Send(relay.EvtSendMessage, payload)
}

// HostAction issues one moderation action. The relay enforces that only
// the host's session may do this.
func (c *Client) HostAction(action, roomID, targetID, targetEmail string) {
	c.Send(relay.EvtHostAction, map[string]string{
		"action":      action,
		"roomId":      roomID,
		"targetId":    targetID,
		"targetEmail": targetEmail,
	})
}

// WbJoin subscribes to the room's whiteboard and requests its history.
func (c *Client) WbJoin(roomID string) {
	c.Send(relay.EvtWbJoin, map[string]string{"roomId": roomID})
}

// SendWbEvent publishes one whiteboard log entry.
func (c *Client) SendWbEvent(roomID, entryType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		c.log.WithError(err).Error("encode whiteboard event")
		return
	}
	c.Send(relay.EvtWbEvent, map[string]any{
		"roomId": roomID,
		"type":   entryType,
		"data":   json.RawMessage(payload),
	})
}

// WbClear asks the relay to wipe the whiteboard. Host only.
func (c *Client) WbClear(roomID string) {
	c.Send(relay.EvtWbClear, map[string]string{"roomId": roomID})
}

// WbSaveClear snapshots the whiteboard into the room materials and then
// wipes it. Host only.
func (c *Client) WbSaveClear(roomID string) {
	c.Send(relay.EvtWbSaveClear, map[string]string{"roomId": roomID})
}

// CreatePoll starts a timed poll. Host only.
func (c *Client) CreatePoll(roomID, question string, options []string, durationSeconds int, correctOptionIndex *int) {
	c.Send(relay.EvtCreatePoll, map[string]any{
		"roomId":             roomID,
		"question":           question,
		"options":            options,
		"duration":           durationSeconds,
		"correctOptionIndex": correctOptionIndex,
	})
}

// SubmitVote casts this participant's vote. The relay keeps only the
// first vote per participant per poll.
func (c *Client) SubmitVote(pollID string, optionIndex int) {
	c.Send(relay.EvtSubmitVote, map[string]any{
		"pollId":      pollID,
		"optionIndex": optionIndex,
	})
}

// EndPoll closes a running poll before its timer fires. Host only.
func (c *Client) EndPoll(roomID, pollID string) {
	c.Send(relay.EvtEndPollManual, map[string]string{
		"roomId": roomID,
		"pollId": pollID,
	})
}

// GetActivePoll asks for the running poll, if any. Late joiners use this
// to catch up with the remaining time.
func (c *Client) GetActivePoll(roomID string) {
	c.Send(relay.EvtGetActivePoll, map[string]string{"roomId": roomID})
}

// RefreshMaterials nudges everyone in the room to refetch materials.
func (c *Client) RefreshMaterials(roomID string) {
	c.Send(relay.EvtRefreshMaterials, map[string]string{"roomId": roomID})
}

// EndMeeting terminates the room for everyone. Host only.
func (c *Client) EndMeeting(roomID string) {
	c.Send(relay.EvtEndMeeting, map[string]string{"roomId": roomID})
}
