package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/liteclass/liteclass/config"
	"github.com/liteclass/liteclass/internal/client"
	"github.com/liteclass/liteclass/internal/media"
	"github.com/liteclass/liteclass/internal/models"
	"github.com/liteclass/liteclass/internal/peer"
	"github.com/liteclass/liteclass/internal/relay"
	"github.com/liteclass/liteclass/internal/whiteboard"
)

// session is one live attendance of a room: the relay connection, the
// peer mesh, and the local whiteboard replica.
type session struct {
	roomID string
	cl     *client.Client
	orch   *peer.Orchestrator
	board  *whiteboard.Board
	log    *logrus.Logger

	synced bool
}

// wsSignaler routes the orchestrator's outbound negotiation payloads
// through the relay connection.
type wsSignaler struct {
	cl  *client.Client
	log *logrus.Logger
}

func (s *wsSignaler) SendSignal(targetID string, payload peer.SignalPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).Error("encode signal")
		return
	}
	s.cl.SendSignal(targetID, data)
}

func runSession(ctx context.Context, opts *rootOptions, roomID string) error {
	token, err := opts.resolveToken(ctx)
	if err != nil {
		return err
	}

	cl, err := client.Dial(ctx, opts.server, token, opts.log)
	if err != nil {
		return err
	}
	defer cl.Close()

	capture, err := media.NewCaptureTrack()
	if err != nil {
		return fmt.Errorf("init audio track: %w", err)
	}

	cfg := config.Load()
	orch := peer.NewOrchestrator(peer.NewPionFactory(cfg), capture, &wsSignaler{cl: cl, log: opts.log}, opts.log)
	defer orch.Close()

	s := &session{
		roomID: roomID,
		cl:     cl,
		orch:   orch,
		board:  whiteboard.NewBoard(),
		log:    opts.log,
	}

	cl.JoinRoom(roomID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-cl.Events():
			if !ok {
				return fmt.Errorf("connection to server lost")
			}
			if done, err := s.handle(evt); done {
				return err
			}
		}
	}
}

// handle folds one relay event. It returns done=true when the session
// is over, with err carrying the reason when the ending was not benign.
func (s *session) handle(evt relay.Event) (bool, error) {
	switch evt.Type {
	case relay.EvtWaitingForApproval:
		s.log.Info("waiting for the host to let you in")

	case relay.EvtAccessGranted:
		s.log.Info("access granted, joining room")
		// Membership is now recorded server-side; a second join lands us
		// in the room proper.
		s.cl.JoinRoom(s.roomID)

	case relay.EvtAccessDenied:
		return true, fmt.Errorf("the host denied your request to join")

	case relay.EvtKicked:
		return true, fmt.Errorf("you were removed from the room")

	case relay.EvtMeetingEnded:
		s.log.Info("the host ended the meeting")
		return true, nil

	case relay.EvtUserConnected:
		var p struct {
			UserID string          `json:"userId"`
			User   models.Identity `json:"user"`
			IsHost bool            `json:"isHost"`
		}
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return false, nil
		}
		s.log.WithField("user", p.User.Name).Info("peer joined")
		s.orch.HandlePeerConnected(p.UserID)

	case relay.EvtUserDisconnected:
		var sessionID string
		if err := json.Unmarshal(evt.Data, &sessionID); err != nil {
			return false, nil
		}
		s.orch.HandlePeerDisconnected(sessionID)

	case relay.EvtSignal:
		var p struct {
			CallerID string          `json:"callerID"`
			Signal   json.RawMessage `json:"signal"`
		}
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return false, nil
		}
		var payload peer.SignalPayload
		if err := json.Unmarshal(p.Signal, &payload); err != nil {
			s.log.WithField("peer", p.CallerID).Debug("unreadable signal payload")
			return false, nil
		}
		s.orch.HandleSignal(p.CallerID, payload)

	case relay.EvtForceMute:
		// Host muted us. Gate the track, then acknowledge so everyone's
		// participant list reflects the new state.
		s.log.Warn("the host muted you")
		s.orch.SetMuted(true)
		s.cl.ToggleMute(s.roomID, true)

	case relay.EvtWbHistory:
		var entries []models.WhiteboardEntry
		if err := json.Unmarshal(evt.Data, &entries); err != nil {
			return false, nil
		}
		s.board.Replay(entries)
		s.log.WithField("strokes", s.board.Len()).Info("whiteboard synced")

	case relay.EvtWbEvent:
		var p struct {
			UserID string          `json:"userId"`
			Type   string          `json:"type"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return false, nil
		}
		s.board.Apply(models.WhiteboardEntry{Type: p.Type, Data: p.Data, UserID: p.UserID})

	case relay.EvtWbClear:
		s.board.Clear()
		s.log.Info("whiteboard cleared")

	case relay.EvtWbPermissions:
		var p struct {
			CanWrite bool `json:"canWrite"`
		}
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			s.log.WithField("canWrite", p.CanWrite).Info("whiteboard permission updated")
		}
		// The first permission grant marks admission into the room
		// proper: pull the whiteboard history and any running poll.
		if !s.synced {
			s.synced = true
			s.cl.WbJoin(s.roomID)
			s.cl.GetActivePoll(s.roomID)
		}

	case relay.EvtPollStarted:
		var p struct {
			ID       string   `json:"id"`
			Question string   `json:"question"`
			Options  []string `json:"options"`
			Duration float64  `json:"duration"`
		}
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return false, nil
		}
		s.log.WithFields(logrus.Fields{
			"question": p.Question,
			"options":  p.Options,
			"seconds":  p.Duration,
		}).Info("poll started")

	case relay.EvtPollEnded:
		var p struct {
			Results    []int `json:"results"`
			TotalVotes int   `json:"totalVotes"`
		}
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return false, nil
		}
		s.log.WithFields(logrus.Fields{
			"results": p.Results,
			"votes":   p.TotalVotes,
		}).Info("poll ended")

	case relay.EvtReceiveMessage:
		s.log.WithField("message", string(evt.Data)).Info("chat")

	case relay.EvtReactionReceived:
		var p struct {
			Reaction string           `json:"reaction"`
			User     *models.Identity `json:"user"`
		}
		if err := json.Unmarshal(evt.Data, &p); err == nil && p.User != nil {
			s.log.WithField("user", p.User.Name).Info(p.Reaction)
		}

	case relay.EvtUserToggledMute, relay.EvtParticipants, relay.EvtWaitingList, relay.EvtMaterialsUpdated:
		s.log.WithField("event", evt.Type).Debug("room state updated")

	case relay.EvtError:
		var msg string
		if json.Unmarshal(evt.Data, &msg) == nil {
			s.log.WithField("reason", msg).Warn("server rejected request")
		}
	}
	return false, nil
}
