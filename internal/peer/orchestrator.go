package peer

import (
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/liteclass/liteclass/internal/media"
)

// SignalPayload is the negotiation message exchanged through the relay.
// The relay forwards it verbatim; only orchestrators interpret it.
type SignalPayload struct {
	Type      string                   `json:"type,omitempty"` // "offer" or "answer"
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// Signaler carries outbound negotiation payloads to one remote peer.
type Signaler interface {
	SendSignal(targetID string, payload SignalPayload)
}

// Negotiation states for one remote peer. Tracked explicitly so the
// accept/drop rules below are independent of the transport's own view.
type negotiationState int

const (
	stateStable negotiationState = iota
	stateHaveLocalOffer
	stateHaveRemoteOffer
)

func (s negotiationState) String() string {
	switch s {
	case stateHaveLocalOffer:
		return "have-local-offer"
	case stateHaveRemoteOffer:
		return "have-remote-offer"
	default:
		return "stable"
	}
}

const preferredCodec = "opus"

type remotePeer struct {
	id      string
	conn    Conn
	state   negotiationState
	pending []webrtc.ICECandidateInit // candidates that arrived before the remote description
	box     *mailbox
}

// Orchestrator owns the mesh of peer connections on a participant's
// side: one connection per remote participant, each driven through a
// per-remote FIFO mailbox so concurrent signaling deliveries are applied
// strictly in order.
type Orchestrator struct {
	factory  ConnFactory
	capture  *media.CaptureTrack
	signaler Signaler
	log      *logrus.Logger

	// OnRemoteTrack, when set, observes the remote media stream handle
	// of each peer connection.
	OnRemoteTrack func(remoteID string, track *webrtc.TrackRemote)

	mu     sync.Mutex
	peers  map[string]*remotePeer
	closed bool
}

func NewOrchestrator(factory ConnFactory, capture *media.CaptureTrack, signaler Signaler, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		factory:  factory,
		capture:  capture,
		signaler: signaler,
		log:      log,
		peers:    make(map[string]*remotePeer),
	}
}

// HandlePeerConnected reacts to "you joined, they were here" or "a new
// peer joined": this side creates the connection and makes the offer.
// The answering side never offers, which avoids double-offer races
// without central coordination.
func (o *Orchestrator) HandlePeerConnected(remoteID string) {
	p := o.getOrCreatePeer(remoteID)
	if p == nil {
		return
	}
	p.box.submit(func() { o.sendOffer(p, nil) })
}

// HandleSignal applies one inbound negotiation message. An unsolicited
// message from an unknown remote id creates the connection reactively;
// that side answers.
func (o *Orchestrator) HandleSignal(fromID string, payload SignalPayload) {
	p := o.getOrCreatePeer(fromID)
	if p == nil {
		return
	}

	p.box.submit(func() {
		switch {
		case payload.Type == "offer":
			o.applyOffer(p, payload)
		case payload.Type == "answer":
			o.applyAnswer(p, payload)
		case payload.Candidate != nil:
			o.applyCandidate(p, *payload.Candidate)
		}
	})
}

// HandlePeerDisconnected tears down the connection for one remote peer.
func (o *Orchestrator) HandlePeerDisconnected(remoteID string) {
	o.mu.Lock()
	p, ok := o.peers[remoteID]
	if ok {
		delete(o.peers, remoteID)
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	p.box.close()
	if err := p.conn.Close(); err != nil {
		o.log.WithField("peer", remoteID).WithError(err).Debug("close peer connection")
	}
}

// SetMuted gates the shared capture track. Both voluntary mutes and
// host-forced mutes land here, so every participant's view derives from
// the same broadcast that follows.
func (o *Orchestrator) SetMuted(muted bool) {
	o.capture.SetEnabled(!muted)
}

// Muted reports the capture gate.
func (o *Orchestrator) Muted() bool {
	return !o.capture.Enabled()
}

// Close tears down every peer connection and stops the local capture.
// Runs on every exit path: voluntary leave, kick, meeting end, transport
// loss. Outstanding negotiation for a torn-down connection is discarded,
// not drained.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	peers := make([]*remotePeer, 0, len(o.peers))
	for _, p := range o.peers {
		peers = append(peers, p)
	}
	o.peers = make(map[string]*remotePeer)
	o.mu.Unlock()

	for _, p := range peers {
		p.box.close()
		p.conn.Close()
	}
	o.capture.Stop()
}

func (o *Orchestrator) getOrCreatePeer(remoteID string) *remotePeer {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	if p, ok := o.peers[remoteID]; ok {
		return p
	}

	conn, err := o.factory()
	if err != nil {
		o.log.WithField("peer", remoteID).WithError(err).Error("create peer connection")
		return nil
	}

	p := &remotePeer{
		id:    remoteID,
		conn:  conn,
		state: stateStable,
		box:   newMailbox(),
	}

	if err := conn.AddTrack(o.capture.Track()); err != nil {
		o.log.WithField("peer", remoteID).WithError(err).Error("attach local track")
	}

	conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		candidate := c.ToJSON()
		o.signaler.SendSignal(remoteID, SignalPayload{Candidate: &candidate})
	})

	conn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		o.log.WithFields(logrus.Fields{
			"peer":  remoteID,
			"state": state.String(),
		}).Debug("ice connection state")
		if state == webrtc.ICEConnectionStateFailed {
			// Sustained negative connectivity: renegotiate with an ICE
			// restart instead of tearing the connection down.
			p.box.submit(func() {
				o.sendOffer(p, &webrtc.OfferOptions{ICERestart: true})
			})
		}
	})

	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if o.OnRemoteTrack != nil {
			o.OnRemoteTrack(remoteID, track)
		}
	})

	o.peers[remoteID] = p
	return p
}

// sendOffer runs on the peer's mailbox.
func (o *Orchestrator) sendOffer(p *remotePeer, options *webrtc.OfferOptions) {
	offer, err := p.conn.CreateOffer(options)
	if err != nil {
		o.log.WithField("peer", p.id).WithError(err).Error("create offer")
		return
	}
	offer.SDP = preferAudioCodec(offer.SDP, preferredCodec)

	if err := p.conn.SetLocalDescription(offer); err != nil {
		o.log.WithField("peer", p.id).WithError(err).Error("set local offer")
		return
	}
	p.state = stateHaveLocalOffer

	o.signaler.SendSignal(p.id, SignalPayload{Type: "offer", SDP: offer.SDP})
}

// applyOffer runs on the peer's mailbox. Offers are renegotiable from
// stable or have-remote-offer; anything else is dropped with a
// diagnostic only.
func (o *Orchestrator) applyOffer(p *remotePeer, payload SignalPayload) {
	if p.state != stateStable && p.state != stateHaveRemoteOffer {
		o.log.WithFields(logrus.Fields{
			"peer":  p.id,
			"state": p.state.String(),
		}).Warn("ignoring offer in current state")
		return
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: payload.SDP}
	if err := p.conn.SetRemoteDescription(remote); err != nil {
		o.log.WithField("peer", p.id).WithError(err).Error("set remote offer")
		return
	}
	p.state = stateHaveRemoteOffer
	o.flushCandidates(p)

	answer, err := p.conn.CreateAnswer()
	if err != nil {
		o.log.WithField("peer", p.id).WithError(err).Error("create answer")
		return
	}
	answer.SDP = preferAudioCodec(answer.SDP, preferredCodec)

	if err := p.conn.SetLocalDescription(answer); err != nil {
		o.log.WithField("peer", p.id).WithError(err).Error("set local answer")
		return
	}
	p.state = stateStable

	o.signaler.SendSignal(p.id, SignalPayload{Type: "answer", SDP: answer.SDP})
}

// applyAnswer runs on the peer's mailbox. An answer in stable state has
// no matching offer and is dropped.
func (o *Orchestrator) applyAnswer(p *remotePeer, payload SignalPayload) {
	if p.state == stateStable {
		o.log.WithField("peer", p.id).Warn("ignoring answer in stable state")
		return
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: payload.SDP}
	if err := p.conn.SetRemoteDescription(remote); err != nil {
		o.log.WithField("peer", p.id).WithError(err).Error("set remote answer")
		return
	}
	p.state = stateStable
	o.flushCandidates(p)
}

// applyCandidate runs on the peer's mailbox. Candidates that arrive
// before the remote description are buffered and flushed once it is set.
func (o *Orchestrator) applyCandidate(p *remotePeer, candidate webrtc.ICECandidateInit) {
	if !p.conn.HasRemoteDescription() {
		p.pending = append(p.pending, candidate)
		return
	}
	o.addCandidate(p, candidate)
}

// flushCandidates applies the buffered candidates in arrival order. The
// flush is idempotent: the buffer empties exactly once.
func (o *Orchestrator) flushCandidates(p *remotePeer) {
	pending := p.pending
	p.pending = nil
	for _, candidate := range pending {
		o.addCandidate(p, candidate)
	}
}

func (o *Orchestrator) addCandidate(p *remotePeer, candidate webrtc.ICECandidateInit) {
	if err := p.conn.AddICECandidate(candidate); err != nil {
		// Stale-ufrag errors are expected around restarts; everything
		// else is a diagnostic, never fatal to the session.
		if strings.Contains(err.Error(), "ufrag") {
			return
		}
		o.log.WithField("peer", p.id).WithError(err).Warn("add ice candidate")
	}
}
