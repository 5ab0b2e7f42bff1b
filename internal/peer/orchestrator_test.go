package peer

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclass/liteclass/internal/media"
)

type fakeConn struct {
	mu           sync.Mutex
	tracks       []webrtc.TrackLocal
	localDescs   []webrtc.SessionDescription
	remoteDescs  []webrtc.SessionDescription
	candidates   []webrtc.ICECandidateInit
	offerOptions []*webrtc.OfferOptions
	candidateErr error
	closed       bool

	onICEState func(webrtc.ICEConnectionState)
}

func (c *fakeConn) AddTrack(track webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, track)
	return nil
}

func (c *fakeConn) CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offerOptions = append(c.offerOptions, options)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: testSDP}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: testSDP}, nil
}

func (c *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localDescs = append(c.localDescs, desc)
	return nil
}

func (c *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteDescs = append(c.remoteDescs, desc)
	return nil
}

func (c *fakeConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.candidateErr != nil {
		return c.candidateErr
	}
	c.candidates = append(c.candidates, candidate)
	return nil
}

func (c *fakeConn) HasRemoteDescription() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.remoteDescs) > 0
}

func (c *fakeConn) OnICECandidate(func(*webrtc.ICECandidate)) {}

func (c *fakeConn) OnICEConnectionStateChange(f func(webrtc.ICEConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICEState = f
}

func (c *fakeConn) OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) snapshot() fakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fakeConn{
		tracks:       append([]webrtc.TrackLocal(nil), c.tracks...),
		localDescs:   append([]webrtc.SessionDescription(nil), c.localDescs...),
		remoteDescs:  append([]webrtc.SessionDescription(nil), c.remoteDescs...),
		candidates:   append([]webrtc.ICECandidateInit(nil), c.candidates...),
		offerOptions: append([]*webrtc.OfferOptions(nil), c.offerOptions...),
		closed:       c.closed,
	}
}

type sentSignal struct {
	target  string
	payload SignalPayload
}

type fakeSignaler struct {
	ch chan sentSignal
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{ch: make(chan sentSignal, 32)}
}

func (f *fakeSignaler) SendSignal(target string, payload SignalPayload) {
	f.ch <- sentSignal{target: target, payload: payload}
}

func (f *fakeSignaler) next(t *testing.T) sentSignal {
	t.Helper()
	select {
	case s := <-f.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no signal sent")
		return sentSignal{}
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeConn, *fakeSignaler) {
	t.Helper()
	conn := &fakeConn{}
	signaler := newFakeSignaler()
	capture, err := media.NewCaptureTrack()
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	o := NewOrchestrator(func() (Conn, error) { return conn, nil }, capture, signaler, log)
	t.Cleanup(o.Close)
	return o, conn, signaler
}

// sync flushes the peer's mailbox so every previously submitted task has
// finished before the test asserts.
func (o *Orchestrator) sync(t *testing.T, remoteID string) {
	t.Helper()
	o.mu.Lock()
	p := o.peers[remoteID]
	o.mu.Unlock()
	require.NotNil(t, p, "peer %s not found", remoteID)

	done := make(chan struct{})
	require.True(t, p.box.submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mailbox stalled")
	}
}

func remoteState(o *Orchestrator, remoteID string) negotiationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.peers[remoteID].state
}

func TestPeerConnectedSendsMungedOffer(t *testing.T) {
	o, conn, signaler := newTestOrchestrator(t)

	o.HandlePeerConnected("bob")

	sent := signaler.next(t)
	assert.Equal(t, "bob", sent.target)
	assert.Equal(t, "offer", sent.payload.Type)
	assert.Contains(t, sent.payload.SDP, "m=audio 9 UDP/TLS/RTP/SAVPF 111 0 8",
		"local descriptions prefer opus before they go out")

	o.sync(t, "bob")
	snap := conn.snapshot()
	require.Len(t, snap.tracks, 1, "local capture is attached before negotiation")
	require.Len(t, snap.localDescs, 1)
	assert.Equal(t, sent.payload.SDP, snap.localDescs[0].SDP)
	assert.Equal(t, stateHaveLocalOffer, remoteState(o, "bob"))
}

func TestUnsolicitedOfferCreatesAnsweringPeer(t *testing.T) {
	o, conn, signaler := newTestOrchestrator(t)

	o.HandleSignal("alice", SignalPayload{Type: "offer", SDP: testSDP})
	o.sync(t, "alice")

	sent := signaler.next(t)
	assert.Equal(t, "alice", sent.target)
	assert.Equal(t, "answer", sent.payload.Type)
	assert.Contains(t, sent.payload.SDP, "m=audio 9 UDP/TLS/RTP/SAVPF 111 0 8")

	snap := conn.snapshot()
	require.Len(t, snap.remoteDescs, 1)
	assert.Equal(t, webrtc.SDPTypeOffer, snap.remoteDescs[0].Type)
	assert.Equal(t, stateStable, remoteState(o, "alice"))
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	o, conn, _ := newTestOrchestrator(t)

	first := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host"}
	second := webrtc.ICECandidateInit{Candidate: "candidate:2 1 udp 1 10.0.0.2 5001 typ host"}
	o.HandleSignal("alice", SignalPayload{Candidate: &first})
	o.HandleSignal("alice", SignalPayload{Candidate: &second})
	o.sync(t, "alice")

	assert.Empty(t, conn.snapshot().candidates, "nothing applied before the remote description")

	o.HandleSignal("alice", SignalPayload{Type: "offer", SDP: testSDP})
	o.sync(t, "alice")

	snap := conn.snapshot()
	require.Len(t, snap.candidates, 2, "buffered candidates flush exactly once")
	assert.Equal(t, first.Candidate, snap.candidates[0].Candidate)
	assert.Equal(t, second.Candidate, snap.candidates[1].Candidate)
}

func TestCandidateAppliedDirectlyAfterRemoteDescription(t *testing.T) {
	o, conn, _ := newTestOrchestrator(t)
	o.HandleSignal("alice", SignalPayload{Type: "offer", SDP: testSDP})
	o.sync(t, "alice")

	c := webrtc.ICECandidateInit{Candidate: "candidate:3 1 udp 1 10.0.0.3 5002 typ host"}
	o.HandleSignal("alice", SignalPayload{Candidate: &c})
	o.sync(t, "alice")

	snap := conn.snapshot()
	require.Len(t, snap.candidates, 1)
	assert.Equal(t, c.Candidate, snap.candidates[0].Candidate)
}

func TestMistimedOfferDropped(t *testing.T) {
	o, conn, signaler := newTestOrchestrator(t)
	o.HandlePeerConnected("bob")
	signaler.next(t) // our offer
	o.sync(t, "bob")

	o.HandleSignal("bob", SignalPayload{Type: "offer", SDP: testSDP})
	o.sync(t, "bob")

	assert.Empty(t, conn.snapshot().remoteDescs, "an offer while we hold a local offer is dropped")
	assert.Equal(t, stateHaveLocalOffer, remoteState(o, "bob"))
}

func TestAnswerInStableDropped(t *testing.T) {
	o, conn, _ := newTestOrchestrator(t)
	o.HandleSignal("alice", SignalPayload{Type: "offer", SDP: testSDP})
	o.sync(t, "alice")
	before := len(conn.snapshot().remoteDescs)

	o.HandleSignal("alice", SignalPayload{Type: "answer", SDP: testSDP})
	o.sync(t, "alice")

	assert.Equal(t, before, len(conn.snapshot().remoteDescs), "an answer with no outstanding offer is dropped")
}

func TestAnswerCompletesNegotiationAndFlushes(t *testing.T) {
	o, conn, signaler := newTestOrchestrator(t)
	o.HandlePeerConnected("bob")
	signaler.next(t)

	c := webrtc.ICECandidateInit{Candidate: "candidate:4 1 udp 1 10.0.0.4 5003 typ host"}
	o.HandleSignal("bob", SignalPayload{Candidate: &c})
	o.HandleSignal("bob", SignalPayload{Type: "answer", SDP: testSDP})
	o.sync(t, "bob")

	snap := conn.snapshot()
	require.Len(t, snap.remoteDescs, 1)
	assert.Equal(t, webrtc.SDPTypeAnswer, snap.remoteDescs[0].Type)
	require.Len(t, snap.candidates, 1)
	assert.Equal(t, stateStable, remoteState(o, "bob"))
}

func TestStaleUfragCandidateErrorSwallowed(t *testing.T) {
	o, conn, _ := newTestOrchestrator(t)
	o.HandleSignal("alice", SignalPayload{Type: "offer", SDP: testSDP})
	o.sync(t, "alice")

	conn.mu.Lock()
	conn.candidateErr = errors.New("ice: unknown ufrag abcd")
	conn.mu.Unlock()

	c := webrtc.ICECandidateInit{Candidate: "candidate:5 1 udp 1 10.0.0.5 5004 typ host"}
	o.HandleSignal("alice", SignalPayload{Candidate: &c})
	o.sync(t, "alice")

	assert.Equal(t, stateStable, remoteState(o, "alice"), "a stale candidate never fails the session")
}

func TestICEFailureTriggersRestartOffer(t *testing.T) {
	o, conn, signaler := newTestOrchestrator(t)
	o.HandlePeerConnected("bob")
	signaler.next(t)
	o.HandleSignal("bob", SignalPayload{Type: "answer", SDP: testSDP})
	o.sync(t, "bob")

	conn.mu.Lock()
	notify := conn.onICEState
	conn.mu.Unlock()
	require.NotNil(t, notify)
	notify(webrtc.ICEConnectionStateFailed)

	sent := signaler.next(t)
	assert.Equal(t, "offer", sent.payload.Type)

	o.sync(t, "bob")
	opts := conn.snapshot().offerOptions
	require.Len(t, opts, 2)
	require.NotNil(t, opts[1])
	assert.True(t, opts[1].ICERestart)
}

func TestPeerDisconnectedClosesConnection(t *testing.T) {
	o, conn, signaler := newTestOrchestrator(t)
	o.HandlePeerConnected("bob")
	signaler.next(t)

	o.HandlePeerDisconnected("bob")

	assert.True(t, conn.snapshot().closed)
	o.mu.Lock()
	_, exists := o.peers["bob"]
	o.mu.Unlock()
	assert.False(t, exists)

	// Late signaling for a gone peer creates a fresh connection rather
	// than erroring; a second disconnect for it is also harmless.
	o.HandleSignal("bob", SignalPayload{Type: "offer", SDP: testSDP})
	o.sync(t, "bob")
	o.HandlePeerDisconnected("bob")
	o.HandlePeerDisconnected("bob")
}

func TestCloseStopsCaptureAndAllPeers(t *testing.T) {
	conns := []*fakeConn{{}, {}}
	i := 0
	signaler := newFakeSignaler()
	capture, err := media.NewCaptureTrack()
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)

	o := NewOrchestrator(func() (Conn, error) {
		c := conns[i]
		i++
		return c, nil
	}, capture, signaler, log)

	o.HandlePeerConnected("bob")
	o.HandlePeerConnected("carol")
	signaler.next(t)
	signaler.next(t)

	o.Close()

	for _, c := range conns {
		assert.True(t, c.snapshot().closed)
	}
	assert.True(t, capture.Stopped())

	o.HandlePeerConnected("dave")
	select {
	case s := <-signaler.ch:
		t.Fatalf("unexpected signal after close: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMuteGatesCapture(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	assert.False(t, o.Muted())
	o.SetMuted(true)
	assert.True(t, o.Muted())

	err := o.capture.WriteSample(pionmedia.Sample{Data: []byte{0x01}, Duration: 20 * time.Millisecond})
	assert.NoError(t, err, "muted capture drops samples without error")

	o.SetMuted(false)
	assert.False(t, o.Muted())
}
