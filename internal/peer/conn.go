package peer

import (
	"github.com/pion/webrtc/v4"

	"github.com/liteclass/liteclass/config"
)

// Conn is the slice of the peer connection surface the orchestrator
// drives. The production implementation wraps pion; tests substitute a
// fake to exercise the negotiation state machine deterministically.
type Conn interface {
	AddTrack(track webrtc.TrackLocal) error
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	HasRemoteDescription() bool
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnICEConnectionStateChange(f func(webrtc.ICEConnectionState))
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	Close() error
}

// ConnFactory builds one connection per remote participant.
type ConnFactory func() (Conn, error)

type pionConn struct {
	pc *webrtc.PeerConnection
}

// NewPionFactory returns a ConnFactory backed by pion, configured with
// the STUN/TURN servers from config.
func NewPionFactory(cfg *config.Config) ConnFactory {
	iceServers := []webrtc.ICEServer{{URLs: cfg.STUNServers()}}
	if turn := cfg.TURNServers(); turn != nil {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turn,
			Username:   cfg.ICE.TURNUser,
			Credential: cfg.ICE.TURNPass,
		})
	}

	return func() (Conn, error) {
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
		if err != nil {
			return nil, err
		}
		return &pionConn{pc: pc}, nil
	}
}

func (c *pionConn) AddTrack(track webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

func (c *pionConn) CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(options)
}

func (c *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *pionConn) OnICECandidate(f func(*webrtc.ICECandidate)) {
	c.pc.OnICECandidate(f)
}

func (c *pionConn) OnICEConnectionStateChange(f func(webrtc.ICEConnectionState)) {
	c.pc.OnICEConnectionStateChange(f)
}

func (c *pionConn) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	c.pc.OnTrack(f)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}
