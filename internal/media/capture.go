package media

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

var ErrCaptureStopped = errors.New("capture stopped")

// CaptureTrack is the session's single local audio capture handle. It is
// acquired once and attached to every peer connection the session
// creates; mute toggles the enabled flag rather than releasing the
// device. Disabled capture drops samples, which a receiver renders as
// silence.
type CaptureTrack struct {
	track *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
}

// NewCaptureTrack builds the opus sample track the capture source feeds.
func NewCaptureTrack() (*CaptureTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "liteclass-"+uuid.NewString(),
	)
	if err != nil {
		return nil, err
	}
	return &CaptureTrack{track: track, enabled: true}, nil
}

// Track returns the underlying local track for AddTrack.
func (c *CaptureTrack) Track() *webrtc.TrackLocalStaticSample {
	return c.track
}

// WriteSample forwards one captured audio sample to every attached peer
// connection, unless capture is muted or stopped.
func (c *CaptureTrack) WriteSample(sample media.Sample) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrCaptureStopped
	}
	enabled := c.enabled
	c.mu.Unlock()

	if !enabled {
		return nil
	}
	return c.track.WriteSample(sample)
}

// SetEnabled flips the mute gate. The device stays acquired either way.
func (c *CaptureTrack) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Enabled reports whether samples currently flow.
func (c *CaptureTrack) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Stop permanently ends the capture. Called on every session exit path.
func (c *CaptureTrack) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.enabled = false
}

// Stopped reports whether the capture has been released.
func (c *CaptureTrack) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
