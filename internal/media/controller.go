package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/talentbridge/livesession/internal/core"
)

// Controller owns the local mic/camera capture stream and an optional
// screen-share substitution. At most one of {camera stream, screen stream}
// is the active stream mirrored into the render target at any time.
//
// Capture is lazy: nothing is requested from the platform until the first
// control interaction, so no permission prompt fires before consent.
type Controller struct {
	mu       sync.Mutex
	provider core.CaptureProvider
	target   core.RenderTarget

	camera     core.Stream // mic+camera capture, nil until first use
	screen     core.Track  // non-nil while presenting
	active     core.Stream
	audioOn    bool
	videoOn    bool
	presenting bool

	// gen is bumped by StopAll; capture requests that settle after a bump
	// belong to a dead session and must not resurrect it.
	gen uint64
}

func NewController(provider core.CaptureProvider, target core.RenderTarget) *Controller {
	return &Controller{provider: provider, target: target}
}

// EnsureStream returns the camera/mic stream, acquiring it on first call.
// The fresh stream starts with every track disabled (the session is entered
// muted and camera-off). Idempotent; concurrent callers share one stream.
func (c *Controller) EnsureStream(ctx context.Context) (core.Stream, error) {
	c.mu.Lock()
	if c.camera != nil {
		s := c.camera
		c.mu.Unlock()
		return s, nil
	}
	gen := c.gen
	c.mu.Unlock()

	s, err := c.provider.CaptureUserMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("user media: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// Torn down while the permission prompt was open.
		stopTracks(s)
		return nil, core.ErrClosed
	}
	if c.camera != nil {
		// Lost a race against another EnsureStream; keep the winner.
		stopTracks(s)
		return c.camera, nil
	}
	for _, t := range s.Tracks() {
		t.SetEnabled(false)
	}
	c.camera = s
	if !c.presenting {
		c.setActiveLocked(s)
	}
	log.Debug().Str("module", "media").Str("stream", s.ID()).Msg("camera stream acquired")
	return s, nil
}

// ToggleMute flips the enabled flag on every audio track of the camera
// stream, acquiring it first if needed. Returns the new state.
func (c *Controller) ToggleMute(ctx context.Context) (bool, error) {
	return c.toggleKind(ctx, core.TrackKindAudio)
}

// ToggleCamera flips the enabled flag on every video track of the camera
// stream, acquiring it first if needed. Returns the new state.
func (c *Controller) ToggleCamera(ctx context.Context) (bool, error) {
	return c.toggleKind(ctx, core.TrackKindVideo)
}

func (c *Controller) toggleKind(ctx context.Context, kind core.TrackKind) (bool, error) {
	if _, err := c.EnsureStream(ctx); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var on bool
	switch kind {
	case core.TrackKindAudio:
		c.audioOn = !c.audioOn
		on = c.audioOn
	case core.TrackKindVideo:
		c.videoOn = !c.videoOn
		on = c.videoOn
	}
	if c.camera != nil {
		for _, t := range c.camera.TracksOfKind(kind) {
			t.SetEnabled(on)
		}
	}
	return on, nil
}

// TogglePresent starts or stops screen sharing. Starting swaps the active
// stream to a single-track stream wrapping the screen track; stopping (or
// the platform ending the share from its own UI) restores the camera
// stream with the mute/camera flags untouched. A dismissed share picker is
// a silent no-op, not an error.
func (c *Controller) TogglePresent(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.presenting {
		c.stopPresentLocked()
		c.mu.Unlock()
		return false, nil
	}
	gen := c.gen
	c.mu.Unlock()

	track, err := c.provider.CaptureDisplay(ctx)
	if err != nil {
		if errors.Is(err, core.ErrShareCancelled) {
			return false, nil
		}
		return false, fmt.Errorf("display capture: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		track.Stop()
		return false, core.ErrClosed
	}
	if c.presenting {
		// A concurrent toggle already started a share; keep it.
		track.Stop()
		return true, nil
	}
	track.OnEnded(func() { c.screenEnded(gen) })
	c.screen = track
	c.presenting = true
	c.setActiveLocked(NewStream("screen-"+track.ID(), track))
	log.Debug().Str("module", "media").Str("track", track.ID()).Msg("presenting")
	return true, nil
}

// screenEnded handles the platform stopping the share outside this app.
func (c *Controller) screenEnded(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || !c.presenting {
		return
	}
	c.screen = nil
	c.presenting = false
	c.setActiveLocked(c.camera)
	log.Debug().Str("module", "media").Msg("share ended by platform")
}

func (c *Controller) stopPresentLocked() {
	if c.screen != nil {
		c.screen.Stop()
		c.screen = nil
	}
	c.presenting = false
	c.setActiveLocked(c.camera)
}

// StopAll force-stops every held track, resets all flags to the initial
// muted/camera-off state and releases the stream references. Safe to call
// repeatedly and from an unmount cleanup path.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.screen != nil {
		c.screen.Stop()
		c.screen = nil
	}
	if c.camera != nil {
		stopTracks(c.camera)
		c.camera = nil
	}
	c.audioOn = false
	c.videoOn = false
	c.presenting = false
	c.setActiveLocked(nil)
}

func (c *Controller) setActiveLocked(s core.Stream) {
	c.active = s
	if c.target == nil {
		return
	}
	if s == nil {
		c.target.Detach()
		return
	}
	c.target.Attach(s)
}

// OutgoingTracks returns the camera/mic tracks to attach to a peer
// connection. Empty until EnsureStream has succeeded.
func (c *Controller) OutgoingTracks() []core.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.camera == nil {
		return nil
	}
	return c.camera.Tracks()
}

func (c *Controller) ActiveStream() core.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) AudioEnabled() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.audioOn }
func (c *Controller) VideoEnabled() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.videoOn }
func (c *Controller) Presenting() bool   { c.mu.Lock(); defer c.mu.Unlock(); return c.presenting }

func stopTracks(s core.Stream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
