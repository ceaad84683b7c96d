package media

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/talentbridge/livesession/internal/core"
)

// SynthProvider satisfies core.CaptureProvider with generated silence and
// black frames, so the whole pipeline runs without physical devices. Real
// device capture plugs in behind the same interface.
type SynthProvider struct{}

func NewSynthProvider() *SynthProvider { return &SynthProvider{} }

func (p *SynthProvider) CaptureUserMedia(_ context.Context) (core.Stream, error) {
	streamID := uuid.NewString()
	audio, err := newSynthTrack(core.TrackKindAudio, webrtc.MimeTypeOpus, streamID)
	if err != nil {
		return nil, core.ErrDeviceUnavailable
	}
	video, err := newSynthTrack(core.TrackKindVideo, webrtc.MimeTypeVP8, streamID)
	if err != nil {
		audio.Stop()
		return nil, core.ErrDeviceUnavailable
	}
	return NewStream(streamID, audio, video), nil
}

func (p *SynthProvider) CaptureDisplay(_ context.Context) (core.Track, error) {
	t, err := newSynthTrack(core.TrackKindVideo, webrtc.MimeTypeVP8, "screen-"+uuid.NewString())
	if err != nil {
		return nil, core.ErrDeviceUnavailable
	}
	return t, nil
}

// synthTrack wraps a pion sample track fed by a generator goroutine.
// While disabled the generator keeps pacing but writes nothing, matching
// the "device open, emitting silence" semantics of a disabled track.
type synthTrack struct {
	id    string
	kind  core.TrackKind
	local *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
	onEnded func()
	done    chan struct{}
}

func newSynthTrack(kind core.TrackKind, mimeType, streamID string) (*synthTrack, error) {
	id := uuid.NewString()
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType}, id, streamID,
	)
	if err != nil {
		return nil, err
	}
	t := &synthTrack{
		id:    id,
		kind:  kind,
		local: local,
		done:  make(chan struct{}),
	}
	go t.feed()
	return t, nil
}

func (t *synthTrack) feed() {
	interval := 20 * time.Millisecond
	if t.kind == core.TrackKindVideo {
		interval = 33 * time.Millisecond
	}
	blank := make([]byte, 64)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.mu.Lock()
			on := t.enabled && !t.stopped
			t.mu.Unlock()
			if !on {
				continue
			}
			_ = t.local.WriteSample(pionmedia.Sample{Data: blank, Duration: interval})
		}
	}
}

func (t *synthTrack) ID() string           { return t.id }
func (t *synthTrack) Kind() core.TrackKind { return t.kind }

func (t *synthTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *synthTrack) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = on
}

// Stop halts the generator. It does not fire OnEnded: that callback is
// reserved for platform-initiated termination.
func (t *synthTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.done)
}

func (t *synthTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

func (t *synthTrack) Local() webrtc.TrackLocal { return t.local }
