package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// Track is one capture track (mic, camera or screen).
// Owned by the provider that produced it; Stop releases the device.
type Track interface {
	ID() string
	Kind() TrackKind
	// Enabled reports whether the track currently produces media.
	// A disabled track keeps the device open but emits silence/black.
	Enabled() bool
	SetEnabled(bool)
	Stop()
	// OnEnded sets a callback fired when the platform ends the track
	// outside this app (e.g. the browser-chrome "stop sharing" button).
	OnEnded(func())
	// Local exposes the underlying pion track for attachment to a
	// peer connection. May be nil for purely local preview tracks.
	Local() webrtc.TrackLocal
}

// Stream groups the tracks captured together.
type Stream interface {
	ID() string
	Tracks() []Track
	TracksOfKind(TrackKind) []Track
}

// CaptureProvider abstracts the platform capture surface so the media
// controller stays headless-testable.
type CaptureProvider interface {
	// CaptureUserMedia requests combined mic+camera capture.
	// Fails with ErrPermissionDenied or ErrDeviceUnavailable.
	CaptureUserMedia(ctx context.Context) (Stream, error)
	// CaptureDisplay requests a screen-share track.
	// Fails with ErrShareCancelled when the user dismisses the picker.
	CaptureDisplay(ctx context.Context) (Track, error)
}

// RenderTarget is where the active stream is mirrored for local preview.
// The controller re-attaches synchronously on every camera/screen swap.
type RenderTarget interface {
	Attach(Stream)
	Detach()
}
