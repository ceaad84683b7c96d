package media

import "github.com/talentbridge/livesession/internal/core"

// stream is the concrete track grouping handed out by providers and used
// to wrap a lone screen track while presenting.
type stream struct {
	id     string
	tracks []core.Track
}

func NewStream(id string, tracks ...core.Track) core.Stream {
	return &stream{id: id, tracks: tracks}
}

func (s *stream) ID() string { return s.id }

func (s *stream) Tracks() []core.Track {
	out := make([]core.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *stream) TracksOfKind(kind core.TrackKind) []core.Track {
	var out []core.Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}
