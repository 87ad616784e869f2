package rtc

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single Opus frame encoding 20ms of silence.
var opusSilence = []byte{0xF8, 0xFF, 0xFE}

const silenceInterval = 20 * time.Millisecond

// localTrack is a pion-backed outbound track. The headless client has no
// device capture, so audio tracks carry generated silence and video tracks
// stay frame-less; the negotiated transports are real either way.
type localTrack struct {
	id      string
	kind    TrackKind
	sample  *pion.TrackLocalStaticSample
	enabled atomic.Bool
	done    chan struct{}
	stopped atomic.Bool
}

func newLocalTrack(kind TrackKind, streamID string) (*localTrack, error) {
	var codec pion.RTPCodecCapability
	var name string
	switch kind {
	case TrackAudio:
		codec = pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: 48000, Channels: 2}
		name = "audio"
	case TrackVideo:
		codec = pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8, ClockRate: 90000}
		name = "video"
	default:
		return nil, fmt.Errorf("unknown track kind %q", kind)
	}

	id := name + "-" + uuid.NewString()
	sample, err := pion.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", name, err)
	}

	t := &localTrack{
		id:     id,
		kind:   kind,
		sample: sample,
		done:   make(chan struct{}),
	}
	t.enabled.Store(true)

	if kind == TrackAudio {
		go t.writeSilence()
	}

	return t, nil
}

// writeSilence keeps the audio track alive with silence frames. A disabled
// track writes nothing, which is how mute is conveyed without renegotiation.
func (t *localTrack) writeSilence() {
	ticker := time.NewTicker(silenceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if !t.enabled.Load() {
				continue
			}
			// Write errors just mean no connected receiver yet.
			_ = t.sample.WriteSample(media.Sample{Data: opusSilence, Duration: silenceInterval})
		}
	}
}

func (t *localTrack) ID() string      { return t.id }
func (t *localTrack) Kind() TrackKind { return t.kind }
func (t *localTrack) Enabled() bool   { return t.enabled.Load() }

func (t *localTrack) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *localTrack) Stop() {
	if t.stopped.CompareAndSwap(false, true) {
		close(t.done)
	}
}

// syntheticStream groups the generated local tracks.
type syntheticStream struct {
	id     string
	tracks []MediaTrack
}

func newSyntheticStream(audio, video bool) (MediaStream, error) {
	s := &syntheticStream{id: uuid.NewString()}

	if audio {
		t, err := newLocalTrack(TrackAudio, s.id)
		if err != nil {
			return nil, err
		}
		s.tracks = append(s.tracks, t)
	}
	if video {
		t, err := newLocalTrack(TrackVideo, s.id)
		if err != nil {
			return nil, err
		}
		s.tracks = append(s.tracks, t)
	}

	return s, nil
}

func (s *syntheticStream) ID() string           { return s.id }
func (s *syntheticStream) Tracks() []MediaTrack { return s.tracks }

func (s *syntheticStream) Close() {
	for _, t := range s.tracks {
		t.Stop()
	}
}
