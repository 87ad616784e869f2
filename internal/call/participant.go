package call

import (
	"sync"

	"github.com/BioHazard786/Wavecall/internal/rtc"
	"github.com/BioHazard786/Wavecall/internal/signaling"
)

// Stream is a roster-visible reference to a media stream. Remote streams are
// assembled track by track as they arrive from the peer connection.
type Stream struct {
	ID     string
	Tracks []rtc.MediaTrack
}

// Participant is one call member as seen by the presentation layer.
type Participant struct {
	Name  string
	Local bool

	PrimaryStream *Stream
	ScreenStream  *Stream

	AudioEnabled  bool
	VideoEnabled  bool
	SharingScreen bool

	// Connected reports the primary peer connection state; always true for
	// the local participant.
	Connected bool
}

// Roster is the participant list. Mutations hand fresh snapshots to the
// presentation layer, so renderers never hold the roster lock.
type Roster struct {
	mu       sync.RWMutex
	order    []string
	byName   map[string]*Participant
	onChange func([]Participant)
}

// NewRoster creates an empty roster. onChange, if non-nil, is invoked with a
// snapshot after every mutation.
func NewRoster(onChange func([]Participant)) *Roster {
	return &Roster{
		byName:   make(map[string]*Participant),
		onChange: onChange,
	}
}

// Ensure adds a participant if it is not yet known and returns whether it was
// created.
func (r *Roster) Ensure(name string) bool {
	r.mu.Lock()
	if _, ok := r.byName[name]; ok {
		r.mu.Unlock()
		return false
	}
	r.byName[name] = &Participant{Name: name, AudioEnabled: true, VideoEnabled: true}
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.notify()
	return true
}

// AddLocal registers the local participant with its primary stream.
func (r *Roster) AddLocal(name string, stream *Stream, audio, video bool) {
	r.mu.Lock()
	r.byName[name] = &Participant{
		Name:          name,
		Local:         true,
		PrimaryStream: stream,
		AudioEnabled:  audio,
		VideoEnabled:  video,
		Connected:     true,
	}
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.notify()
}

// Remove drops a participant. Removing an unknown name is a no-op.
func (r *Roster) Remove(name string) {
	r.mu.Lock()
	if _, ok := r.byName[name]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.notify()
}

// AddTrack records an inbound remote track on the participant's primary or
// screen stream, creating the stream reference on first track.
func (r *Roster) AddTrack(name string, purpose signaling.Purpose, track rtc.MediaTrack, streamID string) {
	r.mu.Lock()
	p, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	slot := &p.PrimaryStream
	if purpose == signaling.PurposeScreen {
		slot = &p.ScreenStream
	}
	if *slot == nil || (*slot).ID != streamID {
		*slot = &Stream{ID: streamID}
	}
	(*slot).Tracks = append((*slot).Tracks, track)
	r.mu.Unlock()

	r.notify()
}

// ClearScreen drops the participant's screen stream reference.
func (r *Roster) ClearScreen(name string) {
	r.mu.Lock()
	if p, ok := r.byName[name]; ok {
		p.ScreenStream = nil
		p.SharingScreen = false
	}
	r.mu.Unlock()

	r.notify()
}

// SetSharing flags whether the participant is presenting a screen.
func (r *Roster) SetSharing(name string, sharing bool) {
	r.mu.Lock()
	if p, ok := r.byName[name]; ok {
		p.SharingScreen = sharing
		if !sharing {
			p.ScreenStream = nil
		}
	}
	r.mu.Unlock()

	r.notify()
}

// SetMediaState records a local toggle or a remote media_state event.
func (r *Roster) SetMediaState(name string, media signaling.MediaKind, enabled bool) {
	r.mu.Lock()
	if p, ok := r.byName[name]; ok {
		switch media {
		case signaling.MediaAudio:
			p.AudioEnabled = enabled
		case signaling.MediaVideo:
			p.VideoEnabled = enabled
		}
	}
	r.mu.Unlock()

	r.notify()
}

// SetConnected records the primary connection state of a remote participant.
func (r *Roster) SetConnected(name string, connected bool) {
	r.mu.Lock()
	if p, ok := r.byName[name]; ok {
		p.Connected = connected
	}
	r.mu.Unlock()

	r.notify()
}

// Sharer returns the name of the participant currently presenting, if any.
func (r *Roster) Sharer() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byName {
		if p.SharingScreen {
			return p.Name, true
		}
	}
	return "", false
}

// Get returns a copy of one participant.
func (r *Roster) Get(name string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Len returns the number of participants.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Snapshot returns the participants in join order.
func (r *Roster) Snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.order))
	for _, name := range r.order {
		if p, ok := r.byName[name]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (r *Roster) notify() {
	if r.onChange != nil {
		r.onChange(r.Snapshot())
	}
}
