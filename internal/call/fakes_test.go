package call

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/Wavecall/internal/rtc"
	"github.com/BioHazard786/Wavecall/internal/signaling"
)

// fakeTrack is a stub local media track.
type fakeTrack struct {
	id      string
	kind    rtc.TrackKind
	enabled bool
	stopped bool
}

func (t *fakeTrack) ID() string { return t.id }
func (t *fakeTrack) Kind() rtc.TrackKind { return t.kind }
func (t *fakeTrack) Enabled() bool { return t.enabled }
func (t *fakeTrack) SetEnabled(enabled bool) { t.enabled = enabled }
func (t *fakeTrack) Stop() { t.stopped = true }

// fakeStream bundles fake tracks.
type fakeStream struct {
	id     string
	tracks []rtc.MediaTrack
	closed bool
}

func (s *fakeStream) ID() string { return s.id }
func (s *fakeStream) Tracks() []rtc.MediaTrack { return s.tracks }
func (s *fakeStream) Close() { s.closed = true }

func newFakeStream(id string) *fakeStream {
	return &fakeStream{
		id: id,
		tracks: []rtc.MediaTrack{
			&fakeTrack{id: id + "-audio", kind: rtc.TrackAudio, enabled: true},
			&fakeTrack{id: id + "-video", kind: rtc.TrackVideo, enabled: true},
		},
	}
}

// fakeDataChannel records sends and exposes the registered callbacks.
type fakeDataChannel struct {
	label     string
	sent      [][]byte
	onOpen    func()
	onMessage func([]byte)
	closed    bool
}

func (d *fakeDataChannel) Label() string { return d.label }
func (d *fakeDataChannel) Send(data []byte) error {
	d.sent = append(d.sent, data)
	return nil
}
func (d *fakeDataChannel) OnOpen(fn func()) { d.onOpen = fn }
func (d *fakeDataChannel) OnMessage(fn func([]byte)) { d.onMessage = fn }
func (d *fakeDataChannel) Close() error { d.closed = true; return nil }

// fakeConn is an in-memory peer connection that tracks descriptions,
// candidates and callbacks.
type fakeConn struct {
	mu sync.Mutex

	localDesc    *rtc.SessionDescription
	remoteDesc   *rtc.SessionDescription
	candidates   []rtc.ICECandidateInit
	rejectCands  map[string]error
	tracks       []rtc.MediaTrack
	dataChannels []*fakeDataChannel
	closed       bool

	remoteSets int

	onICE   func(rtc.ICECandidateInit)
	onTrack func(rtc.MediaTrack, string)
	onDC    func(rtc.DataChannel)
	onState func(rtc.ConnectionState)

	offerSeq int
}

func (c *fakeConn) CreateOffer() (rtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offerSeq++
	desc := rtc.SessionDescription{Type: rtc.SDPOffer, SDP: fmt.Sprintf("offer-sdp-%d", c.offerSeq)}
	c.localDesc = &desc
	return desc, nil
}

func (c *fakeConn) CreateAnswer() (rtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	desc := rtc.SessionDescription{Type: rtc.SDPAnswer, SDP: "answer-sdp"}
	c.localDesc = &desc
	return desc, nil
}

func (c *fakeConn) SetRemoteDescription(desc rtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteDesc = &desc
	c.remoteSets++
	return nil
}

func (c *fakeConn) HasRemoteDescription() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteDesc != nil
}

func (c *fakeConn) SignalingState() rtc.SignalingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return rtc.SignalingClosed
	case c.localDesc != nil && c.localDesc.Type == rtc.SDPOffer && c.remoteDesc == nil:
		return rtc.SignalingHaveLocalOffer
	case c.remoteDesc != nil && c.remoteDesc.Type == rtc.SDPOffer && (c.localDesc == nil || c.localDesc.Type != rtc.SDPAnswer):
		return rtc.SignalingHaveRemoteOffer
	default:
		return rtc.SignalingStable
	}
}

func (c *fakeConn) AddICECandidate(cand rtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.rejectCands[cand.Candidate]; ok {
		return err
	}
	c.candidates = append(c.candidates, cand)
	return nil
}

// rejectCandidate makes AddICECandidate fail for one candidate string.
func (c *fakeConn) rejectCandidate(candidate string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectCands == nil {
		c.rejectCands = make(map[string]error)
	}
	c.rejectCands[candidate] = err
}

func (c *fakeConn) AddTrack(track rtc.MediaTrack) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, track)
	return nil
}

func (c *fakeConn) CreateDataChannel(label string) (rtc.DataChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dc := &fakeDataChannel{label: label}
	c.dataChannels = append(c.dataChannels, dc)
	return dc, nil
}

func (c *fakeConn) OnICECandidate(fn func(rtc.ICECandidateInit)) { c.onICE = fn }
func (c *fakeConn) OnTrack(fn func(rtc.MediaTrack, string)) { c.onTrack = fn }
func (c *fakeConn) OnDataChannel(fn func(rtc.DataChannel)) { c.onDC = fn }
func (c *fakeConn) OnConnectionStateChange(fn func(rtc.ConnectionState)) { c.onState = fn }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) candidateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.candidates)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeCapability builds fakeConns and synthetic fake streams.
type fakeCapability struct {
	mu      sync.Mutex
	conns   []*fakeConn
	streams []*fakeStream
}

func (f *fakeCapability) NewPeerConnection(cfg rtc.Config) (rtc.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn := &fakeConn{}
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeCapability) CaptureUserMedia(audio, video bool) (rtc.MediaStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stream := newFakeStream(fmt.Sprintf("user-%d", len(f.streams)))
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeCapability) CaptureDisplay() (rtc.MediaStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stream := newFakeStream(fmt.Sprintf("display-%d", len(f.streams)))
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeCapability) connCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeCapability) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

// fakeTransport is an in-memory signaling channel.
type fakeTransport struct {
	mu       sync.Mutex
	sent     []*signaling.Event
	incoming chan *signaling.Event
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{incoming: make(chan *signaling.Event, 64)}
}

func (t *fakeTransport) Send(ev *signaling.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, ev)
	return nil
}

func (t *fakeTransport) Incoming() <-chan *signaling.Event { return t.incoming }

func (t *fakeTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.incoming)
	}
}

func (t *fakeTransport) push(ev *signaling.Event) {
	t.incoming <- ev
}

func (t *fakeTransport) sentOfType(typ signaling.EventType) []*signaling.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*signaling.Event
	for _, ev := range t.sent {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
