package rtc

import (
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"
)

// Engine implements Capability on top of pion/webrtc. It is the production
// host stack for headless clients; media comes from the synthetic source in
// media.go since device capture belongs to the embedding host.
type Engine struct{}

// NewEngine creates a pion-backed capability.
func NewEngine() *Engine {
	return &Engine{}
}

// NewPeerConnection builds a pion peer connection from the shared ICE config.
func (e *Engine) NewPeerConnection(cfg Config) (PeerConnection, error) {
	iceServers := make([]pion.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		srv := pion.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
		}
		iceServers = append(iceServers, srv)
	}

	policy := pion.ICETransportPolicyAll
	if cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	return &pionConnection{pc: pc}, nil
}

// CaptureUserMedia returns a synthetic primary stream (see media.go).
func (e *Engine) CaptureUserMedia(audio, video bool) (MediaStream, error) {
	return newSyntheticStream(audio, video)
}

// CaptureDisplay returns a synthetic screen stream.
func (e *Engine) CaptureDisplay() (MediaStream, error) {
	return newSyntheticStream(false, true)
}

// pionConnection adapts *pion.PeerConnection to the PeerConnection contract.
type pionConnection struct {
	pc *pion.PeerConnection

	mu     sync.Mutex
	closed bool
}

func (c *pionConnection) CreateOffer() (SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	local := c.pc.LocalDescription()
	return SessionDescription{Type: SDPOffer, SDP: local.SDP}, nil
}

func (c *pionConnection) CreateAnswer() (SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	local := c.pc.LocalDescription()
	return SessionDescription{Type: SDPAnswer, SDP: local.SDP}, nil
}

func (c *pionConnection) SetRemoteDescription(desc SessionDescription) error {
	sdpType := pion.SDPTypeOffer
	if desc.Type == SDPAnswer {
		sdpType = pion.SDPTypeAnswer
	}
	return c.pc.SetRemoteDescription(pion.SessionDescription{Type: sdpType, SDP: desc.SDP})
}

func (c *pionConnection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *pionConnection) SignalingState() SignalingState {
	switch c.pc.SignalingState() {
	case pion.SignalingStateStable:
		return SignalingStable
	case pion.SignalingStateHaveLocalOffer:
		return SignalingHaveLocalOffer
	case pion.SignalingStateHaveRemoteOffer:
		return SignalingHaveRemoteOffer
	case pion.SignalingStateClosed:
		return SignalingClosed
	default:
		return SignalingStable
	}
}

func (c *pionConnection) AddICECandidate(cand ICECandidateInit) error {
	return c.pc.AddICECandidate(pion.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	})
}

func (c *pionConnection) AddTrack(track MediaTrack) error {
	lt, ok := track.(*localTrack)
	if !ok {
		return fmt.Errorf("unsupported local track type %T", track)
	}
	if _, err := c.pc.AddTrack(lt.sample); err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	return nil
}

func (c *pionConnection) CreateDataChannel(label string) (DataChannel, error) {
	dc, err := c.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return &pionDataChannel{dc: dc}, nil
}

func (c *pionConnection) OnICECandidate(fn func(ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *pion.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		fn(ICECandidateInit{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

func (c *pionConnection) OnTrack(fn func(MediaTrack, string)) {
	c.pc.OnTrack(func(remote *pion.TrackRemote, _ *pion.RTPReceiver) {
		kind := TrackAudio
		if remote.Kind() == pion.RTPCodecTypeVideo {
			kind = TrackVideo
		}
		fn(&remoteTrack{id: remote.ID(), kind: kind}, remote.StreamID())
	})
}

func (c *pionConnection) OnDataChannel(fn func(DataChannel)) {
	c.pc.OnDataChannel(func(dc *pion.DataChannel) {
		fn(&pionDataChannel{dc: dc})
	})
}

func (c *pionConnection) OnConnectionStateChange(fn func(ConnectionState)) {
	c.pc.OnConnectionStateChange(func(s pion.PeerConnectionState) {
		switch s {
		case pion.PeerConnectionStateConnecting:
			fn(ConnectionConnecting)
		case pion.PeerConnectionStateConnected:
			fn(ConnectionConnected)
		case pion.PeerConnectionStateDisconnected:
			fn(ConnectionDisconnected)
		case pion.PeerConnectionStateFailed:
			fn(ConnectionFailed)
		case pion.PeerConnectionStateClosed:
			fn(ConnectionClosed)
		default:
			fn(ConnectionNew)
		}
	})
}

func (c *pionConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.pc.Close(); err != nil {
		slog.Warn("peer connection close", "err", err)
		return err
	}
	return nil
}

// remoteTrack is a read-only view of an inbound pion track.
type remoteTrack struct {
	id   string
	kind TrackKind
}

func (t *remoteTrack) ID() string      { return t.id }
func (t *remoteTrack) Kind() TrackKind { return t.kind }
func (t *remoteTrack) Enabled() bool   { return true }
func (t *remoteTrack) SetEnabled(bool) {}
func (t *remoteTrack) Stop()           {}

// pionDataChannel adapts *pion.DataChannel.
type pionDataChannel struct {
	dc *pion.DataChannel
}

func (d *pionDataChannel) Label() string { return d.dc.Label() }

func (d *pionDataChannel) Send(data []byte) error {
	return d.dc.Send(data)
}

func (d *pionDataChannel) OnOpen(fn func()) {
	d.dc.OnOpen(fn)
}

func (d *pionDataChannel) OnMessage(fn func([]byte)) {
	d.dc.OnMessage(func(msg pion.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (d *pionDataChannel) Close() error {
	return d.dc.Close()
}
