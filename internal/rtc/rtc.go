// Package rtc abstracts the WebRTC host capabilities the call orchestrator
// needs. In a browser these are RTCPeerConnection, getUserMedia and
// getDisplayMedia; here they are provided by pion (see engine.go) or by test
// fakes, so the orchestrator itself never touches a concrete stack.
package rtc

// SDPType is the type of a session description.
type SDPType string

const (
	SDPOffer  SDPType = "offer"
	SDPAnswer SDPType = "answer"
)

// SessionDescription is a negotiated media description (SDP).
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// ICECandidateInit is a discovered network path in wire form.
type ICECandidateInit struct {
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// SignalingState mirrors the subset of the RTCPeerConnection signaling states
// the negotiation logic guards on.
type SignalingState string

const (
	SignalingStable          SignalingState = "stable"
	SignalingHaveLocalOffer  SignalingState = "have-local-offer"
	SignalingHaveRemoteOffer SignalingState = "have-remote-offer"
	SignalingClosed          SignalingState = "closed"
)

// ConnectionState is the coarse lifecycle state of a peer connection.
type ConnectionState string

const (
	ConnectionNew          ConnectionState = "new"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionFailed       ConnectionState = "failed"
	ConnectionClosed       ConnectionState = "closed"
)

// TrackKind is the media type of a track.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// MediaTrack is a single audio or video track, local or remote.
type MediaTrack interface {
	ID() string
	Kind() TrackKind
	// Enabled reports whether the track is live (unmuted). Disabling a local
	// track pauses its media without renegotiating.
	Enabled() bool
	SetEnabled(bool)
	Stop()
}

// MediaStream groups tracks that belong together, like the browser's
// MediaStream.
type MediaStream interface {
	ID() string
	Tracks() []MediaTrack
	Close()
}

// DataChannel is a bidirectional message channel riding on a peer connection.
type DataChannel interface {
	Label() string
	Send([]byte) error
	OnOpen(func())
	OnMessage(func([]byte))
	Close() error
}

// PeerConnection is the orchestrator-facing contract of one peer connection.
// CreateOffer and CreateAnswer also set the local description, matching how
// every call site uses them.
type PeerConnection interface {
	CreateOffer() (SessionDescription, error)
	CreateAnswer() (SessionDescription, error)
	SetRemoteDescription(SessionDescription) error
	// HasRemoteDescription reports whether a remote description has been
	// applied; candidates must be buffered until it has.
	HasRemoteDescription() bool
	SignalingState() SignalingState
	AddICECandidate(ICECandidateInit) error
	AddTrack(MediaTrack) error
	CreateDataChannel(label string) (DataChannel, error)

	OnICECandidate(func(ICECandidateInit))
	OnTrack(func(track MediaTrack, streamID string))
	OnDataChannel(func(DataChannel))
	OnConnectionStateChange(func(ConnectionState))

	Close() error
}

// ICEServer configures one STUN or TURN server.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Config is the fixed ICE configuration used for every peer connection.
type Config struct {
	ICEServers []ICEServer
	// ForceRelay restricts gathering to relay candidates (TURN only).
	ForceRelay bool
}

// Capability is the injectable factory for host WebRTC resources.
type Capability interface {
	NewPeerConnection(Config) (PeerConnection, error)
	// CaptureUserMedia acquires the local primary media, the getUserMedia
	// equivalent. May block on whatever the host considers a permission step.
	CaptureUserMedia(audio, video bool) (MediaStream, error)
	// CaptureDisplay acquires a screen-capture stream, the getDisplayMedia
	// equivalent.
	CaptureDisplay() (MediaStream, error)
}
