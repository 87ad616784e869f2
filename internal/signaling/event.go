package signaling

// EventType identifies a signaling event exchanged between a call client and
// the signaling server.
type EventType string

// Event type constants.
const (
	// Client to server.
	EventJoin  EventType = "join"
	EventLeave EventType = "leave"

	// Server to client.
	EventJoined     EventType = "joined"
	EventPeerJoined EventType = "peer_joined"
	EventPeerLeft   EventType = "peer_left"
	EventError      EventType = "error"

	// Relayed peer to peer (server routes by Target).
	EventOffer     EventType = "offer"
	EventAnswer    EventType = "answer"
	EventCandidate EventType = "candidate"

	// Broadcast to the whole room.
	EventScreenShare EventType = "screen_share"
	EventMediaState  EventType = "media_state"
	EventTyping      EventType = "typing"
)

// Purpose distinguishes the two independent peer connections a pair of
// participants may hold: the primary audio/video connection and the
// screen-share connection.
type Purpose string

const (
	PurposePrimary Purpose = "primary"
	PurposeScreen  Purpose = "screen"
)

// MediaKind names a toggleable media type in a media_state event.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Join failure reasons carried in an error event.
const (
	ReasonRoomFull  = "room_full"
	ReasonNameTaken = "name_taken"
	ReasonNotJoined = "not_joined"
	ReasonBadEvent  = "bad_event"
)

// ICECandidate is the wire form of a discovered network path. It mirrors the
// browser's RTCIceCandidateInit shape so either end can be a web client.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Event is the single message schema for all signaling traffic. The server
// inspects Type, Room and Target for routing and never looks at media fields.
type Event struct {
	Type   EventType `json:"type"`
	Room   string    `json:"room,omitempty"`
	Sender string    `json:"sender,omitempty"`
	Target string    `json:"target,omitempty"`

	// Negotiation fields for offer/answer/candidate. Purpose selects which
	// of the two per-pair connections the payload belongs to.
	Purpose   Purpose       `json:"purpose,omitempty"`
	SDP       string        `json:"sdp,omitempty"`
	Candidate *ICECandidate `json:"candidate_init,omitempty"`

	// Join acknowledgment fields.
	Users   []string `json:"users,omitempty"`
	IsFirst bool     `json:"is_first,omitempty"`

	// screen_share, media_state and typing fields.
	Enabled bool      `json:"enabled,omitempty"`
	Media   MediaKind `json:"media,omitempty"`

	// Error detail.
	Reason string `json:"reason,omitempty"`
}
