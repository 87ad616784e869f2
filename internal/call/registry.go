package call

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/Wavecall/internal/rtc"
	"github.com/BioHazard786/Wavecall/internal/signaling"
)

// negotiationState tracks where a PeerLink is in the offer/answer exchange.
type negotiationState string

const (
	stateIdle          negotiationState = "idle"
	stateOfferSent     negotiationState = "offer-sent"
	stateOfferReceived negotiationState = "offer-received"
	stateAnswerSent    negotiationState = "answer-sent"
	stateStable        negotiationState = "stable"
	stateClosed        negotiationState = "closed"
)

// linkKey identifies one peer connection: a remote participant plus the media
// purpose it carries.
type linkKey struct {
	name    string
	purpose signaling.Purpose
}

// PeerLink is one negotiated connection between the local client and a remote
// participant for a single purpose. The connection object is owned by the
// Registry; the negotiation state is advanced by the Negotiator, serialized
// by the session's event loop.
type PeerLink struct {
	RemoteName string
	Purpose    signaling.Purpose
	Conn       rtc.PeerConnection

	state negotiationState
}

// RegistryHooks receive the side effects of a live connection, routed with
// the owning link's identity.
type RegistryHooks struct {
	// OnCandidate forwards a locally gathered ICE candidate to signaling.
	OnCandidate func(remoteName string, purpose signaling.Purpose, cand rtc.ICECandidateInit)
	// OnTrack delivers an inbound remote track for the roster.
	OnTrack func(remoteName string, purpose signaling.Purpose, track rtc.MediaTrack, streamID string)
	// OnDataChannel delivers a remotely opened data channel (primary links only).
	OnDataChannel func(remoteName string, dc rtc.DataChannel)
	// OnConnectionState reports coarse connection lifecycle changes.
	OnConnectionState func(remoteName string, purpose signaling.Purpose, state rtc.ConnectionState)
}

// Registry is the single owner of peer connections, keyed by
// (remote participant, purpose). At most one link exists per key; creation is
// idempotent so simultaneous initiation from both sides converges on one
// connection object.
type Registry struct {
	capability rtc.Capability
	iceConfig  rtc.Config
	hooks      RegistryHooks

	mu    sync.Mutex
	links map[linkKey]*PeerLink
}

// NewRegistry creates an empty registry using the given capability and fixed
// ICE configuration for every connection it builds.
func NewRegistry(capability rtc.Capability, iceConfig rtc.Config, hooks RegistryHooks) *Registry {
	return &Registry{
		capability: capability,
		iceConfig:  iceConfig,
		hooks:      hooks,
		links:      make(map[linkKey]*PeerLink),
	}
}

// GetOrCreate returns the link for (name, purpose), creating it on first use.
// An existing link is returned unchanged; local tracks are never re-attached.
// The boolean reports whether the link was created by this call.
func (r *Registry) GetOrCreate(name string, purpose signaling.Purpose, local rtc.MediaStream) (*PeerLink, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := linkKey{name: name, purpose: purpose}
	if link, ok := r.links[key]; ok {
		return link, false, nil
	}

	conn, err := r.capability.NewPeerConnection(r.iceConfig)
	if err != nil {
		return nil, false, fmt.Errorf("peer connection for %s/%s: %w", name, purpose, err)
	}

	link := &PeerLink{
		RemoteName: name,
		Purpose:    purpose,
		Conn:       conn,
		state:      stateIdle,
	}

	if local != nil {
		for _, track := range local.Tracks() {
			if err := conn.AddTrack(track); err != nil {
				// Partial media keeps the call usable; never fatal.
				slog.Warn("attach local track", "peer", name, "purpose", purpose,
					"kind", track.Kind(), "err", err)
			}
		}
	}

	conn.OnICECandidate(func(cand rtc.ICECandidateInit) {
		if r.hooks.OnCandidate != nil {
			r.hooks.OnCandidate(name, purpose, cand)
		}
	})
	conn.OnTrack(func(track rtc.MediaTrack, streamID string) {
		if r.hooks.OnTrack != nil {
			r.hooks.OnTrack(name, purpose, track, streamID)
		}
	})
	conn.OnDataChannel(func(dc rtc.DataChannel) {
		if r.hooks.OnDataChannel != nil {
			r.hooks.OnDataChannel(name, dc)
		}
	})
	conn.OnConnectionStateChange(func(state rtc.ConnectionState) {
		if r.hooks.OnConnectionState != nil {
			r.hooks.OnConnectionState(name, purpose, state)
		}
	})

	r.links[key] = link
	slog.Debug("peer link created", "peer", name, "purpose", purpose)
	return link, true, nil
}

// Get returns the link for (name, purpose) if present.
func (r *Registry) Get(name string, purpose signaling.Purpose) (*PeerLink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[linkKey{name: name, purpose: purpose}]
	return link, ok
}

// Close tears down every link for the participant. Safe to call when none
// exist.
func (r *Registry) Close(name string) {
	r.ClosePurpose(name, signaling.PurposePrimary)
	r.ClosePurpose(name, signaling.PurposeScreen)
}

// ClosePurpose tears down a single link. Safe to call when absent.
func (r *Registry) ClosePurpose(name string, purpose signaling.Purpose) {
	r.mu.Lock()
	key := linkKey{name: name, purpose: purpose}
	link, ok := r.links[key]
	if ok {
		delete(r.links, key)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	link.state = stateClosed
	if err := link.Conn.Close(); err != nil {
		slog.Warn("close peer link", "peer", name, "purpose", purpose, "err", err)
	}
	slog.Debug("peer link closed", "peer", name, "purpose", purpose)
}

// CloseAll tears down every tracked link; used on hang-up.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	links := make([]*PeerLink, 0, len(r.links))
	for _, link := range r.links {
		links = append(links, link)
	}
	r.links = make(map[linkKey]*PeerLink)
	r.mu.Unlock()

	for _, link := range links {
		link.state = stateClosed
		if err := link.Conn.Close(); err != nil {
			slog.Warn("close peer link", "peer", link.RemoteName, "purpose", link.Purpose, "err", err)
		}
	}
}

// Links returns the keys of all live links for one purpose.
func (r *Registry) Links(purpose signaling.Purpose) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.links))
	for key := range r.links {
		if key.purpose == purpose {
			out = append(out, key.name)
		}
	}
	return out
}

// Len returns the number of live links.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}
