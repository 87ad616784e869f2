package call

import (
	"fmt"
	"log/slog"

	"github.com/BioHazard786/Wavecall/internal/rtc"
	"github.com/BioHazard786/Wavecall/internal/signaling"
)

// Negotiator drives peer links through the offer/answer/ICE exchange. ICE
// candidates that outrun signaling (arriving before the offer, or before the
// remote description is applied) are buffered per link key and drained in
// arrival order once a remote description exists; this is the core ordering
// invariant of the whole exchange.
//
// All methods must be called from the session's event loop; the Negotiator
// itself holds no lock.
type Negotiator struct {
	registry *Registry
	send     func(*signaling.Event) error

	room      string
	localName string

	// onNewLink runs once per link created by a local offer, before the
	// offer is generated, so extras like data channels land in the SDP.
	onNewLink func(*PeerLink)

	pending map[linkKey][]rtc.ICECandidateInit
}

// NewNegotiator creates a negotiator bound to a registry and a signaling
// send function.
func NewNegotiator(registry *Registry, room, localName string, send func(*signaling.Event) error) *Negotiator {
	return &Negotiator{
		registry:  registry,
		send:      send,
		room:      room,
		localName: localName,
		pending:   make(map[linkKey][]rtc.ICECandidateInit),
	}
}

// OnNewLink installs the hook invoked for links created by Offer.
func (n *Negotiator) OnNewLink(fn func(*PeerLink)) {
	n.onNewLink = fn
}

// Offer initiates negotiation toward a remote participant: get or create the
// link, generate and apply a local offer, and relay it through signaling.
func (n *Negotiator) Offer(name string, purpose signaling.Purpose, local rtc.MediaStream) error {
	link, created, err := n.registry.GetOrCreate(name, purpose, local)
	if err != nil {
		return err
	}
	if created && n.onNewLink != nil {
		n.onNewLink(link)
	}

	offer, err := link.Conn.CreateOffer()
	if err != nil {
		return fmt.Errorf("offer to %s/%s: %w", name, purpose, err)
	}
	link.state = stateOfferSent

	return n.send(&signaling.Event{
		Type:    signaling.EventOffer,
		Room:    n.room,
		Sender:  n.localName,
		Target:  name,
		Purpose: purpose,
		SDP:     offer.SDP,
	})
}

// HandleOffer answers a remote offer: apply the remote description, drain any
// candidates that arrived early, then generate, apply and relay the answer.
// local may be nil for receive-only links (incoming screen shares).
func (n *Negotiator) HandleOffer(ev *signaling.Event, local rtc.MediaStream) error {
	purpose := purposeOf(ev)
	link, _, err := n.registry.GetOrCreate(ev.Sender, purpose, local)
	if err != nil {
		return err
	}
	link.state = stateOfferReceived

	if err := link.Conn.SetRemoteDescription(rtc.SessionDescription{Type: rtc.SDPOffer, SDP: ev.SDP}); err != nil {
		return fmt.Errorf("remote offer from %s/%s: %w", ev.Sender, purpose, err)
	}
	n.drain(link)

	answer, err := link.Conn.CreateAnswer()
	if err != nil {
		return fmt.Errorf("answer to %s/%s: %w", ev.Sender, purpose, err)
	}
	link.state = stateAnswerSent

	return n.send(&signaling.Event{
		Type:    signaling.EventAnswer,
		Room:    n.room,
		Sender:  n.localName,
		Target:  ev.Sender,
		Purpose: purpose,
		SDP:     answer.SDP,
	})
}

// HandleAnswer applies a remote answer, but only when the link is actually
// awaiting one; duplicate or late answers are discarded so they cannot corrupt
// a connection that has already settled.
func (n *Negotiator) HandleAnswer(ev *signaling.Event) {
	purpose := purposeOf(ev)
	link, ok := n.registry.Get(ev.Sender, purpose)
	if !ok {
		slog.Warn("answer for unknown peer", "peer", ev.Sender, "purpose", purpose)
		return
	}
	if link.state != stateOfferSent || link.Conn.SignalingState() != rtc.SignalingHaveLocalOffer {
		slog.Warn("discarding answer in wrong state", "peer", ev.Sender, "purpose", purpose,
			"state", string(link.state), "signaling_state", string(link.Conn.SignalingState()))
		return
	}

	if err := link.Conn.SetRemoteDescription(rtc.SessionDescription{Type: rtc.SDPAnswer, SDP: ev.SDP}); err != nil {
		slog.Warn("apply answer", "peer", ev.Sender, "purpose", purpose, "err", err)
		return
	}
	link.state = stateStable
	n.drain(link)
}

// HandleCandidate applies a remote ICE candidate immediately when the link
// already has a remote description, and buffers it otherwise — including
// candidates for peers we have not even seen an offer from yet.
func (n *Negotiator) HandleCandidate(ev *signaling.Event) {
	if ev.Candidate == nil {
		return
	}
	purpose := purposeOf(ev)
	cand := rtc.ICECandidateInit{
		Candidate:     ev.Candidate.Candidate,
		SDPMid:        ev.Candidate.SDPMid,
		SDPMLineIndex: ev.Candidate.SDPMLineIndex,
	}

	key := linkKey{name: ev.Sender, purpose: purpose}
	link, ok := n.registry.Get(ev.Sender, purpose)
	if !ok || !link.Conn.HasRemoteDescription() {
		n.pending[key] = append(n.pending[key], cand)
		slog.Debug("buffered early candidate", "peer", ev.Sender, "purpose", purpose,
			"buffered", len(n.pending[key]))
		return
	}

	if err := link.Conn.AddICECandidate(cand); err != nil {
		slog.Warn("apply candidate", "peer", ev.Sender, "purpose", purpose, "err", err)
	}
}

// drain applies buffered candidates in arrival order. A failing candidate is
// logged and skipped; the rest still apply.
func (n *Negotiator) drain(link *PeerLink) {
	key := linkKey{name: link.RemoteName, purpose: link.Purpose}
	buffered := n.pending[key]
	if len(buffered) == 0 {
		return
	}
	delete(n.pending, key)

	for _, cand := range buffered {
		if err := link.Conn.AddICECandidate(cand); err != nil {
			slog.Warn("apply buffered candidate", "peer", link.RemoteName,
				"purpose", link.Purpose, "err", err)
		}
	}
	slog.Debug("drained candidate buffer", "peer", link.RemoteName,
		"purpose", link.Purpose, "count", len(buffered))
}

// Forget discards all buffered candidates for a participant.
func (n *Negotiator) Forget(name string) {
	delete(n.pending, linkKey{name: name, purpose: signaling.PurposePrimary})
	delete(n.pending, linkKey{name: name, purpose: signaling.PurposeScreen})
}

// ForgetPurpose discards buffered candidates for one link.
func (n *Negotiator) ForgetPurpose(name string, purpose signaling.Purpose) {
	delete(n.pending, linkKey{name: name, purpose: purpose})
}

// PendingCount reports how many candidates are buffered for a link key.
func (n *Negotiator) PendingCount(name string, purpose signaling.Purpose) int {
	return len(n.pending[linkKey{name: name, purpose: purpose}])
}

// purposeOf defaults an event without an explicit purpose to the primary
// connection, tolerating older clients that never set the field.
func purposeOf(ev *signaling.Event) signaling.Purpose {
	if ev.Purpose == signaling.PurposeScreen {
		return signaling.PurposeScreen
	}
	return signaling.PurposePrimary
}
