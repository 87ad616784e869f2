package call

import (
	"errors"
	"testing"

	"github.com/BioHazard786/Wavecall/internal/rtc"
	"github.com/BioHazard786/Wavecall/internal/signaling"
)

func newTestNegotiator() (*Negotiator, *Registry, *fakeCapability, *fakeTransport) {
	cap := &fakeCapability{}
	reg := NewRegistry(cap, rtc.Config{}, RegistryHooks{})
	transport := newFakeTransport()
	neg := NewNegotiator(reg, "room-1", "alice", transport.Send)
	return neg, reg, cap, transport
}

func candidateEvent(sender string, purpose signaling.Purpose, candidate string) *signaling.Event {
	return &signaling.Event{
		Type:      signaling.EventCandidate,
		Sender:    sender,
		Purpose:   purpose,
		Candidate: &signaling.ICECandidate{Candidate: candidate},
	}
}

func TestOfferCreatesLinkAndSends(t *testing.T) {
	neg, reg, cap, transport := newTestNegotiator()

	if err := neg.Offer("bob", signaling.PurposePrimary, nil); err != nil {
		t.Fatalf("Offer: %v", err)
	}

	link, ok := reg.Get("bob", signaling.PurposePrimary)
	if !ok {
		t.Fatal("link not registered")
	}
	if link.state != stateOfferSent {
		t.Errorf("state = %s, want %s", link.state, stateOfferSent)
	}
	if cap.conn(0).SignalingState() != rtc.SignalingHaveLocalOffer {
		t.Errorf("signaling state = %s", cap.conn(0).SignalingState())
	}

	offers := transport.sentOfType(signaling.EventOffer)
	if len(offers) != 1 {
		t.Fatalf("sent %d offers, want 1", len(offers))
	}
	ev := offers[0]
	if ev.Target != "bob" || ev.Sender != "alice" || ev.Room != "room-1" {
		t.Errorf("offer addressing wrong: %+v", ev)
	}
	if ev.SDP == "" {
		t.Error("offer carries no SDP")
	}
}

func TestOnNewLinkRunsBeforeOffer(t *testing.T) {
	neg, _, cap, _ := newTestNegotiator()

	neg.OnNewLink(func(link *PeerLink) {
		if _, err := link.Conn.CreateDataChannel("chat"); err != nil {
			t.Fatalf("CreateDataChannel: %v", err)
		}
	})

	if err := neg.Offer("bob", signaling.PurposePrimary, nil); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if len(cap.conn(0).dataChannels) != 1 {
		t.Fatal("hook did not run for the new link")
	}

	// Re-offering the same link must not fire the hook again.
	if err := neg.Offer("bob", signaling.PurposePrimary, nil); err != nil {
		t.Fatalf("Offer again: %v", err)
	}
	if len(cap.conn(0).dataChannels) != 1 {
		t.Error("hook ran for an existing link")
	}
}

func TestHandleOfferProducesAnswer(t *testing.T) {
	neg, reg, cap, transport := newTestNegotiator()

	err := neg.HandleOffer(&signaling.Event{
		Type:   signaling.EventOffer,
		Sender: "bob",
		SDP:    "remote-offer",
	}, nil)
	if err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	conn := cap.conn(0)
	if !conn.HasRemoteDescription() {
		t.Fatal("remote description not applied")
	}
	link, _ := reg.Get("bob", signaling.PurposePrimary)
	if link.state != stateAnswerSent {
		t.Errorf("state = %s, want %s", link.state, stateAnswerSent)
	}

	answers := transport.sentOfType(signaling.EventAnswer)
	if len(answers) != 1 {
		t.Fatalf("sent %d answers, want 1", len(answers))
	}
	if answers[0].Target != "bob" {
		t.Errorf("answer target = %s", answers[0].Target)
	}
}

func TestAnswerAppliedWhenAwaited(t *testing.T) {
	neg, reg, cap, _ := newTestNegotiator()
	neg.Offer("bob", signaling.PurposePrimary, nil)

	neg.HandleAnswer(&signaling.Event{
		Type:   signaling.EventAnswer,
		Sender: "bob",
		SDP:    "remote-answer",
	})

	link, _ := reg.Get("bob", signaling.PurposePrimary)
	if link.state != stateStable {
		t.Errorf("state = %s, want %s", link.state, stateStable)
	}
	if !cap.conn(0).HasRemoteDescription() {
		t.Error("answer not applied")
	}
}

func TestAnswerForUnknownPeerIsDiscarded(t *testing.T) {
	neg, reg, _, _ := newTestNegotiator()

	neg.HandleAnswer(&signaling.Event{
		Type:   signaling.EventAnswer,
		Sender: "stranger",
		SDP:    "remote-answer",
	})

	if reg.Len() != 0 {
		t.Error("discarded answer must not create a link")
	}
}

func TestDuplicateAnswerIsDiscarded(t *testing.T) {
	neg, _, cap, _ := newTestNegotiator()
	neg.Offer("bob", signaling.PurposePrimary, nil)

	answer := &signaling.Event{Type: signaling.EventAnswer, Sender: "bob", SDP: "remote-answer"}
	neg.HandleAnswer(answer)
	neg.HandleAnswer(answer)

	if got := cap.conn(0).remoteSets; got != 1 {
		t.Errorf("remote description set %d times, want 1", got)
	}
}

func TestCandidateBufferedBeforeLinkExists(t *testing.T) {
	neg, _, cap, _ := newTestNegotiator()

	neg.HandleCandidate(candidateEvent("bob", signaling.PurposePrimary, "candidate:1"))
	neg.HandleCandidate(candidateEvent("bob", signaling.PurposePrimary, "candidate:2"))

	if got := neg.PendingCount("bob", signaling.PurposePrimary); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	// The offer arrives; buffered candidates drain in arrival order.
	if err := neg.HandleOffer(&signaling.Event{
		Type:   signaling.EventOffer,
		Sender: "bob",
		SDP:    "remote-offer",
	}, nil); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	conn := cap.conn(0)
	if conn.candidateCount() != 2 {
		t.Fatalf("applied %d candidates, want 2", conn.candidateCount())
	}
	if conn.candidates[0].Candidate != "candidate:1" || conn.candidates[1].Candidate != "candidate:2" {
		t.Errorf("candidates out of order: %v", conn.candidates)
	}
	if neg.PendingCount("bob", signaling.PurposePrimary) != 0 {
		t.Error("buffer not cleared after drain")
	}
}

func TestCandidateBufferedUntilRemoteDescription(t *testing.T) {
	neg, _, cap, _ := newTestNegotiator()
	neg.Offer("bob", signaling.PurposePrimary, nil)

	// Link exists but no remote description yet.
	neg.HandleCandidate(candidateEvent("bob", signaling.PurposePrimary, "candidate:1"))
	if cap.conn(0).candidateCount() != 0 {
		t.Fatal("candidate applied before remote description")
	}
	if neg.PendingCount("bob", signaling.PurposePrimary) != 1 {
		t.Fatal("candidate not buffered")
	}

	neg.HandleAnswer(&signaling.Event{Type: signaling.EventAnswer, Sender: "bob", SDP: "remote-answer"})
	if cap.conn(0).candidateCount() != 1 {
		t.Error("buffered candidate not drained after answer")
	}
}

func TestDrainSkipsFailingCandidateAndContinues(t *testing.T) {
	neg, _, cap, _ := newTestNegotiator()
	neg.Offer("bob", signaling.PurposePrimary, nil)

	neg.HandleCandidate(candidateEvent("bob", signaling.PurposePrimary, "candidate:1"))
	neg.HandleCandidate(candidateEvent("bob", signaling.PurposePrimary, "candidate:2"))
	neg.HandleCandidate(candidateEvent("bob", signaling.PurposePrimary, "candidate:3"))

	conn := cap.conn(0)
	conn.rejectCandidate("candidate:2", errors.New("malformed candidate"))

	neg.HandleAnswer(&signaling.Event{Type: signaling.EventAnswer, Sender: "bob", SDP: "remote-answer"})

	if conn.candidateCount() != 2 {
		t.Fatalf("applied %d candidates, want 2", conn.candidateCount())
	}
	if conn.candidates[0].Candidate != "candidate:1" || conn.candidates[1].Candidate != "candidate:3" {
		t.Errorf("surviving candidates = %v", conn.candidates)
	}
	if neg.PendingCount("bob", signaling.PurposePrimary) != 0 {
		t.Error("buffer must clear even when a candidate fails")
	}
}

func TestCandidateAppliedDirectlyWhenReady(t *testing.T) {
	neg, _, cap, _ := newTestNegotiator()
	neg.HandleOffer(&signaling.Event{Type: signaling.EventOffer, Sender: "bob", SDP: "remote-offer"}, nil)

	neg.HandleCandidate(candidateEvent("bob", signaling.PurposePrimary, "candidate:1"))

	if cap.conn(0).candidateCount() != 1 {
		t.Error("candidate should apply immediately once remote description exists")
	}
	if neg.PendingCount("bob", signaling.PurposePrimary) != 0 {
		t.Error("nothing should be buffered")
	}
}

func TestCandidatesBufferedPerPurpose(t *testing.T) {
	neg, _, _, _ := newTestNegotiator()

	neg.HandleCandidate(candidateEvent("bob", signaling.PurposePrimary, "candidate:1"))
	neg.HandleCandidate(candidateEvent("bob", signaling.PurposeScreen, "candidate:2"))

	if neg.PendingCount("bob", signaling.PurposePrimary) != 1 {
		t.Error("primary buffer wrong")
	}
	if neg.PendingCount("bob", signaling.PurposeScreen) != 1 {
		t.Error("screen buffer wrong")
	}

	neg.ForgetPurpose("bob", signaling.PurposeScreen)
	if neg.PendingCount("bob", signaling.PurposeScreen) != 0 {
		t.Error("screen buffer not forgotten")
	}
	if neg.PendingCount("bob", signaling.PurposePrimary) != 1 {
		t.Error("primary buffer must survive ForgetPurpose(screen)")
	}

	neg.Forget("bob")
	if neg.PendingCount("bob", signaling.PurposePrimary) != 0 {
		t.Error("Forget must clear all purposes")
	}
}

func TestEventsWithoutPurposeDefaultToPrimary(t *testing.T) {
	neg, reg, _, _ := newTestNegotiator()

	neg.HandleOffer(&signaling.Event{Type: signaling.EventOffer, Sender: "bob", SDP: "remote-offer"}, nil)

	if _, ok := reg.Get("bob", signaling.PurposePrimary); !ok {
		t.Error("offer without purpose must land on the primary link")
	}
}
