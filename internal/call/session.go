package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/Wavecall/internal/chat"
	"github.com/BioHazard786/Wavecall/internal/rtc"
	"github.com/BioHazard786/Wavecall/internal/signaling"
)

// Transport is the signaling channel contract the session depends on. The
// production implementation is signaling.Client; tests use in-memory pairs.
type Transport interface {
	Send(*signaling.Event) error
	Incoming() <-chan *signaling.Event
	Close()
}

var (
	ErrRoomFull       = errors.New("room is full")
	ErrNameTaken      = errors.New("name already taken in this room")
	ErrJoinRejected   = errors.New("join rejected")
	ErrAlreadySharing = errors.New("another participant is sharing their screen")
	ErrSessionClosed  = errors.New("session closed")
)

// Options configure a call session.
type Options struct {
	// Room to join. Empty lets the server mint a fresh room ID.
	Room string
	// Name is the local participant's identifier within the room.
	Name string

	Transport  Transport
	Capability rtc.Capability
	ICE        rtc.Config

	// DisableMedia joins without acquiring local audio/video; incoming
	// offers are still answered receive-only.
	DisableMedia bool

	// Presentation callbacks. All may be nil.
	OnRoster func([]Participant)
	OnChat   func(chat.Message)
	OnTyping func(name string)
	OnError  func(reason string)
}

// Session orchestrates one client's participation in a mesh call: the join
// handshake, per-peer negotiation, screen sharing, media-state fan-out,
// in-call chat and teardown.
//
// All signaling events funnel through a single dispatch loop, and local
// operations share its lock, so per-peer state is mutated by one goroutine
// at a time.
type Session struct {
	opts Options
	room string

	roster     *Roster
	registry   *Registry
	negotiator *Negotiator
	chat       *chat.Manager

	mu           sync.Mutex
	localPrimary rtc.MediaStream
	localScreen  rtc.MediaStream
	audioOn      bool
	videoOn      bool
	closed       bool

	done chan struct{}
}

// Join connects to a room: it performs the join handshake, acquires local
// media, and initiates an offer toward every participant already present.
// The returned session is live; its event loop runs until the transport
// closes or Close is called.
func Join(ctx context.Context, opts Options) (*Session, error) {
	if opts.Name == "" {
		return nil, errors.New("participant name is required")
	}
	if opts.Transport == nil || opts.Capability == nil {
		return nil, errors.New("transport and capability are required")
	}

	if err := opts.Transport.Send(&signaling.Event{
		Type:   signaling.EventJoin,
		Room:   opts.Room,
		Sender: opts.Name,
	}); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}

	ack, err := awaitJoinAck(ctx, opts.Transport)
	if err != nil {
		return nil, err
	}

	s := &Session{
		opts: opts,
		room: ack.Room,
		done: make(chan struct{}),
	}
	s.roster = NewRoster(opts.OnRoster)
	s.chat = chat.NewManager(opts.Name, opts.OnChat)

	s.registry = NewRegistry(opts.Capability, opts.ICE, RegistryHooks{
		OnCandidate:       s.sendCandidate,
		OnTrack:           s.roster.AddTrack,
		OnDataChannel:     s.chat.Attach,
		OnConnectionState: s.connectionStateChanged,
	})
	s.negotiator = NewNegotiator(s.registry, s.room, opts.Name, opts.Transport.Send)
	s.negotiator.OnNewLink(func(link *PeerLink) {
		if link.Purpose == signaling.PurposePrimary {
			s.chat.Open(link.RemoteName, link.Conn)
		}
	})

	if !opts.DisableMedia {
		if err := s.ensureLocalMedia(); err != nil {
			return nil, err
		}
	}
	s.roster.AddLocal(opts.Name, localStreamRef(s.localPrimary), s.audioOn, s.videoOn)

	// The ack lists who is already in the room; the newcomer initiates.
	for _, name := range ack.Users {
		s.roster.Ensure(name)
		if err := s.negotiator.Offer(name, signaling.PurposePrimary, s.localPrimary); err != nil {
			slog.Warn("initial offer", "peer", name, "err", err)
		}
	}
	if ack.IsFirst {
		slog.Info("first in the call", "room", s.room)
	}

	go s.run()
	return s, nil
}

type joinAck struct {
	Room    string
	Users   []string
	IsFirst bool
}

// awaitJoinAck blocks until the server acknowledges or rejects the join.
func awaitJoinAck(ctx context.Context, t Transport) (joinAck, error) {
	for {
		select {
		case <-ctx.Done():
			return joinAck{}, ctx.Err()
		case ev, ok := <-t.Incoming():
			if !ok {
				return joinAck{}, errors.New("signaling connection lost during join")
			}
			switch ev.Type {
			case signaling.EventJoined:
				return joinAck{Room: ev.Room, Users: ev.Users, IsFirst: ev.IsFirst}, nil
			case signaling.EventError:
				switch ev.Reason {
				case signaling.ReasonRoomFull:
					return joinAck{}, ErrRoomFull
				case signaling.ReasonNameTaken:
					return joinAck{}, ErrNameTaken
				default:
					return joinAck{}, fmt.Errorf("%w: %s", ErrJoinRejected, ev.Reason)
				}
			default:
				// Nothing else is expected before the ack; drop it.
				slog.Debug("event before join ack", "type", ev.Type)
			}
		}
	}
}

// Room returns the joined room's ID (server-assigned when none was requested).
func (s *Session) Room() string { return s.room }

// Roster exposes the participant list for the presentation layer.
func (s *Session) Roster() *Roster { return s.roster }

// Done is closed when the session's event loop has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// run is the session's event loop: every inbound signaling event is handled
// here, serialized with local operations via s.mu.
func (s *Session) run() {
	defer close(s.done)
	for ev := range s.opts.Transport.Incoming() {
		s.handle(ev)
	}
	slog.Info("signaling connection closed", "room", s.room)
	s.teardown()
}

func (s *Session) handle(ev *signaling.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	switch ev.Type {
	case signaling.EventPeerJoined:
		// The newcomer initiates; we only learn the name.
		s.roster.Ensure(ev.Sender)
		slog.Info("peer joined", "peer", ev.Sender, "room", s.room)

	case signaling.EventPeerLeft:
		s.dropPeer(ev.Sender)
		slog.Info("peer left", "peer", ev.Sender, "room", s.room)

	case signaling.EventOffer:
		s.handleOffer(ev)

	case signaling.EventAnswer:
		s.negotiator.HandleAnswer(ev)

	case signaling.EventCandidate:
		s.negotiator.HandleCandidate(ev)

	case signaling.EventScreenShare:
		s.handleScreenShare(ev)

	case signaling.EventMediaState:
		s.roster.SetMediaState(ev.Sender, ev.Media, ev.Enabled)

	case signaling.EventTyping:
		if s.opts.OnTyping != nil {
			s.opts.OnTyping(ev.Sender)
		}

	case signaling.EventError:
		slog.Warn("signaling error", "reason", ev.Reason)
		if s.opts.OnError != nil {
			s.opts.OnError(ev.Reason)
		}

	default:
		slog.Debug("unhandled signaling event", "type", ev.Type)
	}
}

func (s *Session) handleOffer(ev *signaling.Event) {
	s.roster.Ensure(ev.Sender)

	var local rtc.MediaStream
	if purposeOf(ev) == signaling.PurposePrimary && !s.opts.DisableMedia {
		// Media acquisition is a blocking prerequisite for answering.
		if err := s.ensureLocalMedia(); err != nil {
			slog.Warn("acquire media for answer", "peer", ev.Sender, "err", err)
		}
		local = s.localPrimary
	}

	if err := s.negotiator.HandleOffer(ev, local); err != nil {
		slog.Warn("handle offer", "peer", ev.Sender, "purpose", purposeOf(ev), "err", err)
	}
}

func (s *Session) handleScreenShare(ev *signaling.Event) {
	if ev.Sender == s.opts.Name {
		return
	}
	s.roster.Ensure(ev.Sender)
	s.roster.SetSharing(ev.Sender, ev.Enabled)
	if !ev.Enabled {
		s.registry.ClosePurpose(ev.Sender, signaling.PurposeScreen)
		s.negotiator.ForgetPurpose(ev.Sender, signaling.PurposeScreen)
		s.roster.ClearScreen(ev.Sender)
	}
}

// dropPeer removes every trace of a departed participant: links, buffered
// candidates, chat channel and roster entry.
func (s *Session) dropPeer(name string) {
	s.registry.Close(name)
	s.negotiator.Forget(name)
	s.chat.Drop(name)
	s.roster.Remove(name)
}

// ensureLocalMedia lazily acquires the primary stream. Callers hold s.mu or
// run before the event loop starts.
func (s *Session) ensureLocalMedia() error {
	if s.localPrimary != nil {
		return nil
	}
	stream, err := s.opts.Capability.CaptureUserMedia(true, true)
	if err != nil {
		return fmt.Errorf("acquire local media: %w", err)
	}
	s.localPrimary = stream
	s.audioOn = true
	s.videoOn = true
	return nil
}

// sendCandidate relays a locally gathered candidate; invoked from connection
// callbacks, which Transport.Send tolerates.
func (s *Session) sendCandidate(name string, purpose signaling.Purpose, cand rtc.ICECandidateInit) {
	err := s.opts.Transport.Send(&signaling.Event{
		Type:    signaling.EventCandidate,
		Room:    s.room,
		Sender:  s.opts.Name,
		Target:  name,
		Purpose: purpose,
		Candidate: &signaling.ICECandidate{
			Candidate:     cand.Candidate,
			SDPMid:        cand.SDPMid,
			SDPMLineIndex: cand.SDPMLineIndex,
		},
	})
	if err != nil {
		slog.Debug("relay candidate", "peer", name, "err", err)
	}
}

func (s *Session) connectionStateChanged(name string, purpose signaling.Purpose, state rtc.ConnectionState) {
	if purpose != signaling.PurposePrimary {
		return
	}
	switch state {
	case rtc.ConnectionConnected:
		s.roster.SetConnected(name, true)
	case rtc.ConnectionDisconnected, rtc.ConnectionFailed, rtc.ConnectionClosed:
		s.roster.SetConnected(name, false)
	}
}

// StartScreenShare captures the display and offers a screen-purpose
// connection to every known peer. Exclusivity is advisory: we refuse locally
// when someone else is presenting, but the server does not enforce it.
func (s *Session) StartScreenShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.localScreen != nil {
		return nil
	}
	if sharer, ok := s.roster.Sharer(); ok && sharer != s.opts.Name {
		return ErrAlreadySharing
	}

	stream, err := s.opts.Capability.CaptureDisplay()
	if err != nil {
		return fmt.Errorf("capture display: %w", err)
	}
	s.localScreen = stream
	s.roster.SetSharing(s.opts.Name, true)

	if err := s.opts.Transport.Send(&signaling.Event{
		Type:    signaling.EventScreenShare,
		Room:    s.room,
		Sender:  s.opts.Name,
		Enabled: true,
	}); err != nil {
		slog.Warn("announce screen share", "err", err)
	}

	for _, p := range s.roster.Snapshot() {
		if p.Local {
			continue
		}
		if err := s.negotiator.Offer(p.Name, signaling.PurposeScreen, s.localScreen); err != nil {
			slog.Warn("screen offer", "peer", p.Name, "err", err)
		}
	}
	return nil
}

// StopScreenShare tears down the screen links and announces the stop.
func (s *Session) StopScreenShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.localScreen == nil {
		return nil
	}

	for _, name := range s.registry.Links(signaling.PurposeScreen) {
		s.registry.ClosePurpose(name, signaling.PurposeScreen)
		s.negotiator.ForgetPurpose(name, signaling.PurposeScreen)
	}
	s.localScreen.Close()
	s.localScreen = nil
	s.roster.SetSharing(s.opts.Name, false)

	return s.opts.Transport.Send(&signaling.Event{
		Type:    signaling.EventScreenShare,
		Room:    s.room,
		Sender:  s.opts.Name,
		Enabled: false,
	})
}

// SetAudioEnabled toggles the local microphone tracks and broadcasts the
// media state.
func (s *Session) SetAudioEnabled(enabled bool) error {
	return s.setMediaEnabled(signaling.MediaAudio, enabled)
}

// SetVideoEnabled toggles the local camera tracks and broadcasts the media
// state.
func (s *Session) SetVideoEnabled(enabled bool) error {
	return s.setMediaEnabled(signaling.MediaVideo, enabled)
}

func (s *Session) setMediaEnabled(media signaling.MediaKind, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.localPrimary == nil {
		return nil
	}

	kind := rtc.TrackAudio
	if media == signaling.MediaVideo {
		kind = rtc.TrackVideo
	}
	for _, track := range s.localPrimary.Tracks() {
		if track.Kind() == kind {
			track.SetEnabled(enabled)
		}
	}
	if media == signaling.MediaAudio {
		s.audioOn = enabled
	} else {
		s.videoOn = enabled
	}
	s.roster.SetMediaState(s.opts.Name, media, enabled)

	return s.opts.Transport.Send(&signaling.Event{
		Type:    signaling.EventMediaState,
		Room:    s.room,
		Sender:  s.opts.Name,
		Media:   media,
		Enabled: enabled,
	})
}

// SendChat fans a chat message out over the peer data channels.
func (s *Session) SendChat(text string) error {
	if text == "" {
		return nil
	}
	msg, err := s.chat.Send(text)
	if err != nil {
		return err
	}
	if s.opts.OnChat != nil {
		s.opts.OnChat(msg)
	}
	return nil
}

// SendTyping broadcasts a typing notification through signaling.
func (s *Session) SendTyping() error {
	return s.opts.Transport.Send(&signaling.Event{
		Type:   signaling.EventTyping,
		Room:   s.room,
		Sender: s.opts.Name,
	})
}

// Close hangs up: it announces the leave, closes every peer connection,
// stops local media and shuts the transport.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// Best effort; the server also detects the socket closing.
	_ = s.opts.Transport.Send(&signaling.Event{
		Type:   signaling.EventLeave,
		Room:   s.room,
		Sender: s.opts.Name,
	})
	s.teardown()
	s.opts.Transport.Close()
}

// teardown releases every connection and media resource. No link may survive
// a hang-up, whatever state negotiation was in.
func (s *Session) teardown() {
	s.mu.Lock()
	s.closed = true
	localPrimary := s.localPrimary
	localScreen := s.localScreen
	s.localPrimary = nil
	s.localScreen = nil
	s.mu.Unlock()

	s.registry.CloseAll()
	s.chat.Close()
	if localPrimary != nil {
		localPrimary.Close()
	}
	if localScreen != nil {
		localScreen.Close()
	}
}

// localStreamRef converts a capability stream into a roster reference.
func localStreamRef(stream rtc.MediaStream) *Stream {
	if stream == nil {
		return nil
	}
	return &Stream{ID: stream.ID(), Tracks: stream.Tracks()}
}
