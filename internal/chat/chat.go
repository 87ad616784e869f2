package chat

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/BioHazard786/Wavecall/internal/rtc"
)

// ChannelLabel is the data-channel label used for in-call chat.
const ChannelLabel = "chat"

// Message is one in-call chat message, msgpack-encoded on the wire.
type Message struct {
	Sender string    `msgpack:"sender"`
	Text   string    `msgpack:"text"`
	SentAt time.Time `msgpack:"sent_at"`
}

// Encode serializes a message for the data channel.
func Encode(msg Message) ([]byte, error) {
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal chat message: %w", err)
	}
	return data, nil
}

// Decode parses a data-channel payload.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("parse chat message: %w", err)
	}
	return msg, nil
}

// Manager holds one chat data channel per connected peer and fans local
// messages out to all of them. Chat rides the already-negotiated primary
// links, so the signaling server never sees message bodies.
type Manager struct {
	localName string
	onMessage func(Message)

	mu       sync.Mutex
	channels map[string]rtc.DataChannel
	open     map[string]bool
}

// NewManager creates a chat manager. onMessage, if non-nil, receives every
// decoded inbound message.
func NewManager(localName string, onMessage func(Message)) *Manager {
	return &Manager{
		localName: localName,
		onMessage: onMessage,
		channels:  make(map[string]rtc.DataChannel),
		open:      make(map[string]bool),
	}
}

// Open creates the chat channel on a link we are about to offer on. Must run
// before the offer is generated so the channel is part of the SDP.
func (m *Manager) Open(peer string, conn rtc.PeerConnection) {
	dc, err := conn.CreateDataChannel(ChannelLabel)
	if err != nil {
		slog.Warn("create chat channel", "peer", peer, "err", err)
		return
	}
	m.Attach(peer, dc)
}

// Attach adopts a chat channel, whether locally created or announced by the
// remote side. Non-chat channels are ignored.
func (m *Manager) Attach(peer string, dc rtc.DataChannel) {
	if dc.Label() != ChannelLabel {
		return
	}

	dc.OnOpen(func() {
		m.mu.Lock()
		m.open[peer] = true
		m.mu.Unlock()
		slog.Debug("chat channel open", "peer", peer)
	})
	dc.OnMessage(func(data []byte) {
		msg, err := Decode(data)
		if err != nil {
			slog.Warn("bad chat message", "peer", peer, "err", err)
			return
		}
		if m.onMessage != nil {
			m.onMessage(msg)
		}
	})

	m.mu.Lock()
	m.channels[peer] = dc
	m.mu.Unlock()
}

// Send fans a local message out to every open channel and returns it for the
// sender's own chat log.
func (m *Manager) Send(text string) (Message, error) {
	msg := Message{Sender: m.localName, Text: text, SentAt: time.Now()}
	data, err := Encode(msg)
	if err != nil {
		return Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for peer, dc := range m.channels {
		if !m.open[peer] {
			continue
		}
		if err := dc.Send(data); err != nil {
			slog.Warn("send chat message", "peer", peer, "err", err)
		}
	}
	return msg, nil
}

// Drop forgets the channel for a departed peer.
func (m *Manager) Drop(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, peer)
	delete(m.open, peer)
}

// Close drops every channel. The underlying transports are owned by the peer
// connections and closed with them.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = make(map[string]rtc.DataChannel)
	m.open = make(map[string]bool)
}
