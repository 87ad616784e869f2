package chat

import (
	"testing"
	"time"

	"github.com/BioHazard786/Wavecall/internal/rtc"
)

type stubChannel struct {
	label     string
	sent      [][]byte
	onOpen    func()
	onMessage func([]byte)
}

func (s *stubChannel) Label() string { return s.label }
func (s *stubChannel) Send(data []byte) error {
	s.sent = append(s.sent, data)
	return nil
}
func (s *stubChannel) OnOpen(fn func())          { s.onOpen = fn }
func (s *stubChannel) OnMessage(fn func([]byte)) { s.onMessage = fn }
func (s *stubChannel) Close() error              { return nil }

var _ rtc.DataChannel = (*stubChannel)(nil)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := Message{Sender: "alice", Text: "hello", SentAt: time.Now().Truncate(time.Millisecond)}

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Sender != msg.Sender || got.Text != msg.Text {
		t.Errorf("got %+v, want %+v", got, msg)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0x00, 0x01}); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestAttachIgnoresOtherLabels(t *testing.T) {
	m := NewManager("alice", nil)
	dc := &stubChannel{label: "file-transfer"}

	m.Attach("bob", dc)
	if dc.onMessage != nil {
		t.Error("manager adopted a non-chat channel")
	}
}

func TestSendOnlyReachesOpenChannels(t *testing.T) {
	m := NewManager("alice", nil)

	open := &stubChannel{label: ChannelLabel}
	pending := &stubChannel{label: ChannelLabel}
	m.Attach("bob", open)
	m.Attach("carol", pending)
	open.onOpen()

	msg, err := m.Send("hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Sender != "alice" || msg.Text != "hello" {
		t.Errorf("returned message wrong: %+v", msg)
	}
	if len(open.sent) != 1 {
		t.Errorf("open channel got %d messages, want 1", len(open.sent))
	}
	if len(pending.sent) != 0 {
		t.Errorf("pending channel got %d messages, want 0", len(pending.sent))
	}
}

func TestInboundMessagesSurface(t *testing.T) {
	var got []Message
	m := NewManager("alice", func(msg Message) { got = append(got, msg) })

	dc := &stubChannel{label: ChannelLabel}
	m.Attach("bob", dc)

	data, _ := Encode(Message{Sender: "bob", Text: "hi"})
	dc.onMessage(data)
	dc.onMessage([]byte{0xff}) // bad payload is dropped, not fatal

	if len(got) != 1 || got[0].Sender != "bob" {
		t.Errorf("surfaced messages = %v", got)
	}
}

func TestDropForgetsPeer(t *testing.T) {
	m := NewManager("alice", nil)
	dc := &stubChannel{label: ChannelLabel}
	m.Attach("bob", dc)
	dc.onOpen()

	m.Drop("bob")

	if _, err := m.Send("anyone there?"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(dc.sent) != 0 {
		t.Error("dropped channel still receives messages")
	}
}
