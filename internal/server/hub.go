package server

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/BioHazard786/Wavecall/internal/signaling"
)

// inbound pairs a decoded event with the client that sent it, so the hub's
// loop knows who to answer and which room to touch.
type inbound struct {
	event  *signaling.Event
	client *Client
}

// Hub is the central brain of the signaling server. It owns every room and
// every connected client; all state changes flow through its single Run
// goroutine, so no locks are needed.
type Hub struct {
	// Rooms maps room IDs to live rooms.
	Rooms map[string]*Room

	// Register announces a freshly upgraded connection.
	Register chan *Client

	// Unregister announces a dropped connection.
	Unregister chan *Client

	// Inbound carries every client event into the hub loop.
	Inbound chan *inbound

	// MaxPeers caps room occupancy. Zero means unlimited.
	MaxPeers int
}

// NewHub creates a hub with the given per-room occupancy cap.
func NewHub(maxPeers int) *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *inbound),
		MaxPeers:   maxPeers,
	}
}

// generateRoomID mints a memorable three-word room ID, retrying until it is
// not already in use.
func (h *Hub) generateRoomID() string {
	for {
		id := fmt.Sprintf("%s-%s-%s",
			adjectives[randomIndex(len(adjectives))],
			animals[randomIndex(len(animals))],
			dishes[randomIndex(len(dishes))])
		if _, ok := h.Rooms[id]; !ok {
			return id
		}
	}
}

// randomIndex returns a cryptographically secure random index for a slice of
// the given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("generate random index: %v", err))
	}
	return int(n.Int64())
}

// Run is the hub's main processing loop. It is the single goroutine that
// mutates rooms and client membership.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// Not in a room yet; membership starts with a join event.
			slog.Debug("client connected", "addr", client.Conn.RemoteAddr())

		case client := <-h.Unregister:
			h.removeClient(client)
			close(client.Send)

		case in := <-h.Inbound:
			h.handle(in)
		}
	}
}

func (h *Hub) handle(in *inbound) {
	ev, client := in.event, in.client

	if ev.Type == signaling.EventJoin {
		h.join(client, ev)
		return
	}

	// Every other event requires room membership.
	room, ok := h.Rooms[client.RoomID]
	if client.RoomID == "" || !ok {
		client.Send <- &signaling.Event{Type: signaling.EventError, Reason: signaling.ReasonNotJoined}
		return
	}

	switch ev.Type {
	case signaling.EventLeave:
		h.removeClient(client)

	case signaling.EventOffer, signaling.EventAnswer, signaling.EventCandidate:
		h.relay(room, client, ev)

	case signaling.EventScreenShare, signaling.EventMediaState, signaling.EventTyping:
		ev.Sender = client.Name
		ev.Room = room.ID
		room.BroadcastExcept(client.Name, ev)

	default:
		slog.Warn("unhandled event", "type", ev.Type, "from", client.Name)
		client.Send <- &signaling.Event{Type: signaling.EventError, Reason: signaling.ReasonBadEvent}
	}
}

// join validates a join request, creating the room when the client asked for
// a fresh one, and acknowledges with the current member list.
func (h *Hub) join(client *Client, ev *signaling.Event) {
	if ev.Sender == "" || client.RoomID != "" {
		client.Send <- &signaling.Event{Type: signaling.EventError, Reason: signaling.ReasonBadEvent}
		return
	}

	roomID := ev.Room
	if roomID == "" {
		roomID = h.generateRoomID()
	}
	room, ok := h.Rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		h.Rooms[roomID] = room
		slog.Info("room created", "room", roomID)
	}

	if h.MaxPeers > 0 && room.Len() >= h.MaxPeers {
		slog.Info("join rejected, room full", "room", roomID, "name", ev.Sender)
		client.Send <- &signaling.Event{Type: signaling.EventError, Reason: signaling.ReasonRoomFull}
		return
	}
	if room.Has(ev.Sender) {
		slog.Info("join rejected, name taken", "room", roomID, "name", ev.Sender)
		client.Send <- &signaling.Event{Type: signaling.EventError, Reason: signaling.ReasonNameTaken}
		return
	}

	existing := room.Names()
	room.Add(client, ev.Sender)
	client.Name = ev.Sender
	client.RoomID = roomID
	slog.Info("client joined", "room", roomID, "name", ev.Sender, "occupancy", room.Len())

	client.Send <- &signaling.Event{
		Type:    signaling.EventJoined,
		Room:    roomID,
		Users:   existing,
		IsFirst: len(existing) == 0,
	}
	room.BroadcastExcept(ev.Sender, &signaling.Event{
		Type:   signaling.EventPeerJoined,
		Room:   roomID,
		Sender: ev.Sender,
	})
}

// relay forwards a negotiation event to its addressed recipient only. Events
// for unknown targets are dropped; the peer may have just left.
func (h *Hub) relay(room *Room, from *Client, ev *signaling.Event) {
	target, ok := room.Get(ev.Target)
	if !ok {
		slog.Debug("relay target gone", "room", room.ID, "target", ev.Target, "type", ev.Type)
		return
	}
	ev.Sender = from.Name
	ev.Room = room.ID
	target.Send <- ev
}

// removeClient takes a client out of its room, tells the others, and deletes
// the room once empty. Safe for clients that never joined a room.
func (h *Hub) removeClient(client *Client) {
	if client.RoomID == "" {
		return
	}
	room, ok := h.Rooms[client.RoomID]
	if !ok {
		client.RoomID = ""
		return
	}

	room.Remove(client.Name)
	room.BroadcastExcept(client.Name, &signaling.Event{
		Type:   signaling.EventPeerLeft,
		Room:   room.ID,
		Sender: client.Name,
	})
	slog.Info("client left", "room", room.ID, "name", client.Name, "occupancy", room.Len())
	client.RoomID = ""
	client.Name = ""

	if room.Len() == 0 {
		delete(h.Rooms, room.ID)
		slog.Info("room deleted", "room", room.ID)
	}
}
