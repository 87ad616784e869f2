package server

import "github.com/BioHazard786/Wavecall/internal/signaling"

// Room is a set of named participants sharing one call. Only the hub's loop
// touches a room, so no lock is needed.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	clients map[string]*Client
	order   []string
}

// NewRoom creates an empty room.
func NewRoom(id string) *Room {
	return &Room{ID: id, clients: make(map[string]*Client)}
}

// Add registers a client under its participant name.
func (r *Room) Add(client *Client, name string) {
	r.clients[name] = client
	r.order = append(r.order, name)
}

// Remove drops a participant by name. Unknown names are a no-op.
func (r *Room) Remove(name string) {
	if _, ok := r.clients[name]; !ok {
		return
	}
	delete(r.clients, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the client registered under a name.
func (r *Room) Get(name string) (*Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Has reports whether a name is taken in this room.
func (r *Room) Has(name string) bool {
	_, ok := r.clients[name]
	return ok
}

// Names returns the participant names in join order.
func (r *Room) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the current occupancy.
func (r *Room) Len() int {
	return len(r.clients)
}

// BroadcastExcept queues an event to every participant but the named one.
func (r *Room) BroadcastExcept(except string, ev *signaling.Event) {
	for name, client := range r.clients {
		if name == except {
			continue
		}
		client.Send <- ev
	}
}
