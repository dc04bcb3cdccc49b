package chat

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Hub owns every room. Rooms are keyed by user identity and hold the sockets
// that joined them. All state lives in the Run goroutine; the rest of the
// package talks to it over channels.
type Hub struct {
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	Register   chan *Client // socket opened
	Unregister chan *Client // socket closed
	join       chan *Client
	leave      chan *Client
	deliveries chan delivery
	queries    chan memberQuery

	done chan struct{}
}

// delivery targets a room, or a single client when client is set.
type delivery struct {
	room    string
	client  *Client
	except  *Client
	payload []byte
}

type memberQuery struct {
	room  string
	reply chan int
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		join:       make(chan *Client),
		leave:      make(chan *Client),
		deliveries: make(chan delivery, 256),
		queries:    make(chan memberQuery),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until ctx is cancelled, then closes every socket's
// send channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			close(c.send)
		}
		h.clients = nil
		h.rooms = nil
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.Register:
			h.clients[c] = struct{}{}

		case c := <-h.Unregister:
			h.remove(c)

		case c := <-h.join:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			room, ok := h.rooms[c.identity]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[c.identity] = room
			}
			room[c] = struct{}{}
			log.Debug().Str("user_id", c.identity).Int("sockets", len(room)).Msg("joined room")

		case c := <-h.leave:
			h.detach(c)

		case d := <-h.deliveries:
			if d.client != nil {
				if _, ok := h.clients[d.client]; ok {
					h.push(d.client, d.payload)
				}
				continue
			}
			for c := range h.rooms[d.room] {
				if c == d.except {
					continue
				}
				h.push(c, d.payload)
			}

		case q := <-h.queries:
			q.reply <- len(h.rooms[q.room])
		}
	}
}

// push hands payload to c without blocking. A client that cannot keep up
// is dropped.
func (h *Hub) push(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		log.Warn().Str("user_id", c.identity).Msg("dropping slow client")
		h.remove(c)
	}
}

func (h *Hub) detach(c *Client) {
	room, ok := h.rooms[c.identity]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.identity)
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.detach(c)
	delete(h.clients, c)
	close(c.send)
}

// Join adds c to the room of its identity. Joining twice is harmless.
func (h *Hub) Join(c *Client) {
	select {
	case h.join <- c:
	case <-h.done:
	}
}

// Leave takes c out of its room; the socket stays open.
func (h *Hub) Leave(c *Client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

// Route queues payload for every socket in room except one.
func (h *Hub) Route(room string, payload []byte, except *Client) {
	select {
	case h.deliveries <- delivery{room: room, except: except, payload: payload}:
	case <-h.done:
	}
}

// Reply queues payload for a single socket.
func (h *Hub) Reply(c *Client, payload []byte) {
	select {
	case h.deliveries <- delivery{client: c, payload: payload}:
	case <-h.done:
	}
}

// Members returns how many sockets are in room.
func (h *Hub) Members(room string) int {
	q := memberQuery{room: room, reply: make(chan int, 1)}
	select {
	case h.queries <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}
