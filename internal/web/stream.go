package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"advancedwind/internal/wind"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 16
	writeWait         = 2 * time.Second
)

// StreamMessage is one published result as pushed over /ws/wind.
type StreamMessage struct {
	Channel wind.Channel `json:"channel"`
	OutputView
}

// Room fans published results out to every connected websocket client.
// It implements wind.Sink; Publish never blocks, so a slow browser drops
// messages instead of stalling the calculator.
type Room struct {
	forward chan []byte
	join    chan *client
	leave   chan *client
	done    chan struct{}

	clients  map[*client]bool
	count    atomic.Int32
	dropped  atomic.Uint64
	upgrader websocket.Upgrader
}

type client struct {
	socket *websocket.Conn
	send   chan []byte
}

func NewRoom() *Room {
	return &Room{
		forward:  make(chan []byte, messageBufferSize),
		join:     make(chan *client),
		leave:    make(chan *client),
		done:     make(chan struct{}),
		clients:  make(map[*client]bool),
		upgrader: websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize},
	}
}

// Run delivers messages until ctx ends, then disconnects every client.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			for c := range r.clients {
				close(c.send)
				delete(r.clients, c)
			}
			r.count.Store(0)
			return
		case c := <-r.join:
			r.clients[c] = true
			r.count.Store(int32(len(r.clients)))
		case c := <-r.leave:
			if r.clients[c] {
				delete(r.clients, c)
				close(c.send)
			}
			r.count.Store(int32(len(r.clients)))
		case msg := <-r.forward:
			for c := range r.clients {
				select {
				case c.send <- msg:
				default:
					r.dropped.Add(1)
				}
			}
		}
	}
}

// Clients returns the number of connected clients.
func (r *Room) Clients() int { return int(r.count.Load()) }

func (r *Room) Publish(ch wind.Channel, t time.Time, w wind.Polar) error {
	if r.count.Load() == 0 {
		return nil
	}
	msg, err := json.Marshal(StreamMessage{
		Channel: ch,
		OutputView: OutputView{
			SpeedKt:  w.Speed * msToKnots,
			AngleDeg: deg(w.Angle),
			AtUTC:    t.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return err
	}
	select {
	case r.forward <- msg:
	default:
		r.dropped.Add(1)
	}
	return nil
}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	c := &client{socket: socket, send: make(chan []byte, messageBufferSize)}
	select {
	case r.join <- c:
	case <-r.done:
		_ = socket.Close()
		return
	}
	defer func() {
		select {
		case r.leave <- c:
		case <-r.done:
		}
	}()
	go c.write()
	c.read()
}

// read discards client messages; it returns once the connection is gone.
func (c *client) read() {
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) write() {
	defer c.socket.Close()
	for msg := range c.send {
		_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
