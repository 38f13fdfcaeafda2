package output

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Broadcaster pushes every StepSnapshot to connected websocket clients, the
// concrete form spec.md §1's "visualization hook" external collaborator
// takes here. Structured after the teacher pack's
// notifiers.WebSocketNotifier: a register/unregister/broadcast channel
// trio drained by a single run goroutine, connection writes performed
// outside the client-set lock, and a dead connection recovered from a
// panic and dropped rather than taking the whole broadcaster down.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader

	broadcast  chan StepSnapshot
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewBroadcaster starts the broadcaster's background goroutine and returns
// a ready-to-use instance.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan StepSnapshot, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// ServeHTTP upgrades an HTTP request to a websocket connection and
// registers it as a broadcast recipient.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	select {
	case b.register <- conn:
	case <-b.done:
		conn.Close()
	}
}

// Observe implements Sink: it enqueues snap for broadcast without blocking
// the caller, dropping the snapshot if the queue is saturated rather than
// stalling the KMC step.
func (b *Broadcaster) Observe(snap StepSnapshot) {
	select {
	case b.broadcast <- snap:
	default:
	}
}

func (b *Broadcaster) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return

		case conn := <-b.register:
			if conn == nil {
				continue
			}
			b.mu.Lock()
			b.clients[conn] = true
			b.mu.Unlock()

		case conn := <-b.unregister:
			if conn == nil {
				continue
			}
			b.mu.Lock()
			if _, ok := b.clients[conn]; ok {
				delete(b.clients, conn)
				conn.Close()
			}
			b.mu.Unlock()

		case snap, ok := <-b.broadcast:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			b.writeAll(data)
		}
	}
}

func (b *Broadcaster) writeAll(data []byte) {
	b.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mu.RUnlock()

	var dead []*websocket.Conn
	for _, conn := range conns {
		func() {
			defer func() {
				if recover() != nil {
					dead = append(dead, conn)
				}
			}()
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				dead = append(dead, conn)
				conn.Close()
			}
		}()
	}

	if len(dead) > 0 {
		b.mu.Lock()
		for _, conn := range dead {
			delete(b.clients, conn)
		}
		b.mu.Unlock()
	}
}

// Close stops the broadcaster's goroutine and closes every open connection.
func (b *Broadcaster) Close() error {
	close(b.done)

	b.mu.Lock()
	for conn := range b.clients {
		conn.Close()
		delete(b.clients, conn)
	}
	b.mu.Unlock()

	close(b.broadcast)
	close(b.register)
	close(b.unregister)
	b.wg.Wait()
	return nil
}
