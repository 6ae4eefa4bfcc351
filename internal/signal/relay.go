package signal

import (
	"encoding/json"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	peersPerRoom = 2
	sendQueue    = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Relay pairs two websocket peers per room and forwards every message from
// one to the other.
type Relay struct {
	mu    sync.Mutex
	rooms map[string][]*peer
	log   zerolog.Logger
}

func NewRelay() *Relay {
	return &Relay{
		rooms: make(map[string][]*peer),
		log:   log.With().Str("module", "signal").Logger(),
	}
}

type peer struct {
	conn *websocket.Conn
	room string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (p *peer) trySend(b []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- b:
		return true
	default:
		return false
	}
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

// ServeHTTP serves the room named by the last path element.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.ServeRoom(w, req, path.Base(req.URL.Path))
}

// ServeRoom upgrades the request and joins room. A full room is refused with
// 409 before the upgrade.
func (r *Relay) ServeRoom(w http.ResponseWriter, req *http.Request, room string) {
	if room == "" || room == "/" || room == "." {
		http.Error(w, "room required", http.StatusBadRequest)
		return
	}
	if r.RoomSize(room) >= peersPerRoom {
		http.Error(w, "room full", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Error().Err(err).Str("room", room).Msg("ws upgrade")
		return
	}
	p := &peer{conn: conn, room: room, send: make(chan []byte, sendQueue)}
	if !r.join(p) {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "room full")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go r.writePump(p)
	r.readPump(p)
}

// RoomSize reports the number of peers in room.
func (r *Relay) RoomSize(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[room])
}

func (r *Relay) join(p *peer) bool {
	r.mu.Lock()
	peers := r.rooms[p.room]
	if len(peers) >= peersPerRoom {
		r.mu.Unlock()
		return false
	}
	peers = append(peers, p)
	r.rooms[p.room] = peers
	full := len(peers) == peersPerRoom
	r.mu.Unlock()

	r.log.Info().Str("room", p.room).Bool("full", full).Msg("peer joined")
	if full {
		ready, _ := json.Marshal(Message{Type: TypeReady})
		for _, q := range peers {
			q.trySend(ready)
		}
	}
	return true
}

func (r *Relay) leave(p *peer) {
	r.mu.Lock()
	var other *peer
	peers := r.rooms[p.room]
	kept := make([]*peer, 0, len(peers))
	for _, q := range peers {
		if q == p {
			continue
		}
		kept = append(kept, q)
		other = q
	}
	if len(kept) == 0 {
		delete(r.rooms, p.room)
	} else {
		r.rooms[p.room] = kept
	}
	r.mu.Unlock()

	p.close()
	r.log.Info().Str("room", p.room).Msg("peer left")
	if other != nil {
		bye, _ := json.Marshal(Message{Type: TypeBye})
		other.trySend(bye)
	}
}

func (r *Relay) partner(p *peer) *peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.rooms[p.room] {
		if q != p {
			return q
		}
	}
	return nil
}

func (r *Relay) readPump(p *peer) {
	defer r.leave(p)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.log.Debug().Err(err).Str("room", p.room).Msg("read")
			}
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil || m.Type == "" {
			r.log.Warn().Str("room", p.room).Msg("dropping malformed message")
			continue
		}
		other := r.partner(p)
		if other == nil || !other.trySend(data) {
			r.log.Warn().Str("room", p.room).Str("type", m.Type).Msg("no peer to forward to")
		}
	}
}

func (r *Relay) writePump(p *peer) {
	defer p.conn.Close()
	for data := range p.send {
		if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			r.log.Debug().Err(err).Str("room", p.room).Msg("write")
			return
		}
	}
}
