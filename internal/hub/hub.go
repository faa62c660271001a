// Package hub connects browser participants over WebSockets and acts as a
// dispatch.Communicator for them.
//
// Each connection is registered under the participant ID it supplied when
// upgrading. Inbound frames are handed, undecoded, to the hub's Receiver.
// Outbound payloads are queued per connection and written by a dedicated
// write pump; a connection whose queue is full is dropped rather than
// allowed to stall the broadcaster.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dyluth/loft/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrUnknownParticipant is returned by Send when no connection is registered
// for the destination participant.
var ErrUnknownParticipant = errors.New("participant not connected")

// Receiver accepts raw inbound payloads. *dispatch.Dispatcher satisfies it.
type Receiver interface {
	OnDataReceived(ctx context.Context, payload []byte)
}

// Options tunes connection limits. Zero values fall back to defaults.
type Options struct {
	MaxMessageSize int64    // Largest inbound frame accepted, in bytes
	SendBuffer     int      // Per-connection outbound queue length
	AllowedOrigins []string // Empty allows any origin
	Metrics        *metrics.Metrics
}

const (
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub tracks connected participants.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	peers    map[int]map[*peer]struct{}
	receiver Receiver
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a hub. Call SetReceiver before serving connections to
// receive inbound payloads.
func New(opts Options) *Hub {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		opts:   opts,
		peers:  make(map[int]map[*peer]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetReceiver sets where inbound frames are delivered.
func (h *Hub) SetReceiver(r Receiver) {
	h.mu.Lock()
	h.receiver = r
	h.mu.Unlock()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	log.Printf("[Hub] [WARN] Rejected WebSocket origin %q", origin)
	return false
}

// ServeHTTP upgrades GET /ws?participant=N and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	participant, err := strconv.Atoi(r.URL.Query().Get("participant"))
	if err != nil || participant < 0 {
		http.Error(w, "participant query parameter must be a non-negative integer", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "Hub is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Hub] [WARN] WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	p := newPeer(h, conn, participant, r.RemoteAddr)
	if !h.register(p) {
		conn.Close()
		return
	}

	go func() {
		defer h.wg.Done()
		p.writePump()
	}()
	go func() {
		defer h.wg.Done()
		p.readPump()
	}()
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	set, ok := h.peers[p.participant]
	if !ok {
		set = make(map[*peer]struct{})
		h.peers[p.participant] = set
	}
	set[p] = struct{}{}
	total := h.countLocked()
	// Added under the lock so Shutdown never waits before both pumps are counted
	h.wg.Add(2)
	h.mu.Unlock()

	h.opts.Metrics.SetPeers(total)
	log.Printf("[Hub] [INFO] Participant %d connected from %s (conn %s). Total connections: %d",
		p.participant, p.addr, p.id, total)
	return true
}

// unregister removes p and closes its queue. Safe to call more than once.
func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	set, ok := h.peers[p.participant]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[p]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, p)
	if len(set) == 0 {
		delete(h.peers, p.participant)
	}
	total := h.countLocked()
	h.mu.Unlock()

	p.closeSend()
	h.opts.Metrics.SetPeers(total)
	log.Printf("[Hub] [INFO] Participant %d disconnected (conn %s). Total connections: %d",
		p.participant, p.id, total)
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.peers {
		n += len(set)
	}
	return n
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// Connected reports whether participant has at least one open connection.
func (h *Hub) Connected(participant int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers[participant]) > 0
}

// Broadcast queues payload on every connection.
func (h *Hub) Broadcast(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*peer, 0, h.countLocked())
	for _, set := range h.peers {
		for p := range set {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, payload)
	return nil
}

// Send queues payload on every connection of participant destination.
// Returns ErrUnknownParticipant if the participant is not connected.
func (h *Hub) Send(ctx context.Context, payload []byte, destination int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*peer, 0, len(h.peers[destination]))
	for p := range h.peers[destination] {
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("participant %d: %w", destination, ErrUnknownParticipant)
	}

	h.deliver(targets, payload)
	return nil
}

func (h *Hub) deliver(targets []*peer, payload []byte) {
	var slow []*peer
	for _, p := range targets {
		if !p.enqueue(payload) {
			slow = append(slow, p)
		}
	}
	for _, p := range slow {
		log.Printf("[Hub] [WARN] Dropping participant %d (conn %s): send buffer full", p.participant, p.id)
		h.unregister(p)
	}
}

func (h *Hub) dispatch(payload []byte) {
	h.mu.RLock()
	r := h.receiver
	h.mu.RUnlock()

	if r == nil {
		log.Printf("[Hub] [WARN] No receiver set; discarding %d byte payload", len(payload))
		return
	}
	r.OnDataReceived(h.ctx, payload)
}

// Shutdown closes every connection and waits for the pumps to exit or ctx
// to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	var all []*peer
	for _, set := range h.peers {
		for p := range set {
			all = append(all, p)
		}
	}
	h.mu.Unlock()

	h.cancel()
	for _, p := range all {
		p.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("[Hub] [INFO] Closed %d connections", len(all))
		return nil
	case <-ctx.Done():
		log.Printf("[Hub] [WARN] Shutdown timed out with connections still draining")
		return ctx.Err()
	}
}

// peer is one WebSocket connection.
type peer struct {
	hub         *Hub
	conn        *websocket.Conn
	participant int
	id          string
	addr        string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newPeer(h *Hub, conn *websocket.Conn, participant int, addr string) *peer {
	conn.SetReadLimit(h.opts.MaxMessageSize)
	return &peer{
		hub:         h,
		conn:        conn,
		participant: participant,
		id:          uuid.NewString(),
		addr:        addr,
		send:        make(chan []byte, h.opts.SendBuffer),
	}
}

// enqueue returns false if the queue is full. A closed peer accepts and
// discards payloads.
func (p *peer) enqueue(payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return true
	}
	select {
	case p.send <- payload:
		return true
	default:
		return false
	}
}

func (p *peer) closeSend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

func (p *peer) readPump() {
	defer func() {
		p.hub.unregister(p)
		p.conn.Close()
	}()

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				log.Printf("[Hub] [WARN] Participant %d sent a frame over %d bytes", p.participant, p.hub.opts.MaxMessageSize)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				log.Printf("[Hub] [WARN] Participant %d read error: %v", p.participant, err)
			}
			return
		}

		p.hub.dispatch(data)
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[Hub] [WARN] Write to participant %d failed: %v", p.participant, err)
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
