// Package transport implements the authoritative UDP datagram layer
// (spec.md §4.2, C2): client tracking, sequencing, selective
// reliability/retransmission, and idle timeout. It never blocks the
// simulation thread — inbound frames are parsed on I/O workers and
// handed to the caller over a channel; outbound sends go through a
// write-safe socket handle from either thread (spec.md §5).
//
// Grounded on the teacher's rate-limited HTTP middleware
// (utils.go:getLimiter/middlewareSecurity) for the unknown-client
// warning throttle, generalized from HTTP to UDP.
package transport

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stellarcore/internal/wire"
)

// Config holds the tunables spec.md §6 lists as server settings.
type Config struct {
	Port                  int
	ResendInterval        time.Duration
	MaxReliableResends    int
	DisconnectTimeout     time.Duration
	RetransmitScanPeriod  time.Duration
	TimeoutScanPeriod     time.Duration
}

// DefaultConfig matches spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		Port:                 7777,
		ResendInterval:       1 * time.Second,
		MaxReliableResends:   5,
		DisconnectTimeout:    30 * time.Second,
		RetransmitScanPeriod: 1 * time.Second,
		TimeoutScanPeriod:    10 * time.Second,
	}
}

// Transport owns the UDP socket and client table.
type Transport struct {
	cfg  Config
	conn *net.UDPConn

	mu          sync.RWMutex
	byClientID  map[string]*ClientInfo
	byAddr      map[string]*ClientInfo

	events chan Event

	warnLimiter *rate.Limiter

	infoLog  *log.Logger
	errLog   *log.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New binds the UDP socket. A bind failure is the one error kind in
// spec.md §7 that is allowed to be fatal at startup.
func New(cfg Config, infoLog, errLog *log.Logger) (*Transport, error) {
	addr := &net.UDPAddr{Port: cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind :%d: %w", cfg.Port, err)
	}
	return &Transport{
		cfg:         cfg,
		conn:        conn,
		byClientID:  make(map[string]*ClientInfo),
		byAddr:      make(map[string]*ClientInfo),
		events:      make(chan Event, 1024),
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		infoLog:     infoLog,
		errLog:      errLog,
		stopCh:      make(chan struct{}),
	}, nil
}

// Events is the inbound channel the simulation thread drains.
func (t *Transport) Events() <-chan Event { return t.events }

// LocalAddr reports the bound UDP socket's address, letting callers
// that started on an ephemeral port (cfg.Port == 0) discover it.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Run starts the read loop and the two scheduled scans (spec.md §4.2,
// §5) on their own goroutines and returns immediately; they stop when
// Close is called.
func (t *Transport) Run() {
	go t.readLoop()
	go t.scanLoop(t.cfg.RetransmitScanPeriod, t.retransmitScan)
	go t.scanLoop(t.cfg.TimeoutScanPeriod, t.timeoutScan)
}

// Close tears the socket down; used by graceful shutdown (spec.md §5,
// §7 "Emergency stop").
func (t *Transport) Close() error {
	t.stopOnce.Do(func() { close(t.stopCh) })
	return t.conn.Close()
}

func (t *Transport) scanLoop(period time.Duration, fn func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func (t *Transport) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
			}
			t.emit(Event{Kind: EventError, Err: err})
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		t.handleIncoming(data, addr)
	}
}

func (t *Transport) emit(e Event) {
	select {
	case t.events <- e:
	default:
		// Backpressure: the simulation thread is behind. Drop rather
		// than block the I/O worker (spec.md §5: only I/O may block,
		// never the simulation thread, and the inverse holds too).
		if t.errLog != nil {
			t.errLog.Printf("transport: event channel full, dropping %v", e.Kind)
		}
	}
}

func (t *Transport) handleIncoming(data []byte, addr *net.UDPAddr) {
	msg, err := wire.Decode(data)
	if err != nil {
		if t.errLog != nil {
			t.errLog.Printf("transport: malformed frame from %s: %v", addr, err)
		}
		return
	}

	addrKey := addr.String()

	t.mu.RLock()
	client, known := t.byAddr[addrKey]
	t.mu.RUnlock()

	if !known {
		if msg.Header.Type != wire.ClientConnectType {
			if t.warnLimiter.Allow() && t.infoLog != nil {
				t.infoLog.Printf("transport: dropping %s from unknown client %s", msg.Header.Type, addr)
			}
			return
		}
		t.acceptConnect(msg, addr)
		return
	}

	client.mu.Lock()
	client.LastActivityMs = nowMs()
	client.mu.Unlock()

	switch body := msg.Body.(type) {
	case wire.ClientPing:
		t.sendRaw(addr, wire.Message{
			Header: wire.Header{Type: wire.ServerPongType, Sequence: client.nextSequence(), TimestampMs: uint64(nowMs()), ClientID: client.ClientID},
			Body:   wire.ServerPong{PingID: body.PingID},
		})
	case wire.ClientReliableAck:
		client.ack(body.AckSequence)
	case wire.ClientDisconnect:
		t.removeClient(client)
		t.emit(Event{Kind: EventDisconnect, ClientID: client.ClientID, Reason: ReasonGraceful})
	case wire.ClientStateUpdate:
		t.emit(Event{Kind: EventMessage, ClientID: client.ClientID, Header: msg.Header, Body: body})
	case wire.ClientConnect:
		// Re-connect from an already-known endpoint: treat as a no-op
		// duplicate rather than minting a second identity.
	default:
		if t.infoLog != nil {
			t.infoLog.Printf("transport: unexpected message type %s from known client %s", msg.Header.Type, client.ClientID)
		}
	}
}

func (t *Transport) acceptConnect(msg wire.Message, addr *net.UDPAddr) {
	connect, ok := msg.Body.(wire.ClientConnect)
	if !ok {
		return
	}
	clientID := uuid.NewString()
	client := newClientInfo(clientID, connect.Username, addr, nowMs())

	t.mu.Lock()
	t.byClientID[clientID] = client
	t.byAddr[addr.String()] = client
	t.mu.Unlock()

	t.emit(Event{
		Kind:     EventConnect,
		ClientID: clientID,
		Username: connect.Username,
		Version:  connect.Version,
		Endpoint: Endpoint{IP: addr.IP.String(), Port: addr.Port},
	})
}

func (t *Transport) removeClient(c *ClientInfo) {
	t.mu.Lock()
	delete(t.byClientID, c.ClientID)
	delete(t.byAddr, c.Addr.String())
	t.mu.Unlock()
}

// SendTo serializes body for clientID and transmits it. When reliable is
// true the frame is retained in the per-client pending map until acked
// or given up on (spec.md §4.2).
func (t *Transport) SendTo(clientID string, body wire.Body, reliable bool) error {
	t.mu.RLock()
	client, ok := t.byClientID[clientID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: unknown client %s", clientID)
	}

	seq := client.nextSequence()
	msg := wire.Message{
		Header: wire.Header{Type: body.Type(), Sequence: seq, TimestampMs: uint64(nowMs()), ClientID: clientID},
		Body:   body,
	}
	data := wire.Encode(msg)

	if _, err := t.conn.WriteToUDP(data, client.Addr); err != nil {
		return err
	}
	if reliable {
		client.addPending(seq, data, nowMs())
	}
	return nil
}

func (t *Transport) sendRaw(addr *net.UDPAddr, msg wire.Message) {
	data := wire.Encode(msg)
	t.conn.WriteToUDP(data, addr)
}

// DisconnectClient sends SERVER_REJECT, removes the client, and emits a
// disconnect event (spec.md §4.2).
func (t *Transport) DisconnectClient(clientID string, reason DisconnectReason) {
	t.mu.RLock()
	client, ok := t.byClientID[clientID]
	t.mu.RUnlock()
	if !ok {
		return
	}
	t.sendRaw(client.Addr, wire.Message{
		Header: wire.Header{Type: wire.ServerRejectType, Sequence: client.nextSequence(), TimestampMs: uint64(nowMs()), ClientID: clientID},
		Body:   wire.ServerReject{Reason: string(reason)},
	})
	t.removeClient(client)
	t.emit(Event{Kind: EventDisconnect, ClientID: clientID, Reason: reason})
}

// DisconnectAll is used by the emergency-stop / graceful-shutdown path
// (spec.md §5, §7).
func (t *Transport) DisconnectAll(reason DisconnectReason) {
	t.mu.RLock()
	ids := make([]string, 0, len(t.byClientID))
	for id := range t.byClientID {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	for _, id := range ids {
		t.DisconnectClient(id, reason)
	}
}

func (t *Transport) retransmitScan() {
	t.mu.RLock()
	clients := make([]*ClientInfo, 0, len(t.byClientID))
	for _, c := range t.byClientID {
		clients = append(clients, c)
	}
	t.mu.RUnlock()

	now := nowMs()
	resendMs := t.cfg.ResendInterval.Milliseconds()

	for _, c := range clients {
		due := c.duePending(now, resendMs)
		for _, p := range due {
			t.conn.WriteToUDP(p.bytes, c.Addr)
		}
		if c.exhausted(t.cfg.MaxReliableResends) {
			t.removeClient(c)
			t.emit(Event{Kind: EventDisconnect, ClientID: c.ClientID, Reason: ReasonFailedAck})
		}
	}
}

func (t *Transport) timeoutScan() {
	t.mu.RLock()
	clients := make([]*ClientInfo, 0, len(t.byClientID))
	for _, c := range t.byClientID {
		clients = append(clients, c)
	}
	t.mu.RUnlock()

	now := nowMs()
	timeoutMs := t.cfg.DisconnectTimeout.Milliseconds()

	for _, c := range clients {
		c.mu.Lock()
		idle := now - c.LastActivityMs
		c.mu.Unlock()
		if idle > timeoutMs {
			t.removeClient(c)
			t.emit(Event{Kind: EventDisconnect, ClientID: c.ClientID, Reason: ReasonTimeout})
		}
	}
}

// ClientCount reports the number of tracked clients.
func (t *Transport) ClientCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byClientID)
}
