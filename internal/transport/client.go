package transport

import (
	"net"
	"sync"
)

// pendingFrame is a reliable send awaiting acknowledgement.
type pendingFrame struct {
	bytes    []byte
	sentMs   int64
	attempts int
}

// ClientInfo tracks one connected client. Touched by the I/O worker (on
// receive/send) and the scheduled retransmit/timeout scans; a per-client
// lock suffices per spec.md §5 since the record store is the only
// component with genuinely cross-thread shared mutation.
type ClientInfo struct {
	ClientID   string
	Username   string
	Addr       *net.UDPAddr
	LastActivityMs int64

	mu              sync.Mutex
	seqOut          uint32
	pendingReliable map[uint32]*pendingFrame
}

func newClientInfo(clientID, username string, addr *net.UDPAddr, nowMs int64) *ClientInfo {
	return &ClientInfo{
		ClientID:        clientID,
		Username:        username,
		Addr:            addr,
		LastActivityMs:  nowMs,
		pendingReliable: make(map[uint32]*pendingFrame),
	}
}

// nextSequence returns the next per-client outbound sequence number
// (mod 2^32), monotonic, per spec.md §4.2.
func (c *ClientInfo) nextSequence() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqOut++
	return c.seqOut
}

func (c *ClientInfo) addPending(seq uint32, data []byte, nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingReliable[seq] = &pendingFrame{bytes: data, sentMs: nowMs}
}

func (c *ClientInfo) ack(seq uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingReliable, seq)
}

// duePending returns a snapshot of pending frames whose resend deadline
// has passed, bumping their attempt counters in place.
func (c *ClientInfo) duePending(nowMs, resendIntervalMs int64) []pendingFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var due []pendingFrame
	for _, p := range c.pendingReliable {
		if nowMs-p.sentMs > resendIntervalMs {
			p.sentMs = nowMs
			p.attempts++
			due = append(due, *p)
		}
	}
	return due
}

// exhausted reports whether any pending frame has hit maxAttempts.
func (c *ClientInfo) exhausted(maxAttempts int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pendingReliable {
		if p.attempts >= maxAttempts {
			return true
		}
	}
	return false
}
