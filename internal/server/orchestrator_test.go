package server

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"stellarcore/internal/wire"
)

// testOrchestrator wires a full Orchestrator over an in-memory store and
// ephemeral UDP/HTTP ports, the way the teacher's own ownworld_test.go
// stands up setupTestEnv — but driven through the real wire transport
// instead of calling package internals directly.
func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.UDPPort = 0
	cfg.HTTPPort = 0
	cfg.LogDir = t.TempDir()
	cfg.StoreBackend = "memory"

	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	t.Cleanup(cancel)
	return o
}

func dialServer(t *testing.T, addr net.Addr) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, addr.(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMsg(t *testing.T, conn *net.UDPConn, msg wire.Message) {
	t.Helper()
	if _, err := conn.Write(wire.Encode(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recvMsg(t *testing.T, conn *net.UDPConn, timeout time.Duration) wire.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := wire.Decode(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

// TestAcceptAndPingEndToEnd implements spec.md §8 scenario 1 against a
// fully wired Orchestrator: connect, receive SERVER_ACCEPT at the
// origin with identity rotation followed by the initial
// SERVER_CELESTIAL_UPDATE and SERVER_AOI_UPDATE, then round-trip a ping
// within 50ms.
func TestAcceptAndPingEndToEnd(t *testing.T) {
	o := testOrchestrator(t)
	client := dialServer(t, o.transport.LocalAddr())

	sendMsg(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientConnectType, Sequence: 1, TimestampMs: 1},
		Body:   wire.ClientConnect{Username: "A", Version: o.cfg.Version},
	})

	msg := recvMsg(t, client, time.Second)
	accept, ok := msg.Body.(wire.ServerAccept)
	if !ok {
		t.Fatalf("expected SERVER_ACCEPT, got %T", msg.Body)
	}
	if accept.AssignedClientID == "" {
		t.Fatal("expected a non-empty assigned_client_id")
	}
	if accept.InitialPosition.X != 0 || accept.InitialPosition.Y != 0 || accept.InitialPosition.Z != 0 {
		t.Fatalf("expected origin spawn, got %+v", accept.InitialPosition)
	}
	if accept.InitialRotation.W != 1 || accept.InitialRotation.X != 0 || accept.InitialRotation.Y != 0 || accept.InitialRotation.Z != 0 {
		t.Fatalf("expected identity rotation, got %+v", accept.InitialRotation)
	}

	if msg := recvMsg(t, client, time.Second); msg.Header.Type != wire.ServerCelestialUpdateType {
		t.Fatalf("expected initial SERVER_CELESTIAL_UPDATE, got %s", msg.Header.Type)
	}
	if msg := recvMsg(t, client, time.Second); msg.Header.Type != wire.ServerAoiUpdateType {
		t.Fatalf("expected initial SERVER_AOI_UPDATE, got %s", msg.Header.Type)
	}

	sendMsg(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientPingType, Sequence: 2, TimestampMs: 2},
		Body:   wire.ClientPing{PingID: 42},
	})

	pongMsg := recvMsg(t, client, 50*time.Millisecond)
	pong, ok := pongMsg.Body.(wire.ServerPong)
	if !ok || pong.PingID != 42 {
		t.Fatalf("expected SERVER_PONG{42}, got %+v", pongMsg.Body)
	}
}

// TestVersionRejectEndToEnd implements spec.md §8 scenario 2: a connect
// carrying an incompatible version is refused with a SERVER_REJECT
// whose reason names the version mismatch.
func TestVersionRejectEndToEnd(t *testing.T) {
	o := testOrchestrator(t)
	client := dialServer(t, o.transport.LocalAddr())

	sendMsg(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientConnectType, Sequence: 1, TimestampMs: 1},
		Body:   wire.ClientConnect{Username: "A", Version: "0.9"},
	})

	msg := recvMsg(t, client, time.Second)
	reject, ok := msg.Body.(wire.ServerReject)
	if !ok {
		t.Fatalf("expected SERVER_REJECT, got %T", msg.Body)
	}
	if !strings.Contains(reject.Reason, "version") {
		t.Fatalf("expected reason to mention version, got %q", reject.Reason)
	}
}
