package transport

import (
	"log"
	"net"
	"os"
	"testing"
	"time"

	"stellarcore/internal/wire"
)

func testTransport(t *testing.T) *Transport {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = 0 // let the OS pick a free port
	cfg.RetransmitScanPeriod = 20 * time.Millisecond
	cfg.TimeoutScanPeriod = 20 * time.Millisecond
	cfg.ResendInterval = 30 * time.Millisecond
	// Longer than reliable-send exhaustion (5 resends roughly 40ms apart)
	// and than the ack test's 300ms quiet window, so an idle test client
	// is not timed out first.
	cfg.DisconnectTimeout = 5 * time.Second

	logger := log.New(os.Stderr, "", 0)
	tr, err := New(cfg, logger, logger)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	tr.Run()
	t.Cleanup(func() { tr.Close() })
	return tr
}

func dialClient(t *testing.T, serverAddr net.Addr) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, serverAddr.(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *net.UDPConn, msg wire.Message) {
	t.Helper()
	if _, err := conn.Write(wire.Encode(msg)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func recvFrame(t *testing.T, conn *net.UDPConn, timeout time.Duration) wire.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	msg, err := wire.Decode(buf[:n])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return msg
}

func TestAcceptAndPing(t *testing.T) {
	tr := testTransport(t)
	client := dialClient(t, tr.conn.LocalAddr())

	sendFrame(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientConnectType, Sequence: 1, TimestampMs: 1},
		Body:   wire.ClientConnect{Username: "A", Version: "1.0.0"},
	})

	select {
	case ev := <-tr.Events():
		if ev.Kind != EventConnect || ev.Username != "A" || ev.ClientID == "" {
			t.Fatalf("unexpected connect event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connect event")
	}

	sendFrame(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientPingType, Sequence: 2, TimestampMs: 2},
		Body:   wire.ClientPing{PingID: 42},
	})

	msg := recvFrame(t, client, 500*time.Millisecond)
	pong, ok := msg.Body.(wire.ServerPong)
	if !ok || pong.PingID != 42 {
		t.Fatalf("expected pong 42, got %+v", msg.Body)
	}
}

func TestUnknownClientDropped(t *testing.T) {
	tr := testTransport(t)
	client := dialClient(t, tr.conn.LocalAddr())

	sendFrame(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientPingType, Sequence: 1, TimestampMs: 1},
		Body:   wire.ClientPing{PingID: 1},
	})

	select {
	case ev := <-tr.Events():
		t.Fatalf("expected no event for unknown client, got %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStateUpdateForwarded(t *testing.T) {
	tr := testTransport(t)
	client := dialClient(t, tr.conn.LocalAddr())

	sendFrame(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientConnectType, Sequence: 1},
		Body:   wire.ClientConnect{Username: "B", Version: "1.0.0"},
	})
	connectEv := <-tr.Events()

	sendFrame(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientStateUpdateType, Sequence: 2},
		Body:   wire.ClientStateUpdate{InputSequence: 7},
	})

	select {
	case ev := <-tr.Events():
		if ev.Kind != EventMessage || ev.ClientID != connectEv.ClientID {
			t.Fatalf("unexpected event: %+v", ev)
		}
		body, ok := ev.Body.(wire.ClientStateUpdate)
		if !ok || body.InputSequence != 7 {
			t.Fatalf("unexpected body: %+v", ev.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state update event")
	}
}

func TestReliableRetransmitAndExhaustion(t *testing.T) {
	tr := testTransport(t)
	client := dialClient(t, tr.conn.LocalAddr())

	sendFrame(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientConnectType, Sequence: 1},
		Body:   wire.ClientConnect{Username: "C", Version: "1.0.0"},
	})
	connectEv := <-tr.Events()

	if err := tr.SendTo(connectEv.ClientID, wire.ServerReject{Reason: "test"}, true); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// First delivery, then resends (no ack sent): expect a disconnect
	// event once maxReliableResends is exceeded.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-tr.Events():
			if ev.Kind == EventDisconnect && ev.ClientID == connectEv.ClientID {
				if ev.Reason != ReasonFailedAck {
					t.Fatalf("expected failed_ack, got %s", ev.Reason)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for failed_ack disconnect")
		}
	}
}

func TestAckRemovesPending(t *testing.T) {
	tr := testTransport(t)
	client := dialClient(t, tr.conn.LocalAddr())

	sendFrame(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientConnectType, Sequence: 1},
		Body:   wire.ClientConnect{Username: "D", Version: "1.0.0"},
	})
	connectEv := <-tr.Events()

	if err := tr.SendTo(connectEv.ClientID, wire.ServerReject{Reason: "test"}, true); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	msg := recvFrame(t, client, 500*time.Millisecond)

	sendFrame(t, client, wire.Message{
		Header: wire.Header{Type: wire.ClientReliableAckType, Sequence: 2},
		Body:   wire.ClientReliableAck{AckSequence: msg.Header.Sequence},
	})

	// Give the ack time to land, then make sure no failed_ack disconnect follows.
	select {
	case ev := <-tr.Events():
		if ev.Kind == EventDisconnect {
			t.Fatalf("unexpected disconnect after ack: %+v", ev)
		}
	case <-time.After(300 * time.Millisecond):
	}
}
