package wire

import "fmt"

// MessageType is the typed tag on every frame header (spec.md §4.1).
type MessageType uint8

const (
	ClientConnectType MessageType = iota + 1
	ServerAcceptType
	ServerRejectType
	ClientDisconnectType
	ClientPingType
	ServerPongType
	ClientStateUpdateType
	ServerStateUpdateType
	ServerNpcUpdateType
	ServerCelestialUpdateType
	ServerAoiUpdateType
	ClientReliableAckType
	ServerReliableAckType
)

func (t MessageType) String() string {
	switch t {
	case ClientConnectType:
		return "CLIENT_CONNECT"
	case ServerAcceptType:
		return "SERVER_ACCEPT"
	case ServerRejectType:
		return "SERVER_REJECT"
	case ClientDisconnectType:
		return "CLIENT_DISCONNECT"
	case ClientPingType:
		return "CLIENT_PING"
	case ServerPongType:
		return "SERVER_PONG"
	case ClientStateUpdateType:
		return "CLIENT_STATE_UPDATE"
	case ServerStateUpdateType:
		return "SERVER_STATE_UPDATE"
	case ServerNpcUpdateType:
		return "SERVER_NPC_UPDATE"
	case ServerCelestialUpdateType:
		return "SERVER_CELESTIAL_UPDATE"
	case ServerAoiUpdateType:
		return "SERVER_AOI_UPDATE"
	case ClientReliableAckType:
		return "CLIENT_RELIABLE_ACK"
	case ServerReliableAckType:
		return "SERVER_RELIABLE_ACK"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Header is the fixed 13-byte prefix plus the length-prefixed client id
// string (spec.md §4.1).
type Header struct {
	Type        MessageType
	Sequence    uint32
	TimestampMs uint64
	ClientID    string
}

// Body is a decoded message payload. Every concrete body type lives in
// messages.go.
type Body interface {
	Type() MessageType
	encode(w *writer)
}

// Message is a full frame: header plus typed body.
type Message struct {
	Header Header
	Body   Body
}

// Encode serializes m. Encoding is infallible for well-formed values.
func Encode(m Message) []byte {
	w := newWriter(64)
	w.u8(uint8(m.Header.Type))
	w.u32(m.Header.Sequence)
	w.u64(m.Header.TimestampMs)
	w.str(m.Header.ClientID)
	m.Body.encode(w)
	return w.bytes()
}

// Decode parses a frame. It never reads past the declared boundary and
// fails explicitly on malformed input (spec.md §4.1, §7).
func Decode(data []byte) (Message, error) {
	r := newReader(data)

	rawType, err := r.u8()
	if err != nil {
		return Message{}, err
	}
	seq, err := r.u32()
	if err != nil {
		return Message{}, err
	}
	ts, err := r.u64()
	if err != nil {
		return Message{}, err
	}
	clientID, err := r.str()
	if err != nil {
		return Message{}, err
	}

	header := Header{Type: MessageType(rawType), Sequence: seq, TimestampMs: ts, ClientID: clientID}

	decodeBody, ok := bodyDecoders[header.Type]
	if !ok {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownMessageType, rawType)
	}
	body, err := decodeBody(r)
	if err != nil {
		return Message{}, err
	}
	return Message{Header: header, Body: body}, nil
}
