package wire

import "stellarcore/pkg/types"

type bodyDecoder func(r *reader) (Body, error)

var bodyDecoders = map[MessageType]bodyDecoder{
	ClientConnectType: func(r *reader) (Body, error) {
		v, err := decodeClientConnect(r)
		return v, err
	},
	ServerAcceptType: func(r *reader) (Body, error) {
		v, err := decodeServerAccept(r)
		return v, err
	},
	ServerRejectType: func(r *reader) (Body, error) {
		v, err := decodeServerReject(r)
		return v, err
	},
	ClientDisconnectType: func(r *reader) (Body, error) {
		v, err := decodeClientDisconnect(r)
		return v, err
	},
	ClientPingType: func(r *reader) (Body, error) {
		v, err := decodeClientPing(r)
		return v, err
	},
	ServerPongType: func(r *reader) (Body, error) {
		v, err := decodeServerPong(r)
		return v, err
	},
	ClientStateUpdateType: func(r *reader) (Body, error) {
		v, err := decodeClientStateUpdate(r)
		return v, err
	},
	ServerStateUpdateType: func(r *reader) (Body, error) {
		v, err := decodeServerStateUpdate(r)
		return v, err
	},
	ServerNpcUpdateType: func(r *reader) (Body, error) {
		v, err := decodeServerNpcUpdate(r)
		return v, err
	},
	ServerCelestialUpdateType: func(r *reader) (Body, error) {
		v, err := decodeServerCelestialUpdate(r)
		return v, err
	},
	ServerAoiUpdateType: func(r *reader) (Body, error) {
		v, err := decodeServerAoiUpdate(r)
		return v, err
	},
	ClientReliableAckType: func(r *reader) (Body, error) {
		v, err := decodeClientReliableAck(r)
		return v, err
	},
	ServerReliableAckType: func(r *reader) (Body, error) {
		v, err := decodeServerReliableAck(r)
		return v, err
	},
}

// --- CLIENT_CONNECT ---

type ClientConnect struct {
	Username string
	Version  string
}

func (ClientConnect) Type() MessageType { return ClientConnectType }
func (b ClientConnect) encode(w *writer) {
	w.str(b.Username)
	w.str(b.Version)
}
func decodeClientConnect(r *reader) (ClientConnect, error) {
	username, err := r.str()
	if err != nil {
		return ClientConnect{}, err
	}
	version, err := r.str()
	if err != nil {
		return ClientConnect{}, err
	}
	return ClientConnect{Username: username, Version: version}, nil
}

// --- SERVER_ACCEPT ---

type ServerAccept struct {
	AssignedClientID string
	ServerTime       uint64
	InitialPosition  types.Vector3
	InitialVelocity  types.Vector3
	InitialRotation  types.Quaternion
}

func (ServerAccept) Type() MessageType { return ServerAcceptType }
func (b ServerAccept) encode(w *writer) {
	w.str(b.AssignedClientID)
	w.u64(b.ServerTime)
	w.vec3(b.InitialPosition)
	w.vec3(b.InitialVelocity)
	w.quat(b.InitialRotation)
}
func decodeServerAccept(r *reader) (ServerAccept, error) {
	id, err := r.str()
	if err != nil {
		return ServerAccept{}, err
	}
	t, err := r.u64()
	if err != nil {
		return ServerAccept{}, err
	}
	pos, err := r.vec3()
	if err != nil {
		return ServerAccept{}, err
	}
	vel, err := r.vec3()
	if err != nil {
		return ServerAccept{}, err
	}
	rot, err := r.quat()
	if err != nil {
		return ServerAccept{}, err
	}
	return ServerAccept{AssignedClientID: id, ServerTime: t, InitialPosition: pos, InitialVelocity: vel, InitialRotation: rot}, nil
}

// --- SERVER_REJECT ---

type ServerReject struct {
	Reason string
}

func (ServerReject) Type() MessageType { return ServerRejectType }
func (b ServerReject) encode(w *writer) { w.str(b.Reason) }
func decodeServerReject(r *reader) (ServerReject, error) {
	reason, err := r.str()
	if err != nil {
		return ServerReject{}, err
	}
	return ServerReject{Reason: reason}, nil
}

// --- CLIENT_DISCONNECT ---

type ClientDisconnect struct {
	Reason string
}

func (ClientDisconnect) Type() MessageType { return ClientDisconnectType }
func (b ClientDisconnect) encode(w *writer) { w.str(b.Reason) }
func decodeClientDisconnect(r *reader) (ClientDisconnect, error) {
	reason, err := r.str()
	if err != nil {
		return ClientDisconnect{}, err
	}
	return ClientDisconnect{Reason: reason}, nil
}

// --- CLIENT_PING / SERVER_PONG ---

type ClientPing struct {
	PingID uint32
}

func (ClientPing) Type() MessageType { return ClientPingType }
func (b ClientPing) encode(w *writer) { w.u32(b.PingID) }
func decodeClientPing(r *reader) (ClientPing, error) {
	id, err := r.u32()
	if err != nil {
		return ClientPing{}, err
	}
	return ClientPing{PingID: id}, nil
}

type ServerPong struct {
	PingID uint32
}

func (ServerPong) Type() MessageType { return ServerPongType }
func (b ServerPong) encode(w *writer) { w.u32(b.PingID) }
func decodeServerPong(r *reader) (ServerPong, error) {
	id, err := r.u32()
	if err != nil {
		return ServerPong{}, err
	}
	return ServerPong{PingID: id}, nil
}

// --- CLIENT_STATE_UPDATE ---

type ClientStateUpdate struct {
	Position      types.Vector3
	Velocity      types.Vector3
	Rotation      types.Quaternion
	InputSequence uint32
}

func (ClientStateUpdate) Type() MessageType { return ClientStateUpdateType }
func (b ClientStateUpdate) encode(w *writer) {
	w.vec3(b.Position)
	w.vec3(b.Velocity)
	w.quat(b.Rotation)
	w.u32(b.InputSequence)
}
func decodeClientStateUpdate(r *reader) (ClientStateUpdate, error) {
	pos, err := r.vec3()
	if err != nil {
		return ClientStateUpdate{}, err
	}
	vel, err := r.vec3()
	if err != nil {
		return ClientStateUpdate{}, err
	}
	rot, err := r.quat()
	if err != nil {
		return ClientStateUpdate{}, err
	}
	seq, err := r.u32()
	if err != nil {
		return ClientStateUpdate{}, err
	}
	return ClientStateUpdate{Position: pos, Velocity: vel, Rotation: rot, InputSequence: seq}, nil
}

// --- Shared per-entity payloads ---

// EntityPayload is one player/sim-player/NPC entry inside SERVER_STATE_UPDATE.
type EntityPayload struct {
	EntityID   string
	EntityType string
	Position   types.Vector3
	Velocity   types.Vector3
	Rotation   types.Quaternion
}

func (p EntityPayload) encode(w *writer) {
	w.str(p.EntityID)
	w.str(p.EntityType)
	w.vec3(p.Position)
	w.vec3(p.Velocity)
	w.quat(p.Rotation)
}

func decodeEntityPayload(r *reader) (EntityPayload, error) {
	id, err := r.str()
	if err != nil {
		return EntityPayload{}, err
	}
	typ, err := r.str()
	if err != nil {
		return EntityPayload{}, err
	}
	pos, err := r.vec3()
	if err != nil {
		return EntityPayload{}, err
	}
	vel, err := r.vec3()
	if err != nil {
		return EntityPayload{}, err
	}
	rot, err := r.quat()
	if err != nil {
		return EntityPayload{}, err
	}
	return EntityPayload{EntityID: id, EntityType: typ, Position: pos, Velocity: vel, Rotation: rot}, nil
}

// NpcPayload is one NPC entry inside SERVER_NPC_UPDATE.
type NpcPayload struct {
	Entity   EntityPayload
	NpcType  string
	Status   string
	TargetID *string
}

func (p NpcPayload) encode(w *writer) {
	p.Entity.encode(w)
	w.str(p.NpcType)
	w.str(p.Status)
	if p.TargetID != nil {
		w.u8(1)
		w.str(*p.TargetID)
	} else {
		w.u8(0)
	}
}

func decodeNpcPayload(r *reader) (NpcPayload, error) {
	ent, err := decodeEntityPayload(r)
	if err != nil {
		return NpcPayload{}, err
	}
	npcType, err := r.str()
	if err != nil {
		return NpcPayload{}, err
	}
	status, err := r.str()
	if err != nil {
		return NpcPayload{}, err
	}
	hasTarget, err := r.u8()
	if err != nil {
		return NpcPayload{}, err
	}
	var target *string
	if hasTarget != 0 {
		t, err := r.str()
		if err != nil {
			return NpcPayload{}, err
		}
		target = &t
	}
	return NpcPayload{Entity: ent, NpcType: npcType, Status: status, TargetID: target}, nil
}

// CelestialPayload is one body entry inside SERVER_CELESTIAL_UPDATE.
type CelestialPayload struct {
	ID            uint32
	Radius        float32
	Mass          float32
	OrbitProgress float32
	Reserved      [2]float32
	Name          string
	Type          string
	Color         string
	Position      types.Vector3
	Velocity      types.Vector3
}

func (p CelestialPayload) encode(w *writer) {
	w.u32(p.ID)
	w.f32(p.Radius)
	w.f32(p.Mass)
	w.f32(p.OrbitProgress)
	w.f32(p.Reserved[0])
	w.f32(p.Reserved[1])
	w.str(p.Name)
	w.str(p.Type)
	w.str(p.Color)
	w.vec3(p.Position)
	w.vec3(p.Velocity)
}

func decodeCelestialPayload(r *reader) (CelestialPayload, error) {
	var p CelestialPayload
	var err error
	if p.ID, err = r.u32(); err != nil {
		return p, err
	}
	if p.Radius, err = r.f32(); err != nil {
		return p, err
	}
	if p.Mass, err = r.f32(); err != nil {
		return p, err
	}
	if p.OrbitProgress, err = r.f32(); err != nil {
		return p, err
	}
	if p.Reserved[0], err = r.f32(); err != nil {
		return p, err
	}
	if p.Reserved[1], err = r.f32(); err != nil {
		return p, err
	}
	if p.Name, err = r.str(); err != nil {
		return p, err
	}
	if p.Type, err = r.str(); err != nil {
		return p, err
	}
	if p.Color, err = r.str(); err != nil {
		return p, err
	}
	if p.Position, err = r.vec3(); err != nil {
		return p, err
	}
	if p.Velocity, err = r.vec3(); err != nil {
		return p, err
	}
	return p, nil
}

// AreaPayload is one area entry inside SERVER_AOI_UPDATE.
type AreaPayload struct {
	ID            string
	Name          string
	Center        types.Vector3
	Radius        float32
	CapacityLimit uint32
	PlayerCount   uint32
	NpcCount      uint32
}

func (p AreaPayload) encode(w *writer) {
	w.str(p.ID)
	w.str(p.Name)
	w.vec3(p.Center)
	w.f32(p.Radius)
	w.u32(p.CapacityLimit)
	w.u32(p.PlayerCount)
	w.u32(p.NpcCount)
}

func decodeAreaPayload(r *reader) (AreaPayload, error) {
	var p AreaPayload
	var err error
	if p.ID, err = r.str(); err != nil {
		return p, err
	}
	if p.Name, err = r.str(); err != nil {
		return p, err
	}
	if p.Center, err = r.vec3(); err != nil {
		return p, err
	}
	if p.Radius, err = r.f32(); err != nil {
		return p, err
	}
	if p.CapacityLimit, err = r.u32(); err != nil {
		return p, err
	}
	if p.PlayerCount, err = r.u32(); err != nil {
		return p, err
	}
	if p.NpcCount, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// --- SERVER_STATE_UPDATE ---

type ServerStateUpdate struct {
	Entities   []EntityPayload
	AoiID      string
	ServerTime uint64
}

func (ServerStateUpdate) Type() MessageType { return ServerStateUpdateType }
func (b ServerStateUpdate) encode(w *writer) {
	w.u16(uint16(len(b.Entities)))
	for _, e := range b.Entities {
		e.encode(w)
	}
	w.str(b.AoiID)
	w.u64(b.ServerTime)
}
func decodeServerStateUpdate(r *reader) (ServerStateUpdate, error) {
	count, err := r.u16()
	if err != nil {
		return ServerStateUpdate{}, err
	}
	entities := make([]EntityPayload, 0, count)
	for i := uint16(0); i < count; i++ {
		e, err := decodeEntityPayload(r)
		if err != nil {
			return ServerStateUpdate{}, err
		}
		entities = append(entities, e)
	}
	aoiID, err := r.str()
	if err != nil {
		return ServerStateUpdate{}, err
	}
	t, err := r.u64()
	if err != nil {
		return ServerStateUpdate{}, err
	}
	return ServerStateUpdate{Entities: entities, AoiID: aoiID, ServerTime: t}, nil
}

// --- SERVER_NPC_UPDATE ---

type ServerNpcUpdate struct {
	Npcs []NpcPayload
}

func (ServerNpcUpdate) Type() MessageType { return ServerNpcUpdateType }
func (b ServerNpcUpdate) encode(w *writer) {
	w.u16(uint16(len(b.Npcs)))
	for _, n := range b.Npcs {
		n.encode(w)
	}
}
func decodeServerNpcUpdate(r *reader) (ServerNpcUpdate, error) {
	count, err := r.u16()
	if err != nil {
		return ServerNpcUpdate{}, err
	}
	npcs := make([]NpcPayload, 0, count)
	for i := uint16(0); i < count; i++ {
		n, err := decodeNpcPayload(r)
		if err != nil {
			return ServerNpcUpdate{}, err
		}
		npcs = append(npcs, n)
	}
	return ServerNpcUpdate{Npcs: npcs}, nil
}

// --- SERVER_CELESTIAL_UPDATE ---

type ServerCelestialUpdate struct {
	Bodies         []CelestialPayload
	SimulationTime float64
}

func (ServerCelestialUpdate) Type() MessageType { return ServerCelestialUpdateType }
func (b ServerCelestialUpdate) encode(w *writer) {
	w.u16(uint16(len(b.Bodies)))
	for _, body := range b.Bodies {
		body.encode(w)
	}
	w.f64(b.SimulationTime)
}
func decodeServerCelestialUpdate(r *reader) (ServerCelestialUpdate, error) {
	count, err := r.u16()
	if err != nil {
		return ServerCelestialUpdate{}, err
	}
	bodies := make([]CelestialPayload, 0, count)
	for i := uint16(0); i < count; i++ {
		body, err := decodeCelestialPayload(r)
		if err != nil {
			return ServerCelestialUpdate{}, err
		}
		bodies = append(bodies, body)
	}
	simTime, err := r.f64()
	if err != nil {
		return ServerCelestialUpdate{}, err
	}
	return ServerCelestialUpdate{Bodies: bodies, SimulationTime: simTime}, nil
}

// --- SERVER_AOI_UPDATE ---

type ServerAoiUpdate struct {
	Areas        []AreaPayload
	CurrentAoiID string
}

func (ServerAoiUpdate) Type() MessageType { return ServerAoiUpdateType }
func (b ServerAoiUpdate) encode(w *writer) {
	w.u16(uint16(len(b.Areas)))
	for _, a := range b.Areas {
		a.encode(w)
	}
	w.str(b.CurrentAoiID)
}
func decodeServerAoiUpdate(r *reader) (ServerAoiUpdate, error) {
	count, err := r.u16()
	if err != nil {
		return ServerAoiUpdate{}, err
	}
	areas := make([]AreaPayload, 0, count)
	for i := uint16(0); i < count; i++ {
		a, err := decodeAreaPayload(r)
		if err != nil {
			return ServerAoiUpdate{}, err
		}
		areas = append(areas, a)
	}
	currentID, err := r.str()
	if err != nil {
		return ServerAoiUpdate{}, err
	}
	return ServerAoiUpdate{Areas: areas, CurrentAoiID: currentID}, nil
}

// --- CLIENT_RELIABLE_ACK / SERVER_RELIABLE_ACK ---

type ClientReliableAck struct {
	AckSequence uint32
}

func (ClientReliableAck) Type() MessageType { return ClientReliableAckType }
func (b ClientReliableAck) encode(w *writer) { w.u32(b.AckSequence) }
func decodeClientReliableAck(r *reader) (ClientReliableAck, error) {
	seq, err := r.u32()
	if err != nil {
		return ClientReliableAck{}, err
	}
	return ClientReliableAck{AckSequence: seq}, nil
}

type ServerReliableAck struct {
	AckSequence uint32
}

func (ServerReliableAck) Type() MessageType { return ServerReliableAckType }
func (b ServerReliableAck) encode(w *writer) { w.u32(b.AckSequence) }
func decodeServerReliableAck(r *reader) (ServerReliableAck, error) {
	seq, err := r.u32()
	if err != nil {
		return ServerReliableAck{}, err
	}
	return ServerReliableAck{AckSequence: seq}, nil
}
