package game

import "stellarcore/pkg/types"

// SanityCheck runs spec.md §4.7's coarse bounds sweep ("velocity/
// acceleration/position bounds") over every live player, simulated
// player, and NPC ship. This is explicitly not cheat-proof physics
// validation (spec.md §1's non-goals) — it's a safety net against a
// runaway integration step or a malformed client input clamping state
// back into a sane envelope rather than letting it corrupt the AOI
// index or blow up the wire codec's f32 payloads (spec.md §7,
// "Simulation invariant breach": log and clamp, never crash).
func (m *Manager) SanityCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.players {
		m.clampKinematics(&p.Position, &p.Velocity, "player "+id)
	}
	for id, e := range m.simPlayers {
		m.clampKinematics(&e.player.Position, &e.player.Velocity, "simplayer "+idString(id))
	}
	for id, s := range m.npcShips {
		m.clampKinematics(&s.Position, &s.Velocity, "npc "+idString(id))
	}
}

// clampKinematics clamps pos/vel back inside cfg.MaxPosition/
// cfg.MaxVelocity in place, logging once per violation.
func (m *Manager) clampKinematics(pos, vel *types.Vector3, label string) {
	if l := pos.Length(); l > m.cfg.MaxPosition {
		if m.errLog != nil {
			m.errLog.Printf("game: sanity: %s position out of bounds (%.0f > %.0f), clamping", label, l, m.cfg.MaxPosition)
		}
		*pos = pos.Normalize().Scale(m.cfg.MaxPosition)
	}
	if l := vel.Length(); l > m.cfg.MaxVelocity {
		if m.errLog != nil {
			m.errLog.Printf("game: sanity: %s velocity out of bounds (%.0f > %.0f), clamping", label, l, m.cfg.MaxVelocity)
		}
		*vel = vel.Normalize().Scale(m.cfg.MaxVelocity)
	}
}
