package store

// MemoryStore is the zero-persistence backend: everything lives in the
// process and SaveWorld/LoadWorld are no-ops. Used by tests and by
// ephemeral "scratch" server instances (spec.md §6, "persistence:
// in-memory").
type MemoryStore struct {
	*tables
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: newTables()}
}

func (m *MemoryStore) SaveWorld() error { return nil }
func (m *MemoryStore) LoadWorld() error { return nil }

func (m *MemoryStore) ResetWorld() error {
	m.resetAll()
	return nil
}

func (m *MemoryStore) ResetSequences() error {
	m.resetSequences()
	return nil
}
