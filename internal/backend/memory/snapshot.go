package memory

import (
	"encoding/json"
	"os"

	"backplane/internal/core/record"
	"backplane/internal/platform/logger"
)

// SaveSnapshot serializes the whole store as one object keyed by entity type,
// each value a mapping from id to record. time values marshal as ISO strings
func (s *Store) SaveSnapshot(path string) error {
	data, err := json.Marshal(s.dump())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadSnapshot replaces store contents from a snapshot file.
// A missing or corrupt snapshot loads as an empty store, never a fatal error
func (s *Store) LoadSnapshot(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Named("snapshot").Warn().Str("path", path).Err(err).Msg("snapshot unreadable; starting empty")
		}
		s.replaceAll(nil)
		return
	}
	s.LoadSnapshotBytes(raw)
}

// LoadSnapshotBytes is LoadSnapshot over in-memory bytes
func (s *Store) LoadSnapshotBytes(raw []byte) {
	var data map[string]map[string]record.Record
	if err := json.Unmarshal(raw, &data); err != nil {
		logger.Named("snapshot").Warn().Err(err).Msg("snapshot corrupt; starting empty")
		s.replaceAll(nil)
		return
	}
	for _, t := range data {
		for _, r := range t {
			record.RehydrateDates(r)
		}
	}
	s.replaceAll(data)
}
